package handler

import (
	"errors"
	"html/template"

	"accessdesk/internal/apperr"

	"github.com/gin-gonic/gin"
)

type actionPage struct {
	Success   bool
	Title     string
	Message   string
	Requester string
	Purpose   string
	internal  bool
}

var actionPageTmpl = template.Must(template.New("email_action").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Arial, sans-serif; background: #f4f6f8; }
.card { max-width: 480px; margin: 80px auto; background: #fff; padding: 32px; border-radius: 8px; text-align: center; }
.ok { color: #2e7d32; }
.fail { color: #c62828; }
</style>
</head>
<body>
<div class="card">
<h1 class="{{if .Success}}ok{{else}}fail{{end}}">{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .Requester}}<p><strong>Requester:</strong> {{.Requester}}</p>{{end}}
{{if .Purpose}}<p><strong>Purpose:</strong> {{.Purpose}}</p>{{end}}
<p>You can close this window.</p>
</div>
</body>
</html>
`))

// failurePage gives each token failure its own wording.
func failurePage(err error) actionPage {
	switch {
	case errors.Is(err, apperr.ErrExpiredToken):
		return actionPage{Title: "Link Expired", Message: "This approval link has expired. Please use the dashboard to process the request."}
	case errors.Is(err, apperr.ErrAlreadyProcessed):
		return actionPage{Title: "Already Processed", Message: "This request has already been processed. No further action is needed."}
	case errors.Is(err, apperr.ErrNotFound):
		return actionPage{Title: "Request Not Found", Message: "The access request referenced by this link no longer exists."}
	case errors.Is(err, apperr.ErrInvalidToken):
		return actionPage{Title: "Invalid Link", Message: "This approval link is invalid or has been modified."}
	default:
		return actionPage{Title: "Something Went Wrong", Message: "The request could not be processed. Please try again later.", internal: true}
	}
}

func renderActionPage(c *gin.Context, status int, page actionPage) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := actionPageTmpl.Execute(c.Writer, page); err != nil {
		_ = c.Error(err)
	}
}
