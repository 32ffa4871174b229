package notify

import (
	"strings"
	"unicode"

	"accessdesk/internal/model"
)

type detailRow struct {
	Label string
	Value string
}

type requestView struct {
	RequestNumber int64
	FullName      string
	Email         string
	PhoneNumber   string
	Purpose       string
	WhomToMeet    string
	Details       []detailRow
	SubmittedDate string
	SubmittedTime string
	Images        []string
}

func newRequestView(r *model.AccessRequest) requestView {
	v := requestView{
		FullName:      r.FullName,
		Email:         r.Email,
		PhoneNumber:   r.PhoneNumber,
		Purpose:       string(r.Purpose),
		WhomToMeet:    r.WhomToMeet,
		SubmittedDate: r.SubmittedDate,
		SubmittedTime: r.SubmittedTime,
		Images:        r.Images,
	}
	if r.RequestNumber != nil {
		v.RequestNumber = *r.RequestNumber
	}
	if r.Details != nil {
		order := r.Purpose.RequiredFields()
		fields := r.Details.Fields()
		for _, name := range order {
			v.Details = append(v.Details, detailRow{Label: labelFor(name), Value: fields[name]})
		}
	}
	return v
}

// labelFor turns "interviewerPhone" into "Interviewer Phone".
func labelFor(field string) string {
	var b strings.Builder
	for i, r := range field {
		if i == 0 {
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		if unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func statusTitle(s model.RequestStatus) string {
	switch s {
	case model.StatusApproved:
		return "Approved"
	case model.StatusRejected:
		return "Rejected"
	}
	return "Pending"
}

func displayName(u *model.User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}
