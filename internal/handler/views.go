package handler

import (
	"accessdesk/internal/model"
	"accessdesk/internal/service/inbox"

	"github.com/gin-gonic/gin"
)

// requestJSON flattens the purpose variant into the top-level document, the
// same shape the submission form posts.
func requestJSON(r *model.AccessRequest) gin.H {
	out := gin.H{
		"id":              r.ID,
		"requestId":       r.RequestNumber,
		"fullName":        r.FullName,
		"email":           r.Email,
		"phoneNumber":     r.PhoneNumber,
		"purposeOfAccess": r.Purpose,
		"whomToMeet":      r.WhomToMeet,
		"status":          r.Status,
		"approvedBy":      r.ApprovedBy,
		"approvedAt":      r.ApprovedAt,
		"rejectionReason": r.RejectionReason,
		"images":          r.Images,
		"submittedDate":   r.SubmittedDate,
		"submittedTime":   r.SubmittedTime,
		"createdAt":       r.CreatedAt,
		"updatedAt":       r.UpdatedAt,
	}
	if r.Details != nil {
		for k, v := range r.Details.Fields() {
			out[k] = v
		}
	}
	return out
}

func requestsJSON(list []*model.AccessRequest) []gin.H {
	out := make([]gin.H, 0, len(list))
	for _, r := range list {
		out = append(out, requestJSON(r))
	}
	return out
}

// statusJSON is the public projection returned to a submitter.
func statusJSON(r *model.AccessRequest) gin.H {
	return gin.H{
		"id":              r.ID,
		"requestId":       r.RequestNumber,
		"fullName":        r.FullName,
		"purposeOfAccess": r.Purpose,
		"status":          r.Status,
		"approvedBy":      r.ApprovedBy,
		"approvedAt":      r.ApprovedAt,
		"rejectionReason": r.RejectionReason,
		"submittedDate":   r.SubmittedDate,
		"submittedTime":   r.SubmittedTime,
	}
}

func messageJSON(m *model.Message, readByMe bool) gin.H {
	return gin.H{
		"id":               m.ID,
		"recipient":        m.Recipient,
		"type":             m.Type,
		"title":            m.Title,
		"message":          m.Body,
		"relatedUser":      m.RelatedUser,
		"relatedRequestId": m.RelatedRequestID,
		"actionBy":         m.ActionBy,
		"actionByRole":     m.ActionByRole,
		"priority":         m.Priority,
		"isRead":           m.IsRead,
		"readByMe":         readByMe,
		"readBy":           m.ReadBy,
		"createdAt":        m.CreatedAt,
	}
}

func messageViewsJSON(items []inbox.MessageView) []gin.H {
	out := make([]gin.H, 0, len(items))
	for _, v := range items {
		out = append(out, messageJSON(v.Message, v.ReadByMe))
	}
	return out
}

// userJSON never exposes the password hash.
func userJSON(u *model.User) gin.H {
	return gin.H{
		"id":        u.ID,
		"username":  u.Username,
		"email":     u.Email,
		"role":      u.Role,
		"isActive":  u.IsActive,
		"createdAt": u.CreatedAt,
	}
}
