package model

import "time"

type MessageRecipient string

const (
	RecipientAdmin MessageRecipient = "admin"
	RecipientHR    MessageRecipient = "hr"
	RecipientBoth  MessageRecipient = "both"
)

type MessageType string

const (
	MessageApproval  MessageType = "approval"
	MessageRejection MessageType = "rejection"
	MessageInfo      MessageType = "info"
	MessageWarning   MessageType = "warning"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageApproval, MessageRejection, MessageInfo, MessageWarning:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type ReadReceipt struct {
	UserID string    `json:"userId"`
	Role   string    `json:"role"`
	ReadAt time.Time `json:"readAt"`
}

type Message struct {
	ID               string
	Recipient        MessageRecipient
	Type             MessageType
	Title            string
	Body             string
	RelatedUser      string
	RelatedRequestID string
	ActionBy         string
	ActionByRole     string
	Priority         Priority
	IsRead           bool
	ReadBy           []ReadReceipt
	CreatedAt        time.Time
}

// VisibleTo reports whether role is inside the message's audience.
func (m *Message) VisibleTo(role string) bool {
	return m.Recipient == RecipientBoth || string(m.Recipient) == role
}

func (m *Message) ReadByRole(role string) bool {
	for _, r := range m.ReadBy {
		if r.Role == role {
			return true
		}
	}
	return false
}

// AddReceipt appends a read receipt for (userID, role) unless that user
// already has one, and recomputes IsRead. It returns true if a receipt was added.
func (m *Message) AddReceipt(userID, role string, at time.Time) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID && r.Role == role {
			return false
		}
	}
	m.ReadBy = append(m.ReadBy, ReadReceipt{UserID: userID, Role: role, ReadAt: at})
	m.IsRead = m.computeRead()
	return true
}

// both 需要 admin 与 hr 各至少一条回执；单角色只要该角色读过
func (m *Message) computeRead() bool {
	switch m.Recipient {
	case RecipientBoth:
		return m.ReadByRole(string(RecipientAdmin)) && m.ReadByRole(string(RecipientHR))
	default:
		return m.ReadByRole(string(m.Recipient))
	}
}

type MessageFilter struct {
	Type   MessageType
	IsRead *bool
}
