package model

import "time"

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type AccessRequest struct {
	ID            string
	RequestNumber *int64
	FullName      string
	Email         string
	PhoneNumber   string
	Purpose       Purpose
	WhomToMeet    string
	Details       PurposeDetails

	Status          RequestStatus
	ApprovedBy      string
	ApprovedAt      *time.Time
	RejectionReason string

	Images        []string
	SubmittedDate string
	SubmittedTime string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Decision is the terminal update applied by the lifecycle service.
type Decision struct {
	Status          RequestStatus
	ApprovedBy      string
	ApprovedAt      time.Time
	RejectionReason string
}

type RequestFilter struct {
	Status  RequestStatus
	Purpose Purpose
	Email   string
}

type Page struct {
	Page  int
	Limit int
}

// Normalize clamps page/limit to sane defaults.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}
