package repository

import (
	"context"

	"accessdesk/internal/model"
)

// RequestStore persists access requests. DecidePending only succeeds while
// the row is still pending; otherwise it returns apperr.ErrConflict.
type RequestStore interface {
	Create(ctx context.Context, r *model.AccessRequest) error
	GetByID(ctx context.Context, id string) (*model.AccessRequest, error)
	// FindByEmailAndID matches on internal id or human-readable request number.
	FindByEmailAndID(ctx context.Context, email, id string) (*model.AccessRequest, error)
	ListByEmail(ctx context.Context, email string, page model.Page) ([]*model.AccessRequest, int, error)
	List(ctx context.Context, filter model.RequestFilter, page model.Page) ([]*model.AccessRequest, int, error)
	DecidePending(ctx context.Context, id string, d model.Decision) (*model.AccessRequest, error)
	AssignRequestNumber(ctx context.Context, id string, number int64) (*model.AccessRequest, error)
	AppendImage(ctx context.Context, id, url string) (int, error)
	// ClaimStaffNotification flags the request as announced to staff. Only the
	// first call for a request returns true.
	ClaimStaffNotification(ctx context.Context, id string) (bool, error)
	RemoveImage(ctx context.Context, url string) (string, error)
}

type MessageStore interface {
	Create(ctx context.Context, m *model.Message) error
	GetByID(ctx context.Context, id string) (*model.Message, error)
	// List returns one page of the messages visible to role (recipient is role or both)
	// that match filter, newest first, with the matching total. filter.IsRead is
	// evaluated per role.
	List(ctx context.Context, role string, filter model.MessageFilter, page model.Page) ([]*model.Message, int, error)
	CountUnread(ctx context.Context, role string) (int, error)
	// AddReceipt appends r in one atomic step unless r.UserID already holds a
	// receipt for r.Role, recomputes is_read and returns the stored message.
	AddReceipt(ctx context.Context, id string, r model.ReadReceipt) (*model.Message, error)
	// MarkAllRead appends r to every visible message role has not read yet and
	// returns how many messages changed.
	MarkAllRead(ctx context.Context, role string, r model.ReadReceipt) (int, error)
	Delete(ctx context.Context, id string) error
}

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	FindByLogin(ctx context.Context, login string) (*model.User, error)
	List(ctx context.Context, role string) ([]*model.User, error)
	ListActiveByRole(ctx context.Context, role string) ([]*model.User, error)
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}
