package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"accessdesk/internal/apperr"
	"accessdesk/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const requestColumns = `id, request_number, full_name, email, phone_number, purpose_of_access, whom_to_meet,
	purpose_details, status, approved_by, approved_at, rejection_reason, images,
	submitted_date, submitted_time, created_at, updated_at`

type RequestRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewRequestRepository(db *pgxpool.Pool, logger *zap.Logger) *RequestRepository {
	return &RequestRepository{db: db, logger: logger}
}

// Create inserts a pending request and assigns the next request number.
func (r *RequestRepository) Create(ctx context.Context, req *model.AccessRequest) error {
	details, err := json.Marshal(req.Details)
	if err != nil {
		return fmt.Errorf("marshal purpose details: %w", err)
	}

	query := `
        INSERT INTO access_requests (
            id, request_number, full_name, email, phone_number, purpose_of_access, whom_to_meet,
            purpose_details, status, images, submitted_date, submitted_time
        )
        VALUES ($1, nextval('access_request_number_seq'), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING request_number, created_at, updated_at
    `
	var number int64
	err = r.db.QueryRow(ctx, query,
		req.ID,
		req.FullName,
		req.Email,
		req.PhoneNumber,
		string(req.Purpose),
		req.WhomToMeet,
		details,
		string(req.Status),
		nonNilImages(req.Images),
		req.SubmittedDate,
		req.SubmittedTime,
	).Scan(&number, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert access request", zap.String("id", req.ID), zap.Error(err))
		return err
	}
	req.RequestNumber = &number

	r.logger.Info("Access request inserted",
		zap.String("id", req.ID),
		zap.Int64("request_number", number),
		zap.String("purpose", string(req.Purpose)),
	)
	return nil
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (*model.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE id = $1`
	return scanRequest(r.db.QueryRow(ctx, query, id))
}

func (r *RequestRepository) FindByEmailAndID(ctx context.Context, email, id string) (*model.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE lower(email) = lower($1) AND `
	var arg any = id
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		query += `request_number = $2`
		arg = n
	} else {
		query += `id = $2`
	}
	return scanRequest(r.db.QueryRow(ctx, query, email, arg))
}

func (r *RequestRepository) ListByEmail(ctx context.Context, email string, page model.Page) ([]*model.AccessRequest, int, error) {
	return r.List(ctx, model.RequestFilter{Email: email}, page)
}

func (r *RequestRepository) List(ctx context.Context, filter model.RequestFilter, page model.Page) ([]*model.AccessRequest, int, error) {
	page = page.Normalize()

	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.Purpose != "" {
		add("purpose_of_access = $%d", string(filter.Purpose))
	}
	if filter.Email != "" {
		add("lower(email) = lower($%d)", filter.Email)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM access_requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, page.Limit, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM access_requests%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		requestColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query access requests", zap.Error(err))
		return nil, 0, err
	}
	defer rows.Close()

	out := []*model.AccessRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, req)
	}
	return out, total, rows.Err()
}

// DecidePending 条件更新：只有 status='pending' 才会生效
func (r *RequestRepository) DecidePending(ctx context.Context, id string, d model.Decision) (*model.AccessRequest, error) {
	query := `
        UPDATE access_requests
        SET status = $2, approved_by = $3, approved_at = $4, rejection_reason = $5, updated_at = NOW()
        WHERE id = $1 AND status = 'pending'
        RETURNING ` + requestColumns

	req, err := scanRequest(r.db.QueryRow(ctx, query, id, string(d.Status), d.ApprovedBy, d.ApprovedAt, d.RejectionReason))
	if errors.Is(err, apperr.ErrNotFound) {
		// 区分不存在与已处理
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("request %s is not pending: %w", id, apperr.ErrConflict)
	}
	if err != nil {
		r.logger.Error("Failed to decide access request", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	r.logger.Info("Access request decided",
		zap.String("id", id),
		zap.String("status", string(d.Status)),
		zap.String("approved_by", d.ApprovedBy),
	)
	return req, nil
}

func (r *RequestRepository) AssignRequestNumber(ctx context.Context, id string, number int64) (*model.AccessRequest, error) {
	query := `
        UPDATE access_requests
        SET request_number = $2, updated_at = NOW()
        WHERE id = $1
        RETURNING ` + requestColumns

	req, err := scanRequest(r.db.QueryRow(ctx, query, id, number))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("request number %d already in use: %w", number, apperr.ErrConflict)
		}
		return nil, err
	}
	return req, nil
}

func (r *RequestRepository) AppendImage(ctx context.Context, id, url string) (int, error) {
	query := `
        UPDATE access_requests
        SET images = array_append(images, $2), updated_at = NOW()
        WHERE id = $1
        RETURNING cardinality(images)
    `
	var count int
	err := r.db.QueryRow(ctx, query, id, url).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("request %s: %w", id, apperr.ErrNotFound)
	}
	return count, err
}

// ClaimStaffNotification 条件更新：staff_notified_at 只会被设置一次
func (r *RequestRepository) ClaimStaffNotification(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE access_requests SET staff_notified_at = NOW() WHERE id = $1 AND staff_notified_at IS NULL`,
		id,
	)
	if err != nil {
		r.logger.Error("Failed to flag staff notification", zap.String("id", id), zap.Error(err))
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RemoveImage drops url from whichever request references it and returns that request's id.
func (r *RequestRepository) RemoveImage(ctx context.Context, url string) (string, error) {
	query := `
        UPDATE access_requests
        SET images = array_remove(images, $1), updated_at = NOW()
        WHERE $1 = ANY(images)
        RETURNING id
    `
	var id string
	err := r.db.QueryRow(ctx, query, url).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.ErrNotFound
	}
	return id, err
}

func scanRequest(row pgx.Row) (*model.AccessRequest, error) {
	var (
		req     model.AccessRequest
		purpose string
		status  string
		details []byte
	)
	err := row.Scan(
		&req.ID,
		&req.RequestNumber,
		&req.FullName,
		&req.Email,
		&req.PhoneNumber,
		&purpose,
		&req.WhomToMeet,
		&details,
		&status,
		&req.ApprovedBy,
		&req.ApprovedAt,
		&req.RejectionReason,
		&req.Images,
		&req.SubmittedDate,
		&req.SubmittedTime,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	req.Purpose = model.Purpose(purpose)
	req.Status = model.RequestStatus(status)
	if req.Details, err = model.DecodePurposeDetails(req.Purpose, details); err != nil {
		return nil, err
	}
	return &req, nil
}

func nonNilImages(images []string) []string {
	if images == nil {
		return []string{}
	}
	return images
}
