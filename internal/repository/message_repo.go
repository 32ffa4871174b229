package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"accessdesk/internal/apperr"
	"accessdesk/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const messageColumns = `id, recipient, type, title, message, related_user, related_request_id,
	action_by, action_by_role, priority, is_read, read_by, created_at`

type MessageRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewMessageRepository(db *pgxpool.Pool, logger *zap.Logger) *MessageRepository {
	return &MessageRepository{db: db, logger: logger}
}

func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	readBy, err := json.Marshal(nonNilReceipts(m.ReadBy))
	if err != nil {
		return err
	}
	query := `
        INSERT INTO messages (` + messageColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `
	_, err = r.db.Exec(ctx, query,
		m.ID,
		string(m.Recipient),
		string(m.Type),
		m.Title,
		m.Body,
		m.RelatedUser,
		m.RelatedRequestID,
		m.ActionBy,
		m.ActionByRole,
		string(m.Priority),
		m.IsRead,
		readBy,
		m.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert message", zap.String("id", m.ID), zap.Error(err))
		return err
	}
	return nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	return scanMessage(r.db.QueryRow(ctx, query, id))
}

// visibleTo 与 model.Message.VisibleTo 一致
const visibleTo = `(recipient = $1 OR recipient = 'both')`

// readState 基于追加后的 read_by 重算 is_read：both 需要 admin 与 hr 各一条回执
const readState = `CASE recipient
            WHEN 'both' THEN (read_by || $2::jsonb) @> '[{"role":"admin"}]'
                AND (read_by || $2::jsonb) @> '[{"role":"hr"}]'
            ELSE (read_by || $2::jsonb) @> jsonb_build_array(jsonb_build_object('role', recipient))
        END`

func (r *MessageRepository) List(ctx context.Context, role string, filter model.MessageFilter, page model.Page) ([]*model.Message, int, error) {
	page = page.Normalize()

	conds := []string{visibleTo}
	args := []any{role}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Type != "" {
		add("type = $%d", string(filter.Type))
	}
	if filter.IsRead != nil {
		probe, err := receiptProbe(model.ReadReceipt{Role: role})
		if err != nil {
			return nil, 0, err
		}
		if *filter.IsRead {
			add("read_by @> $%d::jsonb", probe)
		} else {
			add("NOT read_by @> $%d::jsonb", probe)
		}
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM messages`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, page.Limit, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM messages%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		messageColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query messages", zap.String("role", role), zap.Error(err))
		return nil, 0, err
	}
	defer rows.Close()

	out := []*model.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func (r *MessageRepository) CountUnread(ctx context.Context, role string) (int, error) {
	probe, err := receiptProbe(model.ReadReceipt{Role: role})
	if err != nil {
		return 0, err
	}
	var n int
	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE `+visibleTo+` AND NOT read_by @> $2::jsonb`,
		role, probe,
	).Scan(&n)
	return n, err
}

// AddReceipt 单条 UPDATE 追加回执，并发的 admin/hr 回执不会互相覆盖
func (r *MessageRepository) AddReceipt(ctx context.Context, id string, rc model.ReadReceipt) (*model.Message, error) {
	receipt, err := json.Marshal([]model.ReadReceipt{rc})
	if err != nil {
		return nil, err
	}
	probe, err := receiptProbe(model.ReadReceipt{UserID: rc.UserID, Role: rc.Role})
	if err != nil {
		return nil, err
	}
	query := `
        UPDATE messages
        SET read_by = read_by || $2::jsonb, is_read = ` + readState + `
        WHERE id = $1 AND NOT read_by @> $3::jsonb
        RETURNING ` + messageColumns

	m, err := scanMessage(r.db.QueryRow(ctx, query, id, string(receipt), probe))
	if errors.Is(err, apperr.ErrNotFound) {
		// 已有回执或消息不存在
		return r.GetByID(ctx, id)
	}
	if err != nil {
		r.logger.Error("Failed to add read receipt", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return m, nil
}

func (r *MessageRepository) MarkAllRead(ctx context.Context, role string, rc model.ReadReceipt) (int, error) {
	receipt, err := json.Marshal([]model.ReadReceipt{rc})
	if err != nil {
		return 0, err
	}
	probe, err := receiptProbe(model.ReadReceipt{Role: role})
	if err != nil {
		return 0, err
	}
	query := `
        UPDATE messages
        SET read_by = read_by || $2::jsonb, is_read = ` + readState + `
        WHERE ` + visibleTo + ` AND NOT read_by @> $3::jsonb`

	tag, err := r.db.Exec(ctx, query, role, string(receipt), probe)
	if err != nil {
		r.logger.Error("Failed to mark messages read", zap.String("role", role), zap.Error(err))
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("message %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func scanMessage(row pgx.Row) (*model.Message, error) {
	var (
		m                        model.Message
		recipient, typ, priority string
		readBy                   []byte
	)
	err := row.Scan(
		&m.ID,
		&recipient,
		&typ,
		&m.Title,
		&m.Body,
		&m.RelatedUser,
		&m.RelatedRequestID,
		&m.ActionBy,
		&m.ActionByRole,
		&priority,
		&m.IsRead,
		&readBy,
		&m.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Recipient = model.MessageRecipient(recipient)
	m.Type = model.MessageType(typ)
	m.Priority = model.Priority(priority)
	if len(readBy) > 0 {
		if err := json.Unmarshal(readBy, &m.ReadBy); err != nil {
			return nil, fmt.Errorf("decode read_by: %w", err)
		}
	}
	return &m, nil
}

// receiptProbe builds a jsonb containment operand; empty fields are left out
// so {"role":"hr"} matches any hr receipt.
func receiptProbe(rc model.ReadReceipt) (string, error) {
	probe := map[string]string{"role": rc.Role}
	if rc.UserID != "" {
		probe["userId"] = rc.UserID
	}
	b, err := json.Marshal([]map[string]string{probe})
	return string(b), err
}

func nonNilReceipts(r []model.ReadReceipt) []model.ReadReceipt {
	if r == nil {
		return []model.ReadReceipt{}
	}
	return r
}
