package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labhub-io/labhub/internal/notification/domain"
)

// PgMessageRepository is the PostgreSQL implementation of
// domain.MessageRepository over the message_body / message_recipient tables.
type PgMessageRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPgMessageRepository creates a new PostgreSQL message repository.
func NewPgMessageRepository(dbPool *pgxpool.Pool, logger *slog.Logger) *PgMessageRepository {
	return &PgMessageRepository{
		db:     dbPool,
		logger: logger.With("repository", "message_pg"),
	}
}

// Save persists the body and its recipient rows in one transaction.
func (r *PgMessageRepository) Save(ctx context.Context, body *domain.MessageBody, recipients []*domain.MessageRecipient) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	const bodyQuery = `
		INSERT INTO message_body (
			id, sender_id, message_type, scene, priority, title, content,
			business_id, business_type, extend_data, trigger_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = tx.Exec(ctx, bodyQuery,
		body.ID,
		body.SenderID,
		body.MessageType,
		body.Scene,
		body.Priority,
		body.Title,
		body.Content,
		body.BusinessID,
		body.BusinessType,
		body.ExtendData,
		body.TriggerTime,
	)
	if err != nil {
		return fmt.Errorf("insert message body %d: %w", body.ID, err)
	}

	const recipientQuery = `
		INSERT INTO message_recipient (
			message_body_id, receiver_id, scene_code, read_flag, expired, trigger_time
		) VALUES ($1, $2, $3, FALSE, FALSE, $4)
		RETURNING id
	`
	for _, rec := range recipients {
		if err := tx.QueryRow(ctx, recipientQuery,
			rec.MessageBodyID, rec.ReceiverID, rec.SceneCode, rec.TriggerTime,
		).Scan(&rec.ID); err != nil {
			return fmt.Errorf("insert recipient for user %d: %w", rec.ReceiverID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save transaction: %w", err)
	}

	r.logger.DebugContext(ctx, "Persisted message",
		"message_id", body.ID, "scene", body.Scene, "recipients", len(recipients))
	return nil
}

// FindPendingOlderThan returns still-pending rows for the scene triggered
// before the cutoff. Feeds the expiry sweeper.
func (r *PgMessageRepository) FindPendingOlderThan(ctx context.Context, scene domain.Scene, cutoff time.Time) ([]*domain.MessageRecipient, error) {
	const query = `
		SELECT id, message_body_id, receiver_id, scene_code, read_flag, read_at,
		       expired, expired_at, trigger_time
		FROM message_recipient
		WHERE scene_code = $1
		  AND read_flag = FALSE
		  AND expired = FALSE
		  AND trigger_time < $2
		ORDER BY trigger_time
	`
	rows, err := r.db.Query(ctx, query, scene, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query pending %s rows: %w", scene, err)
	}
	defer rows.Close()

	var out []*domain.MessageRecipient
	for rows.Next() {
		var rec domain.MessageRecipient
		if err := rows.Scan(
			&rec.ID, &rec.MessageBodyID, &rec.ReceiverID, &rec.SceneCode,
			&rec.ReadFlag, &rec.ReadAt, &rec.Expired, &rec.ExpiredAt, &rec.TriggerTime,
		); err != nil {
			return nil, fmt.Errorf("scan pending recipient row: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// MarkExpired flips a row to expired only if it is still pending. The
// WHERE clause is the optimistic re-check that keeps the sweeper from
// overwriting a resolution committed after the scan.
func (r *PgMessageRepository) MarkExpired(ctx context.Context, recipientID int64, at time.Time) (bool, error) {
	const query = `
		UPDATE message_recipient
		SET expired = TRUE, expired_at = $2
		WHERE id = $1 AND read_flag = FALSE AND expired = FALSE
	`
	tag, err := r.db.Exec(ctx, query, recipientID, at)
	if err != nil {
		return false, fmt.Errorf("mark recipient %d expired: %w", recipientID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// AppendExpiryNotice appends the notice to the owning body's content. The
// body is otherwise write-once; this is its single sanctioned mutation.
func (r *PgMessageRepository) AppendExpiryNotice(ctx context.Context, bodyID int64, notice string) error {
	const query = `UPDATE message_body SET content = content || $2 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, bodyID, notice)
	if err != nil {
		return fmt.Errorf("append expiry notice to body %d: %w", bodyID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("append expiry notice to body %d: %w", bodyID, domain.ErrNotFound)
	}
	return nil
}

// MarkRead marks the user's row read unless it already reached a terminal
// state.
func (r *PgMessageRepository) MarkRead(ctx context.Context, recipientID, receiverID int64, at time.Time) (bool, error) {
	const query = `
		UPDATE message_recipient
		SET read_flag = TRUE, read_at = $3
		WHERE id = $1 AND receiver_id = $2 AND read_flag = FALSE AND expired = FALSE
	`
	tag, err := r.db.Exec(ctx, query, recipientID, receiverID, at)
	if err != nil {
		return false, fmt.Errorf("mark recipient %d read: %w", recipientID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkResolved records the user's resolution of an actionable row. Shares
// the read guard: a resolved row is a read row whose window was still open.
func (r *PgMessageRepository) MarkResolved(ctx context.Context, recipientID, receiverID int64, at time.Time) (bool, error) {
	return r.MarkRead(ctx, recipientID, receiverID, at)
}

// ListForUser returns the user's inbox entries, newest first, with the
// owning bodies joined in.
func (r *PgMessageRepository) ListForUser(ctx context.Context, receiverID int64, onlyUnread bool, limit, offset int) ([]*domain.InboxEntry, error) {
	query := `
		SELECT mr.id, mr.message_body_id, mr.receiver_id, mr.scene_code,
		       mr.read_flag, mr.read_at, mr.expired, mr.expired_at, mr.trigger_time,
		       mb.id, mb.sender_id, mb.message_type, mb.scene, mb.priority,
		       mb.title, mb.content, mb.business_id, mb.business_type,
		       mb.extend_data, mb.trigger_time
		FROM message_recipient mr
		JOIN message_body mb ON mb.id = mr.message_body_id
		WHERE mr.receiver_id = $1
	`
	if onlyUnread {
		// Expired rows reached their terminal state without a read and can
		// never gain one; they need no further attention, so the unread
		// view skips them. They still appear in the full listing with the
		// expiry notice in their content.
		query += ` AND mr.read_flag = FALSE AND mr.expired = FALSE`
	}
	query += ` ORDER BY mr.trigger_time DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, receiverID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query inbox for user %d: %w", receiverID, err)
	}
	defer rows.Close()

	var out []*domain.InboxEntry
	for rows.Next() {
		var rec domain.MessageRecipient
		var body domain.MessageBody
		if err := rows.Scan(
			&rec.ID, &rec.MessageBodyID, &rec.ReceiverID, &rec.SceneCode,
			&rec.ReadFlag, &rec.ReadAt, &rec.Expired, &rec.ExpiredAt, &rec.TriggerTime,
			&body.ID, &body.SenderID, &body.MessageType, &body.Scene, &body.Priority,
			&body.Title, &body.Content, &body.BusinessID, &body.BusinessType,
			&body.ExtendData, &body.TriggerTime,
		); err != nil {
			return nil, fmt.Errorf("scan inbox row: %w", err)
		}
		out = append(out, &domain.InboxEntry{Recipient: &rec, Body: &body})
	}
	return out, rows.Err()
}
