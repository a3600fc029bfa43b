package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a recipient row does not exist or does not
// belong to the requesting user.
var ErrNotFound = errors.New("message recipient not found")

// MessageRepository is the persistence boundary for message bodies and
// recipient rows. Implementations must make MarkRead, MarkResolved and
// MarkExpired conditional updates: they return false without error when the
// row had already left the state the transition requires, which is how the
// user-vs-sweeper race converges to a single terminal state.
type MessageRepository interface {
	// Save persists a body and its recipient rows atomically.
	Save(ctx context.Context, body *MessageBody, recipients []*MessageRecipient) error

	// FindPendingOlderThan returns recipient rows for the scene that are
	// still pending (neither read nor expired) and were triggered before
	// the cutoff.
	FindPendingOlderThan(ctx context.Context, scene Scene, cutoff time.Time) ([]*MessageRecipient, error)

	// MarkExpired flips a still-pending row to expired. Returns false when
	// the row was no longer pending at update time.
	MarkExpired(ctx context.Context, recipientID int64, at time.Time) (bool, error)

	// AppendExpiryNotice appends a human-readable expiry notice to the
	// owning body's content. Callers invoke it only after MarkExpired
	// reported success, which keeps the suffix from being applied twice.
	AppendExpiryNotice(ctx context.Context, bodyID int64, notice string) error

	// MarkRead marks a row read on behalf of its receiver. Returns false
	// when the row was already read or expired.
	MarkRead(ctx context.Context, recipientID, receiverID int64, at time.Time) (bool, error)

	// MarkResolved records the receiver's accept/reject of an actionable
	// row. Returns false when the row was no longer pending.
	MarkResolved(ctx context.Context, recipientID, receiverID int64, at time.Time) (bool, error)

	// ListForUser returns the user's inbox, newest first, with the owning
	// bodies loaded. The pull path for pushes missed while offline.
	// onlyUnread restricts to rows still needing attention: unread and
	// not expired.
	ListForUser(ctx context.Context, receiverID int64, onlyUnread bool, limit, offset int) ([]*InboxEntry, error)
}

// InboxEntry pairs a recipient row with its message body for list queries.
type InboxEntry struct {
	Recipient *MessageRecipient
	Body      *MessageBody
}
