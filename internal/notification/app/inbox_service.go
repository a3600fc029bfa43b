package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/labhub-io/labhub/internal/notification/domain"
)

// ResolveAction is the user's answer to an actionable message.
type ResolveAction string

const (
	ResolveAccept ResolveAction = "accept"
	ResolveReject ResolveAction = "reject"
)

var errNoRecipients = errors.New("at least one recipient is required")

// InboxService creates messages and drives their lifecycle. Creation
// persists the body plus recipient rows first and only then enqueues push
// delivery, so a lost push is always recoverable through List.
type InboxService struct {
	repo       domain.MessageRepository
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewInboxService creates the inbox service.
func NewInboxService(repo domain.MessageRepository, dispatcher *Dispatcher, logger *slog.Logger) *InboxService {
	return &InboxService{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     logger.With("component", "inbox"),
	}
}

// SendToUsers persists a personal message for the given recipients and
// enqueues best-effort push delivery to each of them. senderID nil means a
// system-generated message.
func (s *InboxService) SendToUsers(ctx context.Context, scene domain.Scene, senderID *int64, receiverIDs []int64, title, content string, businessID *int64, businessType string, extendData json.RawMessage) (*domain.MessageBody, error) {
	if len(receiverIDs) == 0 {
		return nil, errNoRecipients
	}

	body := domain.NewMessageBody(domain.MessageTypePersonal, scene, senderID, title, content, businessID, businessType, extendData)

	recipients := make([]*domain.MessageRecipient, 0, len(receiverIDs))
	for _, id := range receiverIDs {
		recipients = append(recipients, body.NewRecipient(id))
	}

	if err := s.repo.Save(ctx, body, recipients); err != nil {
		return nil, fmt.Errorf("persist message %d: %w", body.ID, err)
	}

	n := domain.NotificationFrom(body)
	for _, id := range receiverIDs {
		s.dispatcher.EnqueueForUser(id, n)
	}

	s.logger.InfoContext(ctx, "Message created",
		"message_id", body.ID, "scene", scene, "recipients", len(receiverIDs))
	return body, nil
}

// SendBroadcast persists a broadcast message and enqueues a push to every
// connected user across the cluster.
func (s *InboxService) SendBroadcast(ctx context.Context, scene domain.Scene, senderID *int64, title, content string, businessID *int64, businessType string, extendData json.RawMessage) (*domain.MessageBody, error) {
	body := domain.NewMessageBody(domain.MessageTypeBroadcast, scene, senderID, title, content, businessID, businessType, extendData)

	if err := s.repo.Save(ctx, body, nil); err != nil {
		return nil, fmt.Errorf("persist broadcast %d: %w", body.ID, err)
	}

	s.dispatcher.EnqueueBroadcast(domain.NotificationFrom(body))

	s.logger.InfoContext(ctx, "Broadcast created", "message_id", body.ID, "scene", scene)
	return body, nil
}

// MarkRead marks one of the user's recipient rows read. Returns false when
// the row was already read or expired.
func (s *InboxService) MarkRead(ctx context.Context, recipientID, userID int64) (bool, error) {
	return s.repo.MarkRead(ctx, recipientID, userID, time.Now().UTC())
}

// Resolve records the user's accept/reject of an actionable message.
// Returns false when the row was no longer pending — typically because the
// sweeper expired it first; the caller should tell the user the window has
// closed.
func (s *InboxService) Resolve(ctx context.Context, recipientID, userID int64, action ResolveAction) (bool, error) {
	if action != ResolveAccept && action != ResolveReject {
		return false, fmt.Errorf("unknown resolve action %q", action)
	}

	ok, err := s.repo.MarkResolved(ctx, recipientID, userID, time.Now().UTC())
	if err != nil {
		return false, err
	}
	if ok {
		s.logger.InfoContext(ctx, "Actionable message resolved",
			"recipient_id", recipientID, "user_id", userID, "action", action)
	}
	return ok, nil
}

// List returns the user's inbox, newest first. This is the pull path for
// notifications missed while disconnected.
func (s *InboxService) List(ctx context.Context, userID int64, onlyUnread bool, limit, offset int) ([]*domain.InboxEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListForUser(ctx, userID, onlyUnread, limit, offset)
}
