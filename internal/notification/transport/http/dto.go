package http

import (
	"encoding/json"
	"time"

	"github.com/labhub-io/labhub/internal/notification/domain"
)

// SendMessageRequest is the diagnostic direct-send body for POST /push/send.
type SendMessageRequest struct {
	UserID  int64  `json:"user_id"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// BroadcastRequest is the diagnostic broadcast body for POST /push/broadcast.
type BroadcastRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// ResolveRequest carries the user's answer to an actionable message.
type ResolveRequest struct {
	Action string `json:"action"` // "accept" or "reject"
}

// InboxItemResponse is one inbox entry in GET /messages responses.
type InboxItemResponse struct {
	RecipientID  int64           `json:"recipientId"`
	MessageID    int64           `json:"messageId"`
	Scene        domain.Scene    `json:"scene"`
	Priority     domain.Priority `json:"priority"`
	Title        string          `json:"title"`
	Content      string          `json:"content"`
	BusinessID   *int64          `json:"businessId"`
	BusinessType string          `json:"businessType"`
	ExtendData   json.RawMessage `json:"extendData,omitempty"`
	Read         bool            `json:"read"`
	ReadAt       *time.Time      `json:"readAt,omitempty"`
	Expired      bool            `json:"expired"`
	ExpiredAt    *time.Time      `json:"expiredAt,omitempty"`
	TriggerTime  time.Time       `json:"triggerTime"`
}

func inboxItemFrom(e *domain.InboxEntry) InboxItemResponse {
	return InboxItemResponse{
		RecipientID:  e.Recipient.ID,
		MessageID:    e.Body.ID,
		Scene:        e.Body.Scene,
		Priority:     e.Body.Priority,
		Title:        e.Body.Title,
		Content:      e.Body.Content,
		BusinessID:   e.Body.BusinessID,
		BusinessType: e.Body.BusinessType,
		ExtendData:   e.Body.ExtendData,
		Read:         e.Recipient.ReadFlag,
		ReadAt:       e.Recipient.ReadAt,
		Expired:      e.Recipient.Expired,
		ExpiredAt:    e.Recipient.ExpiredAt,
		TriggerTime:  e.Recipient.TriggerTime,
	}
}
