package domain

import (
	"encoding/json"
	"time"
)

// Notification is the outbound payload pushed to clients. The JSON field
// names are part of the client contract and must stay stable.
type Notification struct {
	MessageID    int64           `json:"messageId"`
	Scene        Scene           `json:"scene"`
	Priority     Priority        `json:"priority"`
	Title        string          `json:"title"`
	Content      string          `json:"content"`
	BusinessID   *int64          `json:"businessId"`
	BusinessType string          `json:"businessType"`
	ExtendData   json.RawMessage `json:"extendData,omitempty"`
	TriggerTime  time.Time       `json:"triggerTime"`
}

// NotificationFrom converts a message body into its push payload.
func NotificationFrom(b *MessageBody) Notification {
	return Notification{
		MessageID:    b.ID,
		Scene:        b.Scene,
		Priority:     b.Priority,
		Title:        b.Title,
		Content:      b.Content,
		BusinessID:   b.BusinessID,
		BusinessType: b.BusinessType,
		ExtendData:   b.ExtendData,
		TriggerTime:  b.TriggerTime,
	}
}

// Envelope is the frame published on the fan-out bus. Every instance
// receives every envelope; Origin lets a subscriber skip frames it
// published itself, since the dispatcher already delivered those locally.
type Envelope struct {
	Origin       string       `json:"origin"`
	Broadcast    bool         `json:"broadcast"`
	ReceiverID   int64        `json:"receiverId,omitempty"`
	Notification Notification `json:"notification"`
}
