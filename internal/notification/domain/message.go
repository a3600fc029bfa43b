package domain

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// MessageType classifies how a message is addressed.
type MessageType string

const (
	// MessageTypePersonal targets specific users.
	MessageTypePersonal MessageType = "PERSONAL"
	// MessageTypeGroup targets all members of a group.
	MessageTypeGroup MessageType = "GROUP"
	// MessageTypeBroadcast targets every user on the platform.
	MessageTypeBroadcast MessageType = "BROADCAST"
)

// MessageBody is the shared, immutable message envelope. One body is shared
// by every recipient row created for it. After persistence only Content may
// change, and only to gain the sweeper's expiry notice suffix.
type MessageBody struct {
	ID           int64
	SenderID     *int64 // nil means system-generated
	MessageType  MessageType
	Scene        Scene
	Priority     Priority
	Title        string
	Content      string
	BusinessID   *int64
	BusinessType string
	ExtendData   json.RawMessage
	TriggerTime  time.Time
}

// MessageRecipient is the per-user mutable delivery record for a body.
// It is the only structure mutated by two independent actors (the user
// reading/resolving it and the expiry sweeper), so all terminal-state
// transitions go through guarded conditional updates in the repository.
type MessageRecipient struct {
	ID            int64
	MessageBodyID int64
	ReceiverID    int64
	SceneCode     Scene // denormalized copy of the body's scene
	ReadFlag      bool
	ReadAt        *time.Time
	Expired       bool
	ExpiredAt     *time.Time
	TriggerTime   time.Time
}

// Pending reports whether the row is still awaiting either a user
// resolution or the sweeper's expiry.
func (r *MessageRecipient) Pending() bool {
	return !r.ReadFlag && !r.Expired
}

// NewMessageBody builds a message body with its id assigned and the
// priority derived from the scene.
func NewMessageBody(msgType MessageType, scene Scene, senderID *int64, title, content string, businessID *int64, businessType string, extendData json.RawMessage) *MessageBody {
	return &MessageBody{
		ID:           NextID(),
		SenderID:     senderID,
		MessageType:  msgType,
		Scene:        scene,
		Priority:     PriorityOf(scene),
		Title:        title,
		Content:      content,
		BusinessID:   businessID,
		BusinessType: businessType,
		ExtendData:   extendData,
		TriggerTime:  time.Now().UTC(),
	}
}

// NewRecipient builds the delivery record binding a body to one user.
func (b *MessageBody) NewRecipient(receiverID int64) *MessageRecipient {
	return &MessageRecipient{
		MessageBodyID: b.ID,
		ReceiverID:    receiverID,
		SceneCode:     b.Scene,
		TriggerTime:   b.TriggerTime,
	}
}

var idSeq atomic.Int64

// NextID returns a roughly time-ordered 63-bit id: millisecond timestamp in
// the high bits, a wrapping per-process sequence in the low 20. Ids only
// need to be unique, not gapless.
func NextID() int64 {
	seq := idSeq.Add(1) & 0xFFFFF
	return time.Now().UnixMilli()<<20 | seq
}
