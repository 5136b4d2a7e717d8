package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationCode classifies a notification for client rendering.
type NotificationCode string

const (
	NotificationCodeSuccess NotificationCode = "success"
	NotificationCodeWarning NotificationCode = "warning"
	NotificationCodeError   NotificationCode = "error"
	NotificationCodeInfo    NotificationCode = "info"
)

// NormalizeCode coerces unrecognized codes to info.
func NormalizeCode(code NotificationCode) NotificationCode {
	switch code {
	case NotificationCodeSuccess, NotificationCodeWarning, NotificationCodeError, NotificationCodeInfo:
		return code
	default:
		return NotificationCodeInfo
	}
}

// Notification is the durable record of an event addressed to one user.
// Once created it is immutable except for the single is_read transition,
// which never goes back to false.
type Notification struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	RecipientID uuid.UUID        `json:"recipient_id" db:"recipient_id"`
	ActorID     *uuid.UUID       `json:"actor_id" db:"actor_id"`
	Title       string           `json:"title" db:"title"`
	Description string           `json:"description" db:"description"`
	Code        NotificationCode `json:"code" db:"code"`
	URL         string           `json:"url" db:"url"`
	IsRead      bool             `json:"is_read" db:"is_read"`
	SentAt      time.Time        `json:"sent_at" db:"sent_at"`
}

// Actor is the lightweight projection of the user who caused a
// notification, built once per notify call and shared between the persisted
// record's response and every live push.
type Actor struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

// PushMessage is the wire shape delivered to a recipient's broadcast group
// for a durable notification.
type PushMessage struct {
	ID          uuid.UUID        `json:"id"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Code        NotificationCode `json:"code"`
	URL         string           `json:"url,omitempty"`
	IsRead      bool             `json:"is_read"`
	IsPushNotif bool             `json:"is_push_notif"`
	Actor       *Actor           `json:"actor,omitempty"`
	SentAt      time.Time        `json:"sent_at"`
}

// LiveMessage is an ephemeral push with no persisted counterpart. The
// live_update tag lets receivers tell it apart from a stored notification.
type LiveMessage map[string]interface{}

// NewLiveMessage tags a payload as a live update.
func NewLiveMessage(payload map[string]interface{}) LiveMessage {
	msg := make(LiveMessage, len(payload)+1)
	for k, v := range payload {
		msg[k] = v
	}
	msg["live_update"] = true
	return msg
}
