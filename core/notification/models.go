package notification

import (
	"time"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"` // UTC, store-assigned
}

// Message is the template fanned out to every recipient of an event.
type Message struct {
	Title string
	Body  string
	// HTMLBody is used for the email channel when set; Body is the fallback.
	HTMLBody string
}

// Recipient identifies one fan-out target. Email is optional; when set, an
// outbound mail is produced alongside the in-app notification.
type Recipient struct {
	UserID string
	Name   string
	Email  string
}

// RecipientError reports one failed recipient of a fan-out.
type RecipientError struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

// Result is the structured outcome of a fan-out: partial failure is reported,
// not swallowed.
type Result struct {
	Delivered int              `json:"delivered"`
	Failed    []RecipientError `json:"failed,omitempty"`
}

func (r Result) AllDelivered() bool { return len(r.Failed) == 0 }
