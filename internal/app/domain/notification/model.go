package notification

import "time"

// Type identifies the lifecycle transition that produced a notification.
type Type string

const (
	TypeDonationAccepted Type = "donation_accepted"
	TypeRequestFulfilled Type = "request_fulfilled"
)

// ContactDetails is a denormalized copy of the counterparty's contact fields
// taken at the moment of the transition. Later profile edits do not touch it.
type ContactDetails struct {
	Name    string `json:"name" db:"name"`
	Phone   string `json:"phone" db:"phone"`
	Address string `json:"address" db:"address"`
	Email   string `json:"email" db:"email"`
}

// Notification is an append-only per-user message. Only the Read flag may
// change after creation.
type Notification struct {
	ID             string         `json:"id" db:"id"`
	UserID         string         `json:"userId" db:"user_id"`
	Message        string         `json:"message" db:"message"`
	Type           Type           `json:"type" db:"type"`
	ContactDetails ContactDetails `json:"contactDetails" db:"-"`
	Read           bool           `json:"isRead" db:"is_read"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
}
