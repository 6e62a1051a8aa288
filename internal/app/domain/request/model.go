package request

import "time"

// Status tracks a recipient's expressed need. Mirror of the donation state
// machine with reversed polarity: pending->fulfilled, pending->cancelled.
type Status string

const (
	StatusPending   Status = "pending"
	StatusFulfilled Status = "fulfilled"
	StatusCancelled Status = "cancelled"
)

// CanTransition reports whether the edge from s to next exists in the state
// machine.
func (s Status) CanTransition(next Status) bool {
	return s == StatusPending && (next == StatusFulfilled || next == StatusCancelled)
}

// Urgency is a coarse priority hint supplied by the requester.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Valid reports whether the urgency is one of the known values.
func (u Urgency) Valid() bool {
	return u == UrgencyLow || u == UrgencyMedium || u == UrgencyHigh
}

// Request is a recipient-initiated need. FulfilledBy is set exactly once, by
// the guarded pending->fulfilled transition.
type Request struct {
	ID          string    `json:"id" db:"id"`
	RecipientID string    `json:"recipientId" db:"recipient_id"`
	FoodType    string    `json:"foodType" db:"food_type"`
	Quantity    string    `json:"quantity" db:"quantity"`
	Urgency     Urgency   `json:"urgency" db:"urgency"`
	Description string    `json:"description,omitempty" db:"description"`
	Status      Status    `json:"status" db:"status"`
	FulfilledBy string    `json:"fulfilledBy,omitempty" db:"fulfilled_by"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}
