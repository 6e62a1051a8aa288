package donation

import "time"

// Status tracks a donation offer through its lifecycle. The only legal edges
// are available->accepted, accepted->completed, and deletion while available.
type Status string

const (
	StatusAvailable Status = "available"
	StatusAccepted  Status = "accepted"
	StatusCompleted Status = "completed"
)

// CanTransition reports whether the edge from s to next exists in the state
// machine.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusAvailable:
		return next == StatusAccepted
	case StatusAccepted:
		return next == StatusCompleted
	default:
		return false
	}
}

// Donation is a surplus-food offer posted by a donor. AcceptedBy is empty
// while the donation is available and immutable once the donation completes.
type Donation struct {
	ID            string    `json:"id" db:"id"`
	DonorID       string    `json:"donorId" db:"donor_id"`
	FoodType      string    `json:"foodType" db:"food_type"`
	Quantity      string    `json:"quantity" db:"quantity"`
	ExpiryTime    string    `json:"expiryTime" db:"expiry_time"`
	PickupAddress string    `json:"pickupAddress" db:"pickup_address"`
	Description   string    `json:"description,omitempty" db:"description"`
	Status        Status    `json:"status" db:"status"`
	AcceptedBy    string    `json:"acceptedBy,omitempty" db:"accepted_by"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}
