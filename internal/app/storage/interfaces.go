package storage

import (
	"context"

	"github.com/mealbridge/mealbridge/internal/app/domain/donation"
	"github.com/mealbridge/mealbridge/internal/app/domain/feedback"
	"github.com/mealbridge/mealbridge/internal/app/domain/notification"
	"github.com/mealbridge/mealbridge/internal/app/domain/request"
	"github.com/mealbridge/mealbridge/internal/app/domain/user"
)

// UserStore persists account records. CreateUser fails with the
// duplicate-email taxonomy error when the email is already registered.
type UserStore interface {
	CreateUser(ctx context.Context, usr user.User) (user.User, error)
	UpdateUser(ctx context.Context, usr user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
}

// DonationStore persists donations. TransitionDonation is the single atomic
// check-and-set on the status column: it moves the donation from `from` to
// `to` and records the claimant in one conditional update. Exactly one of
// two concurrent callers can win; the loser observes the invalid-transition
// taxonomy error.
type DonationStore interface {
	CreateDonation(ctx context.Context, don donation.Donation) (donation.Donation, error)
	GetDonation(ctx context.Context, id string) (donation.Donation, error)
	ListAvailableDonations(ctx context.Context) ([]donation.Donation, error)
	ListDonationsByDonor(ctx context.Context, donorID string) ([]donation.Donation, error)
	ListDonationsByClaimant(ctx context.Context, claimantID string) ([]donation.Donation, error)
	TransitionDonation(ctx context.Context, id string, from, to donation.Status, claimantID string) (donation.Donation, error)
	DeleteDonation(ctx context.Context, id string, from donation.Status) error
}

// RequestStore persists food requests, mirroring DonationStore's guarded
// transition semantics.
type RequestStore interface {
	CreateRequest(ctx context.Context, req request.Request) (request.Request, error)
	GetRequest(ctx context.Context, id string) (request.Request, error)
	ListPendingRequests(ctx context.Context) ([]request.Request, error)
	ListRequestsByRecipient(ctx context.Context, recipientID string) ([]request.Request, error)
	TransitionRequest(ctx context.Context, id string, from, to request.Status, fulfillerID string) (request.Request, error)
}

// NotificationStore persists the append-only notification log.
type NotificationStore interface {
	CreateNotification(ctx context.Context, ntf notification.Notification) (notification.Notification, error)
	GetNotification(ctx context.Context, id string) (notification.Notification, error)
	ListNotificationsForUser(ctx context.Context, userID string) ([]notification.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) (notification.Notification, error)
}

// FeedbackStore persists the append-only feedback log.
type FeedbackStore interface {
	CreateFeedback(ctx context.Context, fb feedback.Feedback) (feedback.Feedback, error)
	ListFeedback(ctx context.Context, limit int) ([]feedback.Feedback, error)
	ListFeedbackByUser(ctx context.Context, userID string) ([]feedback.Feedback, error)
}
