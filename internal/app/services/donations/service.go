// Package donations owns the donation lifecycle state machine:
// available -> accepted -> completed, with deletion allowed only while
// available.
package donations

import (
	"context"
	"fmt"
	"strings"

	"github.com/mealbridge/mealbridge/internal/app/domain/donation"
	"github.com/mealbridge/mealbridge/internal/app/domain/notification"
	"github.com/mealbridge/mealbridge/internal/app/domain/user"
	"github.com/mealbridge/mealbridge/internal/app/storage"
	"github.com/mealbridge/mealbridge/internal/app/storage/rediscache"
	"github.com/mealbridge/mealbridge/internal/errors"
	"github.com/mealbridge/mealbridge/internal/logging"
)

// Service manages donation offers and their guarded transitions.
type Service struct {
	store    storage.DonationStore
	users    storage.UserStore
	notifier Notifier
	cache    *rediscache.Cache
	log      *logging.Logger
}

// Notifier receives the lifecycle side effects. Satisfied by the
// notifications service.
type Notifier interface {
	Emit(ctx context.Context, userID string, typ notification.Type, message string, contact notification.ContactDetails) (notification.Notification, error)
}

// New constructs a donation service. cache may be nil to disable listing
// caching.
func New(store storage.DonationStore, users storage.UserStore, notifier Notifier, cache *rediscache.Cache, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("donations")
	}
	return &Service{store: store, users: users, notifier: notifier, cache: cache, log: log}
}

// CreateParams carries the donation payload.
type CreateParams struct {
	FoodType      string
	Quantity      string
	ExpiryTime    string
	PickupAddress string
	Description   string
}

// Create posts a new available donation owned by donorID.
func (s *Service) Create(ctx context.Context, donorID string, params CreateParams) (donation.Donation, error) {
	params.FoodType = strings.TrimSpace(params.FoodType)
	params.Quantity = strings.TrimSpace(params.Quantity)
	params.ExpiryTime = strings.TrimSpace(params.ExpiryTime)
	params.PickupAddress = strings.TrimSpace(params.PickupAddress)

	if params.FoodType == "" {
		return donation.Donation{}, errors.Validation("foodType is required")
	}
	if params.Quantity == "" {
		return donation.Donation{}, errors.Validation("quantity is required")
	}
	if params.ExpiryTime == "" {
		return donation.Donation{}, errors.Validation("expiryTime is required")
	}
	if params.PickupAddress == "" {
		return donation.Donation{}, errors.Validation("pickupAddress is required")
	}

	donor, err := s.users.GetUser(ctx, donorID)
	if err != nil {
		return donation.Donation{}, err
	}
	if donor.Role != user.RoleDonor {
		return donation.Donation{}, errors.Forbidden("only donors can post donations")
	}

	don, err := s.store.CreateDonation(ctx, donation.Donation{
		DonorID:       donorID,
		FoodType:      params.FoodType,
		Quantity:      params.Quantity,
		ExpiryTime:    params.ExpiryTime,
		PickupAddress: params.PickupAddress,
		Description:   strings.TrimSpace(params.Description),
		Status:        donation.StatusAvailable,
	})
	if err != nil {
		return donation.Donation{}, err
	}
	s.cache.Invalidate(ctx)

	s.log.WithContext(ctx).
		WithField("donation_id", don.ID).
		WithField("donor_id", donorID).
		Info("donation created")
	return don, nil
}

// Accept claims an available donation for the acting recipient. The status
// flip is a single atomic check-and-set in the store, so of two concurrent
// acceptors exactly one wins; the other observes an invalid-transition
// error. The winning accept emits one notification to the donor carrying the
// recipient's contact snapshot.
func (s *Service) Accept(ctx context.Context, id, actorID string) (donation.Donation, error) {
	actor, err := s.users.GetUser(ctx, actorID)
	if err != nil {
		return donation.Donation{}, err
	}
	if actor.Role != user.RoleRecipient {
		return donation.Donation{}, errors.Forbidden("only recipients can accept donations")
	}

	don, err := s.store.TransitionDonation(ctx, id, donation.StatusAvailable, donation.StatusAccepted, actorID)
	if err != nil {
		return donation.Donation{}, err
	}
	s.cache.Invalidate(ctx)

	_, err = s.notifier.Emit(ctx, don.DonorID, notification.TypeDonationAccepted,
		fmt.Sprintf("Your donation of %s has been accepted!", don.FoodType),
		notification.ContactDetails{
			Name:    actor.DisplayName(),
			Phone:   actor.Phone,
			Address: actor.Address,
			Email:   actor.Email,
		})
	if err != nil {
		return donation.Donation{}, err
	}

	s.log.WithContext(ctx).
		WithField("donation_id", don.ID).
		WithField("claimant_id", actorID).
		Info("donation accepted")
	return don, nil
}

// Complete marks an accepted donation as handed over. Only the owning donor
// may complete, and only from the accepted state.
func (s *Service) Complete(ctx context.Context, id, actorID string) (donation.Donation, error) {
	don, err := s.store.GetDonation(ctx, id)
	if err != nil {
		return donation.Donation{}, err
	}
	if don.DonorID != actorID {
		return donation.Donation{}, errors.Forbidden("donation belongs to another donor")
	}

	don, err = s.store.TransitionDonation(ctx, id, donation.StatusAccepted, donation.StatusCompleted, "")
	if err != nil {
		return donation.Donation{}, err
	}

	s.log.WithContext(ctx).
		WithField("donation_id", don.ID).
		Info("donation completed")
	return don, nil
}

// Delete withdraws a donation. Permitted only while it is still available.
func (s *Service) Delete(ctx context.Context, id, actorID string) error {
	don, err := s.store.GetDonation(ctx, id)
	if err != nil {
		return err
	}
	if don.DonorID != actorID {
		return errors.Forbidden("donation belongs to another donor")
	}

	if err := s.store.DeleteDonation(ctx, id, donation.StatusAvailable); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)

	s.log.WithContext(ctx).
		WithField("donation_id", id).
		Info("donation deleted")
	return nil
}

// ListAvailable returns open donations, most-recent-first. Served from the
// cache when warm.
func (s *Service) ListAvailable(ctx context.Context) ([]donation.Donation, error) {
	if listing, ok := s.cache.GetAvailable(ctx); ok {
		return listing, nil
	}

	listing, err := s.store.ListAvailableDonations(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SetAvailable(ctx, listing)
	return listing, nil
}

// ListByDonor returns a donor's own donations, most-recent-first.
func (s *Service) ListByDonor(ctx context.Context, donorID string) ([]donation.Donation, error) {
	return s.store.ListDonationsByDonor(ctx, donorID)
}

// ListByClaimant returns the donations a recipient has accepted,
// most-recent-first.
func (s *Service) ListByClaimant(ctx context.Context, claimantID string) ([]donation.Donation, error) {
	return s.store.ListDonationsByClaimant(ctx, claimantID)
}
