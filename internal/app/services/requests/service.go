// Package requests owns the food-request lifecycle, the mirror of the
// donation state machine: pending -> fulfilled, pending -> cancelled.
package requests

import (
	"context"
	"fmt"
	"strings"

	"github.com/mealbridge/mealbridge/internal/app/domain/notification"
	"github.com/mealbridge/mealbridge/internal/app/domain/request"
	"github.com/mealbridge/mealbridge/internal/app/domain/user"
	"github.com/mealbridge/mealbridge/internal/app/storage"
	"github.com/mealbridge/mealbridge/internal/errors"
	"github.com/mealbridge/mealbridge/internal/logging"
)

// Service manages recipient requests and their guarded transitions.
type Service struct {
	store    storage.RequestStore
	users    storage.UserStore
	notifier Notifier
	log      *logging.Logger
}

// Notifier receives the fulfillment side effect. Satisfied by the
// notifications service.
type Notifier interface {
	Emit(ctx context.Context, userID string, typ notification.Type, message string, contact notification.ContactDetails) (notification.Notification, error)
}

// New constructs a request service.
func New(store storage.RequestStore, users storage.UserStore, notifier Notifier, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("requests")
	}
	return &Service{store: store, users: users, notifier: notifier, log: log}
}

// CreateParams carries the request payload.
type CreateParams struct {
	FoodType    string
	Quantity    string
	Urgency     request.Urgency
	Description string
}

// Create posts a new pending request owned by recipientID.
func (s *Service) Create(ctx context.Context, recipientID string, params CreateParams) (request.Request, error) {
	params.FoodType = strings.TrimSpace(params.FoodType)
	params.Quantity = strings.TrimSpace(params.Quantity)

	if params.FoodType == "" {
		return request.Request{}, errors.Validation("foodType is required")
	}
	if params.Quantity == "" {
		return request.Request{}, errors.Validation("quantity is required")
	}
	if !params.Urgency.Valid() {
		return request.Request{}, errors.Validation("urgency must be low, medium, or high")
	}

	recipient, err := s.users.GetUser(ctx, recipientID)
	if err != nil {
		return request.Request{}, err
	}
	if recipient.Role != user.RoleRecipient {
		return request.Request{}, errors.Forbidden("only recipients can post requests")
	}

	req, err := s.store.CreateRequest(ctx, request.Request{
		RecipientID: recipientID,
		FoodType:    params.FoodType,
		Quantity:    params.Quantity,
		Urgency:     params.Urgency,
		Description: strings.TrimSpace(params.Description),
		Status:      request.StatusPending,
	})
	if err != nil {
		return request.Request{}, err
	}

	s.log.WithContext(ctx).
		WithField("request_id", req.ID).
		WithField("recipient_id", recipientID).
		Info("request created")
	return req, nil
}

// Fulfill satisfies a pending request on behalf of the acting donor. Guarded
// by the same atomic check-and-set as donation acceptance: a concurrent
// second fulfiller observes an invalid-transition error. The winner emits
// one notification to the requester with the donor's contact snapshot.
func (s *Service) Fulfill(ctx context.Context, id, actorID string) (request.Request, error) {
	actor, err := s.users.GetUser(ctx, actorID)
	if err != nil {
		return request.Request{}, err
	}
	if actor.Role != user.RoleDonor {
		return request.Request{}, errors.Forbidden("only donors can fulfill requests")
	}

	req, err := s.store.TransitionRequest(ctx, id, request.StatusPending, request.StatusFulfilled, actorID)
	if err != nil {
		return request.Request{}, err
	}

	_, err = s.notifier.Emit(ctx, req.RecipientID, notification.TypeRequestFulfilled,
		fmt.Sprintf("Your request for %s has been fulfilled!", req.FoodType),
		notification.ContactDetails{
			Name:    actor.Name,
			Phone:   actor.Phone,
			Address: actor.Address,
			Email:   actor.Email,
		})
	if err != nil {
		return request.Request{}, err
	}

	s.log.WithContext(ctx).
		WithField("request_id", req.ID).
		WithField("fulfiller_id", actorID).
		Info("request fulfilled")
	return req, nil
}

// Cancel withdraws a pending request. Only the owning recipient may cancel,
// and only while the request is still pending.
func (s *Service) Cancel(ctx context.Context, id, actorID string) (request.Request, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return request.Request{}, err
	}
	if req.RecipientID != actorID {
		return request.Request{}, errors.Forbidden("request belongs to another recipient")
	}

	req, err = s.store.TransitionRequest(ctx, id, request.StatusPending, request.StatusCancelled, "")
	if err != nil {
		return request.Request{}, err
	}

	s.log.WithContext(ctx).
		WithField("request_id", req.ID).
		Info("request cancelled")
	return req, nil
}

// ListPending returns open requests, most-recent-first.
func (s *Service) ListPending(ctx context.Context) ([]request.Request, error) {
	return s.store.ListPendingRequests(ctx)
}

// ListByRecipient returns a recipient's own requests, most-recent-first.
func (s *Service) ListByRecipient(ctx context.Context, recipientID string) ([]request.Request, error) {
	return s.store.ListRequestsByRecipient(ctx, recipientID)
}
