// Package feedback is the append-only rating log. It is independent of the
// donation and request lifecycles.
package feedback

import (
	"context"
	"strings"

	"github.com/mealbridge/mealbridge/internal/app/domain/feedback"
	"github.com/mealbridge/mealbridge/internal/app/storage"
	"github.com/mealbridge/mealbridge/internal/errors"
	"github.com/mealbridge/mealbridge/internal/logging"
)

// DefaultListLimit caps the public listing.
const DefaultListLimit = 50

// Service manages the feedback log.
type Service struct {
	store storage.FeedbackStore
	users storage.UserStore
	log   *logging.Logger
}

// New constructs a feedback service.
func New(store storage.FeedbackStore, users storage.UserStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("feedback")
	}
	return &Service{store: store, users: users, log: log}
}

// Submit appends a rating record, denormalizing the submitter's identity at
// submit time.
func (s *Service) Submit(ctx context.Context, userID string, rating int, message string) (feedback.Feedback, error) {
	if rating < feedback.MinRating || rating > feedback.MaxRating {
		return feedback.Feedback{}, errors.Validation("rating must be between 1 and 5")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return feedback.Feedback{}, errors.Validation("message is required")
	}

	usr, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return feedback.Feedback{}, err
	}

	fb, err := s.store.CreateFeedback(ctx, feedback.Feedback{
		UserID:  userID,
		Name:    usr.DisplayName(),
		Email:   usr.Email,
		Role:    string(usr.Role),
		Rating:  rating,
		Message: message,
	})
	if err != nil {
		return feedback.Feedback{}, err
	}

	s.log.WithContext(ctx).
		WithField("feedback_id", fb.ID).
		WithField("rating", rating).
		Info("feedback submitted")
	return fb, nil
}

// ListAll returns recent feedback, most-recent-first, capped at
// DefaultListLimit entries.
func (s *Service) ListAll(ctx context.Context, limit int) ([]feedback.Feedback, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	return s.store.ListFeedback(ctx, limit)
}

// ListFor returns one user's feedback, most-recent-first, unbounded.
func (s *Service) ListFor(ctx context.Context, userID string) ([]feedback.Feedback, error) {
	return s.store.ListFeedbackByUser(ctx, userID)
}
