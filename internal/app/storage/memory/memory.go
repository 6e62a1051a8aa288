// Package memory is an in-memory implementation of the storage interfaces.
// It is safe for concurrent use and is primarily intended for tests and
// local development.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mealbridge/mealbridge/internal/app/domain/donation"
	"github.com/mealbridge/mealbridge/internal/app/domain/feedback"
	"github.com/mealbridge/mealbridge/internal/app/domain/notification"
	"github.com/mealbridge/mealbridge/internal/app/domain/request"
	"github.com/mealbridge/mealbridge/internal/app/domain/user"
	"github.com/mealbridge/mealbridge/internal/app/storage"
	"github.com/mealbridge/mealbridge/internal/errors"
)

// Store holds every entity map behind one mutex, which is what makes the
// guarded transitions atomic here.
type Store struct {
	mu     sync.RWMutex
	nextID int64

	users        map[string]user.User
	usersByEmail map[string]string

	donations     map[string]donation.Donation
	donationOrder []string

	requests     map[string]request.Request
	requestOrder []string

	notifications     map[string]notification.Notification
	notificationOrder []string

	feedback      map[string]feedback.Feedback
	feedbackOrder []string
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.DonationStore = (*Store)(nil)
var _ storage.RequestStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)
var _ storage.FeedbackStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:        1,
		users:         make(map[string]user.User),
		usersByEmail:  make(map[string]string),
		donations:     make(map[string]donation.Donation),
		requests:      make(map[string]request.Request),
		notifications: make(map[string]notification.Notification),
		feedback:      make(map[string]feedback.Feedback),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// UserStore implementation --------------------------------------------------

func (s *Store) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	emailKey := strings.ToLower(strings.TrimSpace(usr.Email))
	if _, exists := s.usersByEmail[emailKey]; exists {
		return user.User{}, errors.DuplicateEmail(usr.Email)
	}

	if usr.ID == "" {
		usr.ID = s.nextIDLocked()
	} else if _, exists := s.users[usr.ID]; exists {
		return user.User{}, errors.Internal(fmt.Sprintf("user %s already exists", usr.ID), nil)
	}

	now := time.Now().UTC()
	usr.CreatedAt = now
	usr.UpdatedAt = now

	s.users[usr.ID] = usr
	s.usersByEmail[emailKey] = usr.ID
	return usr, nil
}

func (s *Store) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[usr.ID]
	if !ok {
		return user.User{}, errors.NotFound("user", usr.ID)
	}

	// Email and role never change post-registration.
	usr.Email = original.Email
	usr.Role = original.Role
	usr.CreatedAt = original.CreatedAt
	usr.UpdatedAt = time.Now().UTC()

	s.users[usr.ID] = usr
	return usr, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	usr, ok := s.users[id]
	if !ok {
		return user.User{}, errors.NotFound("user", id)
	}
	return usr, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return user.User{}, errors.NotFound("user", email)
	}
	return s.users[id], nil
}

// DonationStore implementation ----------------------------------------------

func (s *Store) CreateDonation(_ context.Context, don donation.Donation) (donation.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if don.ID == "" {
		don.ID = s.nextIDLocked()
	} else if _, exists := s.donations[don.ID]; exists {
		return donation.Donation{}, errors.Internal(fmt.Sprintf("donation %s already exists", don.ID), nil)
	}

	now := time.Now().UTC()
	don.CreatedAt = now
	don.UpdatedAt = now

	s.donations[don.ID] = don
	s.donationOrder = append(s.donationOrder, don.ID)
	return don, nil
}

func (s *Store) GetDonation(_ context.Context, id string) (donation.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	don, ok := s.donations[id]
	if !ok {
		return donation.Donation{}, errors.NotFound("donation", id)
	}
	return don, nil
}

func (s *Store) ListAvailableDonations(_ context.Context) ([]donation.Donation, error) {
	return s.listDonations(func(d donation.Donation) bool {
		return d.Status == donation.StatusAvailable
	}), nil
}

func (s *Store) ListDonationsByDonor(_ context.Context, donorID string) ([]donation.Donation, error) {
	return s.listDonations(func(d donation.Donation) bool {
		return d.DonorID == donorID
	}), nil
}

func (s *Store) ListDonationsByClaimant(_ context.Context, claimantID string) ([]donation.Donation, error) {
	return s.listDonations(func(d donation.Donation) bool {
		return d.AcceptedBy == claimantID
	}), nil
}

// listDonations returns matches most-recent-first.
func (s *Store) listDonations(match func(donation.Donation) bool) []donation.Donation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]donation.Donation, 0)
	for i := len(s.donationOrder) - 1; i >= 0; i-- {
		don, ok := s.donations[s.donationOrder[i]]
		if ok && match(don) {
			result = append(result, don)
		}
	}
	return result
}

func (s *Store) TransitionDonation(_ context.Context, id string, from, to donation.Status, claimantID string) (donation.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !from.CanTransition(to) {
		return donation.Donation{}, errors.InvalidTransition(
			fmt.Sprintf("no %s to %s edge", from, to))
	}

	don, ok := s.donations[id]
	if !ok {
		return donation.Donation{}, errors.NotFound("donation", id)
	}
	if don.Status != from {
		return donation.Donation{}, errors.InvalidTransition(
			fmt.Sprintf("donation is %s, expected %s", don.Status, from))
	}

	don.Status = to
	if claimantID != "" {
		don.AcceptedBy = claimantID
	}
	don.UpdatedAt = time.Now().UTC()

	s.donations[id] = don
	return don, nil
}

func (s *Store) DeleteDonation(_ context.Context, id string, from donation.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	don, ok := s.donations[id]
	if !ok {
		return errors.NotFound("donation", id)
	}
	if don.Status != from {
		return errors.InvalidTransition(
			fmt.Sprintf("donation is %s, expected %s", don.Status, from))
	}

	delete(s.donations, id)
	return nil
}

// RequestStore implementation -----------------------------------------------

func (s *Store) CreateRequest(_ context.Context, req request.Request) (request.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ID == "" {
		req.ID = s.nextIDLocked()
	} else if _, exists := s.requests[req.ID]; exists {
		return request.Request{}, errors.Internal(fmt.Sprintf("request %s already exists", req.ID), nil)
	}

	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	s.requests[req.ID] = req
	s.requestOrder = append(s.requestOrder, req.ID)
	return req, nil
}

func (s *Store) GetRequest(_ context.Context, id string) (request.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return request.Request{}, errors.NotFound("request", id)
	}
	return req, nil
}

func (s *Store) ListPendingRequests(_ context.Context) ([]request.Request, error) {
	return s.listRequests(func(r request.Request) bool {
		return r.Status == request.StatusPending
	}), nil
}

func (s *Store) ListRequestsByRecipient(_ context.Context, recipientID string) ([]request.Request, error) {
	return s.listRequests(func(r request.Request) bool {
		return r.RecipientID == recipientID
	}), nil
}

func (s *Store) listRequests(match func(request.Request) bool) []request.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]request.Request, 0)
	for i := len(s.requestOrder) - 1; i >= 0; i-- {
		req, ok := s.requests[s.requestOrder[i]]
		if ok && match(req) {
			result = append(result, req)
		}
	}
	return result
}

func (s *Store) TransitionRequest(_ context.Context, id string, from, to request.Status, fulfillerID string) (request.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !from.CanTransition(to) {
		return request.Request{}, errors.InvalidTransition(
			fmt.Sprintf("no %s to %s edge", from, to))
	}

	req, ok := s.requests[id]
	if !ok {
		return request.Request{}, errors.NotFound("request", id)
	}
	if req.Status != from {
		return request.Request{}, errors.InvalidTransition(
			fmt.Sprintf("request is %s, expected %s", req.Status, from))
	}

	req.Status = to
	if fulfillerID != "" {
		req.FulfilledBy = fulfillerID
	}
	req.UpdatedAt = time.Now().UTC()

	s.requests[id] = req
	return req, nil
}

// NotificationStore implementation ------------------------------------------

func (s *Store) CreateNotification(_ context.Context, ntf notification.Notification) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ntf.ID == "" {
		ntf.ID = s.nextIDLocked()
	}
	ntf.CreatedAt = time.Now().UTC()

	s.notifications[ntf.ID] = ntf
	s.notificationOrder = append(s.notificationOrder, ntf.ID)
	return ntf, nil
}

func (s *Store) GetNotification(_ context.Context, id string) (notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ntf, ok := s.notifications[id]
	if !ok {
		return notification.Notification{}, errors.NotFound("notification", id)
	}
	return ntf, nil
}

func (s *Store) ListNotificationsForUser(_ context.Context, userID string) ([]notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]notification.Notification, 0)
	for i := len(s.notificationOrder) - 1; i >= 0; i-- {
		ntf, ok := s.notifications[s.notificationOrder[i]]
		if ok && ntf.UserID == userID {
			result = append(result, ntf)
		}
	}
	return result, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id string) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ntf, ok := s.notifications[id]
	if !ok {
		return notification.Notification{}, errors.NotFound("notification", id)
	}

	ntf.Read = true
	s.notifications[id] = ntf
	return ntf, nil
}

// FeedbackStore implementation ----------------------------------------------

func (s *Store) CreateFeedback(_ context.Context, fb feedback.Feedback) (feedback.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fb.ID == "" {
		fb.ID = s.nextIDLocked()
	}
	fb.CreatedAt = time.Now().UTC()

	s.feedback[fb.ID] = fb
	s.feedbackOrder = append(s.feedbackOrder, fb.ID)
	return fb, nil
}

func (s *Store) ListFeedback(_ context.Context, limit int) ([]feedback.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]feedback.Feedback, 0)
	for i := len(s.feedbackOrder) - 1; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		if fb, ok := s.feedback[s.feedbackOrder[i]]; ok {
			result = append(result, fb)
		}
	}
	return result, nil
}

func (s *Store) ListFeedbackByUser(_ context.Context, userID string) ([]feedback.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]feedback.Feedback, 0)
	for i := len(s.feedbackOrder) - 1; i >= 0; i-- {
		fb, ok := s.feedback[s.feedbackOrder[i]]
		if ok && fb.UserID == userID {
			result = append(result, fb)
		}
	}
	return result, nil
}
