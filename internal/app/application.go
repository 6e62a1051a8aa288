// Package app wires the domain services to their persistence and
// notification dependencies.
package app

import (
	"github.com/mealbridge/mealbridge/internal/app/services/donations"
	feedbacksvc "github.com/mealbridge/mealbridge/internal/app/services/feedback"
	"github.com/mealbridge/mealbridge/internal/app/services/notifications"
	requestsvc "github.com/mealbridge/mealbridge/internal/app/services/requests"
	userssvc "github.com/mealbridge/mealbridge/internal/app/services/users"
	"github.com/mealbridge/mealbridge/internal/app/storage"
	"github.com/mealbridge/mealbridge/internal/app/storage/memory"
	"github.com/mealbridge/mealbridge/internal/app/storage/rediscache"
	"github.com/mealbridge/mealbridge/internal/logging"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users         storage.UserStore
	Donations     storage.DonationStore
	Requests      storage.RequestStore
	Notifications storage.NotificationStore
	Feedback      storage.FeedbackStore
}

// Application ties domain services together.
type Application struct {
	log *logging.Logger

	Users         *userssvc.Service
	Donations     *donations.Service
	Requests      *requestsvc.Service
	Notifications *notifications.Service
	Feedback      *feedbacksvc.Service
}

// New builds a fully initialised application with the provided stores. The
// cache may be nil, which disables listing-cache reads without affecting
// correctness.
func New(stores Stores, cache *rediscache.Cache, log *logging.Logger) (*Application, error) {
	if log == nil {
		log = logging.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Donations == nil {
		stores.Donations = mem
	}
	if stores.Requests == nil {
		stores.Requests = mem
	}
	if stores.Notifications == nil {
		stores.Notifications = mem
	}
	if stores.Feedback == nil {
		stores.Feedback = mem
	}

	notifyService := notifications.New(stores.Notifications, log)
	userService := userssvc.New(stores.Users, log)
	donationService := donations.New(stores.Donations, stores.Users, notifyService, cache, log)
	requestService := requestsvc.New(stores.Requests, stores.Users, notifyService, log)
	feedbackService := feedbacksvc.New(stores.Feedback, stores.Users, log)

	return &Application{
		log:           log,
		Users:         userService,
		Donations:     donationService,
		Requests:      requestService,
		Notifications: notifyService,
		Feedback:      feedbackService,
	}, nil
}
