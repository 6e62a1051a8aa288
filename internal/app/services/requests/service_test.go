package requests

import (
	"context"
	"sync"
	"testing"

	"github.com/mealbridge/mealbridge/internal/app/domain/notification"
	"github.com/mealbridge/mealbridge/internal/app/domain/request"
	"github.com/mealbridge/mealbridge/internal/app/domain/user"
	"github.com/mealbridge/mealbridge/internal/app/services/notifications"
	"github.com/mealbridge/mealbridge/internal/app/storage/memory"
	"github.com/mealbridge/mealbridge/internal/errors"
)

func newTestService(store *memory.Store) (*Service, *notifications.Service) {
	notifier := notifications.New(store, nil)
	return New(store, store, notifier, nil), notifier
}

func seedUser(t *testing.T, store *memory.Store, name string, role user.Role) user.User {
	t.Helper()
	usr, err := store.CreateUser(context.Background(), user.User{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		Role:         role,
		Phone:        "555-0100",
		Address:      "1 Main St",
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return usr
}

func validParams() CreateParams {
	return CreateParams{
		FoodType:    "rice",
		Quantity:    "25 kg",
		Urgency:     request.UrgencyHigh,
		Description: "weekly supply for the kitchen",
	}
}

func TestLifecycle(t *testing.T) {
	store := memory.New()
	svc, notifier := newTestService(store)
	ctx := context.Background()

	recipient := seedUser(t, store, "shelter", user.RoleRecipient)
	donor := seedUser(t, store, "dan", user.RoleDonor)

	req, err := svc.Create(ctx, recipient.ID, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.Status != request.StatusPending {
		t.Fatalf("new request not pending: %s", req.Status)
	}

	pending, err := svc.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != req.ID {
		t.Fatalf("unexpected pending listing: %+v", pending)
	}

	fulfilled, err := svc.Fulfill(ctx, req.ID, donor.ID)
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if fulfilled.Status != request.StatusFulfilled || fulfilled.FulfilledBy != donor.ID {
		t.Fatalf("fulfillment not recorded: %+v", fulfilled)
	}

	pending, err = svc.ListPending(ctx)
	if err != nil {
		t.Fatalf("list after fulfill: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("fulfilled request still pending: %+v", pending)
	}

	notes, err := notifier.ListFor(ctx, recipient.ID)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("expected one notification, got %d", len(notes))
	}
	note := notes[0]
	if note.Type != notification.TypeRequestFulfilled {
		t.Fatalf("wrong type: %s", note.Type)
	}
	if note.Message != "Your request for rice has been fulfilled!" {
		t.Fatalf("wrong message: %q", note.Message)
	}
	if note.ContactDetails.Name != donor.Name || note.ContactDetails.Phone != donor.Phone {
		t.Fatalf("donor contact snapshot wrong: %+v", note.ContactDetails)
	}
}

func TestCancel(t *testing.T) {
	store := memory.New()
	svc, _ := newTestService(store)
	ctx := context.Background()

	recipient := seedUser(t, store, "shelter", user.RoleRecipient)
	other := seedUser(t, store, "pantry", user.RoleRecipient)

	req, err := svc.Create(ctx, recipient.ID, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Cancel(ctx, req.ID, other.ID); !errors.IsCode(err, errors.CodeForbidden) {
		t.Fatalf("expected forbidden for foreign cancel, got %v", err)
	}

	cancelled, err := svc.Cancel(ctx, req.ID, recipient.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != request.StatusCancelled {
		t.Fatalf("not cancelled: %s", cancelled.Status)
	}

	// Cancelled requests cannot be fulfilled.
	donor := seedUser(t, store, "dan", user.RoleDonor)
	if _, err := svc.Fulfill(ctx, req.ID, donor.ID); !errors.IsCode(err, errors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestConcurrentFulfillSingleWinner(t *testing.T) {
	store := memory.New()
	svc, _ := newTestService(store)
	ctx := context.Background()

	recipient := seedUser(t, store, "shelter", user.RoleRecipient)
	req, err := svc.Create(ctx, recipient.ID, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const donors = 8
	errs := make([]error, donors)
	var wg sync.WaitGroup
	for i := 0; i < donors; i++ {
		donor := seedUser(t, store, "donor"+string(rune('a'+i)), user.RoleDonor)
		wg.Add(1)
		go func(idx int, donorID string) {
			defer wg.Done()
			_, errs[idx] = svc.Fulfill(ctx, req.ID, donorID)
		}(i, donor.ID)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.IsCode(err, errors.CodeInvalidTransition):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning fulfill, got %d", wins)
	}
}

func TestGuards(t *testing.T) {
	store := memory.New()
	svc, _ := newTestService(store)
	ctx := context.Background()

	recipient := seedUser(t, store, "shelter", user.RoleRecipient)
	donor := seedUser(t, store, "dan", user.RoleDonor)

	// Donors cannot post requests.
	if _, err := svc.Create(ctx, donor.ID, validParams()); !errors.IsCode(err, errors.CodeForbidden) {
		t.Fatalf("expected forbidden for donor create, got %v", err)
	}

	// Urgency outside the enum is rejected.
	params := validParams()
	params.Urgency = "critical"
	if _, err := svc.Create(ctx, recipient.ID, params); !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	req, err := svc.Create(ctx, recipient.ID, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Recipients cannot fulfill, not even their own request.
	if _, err := svc.Fulfill(ctx, req.ID, recipient.ID); !errors.IsCode(err, errors.CodeForbidden) {
		t.Fatalf("expected forbidden for recipient fulfill, got %v", err)
	}
}
