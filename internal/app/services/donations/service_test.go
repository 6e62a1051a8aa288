package donations

import (
	"context"
	"sync"
	"testing"

	"github.com/mealbridge/mealbridge/internal/app/domain/donation"
	"github.com/mealbridge/mealbridge/internal/app/domain/notification"
	"github.com/mealbridge/mealbridge/internal/app/domain/user"
	"github.com/mealbridge/mealbridge/internal/app/services/notifications"
	"github.com/mealbridge/mealbridge/internal/app/storage/memory"
	"github.com/mealbridge/mealbridge/internal/errors"
)

func newTestService(store *memory.Store) (*Service, *notifications.Service) {
	notifier := notifications.New(store, nil)
	return New(store, store, notifier, nil, nil), notifier
}

func seedUser(t *testing.T, store *memory.Store, name string, role user.Role, org string) user.User {
	t.Helper()
	usr, err := store.CreateUser(context.Background(), user.User{
		Name:             name,
		Email:            name + "@example.com",
		PasswordHash:     "x",
		Role:             role,
		Phone:            "555-0100",
		Address:          "1 Main St",
		OrganizationName: org,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return usr
}

func validParams() CreateParams {
	return CreateParams{
		FoodType:      "bread",
		Quantity:      "10 loaves",
		ExpiryTime:    "2026-09-01T18:00:00Z",
		PickupAddress: "12 Bakery Lane",
		Description:   "day-old sourdough",
	}
}

func TestLifecycle(t *testing.T) {
	store := memory.New()
	svc, _ := newTestService(store)
	ctx := context.Background()

	donor := seedUser(t, store, "dan", user.RoleDonor, "")
	recipient := seedUser(t, store, "shelter", user.RoleRecipient, "Hope Shelter")

	don, err := svc.Create(ctx, donor.ID, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if don.Status != donation.StatusAvailable {
		t.Fatalf("new donation not available: %s", don.Status)
	}

	listing, err := svc.ListAvailable(ctx)
	if err != nil {
		t.Fatalf("list available: %v", err)
	}
	if len(listing) != 1 || listing[0].ID != don.ID {
		t.Fatalf("unexpected listing: %+v", listing)
	}

	accepted, err := svc.Accept(ctx, don.ID, recipient.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != donation.StatusAccepted || accepted.AcceptedBy != recipient.ID {
		t.Fatalf("accept not recorded: %+v", accepted)
	}

	// Accepted donations leave the open listing.
	listing, err = svc.ListAvailable(ctx)
	if err != nil {
		t.Fatalf("list after accept: %v", err)
	}
	if len(listing) != 0 {
		t.Fatalf("accepted donation still listed: %+v", listing)
	}

	claimed, err := svc.ListByClaimant(ctx, recipient.ID)
	if err != nil {
		t.Fatalf("list claimed: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != don.ID {
		t.Fatalf("claimed listing wrong: %+v", claimed)
	}

	completed, err := svc.Complete(ctx, don.ID, donor.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != donation.StatusCompleted {
		t.Fatalf("not completed: %s", completed.Status)
	}
}

func TestAcceptNotifiesDonorWithContactSnapshot(t *testing.T) {
	store := memory.New()
	svc, notifier := newTestService(store)
	ctx := context.Background()

	donor := seedUser(t, store, "dan", user.RoleDonor, "")
	recipient := seedUser(t, store, "shelter", user.RoleRecipient, "Hope Shelter")

	don, err := svc.Create(ctx, donor.ID, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Accept(ctx, don.ID, recipient.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	notes, err := notifier.ListFor(ctx, donor.ID)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("expected one notification, got %d", len(notes))
	}
	note := notes[0]
	if note.Type != notification.TypeDonationAccepted {
		t.Fatalf("wrong type: %s", note.Type)
	}
	if note.Message != "Your donation of bread has been accepted!" {
		t.Fatalf("wrong message: %q", note.Message)
	}
	// Organization name wins over the personal name in the snapshot.
	if note.ContactDetails.Name != "Hope Shelter" {
		t.Fatalf("wrong contact name: %q", note.ContactDetails.Name)
	}
	if note.ContactDetails.Phone != recipient.Phone || note.ContactDetails.Email != recipient.Email {
		t.Fatalf("contact snapshot incomplete: %+v", note.ContactDetails)
	}
	if note.Read {
		t.Fatalf("new notification already read")
	}
}

func TestConcurrentAcceptSingleWinner(t *testing.T) {
	store := memory.New()
	svc, _ := newTestService(store)
	ctx := context.Background()

	donor := seedUser(t, store, "dan", user.RoleDonor, "")
	don, err := svc.Create(ctx, donor.ID, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const claimants = 8
	errs := make([]error, claimants)
	var wg sync.WaitGroup
	for i := 0; i < claimants; i++ {
		recipient := seedUser(t, store, "org"+string(rune('a'+i)), user.RoleRecipient, "")
		wg.Add(1)
		go func(idx int, claimantID string) {
			defer wg.Done()
			_, errs[idx] = svc.Accept(ctx, don.ID, claimantID)
		}(i, recipient.ID)
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
		t.Fatalf("expected exactly one winning accept, got %d", wins)
	}
}

func TestGuards(t *testing.T) {
	store := memory.New()
	svc, _ := newTestService(store)
	ctx := context.Background()

	donor := seedUser(t, store, "dan", user.RoleDonor, "")
	otherDonor := seedUser(t, store, "dave", user.RoleDonor, "")
	recipient := seedUser(t, store, "shelter", user.RoleRecipient, "")

	// Recipients cannot post donations.
	if _, err := svc.Create(ctx, recipient.ID, validParams()); !errors.IsCode(err, errors.CodeForbidden) {
		t.Fatalf("expected forbidden for recipient create, got %v", err)
	}

	don, err := svc.Create(ctx, donor.ID, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Donors cannot accept.
	if _, err := svc.Accept(ctx, don.ID, otherDonor.ID); !errors.IsCode(err, errors.CodeForbidden) {
		t.Fatalf("expected forbidden for donor accept, got %v", err)
	}

	// Completion requires the accepted state.
	if _, err := svc.Complete(ctx, don.ID, donor.ID); !errors.IsCode(err, errors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition for early complete, got %v", err)
	}

	if _, err := svc.Accept(ctx, don.ID, recipient.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Only the owning donor may complete.
	if _, err := svc.Complete(ctx, don.ID, otherDonor.ID); !errors.IsCode(err, errors.CodeForbidden) {
		t.Fatalf("expected forbidden for foreign complete, got %v", err)
	}

	// Accepted donations cannot be withdrawn.
	if err := svc.Delete(ctx, don.ID, donor.ID); !errors.IsCode(err, errors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition for delete after accept, got %v", err)
	}

	// Re-accepting a claimed donation fails.
	if _, err := svc.Accept(ctx, don.ID, recipient.ID); !errors.IsCode(err, errors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition for double accept, got %v", err)
	}

	// Unknown ids surface as not-found.
	if _, err := svc.Accept(ctx, "missing", recipient.ID); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteAvailableDonation(t *testing.T) {
	store := memory.New()
	svc, _ := newTestService(store)
	ctx := context.Background()

	donor := seedUser(t, store, "dan", user.RoleDonor, "")
	other := seedUser(t, store, "dave", user.RoleDonor, "")

	don, err := svc.Create(ctx, donor.ID, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Delete(ctx, don.ID, other.ID); !errors.IsCode(err, errors.CodeForbidden) {
		t.Fatalf("expected forbidden for foreign delete, got %v", err)
	}

	if err := svc.Delete(ctx, don.ID, donor.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := store.GetDonation(ctx, don.ID); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("donation still present after delete: %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	store := memory.New()
	svc, _ := newTestService(store)
	ctx := context.Background()

	donor := seedUser(t, store, "dan", user.RoleDonor, "")

	cases := []struct {
		name   string
		mutate func(*CreateParams)
	}{
		{"missing food type", func(p *CreateParams) { p.FoodType = " " }},
		{"missing quantity", func(p *CreateParams) { p.Quantity = "" }},
		{"missing expiry", func(p *CreateParams) { p.ExpiryTime = "" }},
		{"missing pickup address", func(p *CreateParams) { p.PickupAddress = "" }},
	}
	for _, tc := range cases {
		params := validParams()
		tc.mutate(&params)
		if _, err := svc.Create(ctx, donor.ID, params); !errors.IsCode(err, errors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}
