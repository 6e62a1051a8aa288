package feedback

import (
	"context"
	"fmt"
	"testing"

	"github.com/mealbridge/mealbridge/internal/app/domain/user"
	"github.com/mealbridge/mealbridge/internal/app/storage/memory"
	"github.com/mealbridge/mealbridge/internal/errors"
)

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

func TestSubmitDenormalizesIdentity(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	usr := seedUser(t, store, "shelter", user.RoleRecipient, "Hope Shelter")

	fb, err := svc.Submit(ctx, usr.ID, 4, "smooth pickup coordination")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if fb.Name != "Hope Shelter" {
		t.Fatalf("expected organization name snapshot, got %q", fb.Name)
	}
	if fb.Email != usr.Email || fb.Role != string(usr.Role) {
		t.Fatalf("identity snapshot wrong: %+v", fb)
	}
	if fb.Rating != 4 {
		t.Fatalf("rating not stored: %d", fb.Rating)
	}

	// The snapshot is frozen at submit time.
	newName := "New Hope Shelter"
	updated := usr
	updated.OrganizationName = newName
	if _, err := store.UpdateUser(ctx, updated); err != nil {
		t.Fatalf("update user: %v", err)
	}
	entries, err := svc.ListFor(ctx, usr.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "Hope Shelter" {
		t.Fatalf("snapshot not frozen: %+v", entries)
	}
}

func TestSubmitValidation(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	usr := seedUser(t, store, "dan", user.RoleDonor, "")

	for _, rating := range []int{0, 6, -1} {
		if _, err := svc.Submit(ctx, usr.ID, rating, "msg"); !errors.IsCode(err, errors.CodeValidation) {
			t.Fatalf("rating %d: expected validation error, got %v", rating, err)
		}
	}
	for _, rating := range []int{1, 5} {
		if _, err := svc.Submit(ctx, usr.ID, rating, "msg"); err != nil {
			t.Fatalf("rating %d: %v", rating, err)
		}
	}
	if _, err := svc.Submit(ctx, usr.ID, 3, "  "); !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error for blank message, got %v", err)
	}
	if _, err := svc.Submit(ctx, "missing", 3, "msg"); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found for unknown user, got %v", err)
	}
}

func TestListAllCapped(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	usr := seedUser(t, store, "dan", user.RoleDonor, "")
	for i := 0; i < DefaultListLimit+10; i++ {
		if _, err := svc.Submit(ctx, usr.ID, 5, fmt.Sprintf("entry %d", i)); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	entries, err := svc.ListAll(ctx, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(entries) != DefaultListLimit {
		t.Fatalf("expected cap of %d, got %d", DefaultListLimit, len(entries))
	}
	// Most recent first.
	if entries[0].Message != fmt.Sprintf("entry %d", DefaultListLimit+9) {
		t.Fatalf("listing not newest-first: %q", entries[0].Message)
	}

	// Requests above the cap are clamped.
	entries, err = svc.ListAll(ctx, DefaultListLimit*2)
	if err != nil {
		t.Fatalf("list all clamped: %v", err)
	}
	if len(entries) != DefaultListLimit {
		t.Fatalf("cap not enforced: %d", len(entries))
	}

	entries, err = svc.ListAll(ctx, 5)
	if err != nil {
		t.Fatalf("list all limited: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("explicit limit ignored: %d", len(entries))
	}
}
