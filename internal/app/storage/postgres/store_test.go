package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/mealbridge/mealbridge/internal/app/domain/donation"
	"github.com/mealbridge/mealbridge/internal/app/domain/request"
	"github.com/mealbridge/mealbridge/internal/app/domain/user"
	"github.com/mealbridge/mealbridge/internal/errors"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func donationColumns() []string {
	return []string{"id", "donor_id", "food_type", "quantity", "expiry_time", "pickup_address", "description", "status", "accepted_by", "created_at", "updated_at"}
}

func TestTransitionDonationWinner(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("UPDATE donations").
		WithArgs("d1", string(donation.StatusAvailable), string(donation.StatusAccepted), "r1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(donationColumns()).
			AddRow("d1", "u1", "bread", "10", "2026-09-01", "12 Bakery Lane", "", string(donation.StatusAccepted), "r1", now, now))

	don, err := store.TransitionDonation(context.Background(), "d1", donation.StatusAvailable, donation.StatusAccepted, "r1")
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if don.Status != donation.StatusAccepted || don.AcceptedBy != "r1" {
		t.Fatalf("transition not applied: %+v", don)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTransitionDonationRaceLoser(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	// The conditional update matches nothing because another caller already
	// flipped the status; the follow-up probe finds the donation accepted.
	mock.ExpectQuery("UPDATE donations").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM donations").
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows(donationColumns()).
			AddRow("d1", "u1", "bread", "10", "2026-09-01", "12 Bakery Lane", "", string(donation.StatusAccepted), "r2", now, now))

	_, err := store.TransitionDonation(context.Background(), "d1", donation.StatusAvailable, donation.StatusAccepted, "r1")
	if !errors.IsCode(err, errors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTransitionRejectsUnknownEdge(t *testing.T) {
	store, mock := newMockStore(t)

	// Illegal edges never reach the database.
	_, err := store.TransitionDonation(context.Background(), "d1", donation.StatusAvailable, donation.StatusCompleted, "")
	if !errors.IsCode(err, errors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	_, err = store.TransitionRequest(context.Background(), "r1", request.StatusFulfilled, request.StatusCancelled, "")
	if !errors.IsCode(err, errors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTransitionDonationMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE donations").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM donations").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := store.TransitionDonation(context.Background(), "ghost", donation.StatusAvailable, donation.StatusAccepted, "r1")
	if !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteDonationGuard(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec("DELETE FROM donations").
		WithArgs("d1", string(donation.StatusAvailable)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM donations").
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows(donationColumns()).
			AddRow("d1", "u1", "bread", "10", "2026-09-01", "12 Bakery Lane", "", string(donation.StatusAccepted), "r1", now, now))

	err := store.DeleteDonation(context.Background(), "d1", donation.StatusAvailable)
	if !errors.IsCode(err, errors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_unique"})

	_, err := store.CreateUser(context.Background(), user.User{
		Name:  "Alice",
		Email: "alice@example.com",
		Role:  user.RoleDonor,
	})
	if !errors.IsCode(err, errors.CodeDuplicateEmail) {
		t.Fatalf("expected duplicate email, got %v", err)
	}
}

func TestCreateUserAssignsID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(0, 1))

	usr, err := store.CreateUser(context.Background(), user.User{
		Name:  "Alice",
		Email: "alice@example.com",
		Role:  user.RoleDonor,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if usr.ID == "" {
		t.Fatalf("no id assigned")
	}
	if usr.CreatedAt.IsZero() || usr.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not set: %+v", usr)
	}
}
