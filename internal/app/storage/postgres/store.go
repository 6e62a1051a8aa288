// Package postgres implements the storage interfaces backed by PostgreSQL.
// Guarded lifecycle transitions are expressed as single conditional UPDATEs
// so a concurrent race resolves to exactly one winner inside the database.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/mealbridge/mealbridge/internal/app/domain/donation"
	"github.com/mealbridge/mealbridge/internal/app/domain/feedback"
	"github.com/mealbridge/mealbridge/internal/app/domain/notification"
	"github.com/mealbridge/mealbridge/internal/app/domain/request"
	"github.com/mealbridge/mealbridge/internal/app/domain/user"
	"github.com/mealbridge/mealbridge/internal/app/storage"
	"github.com/mealbridge/mealbridge/internal/errors"
)

const uniqueViolation = "23505"

// Store implements the storage interfaces over a sqlx database handle.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.DonationStore = (*Store)(nil)
var _ storage.RequestStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)
var _ storage.FeedbackStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func storageErr(err error) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.StorageFault(err)
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	usr.CreatedAt = now
	usr.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, phone, address, organization_name, created_at, updated_at)
		VALUES ($1, $2, lower($3), $4, $5, $6, $7, $8, $9, $10)
	`, usr.ID, usr.Name, usr.Email, usr.PasswordHash, usr.Role, usr.Phone, usr.Address, usr.OrganizationName, usr.CreatedAt, usr.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return user.User{}, errors.DuplicateEmail(usr.Email)
		}
		return user.User{}, storageErr(err)
	}
	return usr, nil
}

func (s *Store) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, usr.ID)
	if err != nil {
		return user.User{}, err
	}

	// Email and role never change post-registration.
	usr.Email = existing.Email
	usr.Role = existing.Role
	usr.CreatedAt = existing.CreatedAt
	usr.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET name = $2, phone = $3, address = $4, organization_name = $5, updated_at = $6
		WHERE id = $1
	`, usr.ID, usr.Name, usr.Phone, usr.Address, usr.OrganizationName, usr.UpdatedAt)
	if err != nil {
		return user.User{}, storageErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, errors.NotFound("user", usr.ID)
	}
	return usr, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var usr user.User
	err := s.db.GetContext(ctx, &usr, `
		SELECT id, name, email, password_hash, role, phone, address, organization_name, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return user.User{}, errors.NotFound("user", id)
	}
	if err != nil {
		return user.User{}, storageErr(err)
	}
	return usr, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var usr user.User
	err := s.db.GetContext(ctx, &usr, `
		SELECT id, name, email, password_hash, role, phone, address, organization_name, created_at, updated_at
		FROM users
		WHERE email = lower($1)
	`, email)
	if stderrors.Is(err, sql.ErrNoRows) {
		return user.User{}, errors.NotFound("user", email)
	}
	if err != nil {
		return user.User{}, storageErr(err)
	}
	return usr, nil
}

// --- DonationStore ----------------------------------------------------------

func (s *Store) CreateDonation(ctx context.Context, don donation.Donation) (donation.Donation, error) {
	if don.ID == "" {
		don.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	don.CreatedAt = now
	don.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO donations (id, donor_id, food_type, quantity, expiry_time, pickup_address, description, status, accepted_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, don.ID, don.DonorID, don.FoodType, don.Quantity, don.ExpiryTime, don.PickupAddress, don.Description, don.Status, don.AcceptedBy, don.CreatedAt, don.UpdatedAt)
	if err != nil {
		return donation.Donation{}, storageErr(err)
	}
	return don, nil
}

func (s *Store) GetDonation(ctx context.Context, id string) (donation.Donation, error) {
	var don donation.Donation
	err := s.db.GetContext(ctx, &don, `
		SELECT id, donor_id, food_type, quantity, expiry_time, pickup_address, description, status, accepted_by, created_at, updated_at
		FROM donations
		WHERE id = $1
	`, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return donation.Donation{}, errors.NotFound("donation", id)
	}
	if err != nil {
		return donation.Donation{}, storageErr(err)
	}
	return don, nil
}

func (s *Store) ListAvailableDonations(ctx context.Context) ([]donation.Donation, error) {
	return s.listDonations(ctx, `status = $1`, donation.StatusAvailable)
}

func (s *Store) ListDonationsByDonor(ctx context.Context, donorID string) ([]donation.Donation, error) {
	return s.listDonations(ctx, `donor_id = $1`, donorID)
}

func (s *Store) ListDonationsByClaimant(ctx context.Context, claimantID string) ([]donation.Donation, error) {
	return s.listDonations(ctx, `accepted_by = $1`, claimantID)
}

func (s *Store) listDonations(ctx context.Context, where string, arg interface{}) ([]donation.Donation, error) {
	result := make([]donation.Donation, 0)
	err := s.db.SelectContext(ctx, &result, fmt.Sprintf(`
		SELECT id, donor_id, food_type, quantity, expiry_time, pickup_address, description, status, accepted_by, created_at, updated_at
		FROM donations
		WHERE %s
		ORDER BY created_at DESC
	`, where), arg)
	if err != nil {
		return nil, storageErr(err)
	}
	return result, nil
}

// TransitionDonation performs the atomic check-and-set on the status column.
// Zero affected rows means either the donation is gone or another caller won
// the race; a follow-up probe tells the two apart.
func (s *Store) TransitionDonation(ctx context.Context, id string, from, to donation.Status, claimantID string) (donation.Donation, error) {
	if !from.CanTransition(to) {
		return donation.Donation{}, errors.InvalidTransition(
			fmt.Sprintf("no %s to %s edge", from, to))
	}

	var don donation.Donation
	err := s.db.GetContext(ctx, &don, `
		UPDATE donations
		SET status = $3,
		    accepted_by = CASE WHEN $4 <> '' THEN $4 ELSE accepted_by END,
		    updated_at = $5
		WHERE id = $1 AND status = $2
		RETURNING id, donor_id, food_type, quantity, expiry_time, pickup_address, description, status, accepted_by, created_at, updated_at
	`, id, from, to, claimantID, time.Now().UTC())
	if err == nil {
		return don, nil
	}
	if !stderrors.Is(err, sql.ErrNoRows) {
		return donation.Donation{}, storageErr(err)
	}

	current, probeErr := s.GetDonation(ctx, id)
	if probeErr != nil {
		return donation.Donation{}, probeErr
	}
	return donation.Donation{}, errors.InvalidTransition(
		fmt.Sprintf("donation is %s, expected %s", current.Status, from))
}

func (s *Store) DeleteDonation(ctx context.Context, id string, from donation.Status) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM donations WHERE id = $1 AND status = $2
	`, id, from)
	if err != nil {
		return storageErr(err)
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		return nil
	}

	current, probeErr := s.GetDonation(ctx, id)
	if probeErr != nil {
		return probeErr
	}
	return errors.InvalidTransition(
		fmt.Sprintf("donation is %s, expected %s", current.Status, from))
}

// --- RequestStore -----------------------------------------------------------

func (s *Store) CreateRequest(ctx context.Context, req request.Request) (request.Request, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (id, recipient_id, food_type, quantity, urgency, description, status, fulfilled_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, req.ID, req.RecipientID, req.FoodType, req.Quantity, req.Urgency, req.Description, req.Status, req.FulfilledBy, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return request.Request{}, storageErr(err)
	}
	return req, nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (request.Request, error) {
	var req request.Request
	err := s.db.GetContext(ctx, &req, `
		SELECT id, recipient_id, food_type, quantity, urgency, description, status, fulfilled_by, created_at, updated_at
		FROM requests
		WHERE id = $1
	`, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return request.Request{}, errors.NotFound("request", id)
	}
	if err != nil {
		return request.Request{}, storageErr(err)
	}
	return req, nil
}

func (s *Store) ListPendingRequests(ctx context.Context) ([]request.Request, error) {
	return s.listRequests(ctx, `status = $1`, request.StatusPending)
}

func (s *Store) ListRequestsByRecipient(ctx context.Context, recipientID string) ([]request.Request, error) {
	return s.listRequests(ctx, `recipient_id = $1`, recipientID)
}

func (s *Store) listRequests(ctx context.Context, where string, arg interface{}) ([]request.Request, error) {
	result := make([]request.Request, 0)
	err := s.db.SelectContext(ctx, &result, fmt.Sprintf(`
		SELECT id, recipient_id, food_type, quantity, urgency, description, status, fulfilled_by, created_at, updated_at
		FROM requests
		WHERE %s
		ORDER BY created_at DESC
	`, where), arg)
	if err != nil {
		return nil, storageErr(err)
	}
	return result, nil
}

func (s *Store) TransitionRequest(ctx context.Context, id string, from, to request.Status, fulfillerID string) (request.Request, error) {
	if !from.CanTransition(to) {
		return request.Request{}, errors.InvalidTransition(
			fmt.Sprintf("no %s to %s edge", from, to))
	}

	var req request.Request
	err := s.db.GetContext(ctx, &req, `
		UPDATE requests
		SET status = $3,
		    fulfilled_by = CASE WHEN $4 <> '' THEN $4 ELSE fulfilled_by END,
		    updated_at = $5
		WHERE id = $1 AND status = $2
		RETURNING id, recipient_id, food_type, quantity, urgency, description, status, fulfilled_by, created_at, updated_at
	`, id, from, to, fulfillerID, time.Now().UTC())
	if err == nil {
		return req, nil
	}
	if !stderrors.Is(err, sql.ErrNoRows) {
		return request.Request{}, storageErr(err)
	}

	current, probeErr := s.GetRequest(ctx, id)
	if probeErr != nil {
		return request.Request{}, probeErr
	}
	return request.Request{}, errors.InvalidTransition(
		fmt.Sprintf("request is %s, expected %s", current.Status, from))
}

// --- NotificationStore ------------------------------------------------------

func (s *Store) CreateNotification(ctx context.Context, ntf notification.Notification) (notification.Notification, error) {
	if ntf.ID == "" {
		ntf.ID = uuid.NewString()
	}
	ntf.CreatedAt = time.Now().UTC()

	contactJSON, err := json.Marshal(ntf.ContactDetails)
	if err != nil {
		return notification.Notification{}, errors.Internal("encode contact details", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, message, type, contact_details, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ntf.ID, ntf.UserID, ntf.Message, ntf.Type, contactJSON, ntf.Read, ntf.CreatedAt)
	if err != nil {
		return notification.Notification{}, storageErr(err)
	}
	return ntf, nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	row := s.db.QueryRowxContext(ctx, `
		SELECT id, user_id, message, type, contact_details, is_read, created_at
		FROM notifications
		WHERE id = $1
	`, id)
	ntf, err := scanNotification(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return notification.Notification{}, errors.NotFound("notification", id)
	}
	if err != nil {
		return notification.Notification{}, storageErr(err)
	}
	return ntf, nil
}

func (s *Store) ListNotificationsForUser(ctx context.Context, userID string) ([]notification.Notification, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, user_id, message, type, contact_details, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	result := make([]notification.Notification, 0)
	for rows.Next() {
		ntf, err := scanNotification(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		result = append(result, ntf)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return result, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) (notification.Notification, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE WHERE id = $1
	`, id)
	if err != nil {
		return notification.Notification{}, storageErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return notification.Notification{}, errors.NotFound("notification", id)
	}
	return s.GetNotification(ctx, id)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (notification.Notification, error) {
	var (
		ntf        notification.Notification
		contactRaw []byte
	)
	if err := row.Scan(&ntf.ID, &ntf.UserID, &ntf.Message, &ntf.Type, &contactRaw, &ntf.Read, &ntf.CreatedAt); err != nil {
		return notification.Notification{}, err
	}
	if len(contactRaw) > 0 {
		_ = json.Unmarshal(contactRaw, &ntf.ContactDetails)
	}
	return ntf, nil
}

// --- FeedbackStore ----------------------------------------------------------

func (s *Store) CreateFeedback(ctx context.Context, fb feedback.Feedback) (feedback.Feedback, error) {
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	fb.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, user_id, name, email, role, rating, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, fb.ID, fb.UserID, fb.Name, fb.Email, fb.Role, fb.Rating, fb.Message, fb.CreatedAt)
	if err != nil {
		return feedback.Feedback{}, storageErr(err)
	}
	return fb, nil
}

func (s *Store) ListFeedback(ctx context.Context, limit int) ([]feedback.Feedback, error) {
	result := make([]feedback.Feedback, 0)
	err := s.db.SelectContext(ctx, &result, `
		SELECT id, user_id, name, email, role, rating, message, created_at
		FROM feedback
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, storageErr(err)
	}
	return result, nil
}

func (s *Store) ListFeedbackByUser(ctx context.Context, userID string) ([]feedback.Feedback, error) {
	result := make([]feedback.Feedback, 0)
	err := s.db.SelectContext(ctx, &result, `
		SELECT id, user_id, name, email, role, rating, message, created_at
		FROM feedback
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, storageErr(err)
	}
	return result, nil
}
