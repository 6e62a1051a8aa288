// Package users is the account directory: registration, credential checks,
// and profile edits.
package users

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mealbridge/mealbridge/internal/app/domain/user"
	"github.com/mealbridge/mealbridge/internal/app/storage"
	"github.com/mealbridge/mealbridge/internal/errors"
	"github.com/mealbridge/mealbridge/internal/logging"
)

const minPasswordLength = 8

// Service manages accounts.
type Service struct {
	store storage.UserStore
	log   *logging.Logger
}

// New constructs a user service.
func New(store storage.UserStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("users")
	}
	return &Service{store: store, log: log}
}

// RegisterParams carries the registration payload.
type RegisterParams struct {
	Name             string
	Email            string
	Password         string
	Role             user.Role
	Phone            string
	Address          string
	OrganizationName string
}

// Register creates an account with a bcrypt-hashed password. Fails with the
// duplicate-email error when the address is taken; the original account is
// untouched.
func (s *Service) Register(ctx context.Context, params RegisterParams) (user.User, error) {
	params.Name = strings.TrimSpace(params.Name)
	params.Email = strings.TrimSpace(params.Email)
	params.Phone = strings.TrimSpace(params.Phone)
	params.Address = strings.TrimSpace(params.Address)
	params.OrganizationName = strings.TrimSpace(params.OrganizationName)

	if params.Name == "" {
		return user.User{}, errors.Validation("name is required")
	}
	if params.Email == "" || !strings.Contains(params.Email, "@") {
		return user.User{}, errors.Validation("a valid email is required")
	}
	if len(params.Password) < minPasswordLength {
		return user.User{}, errors.Validation("password must be at least 8 characters")
	}
	if !params.Role.Valid() {
		return user.User{}, errors.Validation("role must be donor or recipient")
	}
	if params.Phone == "" {
		return user.User{}, errors.Validation("phone is required")
	}
	if params.Address == "" {
		return user.User{}, errors.Validation("address is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, errors.Internal("hash password", err)
	}

	usr, err := s.store.CreateUser(ctx, user.User{
		Name:             params.Name,
		Email:            strings.ToLower(params.Email),
		PasswordHash:     string(hash),
		Role:             params.Role,
		Phone:            params.Phone,
		Address:          params.Address,
		OrganizationName: params.OrganizationName,
	})
	if err != nil {
		return user.User{}, err
	}

	s.log.WithContext(ctx).
		WithField("user_id", usr.ID).
		WithField("role", string(usr.Role)).
		Info("account registered")
	return usr, nil
}

// Authenticate resolves an email/password pair to an account. Unknown email
// and password mismatch produce the same error, so login responses leak
// nothing about which emails exist.
func (s *Service) Authenticate(ctx context.Context, email, password string) (user.User, error) {
	usr, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			return user.User{}, errors.InvalidCredentials()
		}
		return user.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(password)); err != nil {
		s.log.WithContext(ctx).WithField("user_id", usr.ID).Warn("failed login attempt")
		return user.User{}, errors.InvalidCredentials()
	}
	return usr, nil
}

// Get retrieves an account by id.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

// UpdateProfile applies a partial update. Email and role are immutable.
func (s *Service) UpdateProfile(ctx context.Context, id string, name, phone, address, organizationName *string) (user.User, error) {
	usr, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	if name != nil {
		if trimmed := strings.TrimSpace(*name); trimmed != "" {
			usr.Name = trimmed
		} else {
			return user.User{}, errors.Validation("name cannot be empty")
		}
	}
	if phone != nil {
		if trimmed := strings.TrimSpace(*phone); trimmed != "" {
			usr.Phone = trimmed
		} else {
			return user.User{}, errors.Validation("phone cannot be empty")
		}
	}
	if address != nil {
		if trimmed := strings.TrimSpace(*address); trimmed != "" {
			usr.Address = trimmed
		} else {
			return user.User{}, errors.Validation("address cannot be empty")
		}
	}
	if organizationName != nil {
		// Clearing the organization name is allowed.
		usr.OrganizationName = strings.TrimSpace(*organizationName)
	}

	return s.store.UpdateUser(ctx, usr)
}
