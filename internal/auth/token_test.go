package auth

import (
	"testing"
	"time"

	"github.com/mealbridge/mealbridge/internal/app/domain/user"
	"github.com/mealbridge/mealbridge/internal/errors"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssueVerifyRoundtrip(t *testing.T) {
	mgr, err := NewTokenManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, err := mgr.Issue(user.User{ID: "u1", Email: "a@example.com", Role: user.RoleDonor})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" {
		t.Fatalf("empty token")
	}

	claims, err := mgr.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "a@example.com" || claims.Role != string(user.RoleDonor) {
		t.Fatalf("claims wrong: %+v", claims)
	}
}

func TestVerifyRejectsForgedTokens(t *testing.T) {
	mgr, err := NewTokenManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	other, err := NewTokenManager("ffffffffffffffffffffffffffffffff", time.Hour)
	if err != nil {
		t.Fatalf("new other manager: %v", err)
	}

	token, err := other.Issue(user.User{ID: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := mgr.Verify(token); !errors.IsCode(err, errors.CodeInvalidToken) {
		t.Fatalf("expected invalid token for wrong secret, got %v", err)
	}

	if _, err := mgr.Verify("not.a.token"); !errors.IsCode(err, errors.CodeInvalidToken) {
		t.Fatalf("expected invalid token for garbage, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	// Negative TTL falls back to the default, so use the smallest expirable
	// window and wait it out.
	mgr, err := NewTokenManager(testSecret, time.Millisecond)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, err := mgr.Issue(user.User{ID: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := mgr.Verify(token); !errors.IsCode(err, errors.CodeInvalidToken) {
		t.Fatalf("expected invalid token for expired, got %v", err)
	}
}

func TestNewTokenManagerRejectsShortSecret(t *testing.T) {
	if _, err := NewTokenManager("short", time.Hour); !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
