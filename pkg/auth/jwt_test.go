package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/dcms/dentflow/internal/config"
	"github.com/dcms/dentflow/internal/domain"
	"github.com/google/uuid"
)

func testManager(ttl time.Duration) *JWTManager {
	return NewJWTManager(config.JWTConfig{Secret: "test-secret-test-secret-test-secret", AccessTokenTTL: ttl, Issuer: "dentflow-test"})
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := testManager(time.Minute)
	patientID := uuid.New()
	in := &domain.Claims{UserID: uuid.New(), Role: domain.RolePatient, PatientID: &patientID}

	pair, err := m.GenerateAccessToken(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := m.ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.UserID != in.UserID || out.Role != in.Role || out.PatientID == nil || *out.PatientID != patientID {
		t.Errorf("claims mismatch: %+v", out)
	}
}

func TestValidateAccessToken_Rejects(t *testing.T) {
	m := testManager(time.Minute)
	pair, _ := m.GenerateAccessToken(&domain.Claims{UserID: uuid.New(), Role: domain.RoleStaff})

	other := NewJWTManager(config.JWTConfig{Secret: "another-secret-another-secret-xx", AccessTokenTTL: time.Minute, Issuer: "dentflow-test"})
	if _, err := other.ValidateAccessToken(pair.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("wrong secret: got %v", err)
	}

	expired := testManager(-time.Minute)
	old, _ := expired.GenerateAccessToken(&domain.Claims{UserID: uuid.New(), Role: domain.RoleStaff})
	if _, err := m.ValidateAccessToken(old.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expired: got %v", err)
	}

	if _, err := m.ValidateAccessToken("not-a-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("garbage: got %v", err)
	}
}
