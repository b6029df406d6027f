package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dcms/dentflow/internal/domain/appointment"
	"github.com/dcms/dentflow/internal/domain/schedule"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassifyLockError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantRace bool
	}{
		{"lock timeout", &pgconn.PgError{Code: codeLockNotAvailable}, true},
		{"serialization failure", fmt.Errorf("acquiring booking lock: %w", &pgconn.PgError{Code: codeSerializationFailure}), true},
		{"deadlock", &pgconn.PgError{Code: codeDeadlockDetected}, true},
		{"unique violation", &pgconn.PgError{Code: codeUniqueViolation}, false},
		{"domain error", &schedule.SlotFullError{Start: schedule.MustClock("09:00")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyLockError(tt.err)
			if errors.Is(got, appointment.ErrBookingRaceLost) != tt.wantRace {
				t.Errorf("classifyLockError(%v) = %v", tt.err, got)
			}
		})
	}

	if classifyLockError(nil) != nil {
		t.Error("nil must stay nil")
	}
}

func TestDateLockKey(t *testing.T) {
	if got := dateLockKey(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)); got != 20261019 {
		t.Errorf("dateLockKey = %d", got)
	}
}
