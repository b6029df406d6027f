package postgres

import (
	"errors"

	"github.com/dcms/dentflow/internal/domain/appointment"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation      = "23505"
	codeLockNotAvailable     = "55P03"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

// classifyLockError maps failures to enter or finish the booking critical
// section onto ErrBookingRaceLost. Everything else passes through.
func classifyLockError(err error) error {
	switch pgCode(err) {
	case codeLockNotAvailable, codeSerializationFailure, codeDeadlockDetected:
		return appointment.ErrBookingRaceLost
	}
	return err
}
