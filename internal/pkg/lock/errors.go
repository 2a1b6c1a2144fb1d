package lock

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Lock-related errors.
var (
	// ErrLockTimeout is returned when a row lock cannot be acquired within the
	// configured timeout, or the database broke a deadlock. Safe to retry.
	ErrLockTimeout = errors.New("lock acquisition timeout")
)

// PostgreSQL error codes that mean "try again later".
const (
	codeLockNotAvailable = "55P03"
	codeDeadlockDetected = "40P01"
)

// Classify maps lock contention errors from PostgreSQL to ErrLockTimeout and
// returns every other error unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, ErrLockTimeout) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeLockNotAvailable, codeDeadlockDetected:
			return fmt.Errorf("%w: %s", ErrLockTimeout, pgErr.Message)
		}
	}
	return err
}
