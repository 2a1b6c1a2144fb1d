// Package lock serializes balance mutations per account using
// transaction-scoped row locks (SELECT ... FOR UPDATE).
//
// Every mutating operation runs inside WithAccountsLock: a transaction is
// opened, the account rows are locked in ascending id order, the callback runs
// on the same transaction and the transaction commits. Row locks are held until
// commit or rollback, so exclusion spans processes sharing the database.
package lock

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"credit-ledger/internal/model"
	"credit-ledger/internal/pkg/db"
)

// RowLocker reads an account row under an exclusive row lock.
type RowLocker interface {
	LockAccount(ctx context.Context, q db.Querier, accountID int64) (*model.Account, error)
}

// Held maps each locked account id to the row read while taking the lock.
type Held map[int64]*model.Account

// TxFunc is the work performed while the account locks are held. It must use
// tx for every statement so the work commits or rolls back with the locks.
type TxFunc func(ctx context.Context, tx pgx.Tx, held Held) error

// Options tunes lock waits and Busy retries.
type Options struct {
	LockTimeout    time.Duration
	BusyRetries    uint64
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Coordinator hands out account locks backed by the database.
type Coordinator struct {
	pool   db.TxStarter
	locker RowLocker
	opts   Options
}

// NewCoordinator creates a Coordinator. Zero options fall back to a 2s lock
// timeout and no retries.
func NewCoordinator(pool db.TxStarter, locker RowLocker, opts Options) *Coordinator {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 2 * time.Second
	}
	if opts.BackoffInitial <= 0 {
		opts.BackoffInitial = 50 * time.Millisecond
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = time.Second
	}
	return &Coordinator{pool: pool, locker: locker, opts: opts}
}

// WithAccountLock executes fn while holding the lock on a single account.
func (c *Coordinator) WithAccountLock(ctx context.Context, accountID int64, fn TxFunc) error {
	return c.WithAccountsLock(ctx, []int64{accountID}, fn)
}

// WithAccountsLock executes fn while holding locks on every account in ids.
// Locks are always taken in ascending id order. A lock that cannot be acquired
// within the configured timeout fails with ErrLockTimeout after the configured
// number of retries.
func (c *Coordinator) WithAccountsLock(ctx context.Context, ids []int64, fn TxFunc) error {
	ordered := LockOrder(ids)
	if len(ordered) == 0 {
		return errors.New("no accounts to lock")
	}

	if c.opts.BusyRetries == 0 {
		return c.attempt(ctx, ordered, fn)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.opts.BackoffInitial
	policy.MaxInterval = c.opts.BackoffMax
	policy.MaxElapsedTime = 0

	attempts := 0
	op := func() error {
		attempts++
		err := c.attempt(ctx, ordered, fn)
		if err == nil || !errors.Is(err, ErrLockTimeout) {
			if err != nil {
				return backoff.Permanent(err)
			}
			return nil
		}
		log.Debug().
			Ints64("accounts", ordered).
			Int("attempt", attempts).
			Msg("Account lock busy, backing off")
		return err
	}

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, c.opts.BusyRetries), ctx))
}

// attempt runs one transaction: lock, fn, commit.
func (c *Coordinator) attempt(ctx context.Context, ids []int64, fn TxFunc) (err error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", Classify(err))
	}

	// Once locks are held the transaction finishes regardless of the caller.
	detached := context.WithoutCancel(ctx)
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(detached); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Ints64("accounts", ids).Msg("Failed to roll back transaction")
			}
		}
	}()

	timeout := fmt.Sprintf("%dms", c.opts.LockTimeout.Milliseconds())
	if _, err = tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, timeout); err != nil {
		return fmt.Errorf("failed to set lock timeout: %w", Classify(err))
	}

	held := make(Held, len(ids))
	for _, id := range ids {
		account, lockErr := c.locker.LockAccount(ctx, tx, id)
		if lockErr != nil {
			err = Classify(lockErr)
			return err
		}
		held[id] = account
	}

	if err = fn(detached, tx, held); err != nil {
		err = Classify(err)
		return err
	}

	if err = tx.Commit(detached); err != nil {
		err = fmt.Errorf("failed to commit transaction: %w", Classify(err))
		return err
	}

	return nil
}

// LockOrder returns ids sorted ascending with duplicates removed. This is the
// global acquisition order for every multi-account lock.
func LockOrder(ids []int64) []int64 {
	ordered := slices.Clone(ids)
	slices.Sort(ordered)
	return slices.Compact(ordered)
}
