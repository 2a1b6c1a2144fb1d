// Package service provides the ledger operations exposed to callers.
//
// Every balance mutation runs through Core: the account rows are locked by
// the coordinator, the delta is applied and its ledger entry appended in the
// same transaction, and notifications are emitted only after commit.
package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"credit-ledger/internal/audit"
	"credit-ledger/internal/model"
	"credit-ledger/internal/notify"
	"credit-ledger/internal/pkg/db"
	"credit-ledger/internal/pkg/lock"
	"credit-ledger/internal/repository"
)

// Notifier receives committed balance events. It must not block.
type Notifier interface {
	Emit(e notify.Event) bool
}

// Core holds the collaborators every mutating service shares.
type Core struct {
	Pool     db.Conn
	Locks    *lock.Coordinator
	Accounts *repository.AccountRepository
	Auditor  *audit.Auditor
	Notifier Notifier
}

// mutation collects the side effects of one locked transaction.
type mutation struct {
	batch  *audit.Batch
	events []notify.Event
}

func (c *Core) begin() *mutation {
	return &mutation{batch: c.Auditor.Begin()}
}

// apply adds delta to an account, appends its ledger entry and queues the
// notification. It is the only way services change a balance.
func (c *Core) apply(
	ctx context.Context,
	tx pgx.Tx,
	m *mutation,
	accountID, delta int64,
	reason model.Reason,
	actorID int64,
	meta map[string]any,
) (*model.Account, *model.LedgerEntry, error) {
	updated, err := c.Accounts.ApplyDelta(ctx, tx, accountID, delta)
	if err != nil {
		return nil, nil, err
	}

	entry := &model.LedgerEntry{
		AccountID:        accountID,
		Delta:            delta,
		Reason:           reason,
		ActorID:          actorID,
		ResultingBalance: updated.Balance,
		Context:          meta,
	}
	m.batch.Append(ctx, tx, entry)

	m.events = append(m.events, notify.Event{
		AccountID:  accountID,
		Delta:      delta,
		Reason:     reason,
		NewBalance: updated.Balance,
	})

	return updated, entry, nil
}

// finish runs after commit: deferred ledger entries are retried and
// notifications emitted. The returned error is an ErrAuditWrite at most.
func (c *Core) finish(ctx context.Context, m *mutation) error {
	if m == nil {
		return nil
	}

	auditErr := m.batch.Flush(ctx, c.Locks)

	if c.Notifier != nil {
		for _, e := range m.events {
			c.Notifier.Emit(e)
		}
	}

	return auditErr
}

// fail translates err and logs it with the operation name.
func fail(op string, err error, fields map[string]any) error {
	err = translate(err)

	event := log.Debug()
	if errors.Is(err, ErrPersistence) {
		event = log.Error()
	}
	event.Err(err).Str("op", op).Fields(fields).Msg("Ledger operation failed")

	return err
}

// requireOpen rejects mutations on closed accounts.
func requireOpen(accounts ...*model.Account) error {
	for _, a := range accounts {
		if a.Closed() {
			return ErrAccountClosed
		}
	}
	return nil
}
