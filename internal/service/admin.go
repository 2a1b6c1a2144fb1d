package service

import (
	"context"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"credit-ledger/internal/model"
	"credit-ledger/internal/pkg/lock"
)

// AdjustResult is the outcome of a committed admin adjustment.
type AdjustResult struct {
	Account  *model.Account
	Entry    *model.LedgerEntry
	AuditErr error
}

// AdminService performs administrative balance corrections.
type AdminService struct {
	core *Core
}

// NewAdminService creates a new AdminService instance.
func NewAdminService(core *Core) *AdminService {
	return &AdminService{core: core}
}

// AdminAdjustCredits adds delta to an account. A negative delta that would
// take the balance below zero fails with ErrInsufficientFunds.
func (s *AdminService) AdminAdjustCredits(ctx context.Context, p Principal, accountID, delta int64, note string) (*AdjustResult, error) {
	fields := map[string]any{"account_id": accountID, "delta": delta, "actor_id": p.ID}

	if !p.IsAdmin() {
		return nil, fail("admin_adjust", ErrForbidden, fields)
	}
	if delta == 0 {
		return nil, fail("admin_adjust", invalid("delta must not be zero"), fields)
	}

	var (
		m      *mutation
		result *AdjustResult
	)

	err := s.core.Locks.WithAccountLock(ctx, accountID, func(ctx context.Context, tx pgx.Tx, held lock.Held) error {
		m = s.core.begin()
		account := held[accountID]

		if err := requireOpen(account); err != nil {
			return err
		}
		if delta > 0 && account.Balance > math.MaxInt64-delta {
			return invalid("delta %d overflows balance %d", delta, account.Balance)
		}
		if account.Balance+delta < 0 {
			return ErrInsufficientFunds
		}

		meta := map[string]any{}
		if note = strings.TrimSpace(note); note != "" {
			meta["note"] = note
		}

		updated, entry, err := s.core.apply(ctx, tx, m, accountID, delta, model.ReasonAdminAdjust, p.ID, meta)
		if err != nil {
			return err
		}

		result = &AdjustResult{Account: updated, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, fail("admin_adjust", err, fields)
	}

	result.AuditErr = s.core.finish(ctx, m)

	log.Info().
		Str("op", "admin_adjust").
		Int64("account_id", accountID).
		Int64("actor_id", p.ID).
		Int64("delta", delta).
		Int64("balance", result.Account.Balance).
		Msg("Balance adjusted")

	return result, nil
}
