package service

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"credit-ledger/internal/model"
	"credit-ledger/internal/pkg/lock"
	"credit-ledger/internal/repository"
)

// ReferralResult is the outcome of a committed referral payout.
type ReferralResult struct {
	Referral *model.Referral
	Balance  int64
	AuditErr error
}

// ReferralService pays one-time referral rewards.
type ReferralService struct {
	core      *Core
	referrals *repository.ReferralRepository
	payout    int64
}

// NewReferralService creates a new ReferralService instance.
func NewReferralService(core *Core, referrals *repository.ReferralRepository, payout int64) *ReferralService {
	return &ReferralService{core: core, referrals: referrals, payout: payout}
}

// PayReferral credits the referrer once per referred account.
func (s *ReferralService) PayReferral(ctx context.Context, p Principal, referrerID, referredID int64) (*ReferralResult, error) {
	fields := map[string]any{"account_id": referrerID, "referred_id": referredID}

	if !p.IsAdmin() {
		return nil, fail("pay_referral", ErrForbidden, fields)
	}
	if referrerID == referredID {
		return nil, fail("pay_referral", invalid("an account cannot refer itself"), fields)
	}
	if s.payout <= 0 {
		return nil, fail("pay_referral", invalid("referral payouts are disabled"), fields)
	}

	if _, err := s.core.Accounts.GetByID(ctx, s.core.Pool, referredID); err != nil {
		return nil, fail("pay_referral", err, fields)
	}

	var (
		m      *mutation
		result *ReferralResult
		entry  *model.LedgerEntry
	)

	err := s.core.Locks.WithAccountLock(ctx, referrerID, func(ctx context.Context, tx pgx.Tx, held lock.Held) error {
		m = s.core.begin()
		referrer := held[referrerID]

		if err := requireOpen(referrer); err != nil {
			return err
		}

		existing, err := s.referrals.GetByReferred(ctx, tx, referredID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrReferralPaid
		}

		ref := &model.Referral{ReferrerID: referrerID, ReferredID: referredID, Amount: s.payout}
		if err := s.referrals.Create(ctx, tx, ref); err != nil {
			return err
		}

		updated, e, err := s.core.apply(ctx, tx, m, referrerID, s.payout, model.ReasonReferralPayout, p.ID, map[string]any{
			"referred_id": referredID,
		})
		if err != nil {
			return err
		}
		entry = e

		if entry.ID != 0 {
			if err := s.referrals.LinkEntry(ctx, tx, referredID, entry.ID); err != nil {
				return err
			}
			ref.EntryID = &entry.ID
		}

		result = &ReferralResult{Referral: ref, Balance: updated.Balance}
		return nil
	})
	if err != nil {
		return nil, fail("pay_referral", err, fields)
	}

	result.AuditErr = s.core.finish(ctx, m)

	// An entry deferred past commit gets its id only now.
	if result.Referral.EntryID == nil && entry.ID != 0 {
		if err := s.referrals.LinkEntry(ctx, s.core.Pool, referredID, entry.ID); err != nil {
			log.Warn().Err(err).Int64("referred_id", referredID).Msg("Failed to link referral entry")
		} else {
			result.Referral.EntryID = &entry.ID
		}
	}

	log.Info().
		Str("op", "pay_referral").
		Int64("account_id", referrerID).
		Int64("referred_id", referredID).
		Int64("delta", s.payout).
		Msg("Referral paid")

	return result, nil
}
