package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"credit-ledger/internal/model"
	"credit-ledger/internal/pkg/db"
)

// ReferralRepository records one-time referral payouts.
type ReferralRepository struct{}

// NewReferralRepository creates a new ReferralRepository instance.
func NewReferralRepository() *ReferralRepository {
	return &ReferralRepository{}
}

// Create records a payout. A second payout for the same referred account is
// refused and reported as ErrReferralExists.
func (r *ReferralRepository) Create(ctx context.Context, q db.Querier, ref *model.Referral) error {
	const query = `
		INSERT INTO referrals (referred_id, referrer_id, amount, paid_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING paid_at
	`

	err := q.QueryRow(ctx, query, ref.ReferredID, ref.ReferrerID, ref.Amount).Scan(&ref.PaidAt)
	if err != nil {
		if mapped := mapConstraint(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to create referral: %w", err)
	}

	return nil
}

// LinkEntry stores the ledger entry that paid the referral.
func (r *ReferralRepository) LinkEntry(ctx context.Context, q db.Querier, referredID, entryID int64) error {
	const query = `UPDATE referrals SET entry_id = $2 WHERE referred_id = $1`

	if _, err := q.Exec(ctx, query, referredID, entryID); err != nil {
		return fmt.Errorf("failed to link referral entry: %w", err)
	}

	return nil
}

// GetByReferred returns the payout recorded for a referred account, or nil.
func (r *ReferralRepository) GetByReferred(ctx context.Context, q db.Querier, referredID int64) (*model.Referral, error) {
	const query = `
		SELECT referred_id, referrer_id, amount, entry_id, paid_at
		FROM referrals
		WHERE referred_id = $1
	`

	var ref model.Referral
	err := q.QueryRow(ctx, query, referredID).Scan(
		&ref.ReferredID,
		&ref.ReferrerID,
		&ref.Amount,
		&ref.EntryID,
		&ref.PaidAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get referral: %w", err)
	}

	return &ref, nil
}
