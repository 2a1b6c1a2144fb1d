package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"credit-ledger/internal/model"
	"credit-ledger/internal/pkg/db"
)

const claimColumns = `id, promotion_id, player_id, status, claimed_value, proof,
	approver_id, rejection_reason, supersedes_id, created_at, decided_at`

// ClaimRepository handles promotion claim persistence.
type ClaimRepository struct{}

// NewClaimRepository creates a new ClaimRepository instance.
func NewClaimRepository() *ClaimRepository {
	return &ClaimRepository{}
}

func scanClaim(row pgx.Row) (*model.PromotionClaim, error) {
	var c model.PromotionClaim
	err := row.Scan(
		&c.ID,
		&c.PromotionID,
		&c.PlayerID,
		&c.Status,
		&c.ClaimedValue,
		&c.Proof,
		&c.ApproverID,
		&c.RejectionReason,
		&c.SupersedesID,
		&c.CreatedAt,
		&c.DecidedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a PENDING_APPROVAL claim. A second open claim for the same
// promotion and player is refused by a partial unique index and reported as
// ErrDuplicateClaim.
func (r *ClaimRepository) Create(ctx context.Context, q db.Querier, c *model.PromotionClaim) (*model.PromotionClaim, error) {
	const query = `
		INSERT INTO promotion_claims (id, promotion_id, player_id, status, claimed_value, proof, supersedes_id, created_at)
		VALUES ($1, $2, $3, 'PENDING_APPROVAL', $4, $5, $6, NOW())
		RETURNING ` + claimColumns

	created, err := scanClaim(q.QueryRow(ctx, query,
		c.ID,
		c.PromotionID,
		c.PlayerID,
		c.ClaimedValue,
		c.Proof,
		c.SupersedesID,
	))
	if err != nil {
		if mapped := mapConstraint(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to create claim: %w", err)
	}

	return created, nil
}

// GetByID retrieves a claim without locking it.
func (r *ClaimRepository) GetByID(ctx context.Context, q db.Querier, id uuid.UUID) (*model.PromotionClaim, error) {
	const query = `SELECT ` + claimColumns + ` FROM promotion_claims WHERE id = $1`

	c, err := scanClaim(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClaimNotFound
		}
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}

	return c, nil
}

// GetForUpdate reads a claim under a row lock.
func (r *ClaimRepository) GetForUpdate(ctx context.Context, q db.Querier, id uuid.UUID) (*model.PromotionClaim, error) {
	const query = `SELECT ` + claimColumns + ` FROM promotion_claims WHERE id = $1 FOR UPDATE`

	c, err := scanClaim(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClaimNotFound
		}
		return nil, fmt.Errorf("failed to lock claim: %w", err)
	}

	return c, nil
}

// CountActive counts the player's APPROVED and PENDING_APPROVAL claims on a
// promotion.
func (r *ClaimRepository) CountActive(ctx context.Context, q db.Querier, promotionID uuid.UUID, playerID int64) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM promotion_claims
		WHERE promotion_id = $1 AND player_id = $2
		  AND status IN ('APPROVED', 'PENDING_APPROVAL')
	`

	var n int
	if err := q.QueryRow(ctx, query, promotionID, playerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count claims: %w", err)
	}

	return n, nil
}

// Latest returns the player's most recent claim on a promotion.
func (r *ClaimRepository) Latest(ctx context.Context, q db.Querier, promotionID uuid.UUID, playerID int64) (*model.PromotionClaim, error) {
	const query = `
		SELECT ` + claimColumns + `
		FROM promotion_claims
		WHERE promotion_id = $1 AND player_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	c, err := scanClaim(q.QueryRow(ctx, query, promotionID, playerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClaimNotFound
		}
		return nil, fmt.Errorf("failed to get latest claim: %w", err)
	}

	return c, nil
}

// Decide moves a PENDING_APPROVAL claim to APPROVED or REJECTED. It returns
// ErrClaimNotPending when the claim already reached a terminal state.
func (r *ClaimRepository) Decide(ctx context.Context, q db.Querier, id uuid.UUID, status model.ClaimStatus, approverID int64, reason *string) (*model.PromotionClaim, error) {
	const query = `
		UPDATE promotion_claims
		SET status = $2, approver_id = $3, rejection_reason = $4, decided_at = NOW()
		WHERE id = $1 AND status = 'PENDING_APPROVAL'
		RETURNING ` + claimColumns

	c, err := scanClaim(q.QueryRow(ctx, query, id, status, approverID, reason))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClaimNotPending
		}
		return nil, fmt.Errorf("failed to decide claim: %w", err)
	}

	return c, nil
}

// ListPendingForClient returns open claims on the client's promotions,
// oldest first.
func (r *ClaimRepository) ListPendingForClient(ctx context.Context, q db.Querier, clientID int64, limit int) ([]*model.PromotionClaim, error) {
	const query = `
		SELECT c.id, c.promotion_id, c.player_id, c.status, c.claimed_value, c.proof,
		       c.approver_id, c.rejection_reason, c.supersedes_id, c.created_at, c.decided_at
		FROM promotion_claims c
		JOIN promotions p ON p.id = c.promotion_id
		WHERE p.client_id = $1 AND c.status = 'PENDING_APPROVAL'
		ORDER BY c.created_at ASC
		LIMIT $2
	`

	rows, err := q.Query(ctx, query, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending claims: %w", err)
	}
	defer rows.Close()

	var claims []*model.PromotionClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claims: %w", err)
	}

	return claims, nil
}
