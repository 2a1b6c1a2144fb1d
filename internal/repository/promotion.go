package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"credit-ledger/internal/model"
	"credit-ledger/internal/pkg/db"
)

const promotionColumns = `id, client_id, value, total_budget, used_budget, status,
	max_claims_per_player, min_level, requires_proof, wagering_multiplier,
	targeting, end_time, created_at, updated_at`

// PromotionRepository handles promotion persistence and budget accounting.
type PromotionRepository struct{}

// NewPromotionRepository creates a new PromotionRepository instance.
func NewPromotionRepository() *PromotionRepository {
	return &PromotionRepository{}
}

func scanPromotion(row pgx.Row) (*model.Promotion, error) {
	var p model.Promotion
	err := row.Scan(
		&p.ID,
		&p.ClientID,
		&p.Value,
		&p.TotalBudget,
		&p.UsedBudget,
		&p.Status,
		&p.MaxClaimsPerPlayer,
		&p.MinLevel,
		&p.RequiresProof,
		&p.WageringMultiplier,
		&p.Targeting,
		&p.EndTime,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new ACTIVE promotion with an unused budget.
func (r *PromotionRepository) Create(ctx context.Context, q db.Querier, p *model.Promotion) (*model.Promotion, error) {
	const query = `
		INSERT INTO promotions (id, client_id, value, total_budget, used_budget, status,
			max_claims_per_player, min_level, requires_proof, wagering_multiplier,
			targeting, end_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, 'ACTIVE', $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING ` + promotionColumns

	created, err := scanPromotion(q.QueryRow(ctx, query,
		p.ID,
		p.ClientID,
		p.Value,
		p.TotalBudget,
		p.MaxClaimsPerPlayer,
		p.MinLevel,
		p.RequiresProof,
		p.WageringMultiplier,
		p.Targeting,
		p.EndTime,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create promotion: %w", err)
	}

	return created, nil
}

// GetByID retrieves a promotion without locking it.
func (r *PromotionRepository) GetByID(ctx context.Context, q db.Querier, id uuid.UUID) (*model.Promotion, error) {
	const query = `SELECT ` + promotionColumns + ` FROM promotions WHERE id = $1`

	p, err := scanPromotion(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPromotionNotFound
		}
		return nil, fmt.Errorf("failed to get promotion: %w", err)
	}

	return p, nil
}

// GetForUpdate reads a promotion under a row lock so its budget can be
// checked and consumed atomically.
func (r *PromotionRepository) GetForUpdate(ctx context.Context, q db.Querier, id uuid.UUID) (*model.Promotion, error) {
	const query = `SELECT ` + promotionColumns + ` FROM promotions WHERE id = $1 FOR UPDATE`

	p, err := scanPromotion(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPromotionNotFound
		}
		return nil, fmt.Errorf("failed to lock promotion: %w", err)
	}

	return p, nil
}

// ConsumeBudget adds amount to used_budget and moves the promotion to
// DEPLETED when the budget is exhausted. The schema refuses to exceed the
// total budget, reported as ErrBudgetExceeded.
func (r *PromotionRepository) ConsumeBudget(ctx context.Context, q db.Querier, id uuid.UUID, amount int64) (*model.Promotion, error) {
	const query = `
		UPDATE promotions
		SET used_budget = used_budget + $2,
		    status = CASE WHEN used_budget + $2 >= total_budget THEN 'DEPLETED' ELSE status END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + promotionColumns

	p, err := scanPromotion(q.QueryRow(ctx, query, id, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPromotionNotFound
		}
		if mapped := mapConstraint(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to consume promotion budget: %w", err)
	}

	return p, nil
}

// EndActive moves an ACTIVE promotion to a terminal status. It reports false
// when the promotion was not ACTIVE.
func (r *PromotionRepository) EndActive(ctx context.Context, q db.Querier, id uuid.UUID, status model.PromotionStatus) (bool, error) {
	const query = `
		UPDATE promotions
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'ACTIVE'
	`

	result, err := q.Exec(ctx, query, id, status)
	if err != nil {
		return false, fmt.Errorf("failed to end promotion: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// ExpireDue marks every ACTIVE promotion whose end time has passed as
// EXPIRED and returns how many were changed.
func (r *PromotionRepository) ExpireDue(ctx context.Context, q db.Querier, now time.Time) (int64, error) {
	const query = `
		UPDATE promotions
		SET status = 'EXPIRED', updated_at = NOW()
		WHERE status = 'ACTIVE' AND end_time <= $1
	`

	result, err := q.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire promotions: %w", err)
	}

	return result.RowsAffected(), nil
}

// ListActive returns ACTIVE promotions ordered by end time.
func (r *PromotionRepository) ListActive(ctx context.Context, q db.Querier, limit int) ([]*model.Promotion, error) {
	const query = `
		SELECT ` + promotionColumns + `
		FROM promotions
		WHERE status = 'ACTIVE'
		ORDER BY end_time ASC
		LIMIT $1
	`

	rows, err := q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list promotions: %w", err)
	}
	defer rows.Close()

	var promotions []*model.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan promotion: %w", err)
		}
		promotions = append(promotions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating promotions: %w", err)
	}

	return promotions, nil
}
