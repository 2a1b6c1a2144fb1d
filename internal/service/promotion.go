package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"credit-ledger/internal/model"
	"credit-ledger/internal/pkg/lock"
	"credit-ledger/internal/repository"
)

// CreatePromotionInput describes a new promotion.
type CreatePromotionInput struct {
	Value              int64
	TotalBudget        int64
	MaxClaimsPerPlayer int
	MinLevel           int
	RequiresProof      bool
	WageringMultiplier *int64 // nil uses the configured default
	Targeting          model.Targeting
	EndTime            time.Time
}

// ApprovalResult is the outcome of a committed claim approval.
type ApprovalResult struct {
	Claim         *model.PromotionClaim
	Promotion     *model.Promotion
	ClientBalance int64
	PlayerBalance int64
	Bonus         *model.BonusBalance

	// AuditErr is set when a ledger entry could not be written after commit.
	AuditErr error
}

// PromotionService manages promotions and the claim approval state machine.
type PromotionService struct {
	core       *Core
	promotions *repository.PromotionRepository
	claims     *repository.ClaimRepository
	bonus      *repository.BonusRepository

	defaultWagering int64
	now             func() time.Time
}

// NewPromotionService creates a new PromotionService instance.
func NewPromotionService(
	core *Core,
	promotions *repository.PromotionRepository,
	claims *repository.ClaimRepository,
	bonus *repository.BonusRepository,
	defaultWagering int64,
) *PromotionService {
	return &PromotionService{
		core:            core,
		promotions:      promotions,
		claims:          claims,
		bonus:           bonus,
		defaultWagering: defaultWagering,
		now:             time.Now,
	}
}

// CreatePromotion opens an ACTIVE promotion funded by the calling client.
// The budget is not reserved; each approval pays from the client's balance.
func (s *PromotionService) CreatePromotion(ctx context.Context, p Principal, in CreatePromotionInput) (*model.Promotion, error) {
	fields := map[string]any{"account_id": p.ID}

	if p.Role != model.RoleClient {
		return nil, fail("create_promotion", ErrForbidden, fields)
	}

	if in.Targeting.Kind == "" {
		in.Targeting.Kind = model.TargetAll
	}
	wagering := s.defaultWagering
	if in.WageringMultiplier != nil {
		wagering = *in.WageringMultiplier
	}

	var err error
	switch {
	case in.Value <= 0:
		err = invalid("value must be positive")
	case in.TotalBudget < in.Value:
		err = invalid("total budget %d cannot pay a single claim of %d", in.TotalBudget, in.Value)
	case in.MaxClaimsPerPlayer <= 0:
		err = invalid("max claims per player must be positive")
	case in.MinLevel < 0:
		err = invalid("min level must not be negative")
	case wagering < 0:
		err = invalid("wagering multiplier must not be negative")
	case !in.EndTime.After(s.now()):
		err = invalid("end time must be in the future")
	default:
		if tErr := in.Targeting.Validate(); tErr != nil {
			err = invalid("%v", tErr)
		}
	}
	if err != nil {
		return nil, fail("create_promotion", err, fields)
	}

	client, err := s.core.Accounts.GetByID(ctx, s.core.Pool, p.ID)
	if err != nil {
		return nil, fail("create_promotion", err, fields)
	}
	if err := requireOpen(client); err != nil {
		return nil, fail("create_promotion", err, fields)
	}

	promotion, err := s.promotions.Create(ctx, s.core.Pool, &model.Promotion{
		ID:                 uuid.New(),
		ClientID:           p.ID,
		Value:              in.Value,
		TotalBudget:        in.TotalBudget,
		MaxClaimsPerPlayer: in.MaxClaimsPerPlayer,
		MinLevel:           in.MinLevel,
		RequiresProof:      in.RequiresProof,
		WageringMultiplier: wagering,
		Targeting:          in.Targeting,
		EndTime:            in.EndTime,
	})
	if err != nil {
		return nil, fail("create_promotion", err, fields)
	}

	log.Info().
		Str("op", "create_promotion").
		Int64("account_id", p.ID).
		Str("promotion_id", promotion.ID.String()).
		Int64("value", promotion.Value).
		Int64("total_budget", promotion.TotalBudget).
		Msg("Promotion created")

	return promotion, nil
}

// CancelPromotion ends an ACTIVE promotion. Only its client or an admin may
// cancel it. Pending claims stay pending and can no longer be approved.
func (s *PromotionService) CancelPromotion(ctx context.Context, p Principal, promotionID uuid.UUID) error {
	fields := map[string]any{"account_id": p.ID, "promotion_id": promotionID.String()}

	promotion, err := s.promotions.GetByID(ctx, s.core.Pool, promotionID)
	if err != nil {
		return fail("cancel_promotion", err, fields)
	}
	if !p.owns(promotion.ClientID) {
		return fail("cancel_promotion", ErrForbidden, fields)
	}

	ended, err := s.promotions.EndActive(ctx, s.core.Pool, promotionID, model.PromotionCancelled)
	if err != nil {
		return fail("cancel_promotion", err, fields)
	}
	if !ended {
		return fail("cancel_promotion", ErrPromotionInactive, fields)
	}

	log.Info().Str("op", "cancel_promotion").Fields(fields).Msg("Promotion cancelled")
	return nil
}

// ExpirePromotions moves every ACTIVE promotion past its end time to EXPIRED.
func (s *PromotionService) ExpirePromotions(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.promotions.ExpireDue(ctx, s.core.Pool, now)
	if err != nil {
		return 0, fail("expire_promotions", err, nil)
	}
	if n > 0 {
		log.Info().Str("op", "expire_promotions").Int64("expired", n).Msg("Promotions expired")
	}
	return n, nil
}

// RequestClaim records a player's PENDING_APPROVAL claim. No balance moves.
// The budget check here is advisory; approval re-checks it under lock.
func (s *PromotionService) RequestClaim(ctx context.Context, p Principal, promotionID uuid.UUID, proof *string) (*model.PromotionClaim, error) {
	fields := map[string]any{"account_id": p.ID, "promotion_id": promotionID.String()}

	if p.Role != model.RolePlayer {
		return nil, fail("request_claim", ErrForbidden, fields)
	}
	if proof != nil {
		trimmed := strings.TrimSpace(*proof)
		if trimmed == "" {
			proof = nil
		} else {
			proof = &trimmed
		}
	}

	var claim *model.PromotionClaim
	err := pgx.BeginFunc(ctx, s.core.Pool, func(tx pgx.Tx) error {
		player, err := s.core.Accounts.GetByID(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if err := requireOpen(player); err != nil {
			return err
		}

		// Serializes requests per promotion so the claim limit holds.
		promotion, err := s.promotions.GetForUpdate(ctx, tx, promotionID)
		if err != nil {
			return err
		}
		if !s.claimable(promotion) {
			return ErrPromotionInactive
		}
		if player.Level < promotion.MinLevel || !promotion.Targeting.Allows(player.ID) {
			return ErrNotEligible
		}
		if promotion.RequiresProof && proof == nil {
			return ErrNeedsProof
		}

		var supersedes *uuid.UUID
		latest, err := s.claims.Latest(ctx, tx, promotionID, player.ID)
		switch {
		case errors.Is(err, repository.ErrClaimNotFound):
		case err != nil:
			return err
		case latest.Status == model.ClaimPendingApproval:
			return ErrDuplicateClaim
		case latest.Status == model.ClaimRejected:
			supersedes = &latest.ID
		}

		count, err := s.claims.CountActive(ctx, tx, promotionID, player.ID)
		if err != nil {
			return err
		}
		if count >= promotion.MaxClaimsPerPlayer {
			return ErrNotEligible
		}

		if promotion.Remaining() < promotion.Value {
			return ErrBudgetExceeded
		}

		claim, err = s.claims.Create(ctx, tx, &model.PromotionClaim{
			ID:           uuid.New(),
			PromotionID:  promotionID,
			PlayerID:     player.ID,
			ClaimedValue: promotion.Value,
			Proof:        proof,
			SupersedesID: supersedes,
		})
		return err
	})
	if err != nil {
		return nil, fail("request_claim", err, fields)
	}

	log.Info().
		Str("op", "request_claim").
		Int64("account_id", p.ID).
		Str("promotion_id", promotionID.String()).
		Str("claim_id", claim.ID.String()).
		Msg("Claim requested")

	return claim, nil
}

// claimable reports whether new claims may be requested or approved.
func (s *PromotionService) claimable(promotion *model.Promotion) bool {
	return promotion.Status == model.PromotionActive && s.now().Before(promotion.EndTime)
}

// ApproveClaim pays a pending claim from the client to the player. Both
// accounts are locked in ascending id order, the budget is re-checked under
// the lock, and the two balance legs, budget consumption, claim transition,
// bonus grant and both ledger entries commit together or not at all.
func (s *PromotionService) ApproveClaim(ctx context.Context, p Principal, claimID uuid.UUID) (*ApprovalResult, error) {
	fields := map[string]any{"account_id": p.ID, "claim_id": claimID.String()}

	if p.Role != model.RoleClient {
		return nil, fail("approve_claim", ErrForbidden, fields)
	}

	// The claim's player and promotion never change, so they can be read
	// before locking to learn which accounts to lock.
	pending, err := s.claims.GetByID(ctx, s.core.Pool, claimID)
	if err != nil {
		return nil, fail("approve_claim", err, fields)
	}
	promotion, err := s.promotions.GetByID(ctx, s.core.Pool, pending.PromotionID)
	if err != nil {
		return nil, fail("approve_claim", err, fields)
	}
	if promotion.ClientID != p.ID {
		return nil, fail("approve_claim", ErrForbidden, fields)
	}
	fields["promotion_id"] = promotion.ID.String()

	clientID, playerID := promotion.ClientID, pending.PlayerID

	var (
		m      *mutation
		result *ApprovalResult
	)

	err = s.core.Locks.WithAccountsLock(ctx, []int64{clientID, playerID}, func(ctx context.Context, tx pgx.Tx, held lock.Held) error {
		m = s.core.begin()

		claim, err := s.claims.GetForUpdate(ctx, tx, claimID)
		if err != nil {
			return err
		}
		if claim.Status != model.ClaimPendingApproval {
			return ErrClaimNotPending
		}

		promotion, err := s.promotions.GetForUpdate(ctx, tx, claim.PromotionID)
		if err != nil {
			return err
		}
		if promotion.Status == model.PromotionCancelled ||
			promotion.Status == model.PromotionExpired ||
			!s.now().Before(promotion.EndTime) {
			return ErrPromotionInactive
		}
		if promotion.UsedBudget+claim.ClaimedValue > promotion.TotalBudget {
			return ErrBudgetExceeded
		}

		client, player := held[clientID], held[playerID]
		if err := requireOpen(client, player); err != nil {
			return err
		}
		if client.Balance < claim.ClaimedValue {
			return ErrInsufficientFunds
		}

		meta := map[string]any{
			"claim_id":     claim.ID.String(),
			"promotion_id": promotion.ID.String(),
		}
		clientAfter, _, err := s.core.apply(ctx, tx, m, clientID, -claim.ClaimedValue, model.ReasonPromotionDebit, p.ID, meta)
		if err != nil {
			return err
		}
		playerAfter, _, err := s.core.apply(ctx, tx, m, playerID, claim.ClaimedValue, model.ReasonPromotionCredit, p.ID, meta)
		if err != nil {
			return err
		}

		promotion, err = s.promotions.ConsumeBudget(ctx, tx, promotion.ID, claim.ClaimedValue)
		if err != nil {
			return err
		}

		approved, err := s.claims.Decide(ctx, tx, claim.ID, model.ClaimApproved, p.ID, nil)
		if err != nil {
			return err
		}

		bonus, err := s.bonus.Grant(ctx, tx, playerID, clientID,
			claim.ClaimedValue, claim.ClaimedValue*promotion.WageringMultiplier)
		if err != nil {
			return err
		}

		result = &ApprovalResult{
			Claim:         approved,
			Promotion:     promotion,
			ClientBalance: clientAfter.Balance,
			PlayerBalance: playerAfter.Balance,
			Bonus:         bonus,
		}
		return nil
	})
	if err != nil {
		return nil, fail("approve_claim", err, fields)
	}

	result.AuditErr = s.core.finish(ctx, m)

	log.Info().
		Str("op", "approve_claim").
		Int64("account_id", p.ID).
		Str("claim_id", claimID.String()).
		Str("promotion_id", result.Promotion.ID.String()).
		Int64("delta", result.Claim.ClaimedValue).
		Str("promotion_status", string(result.Promotion.Status)).
		Msg("Claim approved")

	return result, nil
}

// RejectClaim marks a pending claim REJECTED. It never touches a balance.
// The player may request again; the rejected claim is kept for history.
func (s *PromotionService) RejectClaim(ctx context.Context, p Principal, claimID uuid.UUID, reason string) (*model.PromotionClaim, error) {
	fields := map[string]any{"account_id": p.ID, "claim_id": claimID.String()}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fail("reject_claim", invalid("rejection reason is required"), fields)
	}

	var claim *model.PromotionClaim
	err := pgx.BeginFunc(ctx, s.core.Pool, func(tx pgx.Tx) error {
		current, err := s.claims.GetForUpdate(ctx, tx, claimID)
		if err != nil {
			return err
		}
		promotion, err := s.promotions.GetByID(ctx, tx, current.PromotionID)
		if err != nil {
			return err
		}
		if p.Role != model.RoleClient || promotion.ClientID != p.ID {
			return ErrForbidden
		}

		claim, err = s.claims.Decide(ctx, tx, claimID, model.ClaimRejected, p.ID, &reason)
		return err
	})
	if err != nil {
		return nil, fail("reject_claim", err, fields)
	}

	log.Info().Str("op", "reject_claim").Fields(fields).Str("reason", reason).Msg("Claim rejected")
	return claim, nil
}

// ListPending returns open claims on the calling client's promotions.
func (s *PromotionService) ListPending(ctx context.Context, p Principal, limit int) ([]*model.PromotionClaim, error) {
	if p.Role != model.RoleClient {
		return nil, fail("list_pending", ErrForbidden, map[string]any{"account_id": p.ID})
	}
	claims, err := s.claims.ListPendingForClient(ctx, s.core.Pool, p.ID, limit)
	if err != nil {
		return nil, fail("list_pending", err, map[string]any{"account_id": p.ID})
	}
	return claims, nil
}

// ListActive returns ACTIVE promotions, soonest ending first.
func (s *PromotionService) ListActive(ctx context.Context, limit int) ([]*model.Promotion, error) {
	promotions, err := s.promotions.ListActive(ctx, s.core.Pool, limit)
	if err != nil {
		return nil, fail("list_promotions", err, nil)
	}
	return promotions, nil
}
