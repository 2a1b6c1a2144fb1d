package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"credit-ledger/internal/game"
	"credit-ledger/internal/model"
	"credit-ledger/internal/pkg/lock"
	"credit-ledger/internal/repository"
)

// WagerLimits bounds every bet regardless of game.
type WagerLimits struct {
	MinBet int64
	MaxBet int64
}

// WagerResult is the outcome of a committed wager.
type WagerResult struct {
	Record      *model.WagerRecord
	Description string

	// AuditErr is set when the ledger entry could not be written after
	// commit. The wager itself stands.
	AuditErr error
}

// WagerService settles mini-game bets.
type WagerService struct {
	core   *Core
	wagers *repository.WagerRepository
	bonus  *repository.BonusRepository
	games  *game.Registry
	rng    game.RNG
	limits WagerLimits
}

// NewWagerService creates a new WagerService instance.
func NewWagerService(
	core *Core,
	wagers *repository.WagerRepository,
	bonus *repository.BonusRepository,
	games *game.Registry,
	rng game.RNG,
	limits WagerLimits,
) *WagerService {
	if rng == nil {
		rng = game.SystemRNG{}
	}
	return &WagerService{
		core:   core,
		wagers: wagers,
		bonus:  bonus,
		games:  games,
		rng:    rng,
		limits: limits,
	}
}

// PlaceWager validates the bet, then under the account lock checks the
// balance, resolves the game and settles the result together with its wager
// record, ledger entry and bonus wagering progress.
func (s *WagerService) PlaceWager(
	ctx context.Context,
	p Principal,
	accountID int64,
	gameType model.GameType,
	bet int64,
	params model.GameParams,
) (*WagerResult, error) {
	fields := map[string]any{"account_id": accountID, "game": gameType, "bet": bet}

	if p.Role != model.RolePlayer || p.ID != accountID {
		return nil, fail("place_wager", ErrForbidden, fields)
	}

	if bet < s.limits.MinBet || bet > s.limits.MaxBet {
		return nil, fail("place_wager",
			invalid("bet must be between %d and %d, got %d", s.limits.MinBet, s.limits.MaxBet, bet), fields)
	}

	g, ok := s.games.Get(gameType)
	if !ok {
		return nil, fail("place_wager", invalid("unknown game %q", gameType), fields)
	}
	if params.Game != gameType {
		return nil, fail("place_wager", invalid("params for %q sent to %q", params.Game, gameType), fields)
	}
	if err := g.ValidateParams(params); err != nil {
		return nil, fail("place_wager", fmt.Errorf("%w: %w", ErrValidation, err), fields)
	}

	var (
		m      *mutation
		record *model.WagerRecord
		desc   string
	)

	err := s.core.Locks.WithAccountLock(ctx, accountID, func(ctx context.Context, tx pgx.Tx, held lock.Held) error {
		m = s.core.begin()
		account := held[accountID]

		if err := requireOpen(account); err != nil {
			return err
		}
		if account.Balance < bet {
			return ErrInsufficientFunds
		}

		result, err := g.Resolve(s.rng, bet, params)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", gameType, err)
		}

		id := uuid.New()
		updated, _, err := s.core.apply(ctx, tx, m, accountID, result.WinAmount-bet, model.ReasonWager, p.ID, map[string]any{
			"wager_id": id.String(),
			"game":     string(gameType),
			"bet":      bet,
			"win":      result.WinAmount,
		})
		if err != nil {
			return err
		}

		record = &model.WagerRecord{
			ID:            id,
			AccountID:     accountID,
			GameType:      gameType,
			BetAmount:     bet,
			WinAmount:     result.WinAmount,
			Result:        result.Outcome,
			BalanceBefore: account.Balance,
			BalanceAfter:  updated.Balance,
			GameParams:    params,
		}
		if err := s.wagers.Create(ctx, tx, record); err != nil {
			return err
		}

		if _, err := s.bonus.AdvanceWagering(ctx, tx, accountID, bet); err != nil {
			return err
		}

		desc = result.Description
		return nil
	})
	if err != nil {
		return nil, fail("place_wager", err, fields)
	}

	auditErr := s.core.finish(ctx, m)

	log.Info().
		Str("op", "place_wager").
		Int64("account_id", accountID).
		Str("wager_id", record.ID.String()).
		Str("game", string(gameType)).
		Int64("delta", record.Net()).
		Int64("balance", record.BalanceAfter).
		Msg("Wager settled")

	return &WagerResult{Record: record, Description: desc, AuditErr: auditErr}, nil
}

// Limits returns the configured bet limits.
func (s *WagerService) Limits() WagerLimits {
	return s.limits
}
