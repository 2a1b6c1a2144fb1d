package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"credit-ledger/internal/model"
	"credit-ledger/internal/pkg/lock"
	"credit-ledger/internal/repository"
)

// RegisterResult is the outcome of a registration.
type RegisterResult struct {
	Account  *model.Account
	AuditErr error
}

// AccountService handles account registration, closure and reads.
type AccountService struct {
	core  *Core
	bonus *repository.BonusRepository
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(core *Core, bonus *repository.BonusRepository) *AccountService {
	return &AccountService{core: core, bonus: bonus}
}

// Register creates an account and credits its opening balance through the
// ledger so the first entry already reconciles. Admins may register any
// role; anyone else may only register themselves as a player.
func (s *AccountService) Register(ctx context.Context, p Principal, id int64, role model.Role, level int, opening int64) (*RegisterResult, error) {
	fields := map[string]any{"account_id": id, "role": role}

	if !role.Valid() {
		return nil, fail("register", invalid("unknown role %q", role), fields)
	}
	if !p.IsAdmin() && (p.ID != id || role != model.RolePlayer) {
		return nil, fail("register", ErrForbidden, fields)
	}
	if opening < 0 {
		return nil, fail("register", invalid("opening balance must not be negative"), fields)
	}
	if level < 0 {
		return nil, fail("register", invalid("level must not be negative"), fields)
	}

	var (
		m       *mutation
		account *model.Account
	)

	err := pgx.BeginFunc(ctx, s.core.Pool, func(tx pgx.Tx) error {
		m = s.core.begin()

		created, err := s.core.Accounts.Create(ctx, tx, id, role, level)
		if err != nil {
			return err
		}
		account = created

		if opening > 0 {
			account, _, err = s.core.apply(ctx, tx, m, id, opening, model.ReasonOpening, p.ID, nil)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrAccountExists) {
			return nil, fail("register", invalid("account %d already exists", id), fields)
		}
		return nil, fail("register", err, fields)
	}

	auditErr := s.core.finish(ctx, m)

	log.Info().
		Str("op", "register").
		Int64("account_id", id).
		Str("role", string(role)).
		Int64("delta", opening).
		Msg("Account registered")

	return &RegisterResult{Account: account, AuditErr: auditErr}, nil
}

// Close marks an account closed. Its history is retained and any further
// mutation fails with ErrAccountClosed.
func (s *AccountService) Close(ctx context.Context, p Principal, id int64) (*model.Account, error) {
	fields := map[string]any{"account_id": id}

	if !p.owns(id) {
		return nil, fail("close_account", ErrForbidden, fields)
	}

	var account *model.Account
	err := s.core.Locks.WithAccountLock(ctx, id, func(ctx context.Context, tx pgx.Tx, held lock.Held) error {
		var err error
		account, err = s.core.Accounts.Close(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, fail("close_account", err, fields)
	}

	log.Info().Str("op", "close_account").Int64("account_id", id).Int64("balance", account.Balance).Msg("Account closed")
	return account, nil
}

// SetLevel changes the level promotions check for eligibility. Admin only.
func (s *AccountService) SetLevel(ctx context.Context, p Principal, id int64, level int) error {
	fields := map[string]any{"account_id": id, "level": level}

	if !p.IsAdmin() {
		return fail("set_level", ErrForbidden, fields)
	}
	if level < 0 {
		return fail("set_level", invalid("level must not be negative"), fields)
	}
	if err := s.core.Accounts.SetLevel(ctx, s.core.Pool, id, level); err != nil {
		return fail("set_level", err, fields)
	}
	return nil
}

// Get reads an account without locking it.
func (s *AccountService) Get(ctx context.Context, id int64) (*model.Account, error) {
	account, err := s.core.Accounts.GetByID(ctx, s.core.Pool, id)
	if err != nil {
		return nil, translate(err)
	}
	return account, nil
}

// Bonuses returns the account's per-client bonus sub-balances.
func (s *AccountService) Bonuses(ctx context.Context, p Principal, id int64) ([]*model.BonusBalance, error) {
	if !p.owns(id) {
		return nil, ErrForbidden
	}
	balances, err := s.bonus.ListByAccount(ctx, s.core.Pool, id)
	if err != nil {
		return nil, translate(err)
	}
	return balances, nil
}
