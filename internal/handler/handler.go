// Package handler provides Telegram bot command handlers. Handlers parse
// arguments, resolve the caller and format replies; every balance change is
// delegated to the service layer.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"credit-ledger/internal/config"
	"credit-ledger/internal/model"
	"credit-ledger/internal/service"
)

// ErrNotRegistered means the sender has no account yet.
var ErrNotRegistered = errors.New("sender has no account")

// AccountReader looks up an account by id.
type AccountReader interface {
	Get(ctx context.Context, id int64) (*model.Account, error)
}

// Identity maps a Telegram sender to a service principal. The role comes from
// the account row; ids in the admin list are admins even before they register.
type Identity struct {
	accounts AccountReader
	cfg      *config.Config
}

// NewIdentity creates a new Identity.
func NewIdentity(accounts AccountReader, cfg *config.Config) *Identity {
	return &Identity{accounts: accounts, cfg: cfg}
}

// Principal resolves userID to the principal its commands run as.
func (i *Identity) Principal(ctx context.Context, userID int64) (service.Principal, error) {
	if i.cfg.IsAdmin(userID) {
		return service.Principal{ID: userID, Role: model.RoleAdmin}, nil
	}

	account, err := i.accounts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return service.Principal{}, ErrNotRegistered
		}
		return service.Principal{}, err
	}
	return service.Principal{ID: account.ID, Role: account.Role}, nil
}

// sender resolves the principal of c, replying on failure. ok is false when a
// reply was already sent.
func (i *Identity) sender(c tele.Context) (service.Principal, bool, error) {
	s := c.Sender()
	if s == nil {
		return service.Principal{}, false, nil
	}

	p, err := i.Principal(context.Background(), s.ID)
	if err != nil {
		return service.Principal{}, false, c.Reply(errorMessage(err))
	}
	return p, true, nil
}

// errorMessage maps a service error to the reply shown to the user.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotRegistered):
		return "❌ You have no account yet. Send /start first."
	case errors.Is(err, service.ErrValidation):
		return "❌ " + validationDetail(err)
	case errors.Is(err, service.ErrInsufficientFunds):
		return "❌ Insufficient balance"
	case errors.Is(err, service.ErrBudgetExceeded):
		return "❌ The promotion budget is exhausted"
	case errors.Is(err, service.ErrDuplicateClaim):
		return "❌ You already have a pending claim for this promotion"
	case errors.Is(err, service.ErrBusy):
		return "⏳ The account is busy, please try again"
	case errors.Is(err, service.ErrNeedsProof):
		return "❌ This promotion requires proof: /claim <promotion> <proof>"
	case errors.Is(err, service.ErrForbidden):
		return "❌ Permission denied"
	case errors.Is(err, service.ErrNotFound):
		return "❌ Not found"
	case errors.Is(err, service.ErrPromotionInactive):
		return "❌ The promotion is no longer active"
	case errors.Is(err, service.ErrNotEligible):
		return "❌ You are not eligible for this promotion"
	case errors.Is(err, service.ErrClaimNotPending):
		return "❌ The claim was already decided"
	case errors.Is(err, service.ErrAccountClosed):
		return "❌ The account is closed"
	case errors.Is(err, service.ErrReferralPaid):
		return "❌ This referral was already paid"
	default:
		log.Error().Err(err).Msg("Unhandled command error")
		return "❌ Something went wrong, please try again later"
	}
}

// validationDetail strips the sentinel prefix from a validation error.
func validationDetail(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, service.ErrValidation.Error()+": "); i >= 0 {
		return msg[i+len(service.ErrValidation.Error())+2:]
	}
	return msg
}

// auditNotice is appended to a reply when the operation committed but its
// ledger entry is still pending.
func auditNotice(err error) string {
	if err == nil {
		return ""
	}
	return "\n⚠️ Recorded, ledger entry delayed"
}

func parseInt64(arg, name string) (int64, error) {
	v, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("❌ Invalid %s: %s", name, arg)
	}
	return v, nil
}

func parseUUID(arg, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("❌ Invalid %s: %s", name, arg)
	}
	return id, nil
}

func signed(n int64) string {
	if n > 0 {
		return "+" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
