package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"credit-ledger/internal/model"
	"credit-ledger/internal/service"
)

// AdminHandler handles admin-related commands. The bot routes them through
// AdminMiddleware; the services check the role again.
type AdminHandler struct {
	identity  *Identity
	accounts  *service.AccountService
	admin     *service.AdminService
	referrals *service.ReferralService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	identity *Identity,
	accounts *service.AccountService,
	admin *service.AdminService,
	referrals *service.ReferralService,
) *AdminHandler {
	return &AdminHandler{
		identity:  identity,
		accounts:  accounts,
		admin:     admin,
		referrals: referrals,
	}
}

// HandleAdjust handles the /adjust command.
// Format: /adjust <account> <delta> [note]
func (h *AdminHandler) HandleAdjust(c tele.Context) error {
	p, ok, err := h.identity.sender(c)
	if !ok {
		return err
	}

	args := c.Args()
	if len(args) < 2 {
		return c.Reply("❌ Usage: /adjust <account> <delta> [note]")
	}
	targetID, err := parseInt64(args[0], "account")
	if err != nil {
		return c.Reply(err.Error())
	}
	delta, err := parseInt64(args[1], "delta")
	if err != nil {
		return c.Reply(err.Error())
	}
	note := strings.Join(args[2:], " ")

	res, err := h.admin.AdminAdjustCredits(context.Background(), p, targetID, delta, note)
	if err != nil {
		return c.Reply(errorMessage(err))
	}

	return c.Reply(fmt.Sprintf(
		"✅ Adjusted\n\n"+
			"👤 Account: %d\n"+
			"Delta: %s\n"+
			"💰 Balance: %d%s",
		targetID, signed(delta), res.Account.Balance, auditNotice(res.AuditErr),
	))
}

// HandleReferral handles the /referral command.
// Format: /referral <referrer> <referred>
func (h *AdminHandler) HandleReferral(c tele.Context) error {
	p, ok, err := h.identity.sender(c)
	if !ok {
		return err
	}

	args := c.Args()
	if len(args) != 2 {
		return c.Reply("❌ Usage: /referral <referrer> <referred>")
	}
	referrerID, err := parseInt64(args[0], "referrer")
	if err != nil {
		return c.Reply(err.Error())
	}
	referredID, err := parseInt64(args[1], "referred")
	if err != nil {
		return c.Reply(err.Error())
	}

	res, err := h.referrals.PayReferral(context.Background(), p, referrerID, referredID)
	if err != nil {
		return c.Reply(errorMessage(err))
	}

	return c.Reply(fmt.Sprintf(
		"✅ Referral paid\n\n"+
			"👤 Referrer: %d (+%d)\n"+
			"💰 Balance: %d%s",
		referrerID, res.Referral.Amount, res.Balance, auditNotice(res.AuditErr),
	))
}

// HandleRegister handles the /register command.
// Format: /register <account> <role> [opening]
func (h *AdminHandler) HandleRegister(c tele.Context) error {
	p, ok, err := h.identity.sender(c)
	if !ok {
		return err
	}

	args := c.Args()
	if len(args) < 2 || len(args) > 3 {
		return c.Reply("❌ Usage: /register <account> <PLAYER|CLIENT|ADMIN> [opening]")
	}
	id, err := parseInt64(args[0], "account")
	if err != nil {
		return c.Reply(err.Error())
	}
	role := model.Role(strings.ToUpper(args[1]))
	var opening int64
	if len(args) == 3 {
		if opening, err = parseInt64(args[2], "opening"); err != nil {
			return c.Reply(err.Error())
		}
	}

	res, err := h.accounts.Register(context.Background(), p, id, role, 0, opening)
	if err != nil {
		return c.Reply(errorMessage(err))
	}

	return c.Reply(fmt.Sprintf("✅ Registered %d as %s with %d%s",
		id, res.Account.Role, res.Account.Balance, auditNotice(res.AuditErr)))
}

// HandleSetLevel handles the /level command.
// Format: /level <account> <level>
func (h *AdminHandler) HandleSetLevel(c tele.Context) error {
	p, ok, err := h.identity.sender(c)
	if !ok {
		return err
	}

	args := c.Args()
	if len(args) != 2 {
		return c.Reply("❌ Usage: /level <account> <level>")
	}
	id, err := parseInt64(args[0], "account")
	if err != nil {
		return c.Reply(err.Error())
	}
	level, err := strconv.Atoi(args[1])
	if err != nil {
		return c.Reply("❌ Invalid level: " + args[1])
	}

	if err := h.accounts.SetLevel(context.Background(), p, id, level); err != nil {
		return c.Reply(errorMessage(err))
	}
	return c.Reply(fmt.Sprintf("✅ Account %d is now level %d", id, level))
}

// HandleClose handles the /close command.
// Format: /close <account>
func (h *AdminHandler) HandleClose(c tele.Context) error {
	p, ok, err := h.identity.sender(c)
	if !ok {
		return err
	}

	args := c.Args()
	if len(args) != 1 {
		return c.Reply("❌ Usage: /close <account>")
	}
	id, err := parseInt64(args[0], "account")
	if err != nil {
		return c.Reply(err.Error())
	}

	account, err := h.accounts.Close(context.Background(), p, id)
	if err != nil {
		return c.Reply(errorMessage(err))
	}

	log.Info().
		Int64("admin_id", p.ID).
		Int64("account_id", id).
		Str("op", "close_account").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf("✅ Account %d closed with balance %d", id, account.Balance))
}
