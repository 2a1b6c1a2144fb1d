package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"credit-ledger/internal/model"
	"credit-ledger/internal/service"
)

// AccountHandler handles account-related commands.
type AccountHandler struct {
	identity *Identity
	accounts *service.AccountService
	history  *service.HistoryService
	ranking  *service.RankingService
	opening  int64
}

// NewAccountHandler creates a new AccountHandler. opening is credited to
// players registering through /start.
func NewAccountHandler(
	identity *Identity,
	accounts *service.AccountService,
	history *service.HistoryService,
	ranking *service.RankingService,
	opening int64,
) *AccountHandler {
	return &AccountHandler{
		identity: identity,
		accounts: accounts,
		history:  history,
		ranking:  ranking,
		opening:  opening,
	}
}

// HandleStart handles the /start command.
// Registers the sender as a player, or as an admin when listed in config.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if account, err := h.accounts.Get(ctx, sender.ID); err == nil {
		return c.Reply(fmt.Sprintf(
			"👋 Welcome back!\n\n"+
				"Role: %s\n"+
				"💰 Balance: %d",
			account.Role, account.Balance,
		))
	} else if !errors.Is(err, service.ErrNotFound) {
		return c.Reply(errorMessage(err))
	}

	p := service.Principal{ID: sender.ID, Role: model.RolePlayer}
	role, opening := model.RolePlayer, h.opening
	if h.identity.cfg.IsAdmin(sender.ID) {
		p.Role = model.RoleAdmin
		role, opening = model.RoleAdmin, 0
	}

	res, err := h.accounts.Register(ctx, p, sender.ID, role, 0, opening)
	if err != nil {
		return c.Reply(errorMessage(err))
	}

	return c.Reply(fmt.Sprintf(
		"🎉 Account created\n\n"+
			"Role: %s\n"+
			"💰 Balance: %d\n\n"+
			"Commands:\n"+
			"/balance - balance and bonuses\n"+
			"/history [cursor] - ledger history\n"+
			"/games - available games\n"+
			"/wager dice <bet> <prediction>\n"+
			"/wager slots <bet>\n"+
			"/promotions - active promotions\n"+
			"/claim <promotion> [proof]\n"+
			"/daily_top - today's ranking%s",
		res.Account.Role, res.Account.Balance, auditNotice(res.AuditErr),
	))
}

// HandleBalance handles the /balance command.
// Displays balance, today's net result and bonus wagering progress.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	p, ok, err := h.identity.sender(c)
	if !ok {
		return err
	}
	ctx := context.Background()

	account, err := h.accounts.Get(ctx, p.ID)
	if err != nil {
		return c.Reply(errorMessage(err))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "💰 Balance: %d\n", account.Balance)

	if net, err := h.ranking.GetAccountDailyNet(ctx, p.ID); err == nil {
		fmt.Fprintf(&b, "📈 Today: %s\n", signed(net))
	}

	bonuses, err := h.accounts.Bonuses(ctx, p, p.ID)
	if err == nil && len(bonuses) > 0 {
		b.WriteString("━━━━━━━━━━━━━━━\n🎁 Bonuses\n")
		for _, bonus := range bonuses {
			fmt.Fprintf(&b, "Client %d: %d (wagering %d/%d)\n",
				bonus.ClientID, bonus.BonusAmount, bonus.WageringCompleted, bonus.WageringRequired)
		}
	}

	if account.Closed() {
		b.WriteString("⚠️ Account closed")
	}

	return c.Reply(strings.TrimRight(b.String(), "\n"))
}

// HandleHistory handles the /history command.
// Format: /history [cursor] for your own account, /history <account> [cursor]
// for admins.
func (h *AccountHandler) HandleHistory(c tele.Context) error {
	p, ok, err := h.identity.sender(c)
	if !ok {
		return err
	}

	accountID, cursor, err := parseHistoryArgs(p, c.Args())
	if err != nil {
		return c.Reply(err.Error())
	}

	page, err := h.history.GetLedgerHistory(context.Background(), p, accountID, cursor, 10)
	if err != nil {
		return c.Reply(errorMessage(err))
	}

	return c.Reply(formatHistory(accountID, page))
}

func parseHistoryArgs(p service.Principal, args []string) (accountID, cursor int64, err error) {
	accountID = p.ID

	switch {
	case len(args) == 0:
	case len(args) == 1:
		cursor, err = parseInt64(args[0], "cursor")
	case len(args) == 2 && p.IsAdmin():
		if accountID, err = parseInt64(args[0], "account"); err != nil {
			return 0, 0, err
		}
		cursor, err = parseInt64(args[1], "cursor")
	default:
		err = fmt.Errorf("❌ Usage: /history [cursor]")
	}
	return accountID, cursor, err
}

func formatHistory(accountID int64, page *service.HistoryPage) string {
	if len(page.Entries) == 0 {
		return "📜 No ledger entries"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📜 Ledger of %d\n━━━━━━━━━━━━━━━\n", accountID)
	for _, e := range page.Entries {
		fmt.Fprintf(&b, "#%d %s %s → %d\n", e.ID, e.Reason, signed(e.Delta), e.ResultingBalance)
	}
	b.WriteString("━━━━━━━━━━━━━━━")
	if page.NextCursor != 0 {
		fmt.Fprintf(&b, "\nMore: /history %d", page.NextCursor)
	}
	return b.String()
}
