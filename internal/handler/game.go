package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"credit-ledger/internal/game"
	"credit-ledger/internal/model"
	"credit-ledger/internal/service"
)

// GameHandler handles wager commands.
type GameHandler struct {
	identity *Identity
	wagers   *service.WagerService
	registry *game.Registry
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(identity *Identity, wagers *service.WagerService, registry *game.Registry) *GameHandler {
	return &GameHandler{identity: identity, wagers: wagers, registry: registry}
}

// wagerArgs is a parsed /wager command.
type wagerArgs struct {
	game   model.GameType
	bet    int64
	params model.GameParams
}

// parseWagerArgs parses "dice <bet> <prediction>" or "slots <bet>".
func parseWagerArgs(args []string) (wagerArgs, error) {
	if len(args) < 2 {
		return wagerArgs{}, fmt.Errorf("❌ Usage: /wager dice <bet> <prediction> or /wager slots <bet>")
	}

	bet, err := parseInt64(args[1], "bet")
	if err != nil {
		return wagerArgs{}, err
	}

	switch gameType := model.GameType(strings.ToLower(args[0])); gameType {
	case model.GameDice:
		if len(args) != 3 {
			return wagerArgs{}, fmt.Errorf("❌ Usage: /wager dice <bet> <prediction 2-12>")
		}
		prediction, err := parseInt64(args[2], "prediction")
		if err != nil {
			return wagerArgs{}, err
		}
		return wagerArgs{game: gameType, bet: bet, params: model.NewDiceParams(int(prediction))}, nil
	case model.GameSlots:
		if len(args) != 2 {
			return wagerArgs{}, fmt.Errorf("❌ Usage: /wager slots <bet>")
		}
		return wagerArgs{game: gameType, bet: bet, params: model.NewSlotsParams()}, nil
	default:
		return wagerArgs{}, fmt.Errorf("❌ Unknown game: %s", args[0])
	}
}

// HandleWager handles the /wager command.
// Format: /wager dice <bet> <prediction> | /wager slots <bet>
func (h *GameHandler) HandleWager(c tele.Context) error {
	p, ok, err := h.identity.sender(c)
	if !ok {
		return err
	}

	args, err := parseWagerArgs(c.Args())
	if err != nil {
		return c.Reply(err.Error())
	}

	res, err := h.wagers.PlaceWager(context.Background(), p, p.ID, args.game, args.bet, args.params)
	if err != nil {
		return c.Reply(errorMessage(err))
	}

	return c.Reply(formatWager(res) + auditNotice(res.AuditErr))
}

// HandleGames handles the /games command.
func (h *GameHandler) HandleGames(c tele.Context) error {
	limits := h.wagers.Limits()

	var b strings.Builder
	b.WriteString("🎮 Games\n━━━━━━━━━━━━━━━\n")
	for _, t := range h.registry.Types() {
		g, ok := h.registry.Get(model.GameType(t))
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "• %s (%s): %s\n", g.Name(), t, g.Description())
	}
	fmt.Fprintf(&b, "━━━━━━━━━━━━━━━\nBet: %d - %d", limits.MinBet, limits.MaxBet)

	return c.Reply(b.String())
}

func formatWager(res *service.WagerResult) string {
	r := res.Record

	header := "😢 You lost"
	if r.WinAmount > 0 {
		header = "🎉 You won"
	}

	return fmt.Sprintf(
		"%s\n"+
			"━━━━━━━━━━━━━━━\n"+
			"%s\n"+
			"Bet: %d  Win: %d  Net: %s\n"+
			"💰 Balance: %d\n"+
			"━━━━━━━━━━━━━━━",
		header, res.Description, r.BetAmount, r.WinAmount, signed(r.Net()), r.BalanceAfter,
	)
}
