package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"credit-ledger/internal/model"
	"credit-ledger/internal/service"
)

// RankingHandler handles ranking-related commands.
type RankingHandler struct {
	rankingService *service.RankingService
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(rankingService *service.RankingService) *RankingHandler {
	return &RankingHandler{
		rankingService: rankingService,
	}
}

// HandleDailyTop handles the /daily_top command.
// Displays today's top winners and losers by net wager result.
func (h *RankingHandler) HandleDailyTop(c tele.Context) error {
	ctx := context.Background()

	winners, err := h.rankingService.GetDailyWinners(ctx, 10)
	if err != nil {
		return c.Reply(errorMessage(err))
	}

	losers, err := h.rankingService.GetDailyLosers(ctx, 10)
	if err != nil {
		return c.Reply(errorMessage(err))
	}

	return c.Reply(formatDailyTop(winners, losers))
}

func formatDailyTop(winners, losers []*model.DailyRank) string {
	var b strings.Builder
	b.WriteString("📊 Today's wagers\n━━━━━━━━━━━━━━━\n")

	b.WriteString("🏆 Winners TOP 10\n")
	writeRanks(&b, winners, true)

	b.WriteString("\n━━━━━━━━━━━━━━━\n")

	b.WriteString("😢 Losers TOP 10\n")
	writeRanks(&b, losers, false)

	b.WriteString("━━━━━━━━━━━━━━━")
	return b.String()
}

func writeRanks(b *strings.Builder, ranks []*model.DailyRank, medals bool) {
	if len(ranks) == 0 {
		b.WriteString("No data yet\n")
		return
	}

	icons := []string{"🥇", "🥈", "🥉"}
	for i, r := range ranks {
		rank := fmt.Sprintf("%d.", i+1)
		if medals && i < len(icons) {
			rank = icons[i]
		}
		fmt.Fprintf(b, "%s %d: %s (%d wagers)\n", rank, r.AccountID, signed(r.NetProfit), r.Wagers)
	}
}
