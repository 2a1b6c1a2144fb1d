package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"credit-ledger/internal/model"
	"credit-ledger/internal/service"
)

// PromotionHandler handles promotion and claim commands.
type PromotionHandler struct {
	identity   *Identity
	promotions *service.PromotionService
	now        func() time.Time
}

// NewPromotionHandler creates a new PromotionHandler.
func NewPromotionHandler(identity *Identity, promotions *service.PromotionService) *PromotionHandler {
	return &PromotionHandler{identity: identity, promotions: promotions, now: time.Now}
}

// parsePromotionArgs parses "<value> <budget> <hours> [option...]" where an
// option is one of proof, max=N, level=N, wagering=N or players=ID,ID.
func parsePromotionArgs(args []string, now time.Time) (service.CreatePromotionInput, error) {
	var in service.CreatePromotionInput
	if len(args) < 3 {
		return in, fmt.Errorf("❌ Usage: /promo <value> <budget> <hours> [proof] [max=N] [level=N] [wagering=N] [players=ID,ID]")
	}

	var err error
	if in.Value, err = parseInt64(args[0], "value"); err != nil {
		return in, err
	}
	if in.TotalBudget, err = parseInt64(args[1], "budget"); err != nil {
		return in, err
	}
	hours, err := parseInt64(args[2], "hours")
	if err != nil {
		return in, err
	}
	in.EndTime = now.Add(time.Duration(hours) * time.Hour)
	in.MaxClaimsPerPlayer = 1

	for _, opt := range args[3:] {
		key, value, _ := strings.Cut(opt, "=")
		switch strings.ToLower(key) {
		case "proof":
			in.RequiresProof = true
		case "max":
			n, err := strconv.Atoi(value)
			if err != nil {
				return in, fmt.Errorf("❌ Invalid max: %s", value)
			}
			in.MaxClaimsPerPlayer = n
		case "level":
			n, err := strconv.Atoi(value)
			if err != nil {
				return in, fmt.Errorf("❌ Invalid level: %s", value)
			}
			in.MinLevel = n
		case "wagering":
			n, err := parseInt64(value, "wagering")
			if err != nil {
				return in, err
			}
			in.WageringMultiplier = &n
		case "players":
			in.Targeting.Kind = model.TargetPlayers
			for _, raw := range strings.Split(value, ",") {
				id, err := parseInt64(raw, "player")
				if err != nil {
					return in, err
				}
				in.Targeting.PlayerIDs = append(in.Targeting.PlayerIDs, id)
			}
		default:
			return in, fmt.Errorf("❌ Unknown option: %s", opt)
		}
	}

	return in, nil
}

// HandleCreate handles the /promo command (clients only).
func (h *PromotionHandler) HandleCreate(c tele.Context) error {
	p, ok, err := h.identity.sender(c)
	if !ok {
		return err
	}

	in, err := parsePromotionArgs(c.Args(), h.now())
	if err != nil {
		return c.Reply(err.Error())
	}

	promo, err := h.promotions.CreatePromotion(context.Background(), p, in)
	if err != nil {
		return c.Reply(errorMessage(err))
	}

	return c.Reply(fmt.Sprintf(
		"✅ Promotion created\n\n"+
			"ID: %s\n"+
			"Value: %d  Budget: %d\n"+
			"Ends: %s",
		promo.ID, promo.Value, promo.TotalBudget, promo.EndTime.UTC().Format(time.RFC3339),
	))
}

// HandleCancel handles the /cancel_promo command.
// Format: /cancel_promo <promotion>
func (h *PromotionHandler) HandleCancel(c tele.Context) error {
	p, ok, err := h.identity.sender(c)
	if !ok {
		return err
	}

	args := c.Args()
	if len(args) != 1 {
		return c.Reply("❌ Usage: /cancel_promo <promotion>")
	}
	id, err := parseUUID(args[0], "promotion")
	if err != nil {
		return c.Reply(err.Error())
	}

	if err := h.promotions.CancelPromotion(context.Background(), p, id); err != nil {
		return c.Reply(errorMessage(err))
	}
	return c.Reply("✅ Promotion cancelled")
}

// HandleList handles the /promotions command.
func (h *PromotionHandler) HandleList(c tele.Context) error {
	promos, err := h.promotions.ListActive(context.Background(), 20)
	if err != nil {
		return c.Reply(errorMessage(err))
	}
	if len(promos) == 0 {
		return c.Reply("🎁 No active promotions")
	}

	var b strings.Builder
	b.WriteString("🎁 Active promotions\n━━━━━━━━━━━━━━━\n")
	for _, promo := range promos {
		fmt.Fprintf(&b, "%s\nValue %d, %d left", promo.ID, promo.Value, promo.Remaining())
		if promo.RequiresProof {
			b.WriteString(", proof required")
		}
		if promo.MinLevel > 0 {
			fmt.Fprintf(&b, ", level %d+", promo.MinLevel)
		}
		b.WriteString("\n")
	}
	b.WriteString("━━━━━━━━━━━━━━━")
	return c.Reply(b.String())
}

// HandleClaim handles the /claim command.
// Format: /claim <promotion> [proof]
func (h *PromotionHandler) HandleClaim(c tele.Context) error {
	p, ok, err := h.identity.sender(c)
	if !ok {
		return err
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ Usage: /claim <promotion> [proof]")
	}
	id, err := parseUUID(args[0], "promotion")
	if err != nil {
		return c.Reply(err.Error())
	}

	var proof *string
	if len(args) > 1 {
		joined := strings.Join(args[1:], " ")
		proof = &joined
	}

	claim, err := h.promotions.RequestClaim(context.Background(), p, id, proof)
	if err != nil {
		return c.Reply(errorMessage(err))
	}

	return c.Reply(fmt.Sprintf("📨 Claim submitted, waiting for approval\nClaim: %s", claim.ID))
}

// HandlePending handles the /pending command (clients only).
func (h *PromotionHandler) HandlePending(c tele.Context) error {
	p, ok, err := h.identity.sender(c)
	if !ok {
		return err
	}

	claims, err := h.promotions.ListPending(context.Background(), p, 20)
	if err != nil {
		return c.Reply(errorMessage(err))
	}
	if len(claims) == 0 {
		return c.Reply("📭 No pending claims")
	}

	var b strings.Builder
	b.WriteString("📬 Pending claims\n━━━━━━━━━━━━━━━\n")
	for _, claim := range claims {
		fmt.Fprintf(&b, "%s\nPlayer %d, value %d", claim.ID, claim.PlayerID, claim.ClaimedValue)
		if claim.Proof != nil {
			fmt.Fprintf(&b, ", proof: %s", *claim.Proof)
		}
		b.WriteString("\n")
	}
	b.WriteString("━━━━━━━━━━━━━━━")
	return c.Reply(b.String())
}

// HandleApprove handles the /approve command.
// Format: /approve <claim>
func (h *PromotionHandler) HandleApprove(c tele.Context) error {
	p, ok, err := h.identity.sender(c)
	if !ok {
		return err
	}

	args := c.Args()
	if len(args) != 1 {
		return c.Reply("❌ Usage: /approve <claim>")
	}
	id, err := parseUUID(args[0], "claim")
	if err != nil {
		return c.Reply(err.Error())
	}

	res, err := h.promotions.ApproveClaim(context.Background(), p, id)
	if err != nil {
		return c.Reply(errorMessage(err))
	}

	return c.Reply(fmt.Sprintf(
		"✅ Claim approved\n\n"+
			"Player %d: %s\n"+
			"💰 Your balance: %d\n"+
			"Budget left: %d%s",
		res.Claim.PlayerID, signed(res.Claim.ClaimedValue), res.ClientBalance,
		res.Promotion.Remaining(), auditNotice(res.AuditErr),
	))
}

// HandleReject handles the /reject command.
// Format: /reject <claim> <reason>
func (h *PromotionHandler) HandleReject(c tele.Context) error {
	p, ok, err := h.identity.sender(c)
	if !ok {
		return err
	}

	args := c.Args()
	if len(args) < 2 {
		return c.Reply("❌ Usage: /reject <claim> <reason>")
	}
	id, err := parseUUID(args[0], "claim")
	if err != nil {
		return c.Reply(err.Error())
	}

	claim, err := h.promotions.RejectClaim(context.Background(), p, id, strings.Join(args[1:], " "))
	if err != nil {
		return c.Reply(errorMessage(err))
	}

	return c.Reply(fmt.Sprintf("🚫 Claim %s rejected", claim.ID))
}
