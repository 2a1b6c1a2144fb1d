// Package model defines the data models for the credit ledger.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies what kind of principal owns an account.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleClient Role = "CLIENT"
	RolePlayer Role = "PLAYER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleClient, RolePlayer:
		return true
	}
	return false
}

// Account is any principal holding a spendable integer credit balance.
type Account struct {
	ID        int64      `db:"id"`
	Role      Role       `db:"role"`
	Level     int        `db:"level"`
	Balance   int64      `db:"balance"`
	Version   int64      `db:"version"`
	ClosedAt  *time.Time `db:"closed_at"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// Closed reports whether the account has been closed.
func (a *Account) Closed() bool {
	return a.ClosedAt != nil
}

// BonusBalance is the per-client bonus sub-ledger on a player account.
type BonusBalance struct {
	AccountID         int64     `db:"account_id"`
	ClientID          int64     `db:"client_id"`
	BonusAmount       int64     `db:"bonus_amount"`
	WageringRequired  int64     `db:"wagering_required"`
	WageringCompleted int64     `db:"wagering_completed"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// Remaining returns how much wagering is still required.
func (b *BonusBalance) Remaining() int64 {
	if b.WageringCompleted >= b.WageringRequired {
		return 0
	}
	return b.WageringRequired - b.WageringCompleted
}

// PromotionStatus is the lifecycle state of a promotion.
type PromotionStatus string

const (
	PromotionActive    PromotionStatus = "ACTIVE"
	PromotionExpired   PromotionStatus = "EXPIRED"
	PromotionDepleted  PromotionStatus = "DEPLETED"
	PromotionCancelled PromotionStatus = "CANCELLED"
)

// Promotion is a client-funded reward claimable by players.
type Promotion struct {
	ID                 uuid.UUID       `db:"id"`
	ClientID           int64           `db:"client_id"`
	Value              int64           `db:"value"`
	TotalBudget        int64           `db:"total_budget"`
	UsedBudget         int64           `db:"used_budget"`
	Status             PromotionStatus `db:"status"`
	MaxClaimsPerPlayer int             `db:"max_claims_per_player"`
	MinLevel           int             `db:"min_level"`
	RequiresProof      bool            `db:"requires_proof"`
	WageringMultiplier int64           `db:"wagering_multiplier"`
	Targeting          Targeting       `db:"targeting"`
	EndTime            time.Time       `db:"end_time"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

// Remaining returns the unused part of the budget.
func (p *Promotion) Remaining() int64 {
	return p.TotalBudget - p.UsedBudget
}

// ClaimStatus is the state of a promotion claim.
type ClaimStatus string

const (
	ClaimPendingApproval ClaimStatus = "PENDING_APPROVAL"
	ClaimApproved        ClaimStatus = "APPROVED"
	ClaimRejected        ClaimStatus = "REJECTED"
)

// Terminal reports whether no further transition is possible.
func (s ClaimStatus) Terminal() bool {
	return s == ClaimApproved || s == ClaimRejected
}

// PromotionClaim is a player's request to redeem a promotion.
type PromotionClaim struct {
	ID              uuid.UUID   `db:"id"`
	PromotionID     uuid.UUID   `db:"promotion_id"`
	PlayerID        int64       `db:"player_id"`
	Status          ClaimStatus `db:"status"`
	ClaimedValue    int64       `db:"claimed_value"`
	Proof           *string     `db:"proof"`
	ApproverID      *int64      `db:"approver_id"`
	RejectionReason *string     `db:"rejection_reason"`
	SupersedesID    *uuid.UUID  `db:"supersedes_id"`
	CreatedAt       time.Time   `db:"created_at"`
	DecidedAt       *time.Time  `db:"decided_at"`
}

// WagerRecord is a single settled mini-game bet.
type WagerRecord struct {
	ID            uuid.UUID  `db:"id"`
	AccountID     int64      `db:"account_id"`
	GameType      GameType   `db:"game_type"`
	BetAmount     int64      `db:"bet_amount"`
	WinAmount     int64      `db:"win_amount"`
	Result        Outcome    `db:"result"`
	BalanceBefore int64      `db:"balance_before"`
	BalanceAfter  int64      `db:"balance_after"`
	GameParams    GameParams `db:"game_params"`
	CreatedAt     time.Time  `db:"created_at"`
}

// Net returns the balance effect of the wager.
func (w *WagerRecord) Net() int64 {
	return w.WinAmount - w.BetAmount
}

// LedgerEntry is an immutable record of one balance delta.
type LedgerEntry struct {
	ID               int64          `db:"id"`
	AccountID        int64          `db:"account_id"`
	Delta            int64          `db:"delta"`
	Reason           Reason         `db:"reason"`
	ActorID          int64          `db:"actor_id"`
	ResultingBalance int64          `db:"resulting_balance"`
	Context          map[string]any `db:"-"`
	KeyID            string         `db:"key_id"`
	CreatedAt        time.Time      `db:"created_at"`
}

// Referral records a one-time referral payout.
type Referral struct {
	ReferrerID int64     `db:"referrer_id"`
	ReferredID int64     `db:"referred_id"`
	Amount     int64     `db:"amount"`
	EntryID    *int64    `db:"entry_id"`
	PaidAt     time.Time `db:"paid_at"`
}

// DailyRank represents an account's net wager result for one day.
type DailyRank struct {
	AccountID int64 `db:"account_id"`
	NetProfit int64 `db:"net_profit"`
	Wagers    int64 `db:"wagers"`
}

// Reason codes carried by ledger entries.
type Reason string

const (
	ReasonOpening         Reason = "OPENING"          // Opening credit at registration
	ReasonWager           Reason = "WAGER"            // Mini-game settlement
	ReasonPromotionDebit  Reason = "PROMOTION_DEBIT"  // Client leg of a claim approval
	ReasonPromotionCredit Reason = "PROMOTION_CREDIT" // Player leg of a claim approval
	ReasonAdminAdjust     Reason = "ADMIN_ADJUST"     // Administrative adjustment
	ReasonReferralPayout  Reason = "REFERRAL_PAYOUT"  // Referral reward
)
