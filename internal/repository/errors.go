// Package repository provides data access layer implementations.
//
// Repositories hold no connection of their own: every method takes the
// db.Querier it should run on, which is either the pool (reads outside any
// lock) or the transaction opened by the lock coordinator.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Common errors for repository operations.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrPromotionNotFound = errors.New("promotion not found")
	ErrClaimNotFound     = errors.New("claim not found")
	ErrClaimNotPending   = errors.New("claim is not pending approval")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBudgetExceeded    = errors.New("promotion budget exceeded")
	ErrDuplicateClaim    = errors.New("open claim already exists")
	ErrReferralExists    = errors.New("referral already paid")
)

// PostgreSQL error codes used for constraint classification.
const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

// Constraint names declared in the schema.
const (
	constraintBalanceNonNegative = "accounts_balance_nonnegative"
	constraintBudgetNotExceeded  = "promotions_budget_not_exceeded"
	constraintOneOpenClaim       = "promotion_claims_one_open"
	constraintAccountsPkey       = "accounts_pkey"
	constraintReferralsPkey      = "referrals_pkey"
)

// violation returns the constraint name when err is a violation with code.
func violation(err error, code string) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// mapConstraint turns known constraint violations into domain errors.
func mapConstraint(err error) error {
	if name, ok := violation(err, codeCheckViolation); ok {
		switch name {
		case constraintBalanceNonNegative:
			return ErrInsufficientFunds
		case constraintBudgetNotExceeded:
			return ErrBudgetExceeded
		}
	}
	if name, ok := violation(err, codeUniqueViolation); ok {
		switch name {
		case constraintOneOpenClaim:
			return ErrDuplicateClaim
		case constraintAccountsPkey:
			return ErrAccountExists
		case constraintReferralsPkey:
			return ErrReferralExists
		}
	}
	return nil
}
