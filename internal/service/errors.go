package service

import (
	"errors"
	"fmt"

	"credit-ledger/internal/audit"
	"credit-ledger/internal/pkg/lock"
	"credit-ledger/internal/repository"
)

// Errors returned by ledger operations. Callers match them with errors.Is.
var (
	// ErrValidation is bad input. No lock was taken and nothing changed.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientFunds means the balance check failed under lock.
	ErrInsufficientFunds = repository.ErrInsufficientFunds

	// ErrBudgetExceeded means the promotion cannot pay another claim.
	ErrBudgetExceeded = repository.ErrBudgetExceeded

	// ErrDuplicateClaim means the player already has an open claim.
	ErrDuplicateClaim = repository.ErrDuplicateClaim

	// ErrBusy means an account lock could not be acquired in time. Safe to
	// retry.
	ErrBusy = lock.ErrLockTimeout

	// ErrPersistence means the transaction was aborted and fully rolled back.
	ErrPersistence = errors.New("persistence failure")

	// ErrAuditWrite is reported next to a successful result when a ledger
	// entry could not be written after commit.
	ErrAuditWrite = audit.ErrWriteFailed

	ErrNeedsProof        = errors.New("promotion requires proof")
	ErrForbidden         = errors.New("operation not permitted")
	ErrNotFound          = errors.New("not found")
	ErrPromotionInactive = errors.New("promotion is not active")
	ErrNotEligible       = errors.New("player is not eligible")
	ErrClaimNotPending   = repository.ErrClaimNotPending
	ErrAccountClosed     = errors.New("account is closed")
	ErrReferralPaid      = repository.ErrReferralExists
)

// domainErrors pass through translate unchanged.
var domainErrors = []error{
	ErrValidation,
	ErrInsufficientFunds,
	ErrBudgetExceeded,
	ErrDuplicateClaim,
	ErrBusy,
	ErrPersistence,
	ErrNeedsProof,
	ErrForbidden,
	ErrNotFound,
	ErrPromotionInactive,
	ErrNotEligible,
	ErrClaimNotPending,
	ErrAccountClosed,
	ErrReferralPaid,
}

var notFoundErrors = []error{
	repository.ErrAccountNotFound,
	repository.ErrPromotionNotFound,
	repository.ErrClaimNotFound,
}

// translate maps an error from the data layer onto the service taxonomy.
// Anything unrecognised is a persistence failure.
func translate(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

// invalid builds a validation error.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
