package service

import (
	"context"

	"credit-ledger/internal/audit"
	"credit-ledger/internal/model"
)

// HistoryPage is one page of an account's ledger.
type HistoryPage struct {
	Entries []*model.LedgerEntry

	// NextCursor resumes after the last entry; 0 means the end was reached.
	NextCursor int64
}

// HistoryService reads ledger history. It never takes account locks.
type HistoryService struct {
	auditor  *audit.Auditor
	pageSize int
}

// NewHistoryService creates a new HistoryService instance. pageSize caps and
// defaults the page limit.
func NewHistoryService(auditor *audit.Auditor, pageSize int) *HistoryService {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &HistoryService{auditor: auditor, pageSize: pageSize}
}

// GetLedgerHistory returns entries of accountID with id greater than cursor in
// insertion order. Only the owner or an admin may read it.
func (s *HistoryService) GetLedgerHistory(ctx context.Context, p Principal, accountID, cursor int64, limit int) (*HistoryPage, error) {
	fields := map[string]any{"account_id": accountID, "cursor": cursor}

	if !p.owns(accountID) {
		return nil, fail("ledger_history", ErrForbidden, fields)
	}
	if cursor < 0 {
		return nil, fail("ledger_history", invalid("cursor must not be negative"), fields)
	}
	if limit <= 0 || limit > s.pageSize {
		limit = s.pageSize
	}

	entries, next, err := s.auditor.History(ctx, accountID, cursor, limit)
	if err != nil {
		return nil, fail("ledger_history", err, fields)
	}

	return &HistoryPage{Entries: entries, NextCursor: next}, nil
}
