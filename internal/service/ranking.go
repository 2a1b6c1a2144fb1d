package service

import (
	"context"
	"time"

	"credit-ledger/internal/model"
	"credit-ledger/internal/pkg/db"
	"credit-ledger/internal/repository"
)

// RankingService builds read-only daily leaderboards from settled wagers.
// It never takes account locks.
type RankingService struct {
	pool     db.Querier
	wagers   *repository.WagerRepository
	timezone *time.Location
	now      func() time.Time
}

// NewRankingService creates a new RankingService instance.
func NewRankingService(pool db.Querier, wagers *repository.WagerRepository, timezone *time.Location) *RankingService {
	if timezone == nil {
		timezone = time.UTC
	}
	return &RankingService{
		pool:     pool,
		wagers:   wagers,
		timezone: timezone,
		now:      time.Now,
	}
}

// GetDailyWinners retrieves today's accounts with the largest net wins.
func (s *RankingService) GetDailyWinners(ctx context.Context, limit int) ([]*model.DailyRank, error) {
	return s.GetDailyWinnersForDate(ctx, s.now().In(s.timezone), limit)
}

// GetDailyLosers retrieves today's accounts with the largest net losses.
func (s *RankingService) GetDailyLosers(ctx context.Context, limit int) ([]*model.DailyRank, error) {
	return s.GetDailyLosersForDate(ctx, s.now().In(s.timezone), limit)
}

// GetDailyWinnersForDate retrieves winners for a specific date.
func (s *RankingService) GetDailyWinnersForDate(ctx context.Context, date time.Time, limit int) ([]*model.DailyRank, error) {
	ranks, err := s.wagers.GetDailyWinners(ctx, s.pool, date, limit)
	if err != nil {
		return nil, translate(err)
	}
	return ranks, nil
}

// GetDailyLosersForDate retrieves losers for a specific date.
func (s *RankingService) GetDailyLosersForDate(ctx context.Context, date time.Time, limit int) ([]*model.DailyRank, error) {
	ranks, err := s.wagers.GetDailyLosers(ctx, s.pool, date, limit)
	if err != nil {
		return nil, translate(err)
	}
	return ranks, nil
}

// GetAccountDailyNet retrieves one account's net wager result for today.
func (s *RankingService) GetAccountDailyNet(ctx context.Context, accountID int64) (int64, error) {
	net, err := s.wagers.GetAccountDailyNet(ctx, s.pool, accountID, s.now().In(s.timezone))
	if err != nil {
		return 0, translate(err)
	}
	return net, nil
}

// RecentWagers returns the account's latest wagers, newest first.
func (s *RankingService) RecentWagers(ctx context.Context, accountID int64, limit int) ([]*model.WagerRecord, error) {
	wagers, err := s.wagers.ListByAccount(ctx, s.pool, accountID, limit)
	if err != nil {
		return nil, translate(err)
	}
	return wagers, nil
}
