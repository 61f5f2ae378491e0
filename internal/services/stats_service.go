package services

import (
	"context"
	"fmt"
	"time"

	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/kulapay/kulapay-backend/internal/repositories"
)

// StatsService reports vendor sales summaries
type StatsService struct {
	transactions repositories.TransactionRepository
	now          func() time.Time
}

// NewStatsService creates a new StatsService
func NewStatsService(transactions repositories.TransactionRepository) *StatsService {
	return &StatsService{transactions: transactions, now: time.Now}
}

// WithClock replaces the time source.
func (s *StatsService) WithClock(now func() time.Time) *StatsService {
	s.now = now
	return s
}

// DayBounds returns the UTC calendar day containing t as [start, end).
func DayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// Today sums the vendor's transactions for the current UTC day.
func (s *StatsService) Today(ctx context.Context, vendor *models.Vendor) (models.Summary, error) {
	from, to := DayBounds(s.now())
	summary, err := s.transactions.VendorSummary(ctx, vendor.ID, from, to)
	if err != nil {
		return models.Summary{}, fmt.Errorf("failed to summarize sales: %w", err)
	}
	return summary, nil
}

// ListTransactions returns a page of ledger transactions, newest first.
func (s *StatsService) ListTransactions(ctx context.Context, page, limit int) ([]*models.Transaction, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	txs, err := s.transactions.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}
