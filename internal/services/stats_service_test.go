package services

import (
	"context"
	"testing"
	"time"

	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayBounds(t *testing.T) {
	nairobi := time.FixedZone("EAT", 3*60*60)
	// 01:30 in Nairobi is still the previous day in UTC
	from, to := DayBounds(time.Date(2024, 3, 11, 1, 30, 0, 0, nairobi))
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), to)
}

func TestTodayStats(t *testing.T) {
	f := newFixture(t)
	v := f.vendor(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

	for _, tx := range []models.Transaction{
		{VendorID: v.ID, Amount: 100, CreatedAt: now.Add(-16 * time.Hour)},
		{VendorID: v.ID, Amount: 250, CreatedAt: now.Add(-time.Hour)},
		{VendorID: v.ID, Amount: 50, CreatedAt: now},
	} {
		tx := tx
		require.NoError(t, f.store.Transactions().Create(ctx, &tx))
	}

	summary, err := f.stats.WithClock(func() time.Time { return now }).Today(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Count)
	assert.Equal(t, 300.0, summary.Total)
}

func TestListTransactionsPaging(t *testing.T) {
	f := newFixture(t)
	f.vendor(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.sales.RecordSale(ctx, cashSale(100))
		require.NoError(t, err)
	}

	txs, err := f.stats.ListTransactions(ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, txs, 2)

	txs, err = f.stats.ListTransactions(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}
