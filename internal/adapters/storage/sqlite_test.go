package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polywhaler/polywhaler/internal/adapters/storage"
	"github.com/polywhaler/polywhaler/internal/domain"
)

func makeTrade(id string, placedAt int64, mode domain.TradeMode) domain.Trade {
	return domain.Trade{
		ID:          id,
		Timestamp:   placedAt,
		ConditionID: "0xabc",
		MarketTitle: "Lakers vs Celtics",
		SharpSide:   "A",
		Price:       0.55,
		Grade:       "A",
		SignalScore: 0.81,
		Stake:       35,
		Mode:        mode,
	}
}

func TestSQLiteHistory_RecordAndFetchTrades(t *testing.T) {
	db, err := storage.NewSQLiteHistory(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.RecordTrade(ctx, makeTrade("t1", 1_700_000_000, domain.ModePaper)))
	require.NoError(t, db.RecordTrade(ctx, makeTrade("t2", 1_700_000_500, domain.ModeLive)))

	trades, err := db.RecentTrades(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	// Más recientes primero
	assert.Equal(t, "t2", trades[0].ID)
	assert.Equal(t, domain.ModeLive, trades[0].Mode)
	assert.Equal(t, "t1", trades[1].ID)
	assert.InDelta(t, 35.0, trades[1].Stake, 0.001)
}

func TestSQLiteHistory_RecordsFailedLiveTrade(t *testing.T) {
	db, err := storage.NewSQLiteHistory(":memory:")
	require.NoError(t, err)
	defer db.Close()

	trade := makeTrade("t1", 1_700_000_000, domain.ModePaper)
	trade.Error = "client error 403"
	trade.CloudflareRayID = "8abc123"

	ctx := context.Background()
	require.NoError(t, db.RecordTrade(ctx, trade))

	trades, err := db.RecentTrades(ctx, 1)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "client error 403", trades[0].Error)
	assert.Equal(t, "8abc123", trades[0].CloudflareRayID)
}

func TestSQLiteHistory_RecentTradesDefaultLimit(t *testing.T) {
	db, err := storage.NewSQLiteHistory(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	trades, err := db.RecentTrades(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestSQLiteHistory_RecordCycle(t *testing.T) {
	db, err := storage.NewSQLiteHistory(":memory:")
	require.NoError(t, err)
	defer db.Close()

	err = db.RecordCycle(context.Background(), domain.CycleSummary{
		RawCandidates:        3,
		SkippedAlreadyPlaced: 1,
		NewPlaced:            2,
	})
	assert.NoError(t, err)
}
