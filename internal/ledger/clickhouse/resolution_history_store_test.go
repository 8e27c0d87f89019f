package clickhouse_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"agent-performance-lab/internal/domain"
	chstore "agent-performance-lab/internal/ledger/clickhouse"
)

func resolutionRecord(marketID, agentID string, status domain.MarketStatus, resolvedAt int64) *domain.ResolutionRecord {
	return &domain.ResolutionRecord{
		MarketID:      marketID,
		AgentID:       agentID,
		Metric:        string(domain.MetricWinRate),
		Status:        string(status),
		Threshold:     5000,
		TotalYesStake: "4000000000000000000",
		TotalNoStake:  "1000000000000000000",
		ResolvedAt:    resolvedAt,
	}
}

func TestResolutionHistoryStore_Clickhouse(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := chstore.NewResolutionHistoryStore(conn)

	require.NoError(t, store.Insert(ctx, resolutionRecord("market-a", "agent-1", domain.MarketStatusResolvedYes, 1000)))
	require.NoError(t, store.Insert(ctx, resolutionRecord("market-b", "agent-1", domain.MarketStatusResolvedNo, 3000)))
	require.NoError(t, store.Insert(ctx, resolutionRecord("market-c", "agent-1", domain.MarketStatusCancelled, 2000)))
	require.NoError(t, store.Insert(ctx, resolutionRecord("market-x", "agent-2", domain.MarketStatusResolvedYes, 1500)))

	t.Run("newest first per agent", func(t *testing.T) {
		records, err := store.GetByAgent(ctx, "agent-1", 10)
		require.NoError(t, err)
		require.Len(t, records, 3)
		require.Equal(t, "market-b", records[0].MarketID)
		require.Equal(t, "market-c", records[1].MarketID)
		require.Equal(t, "market-a", records[2].MarketID)
	})

	t.Run("round-trips all fields", func(t *testing.T) {
		records, err := store.GetByAgent(ctx, "agent-2", 10)
		require.NoError(t, err)
		require.Len(t, records, 1)

		got := records[0]
		require.Equal(t, "market-x", got.MarketID)
		require.Equal(t, "agent-2", got.AgentID)
		require.Equal(t, string(domain.MetricWinRate), got.Metric)
		require.Equal(t, string(domain.MarketStatusResolvedYes), got.Status)
		require.Equal(t, int64(5000), got.Threshold)
		require.Equal(t, "4000000000000000000", got.TotalYesStake)
		require.Equal(t, "1000000000000000000", got.TotalNoStake)
		require.Equal(t, int64(1500), got.ResolvedAt)
	})

	t.Run("limit caps the result", func(t *testing.T) {
		records, err := store.GetByAgent(ctx, "agent-1", 1)
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.Equal(t, "market-b", records[0].MarketID)
	})

	t.Run("unknown agent is empty", func(t *testing.T) {
		records, err := store.GetByAgent(ctx, "agent-none", 10)
		require.NoError(t, err)
		require.Empty(t, records)
	})
}
