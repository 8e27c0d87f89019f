package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
	"agent-performance-lab/internal/ledger/postgres"
)

// rejectingVerifier fails every report.
type rejectingVerifier struct{}

func (rejectingVerifier) VerifyReport(_ *domain.SignedReport) error {
	return errors.New("bad quorum")
}

func signedReport(agentID string, roiBps int64) *domain.SignedReport {
	return &domain.SignedReport{
		ReportID: "report-" + agentID,
		AgentID:  agentID,
		Height:   42,
		Metrics: &domain.PerformanceMetrics{
			AgentID:           agentID,
			ROIBps:            roiBps,
			WinRateBps:        7500,
			MaxDrawdownBps:    500,
			SharpeRatioScaled: 1100,
			TVLManaged:        3_000_000,
			TotalTrades:       4,
			LastUpdated:       1_700_000_000_000,
		},
	}
}

func TestMetricsLedger_Postgres(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	metrics := postgres.NewMetricsLedger(pool, acceptAllVerifier{}, testSubmitter)

	t.Run("missing snapshot", func(t *testing.T) {
		_, err := metrics.GetMetrics(ctx, "agent-1")
		require.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("first commit seeds update count", func(t *testing.T) {
		require.NoError(t, metrics.UpdateMetrics(ctx, testSubmitter, signedReport("agent-1", 5500)))

		got, err := metrics.GetMetrics(ctx, "agent-1")
		require.NoError(t, err)
		require.Equal(t, int64(5500), got.ROIBps)
		require.Equal(t, int64(7500), got.WinRateBps)
		require.Equal(t, int64(1), got.UpdateCount)
	})

	t.Run("recommit overwrites in place", func(t *testing.T) {
		require.NoError(t, metrics.UpdateMetrics(ctx, testSubmitter, signedReport("agent-1", 6000)))

		got, err := metrics.GetMetrics(ctx, "agent-1")
		require.NoError(t, err)
		require.Equal(t, int64(6000), got.ROIBps)
		require.Equal(t, int64(2), got.UpdateCount)
	})

	t.Run("wrong submitter rejected", func(t *testing.T) {
		err := metrics.UpdateMetrics(ctx, "imposter", signedReport("agent-2", 1000))
		require.ErrorIs(t, err, ledger.ErrUnauthorized)

		_, err = metrics.GetMetrics(ctx, "agent-2")
		require.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("failed verification rejected", func(t *testing.T) {
		gated := postgres.NewMetricsLedger(pool, rejectingVerifier{}, testSubmitter)
		err := gated.UpdateMetrics(ctx, testSubmitter, signedReport("agent-2", 1000))
		require.ErrorIs(t, err, ledger.ErrInvalidReport)

		_, err = metrics.GetMetrics(ctx, "agent-2")
		require.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("invalid input", func(t *testing.T) {
		require.ErrorIs(t, metrics.UpdateMetrics(ctx, testSubmitter, nil), ledger.ErrInvalidInput)

		report := signedReport("", 1000)
		require.ErrorIs(t, metrics.UpdateMetrics(ctx, testSubmitter, report), ledger.ErrInvalidInput)
	})
}
