package market_test

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
	"agent-performance-lab/internal/ledger/memory"
	"agent-performance-lab/internal/market"
)

const resolverNow = int64(1_700_000_000_000)

// stubMetrics serves committed snapshots without the consensus gate.
type stubMetrics struct {
	data map[string]*domain.PerformanceMetrics
}

func (s *stubMetrics) GetMetrics(_ context.Context, agentID string) (*domain.PerformanceMetrics, error) {
	m, ok := s.data[agentID]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return m, nil
}

func (s *stubMetrics) UpdateMetrics(_ context.Context, _ string, _ *domain.SignedReport) error {
	return nil
}

var _ ledger.MetricsLedger = (*stubMetrics)(nil)

// recordingHistory captures resolution audit records.
type recordingHistory struct {
	records []*domain.ResolutionRecord
}

func (h *recordingHistory) Insert(_ context.Context, rec *domain.ResolutionRecord) error {
	h.records = append(h.records, rec)
	return nil
}

func (h *recordingHistory) GetByAgent(_ context.Context, _ string, _ int) ([]*domain.ResolutionRecord, error) {
	return h.records, nil
}

var _ ledger.ResolutionHistoryStore = (*recordingHistory)(nil)

func createTestMarket(t *testing.T, markets ledger.MarketLedger, id string, deadline int64) *domain.Market {
	t.Helper()
	m := &domain.Market{
		MarketID:   id,
		AgentID:    "agent-1",
		Metric:     domain.MetricWinRate,
		Comparison: domain.ComparisonAboveOrEqual,
		Threshold:  5000,
		Deadline:   deadline,
		Creator:    "creator-1",
		CreatedAt:  resolverNow,
	}
	if err := markets.CreateMarket(context.Background(), m); err != nil {
		t.Fatalf("create market %s: %v", id, err)
	}
	return m
}

func TestResolver_Run(t *testing.T) {
	ctx := context.Background()
	markets := memory.NewMarketLedger()
	metrics := &stubMetrics{data: map[string]*domain.PerformanceMetrics{
		"agent-1": {AgentID: "agent-1", WinRateBps: 7500},
	}}

	dueDeadline := resolverNow + market.MinDeadlineLeadMs + 1
	createTestMarket(t, markets, "market-due", dueDeadline)
	createTestMarket(t, markets, "market-empty", dueDeadline)
	createTestMarket(t, markets, "market-pending", dueDeadline+3_600_000)

	// Stake only the first market; the second resolves with a zero pool.
	if err := markets.BetYes(ctx, "market-due", "user-1", uint256.NewInt(3000), resolverNow+1); err != nil {
		t.Fatalf("bet: %v", err)
	}

	history := &recordingHistory{}
	resolver := market.NewResolver(markets, metrics).WithHistory(history)

	result := resolver.Run(ctx, dueDeadline+1)
	if result.Resolved != 1 || result.Cancelled != 1 || result.Pending != 1 {
		t.Errorf("expected 1 resolved, 1 cancelled, 1 pending; got %+v", result)
	}
	if len(result.Errors) != 0 {
		t.Errorf("expected no errors, got %v", result.Errors)
	}

	m, err := markets.GetMarket(ctx, "market-due")
	if err != nil {
		t.Fatalf("GetMarket: %v", err)
	}
	if m.Status != domain.MarketStatusResolvedYes {
		t.Errorf("expected RESOLVED_YES, got %s", m.Status)
	}

	m, _ = markets.GetMarket(ctx, "market-empty")
	if m.Status != domain.MarketStatusCancelled {
		t.Errorf("expected CANCELLED for empty pool, got %s", m.Status)
	}

	m, _ = markets.GetMarket(ctx, "market-pending")
	if m.Status != domain.MarketStatusOpen {
		t.Errorf("expected pending market untouched, got %s", m.Status)
	}

	if len(history.records) != 2 {
		t.Errorf("expected 2 audit records, got %d", len(history.records))
	}
}

func TestResolver_ResolveMarket(t *testing.T) {
	ctx := context.Background()
	markets := memory.NewMarketLedger()
	metrics := &stubMetrics{data: map[string]*domain.PerformanceMetrics{
		"agent-1": {AgentID: "agent-1", WinRateBps: 4000},
	}}

	deadline := resolverNow + market.MinDeadlineLeadMs + 1
	m := createTestMarket(t, markets, "market-1", deadline)
	if err := markets.BetNo(ctx, m.MarketID, "user-1", uint256.NewInt(1000), resolverNow+1); err != nil {
		t.Fatalf("bet: %v", err)
	}

	resolver := market.NewResolver(markets, metrics)

	// Before the deadline the trigger path declines.
	if _, err := resolver.ResolveMarket(ctx, m.MarketID, deadline-1); !errors.Is(err, ledger.ErrDeadlineNotReached) {
		t.Errorf("expected ErrDeadlineNotReached, got %v", err)
	}

	status, err := resolver.ResolveMarket(ctx, m.MarketID, deadline+1)
	if err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}
	if status != domain.MarketStatusResolvedNo {
		t.Errorf("expected RESOLVED_NO, got %s", status)
	}

	// Terminal markets report their status alongside the sentinel.
	status, err = resolver.ResolveMarket(ctx, m.MarketID, deadline+2)
	if !errors.Is(err, ledger.ErrMarketTerminal) {
		t.Errorf("expected ErrMarketTerminal, got %v", err)
	}
	if status != domain.MarketStatusResolvedNo {
		t.Errorf("expected terminal status echoed, got %s", status)
	}

	if _, err := resolver.ResolveMarket(ctx, "market-unknown", deadline+1); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolver_MissingMetricsIsError(t *testing.T) {
	ctx := context.Background()
	markets := memory.NewMarketLedger()
	metrics := &stubMetrics{data: map[string]*domain.PerformanceMetrics{}}

	deadline := resolverNow + market.MinDeadlineLeadMs + 1
	m := createTestMarket(t, markets, "market-1", deadline)
	if err := markets.BetYes(ctx, m.MarketID, "user-1", uint256.NewInt(1000), resolverNow+1); err != nil {
		t.Fatalf("bet: %v", err)
	}

	resolver := market.NewResolver(markets, metrics)
	result := resolver.Run(ctx, deadline+1)

	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", result.Errors)
	}
	// The market stays OPEN for the next pass.
	got, _ := markets.GetMarket(ctx, m.MarketID)
	if got.Status != domain.MarketStatusOpen {
		t.Errorf("expected market still OPEN, got %s", got.Status)
	}
}
