package tracker

import (
	"context"
	"crypto/ed25519"
	"reflect"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"agent-performance-lab/internal/activity"
	"agent-performance-lab/internal/activity/stub"
	"agent-performance-lab/internal/consensus"
	"agent-performance-lab/internal/curve"
	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
	"agent-performance-lab/internal/ledger/memory"
)

const runnerSubmitter = "tracker"

// tickHarness wires memory ledgers, a stub source, and three parties
// behind one runner.
type tickHarness struct {
	runner   *Runner
	registry *memory.RegistryLedger
	metrics  *memory.MetricsLedger
	curves   *memory.CurveLedger
	heights  *memory.HeightSource
	source   *stub.Source
	history  *recordingSink
}

// recordingSink captures commits handed to the audit sink.
type recordingSink struct {
	reports []*domain.SignedReport
}

func (s *recordingSink) RecordCommit(_ context.Context, report *domain.SignedReport) error {
	s.reports = append(s.reports, report)
	return nil
}

func newTickHarness(t *testing.T) *tickHarness {
	t.Helper()

	parties := make([]*consensus.Party, 0, 3)
	pubs := make([]ed25519.PublicKey, 0, 3)
	for i := 0; i < 3; i++ {
		pub, key, err := ed25519.GenerateKey(nil)
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
		parties = append(parties, consensus.NewParty(i, key))
		pubs = append(pubs, pub)
	}
	signerSet, err := consensus.NewSignerSet(pubs, 2)
	if err != nil {
		t.Fatalf("NewSignerSet: %v", err)
	}

	h := &tickHarness{
		registry: memory.NewRegistryLedger(),
		metrics:  memory.NewMetricsLedger(signerSet, runnerSubmitter),
		curves:   memory.NewCurveLedger(runnerSubmitter),
		heights:  memory.NewHeightSource(100),
		source:   stub.NewSource(),
		history:  &recordingSink{},
	}
	reader := ledger.NewReader(h.heights, h.metrics, h.curves)
	aggregator := activity.NewAggregator(h.source)
	committer := consensus.NewCommitter(h.metrics, runnerSubmitter)
	h.runner = NewRunner(h.registry, reader, aggregator, parties, committer, 2).
		WithHistorySink(h.history)
	return h
}

func (h *tickHarness) addAgent(t *testing.T, agentID, wallet string, withCurve bool) {
	t.Helper()
	ctx := context.Background()
	err := h.registry.Register(ctx, &domain.AgentRecord{
		AgentID:      agentID,
		Wallet:       wallet,
		IsActive:     true,
		RegisteredAt: 1_700_000_000_000,
	})
	if err != nil {
		t.Fatalf("register %s: %v", agentID, err)
	}
	if withCurve {
		if err := h.curves.Deploy(ctx, agentID, uint256.NewInt(1e14), curve.BaseSlope); err != nil {
			t.Fatalf("deploy %s: %v", agentID, err)
		}
	}
}

func activeTxs() []domain.WalletTransaction {
	return []domain.WalletTransaction{
		{Signature: "s1", Action: domain.ActionSwap, Success: true, NetUSD: 120, GrossUSD: 1000, Timestamp: 100},
		{Signature: "s2", Action: domain.ActionSwap, Success: true, NetUSD: -40, GrossUSD: 800, Timestamp: 200},
	}
}

func TestRunner_CommitThenNoOp(t *testing.T) {
	ctx := context.Background()
	h := newTickHarness(t)
	h.addAgent(t, "agent-1", "wallet-1", true)
	h.source.Load("wallet-1", activeTxs())

	now := time.Now().UnixMilli()
	result, err := h.runner.Run(ctx, now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Height != 100 {
		t.Errorf("expected pinned height 100, got %d", result.Height)
	}
	if result.Processed != 1 || result.Committed != 1 {
		t.Errorf("expected 1 processed 1 committed, got %+v", result)
	}

	committed, err := h.metrics.GetMetrics(ctx, "agent-1")
	if err != nil {
		t.Fatalf("GetMetrics: %v", err)
	}
	if committed.TotalTrades != 2 || committed.WinRateBps != 5000 {
		t.Errorf("unexpected committed snapshot: %+v", committed)
	}
	if len(h.history.reports) != 1 {
		t.Errorf("expected 1 audit record, got %d", len(h.history.reports))
	}

	// Unchanged inputs at a new height: the tick is a quiet no-op.
	h.heights.Advance(1)
	result, err = h.runner.Run(ctx, now+60_000)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if result.NoOps != 1 || result.Committed != 0 {
		t.Errorf("expected quiet no-op, got %+v", result)
	}
	if len(h.history.reports) != 1 {
		t.Errorf("no-op tick must not record history, got %d", len(h.history.reports))
	}
}

func TestRunner_AgentWithoutCurveSkipped(t *testing.T) {
	ctx := context.Background()
	h := newTickHarness(t)
	h.addAgent(t, "agent-1", "wallet-1", false)
	h.source.Load("wallet-1", activeTxs())

	result, err := h.runner.Run(ctx, time.Now().UnixMilli())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.NotConfigured != 1 || result.Committed != 0 {
		t.Errorf("expected 1 not configured, got %+v", result)
	}
	if len(result.Errors) != 0 {
		t.Errorf("expected no errors, got %v", result.Errors)
	}
}

func TestRunner_FetchFailureCollectedNotFatal(t *testing.T) {
	ctx := context.Background()
	h := newTickHarness(t)
	h.addAgent(t, "agent-1", "wallet-1", true)
	h.source.Load("wallet-1", activeTxs())

	h.source.Fail(context.DeadlineExceeded)
	result, err := h.runner.Run(ctx, time.Now().UnixMilli())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Errors) != 1 || result.Committed != 0 {
		t.Errorf("expected 1 error 0 committed, got %+v", result)
	}

	// The next tick recovers once the source does.
	h.source.Fail(nil)
	result, err = h.runner.Run(ctx, time.Now().UnixMilli())
	if err != nil {
		t.Fatalf("recovery Run: %v", err)
	}
	if result.Committed != 1 {
		t.Errorf("expected commit after recovery, got %+v", result)
	}
}

func TestRunner_RotationWindow(t *testing.T) {
	h := newTickHarness(t)
	h.runner.WithMaxAgentsPerTick(2)

	ids := []string{"agent-a", "agent-b", "agent-c"}

	if got := h.runner.window(ids); !reflect.DeepEqual(got, []string{"agent-a", "agent-b"}) {
		t.Errorf("first window: got %v", got)
	}
	if got := h.runner.window(ids); !reflect.DeepEqual(got, []string{"agent-c", "agent-a"}) {
		t.Errorf("second window: got %v", got)
	}
	if got := h.runner.window(ids); !reflect.DeepEqual(got, []string{"agent-b", "agent-c"}) {
		t.Errorf("third window: got %v", got)
	}
}

func TestRunner_WindowUncappedReturnsAll(t *testing.T) {
	h := newTickHarness(t)
	ids := []string{"agent-a", "agent-b", "agent-c"}
	if got := h.runner.window(ids); !reflect.DeepEqual(got, ids) {
		t.Errorf("expected whole set, got %v", got)
	}
}
