// Package main provides a one-shot fixture run over in-memory ledgers:
// register → deploy → trade → tick → adjust → market lifecycle.
// Useful for demos and for eyeballing the full pipeline end to end.
package main

import (
	"context"
	"crypto/ed25519"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/holiman/uint256"

	"agent-performance-lab/internal/activity"
	"agent-performance-lab/internal/activity/stub"
	"agent-performance-lab/internal/consensus"
	"agent-performance-lab/internal/curve"
	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/idhash"
	"agent-performance-lab/internal/ledger"
	"agent-performance-lab/internal/ledger/memory"
	"agent-performance-lab/internal/market"
	"agent-performance-lab/internal/tracker"
)

const submitter = "tracker"

func main() {
	verbose := flag.Bool("verbose", false, "Verbose output")
	parties := flag.Int("parties", 3, "Number of computing parties")
	threshold := flag.Int("threshold", 2, "Quorum threshold")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal %v, cancelling...\n", sig)
		cancel()
	}()

	if err := run(ctx, *parties, *threshold, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, partyCount, threshold int, verbose bool) error {
	now := time.Now().UnixMilli()

	// Parties and signer set.
	var (
		parties []*consensus.Party
		pubs    []ed25519.PublicKey
	)
	for i := 0; i < partyCount; i++ {
		_, key, err := ed25519.GenerateKey(nil)
		if err != nil {
			return fmt.Errorf("generate party key: %w", err)
		}
		parties = append(parties, consensus.NewParty(i, key))
		pubs = append(pubs, key.Public().(ed25519.PublicKey))
	}
	signerSet, err := consensus.NewSignerSet(pubs, threshold)
	if err != nil {
		return err
	}

	// In-memory ledgers.
	registry := memory.NewRegistryLedger()
	metrics := memory.NewMetricsLedger(signerSet, submitter)
	curves := memory.NewCurveLedger(submitter)
	markets := memory.NewMarketLedger()
	heights := memory.NewHeightSource(100)

	// Fixture agent with canned wallet activity.
	source := stub.NewSource()
	source.Load("wallet-alpha", fixtureTransactions(now))

	agentID := "agent-alpha"
	if err := registry.Register(ctx, &domain.AgentRecord{
		AgentID:      agentID,
		Wallet:       "wallet-alpha",
		IsActive:     true,
		RegisteredAt: now - 24*3600*1000,
	}); err != nil {
		return fmt.Errorf("register agent: %w", err)
	}

	basePrice := uint256.NewInt(100_000_000_000_000) // 0.0001 per token
	if err := curves.Deploy(ctx, agentID, basePrice, curve.BaseSlope); err != nil {
		return fmt.Errorf("deploy curve: %w", err)
	}

	// Seed the curve with a trade so TVL and price appreciation are non-zero.
	amount := new(uint256.Int).Mul(uint256.NewInt(10), domain.TokenUnit)
	quote, err := curves.GetBuyPrice(ctx, agentID, amount)
	if err != nil {
		return fmt.Errorf("quote buy: %w", err)
	}
	cost, err := curves.Buy(ctx, agentID, "trader-1", amount, quote)
	if err != nil {
		return fmt.Errorf("buy: %w", err)
	}
	fmt.Printf("Curve seeded: bought %s base units for %s wei\n", amount.Dec(), cost.Dec())

	// One tracker tick.
	fmt.Println("\n=== Tick ===")
	aggregator := activity.NewAggregator(source)
	reader := ledger.NewReader(heights, metrics, curves)
	committer := consensus.NewCommitter(metrics, submitter)
	runner := tracker.NewRunner(registry, reader, aggregator, parties, committer, threshold).
		WithVerbose(verbose)

	result, err := runner.Run(ctx, now)
	if err != nil {
		return fmt.Errorf("tick: %w", err)
	}
	fmt.Printf("Tick at height %d: %d processed, %d committed, %d no-op\n",
		result.Height, result.Processed, result.Committed, result.NoOps)
	for _, msg := range result.Errors {
		fmt.Printf("  error: %s\n", msg)
	}

	committed, err := metrics.GetMetrics(ctx, agentID)
	if err != nil {
		return fmt.Errorf("read committed metrics: %w", err)
	}
	fmt.Printf("Committed: roi=%dbps win=%dbps dd=%dbps sharpe=%d tvl=%d trades=%d\n",
		committed.ROIBps, committed.WinRateBps, committed.MaxDrawdownBps,
		committed.SharpeRatioScaled, committed.TVLManaged, committed.TotalTrades)

	// Slope adjustment from the committed snapshot.
	fmt.Println("\n=== Adjust ===")
	adjuster := curve.NewAdjuster(metrics, curves, curve.NewScorePolicy(), submitter).WithVerbose(verbose)
	adjResult := adjuster.Run(ctx, []string{agentID})
	fmt.Printf("Adjusted: %d, unchanged: %d\n", adjResult.Adjusted, adjResult.Skipped)

	state, err := curves.GetCurve(ctx, agentID)
	if err != nil {
		return fmt.Errorf("read curve: %w", err)
	}
	fmt.Printf("Curve: supply=%s reserve=%s slope=%s price=%s\n",
		state.TotalSupply.Dec(), state.ReserveBalance.Dec(), state.Slope.Dec(), state.CurrentPrice.Dec())

	// Market lifecycle against the committed snapshot.
	fmt.Println("\n=== Market ===")
	deadline := now + market.MinDeadlineLeadMs + 60_000
	m := &domain.Market{
		MarketID:   idhash.ComputeMarketID(agentID, string(domain.MetricWinRate), string(domain.ComparisonAboveOrEqual), 5000, deadline, "creator-1"),
		AgentID:    agentID,
		Metric:     domain.MetricWinRate,
		Comparison: domain.ComparisonAboveOrEqual,
		Threshold:  5000,
		Deadline:   deadline,
		Creator:    "creator-1",
		CreatedAt:  now,
	}
	if err := markets.CreateMarket(ctx, m); err != nil {
		return fmt.Errorf("create market: %w", err)
	}
	if err := markets.BetYes(ctx, m.MarketID, "user-yes", uint256.NewInt(3_000), now); err != nil {
		return fmt.Errorf("bet yes: %w", err)
	}
	if err := markets.BetNo(ctx, m.MarketID, "user-no", uint256.NewInt(1_000), now); err != nil {
		return fmt.Errorf("bet no: %w", err)
	}

	resolver := market.NewResolver(markets, metrics).WithVerbose(verbose)
	status, err := resolver.ResolveMarket(ctx, m.MarketID, deadline+1)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	fmt.Printf("Market resolved: %s\n", status)

	for _, user := range []string{"user-yes", "user-no"} {
		payout, err := markets.Claim(ctx, m.MarketID, user)
		if err != nil {
			fmt.Printf("Claim %s: %v\n", user, err)
			continue
		}
		fmt.Printf("Claim %s: %s\n", user, payout.Dec())
	}

	return nil
}

// fixtureTransactions builds a small winning trading history.
func fixtureTransactions(now int64) []domain.WalletTransaction {
	txs := []domain.WalletTransaction{
		{Signature: "sig-1", Action: domain.ActionSwap, Success: true, NetUSD: 120_000_000, GrossUSD: 1_000_000_000},
		{Signature: "sig-2", Action: domain.ActionSwap, Success: true, NetUSD: -40_000_000, GrossUSD: 800_000_000},
		{Signature: "sig-3", Action: domain.ActionDeposit, Success: true, NetUSD: 15_000_000, GrossUSD: 500_000_000},
		{Signature: "sig-4", Action: domain.ActionHarvest, Success: true, NetUSD: 60_000_000, GrossUSD: 200_000_000},
		{Signature: "sig-5", Action: domain.ActionSwap, Success: false, NetUSD: 0, GrossUSD: 0},
	}
	for i := range txs {
		txs[i].Timestamp = now - int64(len(txs)-i)*3_600_000
	}
	return txs
}
