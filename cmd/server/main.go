// Package main provides the unified daemon that runs all components:
// - Tracker (scheduled): snapshot → parties → quorum → commit
// - Adjuster (scheduled): committed metrics → slope policy → curve write
// - Resolver (scheduled + triggered): due markets → terminal status
// - Liveness (scheduled): dormant agents → deactivation
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"agent-performance-lab/internal/activity"
	"agent-performance-lab/internal/consensus"
	"agent-performance-lab/internal/curve"
	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/events"
	"agent-performance-lab/internal/ledger"
	chstore "agent-performance-lab/internal/ledger/clickhouse"
	"agent-performance-lab/internal/ledger/memory"
	"agent-performance-lab/internal/ledger/migrations"
	pgstore "agent-performance-lab/internal/ledger/postgres"
	"agent-performance-lab/internal/liveness"
	"agent-performance-lab/internal/market"
	"agent-performance-lab/internal/observability"
	"agent-performance-lab/internal/tracker"
)

// Server holds all components of the unified service.
type Server struct {
	runner   *tracker.Runner
	adjuster *curve.Adjuster
	resolver *market.Resolver
	monitor  *liveness.Monitor
	registry ledger.RegistryLedger
	markets  ledger.MarketLedger
	logger   *log.Logger

	// State
	mu              sync.Mutex
	started         time.Time
	lastTickRun     time.Time
	lastAdjustRun   time.Time
	lastResolveRun  time.Time
	lastLivenessRun time.Time
	tickRuns        int
	adjustRuns      int
	resolveRuns     int
	tickRunning     bool
	adjustRunning   bool
	resolveRunning  bool
}

func main() {
	loadEnvFile()

	// Parse flags (env vars as defaults)
	activityEndpoint := flag.String("activity-endpoint", os.Getenv("ACTIVITY_ENDPOINT"), "Activity indexer HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("GATEWAY_WS_ENDPOINT"), "Gateway WebSocket endpoint for market triggers (optional)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional, enables history audit)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory ledgers instead of PostgreSQL")
	partyKeysFile := flag.String("party-keys", os.Getenv("PARTY_KEYS_FILE"), "File with hex ed25519 seeds, one per line")
	partyCount := flag.Int("party-count", 3, "Number of generated parties when --party-keys is not set")
	threshold := flag.Int("threshold", 2, "Quorum threshold (m of n)")
	submitter := flag.String("submitter", "tracker", "Authorized submitter principal")
	policyName := flag.String("slope-policy", "PERF_SCORE", "Slope policy: ROI_TIER or PERF_SCORE")
	tickSchedule := flag.String("tick-schedule", "@every 1m", "Cron schedule for metric ticks")
	adjustSchedule := flag.String("adjust-schedule", "@every 10m", "Cron schedule for slope adjustments")
	resolveSchedule := flag.String("resolve-schedule", "@every 1m", "Cron schedule for market resolution")
	livenessSchedule := flag.String("liveness-schedule", "@every 1h", "Cron schedule for liveness checks")
	livenessWindow := flag.Duration("liveness-window", liveness.DefaultWindow, "Inactivity window before deactivation")
	maxAgentsPerTick := flag.Int("max-agents-per-tick", 0, "Rotation window size (0 = whole active set)")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	verbose := flag.Bool("verbose", false, "Verbose per-item logging")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *activityEndpoint == "" {
		logger.Fatal("--activity-endpoint is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory ledgers)")
	}

	parties, signerSet, err := buildParties(*partyKeysFile, *partyCount, *threshold)
	if err != nil {
		logger.Fatalf("Failed to build signer set: %v", err)
	}
	logger.Printf("Signer set: %d parties, threshold %d", signerSet.Size(), signerSet.Threshold())

	ctx, cancel := context.WithCancel(context.Background())

	source := activity.NewHTTPSource(*activityEndpoint)
	aggregator := activity.NewAggregator(source)

	ledgers, history, cleanup, err := createLedgers(ctx, *postgresDSN, *clickhouseDSN, *useMemory, signerSet, *submitter, source)
	if err != nil {
		logger.Fatalf("Failed to create ledgers: %v", err)
	}
	defer cleanup()

	reader := ledger.NewReader(ledgers.heights, ledgers.metrics, ledgers.curves)
	committer := consensus.NewCommitter(ledgers.metrics, *submitter)

	runner := tracker.NewRunner(ledgers.registry, reader, aggregator, parties, committer, *threshold).
		WithMaxAgentsPerTick(*maxAgentsPerTick).
		WithVerbose(*verbose)
	if history != nil {
		runner = runner.WithHistorySink(history.metrics)
	}

	adjuster := curve.NewAdjuster(ledgers.metrics, ledgers.curves, curve.PolicyByName(*policyName), *submitter).
		WithVerbose(*verbose)

	resolver := market.NewResolver(ledgers.markets, ledgers.metrics).WithVerbose(*verbose)
	if history != nil {
		resolver = resolver.WithHistory(history.resolutions)
	}

	monitor := liveness.NewMonitor(ledgers.registry, aggregator).
		WithWindow(*livenessWindow).
		WithVerbose(*verbose)

	server := &Server{
		runner:   runner,
		adjuster: adjuster,
		resolver: resolver,
		monitor:  monitor,
		registry: ledgers.registry,
		markets:  ledgers.markets,
		logger:   logger,
		started:  time.Now(),
	}

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	go server.startHTTPServer(*metricsAddr)

	err = server.Run(ctx, schedules{
		tick:     *tickSchedule,
		adjust:   *adjustSchedule,
		resolve:  *resolveSchedule,
		liveness: *livenessSchedule,
	}, *wsEndpoint)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// allLedgers holds all ledger implementations.
type allLedgers struct {
	registry ledger.RegistryLedger
	metrics  ledger.MetricsLedger
	curves   ledger.CurveLedger
	markets  ledger.MarketLedger
	heights  ledger.HeightSource
}

// historyStores holds the optional ClickHouse audit stores.
type historyStores struct {
	metrics     *chstore.MetricsHistoryStore
	resolutions *chstore.ResolutionHistoryStore
}

// createLedgers creates all required ledgers and optional history stores.
func createLedgers(
	ctx context.Context,
	postgresDSN, clickhouseDSN string,
	useMemory bool,
	verifier ledger.ReportVerifier,
	submitter string,
	heights ledger.HeightSource,
) (*allLedgers, *historyStores, func(), error) {
	var ledgers *allLedgers
	cleanup := func() {}

	if useMemory {
		ledgers = &allLedgers{
			registry: memory.NewRegistryLedger(),
			metrics:  memory.NewMetricsLedger(verifier, submitter),
			curves:   memory.NewCurveLedger(submitter),
			markets:  memory.NewMarketLedger(),
			heights:  heights,
		}
	} else {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		ledgers = &allLedgers{
			registry: pgstore.NewRegistryLedger(pool),
			metrics:  pgstore.NewMetricsLedger(pool, verifier, submitter),
			curves:   pgstore.NewCurveLedger(pool, submitter),
			markets:  pgstore.NewMarketLedger(pool),
			heights:  heights,
		}
		cleanup = pool.Close
	}

	if clickhouseDSN == "" {
		return ledgers, nil, cleanup, nil
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	history := &historyStores{
		metrics:     chstore.NewMetricsHistoryStore(chConn),
		resolutions: chstore.NewResolutionHistoryStore(chConn),
	}
	prev := cleanup
	cleanup = func() {
		chConn.Close()
		prev()
	}
	return ledgers, history, cleanup, nil
}

// buildParties loads or generates the computing parties and their
// registered signer set.
func buildParties(keysFile string, count, threshold int) ([]*consensus.Party, *consensus.SignerSet, error) {
	var seeds [][]byte

	if keysFile != "" {
		data, err := os.ReadFile(keysFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read party keys: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			seed, err := hex.DecodeString(line)
			if err != nil || len(seed) != ed25519.SeedSize {
				return nil, nil, fmt.Errorf("invalid party seed %q", line)
			}
			seeds = append(seeds, seed)
		}
	} else {
		// Dev mode: ephemeral keys, valid for this process only.
		for i := 0; i < count; i++ {
			_, key, err := ed25519.GenerateKey(nil)
			if err != nil {
				return nil, nil, fmt.Errorf("generate party key: %w", err)
			}
			seeds = append(seeds, key.Seed())
		}
	}

	parties := make([]*consensus.Party, 0, len(seeds))
	pubs := make([]ed25519.PublicKey, 0, len(seeds))
	for i, seed := range seeds {
		key := ed25519.NewKeyFromSeed(seed)
		parties = append(parties, consensus.NewParty(i, key))
		pubs = append(pubs, key.Public().(ed25519.PublicKey))
	}

	signerSet, err := consensus.NewSignerSet(pubs, threshold)
	if err != nil {
		return nil, nil, err
	}
	return parties, signerSet, nil
}

// schedules holds the cron specs for the four jobs.
type schedules struct {
	tick     string
	adjust   string
	resolve  string
	liveness string
}

// Run schedules the jobs and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context, specs schedules, wsEndpoint string) error {
	s.logger.Println("Starting unified server...")

	sup := tracker.NewSupervisor()
	defer sup.Shutdown()

	c := cron.New()
	jobs := []struct {
		name string
		spec string
		fn   func(context.Context)
	}{
		{"tick", specs.tick, s.runTick},
		{"adjust", specs.adjust, s.runAdjust},
		{"resolve", specs.resolve, s.runResolve},
		{"liveness", specs.liveness, s.runLiveness},
	}
	for _, job := range jobs {
		job := job
		if _, err := c.AddFunc(job.spec, func() {
			if err := sup.Start(ctx, job.name, job.fn); err != nil {
				s.logger.Printf("Job %s still running, skipping this fire", job.name)
			}
		}); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", job.name, job.spec, err)
		}
	}
	c.Start()
	defer c.Stop()

	// Run the tracker once immediately so a fresh deployment commits
	// without waiting for the first cron fire.
	if err := sup.Start(ctx, "tick", s.runTick); err != nil {
		s.logger.Printf("Initial tick: %v", err)
	}

	if wsEndpoint != "" {
		ws, err := events.NewWSClient(ctx, wsEndpoint, nil)
		if err != nil {
			return fmt.Errorf("connect trigger feed: %w", err)
		}
		defer ws.Close()

		listener := events.NewListener(&instrumentedResolver{inner: s.resolver}).WithVerbose(true)
		if err := sup.Start(ctx, "triggers", func(jobCtx context.Context) {
			listener.Run(jobCtx, ws.Notifications())
		}); err != nil {
			return fmt.Errorf("start trigger listener: %w", err)
		}
		s.logger.Printf("Trigger feed connected: %s", wsEndpoint)
	}

	<-ctx.Done()
	return ctx.Err()
}

// instrumentedResolver counts trigger dispositions around the resolver.
type instrumentedResolver struct {
	inner events.MarketResolver
}

func (r *instrumentedResolver) ResolveMarket(ctx context.Context, marketID string, now int64) (domain.MarketStatus, error) {
	status, err := r.inner.ResolveMarket(ctx, marketID, now)
	switch {
	case err == nil:
		observability.RecordTriggerHandled("resolved")
	case errors.Is(err, ledger.ErrMarketTerminal),
		errors.Is(err, ledger.ErrDeadlineNotReached),
		errors.Is(err, ledger.ErrNotFound):
		observability.RecordTriggerHandled("skipped")
	default:
		observability.RecordTriggerHandled("error")
	}
	return status, err
}

// runTick executes one tracker pass.
func (s *Server) runTick(ctx context.Context) {
	s.mu.Lock()
	if s.tickRunning {
		s.mu.Unlock()
		return
	}
	s.tickRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.tickRunning = false
		s.lastTickRun = time.Now()
		s.tickRuns++
		s.mu.Unlock()
	}()

	start := time.Now()
	result, err := s.runner.Run(ctx, start.UnixMilli())
	if err != nil {
		s.logger.Printf("Tick error: %v", err)
		observability.RecordTickError("run")
		return
	}

	for range result.Errors {
		observability.RecordTickError("agent")
	}
	observability.RecordTick(result.Height, result.Processed, result.Committed, result.NoOps, time.Since(start).Seconds())
	observability.DefaultMetrics.LastSuccessfulTick.Set(float64(time.Now().Unix()))

	s.logger.Printf("Tick at height %d: %d processed, %d committed, %d no-op, %d errors",
		result.Height, result.Processed, result.Committed, result.NoOps, len(result.Errors))
	for _, msg := range result.Errors {
		s.logger.Printf("Tick: %s", msg)
	}
}

// runAdjust executes one slope-adjustment pass over active agents.
func (s *Server) runAdjust(ctx context.Context) {
	s.mu.Lock()
	if s.adjustRunning {
		s.mu.Unlock()
		return
	}
	s.adjustRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.adjustRunning = false
		s.lastAdjustRun = time.Now()
		s.adjustRuns++
		s.mu.Unlock()
	}()

	ids, err := s.registry.GetActiveAgentIDs(ctx)
	if err != nil {
		s.logger.Printf("Adjust: list active agents: %v", err)
		return
	}

	result := s.adjuster.Run(ctx, ids)
	for i := 0; i < result.Adjusted; i++ {
		observability.RecordSlopeAdjustment("scheduled")
	}
	s.logger.Printf("Adjust: %d adjusted, %d unchanged, %d not configured, %d errors",
		result.Adjusted, result.Skipped, result.NotConfigured, len(result.Errors))
	for _, msg := range result.Errors {
		s.logger.Printf("Adjust: %s", msg)
	}
}

// runResolve executes one market-resolution pass.
func (s *Server) runResolve(ctx context.Context) {
	s.mu.Lock()
	if s.resolveRunning {
		s.mu.Unlock()
		return
	}
	s.resolveRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.resolveRunning = false
		s.lastResolveRun = time.Now()
		s.resolveRuns++
		s.mu.Unlock()
	}()

	result := s.resolver.Run(ctx, time.Now().UnixMilli())
	for i := 0; i < result.Resolved; i++ {
		observability.RecordMarketResolved("resolved")
	}
	for i := 0; i < result.Cancelled; i++ {
		observability.RecordMarketResolved("cancelled")
	}
	if open, err := s.markets.ListOpenMarkets(ctx); err == nil {
		observability.DefaultMetrics.OpenMarkets.Set(float64(len(open)))
	}
	observability.DefaultMetrics.LastSuccessfulResolve.Set(float64(time.Now().Unix()))

	s.logger.Printf("Resolve: %d resolved, %d cancelled, %d pending, %d errors",
		result.Resolved, result.Cancelled, result.Pending, len(result.Errors))
	for _, msg := range result.Errors {
		s.logger.Printf("Resolve: %s", msg)
	}
}

// runLiveness executes one liveness pass.
func (s *Server) runLiveness(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.lastLivenessRun = time.Now()
		s.mu.Unlock()
	}()

	result := s.monitor.Run(ctx, time.Now().UnixMilli())
	for i := 0; i < result.Deactivated; i++ {
		observability.RecordDeactivation()
	}
	s.logger.Printf("Liveness: %d checked, %d deactivated, %d errors",
		result.Checked, result.Deactivated, len(result.Errors))
}

// startHTTPServer starts the HTTP server for health/metrics/status.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status          string    `json:"status"`
	Uptime          string    `json:"uptime"`
	LastTickRun     time.Time `json:"last_tick_run,omitempty"`
	LastAdjustRun   time.Time `json:"last_adjust_run,omitempty"`
	LastResolveRun  time.Time `json:"last_resolve_run,omitempty"`
	LastLivenessRun time.Time `json:"last_liveness_run,omitempty"`
	TickRuns        int       `json:"tick_runs"`
	AdjustRuns      int       `json:"adjust_runs"`
	ResolveRuns     int       `json:"resolve_runs"`
	TickRunning     bool      `json:"tick_running"`
	AdjustRunning   bool      `json:"adjust_running"`
	ResolveRunning  bool      `json:"resolve_running"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:          "running",
		Uptime:          time.Since(s.started).String(),
		LastTickRun:     s.lastTickRun,
		LastAdjustRun:   s.lastAdjustRun,
		LastResolveRun:  s.lastResolveRun,
		LastLivenessRun: s.lastLivenessRun,
		TickRuns:        s.tickRuns,
		AdjustRuns:      s.adjustRuns,
		ResolveRuns:     s.resolveRuns,
		TickRunning:     s.tickRunning,
		AdjustRunning:   s.adjustRunning,
		ResolveRunning:  s.resolveRunning,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
