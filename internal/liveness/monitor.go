// Package liveness deactivates agents with no recognized activity
// inside a configured window. This is the only registry write the core
// ever performs.
package liveness

import (
	"context"
	"fmt"
	"log"
	"time"

	"agent-performance-lab/internal/activity"
	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
)

// DefaultWindow is the inactivity window after which an agent is dormant.
const DefaultWindow = 30 * 24 * time.Hour

// Monitor checks activity timestamps and deactivates dormant agents.
type Monitor struct {
	registry   ledger.RegistryLedger
	aggregator *activity.Aggregator
	window     int64 // milliseconds
	verbose    bool
}

// NewMonitor creates a Monitor with the default inactivity window.
func NewMonitor(registry ledger.RegistryLedger, aggregator *activity.Aggregator) *Monitor {
	return &Monitor{
		registry:   registry,
		aggregator: aggregator,
		window:     DefaultWindow.Milliseconds(),
	}
}

// WithWindow overrides the inactivity window.
func (m *Monitor) WithWindow(d time.Duration) *Monitor {
	m.window = d.Milliseconds()
	return m
}

// WithVerbose enables per-agent logging.
func (m *Monitor) WithVerbose(v bool) *Monitor {
	m.verbose = v
	return m
}

// RunResult summarizes one liveness pass.
type RunResult struct {
	Checked     int
	Deactivated int
	Errors      []string
}

// Run deactivates every active agent whose last recognized activity is
// older than the window. Recently registered agents get the full window
// before their first check can deactivate them.
func (m *Monitor) Run(ctx context.Context, now int64) *RunResult {
	result := &RunResult{}

	ids, err := m.registry.GetActiveAgentIDs(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list active agents: %v", err))
		return result
	}

	for _, agentID := range ids {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("check %s: %v", agentID, err))
			return result
		}
		result.Checked++

		agent, err := m.registry.GetAgent(ctx, agentID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("check %s: %v", agentID, err))
			continue
		}

		snap, err := m.aggregator.Aggregate(ctx, agentID, agent.Wallet, domain.DefaultCapabilities())
		if err != nil {
			// Transient fetch failure: never deactivate on missing data.
			result.Errors = append(result.Errors, fmt.Sprintf("check %s: %v", agentID, err))
			continue
		}

		lastSeen := snap.LastActiveAt
		if lastSeen == 0 {
			lastSeen = agent.RegisteredAt
		}
		if now-lastSeen < m.window {
			continue
		}

		if err := m.registry.Deactivate(ctx, agentID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("deactivate %s: %v", agentID, err))
			continue
		}
		result.Deactivated++
		m.log("agent %s deactivated (last active %d)", agentID, snap.LastActiveAt)
	}

	return result
}

func (m *Monitor) log(format string, args ...interface{}) {
	if m.verbose {
		log.Printf("[liveness] "+format, args...)
	}
}
