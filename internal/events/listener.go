package events

import (
	"context"
	"errors"
	"log"
	"time"

	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
)

// MarketResolver resolves a single market on demand.
type MarketResolver interface {
	ResolveMarket(ctx context.Context, marketID string, now int64) (domain.MarketStatus, error)
}

// Listener drains a trigger stream and hands each market to the
// resolver. Triggers are advisory: the resolver re-checks deadline and
// committed state, so a stale or premature trigger is just skipped.
type Listener struct {
	resolver MarketResolver
	verbose  bool
}

// NewListener creates a Listener over the resolver.
func NewListener(resolver MarketResolver) *Listener {
	return &Listener{resolver: resolver}
}

// WithVerbose enables per-trigger logging.
func (l *Listener) WithVerbose(v bool) *Listener {
	l.verbose = v
	return l
}

// Run consumes triggers until the stream closes or ctx is cancelled.
func (l *Listener) Run(ctx context.Context, triggers <-chan TriggerNotification) {
	for {
		select {
		case <-ctx.Done():
			return
		case notif, ok := <-triggers:
			if !ok {
				return
			}
			l.handle(ctx, notif)
		}
	}
}

func (l *Listener) handle(ctx context.Context, notif TriggerNotification) {
	now := time.Now().UnixMilli()
	status, err := l.resolver.ResolveMarket(ctx, notif.MarketID, now)
	switch {
	case err == nil:
		l.log("trigger resolved market %s: %s", notif.MarketID, status)
	case errors.Is(err, ledger.ErrMarketTerminal),
		errors.Is(err, ledger.ErrDeadlineNotReached),
		errors.Is(err, ledger.ErrNotFound):
		// Expected for stale, early, or unknown triggers.
		l.log("trigger for market %s skipped: %v", notif.MarketID, err)
	default:
		log.Printf("[events] trigger for market %s failed: %v", notif.MarketID, err)
	}
}

func (l *Listener) log(format string, args ...interface{}) {
	if l.verbose {
		log.Printf("[events] "+format, args...)
	}
}
