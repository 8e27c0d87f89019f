package memory

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
)

func TestRegistryLedger_RegisterAndGet(t *testing.T) {
	ctx := context.Background()
	l := NewRegistryLedger()

	record := &domain.AgentRecord{
		AgentID:      "agent-1",
		Wallet:       "wallet-1",
		IsActive:     true,
		RegisteredAt: 1_700_000_000_000,
	}
	if err := l.Register(ctx, record); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := l.GetAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if got.Wallet != "wallet-1" || !got.IsActive {
		t.Errorf("unexpected record: %+v", got)
	}

	// The ledger stores a copy: mutating the input afterwards changes nothing.
	record.Wallet = "tampered"
	got, _ = l.GetAgent(ctx, "agent-1")
	if got.Wallet != "wallet-1" {
		t.Error("stored record aliased the caller's struct")
	}
}

func TestRegistryLedger_RegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	l := NewRegistryLedger()

	record := &domain.AgentRecord{AgentID: "agent-1", IsActive: true}
	if err := l.Register(ctx, record); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := l.Register(ctx, record); !errors.Is(err, ledger.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestRegistryLedger_RegisterInvalid(t *testing.T) {
	ctx := context.Background()
	l := NewRegistryLedger()

	if err := l.Register(ctx, nil); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("nil record: expected ErrInvalidInput, got %v", err)
	}
	if err := l.Register(ctx, &domain.AgentRecord{}); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("empty id: expected ErrInvalidInput, got %v", err)
	}
}

func TestRegistryLedger_GetAgentNotFound(t *testing.T) {
	l := NewRegistryLedger()
	if _, err := l.GetAgent(context.Background(), "missing"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistryLedger_ActiveIDsAndDeactivate(t *testing.T) {
	ctx := context.Background()
	l := NewRegistryLedger()

	for _, id := range []string{"agent-c", "agent-a", "agent-b"} {
		if err := l.Register(ctx, &domain.AgentRecord{AgentID: id, IsActive: true}); err != nil {
			t.Fatalf("Register %s: %v", id, err)
		}
	}

	ids, err := l.GetActiveAgentIDs(ctx)
	if err != nil {
		t.Fatalf("GetActiveAgentIDs: %v", err)
	}
	want := []string{"agent-a", "agent-b", "agent-c"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("expected %v, got %v", want, ids)
	}

	if err := l.Deactivate(ctx, "agent-b"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	// Deactivating twice is a quiet no-op.
	if err := l.Deactivate(ctx, "agent-b"); err != nil {
		t.Fatalf("second Deactivate: %v", err)
	}
	if err := l.Deactivate(ctx, "missing"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	ids, _ = l.GetActiveAgentIDs(ctx)
	want = []string{"agent-a", "agent-c"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("expected %v after deactivation, got %v", want, ids)
	}

	// The record survives deactivation with the flag cleared.
	got, err := l.GetAgent(ctx, "agent-b")
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if got.IsActive {
		t.Error("expected IsActive cleared")
	}
}
