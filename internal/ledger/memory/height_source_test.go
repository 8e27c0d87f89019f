package memory

import (
	"context"
	"testing"
)

func TestHeightSource_Advance(t *testing.T) {
	ctx := context.Background()
	s := NewHeightSource(100)

	h, err := s.FinalizedHeight(ctx)
	if err != nil {
		t.Fatalf("FinalizedHeight: %v", err)
	}
	if h != 100 {
		t.Errorf("expected 100, got %d", h)
	}

	if got := s.Advance(5); got != 105 {
		t.Errorf("expected 105, got %d", got)
	}
	h, _ = s.FinalizedHeight(ctx)
	if h != 105 {
		t.Errorf("expected 105 after advance, got %d", h)
	}
}
