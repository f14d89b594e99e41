package tlmt

import (
	"context"
	"testing"
)

func TestNewEvent(t *testing.T) {
	evt := NewEvent("worker_search", map[string]any{"search_id": int64(3)})

	if evt.Name != "worker_search" {
		t.Fatalf("unexpected name %q", evt.Name)
	}

	if evt.Data["search_id"] != int64(3) {
		t.Fatalf("unexpected data %v", evt.Data)
	}
}

func TestNoop(t *testing.T) {
	n := NewNoop()

	if err := n.Send(context.Background(), NewEvent("x", nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := n.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
