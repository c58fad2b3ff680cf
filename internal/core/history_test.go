package core

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func event(name string, at time.Time) UploadEvent {
	return UploadEvent{Filename: name, Status: UploadAccepted, CreatedAt: at}
}

func filenames(events []UploadEvent) string {
	s := ""
	for i, ev := range events {
		if i > 0 {
			s += ","
		}
		s += ev.Filename
	}
	return s
}

func TestMemoryHistory_RingOverwritesOldest(t *testing.T) {
	h := NewMemoryHistory(3)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		h.Record(ctx, event(fmt.Sprintf("e%d", i), base.Add(time.Duration(i)*time.Minute)))
	}

	tests := []struct {
		limit int
		want  string
	}{
		{0, "e4,e3,e2"},
		{2, "e4,e3"},
		{10, "e4,e3,e2"},
	}
	for _, tt := range tests {
		got, err := h.Recent(ctx, tt.limit)
		if err != nil {
			t.Fatalf("Recent(%d): %v", tt.limit, err)
		}
		if filenames(got) != tt.want {
			t.Errorf("Recent(%d) = %s, want %s", tt.limit, filenames(got), tt.want)
		}
	}
}

func TestMemoryHistory_Prune(t *testing.T) {
	h := NewMemoryHistory(4)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		h.Record(ctx, event(fmt.Sprintf("e%d", i), base.Add(time.Duration(i)*time.Hour)))
	}

	removed, err := h.Prune(ctx, base.Add(4*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	got, _ := h.Recent(ctx, 0)
	if filenames(got) != "e5,e4" {
		t.Errorf("after prune Recent = %s, want e5,e4", filenames(got))
	}

	// The ring keeps working after a prune.
	h.Record(ctx, event("e6", base.Add(6*time.Hour)))
	got, _ = h.Recent(ctx, 0)
	if filenames(got) != "e6,e5,e4" {
		t.Errorf("after record Recent = %s, want e6,e5,e4", filenames(got))
	}
}

func TestMemoryHistory_Empty(t *testing.T) {
	h := NewMemoryHistory(0)
	got, err := h.Recent(context.Background(), 5)
	if err != nil || len(got) != 0 {
		t.Errorf("Recent on empty ring = %v, %v", got, err)
	}
	if cap(h.events) != DefaultHistoryCapacity {
		t.Errorf("capacity = %d, want %d", cap(h.events), DefaultHistoryCapacity)
	}
}

func TestStartHistoryPruner_PrunesOnStart(t *testing.T) {
	h := NewMemoryHistory(8)
	s := NewService(Options{}, nil, h)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	ctx := context.Background()
	h.Record(ctx, event("old", now.Add(-48*time.Hour)))
	h.Record(ctx, event("fresh", now.Add(-time.Hour)))

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		s.StartHistoryPruner(runCtx, RetentionConfig{Retention: 24 * time.Hour, CheckInterval: time.Hour})
		close(done)
	}()

	deadline := time.After(time.Second)
	for {
		got, _ := h.Recent(ctx, 0)
		if filenames(got) == "fresh" {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("history = %s, want only fresh", filenames(got))
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop after cancellation")
	}
}
