package core

import (
	"context"
	"sync"
	"time"
)

// UploadStatus is the outcome of an upload attempt.
type UploadStatus string

const (
	UploadAccepted UploadStatus = "accepted"
	UploadRejected UploadStatus = "rejected"
)

// UploadEvent records one upload attempt. Only metadata is kept; rows never
// leave process memory.
type UploadEvent struct {
	ID        string       `json:"id"`
	DatasetID string       `json:"dataset_id,omitempty"`
	Filename  string       `json:"filename"`
	Status    UploadStatus `json:"status"`
	Rows      int          `json:"rows"`
	Columns   int          `json:"columns"`
	Reason    string       `json:"reason,omitempty"`
	IPAddress string       `json:"ip_address,omitempty"`
	UserAgent string       `json:"user_agent,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// HistoryStore persists upload events.
type HistoryStore interface {
	Record(ctx context.Context, ev UploadEvent) error
	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]UploadEvent, error)
	// Prune deletes events created before cutoff and reports how many went.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// DefaultHistoryCapacity is the ring size used for a non-positive capacity.
const DefaultHistoryCapacity = 256

// MemoryHistory is a fixed-size ring of events. Once full, the oldest event is
// overwritten.
type MemoryHistory struct {
	mu     sync.Mutex
	events []UploadEvent
	next   int
	size   int
}

// NewMemoryHistory returns a ring holding at most capacity events.
func NewMemoryHistory(capacity int) *MemoryHistory {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &MemoryHistory{events: make([]UploadEvent, capacity)}
}

// Record appends ev, overwriting the oldest event once the ring is full.
func (h *MemoryHistory) Record(_ context.Context, ev UploadEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events[h.next] = ev
	h.next = (h.next + 1) % len(h.events)
	if h.size < len(h.events) {
		h.size++
	}
	return nil
}

// Recent returns up to limit events, newest first. A limit <= 0 returns all
// retained events.
func (h *MemoryHistory) Recent(_ context.Context, limit int) ([]UploadEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if limit <= 0 || limit > h.size {
		limit = h.size
	}
	out := make([]UploadEvent, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (h.next - i + len(h.events)) % len(h.events)
		out = append(out, h.events[idx])
	}
	return out, nil
}

// Prune drops events created before cutoff and reports how many went.
func (h *MemoryHistory) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Rebuild oldest-first, keeping only events at or after cutoff.
	kept := make([]UploadEvent, 0, h.size)
	for i := h.size; i >= 1; i-- {
		ev := h.events[(h.next-i+len(h.events))%len(h.events)]
		if !ev.CreatedAt.Before(cutoff) {
			kept = append(kept, ev)
		}
	}

	removed := int64(h.size - len(kept))
	clear(h.events)
	copy(h.events, kept)
	h.size = len(kept)
	h.next = len(kept) % len(h.events)
	return removed, nil
}
