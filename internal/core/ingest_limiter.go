package core

// ingest_limiter.go bounds how many CSV ingests may run at once.
//
// Each ingest holds a parsed copy of the upload in memory until it is either
// installed or discarded, so the number of concurrent ingests bounds peak
// memory. Callers that cannot get a slot within maxWait receive a Busy error.

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/ministats/internal/dataset"
)

// ErrTooManyIngests is returned when every ingest slot stays occupied for the
// whole wait period.
var ErrTooManyIngests = dataset.Errorf(dataset.KindBusy,
	"Too many uploads in progress, please try again later.")

const (
	// DefaultMaxConcurrentIngests is used when the configured limit is not positive.
	DefaultMaxConcurrentIngests = 4

	// DefaultIngestWait is used when the configured wait is not positive.
	DefaultIngestWait = 10 * time.Second
)

// IngestLimiter is a counting semaphore for ingest work.
type IngestLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// NewIngestLimiter allows at most maxConcurrent simultaneous ingests.
func NewIngestLimiter(maxConcurrent int, maxWait time.Duration) *IngestLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentIngests
	}
	if maxWait <= 0 {
		maxWait = DefaultIngestWait
	}
	return &IngestLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting up to the limiter's maxWait. The returned
// release func must be called exactly once.
func (l *IngestLimiter) Acquire(ctx context.Context) (release func(), err error) {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return l.release, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTooManyIngests
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *IngestLimiter) TryAcquire() (release func(), ok bool) {
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return l.release, true
	default:
		return nil, false
	}
}

func (l *IngestLimiter) release() {
	l.active.Add(-1)
	<-l.slots
}

// IngestLimiterStatus is a point-in-time view of the limiter.
type IngestLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status reports current slot usage.
func (l *IngestLimiter) Status() IngestLimiterStatus {
	return IngestLimiterStatus{
		Active:        int(l.active.Load()),
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}

// WaitForDrain blocks until no ingest holds a slot or ctx is done.
func (l *IngestLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for l.active.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
