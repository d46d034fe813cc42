package events

import (
	"sync"
	"time"
)

// Registry maps run IDs to their Stream. Entries are created at run start
// and removed after gracePeriod following the stream's terminal event, to
// allow a late subscriber to drain it. Grounded on the teacher's own
// cleanup-service ticker pattern — a background sweep rather than a
// per-entry timer per run, so registry size stays bounded under load.
type Registry struct {
	mu      sync.Mutex
	streams map[string]*entry

	gracePeriod time.Duration
	capacity    int
}

type entry struct {
	stream    *Stream
	closedAt  *time.Time
}

// NewRegistry builds a Registry. capacity is the per-stream event buffer
// size passed to NewStream; gracePeriod controls the Sweep delay.
func NewRegistry(capacity int, gracePeriod time.Duration) *Registry {
	return &Registry{
		streams:     make(map[string]*entry),
		capacity:    capacity,
		gracePeriod: gracePeriod,
	}
}

// Create registers a new stream for runID and returns it.
func (r *Registry) Create(runID string) *Stream {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := NewStream(runID, r.capacity)
	r.streams[runID] = &entry{stream: s}
	return s
}

// Get returns the stream for runID, if still registered.
func (r *Registry) Get(runID string) (*Stream, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.streams[runID]
	if !ok {
		return nil, false
	}
	return e.stream, true
}

// MarkClosed records that runID's stream published its terminal event at
// now, starting the grace-period clock. Sweep removes it once the grace
// period elapses.
func (r *Registry) MarkClosed(runID string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.streams[runID]
	if !ok {
		return
	}
	e.closedAt = &now
}

// Sweep removes every entry whose stream closed more than gracePeriod
// before now. Intended to be called periodically from a ticker loop (see
// RunSweeper).
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for runID, e := range r.streams {
		if e.closedAt != nil && now.Sub(*e.closedAt) >= r.gracePeriod {
			delete(r.streams, runID)
			removed++
		}
	}
	return removed
}

// RunSweeper runs Sweep on a ticker until stop is closed. Call it once per
// process, in a goroutine, alongside the registry's construction.
func (r *Registry) RunSweeper(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case t := <-ticker.C:
			r.Sweep(t)
		}
	}
}
