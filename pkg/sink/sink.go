package sink

import (
	"context"
	"sync"

	"github.com/vnykmshr/gopace/pkg/event"
)

// EventSink receives terminal event snapshots.
type EventSink interface {
	// Record persists one snapshot. Implementations must be safe for
	// concurrent use.
	Record(ctx context.Context, snap event.Snapshot) error
}

// Memory is an EventSink that keeps snapshots in memory, mainly for tests
// and local development.
type Memory struct {
	mu    sync.Mutex
	snaps []event.Snapshot
}

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Record stores the snapshot.
func (m *Memory) Record(_ context.Context, snap event.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, snap)
	return nil
}

// Snapshots returns a copy of everything recorded so far, in arrival order.
func (m *Memory) Snapshots() []event.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event.Snapshot, len(m.snaps))
	copy(out, m.snaps)
	return out
}

// Len returns the number of recorded snapshots.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snaps)
}
