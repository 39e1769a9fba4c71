package progress

import (
	"sync"
	"time"
)

// Bus stores recent snapshots and fans them out to subscribers. Publishing
// never blocks: a subscriber whose buffer is full misses that snapshot and
// is expected to re-sync through Since.
type Bus struct {
	mu           sync.RWMutex
	nextSeq      int64
	maxSnapshots int
	history      []Snapshot
	nextSubID    int
	subs         map[int]chan Snapshot
}

// NewBus creates a bounded in-memory snapshot buffer.
func NewBus(maxSnapshots int) *Bus {
	if maxSnapshots <= 0 {
		maxSnapshots = 500
	}

	return &Bus{
		maxSnapshots: maxSnapshots,
		history:      make([]Snapshot, 0, maxSnapshots),
		subs:         make(map[int]chan Snapshot),
	}
}

// Publish appends one snapshot, assigns sequence and timestamp, and hands
// it to every live subscriber.
func (b *Bus) Publish(snap Snapshot) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	snap.Seq = b.nextSeq
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now().UTC()
	}

	b.history = append(b.history, snap)
	if len(b.history) > b.maxSnapshots {
		trim := len(b.history) - b.maxSnapshots
		b.history = append([]Snapshot(nil), b.history[trim:]...)
	}

	for _, ch := range b.subs {
		select {
		case ch <- snap:
		default:
		}
	}

	return snap
}

// Since returns snapshots with sequence strictly greater than seq.
func (b *Bus) Since(seq int64) []Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.history) == 0 {
		return nil
	}

	out := make([]Snapshot, 0, len(b.history))
	for _, snap := range b.history {
		if snap.Seq > seq {
			out = append(out, snap)
		}
	}
	return out
}

// Latest returns the most recent snapshot, if any was published.
func (b *Bus) Latest() (Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.history) == 0 {
		return Snapshot{}, false
	}
	return b.history[len(b.history)-1], true
}

// Subscribe registers an independent observer. The returned cancel
// function must be called to release the channel.
func (b *Bus) Subscribe() (<-chan Snapshot, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSubID
	b.nextSubID++
	ch := make(chan Snapshot, 64)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}
