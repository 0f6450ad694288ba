// Package ledger holds rollback snapshots for in-flight optimistic updates.
// It is pure bookkeeping: it never touches the state it snapshots, and
// entries live only for the duration of one remote call.
package ledger

import "sync"

type entry[T any] struct {
	seq      uint64
	snapshot T
}

// Ledger maps opaque keys to the rollback snapshot of the most recent
// pending update under that key. Every Apply bumps a per-key sequence
// number; Confirm and Rollback only act when handed the current sequence,
// so a stale in-flight operation can neither discard nor reapply a snapshot
// that a newer operation has since replaced.
type Ledger[T any] struct {
	mu      sync.Mutex
	entries map[string]entry[T]
	nextSeq uint64
}

// New creates an empty ledger.
func New[T any]() *Ledger[T] {
	return &Ledger[T]{entries: make(map[string]entry[T])}
}

// Apply registers a pending update, overwriting any existing entry under
// key, and returns the sequence number identifying this registration.
func (l *Ledger[T]) Apply(key string, snapshot T) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextSeq++
	l.entries[key] = entry[T]{seq: l.nextSeq, snapshot: snapshot}
	return l.nextSeq
}

// Confirm discards the entry for key if seq is still its current sequence.
// A superseded confirm is a no-op.
func (l *Ledger[T]) Confirm(key string, seq uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[key]; ok && e.seq == seq {
		delete(l.entries, key)
	}
}

// Rollback returns and discards the snapshot for key if seq is still its
// current sequence. The second return is false when the entry is missing or
// has been superseded; the caller must not revert anything in that case.
func (l *Ledger[T]) Rollback(key string, seq uint64) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok || e.seq != seq {
		var zero T
		return zero, false
	}
	delete(l.entries, key)
	return e.snapshot, true
}

// Pending reports whether key has an in-flight entry.
func (l *Ledger[T]) Pending(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[key]
	return ok
}

// Clear discards every entry. Used on session teardown.
func (l *Ledger[T]) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.entries)
}
