package ledger

import "testing"

func TestApplyRollback(t *testing.T) {
	l := New[string]()
	seq := l.Apply("pin:conv-1", "before")

	snap, ok := l.Rollback("pin:conv-1", seq)
	if !ok {
		t.Fatal("Rollback returned ok=false for current seq")
	}
	if snap != "before" {
		t.Errorf("snapshot = %q, want %q", snap, "before")
	}
	if l.Pending("pin:conv-1") {
		t.Error("entry should be discarded after rollback")
	}
}

func TestConfirmDiscards(t *testing.T) {
	l := New[int]()
	seq := l.Apply("k", 1)
	l.Confirm("k", seq)

	if _, ok := l.Rollback("k", seq); ok {
		t.Error("Rollback after Confirm should return ok=false")
	}
}

func TestSupersededRollbackIsNoop(t *testing.T) {
	l := New[int]()
	first := l.Apply("k", 1)
	second := l.Apply("k", 2)

	// The first operation's failure must not yield the second's snapshot.
	if _, ok := l.Rollback("k", first); ok {
		t.Error("stale rollback should be a no-op")
	}
	if !l.Pending("k") {
		t.Error("current entry should survive a stale rollback")
	}

	snap, ok := l.Rollback("k", second)
	if !ok || snap != 2 {
		t.Errorf("current rollback = (%v, %v), want (2, true)", snap, ok)
	}
}

func TestSupersededConfirmIsNoop(t *testing.T) {
	l := New[int]()
	first := l.Apply("k", 1)
	second := l.Apply("k", 2)

	l.Confirm("k", first)
	if !l.Pending("k") {
		t.Error("stale confirm should not discard the current entry")
	}

	snap, ok := l.Rollback("k", second)
	if !ok || snap != 2 {
		t.Errorf("rollback = (%v, %v), want (2, true)", snap, ok)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New[string]()
	pinSeq := l.Apply("pin:conv-1", "pin-snap")
	archiveSeq := l.Apply("archive:conv-1", "archive-snap")

	l.Confirm("pin:conv-1", pinSeq)

	snap, ok := l.Rollback("archive:conv-1", archiveSeq)
	if !ok || snap != "archive-snap" {
		t.Errorf("rollback = (%q, %v), want (archive-snap, true)", snap, ok)
	}
}

func TestClear(t *testing.T) {
	l := New[int]()
	seq := l.Apply("a", 1)
	l.Apply("b", 2)
	l.Clear()

	if l.Pending("a") || l.Pending("b") {
		t.Error("Clear should discard every entry")
	}
	if _, ok := l.Rollback("a", seq); ok {
		t.Error("Rollback after Clear should return ok=false")
	}
}
