package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tiendoapp/tiendo/internal/conversation"
	"go.uber.org/zap"
)

func newUndoFixture(t *testing.T, window time.Duration, convs ...conversation.Conversation) (*fixture, *UndoController) {
	t.Helper()
	f := newFixture(t, convs...)
	logger := zap.NewNop()
	ctl := NewUndoController(f.remote, f.cache, f.auth, f.bus, logger, window)
	t.Cleanup(ctl.Shutdown)
	return f, ctl
}

func TestDeleteRemovesFromListImmediately(t *testing.T) {
	f, ctl := newUndoFixture(t, time.Minute, conv("conv-2"), conv("other"))
	ch, unsub := f.bus.Subscribe("conversation.", 10)
	defer unsub()

	if err := ctl.Delete(context.Background(), "conv-2"); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.cache.Get("conv-2"); ok {
		t.Error("conv-2 should leave the visible list")
	}
	if !ctl.Pending("conv-2") {
		t.Error("deletion should be pending undo")
	}

	evt := waitEvent(t, ch, KindDeletePending)
	pending := evt.Payload.(DeletePending)
	if pending.ConversationID != "conv-2" || pending.Seconds != 60 {
		t.Errorf("delete_pending payload = %+v", pending)
	}
}

func TestDeleteRemoteFailureReinsertsInPlace(t *testing.T) {
	f, ctl := newUndoFixture(t, time.Minute, conv("a"), conv("b"), conv("c"))
	f.remote.errs["delete"] = errBoom

	err := ctl.Delete(context.Background(), "b")
	if !errors.Is(err, errBoom) {
		t.Fatalf("Delete = %v, want wrapped errBoom", err)
	}
	list := f.cache.List()
	if len(list) != 3 || list[1].ID != "b" {
		t.Errorf("list after failed delete = %v, want b back at index 1", listIDs(list))
	}
	if ctl.Pending("b") {
		t.Error("no undo window should open for a failed delete")
	}
}

func TestUndoRestoresAtHeadWithRemoteState(t *testing.T) {
	pinned := conv("conv-2")
	pinned.IsPinned = true
	f, ctl := newUndoFixture(t, time.Minute, pinned, conv("other"))
	ch, unsub := f.bus.Subscribe(KindChanged, 10)
	defer unsub()
	ctx := context.Background()

	if err := ctl.Delete(ctx, "conv-2"); err != nil {
		t.Fatal(err)
	}
	if err := ctl.Undo(ctx, "conv-2"); err != nil {
		t.Fatal(err)
	}

	list := f.cache.List()
	if len(list) != 2 || list[0].ID != "conv-2" {
		t.Fatalf("list = %v, want conv-2 reinserted at head", listIDs(list))
	}
	if !list[0].IsPinned {
		t.Error("flags should come back as they were before deletion")
	}
	if ctl.Pending("conv-2") {
		t.Error("undo should close the window")
	}
	if f.remote.callCount("get") == 0 {
		t.Error("undo must re-fetch the record; the server is the source of truth")
	}

	// Both the delete and the restore fire the invalidation broadcast.
	deleteEvt := waitEvent(t, ch, KindChanged)
	if deleteEvt.Payload.(Change).Action != ActionDelete {
		t.Errorf("first change = %+v, want delete", deleteEvt.Payload)
	}
	undoEvt := waitEvent(t, ch, KindChanged)
	if undoEvt.Payload.(Change).Action != ActionUndoDelete {
		t.Errorf("second change = %+v, want undo_delete", undoEvt.Payload)
	}
}

func TestUndoAfterServerDeadlineIsRejected(t *testing.T) {
	f, ctl := newUndoFixture(t, time.Minute, conv("conv-2"))
	ch, unsub := f.bus.Subscribe(KindUndoExpired, 10)
	defer unsub()
	ctx := context.Background()

	if err := ctl.Delete(ctx, "conv-2"); err != nil {
		t.Fatal(err)
	}
	// Server clock already past its deadline even though ours is not.
	f.remote.errs["undo_delete"] = conversation.ErrUndoExpired

	err := ctl.Undo(ctx, "conv-2")
	if !errors.Is(err, conversation.ErrUndoExpired) {
		t.Fatalf("Undo = %v, want ErrUndoExpired", err)
	}
	if _, ok := f.cache.Get("conv-2"); ok {
		t.Error("conv-2 must remain absent")
	}
	if ctl.Pending("conv-2") {
		t.Error("window should close on server expiry")
	}

	evt := waitEvent(t, ch, KindUndoExpired)
	if evt.Payload.(UndoExpired).ConversationID != "conv-2" {
		t.Errorf("expired payload = %+v", evt.Payload)
	}
}

func TestClientExpiryDismissesUndo(t *testing.T) {
	f, ctl := newUndoFixture(t, 100*time.Millisecond, conv("conv-2"))
	ch, unsub := f.bus.Subscribe(KindUndoDismissed, 10)
	defer unsub()
	ctx := context.Background()

	if err := ctl.Delete(ctx, "conv-2"); err != nil {
		t.Fatal(err)
	}

	evt := waitEvent(t, ch, KindUndoDismissed)
	if evt.Payload.(UndoDismissed).ConversationID != "conv-2" {
		t.Errorf("dismissed payload = %+v", evt.Payload)
	}
	if ctl.Pending("conv-2") {
		t.Error("window should be gone after client expiry")
	}
	if _, ok := f.cache.Get("conv-2"); ok {
		t.Error("conversation stays absent after expiry")
	}

	// Undo after expiry has nothing to act on.
	if err := ctl.Undo(ctx, "conv-2"); !errors.Is(err, conversation.ErrNotFound) {
		t.Errorf("Undo after expiry = %v, want ErrNotFound", err)
	}
	if f.remote.callCount("undo_delete") != 0 {
		t.Error("no remote undo call should happen after dismissal")
	}
}

func TestCountdownTicksDecrease(t *testing.T) {
	f, ctl := newUndoFixture(t, time.Second, conv("conv-2"))
	ch, unsub := f.bus.Subscribe(KindUndoTick, 32)
	defer unsub()

	if err := ctl.Delete(context.Background(), "conv-2"); err != nil {
		t.Fatal(err)
	}

	var ticks []int
	deadline := time.After(2 * time.Second)
collect:
	for {
		select {
		case evt := <-ch:
			ticks = append(ticks, evt.Payload.(UndoTick).Remaining)
		case <-deadline:
			break collect
		}
	}
	if len(ticks) == 0 {
		t.Fatal("expected at least one countdown tick")
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i] > ticks[i-1] {
			t.Fatalf("ticks not monotonically decreasing: %v", ticks)
		}
	}
}

func TestTransientUndoFailureKeepsWindowOpen(t *testing.T) {
	f, ctl := newUndoFixture(t, time.Minute, conv("conv-2"))
	ctx := context.Background()

	if err := ctl.Delete(ctx, "conv-2"); err != nil {
		t.Fatal(err)
	}
	f.remote.errs["undo_delete"] = errBoom

	if err := ctl.Undo(ctx, "conv-2"); !errors.Is(err, errBoom) {
		t.Fatalf("Undo = %v, want wrapped errBoom", err)
	}
	if !ctl.Pending("conv-2") {
		t.Error("window should stay open for a retry after a transient failure")
	}

	delete(f.remote.errs, "undo_delete")
	if err := ctl.Undo(ctx, "conv-2"); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.cache.Get("conv-2"); !ok {
		t.Error("retry should restore the conversation")
	}
}

func TestDeleteWhilePendingIsRefused(t *testing.T) {
	f, ctl := newUndoFixture(t, time.Minute, conv("conv-2"))
	ctx := context.Background()

	if err := ctl.Delete(ctx, "conv-2"); err != nil {
		t.Fatal(err)
	}
	if err := ctl.Delete(ctx, "conv-2"); err == nil {
		t.Error("second delete while pending should be refused")
	}
	if f.remote.callCount("delete") != 1 {
		t.Errorf("delete calls = %d, want 1", f.remote.callCount("delete"))
	}
}

func TestDeleteUnauthenticated(t *testing.T) {
	f, ctl := newUndoFixture(t, time.Minute, conv("conv-2"))
	f.auth.id = ""

	if err := ctl.Delete(context.Background(), "conv-2"); !errors.Is(err, conversation.ErrUnauthenticated) {
		t.Fatalf("Delete = %v, want ErrUnauthenticated", err)
	}
	if _, ok := f.cache.Get("conv-2"); !ok {
		t.Error("nothing may be removed without a user")
	}
}

func TestPhaseTransitionTable(t *testing.T) {
	p := &pendingDelete{phase: PhaseActive}
	if err := p.transition(PhaseUndone); err == nil {
		t.Error("ACTIVE -> UNDONE should be invalid")
	}
	if err := p.transition(PhaseSoftDeleted); err != nil {
		t.Fatal(err)
	}
	if err := p.transition(PhaseExpired); err != nil {
		t.Fatal(err)
	}
	// Terminal phases allow nothing further.
	if err := p.transition(PhaseSoftDeleted); err == nil {
		t.Error("EXPIRED is terminal")
	}
}

func listIDs(list []conversation.Conversation) []string {
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.ID
	}
	return out
}
