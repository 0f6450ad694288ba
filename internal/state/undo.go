package state

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/tiendoapp/tiendo/internal/bus"
	"github.com/tiendoapp/tiendo/internal/cache"
	"github.com/tiendoapp/tiendo/internal/conversation"
	"go.uber.org/zap"
)

// DefaultUndoWindow is the client countdown length for undoing a deletion.
// Overridable through config; the server enforces its own deadline and that
// one wins when the two clocks disagree.
const DefaultUndoWindow = 5 * time.Second

// UndoPhase is a phase of one deletion's lifecycle.
type UndoPhase string

const (
	PhaseActive      UndoPhase = "ACTIVE"
	PhaseSoftDeleted UndoPhase = "SOFT_DELETED"
	PhaseUndone      UndoPhase = "UNDONE"
	PhaseExpired     UndoPhase = "EXPIRED"
)

// validPhaseTransitions defines the allowed deletion lifecycle moves.
var validPhaseTransitions = map[UndoPhase][]UndoPhase{
	PhaseActive:      {PhaseSoftDeleted},
	PhaseSoftDeleted: {PhaseUndone, PhaseExpired},
}

// UndoController owns soft deletion and its time-bounded undo. Every delete
// entry point goes through here; the rollback path is a second remote call,
// not a local revert, so it bypasses the optimistic ledger entirely.
type UndoController struct {
	remote Remote
	cache  *cache.Conversations
	auth   Auth
	bus    *bus.Bus
	logger *zap.Logger
	window time.Duration

	mu      sync.Mutex
	pending map[string]*pendingDelete
}

type pendingDelete struct {
	conv     conversation.Conversation
	index    int
	phase    UndoPhase
	deadline time.Time
	cancel   chan struct{}
}

func (p *pendingDelete) transition(to UndoPhase) error {
	if !slices.Contains(validPhaseTransitions[p.phase], to) {
		return fmt.Errorf("invalid deletion transition from %s to %s", p.phase, to)
	}
	p.phase = to
	return nil
}

// NewUndoController creates the deletion controller. window <= 0 falls back
// to DefaultUndoWindow.
func NewUndoController(remote Remote, c *cache.Conversations, auth Auth, b *bus.Bus, logger *zap.Logger, window time.Duration) *UndoController {
	if window <= 0 {
		window = DefaultUndoWindow
	}
	return &UndoController{
		remote:  remote,
		cache:   c,
		auth:    auth,
		bus:     b,
		logger:  logger,
		window:  window,
		pending: make(map[string]*pendingDelete),
	}
}

// Window returns the configured countdown length.
func (c *UndoController) Window() time.Duration {
	return c.window
}

// Pending reports whether a deletion of conversationID is awaiting undo or
// expiry.
func (c *UndoController) Pending(conversationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[conversationID]
	return ok
}

// Delete soft-deletes the conversation for the signed-in user. The record
// leaves the visible list immediately; on remote success a countdown starts
// during which Undo can restore it. On remote failure the record is put
// back where it was.
func (c *UndoController) Delete(ctx context.Context, conversationID string) error {
	userID, err := c.requireUser()
	if err != nil {
		return err
	}

	c.mu.Lock()
	if _, exists := c.pending[conversationID]; exists {
		c.mu.Unlock()
		return fmt.Errorf("deletion of conversation %s already pending", conversationID)
	}
	c.mu.Unlock()

	conv, index, ok := c.cache.Remove(conversationID)
	if !ok {
		return fmt.Errorf("conversation %s: %w", conversationID, conversation.ErrNotFound)
	}

	if err := c.remote.Delete(ctx, userID, conversationID); err != nil {
		c.cache.ReinsertAt(conv, index)
		c.publishFailure(conversationID, ActionDelete, err)
		return fmt.Errorf("delete conversation: %w", err)
	}

	entry := &pendingDelete{
		conv:     conv,
		index:    index,
		phase:    PhaseActive,
		deadline: time.Now().Add(c.window),
		cancel:   make(chan struct{}),
	}
	_ = entry.transition(PhaseSoftDeleted)

	c.mu.Lock()
	c.pending[conversationID] = entry
	c.mu.Unlock()

	c.bus.Publish(bus.Event{
		Kind:    KindChanged,
		Payload: Change{ConversationID: conversationID, Action: ActionDelete},
	})
	c.bus.Publish(bus.Event{
		Kind: KindDeletePending,
		Payload: DeletePending{
			ConversationID: conversationID,
			Seconds:        remainingSeconds(entry.deadline),
		},
	})

	go c.countdown(conversationID, entry.deadline, entry.cancel)
	return nil
}

// Undo restores a soft-deleted conversation before the countdown elapses.
// The server must reverse the soft delete itself; only then is the record
// re-fetched and reinserted at the head of the list. A server-side expiry
// wins over the client timer even if the toast is still visible.
func (c *UndoController) Undo(ctx context.Context, conversationID string) error {
	userID, err := c.requireUser()
	if err != nil {
		return err
	}

	c.mu.Lock()
	entry, ok := c.pending[conversationID]
	if !ok || entry.phase != PhaseSoftDeleted {
		c.mu.Unlock()
		return fmt.Errorf("no undoable deletion for conversation %s: %w", conversationID, conversation.ErrNotFound)
	}
	// Take ownership: stop the countdown and detach the entry so expiry
	// cannot race the remote call below.
	close(entry.cancel)
	delete(c.pending, conversationID)
	c.mu.Unlock()

	if err := c.remote.UndoDelete(ctx, userID, conversationID); err != nil {
		if errors.Is(err, conversation.ErrUndoExpired) {
			_ = entry.transition(PhaseExpired)
			c.bus.Publish(bus.Event{
				Kind:    KindUndoExpired,
				Payload: UndoExpired{ConversationID: conversationID},
			})
			return fmt.Errorf("undo delete: %w", err)
		}
		// Transient failure: re-arm the toast for whatever is left of the
		// window so the user can try again.
		c.rearm(conversationID, entry)
		c.publishFailure(conversationID, ActionUndoDelete, err)
		return fmt.Errorf("undo delete: %w", err)
	}

	_ = entry.transition(PhaseUndone)

	restored := entry.conv
	if conv, err := c.remote.Get(ctx, userID, conversationID); err != nil {
		c.logger.Warn("re-fetch after undo failed, restoring cached snapshot",
			zap.String("conversation_id", conversationID), zap.Error(err))
	} else {
		restored = *conv
	}
	c.cache.InsertHead(restored)

	c.bus.Publish(bus.Event{
		Kind:    KindChanged,
		Payload: Change{ConversationID: conversationID, Action: ActionUndoDelete},
	})
	return nil
}

// Shutdown stops every running countdown without touching the cache.
func (c *UndoController) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, entry := range c.pending {
		close(entry.cancel)
		delete(c.pending, id)
	}
}

func (c *UndoController) rearm(conversationID string, entry *pendingDelete) {
	if !time.Now().Before(entry.deadline) {
		c.dismiss(conversationID, entry)
		return
	}
	entry.cancel = make(chan struct{})
	c.mu.Lock()
	c.pending[conversationID] = entry
	c.mu.Unlock()
	go c.countdown(conversationID, entry.deadline, entry.cancel)
}

// countdown publishes the decreasing display counter and dismisses the
// undo affordance when the deadline passes.
func (c *UndoController) countdown(conversationID string, deadline time.Time, cancel <-chan struct{}) {
	tick := time.Second
	if c.window < 5*time.Second {
		tick = c.window / 5
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	expire := time.NewTimer(time.Until(deadline))
	defer expire.Stop()

	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
			if remaining := remainingSeconds(deadline); remaining > 0 {
				c.bus.Publish(bus.Event{
					Kind: KindUndoTick,
					Payload: UndoTick{
						ConversationID: conversationID,
						Remaining:      remaining,
					},
				})
			}
		case <-expire.C:
			c.expire(conversationID)
			return
		}
	}
}

// expire closes the toast after the client countdown ran out. The record
// stays absent; whether the server hard-deletes later is not our concern.
func (c *UndoController) expire(conversationID string) {
	c.mu.Lock()
	entry, ok := c.pending[conversationID]
	if !ok || entry.phase != PhaseSoftDeleted {
		c.mu.Unlock()
		return
	}
	delete(c.pending, conversationID)
	c.mu.Unlock()
	c.dismiss(conversationID, entry)
}

func (c *UndoController) dismiss(conversationID string, entry *pendingDelete) {
	_ = entry.transition(PhaseExpired)
	c.bus.Publish(bus.Event{
		Kind:    KindUndoDismissed,
		Payload: UndoDismissed{ConversationID: conversationID},
	})
}

func (c *UndoController) publishFailure(conversationID string, action Action, err error) {
	c.logger.Error("conversation deletion action failed",
		zap.String("conversation_id", conversationID),
		zap.String("action", string(action)),
		zap.Error(err))
	c.bus.Publish(bus.Event{
		Kind: KindActionFailed,
		Payload: ActionFailure{
			ConversationID: conversationID,
			Action:         action,
			Reason:         err.Error(),
		},
	})
}

func (c *UndoController) requireUser() (string, error) {
	userID, ok := c.auth.UserID()
	if !ok {
		return "", conversation.ErrUnauthenticated
	}
	return userID, nil
}

func remainingSeconds(deadline time.Time) int {
	d := time.Until(deadline)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
