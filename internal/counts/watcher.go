// Package counts keeps the tab counters (all/unread/archived/pinned) warm.
// The counters are not derived from the conversation cache: the watcher
// re-fetches them from the remote whenever the invalidation broadcast says
// something about conversations changed.
package counts

import (
	"context"
	"sync"

	"github.com/tiendoapp/tiendo/internal/bus"
	"github.com/tiendoapp/tiendo/internal/conversation"
	"github.com/tiendoapp/tiendo/internal/state"
	"go.uber.org/zap"
)

// KindUpdated is published after each successful counts refresh.
const KindUpdated = "counts.updated"

// Watcher subscribes to conversation events and refreshes the aggregate
// counters from the remote.
type Watcher struct {
	remote state.Remote
	auth   state.Auth
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc

	mu      sync.RWMutex
	current conversation.Counts
}

// NewWatcher creates a counts watcher.
func NewWatcher(remote state.Remote, auth state.Auth, b *bus.Bus, logger *zap.Logger) *Watcher {
	return &Watcher{
		remote: remote,
		auth:   auth,
		bus:    b,
		logger: logger,
	}
}

// Start subscribes to conversation events on the bus and performs an
// initial refresh.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	ch, unsub := w.bus.Subscribe("conversation.", 256)

	w.refresh(ctx)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				w.handleEvent(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

// Current returns the last fetched counters.
func (w *Watcher) Current() conversation.Counts {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) handleEvent(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case state.KindChanged:
		w.refresh(ctx)
	default:
		// Failure and countdown events do not move the counters.
	}
}

func (w *Watcher) refresh(ctx context.Context) {
	userID, ok := w.auth.UserID()
	if !ok {
		return
	}
	counts, err := w.remote.Counts(ctx, userID)
	if err != nil {
		w.logger.Error("failed to refresh conversation counts", zap.Error(err))
		return
	}

	w.mu.Lock()
	changed := counts != w.current
	w.current = counts
	w.mu.Unlock()

	if changed {
		w.bus.Publish(bus.Event{Kind: KindUpdated, Payload: counts})
	}
}
