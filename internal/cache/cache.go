// Package cache holds the client-side conversation list. It is the single
// source of truth read by UI layers; all writes go through the mutation
// methods below, there are no raw setters.
package cache

import (
	"slices"
	"sync"

	"github.com/tiendoapp/tiendo/internal/conversation"
)

// Conversations is an ordered in-memory conversation list.
type Conversations struct {
	mu   sync.RWMutex
	list []conversation.Conversation
}

// New creates an empty conversation cache.
func New() *Conversations {
	return &Conversations{}
}

// Replace swaps the whole list, e.g. after a full refresh from the store.
func (c *Conversations) Replace(list []conversation.Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = slices.Clone(list)
}

// Upsert replaces the record with the same id in place, or appends it.
func (c *Conversations) Upsert(conv conversation.Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.index(conv.ID); i >= 0 {
		c.list[i] = conv
		return
	}
	c.list = append(c.list, conv)
}

// InsertHead puts conv at the front of the list, removing any existing
// record with the same id first. Used when an undone deletion restores a
// conversation.
func (c *Conversations) InsertHead(conv conversation.Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.index(conv.ID); i >= 0 {
		c.list = slices.Delete(c.list, i, i+1)
	}
	c.list = slices.Insert(c.list, 0, conv)
}

// Remove deletes the record with the given id and returns it together with
// the index it occupied, so a failed deletion can restore it in place.
func (c *Conversations) Remove(id string) (conversation.Conversation, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(id)
	if i < 0 {
		return conversation.Conversation{}, 0, false
	}
	conv := c.list[i]
	c.list = slices.Delete(c.list, i, i+1)
	return conv, i, true
}

// ReinsertAt puts conv back at index, clamped to the current list bounds.
func (c *Conversations) ReinsertAt(conv conversation.Conversation, index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.index(conv.ID); i >= 0 {
		c.list[i] = conv
		return
	}
	index = min(max(index, 0), len(c.list))
	c.list = slices.Insert(c.list, index, conv)
}

// Get returns a copy of the record with the given id.
func (c *Conversations) Get(id string) (conversation.Conversation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.index(id); i >= 0 {
		return c.list[i], true
	}
	return conversation.Conversation{}, false
}

// List returns a copy of the current list in order.
func (c *Conversations) List() []conversation.Conversation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.list)
}

// Len returns the number of cached conversations.
func (c *Conversations) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.list)
}

// SetArchived flips the archived flag and its timestamp.
func (c *Conversations) SetArchived(id string, archived bool, at int64) {
	c.mutate(id, func(conv *conversation.Conversation) {
		conv.IsArchived = archived
		if archived {
			conv.ArchivedAt = at
		} else {
			conv.ArchivedAt = 0
		}
	})
}

// SetPinned flips the pinned flag and its timestamp.
func (c *Conversations) SetPinned(id string, pinned bool, at int64) {
	c.mutate(id, func(conv *conversation.Conversation) {
		conv.IsPinned = pinned
		if pinned {
			conv.PinnedAt = at
		} else {
			conv.PinnedAt = 0
		}
	})
}

// SetMuted flips the muted flag; until is the mute deadline in unix millis
// (0 = forever) and is meaningful only when muted is true.
func (c *Conversations) SetMuted(id string, muted bool, at, until int64) {
	c.mutate(id, func(conv *conversation.Conversation) {
		conv.IsMuted = muted
		if muted {
			conv.MutedAt = at
			conv.MuteUntil = until
		} else {
			conv.MutedAt = 0
			conv.MuteUntil = 0
		}
	})
}

// SetUnreadCount sets the unread counter, floored at zero.
func (c *Conversations) SetUnreadCount(id string, count int) {
	c.mutate(id, func(conv *conversation.Conversation) {
		conv.UnreadCount = max(count, 0)
	})
}

// ClearLastMessage wipes the last-message snapshot after message history is
// cleared.
func (c *Conversations) ClearLastMessage(id string) {
	c.mutate(id, func(conv *conversation.Conversation) {
		conv.LastMessageBody = ""
		conv.LastMessageSender = ""
		conv.LastMessageAt = 0
	})
}

// ApplyDiff applies a partial-state diff to the record with the given id.
// Used to reapply rollback snapshots when a remote call fails.
func (c *Conversations) ApplyDiff(id string, diff conversation.StateDiff) {
	c.mutate(id, func(conv *conversation.Conversation) {
		diff.ApplyTo(conv)
	})
}

func (c *Conversations) mutate(id string, fn func(*conversation.Conversation)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.index(id); i >= 0 {
		fn(&c.list[i])
	}
}

// index must be called with the lock held.
func (c *Conversations) index(id string) int {
	return slices.IndexFunc(c.list, func(conv conversation.Conversation) bool {
		return conv.ID == id
	})
}
