// Package state orchestrates conversation actions: each mutation is applied
// to the client cache first so the UI repaints instantly, registered in the
// rollback ledger, then confirmed or reverted on the remote result.
package state

import (
	"context"
	"fmt"
	"time"

	"github.com/tiendoapp/tiendo/internal/bus"
	"github.com/tiendoapp/tiendo/internal/cache"
	"github.com/tiendoapp/tiendo/internal/conversation"
	"github.com/tiendoapp/tiendo/internal/ledger"
	"go.uber.org/zap"
)

// Service holds one method per user-facing conversation action. Every
// method follows the same template: require a signed-in user, snapshot the
// inverse state into the ledger, mutate the cache synchronously, then issue
// the remote call and confirm or roll back.
type Service struct {
	remote Remote
	cache  *cache.Conversations
	auth   Auth
	bus    *bus.Bus
	logger *zap.Logger
	ledger *ledger.Ledger[conversation.StateDiff]
}

// NewService creates the conversation state service.
func NewService(remote Remote, c *cache.Conversations, auth Auth, b *bus.Bus, logger *zap.Logger) *Service {
	return &Service{
		remote: remote,
		cache:  c,
		auth:   auth,
		bus:    b,
		logger: logger,
		ledger: ledger.New[conversation.StateDiff](),
	}
}

// Hydrate replaces the cache with the user's conversation list from the
// remote. Called on startup and after sign-in.
func (s *Service) Hydrate(ctx context.Context) error {
	userID, err := s.requireUser()
	if err != nil {
		return err
	}
	list, err := s.remote.List(ctx, userID)
	if err != nil {
		return fmt.Errorf("hydrate conversations: %w", err)
	}
	s.cache.Replace(list)
	return nil
}

// Archive archives the conversation and best-effort mutes it.
func (s *Service) Archive(ctx context.Context, conversationID string) error {
	userID, conv, err := s.precondition(conversationID)
	if err != nil {
		return err
	}

	key := actionKey(ActionArchive, conversationID)
	seq := s.ledger.Apply(key, conversation.ArchivedDiff(&conv))
	s.cache.SetArchived(conversationID, true, time.Now().UnixMilli())

	if err := s.remote.Archive(ctx, userID, conversationID); err != nil {
		s.revert(conversationID, key, seq)
		s.publishFailure(conversationID, ActionArchive, err)
		return fmt.Errorf("archive conversation: %w", err)
	}
	s.ledger.Confirm(key, seq)
	s.publishChanged(conversationID, ActionArchive)

	// Archiving auto-mutes. The mute is advisory: its failure is logged
	// and swallowed, never reported against the archive and never
	// surfaced to the user.
	if err := s.mute(ctx, conversationID, conversation.MuteForever, false); err != nil {
		s.logger.Warn("coupled mute after archive failed; archived and muted state may drift",
			zap.String("conversation_id", conversationID), zap.Error(err))
	}
	return nil
}

// Unarchive clears the archived flag and best-effort unmutes.
func (s *Service) Unarchive(ctx context.Context, conversationID string) error {
	userID, conv, err := s.precondition(conversationID)
	if err != nil {
		return err
	}

	key := actionKey(ActionUnarchive, conversationID)
	seq := s.ledger.Apply(key, conversation.ArchivedDiff(&conv))
	s.cache.SetArchived(conversationID, false, 0)

	if err := s.remote.Unarchive(ctx, userID, conversationID); err != nil {
		s.revert(conversationID, key, seq)
		s.publishFailure(conversationID, ActionUnarchive, err)
		return fmt.Errorf("unarchive conversation: %w", err)
	}
	s.ledger.Confirm(key, seq)
	s.publishChanged(conversationID, ActionUnarchive)

	if err := s.unmute(ctx, conversationID, false); err != nil {
		s.logger.Warn("coupled unmute after unarchive failed; archived and muted state may drift",
			zap.String("conversation_id", conversationID), zap.Error(err))
	}
	return nil
}

// Pin sets the pinned flag.
func (s *Service) Pin(ctx context.Context, conversationID string) error {
	userID, conv, err := s.precondition(conversationID)
	if err != nil {
		return err
	}

	key := actionKey(ActionPin, conversationID)
	seq := s.ledger.Apply(key, conversation.PinnedDiff(&conv))
	s.cache.SetPinned(conversationID, true, time.Now().UnixMilli())

	if err := s.remote.Pin(ctx, userID, conversationID); err != nil {
		s.revert(conversationID, key, seq)
		s.publishFailure(conversationID, ActionPin, err)
		return fmt.Errorf("pin conversation: %w", err)
	}
	s.ledger.Confirm(key, seq)
	s.publishChanged(conversationID, ActionPin)
	return nil
}

// Unpin clears the pinned flag.
func (s *Service) Unpin(ctx context.Context, conversationID string) error {
	userID, conv, err := s.precondition(conversationID)
	if err != nil {
		return err
	}

	key := actionKey(ActionUnpin, conversationID)
	seq := s.ledger.Apply(key, conversation.PinnedDiff(&conv))
	s.cache.SetPinned(conversationID, false, 0)

	if err := s.remote.Unpin(ctx, userID, conversationID); err != nil {
		s.revert(conversationID, key, seq)
		s.publishFailure(conversationID, ActionUnpin, err)
		return fmt.Errorf("unpin conversation: %w", err)
	}
	s.ledger.Confirm(key, seq)
	s.publishChanged(conversationID, ActionUnpin)
	return nil
}

// Mute silences notifications for the given duration.
func (s *Service) Mute(ctx context.Context, conversationID string, d conversation.MuteDuration) error {
	return s.mute(ctx, conversationID, d, true)
}

// Unmute restores notifications.
func (s *Service) Unmute(ctx context.Context, conversationID string) error {
	return s.unmute(ctx, conversationID, true)
}

// mute carries the optimistic mute flow. When notify is false the
// failure event is suppressed; callers coupling a mute to another
// action log the error instead of surfacing it.
func (s *Service) mute(ctx context.Context, conversationID string, d conversation.MuteDuration, notify bool) error {
	if !d.Valid() {
		return fmt.Errorf("invalid mute duration %q", d)
	}
	userID, conv, err := s.precondition(conversationID)
	if err != nil {
		return err
	}

	key := actionKey(ActionMute, conversationID)
	seq := s.ledger.Apply(key, conversation.MutedDiff(&conv))
	now := time.Now()
	s.cache.SetMuted(conversationID, true, now.UnixMilli(), d.Until(now))

	if err := s.remote.Mute(ctx, userID, conversationID, d); err != nil {
		s.revert(conversationID, key, seq)
		if notify {
			s.publishFailure(conversationID, ActionMute, err)
		}
		return fmt.Errorf("mute conversation: %w", err)
	}
	s.ledger.Confirm(key, seq)
	s.publishChanged(conversationID, ActionMute)
	return nil
}

func (s *Service) unmute(ctx context.Context, conversationID string, notify bool) error {
	userID, conv, err := s.precondition(conversationID)
	if err != nil {
		return err
	}

	key := actionKey(ActionUnmute, conversationID)
	seq := s.ledger.Apply(key, conversation.MutedDiff(&conv))
	s.cache.SetMuted(conversationID, false, 0, 0)

	if err := s.remote.Unmute(ctx, userID, conversationID); err != nil {
		s.revert(conversationID, key, seq)
		if notify {
			s.publishFailure(conversationID, ActionUnmute, err)
		}
		return fmt.Errorf("unmute conversation: %w", err)
	}
	s.ledger.Confirm(key, seq)
	s.publishChanged(conversationID, ActionUnmute)
	return nil
}

// MarkUnread nulls the caller's read receipt server-side. There is no
// optimistic mutation: the cache is refreshed from the remote after the
// round trip succeeds.
func (s *Service) MarkUnread(ctx context.Context, conversationID string) error {
	userID, _, err := s.precondition(conversationID)
	if err != nil {
		return err
	}

	if err := s.remote.MarkUnread(ctx, userID, conversationID); err != nil {
		s.publishFailure(conversationID, ActionMarkUnread, err)
		return fmt.Errorf("mark conversation unread: %w", err)
	}
	if conv, err := s.remote.Get(ctx, userID, conversationID); err != nil {
		s.logger.Warn("refresh after mark-unread failed",
			zap.String("conversation_id", conversationID), zap.Error(err))
	} else {
		s.cache.Upsert(*conv)
	}
	s.publishChanged(conversationID, ActionMarkUnread)
	return nil
}

// ClearMessages irreversibly wipes the visible message history. The
// conversation itself remains; there is no undo, so nothing is applied
// locally until the remote agrees.
func (s *Service) ClearMessages(ctx context.Context, conversationID string) error {
	userID, _, err := s.precondition(conversationID)
	if err != nil {
		return err
	}

	if err := s.remote.ClearMessages(ctx, userID, conversationID); err != nil {
		s.publishFailure(conversationID, ActionClearMessages, err)
		return fmt.Errorf("clear conversation messages: %w", err)
	}
	s.cache.ClearLastMessage(conversationID)
	s.cache.SetUnreadCount(conversationID, 0)
	s.publishChanged(conversationID, ActionClearMessages)
	return nil
}

// Shutdown drops all in-flight rollback snapshots. Called on session
// teardown; any still-unresolved remote call can no longer revert the cache.
func (s *Service) Shutdown() {
	s.ledger.Clear()
}

// precondition checks the authenticated actor and that the conversation is
// present in the cache. Nothing is mutated when it fails.
func (s *Service) precondition(conversationID string) (string, conversation.Conversation, error) {
	userID, err := s.requireUser()
	if err != nil {
		return "", conversation.Conversation{}, err
	}
	conv, ok := s.cache.Get(conversationID)
	if !ok {
		return "", conversation.Conversation{}, fmt.Errorf("conversation %s: %w", conversationID, conversation.ErrNotFound)
	}
	return userID, conv, nil
}

func (s *Service) requireUser() (string, error) {
	userID, ok := s.auth.UserID()
	if !ok {
		return "", conversation.ErrUnauthenticated
	}
	return userID, nil
}

// revert reapplies the rollback snapshot if this operation is still the
// most recent pending one under its key; a superseded snapshot is dropped.
func (s *Service) revert(conversationID, key string, seq uint64) {
	if diff, ok := s.ledger.Rollback(key, seq); ok {
		s.cache.ApplyDiff(conversationID, diff)
	}
}

func (s *Service) publishChanged(conversationID string, action Action) {
	s.bus.Publish(bus.Event{
		Kind:    KindChanged,
		Payload: Change{ConversationID: conversationID, Action: action},
	})
}

func (s *Service) publishFailure(conversationID string, action Action, err error) {
	s.logger.Error("conversation action failed",
		zap.String("conversation_id", conversationID),
		zap.String("action", string(action)),
		zap.Error(err))
	s.bus.Publish(bus.Event{
		Kind: KindActionFailed,
		Payload: ActionFailure{
			ConversationID: conversationID,
			Action:         action,
			Reason:         err.Error(),
		},
	})
}

func actionKey(action Action, conversationID string) string {
	return string(action) + ":" + conversationID
}
