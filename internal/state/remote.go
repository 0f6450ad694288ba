package state

import (
	"context"

	"github.com/tiendoapp/tiendo/internal/conversation"
)

// Remote is the per-user conversation operation contract the service and
// undo controller call. The profile store implements it against the local
// authoritative copy; any transport satisfying these semantics can stand in.
type Remote interface {
	Archive(ctx context.Context, userID, conversationID string) error
	Unarchive(ctx context.Context, userID, conversationID string) error
	Pin(ctx context.Context, userID, conversationID string) error
	Unpin(ctx context.Context, userID, conversationID string) error
	Mute(ctx context.Context, userID, conversationID string, d conversation.MuteDuration) error
	Unmute(ctx context.Context, userID, conversationID string) error
	IsMuted(ctx context.Context, userID, conversationID string) (bool, error)
	MarkUnread(ctx context.Context, userID, conversationID string) error
	ClearMessages(ctx context.Context, userID, conversationID string) error
	Delete(ctx context.Context, userID, conversationID string) error
	UndoDelete(ctx context.Context, userID, conversationID string) error
	Get(ctx context.Context, userID, conversationID string) (*conversation.Conversation, error)
	List(ctx context.Context, userID string) ([]conversation.Conversation, error)
	Counts(ctx context.Context, userID string) (conversation.Counts, error)
}

// Auth supplies the authenticated actor. ok is false when no user is
// signed in; every action fails fast in that case.
type Auth interface {
	UserID() (id string, ok bool)
}
