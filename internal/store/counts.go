package store

import (
	"context"
	"fmt"

	"github.com/tiendoapp/tiendo/internal/conversation"
)

// Counts returns the aggregate tab counters for userID, computed from the
// store directly rather than any client-side cache. The "all" tab excludes
// archived conversations regardless of pin state.
func (db *DB) Counts(ctx context.Context, userID string) (conversation.Counts, error) {
	var c conversation.Counts
	err := db.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN is_archived = 0 THEN 1 END),
			COUNT(CASE WHEN unread_count > 0 THEN 1 END),
			COUNT(CASE WHEN is_archived = 1 THEN 1 END),
			COUNT(CASE WHEN is_pinned = 1 THEN 1 END)
		FROM participant_state
		WHERE user_id = ? AND deleted_at IS NULL`, userID).
		Scan(&c.All, &c.Unread, &c.Archived, &c.Pinned)
	if err != nil {
		return conversation.Counts{}, fmt.Errorf("conversation counts: %w", err)
	}
	return c, nil
}
