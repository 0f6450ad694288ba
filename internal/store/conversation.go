package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tiendoapp/tiendo/internal/conversation"
)

// selectConversation is the shared projection for Get and List. The
// counterpart display fields fall back to the raw user id when no profile
// row exists, and the last-message snapshot is blanked out below the
// per-user cleared watermark.
const selectConversation = `
	SELECT c.id, c.participant_a, c.participant_b,
		COALESCE(NULLIF(u.name, ''), u.id, CASE WHEN c.participant_a = ps.user_id THEN c.participant_b ELSE c.participant_a END),
		COALESCE(u.photo_url, ''),
		CASE WHEN ps.cleared_at IS NOT NULL AND c.last_message_at <= ps.cleared_at THEN '' ELSE c.last_message_body END,
		CASE WHEN ps.cleared_at IS NOT NULL AND c.last_message_at <= ps.cleared_at THEN '' ELSE c.last_message_sender END,
		CASE WHEN ps.cleared_at IS NOT NULL AND c.last_message_at <= ps.cleared_at THEN 0 ELSE c.last_message_at END,
		ps.unread_count,
		ps.is_archived, COALESCE(ps.archived_at, 0),
		ps.is_pinned, COALESCE(ps.pinned_at, 0),
		ps.is_muted, COALESCE(ps.muted_at, 0), COALESCE(ps.mute_until, 0)
	FROM conversations c
	JOIN participant_state ps ON ps.conversation_id = c.id
	LEFT JOIN users u ON u.id = CASE WHEN c.participant_a = ps.user_id THEN c.participant_b ELSE c.participant_a END`

func scanConversation(row interface{ Scan(...any) error }) (*conversation.Conversation, error) {
	var c conversation.Conversation
	err := row.Scan(
		&c.ID, &c.ParticipantA, &c.ParticipantB,
		&c.CounterpartName, &c.CounterpartPhoto,
		&c.LastMessageBody, &c.LastMessageSender, &c.LastMessageAt,
		&c.UnreadCount,
		&c.IsArchived, &c.ArchivedAt,
		&c.IsPinned, &c.PinnedAt,
		&c.IsMuted, &c.MutedAt, &c.MuteUntil,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Get returns the conversation as seen by userID, or ErrNotFound when the
// user is not a live participant (including after a soft delete).
func (db *DB) Get(ctx context.Context, userID, conversationID string) (*conversation.Conversation, error) {
	row := db.QueryRowContext(ctx, selectConversation+`
		WHERE c.id = ? AND ps.user_id = ? AND ps.deleted_at IS NULL`,
		conversationID, userID)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, conversation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

// List returns userID's visible conversations sorted by last message
// timestamp descending. Soft-deleted conversations are excluded.
func (db *DB) List(ctx context.Context, userID string) ([]conversation.Conversation, error) {
	rows, err := db.QueryContext(ctx, selectConversation+`
		WHERE ps.user_id = ? AND ps.deleted_at IS NULL
		ORDER BY c.last_message_at DESC, c.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []conversation.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Archive sets the archived flag on userID's participant record.
func (db *DB) Archive(ctx context.Context, userID, conversationID string) error {
	now := time.Now().UnixMilli()
	return db.setState(ctx, userID, conversationID,
		`is_archived = 1, archived_at = ?`, now)
}

// Unarchive clears the archived flag.
func (db *DB) Unarchive(ctx context.Context, userID, conversationID string) error {
	return db.setState(ctx, userID, conversationID,
		`is_archived = 0, archived_at = NULL`)
}

// Pin sets the pinned flag on userID's participant record.
func (db *DB) Pin(ctx context.Context, userID, conversationID string) error {
	now := time.Now().UnixMilli()
	return db.setState(ctx, userID, conversationID,
		`is_pinned = 1, pinned_at = ?`, now)
}

// Unpin clears the pinned flag.
func (db *DB) Unpin(ctx context.Context, userID, conversationID string) error {
	return db.setState(ctx, userID, conversationID,
		`is_pinned = 0, pinned_at = NULL`)
}

// Mute sets the muted flag for the given duration.
func (db *DB) Mute(ctx context.Context, userID, conversationID string, d conversation.MuteDuration) error {
	if !d.Valid() {
		return fmt.Errorf("invalid mute duration %q", d)
	}
	now := time.Now()
	return db.setState(ctx, userID, conversationID,
		`is_muted = 1, muted_at = ?, mute_until = ?`,
		now.UnixMilli(), d.Until(now))
}

// Unmute clears the muted flag.
func (db *DB) Unmute(ctx context.Context, userID, conversationID string) error {
	return db.setState(ctx, userID, conversationID,
		`is_muted = 0, muted_at = NULL, mute_until = NULL`)
}

// IsMuted reports whether the conversation is currently muted for userID.
// A non-zero mute_until in the past counts as unmuted.
func (db *DB) IsMuted(ctx context.Context, userID, conversationID string) (bool, error) {
	var muted bool
	var until sql.NullInt64
	err := db.QueryRowContext(ctx, `
		SELECT is_muted, mute_until FROM participant_state
		WHERE conversation_id = ? AND user_id = ?`,
		conversationID, userID).Scan(&muted, &until)
	if err == sql.ErrNoRows {
		return false, conversation.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("is muted: %w", err)
	}
	if muted && until.Valid && until.Int64 > 0 && until.Int64 <= time.Now().UnixMilli() {
		return false, nil
	}
	return muted, nil
}

// MarkUnread nulls the caller's read receipt and floors the unread count at
// one, so the conversation surfaces in the unread tab again.
func (db *DB) MarkUnread(ctx context.Context, userID, conversationID string) error {
	return db.setState(ctx, userID, conversationID,
		`last_read_at = NULL, unread_count = MAX(unread_count, 1)`)
}

// ClearMessages moves the caller's cleared watermark to now, hiding all
// history up to this point. Irreversible; the conversation row persists.
func (db *DB) ClearMessages(ctx context.Context, userID, conversationID string) error {
	now := time.Now().UnixMilli()
	return db.setState(ctx, userID, conversationID,
		`cleared_at = ?, unread_count = 0`, now)
}

// Delete soft-deletes the conversation for userID only; the other
// participant's view is untouched.
func (db *DB) Delete(ctx context.Context, userID, conversationID string) error {
	now := time.Now().UnixMilli()
	res, err := db.ExecContext(ctx, `
		UPDATE participant_state SET deleted_at = ?
		WHERE conversation_id = ? AND user_id = ? AND deleted_at IS NULL`,
		now, conversationID, userID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return requireRow(res)
}

// UndoDelete reverses a soft delete if it is still inside the undo window.
// Past the deadline it fails with conversation.ErrUndoExpired and the
// record stays deleted.
func (db *DB) UndoDelete(ctx context.Context, userID, conversationID string) error {
	var deletedAt sql.NullInt64
	err := db.QueryRowContext(ctx, `
		SELECT deleted_at FROM participant_state
		WHERE conversation_id = ? AND user_id = ?`,
		conversationID, userID).Scan(&deletedAt)
	if err == sql.ErrNoRows {
		return conversation.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("undo delete: %w", err)
	}
	if !deletedAt.Valid {
		// Never deleted, nothing to undo.
		return nil
	}
	deadline := time.UnixMilli(deletedAt.Int64).Add(db.undoWindow)
	if time.Now().After(deadline) {
		return conversation.ErrUndoExpired
	}

	_, err = db.ExecContext(ctx, `
		UPDATE participant_state SET deleted_at = NULL
		WHERE conversation_id = ? AND user_id = ?`,
		conversationID, userID)
	if err != nil {
		return fmt.Errorf("undo delete: %w", err)
	}
	return nil
}

// setState applies a participant_state column update for a live (non
// soft-deleted) participant row.
func (db *DB) setState(ctx context.Context, userID, conversationID, set string, args ...any) error {
	args = append(args, conversationID, userID)
	res, err := db.ExecContext(ctx, `
		UPDATE participant_state SET `+set+`
		WHERE conversation_id = ? AND user_id = ? AND deleted_at IS NULL`, args...)
	if err != nil {
		return fmt.Errorf("update conversation state: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return conversation.ErrNotFound
	}
	return nil
}

// UpsertUser inserts or updates a user profile row.
func (db *DB) UpsertUser(ctx context.Context, id, name, photoURL string) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, name, photo_url, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			photo_url = excluded.photo_url,
			updated_at = excluded.updated_at`,
		id, name, photoURL, now)
	return err
}

// CreateConversation creates a conversation between two users along with
// both participant-state rows, returning the new id.
func (db *DB) CreateConversation(ctx context.Context, participantA, participantB string) (string, error) {
	id := uuid.New().String()
	now := time.Now().UnixMilli()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, participant_a, participant_b, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, participantA, participantB, now, now); err != nil {
		return "", fmt.Errorf("insert conversation: %w", err)
	}
	for _, user := range []string{participantA, participantB} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO participant_state (conversation_id, user_id)
			VALUES (?, ?)`, id, user); err != nil {
			return "", fmt.Errorf("insert participant state: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// AppendMessage stores a message, refreshes the denormalized last-message
// snapshot and bumps the recipient's unread count.
func (db *DB) AppendMessage(ctx context.Context, conversationID, senderID, body string) error {
	now := time.Now().UnixMilli()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, body, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), conversationID, senderID, body, now); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET
			last_message_body = ?, last_message_sender = ?, last_message_at = ?, updated_at = ?
		WHERE id = ?`,
		body, senderID, now, now, conversationID); err != nil {
		return fmt.Errorf("update snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE participant_state SET unread_count = unread_count + 1
		WHERE conversation_id = ? AND user_id != ?`,
		conversationID, senderID); err != nil {
		return fmt.Errorf("bump unread: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE participant_state SET last_read_at = ?
		WHERE conversation_id = ? AND user_id = ?`,
		now, conversationID, senderID); err != nil {
		return fmt.Errorf("set sender read receipt: %w", err)
	}
	return tx.Commit()
}
