package conversation

import "errors"

var (
	// ErrUnauthenticated is returned when an action is attempted with no
	// signed-in user. Checked before any optimistic mutation is applied.
	ErrUnauthenticated = errors.New("no authenticated user")

	// ErrNotFound is returned when a conversation id resolves to nothing.
	ErrNotFound = errors.New("conversation not found")

	// ErrUndoExpired is returned by the undo-delete operation once the
	// server-enforced window has elapsed.
	ErrUndoExpired = errors.New("undo window expired")
)
