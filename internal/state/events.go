package state

// Action identifies a user-facing conversation action. It is carried on
// every published event so subscribers can skip refreshes they do not care
// about.
type Action string

const (
	ActionArchive       Action = "archive"
	ActionUnarchive     Action = "unarchive"
	ActionPin           Action = "pin"
	ActionUnpin         Action = "unpin"
	ActionMute          Action = "mute"
	ActionUnmute        Action = "unmute"
	ActionMarkUnread    Action = "mark_unread"
	ActionClearMessages Action = "clear_messages"
	ActionDelete        Action = "delete"
	ActionUndoDelete    Action = "undo_delete"
)

// Event kinds published by this package.
const (
	KindChanged       = "conversation.changed"
	KindActionFailed  = "conversation.action_failed"
	KindDeletePending = "conversation.delete_pending"
	KindUndoTick      = "conversation.undo_tick"
	KindUndoExpired   = "conversation.undo_expired"
	KindUndoDismissed = "conversation.undo_dismissed"
)

// Change is the payload for KindChanged: some state of the conversation
// changed and derived views should refresh their own slice.
type Change struct {
	ConversationID string
	Action         Action
}

// ActionFailure is the payload for KindActionFailed: the optimistic change
// was rolled back and the user should see a failure notice.
type ActionFailure struct {
	ConversationID string
	Action         Action
	Reason         string
}

// DeletePending is the payload for KindDeletePending: the undo toast should
// appear with a countdown of Seconds.
type DeletePending struct {
	ConversationID string
	Seconds        int
}

// UndoTick is the payload for KindUndoTick: the visible countdown moved.
type UndoTick struct {
	ConversationID string
	Remaining      int
}

// UndoExpired is the payload for KindUndoExpired: the server rejected the
// undo as past its deadline. Distinct from a generic failure.
type UndoExpired struct {
	ConversationID string
}

// UndoDismissed is the payload for KindUndoDismissed: the client countdown
// ran out and the toast should close. Says nothing about server finality.
type UndoDismissed struct {
	ConversationID string
}
