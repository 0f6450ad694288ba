package conversation

// StateDiff is a typed partial state: nil fields are untouched when the diff
// is applied. It is the rollback-snapshot currency of the optimistic flow.
type StateDiff struct {
	IsArchived *bool
	ArchivedAt *int64
	IsPinned   *bool
	PinnedAt   *int64
	IsMuted    *bool
	MutedAt    *int64
	MuteUntil  *int64

	UnreadCount *int

	LastMessageBody   *string
	LastMessageSender *string
	LastMessageAt     *int64
}

// ApplyTo copies every non-nil field of d onto c.
func (d StateDiff) ApplyTo(c *Conversation) {
	if d.IsArchived != nil {
		c.IsArchived = *d.IsArchived
	}
	if d.ArchivedAt != nil {
		c.ArchivedAt = *d.ArchivedAt
	}
	if d.IsPinned != nil {
		c.IsPinned = *d.IsPinned
	}
	if d.PinnedAt != nil {
		c.PinnedAt = *d.PinnedAt
	}
	if d.IsMuted != nil {
		c.IsMuted = *d.IsMuted
	}
	if d.MutedAt != nil {
		c.MutedAt = *d.MutedAt
	}
	if d.MuteUntil != nil {
		c.MuteUntil = *d.MuteUntil
	}
	if d.UnreadCount != nil {
		c.UnreadCount = *d.UnreadCount
	}
	if d.LastMessageBody != nil {
		c.LastMessageBody = *d.LastMessageBody
	}
	if d.LastMessageSender != nil {
		c.LastMessageSender = *d.LastMessageSender
	}
	if d.LastMessageAt != nil {
		c.LastMessageAt = *d.LastMessageAt
	}
}

// ArchivedDiff captures the archived flag and its timestamp.
func ArchivedDiff(c *Conversation) StateDiff {
	v, at := c.IsArchived, c.ArchivedAt
	return StateDiff{IsArchived: &v, ArchivedAt: &at}
}

// PinnedDiff captures the pinned flag and its timestamp.
func PinnedDiff(c *Conversation) StateDiff {
	v, at := c.IsPinned, c.PinnedAt
	return StateDiff{IsPinned: &v, PinnedAt: &at}
}

// MutedDiff captures the muted flag, its timestamp and the mute deadline.
func MutedDiff(c *Conversation) StateDiff {
	v, at, until := c.IsMuted, c.MutedAt, c.MuteUntil
	return StateDiff{IsMuted: &v, MutedAt: &at, MuteUntil: &until}
}
