package conversation

import "time"

// Conversation is a client-held view of one conversation. The authoritative
// copy lives in the profile store; this record is fetched, never derived.
type Conversation struct {
	ID string

	ParticipantA string
	ParticipantB string

	// Denormalized counterpart display fields.
	CounterpartName  string
	CounterpartPhoto string

	// Last-message snapshot.
	LastMessageBody   string
	LastMessageSender string
	LastMessageAt     int64 // unix millis

	UnreadCount int

	// The three flags are orthogonal: a conversation may be pinned and
	// archived at the same time.
	IsArchived bool
	ArchivedAt int64
	IsPinned   bool
	PinnedAt   int64
	IsMuted    bool
	MutedAt    int64
	MuteUntil  int64 // 0 = not muted or muted forever
}

// Counterpart returns the participant id that is not userID.
func (c *Conversation) Counterpart(userID string) string {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// MuteDuration is one of the enumerated mute lengths offered by the UI.
type MuteDuration string

const (
	MuteOneHour    MuteDuration = "1h"
	MuteEightHours MuteDuration = "8h"
	MuteOneWeek    MuteDuration = "1w"
	MuteForever    MuteDuration = "forever"
)

// Until returns the unix-milli timestamp the mute lasts to, or 0 for forever.
func (d MuteDuration) Until(now time.Time) int64 {
	switch d {
	case MuteOneHour:
		return now.Add(time.Hour).UnixMilli()
	case MuteEightHours:
		return now.Add(8 * time.Hour).UnixMilli()
	case MuteOneWeek:
		return now.Add(7 * 24 * time.Hour).UnixMilli()
	default:
		return 0
	}
}

// Valid reports whether d is one of the enumerated durations.
func (d MuteDuration) Valid() bool {
	switch d {
	case MuteOneHour, MuteEightHours, MuteOneWeek, MuteForever:
		return true
	}
	return false
}

// Counts holds the aggregate tab counters. They are read from the store,
// never derived from the client cache.
type Counts struct {
	All      int
	Unread   int
	Archived int
	Pinned   int
}
