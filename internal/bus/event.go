package bus

import "time"

// Event is a domain event published on the bus. Payload is a typed struct
// owned by the publishing package; subscribers switch on Kind and assert
// the payload type.
type Event struct {
	ID        string
	Kind      string
	Timestamp time.Time
	Payload   any
}
