package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType is opaque to the core. The constants below are the types the
// surrounding application uses today; anything else is relayed untouched.
type MessageType string

const (
	MessageChat     MessageType = "chat"
	MessagePresence MessageType = "presence"
	MessageCursor   MessageType = "cursor"
	MessageCustom   MessageType = "custom"
)

// Message is an immutable collaboration event. Sequence establishes the
// total order of messages within its room.
type Message struct {
	ID              uuid.UUID
	Room            RoomKey
	Sequence        uint64
	SenderSessionID string
	Type            MessageType
	Payload         json.RawMessage
	CreatedAt       time.Time
}
