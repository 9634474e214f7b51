package domain

// RoomKey identifies a collaboration room. Type and ID are opaque to the
// core; the surrounding application decides what a "study-group" is.
type RoomKey struct {
	Type string
	ID   string
}

func (k RoomKey) String() string {
	return k.Type + "/" + k.ID
}

// JoinState is returned to a joining session: the room's current sequence
// watermark and how many sessions are currently members.
type JoinState struct {
	Sequence    uint64
	MemberCount int
}

// RoomSummary is a read-only view used by the stats aggregator.
type RoomSummary struct {
	Key             RoomKey
	EstablishmentID string
	MemberCount     int
}
