package domain

// CollaborationStats is a derived, never persisted summary for one
// establishment, recomputed on demand from the room directory and history.
type CollaborationStats struct {
	EstablishmentID   string
	ActiveRooms       int
	TotalParticipants int
	MessagesLast24h   int
}
