package runtime

import (
	"fmt"
	"time"

	"studyrooms/contract"
	"studyrooms/domain"
	"studyrooms/errors"
)

// statsWindow is the trailing period covered by the message count.
const statsWindow = 24 * time.Hour

// StatsAggregator computes on-demand collaboration summaries for one
// establishment. It is read-only and only as fresh as the underlying
// stores at the moment of the call.
type StatsAggregator struct {
	directory *RoomDirectory
	history   contract.IHistoryStore
}

func NewStatsAggregator(directory *RoomDirectory, history contract.IHistoryStore) *StatsAggregator {
	return &StatsAggregator{directory: directory, history: history}
}

func (a *StatsAggregator) Summarize(establishmentID string) (domain.CollaborationStats, error) {
	if establishmentID == "" {
		return domain.CollaborationStats{}, errors.ErrInvalidIdentity
	}

	stats := domain.CollaborationStats{EstablishmentID: establishmentID}
	for _, summary := range a.directory.Summaries(establishmentID) {
		stats.ActiveRooms++
		stats.TotalParticipants += summary.MemberCount
	}

	count, err := a.history.CountSince(establishmentID, time.Now().UTC().Add(-statsWindow))
	if err != nil {
		return domain.CollaborationStats{}, fmt.Errorf("%w: counting recent messages: %v", errors.ErrPersistence, err)
	}
	stats.MessagesLast24h = count

	return stats, nil
}
