package runtime

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"studyrooms/domain"
	"studyrooms/errors"
)

func TestStatsAggregator_Summarize(t *testing.T) {
	req := require.New(t)
	directory := NewRoomDirectory(slog.Default(), nil)
	history := &memoryHistory{}
	aggregator := NewStatsAggregator(directory, history)

	alice := testSession("alice", "est-1")
	bob := testSession("bob", "est-1")
	eve := testSession("eve", "est-2")

	_, err := directory.Join(alice, studyGroup)
	req.NoError(err)
	_, err = directory.Join(bob, studyGroup)
	req.NoError(err)
	_, err = directory.Join(alice, domain.RoomKey{Type: "whiteboard", ID: "3"})
	req.NoError(err)
	_, err = directory.Join(eve, domain.RoomKey{Type: "study-group", ID: "9"})
	req.NoError(err)

	req.NoError(history.Append("est-1", domain.Message{Sequence: 1}))
	req.NoError(history.Append("est-1", domain.Message{Sequence: 2}))

	// When summarizing est-1
	stats, err := aggregator.Summarize("est-1")

	// Then only est-1 rooms and messages are counted
	req.NoError(err)
	req.Equal("est-1", stats.EstablishmentID)
	req.Equal(2, stats.ActiveRooms)
	req.Equal(3, stats.TotalParticipants)
	req.Equal(2, stats.MessagesLast24h)
}

func TestStatsAggregator_Rejects_Empty_Establishment(t *testing.T) {
	req := require.New(t)
	aggregator := NewStatsAggregator(NewRoomDirectory(slog.Default(), nil), &memoryHistory{})

	_, err := aggregator.Summarize("")
	req.ErrorIs(err, errors.ErrInvalidIdentity)
}
