package services

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"studyrooms/domain"
	"studyrooms/errors"
	"studyrooms/repositories"
	"studyrooms/runtime"
)

var studyGroup = domain.RoomKey{Type: "study-group", ID: "42"}

type channelSink struct {
	events chan domain.Message
}

func newChannelSink() *channelSink {
	return &channelSink{events: make(chan domain.Message, 16)}
}

func (s *channelSink) Deliver(_ context.Context, msg domain.Message) error {
	select {
	case s.events <- msg:
		return nil
	default:
		return context.DeadlineExceeded
	}
}

func newService(t *testing.T) *CollabService {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	history := repositories.NewHistoryRepository(db, log, 100)
	pending := repositories.NewPendingRepository(db, log)
	registry := runtime.NewSessionRegistry(log, time.Minute)
	directory := runtime.NewRoomDirectory(log, history.LastSequence)
	return NewCollabService(log, registry, directory, history, pending)
}

// The reference flow: two participants, one live delivery, one
// disconnect, one pending drain, and the stats that follow.
func TestCollabService_Study_Group_Scenario(t *testing.T) {
	req := require.New(t)
	service := newService(t)
	ctx := context.Background()

	// Given sessions A and B in the same establishment, both in the room
	sessionA, err := service.OpenSession("user-a", "est-1")
	req.NoError(err)
	sessionB, err := service.OpenSession("user-b", "est-1")
	req.NoError(err)

	_, err = service.JoinRoom(sessionA, studyGroup)
	req.NoError(err)
	state, err := service.JoinRoom(sessionB, studyGroup)
	req.NoError(err)
	req.Equal(2, state.MemberCount)

	// And B is live
	sinkB := newChannelSink()
	req.NoError(service.AttachSink(sessionB, sinkB))

	// When A sends m1
	m1, err := service.SendMessage(ctx, sessionA, studyGroup, domain.MessageChat, []byte(`{"text":"m1"}`))
	req.NoError(err)
	req.Equal(uint64(1), m1.Sequence)

	// Then B receives m1 live
	select {
	case got := <-sinkB.events:
		req.Equal(m1.ID, got.ID)
	default:
		req.Fail("B should have received m1 live")
	}

	// And history holds exactly one entry with sequence 1
	page, err := service.GetHistory(studyGroup, nil, 10)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal(uint64(1), page[0].Sequence)

	// When B closes its session and A sends m2
	service.CloseSession(sessionB)
	m2, err := service.SendMessage(ctx, sessionA, studyGroup, domain.MessageChat, []byte(`{"text":"m2"}`))
	req.NoError(err)
	req.Equal(uint64(2), m2.Sequence)

	// Then B's pending queue holds exactly m2, exactly once
	queued, err := service.DrainPending("user-b")
	req.NoError(err)
	req.Len(queued, 1)
	req.Equal(m2.ID, queued[0].ID)

	again, err := service.DrainPending("user-b")
	req.NoError(err)
	req.Empty(again)

	// And the establishment stats reflect the room's state
	stats, err := service.GetStats("est-1")
	req.NoError(err)
	req.Equal(1, stats.ActiveRooms)
	req.Equal(1, stats.TotalParticipants)
	req.Equal(2, stats.MessagesLast24h)
}

func TestCollabService_Join_Is_Tenant_Isolated(t *testing.T) {
	req := require.New(t)
	service := newService(t)

	sessionA, err := service.OpenSession("user-a", "est-1")
	req.NoError(err)
	_, err = service.JoinRoom(sessionA, studyGroup)
	req.NoError(err)

	// A session from another establishment cannot join the same room
	intruder, err := service.OpenSession("user-x", "est-2")
	req.NoError(err)
	_, err = service.JoinRoom(intruder, studyGroup)
	req.ErrorIs(err, errors.ErrTenantMismatch)

	// But joining a matching room succeeds and is idempotent
	state, err := service.JoinRoom(sessionA, studyGroup)
	req.NoError(err)
	req.Equal(1, state.MemberCount)

	// And the room reports the establishment it is bound to
	establishmentID, err := service.RoomEstablishment(studyGroup)
	req.NoError(err)
	req.Equal("est-1", establishmentID)
}

func TestCollabService_Close_Cascades_Membership(t *testing.T) {
	req := require.New(t)
	service := newService(t)

	sessionA, err := service.OpenSession("user-a", "est-1")
	req.NoError(err)
	sessionB, err := service.OpenSession("user-b", "est-1")
	req.NoError(err)
	_, err = service.JoinRoom(sessionA, studyGroup)
	req.NoError(err)
	_, err = service.JoinRoom(sessionB, studyGroup)
	req.NoError(err)

	// When B's session closes
	service.CloseSession(sessionB)

	// Then B is gone from the member list
	members, err := service.ListMembers(studyGroup)
	req.NoError(err)
	req.Equal([]string{sessionA}, members)
}

func TestCollabService_Sequence_Survives_Room_Recreation(t *testing.T) {
	req := require.New(t)
	service := newService(t)
	ctx := context.Background()

	sessionA, err := service.OpenSession("user-a", "est-1")
	req.NoError(err)
	_, err = service.JoinRoom(sessionA, studyGroup)
	req.NoError(err)

	_, err = service.SendMessage(ctx, sessionA, studyGroup, domain.MessageChat, nil)
	req.NoError(err)
	_, err = service.SendMessage(ctx, sessionA, studyGroup, domain.MessageChat, nil)
	req.NoError(err)

	// When the room empties out and is later re-joined
	req.NoError(service.LeaveRoom(sessionA, studyGroup))
	state, err := service.JoinRoom(sessionA, studyGroup)
	req.NoError(err)

	// Then the counter resumes from history instead of resetting
	req.Equal(uint64(2), state.Sequence)
	msg, err := service.SendMessage(ctx, sessionA, studyGroup, domain.MessageChat, nil)
	req.NoError(err)
	req.Equal(uint64(3), msg.Sequence)
}

func TestCollabService_DrainPending_Rejects_Empty_User(t *testing.T) {
	req := require.New(t)
	service := newService(t)

	_, err := service.DrainPending("")
	req.ErrorIs(err, errors.ErrInvalidIdentity)
}

func TestCollabService_Concurrent_Sends_Across_Rooms(t *testing.T) {
	req := require.New(t)
	service := newService(t)
	ctx := context.Background()

	roomA := domain.RoomKey{Type: "study-group", ID: "a"}
	roomB := domain.RoomKey{Type: "study-group", ID: "b"}

	sessionA, err := service.OpenSession("user-a", "est-1")
	req.NoError(err)
	sessionB, err := service.OpenSession("user-b", "est-1")
	req.NoError(err)
	_, err = service.JoinRoom(sessionA, roomA)
	req.NoError(err)
	_, err = service.JoinRoom(sessionB, roomB)
	req.NoError(err)

	const perRoom = 20
	var wg sync.WaitGroup
	for _, target := range []struct {
		sessionID string
		key       domain.RoomKey
	}{{sessionA, roomA}, {sessionB, roomB}} {
		wg.Add(1)
		go func(sessionID string, key domain.RoomKey) {
			defer wg.Done()
			for i := 0; i < perRoom; i++ {
				_, err := service.SendMessage(ctx, sessionID, key, domain.MessageChat, nil)
				require.NoError(t, err)
			}
		}(target.sessionID, target.key)
	}
	wg.Wait()

	// Each room's log is independently gapless
	for _, key := range []domain.RoomKey{roomA, roomB} {
		page, err := service.GetHistory(key, nil, perRoom)
		req.NoError(err)
		req.Len(page, perRoom)
		for i, msg := range page {
			req.Equal(uint64(perRoom-i), msg.Sequence)
		}
	}
}
