//go:generate go run go.uber.org/mock/mockgen -source=collab_service.go -destination=../mocks/mock_collab_service.go -package=mocks
package services

import (
	"context"
	"log/slog"

	"studyrooms/contract"
	"studyrooms/domain"
	"studyrooms/errors"
	"studyrooms/runtime"
)

// CollabService is the transport-agnostic facade over the collaboration
// core: session lifecycle, room membership, message routing, pending
// drains, history reads, and stats. Any transport (long-lived stream or
// poll-based) drives the same surface.
type CollabService struct {
	registry  *runtime.SessionRegistry
	directory *runtime.RoomDirectory
	router    *runtime.MessageRouter
	stats     *runtime.StatsAggregator
	history   contract.IHistoryStore
	pending   contract.IPendingStore
	log       *slog.Logger
}

func NewCollabService(
	log *slog.Logger,
	registry *runtime.SessionRegistry,
	directory *runtime.RoomDirectory,
	history contract.IHistoryStore,
	pending contract.IPendingStore,
) *CollabService {
	// Closing a session, explicitly or by sweep, drops its memberships.
	registry.OnClose(directory.DropSession)

	return &CollabService{
		registry:  registry,
		directory: directory,
		router:    runtime.NewMessageRouter(log, registry, directory, history, pending),
		stats:     runtime.NewStatsAggregator(directory, history),
		history:   history,
		pending:   pending,
		log:       log,
	}
}

func (s *CollabService) OpenSession(userID, establishmentID string) (string, error) {
	return s.registry.Open(userID, establishmentID)
}

func (s *CollabService) CloseSession(sessionID string) {
	s.registry.Close(sessionID)
}

func (s *CollabService) Touch(sessionID string) error {
	return s.registry.Touch(sessionID)
}

func (s *CollabService) JoinRoom(sessionID string, key domain.RoomKey) (domain.JoinState, error) {
	session, err := s.registry.Get(sessionID)
	if err != nil {
		return domain.JoinState{}, err
	}
	return s.directory.Join(session, key)
}

func (s *CollabService) LeaveRoom(sessionID string, key domain.RoomKey) error {
	if _, err := s.registry.Get(sessionID); err != nil {
		return err
	}
	return s.directory.Leave(sessionID, key)
}

func (s *CollabService) ListMembers(key domain.RoomKey) ([]string, error) {
	return s.directory.Members(key)
}

// RoomEstablishment resolves which establishment an active room is bound
// to, so transports can scope reads the way GetStats already is.
func (s *CollabService) RoomEstablishment(key domain.RoomKey) (string, error) {
	return s.directory.EstablishmentOf(key)
}

func (s *CollabService) SendMessage(ctx context.Context, sessionID string, key domain.RoomKey, msgType domain.MessageType, payload []byte) (domain.Message, error) {
	return s.router.Send(ctx, sessionID, key, msgType, payload)
}

func (s *CollabService) DrainPending(userID string) ([]domain.Message, error) {
	if userID == "" {
		return nil, errors.ErrInvalidIdentity
	}
	return s.pending.Drain(userID)
}

func (s *CollabService) GetHistory(key domain.RoomKey, beforeSequence *uint64, limit int) ([]domain.Message, error) {
	return s.history.Page(key, beforeSequence, limit)
}

func (s *CollabService) GetStats(establishmentID string) (domain.CollaborationStats, error) {
	return s.stats.Summarize(establishmentID)
}

func (s *CollabService) AttachSink(sessionID string, sink contract.TransportSink) error {
	return s.registry.Attach(sessionID, sink)
}

func (s *CollabService) DetachSink(sessionID string) {
	s.registry.Detach(sessionID)
}
