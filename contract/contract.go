//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"studyrooms/domain"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// TransportSink is the capability to push a message to one live session.
// Whether a session is live is the transport's call, not the core's:
// a sink that cannot accept the message returns an error and the router
// degrades that copy to the pending queue.
type TransportSink interface {
	Deliver(ctx context.Context, msg domain.Message) error
}

// IHistoryStore is the durable, append-only, per-room message log.
type IHistoryStore interface {
	Append(establishmentID string, msg domain.Message) error
	Page(key domain.RoomKey, beforeSequence *uint64, limit int) ([]domain.Message, error)
	LastSequence(key domain.RoomKey) (uint64, error)
	CountSince(establishmentID string, since time.Time) (int, error)
}

// IPendingStore is the durable per-recipient queue of undelivered messages.
type IPendingStore interface {
	Enqueue(recipientUserID string, msg domain.Message) error
	Drain(recipientUserID string) ([]domain.Message, error)
}

// ICollabService is the surface the surrounding application drives,
// regardless of the transport in front of it.
type ICollabService interface {
	OpenSession(userID, establishmentID string) (string, error)
	CloseSession(sessionID string)
	Touch(sessionID string) error
	JoinRoom(sessionID string, key domain.RoomKey) (domain.JoinState, error)
	LeaveRoom(sessionID string, key domain.RoomKey) error
	ListMembers(key domain.RoomKey) ([]string, error)
	RoomEstablishment(key domain.RoomKey) (string, error)
	SendMessage(ctx context.Context, sessionID string, key domain.RoomKey, msgType domain.MessageType, payload []byte) (domain.Message, error)
	DrainPending(userID string) ([]domain.Message, error)
	GetHistory(key domain.RoomKey, beforeSequence *uint64, limit int) ([]domain.Message, error)
	GetStats(establishmentID string) (domain.CollaborationStats, error)
	AttachSink(sessionID string, sink TransportSink) error
	DetachSink(sessionID string)
}
