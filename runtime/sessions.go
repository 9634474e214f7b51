//go:generate go run go.uber.org/mock/mockgen -source=sessions.go -destination=../mocks/mock_sessions.go -package=mocks
package runtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"studyrooms/contract"
	"studyrooms/domain"
	"studyrooms/errors"
)

// SessionRegistry maps opaque session identifiers to authenticated
// identities and their liveness timestamps. It holds no business logic:
// rooms, routing, and persistence live elsewhere.
//
// A session is live when it exists, has not outlived the heartbeat
// timeout, and a transport sink is currently attached to it.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	sinks    map[string]contract.TransportSink
	timeout  time.Duration
	onClose  func(sessionID string)
	log      *slog.Logger
}

func NewSessionRegistry(log *slog.Logger, timeout time.Duration) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*domain.Session),
		sinks:    make(map[string]contract.TransportSink),
		timeout:  timeout,
		log:      log,
	}
}

// OnClose registers the cascade hook invoked after a session is removed,
// whether by an explicit Close or by the liveness sweep. The room
// directory uses it to drop every membership the session held.
func (r *SessionRegistry) OnClose(fn func(sessionID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onClose = fn
}

// Open creates a fresh session bound to one establishment for its lifetime.
func (r *SessionRegistry) Open(userID, establishmentID string) (string, error) {
	if userID == "" || establishmentID == "" {
		return "", errors.ErrInvalidIdentity
	}
	now := time.Now().UTC()
	session := &domain.Session{
		ID:              uuid.NewString(),
		UserID:          userID,
		EstablishmentID: establishmentID,
		CreatedAt:       now,
		LastSeenAt:      now,
	}

	r.mu.Lock()
	r.sessions[session.ID] = session
	r.mu.Unlock()

	r.log.Debug("Session opened", "session_id", session.ID, "user_id", userID, "establishment_id", establishmentID)
	return session.ID, nil
}

// Touch refreshes the session heartbeat.
func (r *SessionRegistry) Touch(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return errors.ErrUnknownSession
	}
	session.LastSeenAt = time.Now().UTC()
	return nil
}

// Get resolves a session, lazily closing it when it already expired.
// Callers therefore never observe a dead session as valid.
func (r *SessionRegistry) Get(sessionID string) (domain.Session, error) {
	r.mu.RLock()
	session, ok := r.sessions[sessionID]
	if !ok {
		r.mu.RUnlock()
		return domain.Session{}, errors.ErrUnknownSession
	}
	snapshot := *session
	r.mu.RUnlock()

	if snapshot.Expired(time.Now().UTC(), r.timeout) {
		r.Close(sessionID)
		return domain.Session{}, errors.ErrUnknownSession
	}
	return snapshot, nil
}

// Close removes the session and triggers the cascade-leave hook.
// Closing an already-closed session is a no-op.
func (r *SessionRegistry) Close(sessionID string) {
	r.mu.Lock()
	_, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
		delete(r.sinks, sessionID)
	}
	onClose := r.onClose
	r.mu.Unlock()

	if !ok {
		return
	}
	r.log.Debug("Session closed", "session_id", sessionID)
	if onClose != nil {
		onClose(sessionID)
	}
}

// Attach binds a transport sink to the session, making it eligible for
// live delivery. The previous sink, if any, is replaced.
func (r *SessionRegistry) Attach(sessionID string, sink contract.TransportSink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; !ok {
		return errors.ErrUnknownSession
	}
	r.sinks[sessionID] = sink
	return nil
}

// Detach removes the transport sink; the session itself stays open until
// closed or swept, and its copies degrade to the pending queue meanwhile.
func (r *SessionRegistry) Detach(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, sessionID)
}

// LiveSink returns the sink for a session that is currently live,
// or nil when the session is absent, expired, or has no transport.
func (r *SessionRegistry) LiveSink(sessionID string) contract.TransportSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sessionID]
	if !ok || session.Expired(time.Now().UTC(), r.timeout) {
		return nil
	}
	return r.sinks[sessionID]
}

// Sweep closes every session whose heartbeat is older than the timeout.
// It returns the number of sessions closed.
func (r *SessionRegistry) Sweep() int {
	now := time.Now().UTC()

	r.mu.RLock()
	var expired []string
	for id, session := range r.sessions {
		if session.Expired(now, r.timeout) {
			expired = append(expired, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range expired {
		r.log.Info("Sweeping expired session", "session_id", id)
		r.Close(id)
	}
	return len(expired)
}
