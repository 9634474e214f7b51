package runtime

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"studyrooms/errors"
)

func TestSessionRegistry_Open_And_Get(t *testing.T) {
	req := require.New(t)
	registry := NewSessionRegistry(slog.Default(), time.Minute)

	// When a participant opens a session
	sessionID, err := registry.Open("user-1", "est-1")
	req.NoError(err)
	req.NotEmpty(sessionID)

	// Then the session resolves to its identity
	session, err := registry.Get(sessionID)
	req.NoError(err)
	req.Equal("user-1", session.UserID)
	req.Equal("est-1", session.EstablishmentID)
	req.False(session.CreatedAt.IsZero())
}

func TestSessionRegistry_Open_Rejects_Empty_Identity(t *testing.T) {
	req := require.New(t)
	registry := NewSessionRegistry(slog.Default(), time.Minute)

	_, err := registry.Open("", "est-1")
	req.ErrorIs(err, errors.ErrInvalidIdentity)

	_, err = registry.Open("user-1", "")
	req.ErrorIs(err, errors.ErrInvalidIdentity)
}

func TestSessionRegistry_Touch_Unknown_Session(t *testing.T) {
	req := require.New(t)
	registry := NewSessionRegistry(slog.Default(), time.Minute)

	err := registry.Touch("nope")
	req.ErrorIs(err, errors.ErrUnknownSession)
}

func TestSessionRegistry_Close_Is_Idempotent_And_Cascades_Once(t *testing.T) {
	req := require.New(t)
	registry := NewSessionRegistry(slog.Default(), time.Minute)

	cascaded := 0
	registry.OnClose(func(sessionID string) { cascaded++ })

	sessionID, err := registry.Open("user-1", "est-1")
	req.NoError(err)

	// When the session is closed twice
	registry.Close(sessionID)
	registry.Close(sessionID)

	// Then the cascade hook fired exactly once
	req.Equal(1, cascaded)
	_, err = registry.Get(sessionID)
	req.ErrorIs(err, errors.ErrUnknownSession)
}

func TestSessionRegistry_Expired_Session_Is_Closed_Lazily(t *testing.T) {
	req := require.New(t)
	registry := NewSessionRegistry(slog.Default(), 10*time.Millisecond)

	var dropped []string
	registry.OnClose(func(sessionID string) { dropped = append(dropped, sessionID) })

	sessionID, err := registry.Open("user-1", "est-1")
	req.NoError(err)

	// Given the heartbeat window elapsed
	time.Sleep(30 * time.Millisecond)

	// When the session is accessed
	_, err = registry.Get(sessionID)

	// Then it is treated as dead and the cascade ran
	req.ErrorIs(err, errors.ErrUnknownSession)
	req.Equal([]string{sessionID}, dropped)
}

func TestSessionRegistry_Touch_Keeps_Session_Alive(t *testing.T) {
	req := require.New(t)
	registry := NewSessionRegistry(slog.Default(), 50*time.Millisecond)

	sessionID, err := registry.Open("user-1", "est-1")
	req.NoError(err)

	// Heartbeats inside the window keep the session alive
	for i := 0; i < 3; i++ {
		time.Sleep(20 * time.Millisecond)
		req.NoError(registry.Touch(sessionID))
	}

	_, err = registry.Get(sessionID)
	req.NoError(err)
}

func TestSessionRegistry_Sweep_Closes_Only_Expired(t *testing.T) {
	req := require.New(t)
	registry := NewSessionRegistry(slog.Default(), 20*time.Millisecond)

	stale, err := registry.Open("user-1", "est-1")
	req.NoError(err)

	time.Sleep(40 * time.Millisecond)
	fresh, err := registry.Open("user-2", "est-1")
	req.NoError(err)

	// When sweeping
	closed := registry.Sweep()

	// Then only the stale session went away
	req.Equal(1, closed)
	_, err = registry.Get(stale)
	req.ErrorIs(err, errors.ErrUnknownSession)
	_, err = registry.Get(fresh)
	req.NoError(err)
}

func TestSessionRegistry_Attach_And_LiveSink(t *testing.T) {
	req := require.New(t)
	registry := NewSessionRegistry(slog.Default(), time.Minute)

	sessionID, err := registry.Open("user-1", "est-1")
	req.NoError(err)

	// Without a transport, the session is not live
	req.Nil(registry.LiveSink(sessionID))

	sink := &recordingSink{}
	req.NoError(registry.Attach(sessionID, sink))
	req.Equal(sink, registry.LiveSink(sessionID))

	// Detaching makes it eligible for pending queuing again
	registry.Detach(sessionID)
	req.Nil(registry.LiveSink(sessionID))

	// Attaching to an unknown session is rejected
	req.ErrorIs(registry.Attach("nope", sink), errors.ErrUnknownSession)
}
