package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"studyrooms/runtime"
)

func TestSweeperWorker_Closes_Stale_Sessions(t *testing.T) {
	req := require.New(t)
	registry := runtime.NewSessionRegistry(slog.Default(), 20*time.Millisecond)

	// The cascade hook observes the close without touching the session,
	// so the sweep itself, not a lazy access, must have fired.
	closed := make(chan string, 1)
	registry.OnClose(func(sessionID string) { closed <- sessionID })

	sessionID, err := registry.Open("user-1", "est-1")
	req.NoError(err)

	sweeper := NewSweeperWorker(slog.Default(), registry, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go func() { _ = sweeper.Run(ctx) }()

	select {
	case swept := <-closed:
		req.Equal(sessionID, swept)
	case <-time.After(400 * time.Millisecond):
		req.Fail("sweeper should have closed the stale session")
	}
}
