package workers

import (
	"context"
	"log/slog"
	"time"

	"studyrooms/runtime"
)

// SweeperWorker periodically closes sessions whose heartbeat went stale,
// cascading their room leaves. Sessions are also checked lazily on access;
// the sweep catches participants that dropped without a formal close and
// never come back.
type SweeperWorker struct {
	registry *runtime.SessionRegistry
	interval time.Duration
	log      *slog.Logger
}

func NewSweeperWorker(log *slog.Logger, registry *runtime.SessionRegistry, interval time.Duration) *SweeperWorker {
	return &SweeperWorker{registry: registry, interval: interval, log: log}
}

func (w *SweeperWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping session sweep")
			return nil
		case <-ticker.C:
			if closed := w.registry.Sweep(); closed > 0 {
				w.log.Info("Session sweep completed", "closed", closed)
			}
		}
	}
}
