package session

import (
	"context"
	"time"

	"secrets_app/internal/logger"
)

// Purger removes expired records from a backend that does not expire them
// on its own.
type Purger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// RunReaper purges expired sessions every interval until ctx is cancelled.
func RunReaper(ctx context.Context, p Purger, interval time.Duration, log *logger.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.DeleteExpired(ctx)
			if log == nil {
				continue
			}
			if err != nil {
				log.Errorw("session_reap_failed", "err", err)
				continue
			}
			if n > 0 {
				log.Debugw("session_reaped", "count", n)
			}
		}
	}
}
