// internal/sweep/sweep.go
package sweep

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dungeonbuilder/backend/internal/lobby"
)

// Sweeper periodically cancels lobbies that have sat in the waiting
// state past MaxAge without any activity.
type Sweeper struct {
	Manager  *lobby.Manager
	Interval time.Duration
	MaxAge   time.Duration
	Logger   *logrus.Logger
}

// New returns a Sweeper with sane defaults.
func New(m *lobby.Manager, logger *logrus.Logger) *Sweeper {
	return &Sweeper{
		Manager:  m,
		Interval: 5 * time.Minute,
		MaxAge:   time.Hour,
		Logger:   logger,
	}
}

// Run blocks, sweeping on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-s.MaxAge)
			n, err := s.Manager.CancelAbandoned(ctx, cutoff)
			if err != nil {
				s.Logger.Warnf("sweep: cancel abandoned lobbies: %v", err)
				continue
			}
			if n > 0 {
				s.Logger.Infof("sweep: cancelled %d abandoned lobbies", n)
			}
		}
	}
}
