package appointment

import (
	"context"
	"time"

	"github.com/carelink/care-coordination/pkg/logger"
)

// Sweeper periodically runs the missed-appointment sweep
type Sweeper struct {
	service  *Service
	interval time.Duration
	logger   *logger.Logger
}

// NewSweeper creates a new background sweeper
func NewSweeper(service *Service, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{
		service:  service,
		interval: interval,
		logger:   log,
	}
}

// Run sweeps on the configured interval until the context is cancelled. The
// first sweep fires immediately so a restart does not leave overdue slots
// waiting a full interval.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Infof("Missed-appointment sweeper started with interval %s", s.interval)

	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Missed-appointment sweeper stopped")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	if _, err := s.service.SweepMissed(time.Now().UTC()); err != nil {
		s.logger.WithError(err).Error("Missed-appointment sweep failed")
	}
}
