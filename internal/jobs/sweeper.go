package jobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper periodically drops finished jobs from the registry so a long-lived
// server does not hold every job ever run.
type Sweeper struct {
	Tracker   *Tracker
	Retention time.Duration
	Interval  time.Duration
	Logger    zerolog.Logger

	cron *cron.Cron
}

func (s *Sweeper) Start() error {
	if s.Retention <= 0 {
		s.Retention = 24 * time.Hour
	}
	if s.Interval <= 0 {
		s.Interval = 10 * time.Minute
	}
	s.cron = cron.New()
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.Interval), func() {
		if removed := s.Tracker.Sweep(s.Retention); removed > 0 {
			s.Logger.Info().Int("removed", removed).Msg("swept finished jobs from registry")
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Sweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}
