/**
 * @description
 * Cron scheduler for expiring cancellation views that were never closed,
 * for example when the customer simply closed the browser tab.
 */
package app

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweeper runs Service.SweepExpired on a cron schedule.
type Sweeper struct {
	cron     *cron.Cron
	service  *Service
	schedule string
	logger   *logrus.Entry
}

// NewSweeper creates a sweeper; schedule uses robfig/cron syntax, e.g. "@every 1m".
func NewSweeper(service *Service, schedule string) *Sweeper {
	logger := logrus.WithField("component", "sweeper")
	cronLogger := cron.PrintfLogger(logger)
	return &Sweeper{
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger))),
		service:  service,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		s.logger.WithError(err).WithField("schedule", s.schedule).Error("failed to schedule view sweep job")
		return err
	}
	s.logger.WithField("schedule", s.schedule).Info("scheduled view sweep job")
	s.cron.Start()
	return nil
}

func (s *Sweeper) run() {
	if removed := s.service.SweepExpired(context.Background()); removed > 0 {
		s.logger.WithField("removed", removed).Info("expired cancellation views")
	}
}

// Stop stops the scheduler; the returned context is done once a running sweep finishes.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}
