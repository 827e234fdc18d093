package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/gmsf/gmsf-contracts-backend/internal/lifecycle"
)

// Scheduler runs the periodic maintenance jobs. The only job today is the
// client-status sweep: contract expiry is never persisted, so clients whose
// last contract has lapsed must be re-evaluated as time passes.
type Scheduler struct {
	cron    *cron.Cron
	service *lifecycle.Service
	logger  *slog.Logger
}

// New builds a scheduler with the sweep registered on the given cron spec.
func New(service *lifecycle.Service, logger *slog.Logger, sweepSpec string) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		service: service,
		logger:  logger,
	}

	if _, err := s.cron.AddFunc(sweepSpec, s.runSweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the cron loop; the returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runSweep() {
	deactivated, err := s.service.SweepClientStatuses(context.Background())
	if err != nil {
		s.logger.Error("client status sweep failed", "error", err)
		return
	}
	s.logger.Info("client status sweep completed", "clients_deactivated", deactivated)
}
