package schedule

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/kmarsden/fabricstash/internal/config"
	"github.com/kmarsden/fabricstash/internal/types"
)

// Runner is the orchestrator entry point the scheduler triggers.
type Runner interface {
	IngestAll(ctx context.Context) types.BatchResult
}

// Scheduler fires a full ingestion run on a cron schedule (daily at
// 02:00 by default). A wholly failed run is logged and the schedule
// keeps going; no state is kept between triggers.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger *slog.Logger
}

// New creates a scheduler for the configured cron expression.
func New(cfg *config.ScheduleConfig, runner Runner, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		runner: runner,
		logger: logger.With("component", "scheduler"),
	}

	_, err := s.cron.AddFunc(cfg.Cron, s.run)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cfg.Cron, err)
	}
	return s, nil
}

// Start begins firing on schedule.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run() {
	s.logger.Info("scheduled ingestion run triggered")
	result := s.runner.IngestAll(context.Background())
	s.logger.Info("scheduled ingestion run finished",
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
		"elapsed", result.Elapsed,
	)
	for _, f := range result.Failed {
		s.logger.Warn("scheduled ingestion failure", "url", f.URL, "reason", f.Reason)
	}
}
