package schedule

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kmarsden/fabricstash/internal/config"
	"github.com/kmarsden/fabricstash/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type countingRunner struct {
	runs atomic.Int64
}

func (r *countingRunner) IngestAll(context.Context) types.BatchResult {
	r.runs.Add(1)
	return types.BatchResult{
		Failed: []types.Outcome{types.Failure("https://x.example.com", context.DeadlineExceeded)},
	}
}

func TestNewRejectsBadCron(t *testing.T) {
	if _, err := New(&config.ScheduleConfig{Cron: "every day at 2"}, &countingRunner{}, testLogger); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestNewAcceptsStandardCron(t *testing.T) {
	if _, err := New(&config.ScheduleConfig{Cron: "0 2 * * *"}, &countingRunner{}, testLogger); err != nil {
		t.Fatalf("standard cron expression rejected: %v", err)
	}
}

func TestSchedulerFires(t *testing.T) {
	runner := &countingRunner{}
	s, err := New(&config.ScheduleConfig{Cron: "@every 50ms"}, runner, testLogger)
	if err != nil {
		t.Fatal(err)
	}

	s.Start()
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for runner.runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduler never fired")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
