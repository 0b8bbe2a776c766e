package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/dsa-core/dsa-core/internal/logging"
)

type recordingRunner struct {
	mu  sync.Mutex
	ran []string
}

func (r *recordingRunner) Run(_ context.Context, ticker string, _ RunOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, ticker)
	return nil
}

func TestCronSpecFromClock(t *testing.T) {
	spec, err := cronSpecFromClock("20:05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec != "5 20 * * *" {
		t.Fatalf("unexpected cron spec: %q", spec)
	}
}

func TestCronSpecFromClockRejectsGarbage(t *testing.T) {
	if _, err := cronSpecFromClock("not-a-time"); err == nil {
		t.Fatal("expected an error for malformed schedule_time")
	}
}

func TestRunNowFansOutOverWatchlistWithoutDayCheck(t *testing.T) {
	runner := &recordingRunner{}
	s, err := New("UTC", runner, []string{"600519", "AAPL", "0700.HK"}, 2, false, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.RunNow(context.Background())

	if len(runner.ran) != 3 {
		t.Fatalf("expected all 3 tickers run, got %v", runner.ran)
	}
}

func TestNewRejectsInvalidTimezone(t *testing.T) {
	_, err := New("Not/AZone", &recordingRunner{}, nil, 1, false, logging.New("error"))
	if err == nil {
		t.Fatal("expected an error for an invalid timezone")
	}
}
