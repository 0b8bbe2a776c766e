// Package scheduler is the C12 Scheduler: a cron-driven daily trigger
// that fans a watchlist out across the analysis pipeline, keeping the
// pack's Start/Stop/RunNow shape (RegisterDaily takes the place of its
// RegisterAll) while replacing weekly
// fund-ledger tasks with the single daily batch-analysis job this
// system runs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/dsa-core/dsa-core/internal/calendar"
	"github.com/dsa-core/dsa-core/internal/logging"
	"github.com/dsa-core/dsa-core/internal/model"
)

// Runner runs one ticker's analysis; the scheduler doesn't know or care
// whether it's a *pipeline.Pipeline or a task-queue submission.
type Runner interface {
	Run(ctx context.Context, ticker string, opts RunOptions) error
}

// RunOptions carries through to the pipeline run.
type RunOptions struct {
	Notify   bool
	DayCheck bool
}

// Scheduler triggers a daily batch run at a configured local time,
// gated by the trading calendar, with bounded fan-out concurrency.
type Scheduler struct {
	cron       *cron.Cron
	runner     Runner
	watchlist  []string
	parallel   int
	dayCheck   bool
	log        *logging.Logger
}

// New builds a Scheduler for the given IANA timezone name.
func New(timezone string, runner Runner, watchlist []string, parallel int, dayCheck bool, log *logging.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid timezone %q: %w", timezone, err)
	}
	if parallel < 1 {
		parallel = 1
	}
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		runner:    runner,
		watchlist: watchlist,
		parallel:  parallel,
		dayCheck:  dayCheck,
		log:       log,
	}, nil
}

// RegisterDaily schedules the batch run at HH:MM local time, using the
// standard 5-field cron spec robfig/cron parses without WithSeconds.
func (s *Scheduler) RegisterDaily(hhmm string) error {
	spec, err := cronSpecFromClock(hhmm)
	if err != nil {
		return err
	}
	_, err = s.cron.AddFunc(spec, func() {
		s.RunNow(context.Background())
	})
	if err != nil {
		return fmt.Errorf("scheduler: register daily job: %w", err)
	}
	return nil
}

func cronSpecFromClock(hhmm string) (string, error) {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		return "", fmt.Errorf("scheduler: invalid schedule_time %q, want HH:MM: %w", hhmm, err)
	}
	return fmt.Sprintf("%d %d * * *", m, h), nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	if s.log != nil {
		s.log.Infof("scheduler: started")
	}
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	if s.log != nil {
		s.log.Infof("scheduler: stopped")
	}
}

// RunNow executes the batch analysis immediately, consulting the
// calendar gate per market before fanning tickers out.
func (s *Scheduler) RunNow(ctx context.Context) {
	if s.log != nil {
		s.log.Infof("scheduler: running batch analysis over %d tickers", len(s.watchlist))
	}

	byMarket := map[model.Market][]string{}
	for _, ticker := range s.watchlist {
		mkt := model.InferMarket(ticker)
		if s.dayCheck && !calendar.IsOpen(mkt, time.Now()) {
			if s.log != nil {
				s.log.Infof("scheduler: skipping %s, %s market closed today", ticker, mkt)
			}
			continue
		}
		byMarket[mkt] = append(byMarket[mkt], ticker)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for _, tickers := range byMarket {
		for _, ticker := range tickers {
			ticker := ticker
			g.Go(func() error {
				if err := s.runner.Run(gctx, ticker, RunOptions{Notify: true, DayCheck: s.dayCheck}); err != nil {
					if s.log != nil {
						s.log.Errorf("scheduler: analysis failed for %s: %v", ticker, err)
					}
				}
				return nil
			})
		}
	}
	_ = g.Wait()
}
