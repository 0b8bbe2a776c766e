package taskqueue

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dsa-core/dsa-core/internal/apperr"
	"github.com/dsa-core/dsa-core/internal/logging"
	"github.com/dsa-core/dsa-core/internal/model"
)

func TestSubmitRejectsDuplicateTickerWhileInFlight(t *testing.T) {
	q := New(1, logging.New("error"))
	release := make(chan struct{})
	started := make(chan struct{})

	first, err := q.Submit(context.Background(), Job{Ticker: "600519", Run: func(_ context.Context, _ *model.Task) {
		close(started)
		<-release
	}})
	if err != nil {
		t.Fatalf("unexpected error on first submit: %v", err)
	}
	<-started

	_, err = q.Submit(context.Background(), Job{Ticker: "600519", Run: func(_ context.Context, _ *model.Task) {}})
	if apperr.CodeOf(err) != apperr.CodeDuplicateSubmission {
		t.Fatalf("expected duplicate submission error, got %v", err)
	}

	close(release)
	q.Wait()

	got, ok := q.Get(first.TaskID)
	if !ok || got.Status != model.TaskCompleted {
		t.Fatalf("expected task completed, got %+v ok=%v", got, ok)
	}
}

func TestSubmitAllowsResubmitAfterCompletion(t *testing.T) {
	q := New(1, logging.New("error"))
	_, err := q.Submit(context.Background(), Job{Ticker: "AAPL", Run: func(_ context.Context, _ *model.Task) {}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q.Wait()

	_, err = q.Submit(context.Background(), Job{Ticker: "AAPL", Run: func(_ context.Context, _ *model.Task) {}})
	if err != nil {
		t.Fatalf("expected resubmission after completion to succeed, got %v", err)
	}
	q.Wait()
}

func TestRunPanicMarksTaskFailed(t *testing.T) {
	q := New(1, logging.New("error"))
	task, _ := q.Submit(context.Background(), Job{Ticker: "0700.HK", Run: func(_ context.Context, _ *model.Task) {
		panic("boom")
	}})
	q.Wait()

	got, ok := q.Get(task.TaskID)
	if !ok || got.Status != model.TaskFailed {
		t.Fatalf("expected task failed after panic, got %+v ok=%v", got, ok)
	}
}

func TestSkipMarksTaskSkippedNotCompleted(t *testing.T) {
	q := New(1, logging.New("error"))
	task, _ := q.Submit(context.Background(), Job{Ticker: "600519", Run: func(_ context.Context, task *model.Task) {
		q.Skip(task.TaskID, "A-share market closed today")
	}})
	q.Wait()

	got, ok := q.Get(task.TaskID)
	if !ok || got.Status != model.TaskSkipped {
		t.Fatalf("expected task skipped, got %+v ok=%v", got, ok)
	}
	if !got.Terminal() {
		t.Fatal("expected a skipped task to be terminal")
	}
}

func TestWorkerConcurrencyIsBounded(t *testing.T) {
	q := New(2, logging.New("error"))
	var running, maxRunning int32
	block := make(chan struct{})

	for i := 0; i < 5; i++ {
		ticker := "T" + strconv.Itoa(i)
		_, _ = q.Submit(context.Background(), Job{Ticker: ticker, Run: func(_ context.Context, _ *model.Task) {
			n := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&maxRunning)
				if n <= old || atomic.CompareAndSwapInt32(&maxRunning, old, n) {
					break
				}
			}
			<-block
			atomic.AddInt32(&running, -1)
		}})
	}
	time.Sleep(20 * time.Millisecond)
	close(block)
	q.Wait()

	if got := atomic.LoadInt32(&maxRunning); got > 2 {
		t.Fatalf("expected at most 2 concurrent workers, saw %d", got)
	}
}
