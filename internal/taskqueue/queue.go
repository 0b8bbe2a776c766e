// Package taskqueue is the C10 task queue: a bounded worker pool with an
// active-ticker dedup set so a ticker can have at most one non-terminal
// task in flight, generalizing the pack's fan-out/errgroup worker
// pattern into an in-memory, submit-and-poll job queue.
package taskqueue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dsa-core/dsa-core/internal/apperr"
	"github.com/dsa-core/dsa-core/internal/logging"
	"github.com/dsa-core/dsa-core/internal/model"
)

// Job is one unit of work submitted to the queue.
type Job struct {
	Ticker     string
	ReportType string
	Notify     bool
	Run        func(ctx context.Context, task *model.Task)
}

// Queue runs submitted jobs on a bounded worker pool and tracks task
// state for polling by task ID.
type Queue struct {
	mu       sync.Mutex
	active   map[string]string // ticker -> task_id, only while non-terminal
	tasks    map[string]*model.Task
	sem      chan struct{}
	log      *logging.Logger
	wg       sync.WaitGroup
}

// New builds a Queue with the given worker concurrency.
func New(workers int, log *logging.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		active: make(map[string]string),
		tasks:  make(map[string]*model.Task),
		sem:    make(chan struct{}, workers),
		log:    log,
	}
}

// Submit enqueues a job for ticker. If ticker already has a non-terminal
// task, it returns that task's ID wrapped in apperr.DuplicateSubmission
// instead of starting a second one.
func (q *Queue) Submit(ctx context.Context, job Job) (*model.Task, error) {
	q.mu.Lock()
	if existingID, ok := q.active[job.Ticker]; ok {
		existing := q.tasks[existingID]
		q.mu.Unlock()
		return existing, apperr.DuplicateSubmission("an analysis task for " + job.Ticker + " is already in progress: " + existingID)
	}

	taskID := uuid.NewString()
	task := &model.Task{
		TaskID:     taskID,
		Ticker:     job.Ticker,
		ReportType: job.ReportType,
		Status:     model.TaskPending,
		CreatedAt:  time.Now(),
	}
	q.active[job.Ticker] = taskID
	q.tasks[taskID] = task
	q.mu.Unlock()

	q.wg.Add(1)
	go q.run(ctx, task, job)

	return task, nil
}

func (q *Queue) run(ctx context.Context, task *model.Task, job Job) {
	defer q.wg.Done()
	q.sem <- struct{}{}
	defer func() { <-q.sem }()
	defer q.release(job.Ticker)

	now := time.Now()
	q.mu.Lock()
	task.Status = model.TaskProcessing
	task.StartedAt = &now
	q.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			q.mu.Lock()
			task.Status = model.TaskFailed
			task.Error = "panic during task execution"
			completedAt := time.Now()
			task.CompletedAt = &completedAt
			q.mu.Unlock()
			if q.log != nil {
				q.log.Errorf("taskqueue: task %s panicked: %v", task.TaskID, r)
			}
		}
	}()

	job.Run(ctx, task)

	q.mu.Lock()
	if task.Status != model.TaskFailed && task.Status != model.TaskSkipped {
		task.Status = model.TaskCompleted
	}
	completedAt := time.Now()
	task.CompletedAt = &completedAt
	q.mu.Unlock()
}

func (q *Queue) release(ticker string) {
	q.mu.Lock()
	delete(q.active, ticker)
	q.mu.Unlock()
}

// Get returns the current snapshot of a task by ID.
func (q *Queue) Get(taskID string) (model.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[taskID]
	if !ok {
		return model.Task{}, false
	}
	return *t, true
}

// List returns a snapshot of every tracked task, most recently created first.
func (q *Queue) List() []model.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.Task, 0, len(q.tasks))
	for _, t := range q.tasks {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Cancel marks a non-terminal task as cancelled by setting its
// Cancelled flag. It does not cancel the context the job runs with, so
// a running job stops early only if it checks that flag.
func (q *Queue) Cancel(taskID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[taskID]
	if !ok || t.Terminal() {
		return false
	}
	t.Cancelled = true
	return true
}

// Wait blocks until every submitted job has finished running, for clean
// shutdown.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// UpdateProgress lets a running job report intermediate progress.
func (q *Queue) UpdateProgress(taskID string, progress float64, message string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t, ok := q.tasks[taskID]; ok {
		t.Progress = progress
		t.Message = message
	}
}

// Fail marks a task failed with an error message, used by a job when it
// aborts before its Run callback's normal completion path.
func (q *Queue) Fail(taskID, errMsg string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t, ok := q.tasks[taskID]; ok {
		t.Status = model.TaskFailed
		t.Error = errMsg
		completedAt := time.Now()
		t.CompletedAt = &completedAt
	}
}

// Skip marks a task deliberately not run (a closed-market calendar
// gate), a terminal outcome distinct from Fail.
func (q *Queue) Skip(taskID, message string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t, ok := q.tasks[taskID]; ok {
		t.Status = model.TaskSkipped
		t.Message = message
		completedAt := time.Now()
		t.CompletedAt = &completedAt
	}
}
