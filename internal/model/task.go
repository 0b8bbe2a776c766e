package model

import "time"

// TaskStatus is the lifecycle state of a queued analysis task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskSkipped    TaskStatus = "skipped"
)

// Task tracks one submitted analysis run. A ticker may have at most one
// non-terminal Task at a time (enforced by the task queue's dedup set).
type Task struct {
	TaskID      string
	Ticker      string
	ReportType  string
	Status      TaskStatus
	Progress    float64
	Message     string
	Error       string
	Cancelled   bool
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Terminal reports whether the task has reached a terminal status.
func (t Task) Terminal() bool {
	return t.Status == TaskCompleted || t.Status == TaskFailed || t.Status == TaskSkipped
}

// EventKind enumerates the SSE event types published on the task event bus.
type EventKind string

const (
	EventConnected     EventKind = "connected"
	EventTaskCreated   EventKind = "task_created"
	EventTaskStarted   EventKind = "task_started"
	EventTaskCompleted EventKind = "task_completed"
	EventTaskFailed    EventKind = "task_failed"
	EventTaskSkipped   EventKind = "task_skipped"
	EventHeartbeat     EventKind = "heartbeat"
)

// TaskEvent is one message published on the event bus for a task.
type TaskEvent struct {
	Kind      EventKind
	TaskID    string
	Ticker    string
	Progress  float64
	Message   string
	Error     string
	Code      string
	Cancelled bool
	At        time.Time
}
