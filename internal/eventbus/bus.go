// Package eventbus is the C10 event bus half: per-task pub/sub with
// bounded per-subscriber queues, feeding the SSE task stream endpoint.
package eventbus

import (
	"sync"
	"time"

	"github.com/dsa-core/dsa-core/internal/model"
)

// queueDepth bounds how many undelivered events a slow subscriber can
// accumulate before older task events are dropped in favor of newer ones.
const queueDepth = 64

type subscriber struct {
	ch     chan model.TaskEvent
	taskID string // "" subscribes to every task
}

// Bus fans out TaskEvents to subscribers, keeping strict per-task
// ordering (a single task's events are always delivered in publish
// order to any one subscriber) while allowing a subscriber to fall
// behind without blocking the publisher: once a subscriber's queue is
// full, an incoming EventHeartbeat is itself dropped, and any other
// incoming event makes room by dropping the oldest queued event.
type Bus struct {
	mu   sync.Mutex
	subs map[int]*subscriber
	next int
}

func New() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Publish satisfies pipeline.EventPublisher.
func (b *Bus) Publish(taskID string, ev model.TaskEvent) {
	if ev.TaskID == "" {
		ev.TaskID = taskID
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if s.taskID != "" && s.taskID != taskID {
			continue
		}
		enqueue(s.ch, ev)
	}
}

// enqueue delivers ev without blocking. When the channel is full an
// incoming heartbeat is dropped; any other event drops the oldest
// queued event to make room.
func enqueue(ch chan model.TaskEvent, ev model.TaskEvent) {
	select {
	case ch <- ev:
		return
	default:
	}

	// Channel is full. A heartbeat never evicts a queued event.
	if ev.Kind == model.EventHeartbeat {
		return
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- ev:
	default:
	}
}

// Subscription is a live handle to a bus subscription; call Close when
// the consumer (typically an SSE handler) disconnects.
type Subscription struct {
	bus *Bus
	id  int
	ch  chan model.TaskEvent
}

// Events returns the channel to range over for incoming events.
func (s *Subscription) Events() <-chan model.TaskEvent { return s.ch }

func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs, s.id)
	close(s.ch)
}

// Subscribe returns every task's events. Pass a non-empty taskID to
// SubscribeTo a single task's stream instead.
func (b *Bus) Subscribe() *Subscription {
	return b.subscribe("")
}

func (b *Bus) SubscribeTo(taskID string) *Subscription {
	return b.subscribe(taskID)
}

func (b *Bus) subscribe(taskID string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan model.TaskEvent, queueDepth)
	b.subs[id] = &subscriber{ch: ch, taskID: taskID}
	return &Subscription{bus: b, id: id, ch: ch}
}

// SubscriberCount reports the current number of live subscriptions,
// mainly for diagnostics/tests.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
