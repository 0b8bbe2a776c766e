package eventbus

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/dsa-core/dsa-core/internal/model"
)

func TestPublishDeliversOnlyToMatchingTaskSubscription(t *testing.T) {
	b := New()
	sub := b.SubscribeTo("t1")
	defer sub.Close()
	other := b.SubscribeTo("t2")
	defer other.Close()

	b.Publish("t1", model.TaskEvent{Kind: model.EventTaskStarted})
	select {
	case ev := <-sub.Events():
		if ev.TaskID != "t1" {
			t.Fatalf("unexpected task id: %s", ev.TaskID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event delivered to matching subscriber")
	}

	select {
	case ev := <-other.Events():
		t.Fatalf("did not expect event on non-matching subscriber, got %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPublishWildcardSubscriptionSeesEveryTask(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	defer sub.Close()

	b.Publish("t1", model.TaskEvent{Kind: model.EventTaskStarted})
	b.Publish("t2", model.TaskEvent{Kind: model.EventTaskCompleted})

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-sub.Events():
			seen[ev.TaskID] = true
		case <-time.After(time.Second):
			t.Fatal("expected two events")
		}
	}
	if !seen["t1"] || !seen["t2"] {
		t.Fatalf("expected events from both tasks, got %v", seen)
	}
}

func TestEnqueueDropsHeartbeatBeforeSubstantiveEvent(t *testing.T) {
	ch := make(chan model.TaskEvent, 1)
	ch <- model.TaskEvent{Kind: model.EventTaskStarted}

	enqueue(ch, model.TaskEvent{Kind: model.EventHeartbeat})

	got := <-ch
	if got.Kind != model.EventTaskStarted {
		t.Fatalf("expected the substantive event preserved, got %v", got.Kind)
	}
}

func TestCloseStopsFurtherDelivery(t *testing.T) {
	b := New()
	sub := b.SubscribeTo("t1")
	sub.Close()
	if b.SubscriberCount() != 0 {
		t.Fatal("expected subscriber removed after close")
	}
	// Publishing after close must not panic.
	b.Publish("t1", model.TaskEvent{Kind: model.EventTaskStarted})
}

type fakeFlusher struct{ flushed int }

func (f *fakeFlusher) Flush() { f.flushed++ }

func TestServeSSEWritesEventAndStopsOnDone(t *testing.T) {
	b := New()
	sub := b.SubscribeTo("t1")
	defer sub.Close()
	b.Publish("t1", model.TaskEvent{Kind: model.EventTaskCompleted, Ticker: "600519"})

	var buf bytes.Buffer
	flusher := &fakeFlusher{}
	done := make(chan struct{})

	go func() {
		time.Sleep(30 * time.Millisecond)
		close(done)
	}()

	if err := ServeSSE(&buf, flusher, sub, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "task_completed") {
		t.Fatalf("expected task_completed event in output, got %q", buf.String())
	}
	if flusher.flushed == 0 {
		t.Fatal("expected at least one flush")
	}
}
