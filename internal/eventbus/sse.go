package eventbus

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dsa-core/dsa-core/internal/model"
)

// HeartbeatInterval is how often ServeSSE injects a synthetic heartbeat
// event to keep intermediate proxies from closing an idle connection.
const HeartbeatInterval = 15 * time.Second

// Flusher is the subset of http.ResponseWriter's flush capability the
// SSE writer needs, satisfied by gin.ResponseWriter and http.Flusher.
type Flusher interface {
	Flush()
}

// ServeSSE writes the subscribed task's events (or every task's, if sub
// was created with Subscribe) to w as server-sent events until done is
// closed, the subscription is closed, or a write fails; a write failure
// is treated as a client disconnect and returned.
func ServeSSE(w io.Writer, flusher Flusher, sub *Subscription, done <-chan struct{}) error {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return nil
		case <-ticker.C:
			if err := writeEvent(w, model.TaskEvent{Kind: model.EventHeartbeat, At: time.Now()}); err != nil {
				return err
			}
			flusher.Flush()
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := writeEvent(w, ev); err != nil {
				return err
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, ev model.TaskEvent) error {
	buf, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, buf)
	return err
}
