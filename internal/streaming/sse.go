package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Flusher is the subset of http.Flusher WriteSSE needs; satisfied directly
// by http.Flusher.
type Flusher interface {
	Flush()
}

// WriteSSE drains ch and writes each event to w as a Server-Sent Event,
// flushing after every write so subscribers see events as they arrive. It
// returns when a terminal (done or disconnect) event is written, the
// request context is done, or a write fails. Subscriber channels are never
// closed by the hub, so a terminal event — not channel closure — is the
// end-of-stream signal.
func WriteSSE(ctx context.Context, w http.ResponseWriter, flusher Flusher, ch <-chan StreamEvent) error {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-ch:
			if err := writeEvent(w, e); err != nil {
				return err
			}
			flusher.Flush()
			if e.Type == EventDone || e.Type == EventDisconnect {
				return nil
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, e StreamEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("streaming: marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, payload); err != nil {
		return fmt.Errorf("streaming: write event: %w", err)
	}
	return nil
}
