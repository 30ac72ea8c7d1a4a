// Package streaming publishes a per-turn sequence of StreamEvents to
// subscribers (typically SSE clients), with bounded-channel backpressure
// and heartbeats on silence.
package streaming

import "time"

// EventType discriminates the StreamEvent payload variants.
type EventType string

const (
	EventThinking   EventType = "thinking"
	EventToolStart  EventType = "tool_start"
	EventToolResult EventType = "tool_result"
	EventCodeOutput EventType = "code_output"
	EventTextDelta  EventType = "text_delta"
	EventError      EventType = "error"
	EventHeartbeat  EventType = "heartbeat"
	EventDone       EventType = "done"
	EventDisconnect EventType = "disconnect"
)

// StreamEvent is one entry in a turn's ordered, append-only event sequence.
type StreamEvent struct {
	Type      EventType `json:"type"`
	Time      time.Time `json:"time"`
	TurnID    string    `json:"turn_id"`
	Sequence  uint64    `json:"sequence"`

	Thinking   string `json:"thinking,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
	ToolArgs   string `json:"tool_args,omitempty"`
	ToolResult string `json:"tool_result,omitempty"`
	ToolError  bool   `json:"tool_error,omitempty"`
	Output     string `json:"output,omitempty"`
	Delta      string `json:"delta,omitempty"`
	Error      string `json:"error,omitempty"`
}

func newEvent(turnID string, seq uint64, typ EventType) StreamEvent {
	return StreamEvent{Type: typ, Time: time.Now(), TurnID: turnID, Sequence: seq}
}
