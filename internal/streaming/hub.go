package streaming

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls per-turn buffering and heartbeat cadence.
type Config struct {
	// BufferSize bounds both the producer-facing ingestion channel and each
	// subscriber's channel. A full buffer blocks the producer (cooperative
	// backpressure) rather than dropping events.
	BufferSize int

	// HeartbeatInterval is the maximum silence before a heartbeat event is
	// emitted to live subscribers. Zero disables heartbeats.
	HeartbeatInterval time.Duration
}

// DefaultConfig returns sensible buffering and heartbeat defaults.
func DefaultConfig() Config {
	return Config{BufferSize: 64, HeartbeatInterval: 15 * time.Second}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	return cfg
}

// Hub owns one turnState per in-flight turn and fans out its events to any
// number of subscribers.
type Hub struct {
	mu    sync.Mutex
	turns map[string]*turnState
	cfg   Config
}

// NewHub constructs a Hub with the given configuration.
func NewHub(cfg Config) *Hub {
	return &Hub{turns: make(map[string]*turnState), cfg: sanitizeConfig(cfg)}
}

type turnState struct {
	id     string
	seq    uint64
	events chan StreamEvent

	subsMu    sync.Mutex
	subs      map[int]*subscription
	nextSubID int

	mu       sync.Mutex
	lastSent time.Time

	cancel context.CancelFunc
}

// subscription pairs a subscriber's event channel with its own done signal,
// so an abandoned subscriber can be unblocked without ever closing (and
// risking a send-on-closed-channel panic on) the event channel itself.
type subscription struct {
	ch   chan StreamEvent
	done chan struct{}
}

// Publisher is the producer-facing API used by the coordinator, agent loop,
// and tool dispatcher to emit events for one turn.
type Publisher struct {
	ctx  context.Context
	turn *turnState
}

// OpenTurn registers a new turn and starts its fan-out and heartbeat
// goroutines. The returned context is derived from parent and is cancelled
// when Disconnect or Done is called for this turn, or parent is cancelled;
// callers should pass it to the agent loop / coordinator run for this turn
// so in-flight work observes the cancellation at its next suspension point.
func (h *Hub) OpenTurn(parent context.Context, turnID string) (*Publisher, context.Context, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.turns[turnID]; exists {
		return nil, nil, fmt.Errorf("streaming: turn %q already open", turnID)
	}

	ctx, cancel := context.WithCancel(parent)
	ts := &turnState{
		id:       turnID,
		events:   make(chan StreamEvent, h.cfg.BufferSize),
		subs:     make(map[int]*subscription),
		cancel:   cancel,
		lastSent: time.Now(),
	}
	h.turns[turnID] = ts

	go ts.fanout(ctx)
	if h.cfg.HeartbeatInterval > 0 {
		go ts.heartbeatLoop(ctx, h.cfg.HeartbeatInterval)
	}

	return &Publisher{ctx: ctx, turn: ts}, ctx, nil
}

// Subscribe attaches a new listener to a live turn. Delivery is at-least-
// once from the point of subscription onward; late joiners do not receive
// earlier events. The returned unsubscribe func must be called when the
// caller stops reading.
func (h *Hub) Subscribe(turnID string) (<-chan StreamEvent, func(), error) {
	h.mu.Lock()
	ts, ok := h.turns[turnID]
	h.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("streaming: unknown turn %q", turnID)
	}

	sub := &subscription{ch: make(chan StreamEvent, cap(ts.events)), done: make(chan struct{})}
	ts.subsMu.Lock()
	id := ts.nextSubID
	ts.nextSubID++
	ts.subs[id] = sub
	ts.subsMu.Unlock()

	unsubscribe := func() {
		ts.subsMu.Lock()
		if _, ok := ts.subs[id]; ok {
			delete(ts.subs, id)
			close(sub.done)
		}
		ts.subsMu.Unlock()
	}
	return sub.ch, unsubscribe, nil
}

// Disconnect signals a turn's cancellation — producers (the agent loop,
// tool dispatcher) observe it via the context returned from OpenTurn at
// their next suspension point and unwind. A terminal disconnect event is
// delivered to current subscribers before the turn is torn down.
func (h *Hub) Disconnect(turnID string) {
	h.teardown(turnID, EventDisconnect)
}

// Done marks a turn complete on normal finish: a terminal done event is
// delivered to current subscribers before the turn is torn down.
func (h *Hub) Done(turnID string) {
	h.teardown(turnID, EventDone)
}

func (h *Hub) teardown(turnID string, terminal EventType) {
	h.mu.Lock()
	ts, ok := h.turns[turnID]
	if ok {
		delete(h.turns, turnID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	// Enqueue the terminal event while the turn is still live so fanout's
	// drain-on-exit picks it up, then cancel to stop fanout and heartbeat.
	deliverCtx, cancelDeliver := context.WithTimeout(context.Background(), 2*time.Second)
	ts.publish(deliverCtx, newEvent(turnID, 0, terminal))
	cancelDeliver()
	ts.cancel()
}

// publish sends an event onto the turn's ingestion channel, blocking
// (cooperative backpressure) until there is room or ctx is done.
func (ts *turnState) publish(ctx context.Context, e StreamEvent) {
	e.TurnID = ts.id
	e.Sequence = atomic.AddUint64(&ts.seq, 1)
	e.Time = time.Now()

	ts.mu.Lock()
	ts.lastSent = time.Now()
	ts.mu.Unlock()

	select {
	case ts.events <- e:
	case <-ctx.Done():
	}
}

// fanout copies every event published on the ingestion channel to all
// current subscribers, blocking per subscriber (modulo that subscriber's own
// unsubscribe) so a slow reader applies backpressure rather than losing
// events. On cancellation it drains any events already buffered — so a
// just-enqueued terminal event is never lost to the ctx.Done()/event-ready
// select race — before exiting; terminal events are the signal consumers
// use to stop reading, so subscriber channels are never closed here.
func (ts *turnState) fanout(ctx context.Context) {
	for {
		select {
		case e := <-ts.events:
			ts.broadcast(e)
		case <-ctx.Done():
			ts.drainRemaining()
			return
		}
	}
}

func (ts *turnState) drainRemaining() {
	for {
		select {
		case e := <-ts.events:
			ts.broadcast(e)
		default:
			return
		}
	}
}

// broadcast delivers an already-dequeued event to every current subscriber.
// Delivery to a given subscriber is unconditional except that it aborts
// early if that specific subscriber unsubscribes mid-send — it is never
// skipped due to turn cancellation, since an event already off the
// ingestion channel must reach subscribers per the no-drop contract.
func (ts *turnState) broadcast(e StreamEvent) {
	ts.subsMu.Lock()
	subs := make([]*subscription, 0, len(ts.subs))
	for _, sub := range ts.subs {
		subs = append(subs, sub)
	}
	ts.subsMu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- e:
		case <-sub.done:
		}
	}
}

func (ts *turnState) heartbeatLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ts.mu.Lock()
			silent := time.Since(ts.lastSent) >= interval
			ts.mu.Unlock()
			if silent {
				ts.publish(ctx, newEvent(ts.id, 0, EventHeartbeat))
			}
		}
	}
}

// Thinking emits a thinking event.
func (p *Publisher) Thinking(text string) {
	e := newEvent(p.turn.id, 0, EventThinking)
	e.Thinking = text
	p.turn.publish(p.ctx, e)
}

// ToolStart emits a tool_start event.
func (p *Publisher) ToolStart(callID, name, args string) {
	e := newEvent(p.turn.id, 0, EventToolStart)
	e.ToolCallID, e.ToolName, e.ToolArgs = callID, name, args
	p.turn.publish(p.ctx, e)
}

// ToolResult emits a tool_result event.
func (p *Publisher) ToolResult(callID, name, result string, isError bool) {
	e := newEvent(p.turn.id, 0, EventToolResult)
	e.ToolCallID, e.ToolName, e.ToolResult, e.ToolError = callID, name, result, isError
	p.turn.publish(p.ctx, e)
}

// CodeOutput emits a code_output event.
func (p *Publisher) CodeOutput(output string) {
	e := newEvent(p.turn.id, 0, EventCodeOutput)
	e.Output = output
	p.turn.publish(p.ctx, e)
}

// TextDelta emits a text_delta event.
func (p *Publisher) TextDelta(delta string) {
	e := newEvent(p.turn.id, 0, EventTextDelta)
	e.Delta = delta
	p.turn.publish(p.ctx, e)
}

// Error emits an error event. It is not terminal; Done/Disconnect still
// follow.
func (p *Publisher) Error(err error) {
	e := newEvent(p.turn.id, 0, EventError)
	if err != nil {
		e.Error = err.Error()
	}
	p.turn.publish(p.ctx, e)
}
