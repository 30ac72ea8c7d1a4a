package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bioagent-ai/bioagent/internal/agent"
	"github.com/bioagent-ai/bioagent/internal/streaming"
	"github.com/bioagent-ai/bioagent/pkg/models"
)

// Config controls coordinator-level behavior: parallel fan-out, per-
// specialist and outer timeouts, and whether QC review runs.
type Config struct {
	// ParallelSpecialists runs secondaries alongside the primary specialist
	// instead of leaving the routing decision to name only one.
	ParallelSpecialists bool

	// SpecialistTimeout bounds a single specialist's run. Zero means no
	// per-specialist limit beyond OuterTimeout.
	SpecialistTimeout time.Duration

	// OuterTimeout bounds the whole turn, across all specialists and QC.
	// Zero means no limit.
	OuterTimeout time.Duration

	// EnableQC runs the QC reviewer over the synthesized answer.
	EnableQC bool
}

// DefaultConfig returns reasonable coordinator defaults.
func DefaultConfig() Config {
	return Config{
		ParallelSpecialists: true,
		SpecialistTimeout:   2 * time.Minute,
		OuterTimeout:        5 * time.Minute,
	}
}

// Coordinator routes a turn to one or more specialists, runs them, merges
// their outputs, and optionally runs QC review over the merged answer. If
// orchestration itself fails unexpectedly, it falls back to running the
// general specialist alone.
type Coordinator struct {
	router  *Router
	runners map[string]SpecialistRunner
	qc      *QCReviewer
	config  Config
	hub     *streaming.Hub
}

// NewCoordinator constructs a Coordinator around the given router.
func NewCoordinator(router *Router, config Config) *Coordinator {
	return &Coordinator{
		router:  router,
		runners: make(map[string]SpecialistRunner),
		config:  config,
	}
}

// RegisterSpecialist attaches the runtime (agent loop) that executes a
// specialist named in the router.
func (c *Coordinator) RegisterSpecialist(id string, runner SpecialistRunner) {
	c.runners[id] = runner
}

// SetQCReviewer installs the QC reviewer used when Config.EnableQC is true.
func (c *Coordinator) SetQCReviewer(qc *QCReviewer) {
	c.qc = qc
}

// SetHub installs the event hub used to publish per-turn routing, specialist,
// and tool events to stream subscribers. A nil hub (the default) disables
// publishing without affecting the ResponseChunk channel Run returns.
func (c *Coordinator) SetHub(hub *streaming.Hub) {
	c.hub = hub
}

// Run routes, executes, and synthesizes one turn, streaming the routing
// rationale as a thinking event and the final (possibly QC-annotated) answer
// as text, then closing the returned channel. If a hub is installed, the turn
// is also published under msg.ID: the coordinator's context for the turn is
// derived from the hub so an external Disconnect (e.g. the client going away)
// cancels in-flight specialists at their next suspension point, and no
// further tool_start events are emitted once that happens.
func (c *Coordinator) Run(ctx context.Context, session *models.Session, msg *models.Message) (<-chan *agent.ResponseChunk, error) {
	if len(c.runners) == 0 {
		return nil, fmt.Errorf("coordinator: no specialists registered")
	}

	out := make(chan *agent.ResponseChunk, 16)

	runCtx := ctx
	var pub *streaming.Publisher
	if c.hub != nil {
		var err error
		pub, runCtx, err = c.hub.OpenTurn(ctx, msg.ID)
		if err != nil {
			return nil, fmt.Errorf("coordinator: open turn: %w", err)
		}
	}

	go func() {
		c.run(runCtx, session, msg, out, pub)
		if c.hub != nil {
			if runCtx.Err() != nil {
				c.hub.Disconnect(msg.ID)
			} else {
				c.hub.Done(msg.ID)
			}
		}
	}()
	return out, nil
}

func (c *Coordinator) run(ctx context.Context, session *models.Session, msg *models.Message, out chan<- *agent.ResponseChunk, pub *streaming.Publisher) {
	defer close(out)

	if c.config.OuterTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.OuterTimeout)
		defer cancel()
	}

	decision, err := c.router.Route(ctx, msg.Content)
	if err != nil {
		c.runFallback(ctx, session, msg, out, fmt.Sprintf("routing failed: %v", err), pub)
		return
	}

	rationale := fmt.Sprintf("routing to %s (%s)", decision.PrimarySpecialist, decision.Rationale)
	out <- &agent.ResponseChunk{ThinkingStart: true}
	out <- &agent.ResponseChunk{Thinking: rationale}
	out <- &agent.ResponseChunk{ThinkingEnd: true}
	if pub != nil {
		pub.Thinking(rationale)
	}

	specialists := []string{decision.PrimarySpecialist}
	if c.config.ParallelSpecialists {
		specialists = append(specialists, decision.SecondarySpecialists...)
	}

	outputs, ok := c.dispatch(ctx, session, msg, specialists, pub)
	if !ok {
		c.runFallback(ctx, session, msg, out, "all specialists failed", pub)
		return
	}

	answer := Synthesize(decision.PrimarySpecialist, outputs)
	if strings.TrimSpace(answer) == "" {
		c.runFallback(ctx, session, msg, out, "synthesis produced no usable answer", pub)
		return
	}

	if c.config.EnableQC && c.qc != nil {
		review, err := c.qc.Review(ctx, session, answer)
		if err == nil {
			answer = AnnotateWithReviewerNotes(answer, review)
		}
		// A QC failure is non-fatal to the turn: the unannotated answer is
		// still returned.
	}

	out <- &agent.ResponseChunk{Text: answer}
	if pub != nil {
		pub.TextDelta(answer)
	}
}

// dispatch runs the named specialists — in parallel if configured and there
// is more than one, serially otherwise — and returns their outputs. ok is
// false only if every specialist errored, signaling the caller to fall back.
func (c *Coordinator) dispatch(ctx context.Context, session *models.Session, msg *models.Message, specialistIDs []string, pub *streaming.Publisher) ([]SpecialistOutput, bool) {
	outputs := make([]SpecialistOutput, len(specialistIDs))

	if c.config.ParallelSpecialists && len(specialistIDs) > 1 {
		var wg sync.WaitGroup
		for i, id := range specialistIDs {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				outputs[i] = c.runOne(ctx, session, msg, id, pub)
			}(i, id)
		}
		wg.Wait()
	} else {
		for i, id := range specialistIDs {
			outputs[i] = c.runOne(ctx, session, msg, id, pub)
			// Cancellation of the outer turn short-circuits remaining
			// sequential specialists.
			if ctx.Err() != nil {
				outputs = outputs[:i+1]
				break
			}
		}
	}

	anySucceeded := false
	for _, o := range outputs {
		if o.Err == nil {
			anySucceeded = true
			break
		}
	}
	return outputs, anySucceeded
}

func (c *Coordinator) runOne(ctx context.Context, session *models.Session, msg *models.Message, specialistID string, pub *streaming.Publisher) SpecialistOutput {
	runner, ok := c.runners[specialistID]
	if !ok {
		return SpecialistOutput{SpecialistID: specialistID, Err: fmt.Errorf("coordinator: no runner registered for specialist %q", specialistID)}
	}

	runCtx := ctx
	if c.config.SpecialistTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.config.SpecialistTimeout)
		defer cancel()
	}

	start := time.Now()
	chunks, err := runner.Run(runCtx, session, msg)
	if err != nil {
		return SpecialistOutput{SpecialistID: specialistID, Err: err, Elapsed: time.Since(start)}
	}

	var text strings.Builder
	seenTools := make(map[string]bool)
	var tools []string
	var runErr error
	for chunk := range chunks {
		if chunk == nil {
			continue
		}
		if chunk.Error != nil {
			runErr = chunk.Error
			if pub != nil && ctx.Err() == nil {
				pub.Error(chunk.Error)
			}
			continue
		}
		text.WriteString(chunk.Text)
		publishToolEvent(pub, ctx, chunk.ToolEvent)
		if chunk.ToolEvent != nil && chunk.ToolEvent.ToolName != "" && !seenTools[chunk.ToolEvent.ToolName] {
			seenTools[chunk.ToolEvent.ToolName] = true
			tools = append(tools, chunk.ToolEvent.ToolName)
		}
	}

	return SpecialistOutput{
		SpecialistID: specialistID,
		Text:         text.String(),
		ToolsUsed:    tools,
		Elapsed:      time.Since(start),
		Err:          runErr,
	}
}

// publishToolEvent mirrors a specialist's tool lifecycle event onto the
// turn's publisher. It is a no-op once ctx is done, so a cancelled turn never
// emits a tool_start after the cancellation point — publish itself would
// still deliver a buffered event, but the check here stops new ones at the
// source.
func publishToolEvent(pub *streaming.Publisher, ctx context.Context, evt *models.ToolEvent) {
	if pub == nil || evt == nil || ctx.Err() != nil {
		return
	}
	switch evt.Stage {
	case models.ToolEventStarted:
		pub.ToolStart(evt.ToolCallID, evt.ToolName, string(evt.Input))
	case models.ToolEventSucceeded:
		pub.ToolResult(evt.ToolCallID, evt.ToolName, evt.Output, false)
	case models.ToolEventFailed, models.ToolEventDenied:
		result := evt.Output
		if result == "" {
			result = evt.Error
		}
		pub.ToolResult(evt.ToolCallID, evt.ToolName, result, true)
	}
}

// runFallback runs the general specialist alone after an orchestration
// failure. If no general specialist is registered, the failure reason is
// emitted as an error chunk instead.
func (c *Coordinator) runFallback(ctx context.Context, session *models.Session, msg *models.Message, out chan<- *agent.ResponseChunk, reason string, pub *streaming.Publisher) {
	generalID := c.router.GeneralSpecialistID()
	runner, ok := c.runners[generalID]
	if generalID == "" || !ok {
		err := fmt.Errorf("coordinator: orchestration failed (%s) and no general specialist is registered", reason)
		out <- &agent.ResponseChunk{Error: err}
		if pub != nil {
			pub.Error(err)
		}
		return
	}

	fallbackMsg := fmt.Sprintf("falling back to general specialist: %s", reason)
	out <- &agent.ResponseChunk{ThinkingStart: true}
	out <- &agent.ResponseChunk{Thinking: fallbackMsg}
	out <- &agent.ResponseChunk{ThinkingEnd: true}
	if pub != nil {
		pub.Thinking(fallbackMsg)
	}

	chunks, err := runner.Run(ctx, session, msg)
	if err != nil {
		wrapped := fmt.Errorf("coordinator: fallback failed: %w", err)
		out <- &agent.ResponseChunk{Error: wrapped}
		if pub != nil {
			pub.Error(wrapped)
		}
		return
	}
	for chunk := range chunks {
		if chunk == nil {
			continue
		}
		out <- chunk
		publishToolEvent(pub, ctx, chunk.ToolEvent)
		if chunk.Text != "" && pub != nil {
			pub.TextDelta(chunk.Text)
		}
	}
}
