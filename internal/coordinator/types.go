// Package coordinator routes a user query to one or more specialist agent
// loops, runs them (serially or in parallel), synthesizes their outputs into
// a single answer, and optionally runs a QC review pass over the synthesis.
package coordinator

import (
	"context"
	"time"

	"github.com/bioagent-ai/bioagent/internal/agent"
	"github.com/bioagent-ai/bioagent/pkg/models"
)

// SpecialistDefinition describes one specialist available to the router: its
// routing keywords, its tool allowlist, and whether it is the general
// fallback specialist used when routing is ambiguous or orchestration fails.
type SpecialistDefinition struct {
	ID            string
	Name          string
	Description   string
	Keywords      []string
	ToolAllowlist []string
	SystemPrompt  string
	IsGeneral     bool
}

// SpecialistRunner drives one specialist's agent loop to completion for a
// single turn. *agent.AgenticLoop already satisfies this interface.
type SpecialistRunner interface {
	Run(ctx context.Context, session *models.Session, msg *models.Message) (<-chan *agent.ResponseChunk, error)
}

// RoutingDecision is the outcome of Router.Route: a primary specialist plus
// optional secondaries to run alongside it.
type RoutingDecision struct {
	Query                string
	PrimarySpecialist    string
	SecondarySpecialists []string
	Rationale            string
	ParallelHint         bool
	Confidence           float64
}

// SpecialistOutput is what one specialist produced for a turn.
type SpecialistOutput struct {
	SpecialistID string
	Text         string
	ToolsUsed    []string
	Elapsed      time.Duration
	Err          error
}

// QCReview is the result of a QC pass over a synthesized answer.
type QCReview struct {
	Approved    bool
	Concerns    []string
	Suggestions []string
}
