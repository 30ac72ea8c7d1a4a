package agent

import (
	"context"

	"github.com/bioagent-ai/bioagent/pkg/models"
)

type contextKey string

const (
	sessionContextKey       contextKey = "session"
	systemPromptContextKey  contextKey = "system_prompt"
	modelContextKey         contextKey = "model"
	toolAllowlistContextKey contextKey = "tool_allowlist"
)

// WithSession attaches the active session to the context so tools and
// sub-components (e.g. the compaction status tool) can recover it without
// threading it through every call signature.
func WithSession(ctx context.Context, session *models.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionFromContext returns the session stashed by WithSession, or nil.
func SessionFromContext(ctx context.Context) *models.Session {
	session, _ := ctx.Value(sessionContextKey).(*models.Session)
	return session
}

// WithSystemPrompt overrides the system prompt for a single run.
func WithSystemPrompt(ctx context.Context, prompt string) context.Context {
	return context.WithValue(ctx, systemPromptContextKey, prompt)
}

func systemPromptFromContext(ctx context.Context) (string, bool) {
	prompt, ok := ctx.Value(systemPromptContextKey).(string)
	return prompt, ok
}

// WithModel overrides the model for a single run.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, modelContextKey, model)
}

func modelFromContext(ctx context.Context) (string, bool) {
	model, ok := ctx.Value(modelContextKey).(string)
	return model, ok
}

// WithToolAllowlist restricts tool use for a single run to the given glob
// patterns, narrowing (but never widening) LoopConfig.AllowedTools.
func WithToolAllowlist(ctx context.Context, patterns []string) context.Context {
	return context.WithValue(ctx, toolAllowlistContextKey, patterns)
}

func toolAllowlistFromContext(ctx context.Context) ([]string, bool) {
	patterns, ok := ctx.Value(toolAllowlistContextKey).([]string)
	return patterns, ok
}
