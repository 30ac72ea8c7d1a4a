package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/bioagent-ai/bioagent/pkg/models"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ToolRegistry manages available tools with thread-safe registration and lookup.
// Tools are registered by name and can be retrieved for execution during agent conversations.
type ToolRegistry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
}

// NewToolRegistry creates a new empty tool registry ready for tool registration.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a tool to the registry by its name, compiling its JSON schema
// once so Execute can validate parameters before every dispatch without
// recompiling on the hot path. A tool whose schema fails to compile is still
// registered - it can be called, but every Execute against it will fail
// validation with the compile error, which surfaces the bad schema loudly
// instead of silently skipping validation.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
	delete(r.schemas, tool.Name())

	raw := tool.Schema()
	if len(raw) == 0 {
		return
	}
	compiled, err := jsonschema.CompileString(tool.Name()+".schema.json", string(raw))
	if err != nil {
		r.schemas[tool.Name()] = nil
		return
	}
	r.schemas[tool.Name()] = compiled
}

// Unregister removes a tool from the registry by name.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	delete(r.schemas, name)
}

// Get returns a tool by name and a boolean indicating if it was found.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Tool parameter limits to prevent resource exhaustion
const (
	// MaxToolNameLength is the maximum length of a tool name.
	MaxToolNameLength = 256

	// MaxToolParamsSize is the maximum size of tool parameters JSON (10MB).
	MaxToolParamsSize = 10 << 20
)

// Execute runs a tool by name with the given JSON parameters.
// Returns an error result if the tool is not found or parameters are invalid.
func (r *ToolRegistry) Execute(ctx context.Context, name string, params json.RawMessage) (*ToolResult, error) {
	// Validate tool name
	if len(name) > MaxToolNameLength {
		return &ToolResult{
			Content: fmt.Sprintf("tool name exceeds maximum length of %d characters", MaxToolNameLength),
			IsError: true,
		}, nil
	}

	// Validate params size
	if len(params) > MaxToolParamsSize {
		return &ToolResult{
			Content: fmt.Sprintf("tool parameters exceed maximum size of %d bytes", MaxToolParamsSize),
			IsError: true,
		}, nil
	}

	r.mu.RLock()
	tool, ok := r.tools[name]
	schema, hasSchema := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return &ToolResult{
			Content: "tool not found: " + name,
			IsError: true,
		}, nil
	}

	if hasSchema {
		validated, err := validateAndApplyDefaults(schema, params)
		if err != nil {
			return &ToolResult{
				Content: fmt.Sprintf("invalid parameters for tool %q: %v", name, err),
				IsError: true,
			}, nil
		}
		params = validated
	}

	return tool.Execute(ctx, params)
}

// validateAndApplyDefaults decodes params, validates them against the tool's
// compiled schema (unknown fields are rejected whenever the schema declares
// additionalProperties: false, as every tool schema in this registry does),
// fills in declared defaults for fields the caller omitted, and re-encodes
// the result for the handler. schema is nil when a tool's Register call
// failed to compile its schema, which is treated as a validation failure
// rather than silently skipped.
func validateAndApplyDefaults(schema *jsonschema.Schema, params json.RawMessage) (json.RawMessage, error) {
	if schema == nil {
		return nil, fmt.Errorf("tool schema failed to compile")
	}

	var decoded any
	if len(params) == 0 {
		decoded = map[string]any{}
	} else if err := json.Unmarshal(params, &decoded); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}

	if err := schema.Validate(decoded); err != nil {
		return nil, err
	}

	decoded = applySchemaDefaults(schema, decoded)

	encoded, err := json.Marshal(decoded)
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}
	return encoded, nil
}

// applySchemaDefaults recursively fills in "default" values declared in
// schema for any object fields the caller left unset. It runs after
// Validate so it never overwrites a value the caller actually supplied.
func applySchemaDefaults(schema *jsonschema.Schema, value any) any {
	obj, ok := value.(map[string]any)
	if !ok || schema == nil {
		return value
	}
	for name, propSchema := range schema.Properties {
		if existing, present := obj[name]; present {
			obj[name] = applySchemaDefaults(propSchema, existing)
			continue
		}
		if propSchema.Default != nil {
			obj[name] = propSchema.Default
		}
	}
	return obj
}

// AsLLMTools returns all registered tools as a slice for passing to LLM providers.
func (r *ToolRegistry) AsLLMTools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	return tools
}

// filterToolsByAllowlist restricts tools to those matching a specialist's tool
// allowlist (glob-style patterns, see matchToolPattern). An empty allowlist
// means "no restriction" - the coordinator itself typically has no allowlist
// while each specialist is scoped to the tools its domain needs.
func filterToolsByAllowlist(allowlist []string, tools []Tool) []Tool {
	if len(allowlist) == 0 {
		return tools
	}
	filtered := make([]Tool, 0, len(tools))
	for _, tool := range tools {
		if matchesToolPatterns(allowlist, tool.Name()) {
			filtered = append(filtered, tool)
		}
	}
	return filtered
}

func matchesToolPatterns(patterns []string, toolName string) bool {
	if len(patterns) == 0 {
		return false
	}
	for _, pattern := range patterns {
		if matchToolPattern(pattern, toolName) {
			return true
		}
	}
	return false
}

func matchToolPattern(pattern, toolName string) bool {
	if pattern == "" || toolName == "" {
		return false
	}
	if pattern == "mcp:*" {
		return strings.HasPrefix(toolName, "mcp:")
	}
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(toolName, prefix)
	}
	return pattern == toolName
}

func guardToolResult(guard ToolResultGuard, toolName string, result models.ToolResult) models.ToolResult {
	return guard.Apply(toolName, result)
}

func guardToolResults(guard ToolResultGuard, toolCalls []models.ToolCall, results []models.ToolResult) []models.ToolResult {
	if !guard.active() {
		return results
	}
	if len(results) == 0 {
		return results
	}

	namesByID := make(map[string]string, len(toolCalls))
	for _, tc := range toolCalls {
		if tc.ID != "" {
			namesByID[tc.ID] = tc.Name
		}
	}

	guarded := make([]models.ToolResult, len(results))
	for i, res := range results {
		toolName := namesByID[res.ToolCallID]
		if toolName == "" && i < len(toolCalls) {
			toolName = toolCalls[i].Name
		}
		guarded[i] = guardToolResult(guard, toolName, res)
	}
	return guarded
}

// sessionLock is a refcounted per-session mutex. SessionLocks pools these so
// that concurrent runs against the same session serialize (the memory and
// transcript stores are single-writer-per-session) while unrelated sessions
// never contend with each other.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// SessionLocks is a pool of per-session mutexes used to enforce the
// single-writer-per-session invariant across concurrent AgenticLoop runs.
type SessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

// NewSessionLocks creates an empty session lock pool.
func NewSessionLocks() *SessionLocks {
	return &SessionLocks{locks: make(map[string]*sessionLock)}
}

// Lock acquires the lock for sessionID, blocking until it is available, and
// returns a function that releases it. An empty sessionID is a no-op lock.
func (s *SessionLocks) Lock(sessionID string) func() {
	if strings.TrimSpace(sessionID) == "" {
		return func() {}
	}

	s.mu.Lock()
	lock := s.locks[sessionID]
	if lock == nil {
		lock = &sessionLock{}
		s.locks[sessionID] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs <= 0 {
			delete(s.locks, sessionID)
		}
		s.mu.Unlock()
	}
}
