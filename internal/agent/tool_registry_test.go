package agent

import (
	"context"
	"encoding/json"
	"testing"
)

// schemaTool implements Tool with a caller-supplied JSON schema, for
// exercising ToolRegistry's compile-at-Register / validate-at-Execute path.
type schemaTool struct {
	name    string
	schema  string
	execute func(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

func (t *schemaTool) Name() string        { return t.name }
func (t *schemaTool) Description() string { return "schema test tool" }
func (t *schemaTool) Schema() json.RawMessage {
	if t.schema == "" {
		return nil
	}
	return json.RawMessage(t.schema)
}
func (t *schemaTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	return t.execute(ctx, params)
}

func echoParamsTool(name, schema string) *schemaTool {
	t := &schemaTool{name: name, schema: schema}
	t.execute = func(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
		return &ToolResult{Content: string(params)}, nil
	}
	return t
}

func TestExecuteRejectsParamsMissingRequiredField(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(echoParamsTool("lookup_gene", `{
		"type": "object",
		"required": ["symbol"],
		"properties": {"symbol": {"type": "string"}},
		"additionalProperties": false
	}`))

	result, err := registry.Execute(context.Background(), "lookup_gene", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected IsError for missing required field, got %+v", result)
	}
}

func TestExecuteRejectsUnknownField(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(echoParamsTool("lookup_gene", `{
		"type": "object",
		"required": ["symbol"],
		"properties": {"symbol": {"type": "string"}},
		"additionalProperties": false
	}`))

	result, err := registry.Execute(context.Background(), "lookup_gene", json.RawMessage(`{"symbol": "TP53", "bogus": 1}`))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected IsError for unknown field, got %+v", result)
	}
}

func TestExecuteAppliesSchemaDefaults(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(echoParamsTool("search_literature", `{
		"type": "object",
		"required": ["query"],
		"properties": {
			"query": {"type": "string"},
			"limit": {"type": "integer", "default": 10}
		},
		"additionalProperties": false
	}`))

	result, err := registry.Execute(context.Background(), "search_literature", json.RawMessage(`{"query": "BRCA1"}`))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error result: %+v", result)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(result.Content), &decoded); err != nil {
		t.Fatalf("failed to decode echoed params: %v", err)
	}
	limit, ok := decoded["limit"].(float64)
	if !ok || limit != 10 {
		t.Fatalf("expected default limit=10 to be applied, got %+v", decoded)
	}
}

func TestExecutePassesThroughValidParams(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(echoParamsTool("lookup_gene", `{
		"type": "object",
		"required": ["symbol"],
		"properties": {"symbol": {"type": "string"}},
		"additionalProperties": false
	}`))

	result, err := registry.Execute(context.Background(), "lookup_gene", json.RawMessage(`{"symbol": "TP53"}`))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error result: %+v", result)
	}
}

func TestExecuteWithEmptySchemaSkipsValidation(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(echoParamsTool("no_schema_tool", ""))

	result, err := registry.Execute(context.Background(), "no_schema_tool", json.RawMessage(`{"anything": true}`))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success for tool with no schema, got error result: %+v", result)
	}
}

func TestExecuteReportsUncompilableSchema(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(echoParamsTool("broken_tool", `{"type": "not-a-real-type"`))

	result, err := registry.Execute(context.Background(), "broken_tool", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected IsError for a tool whose schema failed to compile, got %+v", result)
	}
}

func TestUnregisterClearsCompiledSchema(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(echoParamsTool("lookup_gene", `{"type": "object", "required": ["symbol"]}`))
	registry.Unregister("lookup_gene")

	if _, ok := registry.Get("lookup_gene"); ok {
		t.Fatal("expected tool to be unregistered")
	}
}
