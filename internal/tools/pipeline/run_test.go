package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestRunCommandRejectsShellMetachars(t *testing.T) {
	tool := NewRunCommandTool(Config{Workspace: t.TempDir()})
	params, _ := json.Marshal(map[string]interface{}{"command": "echo; rm -rf /"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected unsafe command to be rejected")
	}
}

func TestRunCommandRejectsDisallowedCommand(t *testing.T) {
	tool := NewRunCommandTool(Config{Workspace: t.TempDir(), AllowedCommands: []string{"samtools"}})
	params, _ := json.Marshal(map[string]interface{}{"command": "echo", "args": []string{"hi"}})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected non-allowlisted command to be rejected")
	}
}

func TestRunCommandCapturesOutput(t *testing.T) {
	tool := NewRunCommandTool(Config{Workspace: t.TempDir()})
	params, _ := json.Marshal(map[string]interface{}{"command": "echo", "args": []string{"hello", "world"}})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error result: %s", result.Content)
	}
	if !strings.Contains(result.Content, "hello world") {
		t.Fatalf("expected captured output, got %s", result.Content)
	}
}

func TestRunCommandRejectsWorkdirEscape(t *testing.T) {
	tool := NewRunCommandTool(Config{Workspace: t.TempDir()})
	params, _ := json.Marshal(map[string]interface{}{"command": "echo", "workdir": "../../etc"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected workdir escape to be rejected")
	}
}

func TestRunCommandReportsNonZeroExit(t *testing.T) {
	tool := NewRunCommandTool(Config{Workspace: t.TempDir()})
	params, _ := json.Marshal(map[string]interface{}{"command": "false"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected non-zero exit to be reported as an error result")
	}
}
