// Package pipeline exposes a safety-checked command runner tool so the
// pipeline specialist can invoke bioinformatics CLI tools (samtools,
// bcftools, fastqc, ...) against files in the workspace.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bioagent-ai/bioagent/internal/agent"
	execsafety "github.com/bioagent-ai/bioagent/internal/exec"
)

// Config controls the run-command tool's defaults and the allowlist of
// executables it will invoke.
type Config struct {
	Workspace string

	// AllowedCommands restricts Execute to these executable names. An empty
	// list allows any bare name that passes IsSafeExecutableValue — the
	// allowlist is an additional restriction, not a replacement for it.
	AllowedCommands []string

	// Timeout bounds a single invocation. Zero means DefaultTimeout.
	Timeout time.Duration

	// MaxOutputBytes caps combined stdout+stderr captured per invocation.
	// Zero means DefaultMaxOutputBytes.
	MaxOutputBytes int
}

const (
	DefaultTimeout        = 5 * time.Minute
	DefaultMaxOutputBytes = 1 << 20 // 1MiB
)

// RunCommandTool runs an allowlisted executable with validated arguments,
// rooted at a workspace directory, and reports combined output and exit
// status back to the agent loop.
type RunCommandTool struct {
	workspace string
	allowed   map[string]bool
	timeout   time.Duration
	maxOutput int
}

// NewRunCommandTool builds a run-command tool scoped to cfg.Workspace.
func NewRunCommandTool(cfg Config) *RunCommandTool {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxOutput := cfg.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutputBytes
	}

	var allowed map[string]bool
	if len(cfg.AllowedCommands) > 0 {
		allowed = make(map[string]bool, len(cfg.AllowedCommands))
		for _, name := range cfg.AllowedCommands {
			allowed[name] = true
		}
	}

	return &RunCommandTool{
		workspace: cfg.Workspace,
		allowed:   allowed,
		timeout:   timeout,
		maxOutput: maxOutput,
	}
}

func (t *RunCommandTool) Name() string { return "run_command" }

func (t *RunCommandTool) Description() string {
	return "Run a bioinformatics command-line tool (e.g. samtools, bcftools, fastqc) against files in the workspace, and return its combined stdout/stderr and exit code."
}

func (t *RunCommandTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "Executable name (e.g. samtools), no shell metacharacters.",
			},
			"args": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Arguments passed to the executable, in order.",
			},
			"workdir": map[string]interface{}{
				"type":        "string",
				"description": "Working directory relative to the workspace (default: workspace root).",
			},
		},
		"required": []string{"command"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

// Execute validates the executable and every argument before invoking
// os/exec, and never runs the command through a shell.
func (t *RunCommandTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Command string   `json:"command"`
		Args    []string `json:"args"`
		Workdir string   `json:"workdir"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	command, err := execsafety.SanitizeExecutableValue(input.Command)
	if err != nil {
		return toolError(fmt.Sprintf("unsafe command: %v", err)), nil
	}
	if execsafety.IsLikelyPath(command) {
		return toolError("command must be a bare executable name, not a path"), nil
	}
	if t.allowed != nil && !t.allowed[command] {
		return toolError(fmt.Sprintf("command %q is not in the allowlist", command)), nil
	}

	args, err := execsafety.SanitizeArguments(input.Args)
	if err != nil {
		return toolError(fmt.Sprintf("unsafe argument: %v", err)), nil
	}

	workdir := t.workspace
	if strings.TrimSpace(input.Workdir) != "" {
		resolved := filepath.Join(t.workspace, input.Workdir)
		rel, err := filepath.Rel(t.workspace, resolved)
		if err != nil || strings.HasPrefix(rel, "..") {
			return toolError("workdir escapes the workspace"), nil
		}
		workdir = resolved
	}

	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, command, args...)
	cmd.Dir = workdir
	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	runErr := cmd.Run()

	output := combined.String()
	truncated := false
	if len(output) > t.maxOutput {
		output = output[:t.maxOutput]
		truncated = true
	}

	exitCode := 0
	isError := false
	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		exitCode = exitErr.ExitCode()
		isError = true
	default:
		return toolError(fmt.Sprintf("run %s: %v", command, runErr)), nil
	}

	result := map[string]interface{}{
		"command":   command,
		"exit_code": exitCode,
		"output":    output,
		"truncated": truncated,
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}

	return &agent.ToolResult{Content: string(payload), IsError: isError}, nil
}

func toolError(message string) *agent.ToolResult {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return &agent.ToolResult{Content: message, IsError: true}
	}
	return &agent.ToolResult{Content: string(payload), IsError: true}
}
