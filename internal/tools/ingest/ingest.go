// Package ingest exposes internal/ingest's fetch/detect/profile pipeline as
// an agent tool: ingesting a local path, URL, or s3:// object and returning
// a quality-annotated profile ready to feed back into a conversation turn.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bioagent-ai/bioagent/internal/agent"
	domainingest "github.com/bioagent-ai/bioagent/internal/ingest"
)

// Tool wraps a domainingest.Ingestor as an agent tool.
type Tool struct {
	ingestor *domainingest.Ingestor
}

// NewTool builds an ingest tool around ingestor.
func NewTool(ingestor *domainingest.Ingestor) *Tool {
	return &Tool{ingestor: ingestor}
}

func (t *Tool) Name() string { return "ingest_file" }

func (t *Tool) Description() string {
	return "Fetch a local path, URL, or s3:// object into the workspace, detect its bioinformatics file format, and profile it (stats, preview, quality flags, suggested analyses)."
}

func (t *Tool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"input": map[string]interface{}{
				"type":        "string",
				"description": "Local path, http(s):// URL, or s3:// URI to ingest.",
			},
			"label": map[string]interface{}{
				"type":        "string",
				"description": "Registry key to file this ingestion under (default: the fetched file name).",
			},
		},
		"required": []string{"input"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Input string `json:"input"`
		Label string `json:"label"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Input) == "" {
		return toolError("input is required"), nil
	}

	profile, err := t.ingestor.Ingest(ctx, input.Input, input.Label)
	if err != nil {
		return toolError(fmt.Sprintf("ingest failed: %v", err)), nil
	}

	result := domainingest.IngestResult{
		Profiles:            []domainingest.FileProfile{profile},
		DatasetSummary:      fmt.Sprintf("**File**: %s (%s, %s)\n**Quality**: %s", profile.FileName, profile.Format.Name, profile.SizeHuman, profile.OverallQuality),
		RecommendedWorkflow: firstSuggestion(profile),
	}

	return &agent.ToolResult{Content: result.ToAgentContext() + "\n\n" + profilePreview(profile)}, nil
}

func firstSuggestion(profile domainingest.FileProfile) string {
	if len(profile.SuggestedAnalyses) == 0 {
		return ""
	}
	return profile.SuggestedAnalyses[0].Name
}

func profilePreview(profile domainingest.FileProfile) string {
	var b strings.Builder
	if profile.Preview != "" {
		b.WriteString("**Preview**:\n")
		b.WriteString(profile.Preview)
		b.WriteString("\n")
	}
	for _, flag := range profile.QualityFlags {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", flag.Severity, flag.Code, flag.Message)
	}
	return b.String()
}

func toolError(message string) *agent.ToolResult {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return &agent.ToolResult{Content: message, IsError: true}
	}
	return &agent.ToolResult{Content: string(payload), IsError: true}
}
