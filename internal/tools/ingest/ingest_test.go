package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	domainingest "github.com/bioagent-ai/bioagent/internal/ingest"
)

func TestIngestToolRequiresInput(t *testing.T) {
	workspace := t.TempDir()
	fetcher, err := domainingest.NewFetcher(workspace, nil)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	tool := NewTool(domainingest.NewIngestor(workspace, fetcher))

	params, _ := json.Marshal(map[string]interface{}{"input": ""})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected empty input to be rejected")
	}
}

func TestIngestToolProfilesLocalFile(t *testing.T) {
	workspace := t.TempDir()
	src := filepath.Join(workspace, "reads.csv")
	if err := os.WriteFile(src, []byte("gene,count\nTP53,120\nBRCA1,80\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	fetcher, err := domainingest.NewFetcher(workspace, nil)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	tool := NewTool(domainingest.NewIngestor(workspace, fetcher))

	params, _ := json.Marshal(map[string]interface{}{"input": src, "label": "counts"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %s", result.Content)
	}
	if !strings.Contains(result.Content, "reads.csv") {
		t.Fatalf("expected profile to mention the file name, got %s", result.Content)
	}
}
