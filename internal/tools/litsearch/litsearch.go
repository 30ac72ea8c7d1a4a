// Package litsearch exposes internal/literature's multi-source orchestrator
// as agent tools: searching across literature databases and walking a
// paper's citation graph.
package litsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bioagent-ai/bioagent/internal/agent"
	"github.com/bioagent-ai/bioagent/internal/literature"
)

// SearchTool wraps literature.Orchestrator.Search.
type SearchTool struct {
	orch *literature.Orchestrator
}

// NewSearchTool builds a literature search tool around orch.
func NewSearchTool(orch *literature.Orchestrator) *SearchTool {
	return &SearchTool{orch: orch}
}

func (t *SearchTool) Name() string { return "literature_search" }

func (t *SearchTool) Description() string {
	return "Search biomedical literature (PubMed, Semantic Scholar, Europe PMC, and related sources), deduplicated and ranked by relevance."
}

func (t *SearchTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search query.",
			},
			"sources": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Sources to query (pubmed, semantic_scholar, europe_pmc, crossref, biorxiv, medrxiv). Default: pubmed, semantic_scholar, europe_pmc.",
			},
			"max_results": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum results per source (default 20).",
				"minimum":     1,
			},
			"year_from": map[string]interface{}{
				"type":        "integer",
				"description": "Earliest publication year to include.",
			},
			"year_to": map[string]interface{}{
				"type":        "integer",
				"description": "Latest publication year to include.",
			},
		},
		"required": []string{"query"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *SearchTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Query      string   `json:"query"`
		Sources    []string `json:"sources"`
		MaxResults int      `json:"max_results"`
		YearFrom   int      `json:"year_from"`
		YearTo     int      `json:"year_to"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Query) == "" {
		return toolError("query is required"), nil
	}
	if input.MaxResults <= 0 {
		input.MaxResults = 20
	}

	results, err := t.orch.Search(ctx, input.Query, input.Sources, literature.SearchOptions{
		MaxResults: input.MaxResults,
		YearFrom:   input.YearFrom,
		YearTo:     input.YearTo,
	})
	if err != nil {
		return toolError(fmt.Sprintf("search failed: %v", err)), nil
	}

	return &agent.ToolResult{Content: renderPapers(results.Query, results.Papers, results.SourcesSearched)}, nil
}

// CitationNetworkTool wraps literature.Orchestrator.GetCitationNetwork.
type CitationNetworkTool struct {
	orch *literature.Orchestrator
}

// NewCitationNetworkTool builds a citation-network tool around orch.
func NewCitationNetworkTool(orch *literature.Orchestrator) *CitationNetworkTool {
	return &CitationNetworkTool{orch: orch}
}

func (t *CitationNetworkTool) Name() string { return "citation_network" }

func (t *CitationNetworkTool) Description() string {
	return "Explore the citation graph around a paper (by DOI, PMID, or Semantic Scholar ID): its citing papers, its references, or both."
}

func (t *CitationNetworkTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"paper_id": map[string]interface{}{
				"type":        "string",
				"description": "DOI, PMID, or Semantic Scholar ID of the seed paper.",
			},
			"direction": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"citations", "references", "both"},
				"description": "Which side of the citation graph to traverse (default: both).",
			},
			"max_results": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum papers per direction (default 20).",
				"minimum":     1,
			},
		},
		"required": []string{"paper_id"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *CitationNetworkTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		PaperID    string `json:"paper_id"`
		Direction  string `json:"direction"`
		MaxResults int    `json:"max_results"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.PaperID) == "" {
		return toolError("paper_id is required"), nil
	}
	if input.MaxResults <= 0 {
		input.MaxResults = 20
	}

	direction := literature.DirectionBoth
	switch input.Direction {
	case "citations":
		direction = literature.DirectionCitations
	case "references":
		direction = literature.DirectionReferences
	case "", "both":
		direction = literature.DirectionBoth
	default:
		return toolError(fmt.Sprintf("unknown direction %q", input.Direction)), nil
	}

	results, err := t.orch.GetCitationNetwork(ctx, input.PaperID, direction, input.MaxResults)
	if err != nil {
		return toolError(fmt.Sprintf("citation network lookup failed: %v", err)), nil
	}

	return &agent.ToolResult{Content: renderPapers(results.Query, results.Papers, results.SourcesSearched)}, nil
}

func renderPapers(query string, papers []literature.Paper, sources []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n", query)
	fmt.Fprintf(&b, "Sources searched: %s\n", strings.Join(sources, ", "))
	fmt.Fprintf(&b, "Results: %d\n\n", len(papers))
	for i, p := range papers {
		fmt.Fprintf(&b, "%d. %s (%s, %d)\n", i+1, p.Title, p.AuthorEtAl(), p.Year)
		if id := p.Identifier(); id != "" {
			fmt.Fprintf(&b, "   id: %s  journal: %s  citations: %d\n", id, p.Journal, p.CitationCount)
		}
		if p.Abstract != "" {
			abstract := p.Abstract
			if len(abstract) > 400 {
				abstract = abstract[:400] + "..."
			}
			fmt.Fprintf(&b, "   %s\n", abstract)
		}
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
