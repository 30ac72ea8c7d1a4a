package literature

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// OrchestratorConfig carries credentials shared across source clients.
type OrchestratorConfig struct {
	NCBIAPIKey string
	NCBIEmail  string
	S2APIKey   string
}

// DefaultSources is used when a search does not specify which sources to
// query.
var DefaultSources = []string{"pubmed", "semantic_scholar", "europe_pmc"}

// Orchestrator fans a query out across multiple literature sources in
// parallel, then deduplicates and ranks the combined results.
type Orchestrator struct {
	sources    map[string]Source
	s2         *SemanticScholarClient
	crossref   *CrossRefClient
	unpaywall  *UnpaywallClient
}

// NewOrchestrator constructs an Orchestrator with one client per known
// source, sharing credentials across them.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	s2 := NewSemanticScholarClient(cfg.S2APIKey)
	crossref := NewCrossRefClient(cfg.NCBIEmail)

	sources := map[string]Source{
		"pubmed":           NewPubMedClient(cfg.NCBIAPIKey, cfg.NCBIEmail),
		"semantic_scholar": s2,
		"europe_pmc":       NewEuropePMCClient(),
		"crossref":         crossref,
		"biorxiv":          NewBioRxivClient("biorxiv"),
		"medrxiv":          NewBioRxivClient("medrxiv"),
	}

	return &Orchestrator{
		sources:   sources,
		s2:        s2,
		crossref:  crossref,
		unpaywall: NewUnpaywallClient(cfg.NCBIEmail),
	}
}

// sourceResult pairs a source's results with any error, so Search can fan
// out without one failing source aborting the others.
type sourceResult struct {
	source string
	papers []Paper
	err    error
}

// Search queries the named sources in parallel (or DefaultSources if none
// are given), then deduplicates and ranks the combined papers. A source
// that errors is skipped; it never aborts the whole search.
func (o *Orchestrator) Search(ctx context.Context, query string, sources []string, opts SearchOptions) (*SearchResults, error) {
	if len(sources) == 0 {
		sources = DefaultSources
	}

	results := make([]sourceResult, len(sources))
	var wg sync.WaitGroup
	for i, name := range sources {
		src, ok := o.sources[name]
		if !ok {
			results[i] = sourceResult{source: name, err: fmt.Errorf("unknown source: %s", name)}
			continue
		}
		wg.Add(1)
		go func(i int, src Source, name string) {
			defer wg.Done()
			papers, err := src.Search(ctx, query, opts)
			results[i] = sourceResult{source: name, papers: papers, err: err}
		}(i, src, name)
	}
	wg.Wait()

	var all []Paper
	for _, r := range results {
		if r.err != nil {
			continue
		}
		all = append(all, r.papers...)
	}

	deduped := Deduplicate(all)
	ranked := Rank(deduped, query)

	return &SearchResults{
		Papers:          ranked,
		Query:           query,
		TotalFound:      len(ranked),
		SourcesSearched: sources,
	}, nil
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]`)

// dedupKey returns a paper's identity key, preferring DOI over PMID over a
// normalized title prefix.
func dedupKey(p Paper) string {
	switch {
	case p.DOI != "":
		return "doi:" + strings.ToLower(p.DOI)
	case p.PMID != "":
		return "pmid:" + p.PMID
	default:
		normalized := nonAlphanumeric.ReplaceAllString(strings.ToLower(p.Title), "")
		if len(normalized) > 100 {
			normalized = normalized[:100]
		}
		return "title:" + normalized
	}
}

// Deduplicate collapses papers that share a DOI, PMID, or normalized title
// prefix. The first occurrence of each key wins, but any field left empty
// by the winner is backfilled from later duplicates, so e.g. a PubMed
// result missing an abstract picks one up from a Semantic Scholar duplicate.
func Deduplicate(papers []Paper) []Paper {
	order := make([]string, 0, len(papers))
	byKey := make(map[string]*Paper, len(papers))

	for i := range papers {
		p := papers[i]
		key := dedupKey(p)
		if existing, ok := byKey[key]; ok {
			mergeInto(existing, p)
			continue
		}
		order = append(order, key)
		byKey[key] = &papers[i]
	}

	unique := make([]Paper, 0, len(order))
	for _, key := range order {
		unique = append(unique, *byKey[key])
	}
	return unique
}

// mergeInto backfills zero-valued fields of dst from src, without
// overwriting anything dst already has.
func mergeInto(dst *Paper, src Paper) {
	if dst.Abstract == "" {
		dst.Abstract = src.Abstract
	}
	if dst.Journal == "" {
		dst.Journal = src.Journal
	}
	if dst.Year == 0 {
		dst.Year = src.Year
	}
	if dst.DOI == "" {
		dst.DOI = src.DOI
	}
	if dst.PMID == "" {
		dst.PMID = src.PMID
	}
	if dst.PMCID == "" {
		dst.PMCID = src.PMCID
	}
	if dst.S2ID == "" {
		dst.S2ID = src.S2ID
	}
	if dst.PDFURL == "" {
		dst.PDFURL = src.PDFURL
	}
	if len(dst.Authors) == 0 {
		dst.Authors = src.Authors
	}
	if src.CitationCount > dst.CitationCount {
		dst.CitationCount = src.CitationCount
	}
	if src.IsOpenAccess {
		dst.IsOpenAccess = true
	}
}

// Rank scores papers by title-term overlap with the query (weight 10),
// log-scaled citation count (weight 5), and a recency bonus for papers
// published within the last 5 years, then sorts by score descending.
func Rank(papers []Paper, query string) []Paper {
	queryTerms := make(map[string]bool)
	for _, t := range strings.Fields(strings.ToLower(query)) {
		queryTerms[t] = true
	}
	currentYear := time.Now().Year()

	for i := range papers {
		p := &papers[i]
		var score float64

		titleOverlap := 0
		seen := make(map[string]bool)
		for _, t := range strings.Fields(strings.ToLower(p.Title)) {
			if queryTerms[t] && !seen[t] {
				titleOverlap++
				seen[t] = true
			}
		}
		score += float64(titleOverlap) * 10

		if p.CitationCount > 0 {
			score += math.Log10(float64(p.CitationCount)+1) * 5
		}

		if p.Year != 0 {
			age := currentYear - p.Year
			if bonus := 5 - age; bonus > 0 {
				score += float64(bonus) * 2
			}
		}

		p.RelevanceScore = score
	}

	sort.SliceStable(papers, func(i, j int) bool {
		if papers[i].RelevanceScore != papers[j].RelevanceScore {
			return papers[i].RelevanceScore > papers[j].RelevanceScore
		}
		if papers[i].CitationCount != papers[j].CitationCount {
			return papers[i].CitationCount > papers[j].CitationCount
		}
		return papers[i].Year > papers[j].Year
	})
	return papers
}

// GetPaper fetches a paper by identifier, auto-detecting whether it is a
// DOI, PMID, or Semantic Scholar ID.
func (o *Orchestrator) GetPaper(ctx context.Context, identifier string) (*Paper, error) {
	idType := classifyIdentifier(identifier)

	switch idType {
	case "doi":
		paper, err := o.s2.GetPaper(ctx, "DOI:"+identifier)
		if err == nil && paper != nil {
			return paper, nil
		}
		return o.crossref.GetByDOI(ctx, identifier)
	case "pmid":
		pubmed := o.sources["pubmed"].(*PubMedClient)
		return pubmed.GetPaper(ctx, identifier)
	default:
		return o.s2.GetPaper(ctx, identifier)
	}
}

func classifyIdentifier(identifier string) string {
	switch {
	case strings.HasPrefix(identifier, "10."):
		return "doi"
	case isAllDigits(identifier):
		return "pmid"
	default:
		return "s2"
	}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// CitationDirection selects which side of the citation graph to traverse.
type CitationDirection string

const (
	DirectionCitations  CitationDirection = "citations"
	DirectionReferences CitationDirection = "references"
	DirectionBoth       CitationDirection = "both"
)

// GetCitationNetwork explores one hop of the citation graph around a paper,
// via Semantic Scholar only (the only source here that exposes citation
// edges).
func (o *Orchestrator) GetCitationNetwork(ctx context.Context, paperID string, direction CitationDirection, maxResults int) (*SearchResults, error) {
	if strings.HasPrefix(paperID, "10.") {
		paperID = "DOI:" + paperID
	}

	var papers []Paper
	if direction == DirectionCitations || direction == DirectionBoth {
		citing, err := o.s2.GetCitations(ctx, paperID, maxResults)
		if err != nil {
			return nil, err
		}
		papers = append(papers, citing...)
	}
	if direction == DirectionReferences || direction == DirectionBoth {
		refs, err := o.s2.GetReferences(ctx, paperID, maxResults)
		if err != nil {
			return nil, err
		}
		papers = append(papers, refs...)
	}

	deduped := Deduplicate(papers)
	return &SearchResults{
		Papers:          deduped,
		Query:           "citation network for " + paperID,
		TotalFound:      len(deduped),
		SourcesSearched: []string{"semantic_scholar"},
	}, nil
}

// GetRecommendations returns ML-based paper recommendations seeded from a
// single paper, via Semantic Scholar.
func (o *Orchestrator) GetRecommendations(ctx context.Context, paperID string, maxResults int) ([]Paper, error) {
	if strings.HasPrefix(paperID, "10.") {
		paperID = "DOI:" + paperID
	}
	return o.s2.GetRecommendations(ctx, paperID, maxResults)
}

// FindOpenAccessPDF looks up the best-known open-access PDF URL for a DOI.
func (o *Orchestrator) FindOpenAccessPDF(ctx context.Context, doi string) (string, error) {
	return o.unpaywall.FindOAPDF(ctx, doi)
}
