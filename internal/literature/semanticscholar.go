package literature

import (
	"context"
	"fmt"
	"net/url"

	"github.com/bioagent-ai/bioagent/internal/httpclient"
	"github.com/bioagent-ai/bioagent/internal/ratelimit"
)

const s2BaseURL = "https://api.semanticscholar.org/graph/v1"

const s2Fields = "paperId,title,authors,year,venue,citationCount,referenceCount,isOpenAccess,openAccessPdf,externalIds,abstract"

// SemanticScholarClient searches the Semantic Scholar Graph API and exposes
// its citation-network endpoints (citations, references, recommendations).
type SemanticScholarClient struct {
	client *httpclient.RateLimitedClient
}

// NewSemanticScholarClient constructs a Semantic Scholar client. Without an
// API key, S2 allows roughly 100 requests per 5 minutes (~0.3 req/s).
func NewSemanticScholarClient(apiKey string) *SemanticScholarClient {
	cfg := httpclient.DefaultConfig(s2BaseURL)
	cfg.RateLimit = ratelimit.Config{RequestsPerSecond: 0.3, BurstSize: 2, Enabled: true}
	if apiKey != "" {
		cfg.Headers = map[string]string{"x-api-key": apiKey}
	}
	return &SemanticScholarClient{client: httpclient.New(cfg)}
}

func (c *SemanticScholarClient) Name() string { return "semantic_scholar" }

type s2Paper struct {
	PaperID       string `json:"paperId"`
	Title         string `json:"title"`
	Year          int    `json:"year"`
	Venue         string `json:"venue"`
	CitationCount int    `json:"citationCount"`
	RefCount      int    `json:"referenceCount"`
	IsOA          bool   `json:"isOpenAccess"`
	Abstract      string `json:"abstract"`
	Authors       []struct {
		Name string `json:"name"`
	} `json:"authors"`
	ExternalIDs struct {
		DOI    string `json:"DOI"`
		PubMed string `json:"PubMed"`
	} `json:"externalIds"`
	OpenAccessPDF struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
}

func (p s2Paper) toPaper() Paper {
	authors := make([]Author, 0, len(p.Authors))
	for _, a := range p.Authors {
		authors = append(authors, Author{Name: a.Name})
	}
	return Paper{
		Title:          p.Title,
		Authors:        authors,
		Year:           p.Year,
		Journal:        p.Venue,
		DOI:            p.ExternalIDs.DOI,
		PMID:           p.ExternalIDs.PubMed,
		S2ID:           p.PaperID,
		Abstract:       p.Abstract,
		CitationCount:  p.CitationCount,
		ReferenceCount: p.RefCount,
		IsOpenAccess:   p.IsOA,
		PDFURL:         p.OpenAccessPDF.URL,
		Source:         "semantic_scholar",
	}
}

type s2SearchResponse struct {
	Data []s2Paper `json:"data"`
}

// Search queries the Semantic Scholar paper search endpoint.
func (c *SemanticScholarClient) Search(ctx context.Context, query string, opts SearchOptions) ([]Paper, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 || maxResults > 100 {
		maxResults = 20
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", fmt.Sprintf("%d", maxResults))
	params.Set("fields", s2Fields)
	if opts.YearFrom != 0 {
		if opts.YearTo != 0 {
			params.Set("year", fmt.Sprintf("%d-%d", opts.YearFrom, opts.YearTo))
		} else {
			params.Set("year", fmt.Sprintf("%d-", opts.YearFrom))
		}
	}

	var resp s2SearchResponse
	if err := c.client.FetchJSON(ctx, "/paper/search?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("semantic scholar search: %w", err)
	}

	papers := make([]Paper, 0, len(resp.Data))
	for _, p := range resp.Data {
		papers = append(papers, p.toPaper())
	}
	return papers, nil
}

// GetPaper fetches a single paper by Semantic Scholar ID (or "DOI:<doi>").
func (c *SemanticScholarClient) GetPaper(ctx context.Context, paperID string) (*Paper, error) {
	var p s2Paper
	path := fmt.Sprintf("/paper/%s?fields=%s", url.PathEscape(paperID), s2Fields)
	if err := c.client.FetchJSON(ctx, path, &p); err != nil {
		return nil, err
	}
	if p.PaperID == "" && p.Title == "" {
		return nil, nil
	}
	paper := p.toPaper()
	return &paper, nil
}

type s2CitationsResponse struct {
	Data []struct {
		CitingPaper *s2Paper `json:"citingPaper"`
	} `json:"data"`
}

type s2ReferencesResponse struct {
	Data []struct {
		CitedPaper *s2Paper `json:"citedPaper"`
	} `json:"data"`
}

// GetCitations returns papers that cite the given paper.
func (c *SemanticScholarClient) GetCitations(ctx context.Context, paperID string, maxResults int) ([]Paper, error) {
	if maxResults <= 0 {
		maxResults = 20
	}
	path := fmt.Sprintf("/paper/%s/citations?fields=paperId,title,authors,year,venue,citationCount,externalIds&limit=%d", url.PathEscape(paperID), maxResults)
	var resp s2CitationsResponse
	if err := c.client.FetchJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	var papers []Paper
	for _, item := range resp.Data {
		if item.CitingPaper != nil {
			papers = append(papers, item.CitingPaper.toPaper())
		}
	}
	return papers, nil
}

// GetReferences returns papers the given paper cites.
func (c *SemanticScholarClient) GetReferences(ctx context.Context, paperID string, maxResults int) ([]Paper, error) {
	if maxResults <= 0 {
		maxResults = 20
	}
	path := fmt.Sprintf("/paper/%s/references?fields=paperId,title,authors,year,venue,citationCount,externalIds&limit=%d", url.PathEscape(paperID), maxResults)
	var resp s2ReferencesResponse
	if err := c.client.FetchJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	var papers []Paper
	for _, item := range resp.Data {
		if item.CitedPaper != nil {
			papers = append(papers, item.CitedPaper.toPaper())
		}
	}
	return papers, nil
}

type s2RecommendationsResponse struct {
	RecommendedPapers []s2Paper `json:"recommendedPapers"`
}

// GetRecommendations returns ML-based paper recommendations seeded from a
// single paper.
func (c *SemanticScholarClient) GetRecommendations(ctx context.Context, paperID string, maxResults int) ([]Paper, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	path := fmt.Sprintf("/recommendations/v1/papers/forpaper/%s?fields=paperId,title,authors,year,venue,citationCount,externalIds&limit=%d", url.PathEscape(paperID), maxResults)
	var resp s2RecommendationsResponse
	if err := c.client.FetchJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	papers := make([]Paper, 0, len(resp.RecommendedPapers))
	for _, p := range resp.RecommendedPapers {
		papers = append(papers, p.toPaper())
	}
	return papers, nil
}
