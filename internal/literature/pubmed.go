package literature

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bioagent-ai/bioagent/internal/httpclient"
	"github.com/bioagent-ai/bioagent/internal/ratelimit"
)

const pubmedBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// PubMedClient searches PubMed via NCBI's E-utilities (esearch -> esummary).
type PubMedClient struct {
	client *httpclient.RateLimitedClient
	apiKey string
	email  string
}

// NewPubMedClient constructs a PubMed client. NCBI allows 3 req/s without an
// API key and 10 req/s with one.
func NewPubMedClient(apiKey, email string) *PubMedClient {
	rps := 3.0
	if apiKey != "" {
		rps = 10.0
	}
	cfg := httpclient.DefaultConfig(pubmedBaseURL)
	cfg.RateLimit = ratelimit.Config{RequestsPerSecond: rps, BurstSize: int(rps), Enabled: true}
	return &PubMedClient{client: httpclient.New(cfg), apiKey: apiKey, email: email}
}

func (c *PubMedClient) Name() string { return "pubmed" }

type eSearchResponse struct {
	ESearchResult struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// eSummaryResponse's "result" map mixes a "uids" array in with per-PMID
// objects, so it is decoded as raw messages and only known PMIDs are
// re-decoded into esummaryItem.
type eSummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type esummaryItem struct {
	Title      string `json:"title"`
	PubDate    string `json:"pubdate"`
	Source     string `json:"source"`
	Authors    []struct {
		Name string `json:"name"`
	} `json:"authors"`
	ArticleIDs []struct {
		IDType string `json:"idtype"`
		Value  string `json:"value"`
	} `json:"articleids"`
}

func (c *PubMedClient) buildParams(endpoint string, params url.Values) string {
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	if c.email != "" {
		params.Set("email", c.email)
	}
	params.Set("retmode", "json")
	return fmt.Sprintf("/%s.fcgi?%s", endpoint, params.Encode())
}

// Search queries PubMed and fetches details for the matched PMIDs.
func (c *PubMedClient) Search(ctx context.Context, query string, opts SearchOptions) ([]Paper, error) {
	term := query
	if opts.YearFrom != 0 || opts.YearTo != 0 {
		start := opts.YearFrom
		if start == 0 {
			start = 1900
		}
		end := opts.YearTo
		if end == 0 {
			end = time.Now().Year()
		}
		term += fmt.Sprintf(" AND %d:%d[dp]", start, end)
	}

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", term)
	params.Set("retmax", strconv.Itoa(maxResults))
	params.Set("sort", "relevance")

	var search eSearchResponse
	if err := c.client.FetchJSON(ctx, c.buildParams("esearch", params), &search); err != nil {
		return nil, fmt.Errorf("pubmed esearch: %w", err)
	}
	if len(search.ESearchResult.IDList) == 0 {
		return nil, nil
	}

	return c.fetchPapers(ctx, search.ESearchResult.IDList)
}

func (c *PubMedClient) fetchPapers(ctx context.Context, pmids []string) ([]Paper, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))

	var summary eSummaryResponse
	if err := c.client.FetchJSON(ctx, c.buildParams("esummary", params), &summary); err != nil {
		return nil, fmt.Errorf("pubmed esummary: %w", err)
	}

	papers := make([]Paper, 0, len(pmids))
	for _, pmid := range pmids {
		raw, ok := summary.Result[pmid]
		if !ok {
			continue
		}
		var item esummaryItem
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}

		authors := make([]Author, 0, len(item.Authors))
		for _, a := range item.Authors {
			authors = append(authors, Author{Name: a.Name})
		}

		var doi string
		for _, aid := range item.ArticleIDs {
			if aid.IDType == "doi" {
				doi = aid.Value
				break
			}
		}

		year := 0
		if len(item.PubDate) >= 4 {
			year, _ = strconv.Atoi(item.PubDate[:4])
		}

		papers = append(papers, Paper{
			Title:   item.Title,
			Authors: authors,
			Year:    year,
			Journal: item.Source,
			DOI:     doi,
			PMID:    pmid,
			Source:  "pubmed",
		})
	}
	return papers, nil
}

// GetPaper fetches a single paper by PMID.
func (c *PubMedClient) GetPaper(ctx context.Context, pmid string) (*Paper, error) {
	papers, err := c.fetchPapers(ctx, []string{pmid})
	if err != nil {
		return nil, err
	}
	if len(papers) == 0 {
		return nil, nil
	}
	return &papers[0], nil
}
