package literature

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/bioagent-ai/bioagent/internal/httpclient"
	"github.com/bioagent-ai/bioagent/internal/ratelimit"
)

const crossRefBaseURL = "https://api.crossref.org/works"

// CrossRefClient searches the CrossRef works API.
type CrossRefClient struct {
	client *httpclient.RateLimitedClient
}

// NewCrossRefClient constructs a CrossRef client. Supplying an email in the
// User-Agent opts into CrossRef's "polite pool" for better rate limits.
func NewCrossRefClient(email string) *CrossRefClient {
	cfg := httpclient.DefaultConfig(crossRefBaseURL)
	cfg.RateLimit = ratelimit.Config{RequestsPerSecond: 2, BurstSize: 2, Enabled: true}
	ua := "bioagent/1.0"
	if email != "" {
		ua = fmt.Sprintf("bioagent/1.0 (mailto:%s)", email)
	}
	cfg.Headers = map[string]string{"User-Agent": ua}
	return &CrossRefClient{client: httpclient.New(cfg)}
}

func (c *CrossRefClient) Name() string { return "crossref" }

type crossRefDateParts struct {
	DateParts [][]int `json:"date-parts"`
}

func (d crossRefDateParts) year() int {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return 0
	}
	return d.DateParts[0][0]
}

type crossRefItem struct {
	Title           []string `json:"title"`
	ContainerTitle  []string `json:"container-title"`
	DOI             string   `json:"DOI"`
	CitedByCount    int      `json:"is-referenced-by-count"`
	PublishedPrint  crossRefDateParts `json:"published-print"`
	PublishedOnline crossRefDateParts `json:"published-online"`
	Author          []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
	} `json:"author"`
}

func (item crossRefItem) toPaper() Paper {
	authors := make([]Author, 0, len(item.Author))
	for _, a := range item.Author {
		authors = append(authors, Author{Name: fmt.Sprintf("%s %s", a.Given, a.Family)})
	}

	title := ""
	if len(item.Title) > 0 {
		title = item.Title[0]
	}
	journal := ""
	if len(item.ContainerTitle) > 0 {
		journal = item.ContainerTitle[0]
	}

	year := item.PublishedPrint.year()
	if year == 0 {
		year = item.PublishedOnline.year()
	}

	return Paper{
		Title:         title,
		Authors:       authors,
		Year:          year,
		Journal:       journal,
		DOI:           item.DOI,
		CitationCount: item.CitedByCount,
		Source:        "crossref",
	}
}

type crossRefSearchResponse struct {
	Message struct {
		Items []crossRefItem `json:"items"`
	} `json:"message"`
}

// Search queries CrossRef.
func (c *CrossRefClient) Search(ctx context.Context, query string, opts SearchOptions) ([]Paper, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 || maxResults > 100 {
		maxResults = 20
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("rows", strconv.Itoa(maxResults))
	params.Set("sort", "relevance")

	var filter string
	if opts.YearFrom != 0 {
		filter = fmt.Sprintf("from-pub-date:%d", opts.YearFrom)
	}
	if opts.YearTo != 0 {
		if filter != "" {
			filter += ","
		}
		filter += fmt.Sprintf("until-pub-date:%d", opts.YearTo)
	}
	if filter != "" {
		params.Set("filter", filter)
	}

	var resp crossRefSearchResponse
	if err := c.client.FetchJSON(ctx, "?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("crossref search: %w", err)
	}

	papers := make([]Paper, 0, len(resp.Message.Items))
	for _, item := range resp.Message.Items {
		papers = append(papers, item.toPaper())
	}
	return papers, nil
}

type crossRefGetResponse struct {
	Message crossRefItem `json:"message"`
}

// GetByDOI fetches a single work by DOI.
func (c *CrossRefClient) GetByDOI(ctx context.Context, doi string) (*Paper, error) {
	var resp crossRefGetResponse
	if err := c.client.FetchJSON(ctx, "/"+url.PathEscape(doi), &resp); err != nil {
		return nil, err
	}
	paper := resp.Message.toPaper()
	if paper.Title == "" && paper.DOI == "" {
		return nil, nil
	}
	return &paper, nil
}
