package literature

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bioagent-ai/bioagent/internal/httpclient"
	"github.com/bioagent-ai/bioagent/internal/ratelimit"
)

const bioRxivBaseURL = "https://api.biorxiv.org"

// BioRxivClient searches bioRxiv/medRxiv preprints. The API only supports
// date-range content retrieval, not keyword search, so matching is done
// client-side against title and abstract, same as the reference
// implementation.
type BioRxivClient struct {
	client *httpclient.RateLimitedClient
	server string
}

// NewBioRxivClient constructs a preprint client for the given server
// ("biorxiv" or "medrxiv").
func NewBioRxivClient(server string) *BioRxivClient {
	if server == "" {
		server = "biorxiv"
	}
	cfg := httpclient.DefaultConfig(bioRxivBaseURL)
	cfg.RateLimit = ratelimit.Config{RequestsPerSecond: 2, BurstSize: 2, Enabled: true}
	return &BioRxivClient{client: httpclient.New(cfg), server: server}
}

func (c *BioRxivClient) Name() string { return c.server }

type bioRxivResponse struct {
	Collection []struct {
		Title    string `json:"title"`
		Abstract string `json:"abstract"`
		Date     string `json:"date"`
		DOI      string `json:"doi"`
		Authors  string `json:"authors"`
	} `json:"collection"`
}

// Search fetches the date-range preprint listing and filters by keyword.
func (c *BioRxivClient) Search(ctx context.Context, query string, opts SearchOptions) ([]Paper, error) {
	startYear := opts.YearFrom
	if startYear == 0 {
		startYear = 2019
	}
	endYear := opts.YearTo
	if endYear == 0 {
		endYear = time.Now().Year()
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	path := fmt.Sprintf("/details/%s/%d-01-01/%d-12-31/0/json", c.server, startYear, endYear)
	var resp bioRxivResponse
	if err := c.client.FetchJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("%s search: %w", c.server, err)
	}

	terms := strings.Fields(strings.ToLower(query))
	var papers []Paper
	for _, item := range resp.Collection {
		title := strings.ToLower(item.Title)
		abstract := strings.ToLower(item.Abstract)
		matched := false
		for _, term := range terms {
			if strings.Contains(title, term) || strings.Contains(abstract, term) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		var authors []Author
		for _, name := range strings.Split(item.Authors, "; ") {
			if name != "" {
				authors = append(authors, Author{Name: name})
			}
		}

		year := 0
		if len(item.Date) >= 4 {
			year, _ = strconv.Atoi(item.Date[:4])
		}

		papers = append(papers, Paper{
			Title:        item.Title,
			Authors:      authors,
			Year:         year,
			Journal:      c.server + " (preprint)",
			DOI:          item.DOI,
			Abstract:     item.Abstract,
			IsOpenAccess: true,
			Source:       c.server,
		})

		if len(papers) >= maxResults {
			break
		}
	}
	return papers, nil
}
