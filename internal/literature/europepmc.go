package literature

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/bioagent-ai/bioagent/internal/httpclient"
	"github.com/bioagent-ai/bioagent/internal/ratelimit"
)

const europePMCBaseURL = "https://www.ebi.ac.uk/europepmc/webservices/rest"

// EuropePMCClient searches the Europe PMC REST API.
type EuropePMCClient struct {
	client *httpclient.RateLimitedClient
}

// NewEuropePMCClient constructs a Europe PMC client.
func NewEuropePMCClient() *EuropePMCClient {
	cfg := httpclient.DefaultConfig(europePMCBaseURL)
	cfg.RateLimit = ratelimit.Config{RequestsPerSecond: 5, BurstSize: 5, Enabled: true}
	return &EuropePMCClient{client: httpclient.New(cfg)}
}

func (c *EuropePMCClient) Name() string { return "europe_pmc" }

type europePMCResponse struct {
	ResultList struct {
		Result []struct {
			Title      string `json:"title"`
			PubYear    string `json:"pubYear"`
			Journal    string `json:"journalTitle"`
			DOI        string `json:"doi"`
			PMID       string `json:"pmid"`
			PMCID      string `json:"pmcid"`
			Abstract   string `json:"abstractText"`
			CitedBy    string `json:"citedByCount"`
			IsOA       string `json:"isOpenAccess"`
			AuthorList struct {
				Author []struct {
					FullName  string `json:"fullName"`
					FirstName string `json:"firstName"`
					LastName  string `json:"lastName"`
				} `json:"author"`
			} `json:"authorList"`
		} `json:"result"`
	} `json:"resultList"`
}

// Search queries Europe PMC.
func (c *EuropePMCClient) Search(ctx context.Context, query string, opts SearchOptions) ([]Paper, error) {
	q := query
	if opts.YearFrom != 0 || opts.YearTo != 0 {
		start := opts.YearFrom
		if start == 0 {
			start = 1900
		}
		end := opts.YearTo
		if end == 0 {
			end = time.Now().Year()
		}
		q += fmt.Sprintf(" AND PUB_YEAR:[%d TO %d]", start, end)
	}

	maxResults := opts.MaxResults
	if maxResults <= 0 || maxResults > 100 {
		maxResults = 20
	}

	params := url.Values{}
	params.Set("query", q)
	params.Set("format", "json")
	params.Set("pageSize", strconv.Itoa(maxResults))
	params.Set("sort", "RELEVANCE")

	var resp europePMCResponse
	if err := c.client.FetchJSON(ctx, "/search?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("europe pmc search: %w", err)
	}

	papers := make([]Paper, 0, len(resp.ResultList.Result))
	for _, item := range resp.ResultList.Result {
		authors := make([]Author, 0, len(item.AuthorList.Author))
		for _, a := range item.AuthorList.Author {
			name := a.FullName
			if name == "" {
				name = fmt.Sprintf("%s %s", a.FirstName, a.LastName)
			}
			authors = append(authors, Author{Name: name})
		}

		year, _ := strconv.Atoi(item.PubYear)
		citedBy, _ := strconv.Atoi(item.CitedBy)

		papers = append(papers, Paper{
			Title:         item.Title,
			Authors:       authors,
			Year:          year,
			Journal:       item.Journal,
			DOI:           item.DOI,
			PMID:          item.PMID,
			PMCID:         item.PMCID,
			Abstract:      item.Abstract,
			CitationCount: citedBy,
			IsOpenAccess:  item.IsOA == "Y",
			Source:        "europe_pmc",
		})
	}
	return papers, nil
}
