package literature

import (
	"context"
	"fmt"
	"net/url"

	"github.com/bioagent-ai/bioagent/internal/httpclient"
	"github.com/bioagent-ai/bioagent/internal/ratelimit"
)

const unpaywallBaseURL = "https://api.unpaywall.org/v2"

// UnpaywallClient looks up open-access PDF locations for a DOI.
type UnpaywallClient struct {
	client *httpclient.RateLimitedClient
	email  string
}

// NewUnpaywallClient constructs an Unpaywall client. Unpaywall requires a
// contact email on every request.
func NewUnpaywallClient(email string) *UnpaywallClient {
	cfg := httpclient.DefaultConfig(unpaywallBaseURL)
	cfg.RateLimit = ratelimit.Config{RequestsPerSecond: 10, BurstSize: 10, Enabled: true}
	return &UnpaywallClient{client: httpclient.New(cfg), email: email}
}

type unpaywallResponse struct {
	BestOALocation *struct {
		URLForPDF string `json:"url_for_pdf"`
	} `json:"best_oa_location"`
	OALocations []struct {
		URLForPDF string `json:"url_for_pdf"`
	} `json:"oa_locations"`
}

// FindOAPDF returns the best-known open-access PDF URL for a DOI, or "" if
// none is known.
func (c *UnpaywallClient) FindOAPDF(ctx context.Context, doi string) (string, error) {
	if c.email == "" {
		return "", nil
	}

	path := fmt.Sprintf("/%s?email=%s", url.PathEscape(doi), url.QueryEscape(c.email))
	var resp unpaywallResponse
	if err := c.client.FetchJSON(ctx, path, &resp); err != nil {
		return "", fmt.Errorf("unpaywall lookup: %w", err)
	}

	if resp.BestOALocation != nil && resp.BestOALocation.URLForPDF != "" {
		return resp.BestOALocation.URLForPDF, nil
	}
	for _, loc := range resp.OALocations {
		if loc.URLForPDF != "" {
			return loc.URLForPDF, nil
		}
	}
	return "", nil
}
