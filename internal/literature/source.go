package literature

import "context"

// SearchOptions bounds a per-source search request.
type SearchOptions struct {
	MaxResults int
	YearFrom   int
	YearTo     int
}

// Source is a single literature API backend. Each concrete client wraps its
// own httpclient.RateLimitedClient tuned to that API's documented rate
// limits, matching the struct-per-backend idiom used for external-source
// clients elsewhere in this codebase.
type Source interface {
	// Name identifies the source for SearchResults.SourcesSearched and
	// Paper.Source.
	Name() string
	// Search runs a keyword query against the source.
	Search(ctx context.Context, query string, opts SearchOptions) ([]Paper, error)
}
