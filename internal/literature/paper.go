// Package literature orchestrates search across multiple scientific
// literature APIs (PubMed, Semantic Scholar, Europe PMC, CrossRef,
// preprint servers, and Unpaywall) into a single deduplicated, ranked
// result set.
package literature

import "strings"

// Author is a paper author.
type Author struct {
	Name        string
	ORCID       string
	Affiliation string
}

// LastName extracts the author's surname (the final whitespace-separated
// token), matching how citation strings are conventionally formatted.
func (a Author) LastName() string {
	parts := strings.Fields(a.Name)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// Paper is the unified paper representation across all sources.
type Paper struct {
	Title           string
	Authors         []Author
	Year            int
	Journal         string
	DOI             string
	PMID            string
	PMCID           string
	S2ID            string
	Abstract        string
	CitationCount   int
	ReferenceCount  int
	IsOpenAccess    bool
	PDFURL          string
	Source          string
	RelevanceScore  float64
}

// AuthorEtAl renders the first-author-et-al citation form.
func (p Paper) AuthorEtAl() string {
	if len(p.Authors) == 0 {
		return "Unknown"
	}
	first := p.Authors[0].LastName()
	switch {
	case len(p.Authors) > 2:
		return first + " et al."
	case len(p.Authors) == 2:
		return first + " and " + p.Authors[1].LastName()
	default:
		return first
	}
}

// Identifier returns the best available identifier, preferring DOI over
// PMID over Semantic Scholar ID over PMC ID.
func (p Paper) Identifier() string {
	switch {
	case p.DOI != "":
		return p.DOI
	case p.PMID != "":
		return p.PMID
	case p.S2ID != "":
		return p.S2ID
	default:
		return p.PMCID
	}
}

// SearchResults holds the outcome of a literature search.
type SearchResults struct {
	Papers          []Paper
	Query           string
	TotalFound      int
	SourcesSearched []string
}
