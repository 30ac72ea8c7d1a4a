package coordinator

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// RouterConfig configures routing thresholds and fan-out limits.
type RouterConfig struct {
	// ConfidenceThreshold is the minimum keyword-match confidence a
	// specialist needs to be selected without falling back to the LLM
	// planner. Default 0.6.
	ConfidenceThreshold float64

	// MaxSpecialists caps how many specialists a single routing decision
	// names (primary + secondaries). Default 3.
	MaxSpecialists int
}

// DefaultRouterConfig returns the default routing configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{ConfidenceThreshold: 0.6, MaxSpecialists: 3}
}

func sanitizeRouterConfig(cfg RouterConfig) RouterConfig {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultRouterConfig().ConfidenceThreshold
	}
	if cfg.MaxSpecialists <= 0 {
		cfg.MaxSpecialists = DefaultRouterConfig().MaxSpecialists
	}
	return cfg
}

// IntentClassifier is the LLM-planning fallback used when keyword matching
// does not produce a confident routing decision.
type IntentClassifier interface {
	Classify(ctx context.Context, query string, candidates []SpecialistDefinition) (specialistID string, confidence float64, err error)
}

// Router performs keyword-first routing over a fixed set of specialists,
// falling back to an IntentClassifier when no specialist's keywords match
// confidently enough.
type Router struct {
	config      RouterConfig
	specialists map[string]SpecialistDefinition
	order       []string
	generalID   string
	classifier  IntentClassifier
}

// NewRouter constructs a Router with the given configuration.
func NewRouter(config RouterConfig) *Router {
	return &Router{
		config:      sanitizeRouterConfig(config),
		specialists: make(map[string]SpecialistDefinition),
	}
}

// Register adds a specialist to the routing table. A specialist marked
// IsGeneral becomes the fallback used when nothing else matches.
func (r *Router) Register(spec SpecialistDefinition) {
	if _, exists := r.specialists[spec.ID]; !exists {
		r.order = append(r.order, spec.ID)
	}
	r.specialists[spec.ID] = spec
	if spec.IsGeneral {
		r.generalID = spec.ID
	}
}

// SetIntentClassifier installs the LLM-planning fallback.
func (r *Router) SetIntentClassifier(c IntentClassifier) {
	r.classifier = c
}

// keywordScore returns the fraction of a specialist's keywords that appear
// in the (already lowercased) query.
func keywordScore(query string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	matches := 0
	for _, kw := range keywords {
		if strings.Contains(query, strings.ToLower(kw)) {
			matches++
		}
	}
	return float64(matches) / float64(len(keywords))
}

type scoredSpecialist struct {
	id    string
	score float64
}

// Route classifies a query and returns the primary specialist plus any
// secondaries. Keyword matching is tried first; if no specialist clears
// ConfidenceThreshold, the IntentClassifier (if set) is consulted; if that
// also fails to produce a confident answer, the general specialist handles
// the query alone.
func (r *Router) Route(ctx context.Context, query string) (RoutingDecision, error) {
	if len(r.specialists) == 0 {
		return RoutingDecision{}, fmt.Errorf("coordinator: no specialists registered")
	}

	lowered := strings.ToLower(query)
	scored := make([]scoredSpecialist, 0, len(r.order))
	for _, id := range r.order {
		spec := r.specialists[id]
		scored = append(scored, scoredSpecialist{id: id, score: keywordScore(lowered, spec.Keywords)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	if len(scored) > 0 && scored[0].score >= r.config.ConfidenceThreshold {
		return r.buildDecision(query, scored, fmt.Sprintf("keyword match (%.2f confidence)", scored[0].score), scored[0].score), nil
	}

	if r.classifier != nil {
		candidates := make([]SpecialistDefinition, 0, len(r.order))
		for _, id := range r.order {
			candidates = append(candidates, r.specialists[id])
		}
		id, confidence, err := r.classifier.Classify(ctx, query, candidates)
		if err == nil && id != "" {
			if _, ok := r.specialists[id]; ok {
				return RoutingDecision{
					Query:             query,
					PrimarySpecialist: id,
					Rationale:         fmt.Sprintf("LLM planner selected %s (%.2f confidence)", id, confidence),
					Confidence:        confidence,
				}, nil
			}
		}
	}

	if r.generalID != "" {
		return RoutingDecision{
			Query:             query,
			PrimarySpecialist: r.generalID,
			Rationale:         "ambiguous query, routed to general specialist",
			Confidence:        0,
		}, nil
	}

	// No general specialist configured: fall back to the best keyword match
	// even below threshold, rather than failing the turn outright.
	return r.buildDecision(query, scored, fmt.Sprintf("best-effort keyword match (%.2f confidence, below threshold)", scored[0].score), scored[0].score), nil
}

// buildDecision names the top-scoring specialist as primary and any other
// specialists scoring above half the threshold (but still below the
// primary) as secondaries, capped at MaxSpecialists total.
func (r *Router) buildDecision(query string, scored []scoredSpecialist, rationale string, confidence float64) RoutingDecision {
	decision := RoutingDecision{
		Query:             query,
		PrimarySpecialist: scored[0].id,
		Rationale:         rationale,
		Confidence:        confidence,
	}

	secondaryThreshold := r.config.ConfidenceThreshold / 2
	for _, s := range scored[1:] {
		if len(decision.SecondarySpecialists)+1 >= r.config.MaxSpecialists {
			break
		}
		if s.score >= secondaryThreshold && s.score > 0 {
			decision.SecondarySpecialists = append(decision.SecondarySpecialists, s.id)
			decision.ParallelHint = true
		}
	}
	return decision
}

// FindSpecialist looks up a registered specialist by id.
func (r *Router) FindSpecialist(id string) (SpecialistDefinition, bool) {
	spec, ok := r.specialists[id]
	return spec, ok
}

// GeneralSpecialistID returns the id of the general fallback specialist, or
// "" if none is registered.
func (r *Router) GeneralSpecialistID() string {
	return r.generalID
}
