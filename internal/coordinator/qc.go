package coordinator

import (
	"context"
	"fmt"
	"strings"

	"github.com/bioagent-ai/bioagent/internal/agent"
	"github.com/bioagent-ai/bioagent/pkg/models"

	"github.com/google/uuid"
)

// DefaultQCChecklist is the default set of concerns a QC reviewer checks a
// synthesized answer against.
var DefaultQCChecklist = []string{
	"statistical validity of any claimed result",
	"missing QC steps appropriate to the analysis",
	"overstated conclusions relative to the evidence",
	"missing caveats or limitations",
}

// QCReviewer runs a synthesized answer through a (typically smaller-model)
// agent loop and turns its review into annotations. It never rewrites the
// answer it reviews; see AnnotateWithReviewerNotes.
type QCReviewer struct {
	runner    SpecialistRunner
	checklist []string
}

// NewQCReviewer constructs a QCReviewer backed by the given runner. An empty
// checklist falls back to DefaultQCChecklist.
func NewQCReviewer(runner SpecialistRunner, checklist []string) *QCReviewer {
	if len(checklist) == 0 {
		checklist = DefaultQCChecklist
	}
	return &QCReviewer{runner: runner, checklist: checklist}
}

func (q *QCReviewer) buildPrompt(answer string) string {
	var sb strings.Builder
	sb.WriteString("Review the following answer against this checklist:\n")
	for _, item := range q.checklist {
		sb.WriteString("- " + item + "\n")
	}
	sb.WriteString("\nRespond in exactly this format:\n")
	sb.WriteString("APPROVED: yes|no\n")
	sb.WriteString("CONCERNS:\n- concern one\n- concern two\n")
	sb.WriteString("SUGGESTIONS:\n- suggestion one\n\n")
	sb.WriteString("Use \"- none\" under a section heading if there is nothing to report.\n\n")
	sb.WriteString("Answer to review:\n---\n")
	sb.WriteString(answer)
	sb.WriteString("\n---\n")
	return sb.String()
}

// Review runs the reviewer's agent loop over the given answer and parses its
// structured response into a QCReview.
func (q *QCReviewer) Review(ctx context.Context, session *models.Session, answer string) (*QCReview, error) {
	msg := &models.Message{
		ID:      uuid.NewString(),
		Role:    models.RoleUser,
		Content: q.buildPrompt(answer),
	}

	chunks, err := q.runner.Run(ctx, session, msg)
	if err != nil {
		return nil, fmt.Errorf("coordinator: qc review: %w", err)
	}

	var sb strings.Builder
	for chunk := range chunks {
		if chunk == nil {
			continue
		}
		if chunk.Error != nil {
			return nil, fmt.Errorf("coordinator: qc review: %w", chunk.Error)
		}
		sb.WriteString(chunk.Text)
	}

	return parseQCReview(sb.String()), nil
}

// parseQCReview extracts APPROVED/CONCERNS/SUGGESTIONS sections from the
// reviewer's plain-text response. It is deliberately tolerant: malformed or
// partial responses still produce a usable (if conservative) QCReview.
func parseQCReview(text string) *QCReview {
	review := &QCReview{Approved: true}

	var section string
	for _, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}

		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "APPROVED:"):
			val := strings.TrimSpace(line[len("APPROVED:"):])
			review.Approved = strings.EqualFold(val, "yes")
			section = ""
			continue
		case strings.HasPrefix(upper, "CONCERNS:"):
			section = "concerns"
			continue
		case strings.HasPrefix(upper, "SUGGESTIONS:"):
			section = "suggestions"
			continue
		}

		item := strings.TrimSpace(strings.TrimPrefix(line, "-"))
		if item == "" || strings.EqualFold(item, "none") {
			continue
		}
		switch section {
		case "concerns":
			review.Concerns = append(review.Concerns, item)
		case "suggestions":
			review.Suggestions = append(review.Suggestions, item)
		}
	}
	return review
}

// AnnotateWithReviewerNotes appends a "Reviewer notes" section to answer. It
// never modifies the original text, only appends to a copy.
func AnnotateWithReviewerNotes(answer string, review *QCReview) string {
	if review == nil || (len(review.Concerns) == 0 && len(review.Suggestions) == 0) {
		return answer
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(answer))
	sb.WriteString("\n\n## Reviewer notes\n")
	if len(review.Concerns) > 0 {
		sb.WriteString("\nConcerns:\n")
		for _, c := range review.Concerns {
			sb.WriteString("- " + c + "\n")
		}
	}
	if len(review.Suggestions) > 0 {
		sb.WriteString("\nSuggestions:\n")
		for _, s := range review.Suggestions {
			sb.WriteString("- " + s + "\n")
		}
	}
	return strings.TrimSpace(sb.String())
}
