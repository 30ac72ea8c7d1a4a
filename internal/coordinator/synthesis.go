package coordinator

import (
	"regexp"
	"strings"
)

var nonWordRun = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeParagraph collapses whitespace and punctuation so near-identical
// paragraphs compare equal regardless of formatting.
func normalizeParagraph(p string) string {
	return strings.Trim(nonWordRun.ReplaceAllString(strings.ToLower(p), " "), " ")
}

func paragraphs(text string) []string {
	raw := strings.Split(strings.TrimSpace(text), "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Synthesize composes a final answer from the successful specialist outputs:
// the primary specialist's text leads, followed by supplementary paragraphs
// from the others, skipping anything near-identical to text already
// included.
func Synthesize(primaryID string, outputs []SpecialistOutput) string {
	seen := make(map[string]bool)

	var primaryText string
	var others []SpecialistOutput
	for _, o := range outputs {
		if o.Err != nil || strings.TrimSpace(o.Text) == "" {
			continue
		}
		if o.SpecialistID == primaryID && primaryText == "" {
			primaryText = o.Text
			continue
		}
		others = append(others, o)
	}

	// If the nominal primary produced nothing usable, promote the first
	// other successful output so the turn still returns an answer.
	if primaryText == "" && len(others) > 0 {
		primaryText = others[0].Text
		others = others[1:]
	}

	for _, p := range paragraphs(primaryText) {
		seen[normalizeParagraph(p)] = true
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(primaryText))

	for _, o := range others {
		var supplement []string
		for _, p := range paragraphs(o.Text) {
			key := normalizeParagraph(p)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			supplement = append(supplement, p)
		}
		if len(supplement) == 0 {
			continue
		}
		sb.WriteString("\n\n")
		sb.WriteString(strings.Join(supplement, "\n\n"))
	}

	return strings.TrimSpace(sb.String())
}

// AggregateToolsUsed returns the deduplicated union of tools used across all
// specialist outputs, in first-seen order.
func AggregateToolsUsed(outputs []SpecialistOutput) []string {
	seen := make(map[string]bool)
	var tools []string
	for _, o := range outputs {
		for _, t := range o.ToolsUsed {
			if !seen[t] {
				seen[t] = true
				tools = append(tools, t)
			}
		}
	}
	return tools
}
