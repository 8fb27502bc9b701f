// Package analyzer computes the deterministic VOC modules: each analyzer
// folds a dataset read from the results DB into a stable module_code
// payload plus the evidence rows that support it. None of them call an
// LLM — AI enrichment is a separate, best-effort annotation layer in
// internal/llm applied on top of a module's payload.
package analyzer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/yaccii-voc/kbcore/internal/model"
	"github.com/yaccii-voc/kbcore/internal/resultsdb"
)

// Result is what every analyzer returns: a module payload ready for
// UpsertVocOutput, and the evidence rows ready for InsertVocEvidenceMany.
type Result struct {
	ModuleCode    string
	SchemaVersion int
	Payload       map[string]interface{}
	Evidence      []model.VocEvidence
}

func safeSnippet(text string, maxLen int) string {
	s := strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(text))
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return strings.TrimSpace(string(r[:maxLen-1])) + "…"
}

var tokenRE = regexp.MustCompile(`[a-zA-Z0-9]+`)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"but": true, "by": true, "for": true, "from": true, "had": true, "has": true, "have": true,
	"i": true, "if": true, "in": true, "into": true, "is": true, "it": true, "its": true,
	"me": true, "my": true, "not": true, "of": true, "on": true, "or": true, "our": true,
	"so": true, "that": true, "the": true, "their": true, "this": true, "to": true, "too": true,
	"was": true, "we": true, "were": true, "with": true, "you": true, "your": true,
}

func tokenize(text string) []string {
	raw := tokenRE.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(t)
		if len(t) <= 2 || stopwords[t] {
			continue
		}
		out = append(out, t)
	}
	return out
}

func ngrams(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+n], " "))
	}
	return out
}

func hasStopword(phrase string) bool {
	for _, w := range strings.Split(phrase, " ") {
		if stopwords[w] {
			return true
		}
	}
	return false
}

// normalizeTopic maps a raw n-gram to a stable topic key via a small
// heuristic synonym table, falling back to a snake_cased phrase.
func normalizeTopic(phrase string) string {
	p := strings.ToLower(strings.TrimSpace(phrase))
	if p == "" {
		return ""
	}
	switch {
	case strings.Contains(p, "water") && (strings.Contains(p, "resist") || strings.Contains(p, "proof")):
		return "water_resistance"
	case strings.Contains(p, "zip"):
		return "zipper"
	case strings.Contains(p, "stitch") || strings.Contains(p, "seam") || strings.Contains(p, "sew"):
		return "stitching"
	case strings.Contains(p, "pad") || strings.Contains(p, "cushion"):
		return "padding"
	case strings.Contains(p, "fit") || strings.Contains(p, "size"):
		return "fit"
	case strings.Contains(p, "price") || strings.Contains(p, "value"):
		return "value"
	case strings.Contains(p, "soft") || strings.Contains(p, "lining"):
		return "soft_lining"
	case strings.Contains(p, "smell") || strings.Contains(p, "odor"):
		return "odor"
	case strings.Contains(p, "quality"):
		return "quality"
	case strings.Contains(p, "protect"):
		return "protection"
	default:
		return strings.ReplaceAll(p, " ", "_")
	}
}

// sortReviewsByHelpfulDesc orders by (helpful, reviewTime, reviewID), each
// descending.
func sortReviewsByHelpfulDesc(rows []resultsdb.ReviewRow) []resultsdb.ReviewRow {
	out := append([]resultsdb.ReviewRow(nil), rows...)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.HelpfulVotes != b.HelpfulVotes {
			return a.HelpfulVotes > b.HelpfulVotes
		}
		if a.ReviewTime != b.ReviewTime {
			return a.ReviewTime > b.ReviewTime
		}
		return a.ReviewID > b.ReviewID
	})
	return out
}
