package analyzer

import (
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"
)

// keywordEnvironment builds the CEL environment keyword.keyword_details
// evaluates its row-classification rules against, mirroring the teacher's
// cel.ActivityEnvironment pattern of a single "row" map[string]dyn variable.
func keywordEnvironment() (*cel.Env, error) {
	rowType := cel.MapType(cel.StringType, cel.DynType)
	return cel.NewEnv(cel.Variable("row", rowType))
}

// KeywordRule is one named boolean classification rule evaluated against a
// keyword metrics row (sponsored_ratio, avg_price, avg_rating,
// title_density, target_asin_share).
type KeywordRule struct {
	Label      string
	Expression string
}

// DefaultKeywordRules flags rows worth a human's attention: heavy
// sponsored presence, weak title coverage of the search term, and target
// products under-represented on the SERP.
var DefaultKeywordRules = []KeywordRule{
	{Label: "sponsored_heavy", Expression: `row.sponsored_ratio >= 0.5`},
	{Label: "low_title_density", Expression: `row.title_density < 0.3`},
	{Label: "target_underrepresented", Expression: `row.target_asin_share != null && row.target_asin_share < 0.1`},
}

// ruleEngine compiles DefaultKeywordRules once and evaluates them per row.
type ruleEngine struct {
	env      *cel.Env
	programs map[string]cel.Program
}

func newRuleEngine(rules []KeywordRule) (*ruleEngine, error) {
	env, err := keywordEnvironment()
	if err != nil {
		return nil, fmt.Errorf("analyzer: build CEL env: %w", err)
	}
	programs := make(map[string]cel.Program, len(rules))
	for _, r := range rules {
		ast, iss := env.Compile(r.Expression)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("analyzer: compile rule %q: %w", r.Label, iss.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("analyzer: program rule %q: %w", r.Label, err)
		}
		programs[r.Label] = prg
	}
	return &ruleEngine{env: env, programs: programs}, nil
}

// evaluate returns the labels of every rule that matched row.
func (e *ruleEngine) evaluate(row map[string]interface{}) []string {
	var labels []string
	for label, prg := range e.programs {
		out, _, err := prg.Eval(map[string]interface{}{"row": row})
		if err != nil {
			continue
		}
		if b, ok := out.Value().(bool); ok && b {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	return labels
}
