package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yaccii-voc/kbcore/internal/config"
)

const promptVersion = "voc_ai_v1"

// Summarizer implements voc.Enricher: it only ever reads the module/report
// payload it is handed and queries no data source of its own.
type Summarizer struct {
	router  *Router
	enabled bool
}

func NewSummarizer(cfg *config.Config) *Summarizer {
	if !cfg.LLMEnabled {
		return &Summarizer{enabled: false}
	}
	return &Summarizer{router: NewRouterFromConfig(cfg), enabled: true}
}

// Enrich returns the meta.ai annotation for one module/report payload. A
// nil error with "status":"skipped" means enrichment is disabled; a
// non-nil error means every candidate backend failed and the caller should
// persist the payload without the annotation.
func (s *Summarizer) Enrich(ctx context.Context, flowCode string, payload map[string]interface{}) (map[string]interface{}, error) {
	if !s.enabled {
		return map[string]interface{}{"status": "skipped", "reason": "llm_disabled"}, nil
	}

	prompt, err := buildPrompt(flowCode, payload)
	if err != nil {
		return nil, fmt.Errorf("llm: build prompt: %w", err)
	}

	resp, idx, err := s.router.Complete(ctx, Request{
		UseCase: flowCode,
		Messages: []Message{
			{Role: RoleSystem, Content: summarizerSystemPrompt},
			{Role: RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"status":          "ok",
		"summary":         resp.Text,
		"provider":        resp.Provider,
		"model":           resp.Model,
		"prompt_version":  promptVersion,
		"fallback_index":  idx,
		"generated_at":    time.Now().UTC().Unix(),
	}, nil
}

const summarizerSystemPrompt = `You are a voice-of-customer analyst. Use only the structured ` +
	`JSON you are given (module or report output plus its evidence); never invent data points not present ` +
	`in the input. Write a short summary of the key findings, pain points, and actionable suggestions, ` +
	`citing the relevant metrics and evidence ids where useful. State plainly when the data is insufficient ` +
	`for a claim.`

// buildPrompt shrinks an arbitrary payload into a prompt-sized JSON blob.
// Mirrors the original's recursive truncation: long strings, long lists,
// and deep nesting are all clipped before the payload reaches the prompt.
func buildPrompt(flowCode string, payload map[string]interface{}) (string, error) {
	shrunk := shrink(payload, 0)
	b, err := json.Marshal(map[string]interface{}{"flow_code": flowCode, "payload": shrunk})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

const (
	maxPromptDepth = 6
	maxListItems   = 30
	maxStringLen   = 600
)

func shrink(v interface{}, depth int) interface{} {
	if depth >= maxPromptDepth {
		return "..."
	}
	switch x := v.(type) {
	case string:
		if len(x) <= maxStringLen {
			return x
		}
		return x[:maxStringLen-3] + "..."
	case []interface{}:
		n := len(x)
		if n > maxListItems {
			n = maxListItems
		}
		out := make([]interface{}, 0, n+1)
		for i := 0; i < n; i++ {
			out = append(out, shrink(x[i], depth+1))
		}
		if len(x) > maxListItems {
			out = append(out, fmt.Sprintf("...(%d more)", len(x)-maxListItems))
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, val := range x {
			out[k] = shrink(val, depth+1)
		}
		return out
	default:
		return x
	}
}
