package llm

import (
	"context"
	"fmt"

	"github.com/yaccii-voc/kbcore/internal/config"
)

// Router holds an ordered candidate list of backends and walks it on
// failure, stopping at the first success. This is the Go-native shape of
// the "ordered fallback chain" the VOC AI enrichment step uses: the
// configured primary backend first, then any secondary backend reachable
// from config. A Request.Model is passed to each candidate in turn; it does
// not add a candidate of its own.
type Router struct {
	candidates []Client
}

// NewRouterFromConfig builds the fallback chain from config: the
// configured LLM_BACKEND is tried first, and the other backend is appended
// as a fallback whenever its own settings are present.
func NewRouterFromConfig(cfg *config.Config) *Router {
	var primary, secondary Client
	openaiClient := func() Client { return NewOpenAIClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel) }
	ollamaClient := func() Client { return NewOllamaClient(cfg.OllamaBaseURL, cfg.OllamaModel) }

	if cfg.LLMBackend == "ollama" {
		primary = ollamaClient()
		if cfg.LLMAPIKey != "" {
			secondary = openaiClient()
		}
	} else {
		primary = openaiClient()
		if cfg.OllamaBaseURL != "" {
			secondary = ollamaClient()
		}
	}

	r := &Router{candidates: []Client{primary}}
	if secondary != nil {
		r.candidates = append(r.candidates, secondary)
	}
	return r
}

// Complete tries each candidate in order, returning the first success. It
// returns the last error if every candidate fails.
func (r *Router) Complete(ctx context.Context, req Request) (Response, int, error) {
	var lastErr error
	for idx, c := range r.candidates {
		resp, err := c.Complete(ctx, req)
		if err == nil {
			return resp, idx, nil
		}
		lastErr = fmt.Errorf("%s: %w", c.Provider(), err)
	}
	return Response{}, -1, lastErr
}
