package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OllamaClient talks to a native Ollama server's /api/chat endpoint, which
// streams newline-delimited JSON objects rather than SSE. No attested Go
// client for Ollama exists in the example pack, so this is a thin
// net/http client over its documented wire shape, grounded on
// internal/embed's OllamaEmbedder for the same "no pack client" situation.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaClient(baseURL, model string) *OllamaClient {
	return &OllamaClient{baseURL: baseURL, model: model, client: &http.Client{Timeout: 120 * time.Second}}
}

func (c *OllamaClient) Provider() string { return "ollama" }

// StreamEvent is one NDJSON line of an Ollama chat stream.
type StreamEvent struct {
	Delta string
	Done  bool
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatChunk struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
}

// Stream issues a streaming chat request and emits one StreamEvent per
// NDJSON line. The returned channel is closed once the server sends
// done:true or the stream ends.
func (c *OllamaClient) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	msgs := make([]ollamaChatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, ollamaChatMessage{Role: string(m.Role), Content: m.Content})
	}
	body, err := json.Marshal(ollamaChatRequest{Model: model, Messages: msgs, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("llm: marshal ollama request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: build ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: ollama unreachable: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("llm: ollama returned %d", resp.StatusCode)
	}

	events := make(chan StreamEvent)
	go func() {
		defer resp.Body.Close()
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var chunk ollamaChatChunk
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				continue
			}
			select {
			case events <- StreamEvent{Delta: chunk.Message.Content, Done: chunk.Done}:
			case <-ctx.Done():
				return
			}
			if chunk.Done {
				return
			}
		}
	}()
	return events, nil
}

// Complete aggregates a Stream call into a single Response.
func (c *OllamaClient) Complete(ctx context.Context, req Request) (Response, error) {
	events, err := c.Stream(ctx, req)
	if err != nil {
		return Response{}, err
	}
	var sb strings.Builder
	for ev := range events {
		sb.WriteString(ev.Delta)
	}
	model := req.Model
	if model == "" {
		model = c.model
	}
	return Response{Text: sb.String(), Provider: c.Provider(), Model: model}, nil
}
