// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm is the thin client the pipeline stages use to call a
// generative model, plus helpers to recover JSON from model replies.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/research-brief/internal/httputil"
	"github.com/pdiddy/research-brief/internal/retry"
)

// Model completes a single prompt. Implementations must be safe for
// concurrent use.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f ModelFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

const defaultMaxTokens = 4096

// Claude calls the Anthropic Messages API.
type Claude struct {
	APIKey string
	Model  string
	Client *http.Client

	// MaxTokens caps the reply length (default 4096).
	MaxTokens int

	// Timeout bounds each attempt. Zero means no per-attempt limit.
	Timeout time.Duration

	// Policy retries overloaded and rate-limited responses.
	Policy retry.Policy
}

// claudeRequest is the request body for the Claude Messages API.
type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

// claudeMessage is a single message in the Claude API conversation.
type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the response body from the Claude Messages API.
type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

// claudeContent is a content block in the Claude API response.
type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Complete sends prompt as a single user message and returns the text of
// the reply.
func (c *Claude) Complete(ctx context.Context, prompt string) (string, error) {
	if c.APIKey == "" {
		return "", retry.Permanent(fmt.Errorf("no API key configured for model %s", c.Model))
	}
	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	bodyBytes, err := json.Marshal(claudeRequest{
		Model:     c.Model,
		MaxTokens: maxTokens,
		Messages:  []claudeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, claudeAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	return retry.Do(ctx, c.Policy, func(ctx context.Context) (string, error) {
		if c.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.Timeout)
			defer cancel()
		}

		resp, err := httputil.Send(ctx, c.Client, req)
		if err != nil {
			return "", fmt.Errorf("calling Claude API: %w", err)
		}
		defer resp.Body.Close()

		var cResp claudeResponse
		if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
			return "", retry.Transient(fmt.Errorf("decoding Claude response: %w", err))
		}

		var b strings.Builder
		for _, block := range cResp.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		if b.Len() == 0 {
			return "", fmt.Errorf("no text content in Claude API response: %w", ErrMalformed)
		}
		return b.String(), nil
	})
}
