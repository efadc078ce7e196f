// Package ai implements the LLM-assisted matching stage: a chat-completion
// client and the ordered strategies that evaluate pre-selected candidates.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Client is a chat-completion provider. Implementations return the raw text
// of the model's reply; callers parse stage-specific JSON out of it.
type Client interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Limiter gates outbound provider calls
type Limiter interface {
	Wait(ctx context.Context) error
}

// AnthropicConfig holds configuration for the Anthropic messages API client
type AnthropicConfig struct {
	APIKey    string
	APIURL    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// AnthropicClient calls the Anthropic messages API directly over HTTP
type AnthropicClient struct {
	cfg     AnthropicConfig
	http    *httpclient.Client
	limiter Limiter
	logger  ectologger.Logger
}

// NewAnthropicClient creates a new Anthropic client. The limiter may be nil
// when rate limiting is handled elsewhere.
func NewAnthropicClient(cfg AnthropicConfig, http *httpclient.Client, limiter Limiter, logger ectologger.Logger) *AnthropicClient {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.anthropic.com/v1/messages"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &AnthropicClient{
		cfg:     cfg,
		http:    http,
		limiter: limiter,
		logger:  logger,
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete sends a single-turn prompt and returns the model's text reply
func (c *AnthropicClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "ai.AnthropicClient.Complete")
	defer span.End()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(anthropicRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	resp, err := c.http.PostJSON(ctx, c.cfg.APIURL, body, map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		metrics.RecordLLMRequest("error", time.Since(start).Seconds())
		return "", err
	}

	if resp.StatusCode != 200 {
		metrics.RecordLLMRequest(fmt.Sprintf("%d", resp.StatusCode), resp.Duration.Seconds())
		c.logger.WithContext(ctx).WithFields(map[string]any{
			"status": resp.StatusCode,
			"body":   truncate(string(resp.Body), 500),
		}).Error("LLM request failed")
		return "", fmt.Errorf("llm request failed with status %d", resp.StatusCode)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse llm response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("llm response contained no content")
	}

	metrics.RecordLLMRequest("ok", resp.Duration.Seconds())
	return parsed.Content[0].Text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
