// Package websearch implements the last-resort matching stage: public web
// lookups for parts nothing else matched, evaluated in batches by the LLM.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Result is one web search hit
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher runs a web query and returns ranked results
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// Limiter gates outbound search calls
type Limiter interface {
	Wait(ctx context.Context) error
}

// ClientConfig holds configuration for the search API client
type ClientConfig struct {
	APIKey     string
	APIURL     string
	MaxResults int
	Timeout    time.Duration
}

// Client calls a JSON web search API
type Client struct {
	cfg     ClientConfig
	http    *httpclient.Client
	limiter Limiter
	logger  ectologger.Logger
}

// NewClient creates a new search client. The limiter may be nil.
func NewClient(cfg ClientConfig, http *httpclient.Client, limiter Limiter, logger ectologger.Logger) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.search.brave.com/res/v1/web/search"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	return &Client{
		cfg:     cfg,
		http:    http,
		limiter: limiter,
		logger:  logger,
	}
}

type searchResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search runs one query and returns up to MaxResults hits
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	ctx, span := tracing.StartSpan(ctx, "websearch.Client.Search")
	defer span.End()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	reqURL := fmt.Sprintf("%s?q=%s&count=%d", c.cfg.APIURL, url.QueryEscape(query), c.cfg.MaxResults)
	resp, err := c.http.Get(ctx, reqURL, map[string]string{
		"Accept":               "application/json",
		"X-Subscription-Token": c.cfg.APIKey,
	})
	if err != nil {
		metrics.RecordSearchRequest("error")
		return nil, err
	}

	if resp.StatusCode != 200 {
		metrics.RecordSearchRequest(fmt.Sprintf("%d", resp.StatusCode))
		c.logger.WithContext(ctx).WithFields(map[string]any{
			"status": resp.StatusCode,
			"query":  query,
		}).Error("Search request failed")
		return nil, fmt.Errorf("search request failed with status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		results = append(results, Result{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}

	metrics.RecordSearchRequest("ok")
	return results, nil
}
