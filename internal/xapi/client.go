// Package xapi retrieves posts from the X recent-search API.
//
// The client pages through results following the provider's continuation
// token, paces successive pages with a token bucket, and decodes the
// nested data/includes payload into flat model.Post values. It never
// retries: any non-2xx response is returned as an *UpstreamError.
package xapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/abelbrown/rabbitbrain/internal/logging"
	"github.com/abelbrown/rabbitbrain/internal/model"
)

const (
	// DefaultBaseURL is the v2 API root.
	DefaultBaseURL = "https://api.x.com/2"

	// DefaultPageDelay spaces successive page requests of one search.
	DefaultPageDelay = 350 * time.Millisecond

	// Page size limits enforced by the provider.
	MaxPageSize = 100
	MinPageSize = 10

	maxErrorBody = 200
)

// Sort orders accepted by the search endpoint.
const (
	SortRelevancy = "relevancy"
	SortRecency   = "recency"
)

var (
	// ErrNotFound is returned by FetchByID when the provider has no such post.
	ErrNotFound = errors.New("post not found")

	// ErrMissingToken is returned when the client has no bearer token.
	ErrMissingToken = errors.New("missing X bearer token")
)

// UpstreamError is a failed provider call. StatusCode is zero for
// transport or decode failures, in which case Err holds the cause.
type UpstreamError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("X API %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("X API request failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// SearchOptions controls paging for Search.
type SearchOptions struct {
	MaxResults int    // per page, clamped to [MinPageSize, MaxPageSize]; 0 means MaxPageSize
	Pages      int    // upper bound on pages; 0 means 1
	SortOrder  string // SortRelevancy or SortRecency; empty means SortRelevancy
}

// Config configures a Client.
type Config struct {
	Token      string
	BaseURL    string        // defaults to DefaultBaseURL
	PageDelay  time.Duration // defaults to DefaultPageDelay; negative disables pacing
	HTTPClient *http.Client  // defaults to a client with a 30s timeout
}

// Client is a thin X API v2 client. Safe for concurrent use.
type Client struct {
	token     string
	baseURL   string
	pageDelay time.Duration
	client    *http.Client
}

// NewClient creates a Client from cfg.
func NewClient(cfg Config) *Client {
	c := &Client{
		token:     cfg.Token,
		baseURL:   cfg.BaseURL,
		pageDelay: cfg.PageDelay,
		client:    cfg.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.pageDelay == 0 {
		c.pageDelay = DefaultPageDelay
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

// Available reports whether a bearer token is configured.
func (c *Client) Available() bool {
	return c.token != ""
}

// pager returns the limiter spacing pages of a single search. The first
// Wait returns immediately; each later one waits out the page delay.
func (c *Client) pager() *rate.Limiter {
	if c.pageDelay < 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(c.pageDelay), 1)
}

// Search runs query against recent search and returns the posts of every
// page fetched, in provider order. Paging stops early when the provider
// stops returning a continuation token.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) ([]model.Post, error) {
	pages := opts.Pages
	if pages <= 0 {
		pages = 1
	}
	sortOrder := opts.SortOrder
	if sortOrder == "" {
		sortOrder = SortRelevancy
	}

	limiter := c.pager()
	var (
		all       []model.Post
		nextToken string
	)
	for page := 0; page < pages; page++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("page limiter: %w", err)
		}

		params := fieldParams()
		params.Set("query", query)
		params.Set("max_results", strconv.Itoa(ClampPageSize(opts.MaxResults)))
		params.Set("sort_order", sortOrder)
		if nextToken != "" {
			params.Set("pagination_token", nextToken)
		}

		var resp apiResponse
		if err := c.get(ctx, "/tweets/search/recent", params, &resp); err != nil {
			return nil, err
		}
		posts, err := resp.posts()
		if err != nil {
			return nil, &UpstreamError{Err: err}
		}
		logging.Debug("search page", "query", query, "page", page, "results", len(posts))

		all = append(all, posts...)
		nextToken = resp.Meta.NextToken
		if nextToken == "" {
			break
		}
	}
	return all, nil
}

// FetchByID fetches a single post. It returns ErrNotFound when the provider
// answers successfully but carries no post.
func (c *Client) FetchByID(ctx context.Context, id string) (model.Post, error) {
	var resp apiResponse
	if err := c.get(ctx, "/tweets/"+url.PathEscape(id), fieldParams(), &resp); err != nil {
		return model.Post{}, err
	}
	posts, err := resp.posts()
	if err != nil {
		return model.Post{}, &UpstreamError{Err: err}
	}
	if len(posts) == 0 {
		return model.Post{}, ErrNotFound
	}
	return posts[0], nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out *apiResponse) error {
	if !c.Available() {
		return ErrMissingToken
	}

	endpoint := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		logging.Error("X API request failed", "path", path, "error", err)
		return &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return &UpstreamError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		logging.Error("X API error", "path", path, "status", resp.StatusCode)
		return &UpstreamError{StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
	}

	if err := out.decode(body); err != nil {
		return &UpstreamError{Err: fmt.Errorf("parse response: %w", err)}
	}
	return nil
}

// ClampPageSize applies the provider's page size limits.
func ClampPageSize(n int) int {
	switch {
	case n <= 0:
		return MaxPageSize
	case n < MinPageSize:
		return MinPageSize
	case n > MaxPageSize:
		return MaxPageSize
	}
	return n
}

func fieldParams() url.Values {
	v := url.Values{}
	v.Set("tweet.fields", "created_at,public_metrics,author_id,conversation_id,entities")
	v.Set("expansions", "author_id")
	v.Set("user.fields", "username,name,profile_image_url,verified,public_metrics")
	return v
}

// truncate shortens s to maxLen runes.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
