// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package tmdb implements the typed client for the TMDB v3 API.
package tmdb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/autobrr/discovarr/internal/domain"
	"github.com/autobrr/discovarr/internal/metrics"
)

const maxResponseBytes int64 = 4 << 20 // 4 MiB safety limit for API responses

// APIError represents a non-2xx response from TMDB. It preserves the status
// code so callers can distinguish not-found from transport failures.
type APIError struct {
	StatusCode int
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tmdb %s returned status %d", e.Endpoint, e.StatusCode)
}

func (e *APIError) Is(target error) bool {
	_, ok := target.(*APIError)
	return ok
}

// IsNotFound returns true if the requested resource does not exist upstream.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Client calls the TMDB v3 API.
type Client struct {
	baseURL    string
	apiKey     string
	language   string
	httpClient *http.Client
}

// NewClient creates a TMDB client. An empty baseURL selects the public API.
func NewClient(baseURL, apiKey, language string, timeoutSeconds int) *Client {
	if baseURL == "" {
		baseURL = "https://api.themoviedb.org/3"
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		language:   language,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
	}
}

// Popular returns one page of the popular listing for the content type.
func (c *Client) Popular(ctx context.Context, contentType domain.ContentType, page int) (*PageResult, error) {
	var result PageResult
	if err := c.get(ctx, "popular", fmt.Sprintf("/%s/popular", contentType), pageParams(page), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// TopRated returns one page of the top-rated listing for the content type.
func (c *Client) TopRated(ctx context.Context, contentType domain.ContentType, page int) (*PageResult, error) {
	var result PageResult
	if err := c.get(ctx, "top_rated", fmt.Sprintf("/%s/top_rated", contentType), pageParams(page), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Discover performs a filtered discovery search. Filters are passed through
// as query parameters unexamined.
func (c *Client) Discover(ctx context.Context, contentType domain.ContentType, filters map[string]string) (*PageResult, error) {
	params := url.Values{}
	for k, v := range filters {
		params.Set(k, v)
	}

	var result PageResult
	if err := c.get(ctx, "discover", fmt.Sprintf("/discover/%s", contentType), params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Recommendations returns one page of recommendations for a TMDB ID.
func (c *Client) Recommendations(ctx context.Context, contentType domain.ContentType, id, page int) (*PageResult, error) {
	var result PageResult
	if err := c.get(ctx, "recommendations", fmt.Sprintf("/%s/%d/recommendations", contentType, id), pageParams(page), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Similar returns one page of similar content for a TMDB ID.
func (c *Client) Similar(ctx context.Context, contentType domain.ContentType, id, page int) (*PageResult, error) {
	var result PageResult
	if err := c.get(ctx, "similar", fmt.Sprintf("/%s/%d/similar", contentType, id), pageParams(page), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SearchKeyword searches TMDB keyword records by query string.
func (c *Client) SearchKeyword(ctx context.Context, query string) (*KeywordPage, error) {
	params := url.Values{}
	params.Set("query", query)

	var result KeywordPage
	if err := c.get(ctx, "search_keyword", "/search/keyword", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ByID returns the full record for a TMDB ID. appendToResponse lists extra
// sub-resources to inline, comma separated.
func (c *Client) ByID(ctx context.Context, contentType domain.ContentType, id int, appendToResponse string) (ContentItem, error) {
	params := url.Values{}
	if appendToResponse != "" {
		params.Set("append_to_response", appendToResponse)
	}

	var result ContentItem
	if err := c.get(ctx, "by_id", fmt.Sprintf("/%s/%d", contentType, id), params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Details returns the typed detail fields the anime classifier needs.
func (c *Client) Details(ctx context.Context, contentType domain.ContentType, id int) (*Details, error) {
	var result Details
	if err := c.get(ctx, "details", fmt.Sprintf("/%s/%d", contentType, id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExternalIDs returns the external service identifiers for a TMDB ID.
func (c *Client) ExternalIDs(ctx context.Context, contentType domain.ContentType, id int) (*ExternalIDs, error) {
	var result ExternalIDs
	if err := c.get(ctx, "external_ids", fmt.Sprintf("/%s/%d/external_ids", contentType, id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Genres returns the genre list for the content type.
func (c *Client) Genres(ctx context.Context, contentType domain.ContentType) ([]Genre, error) {
	var result genreListResponse
	if err := c.get(ctx, "genres", fmt.Sprintf("/genre/%s/list", contentType), nil, &result); err != nil {
		return nil, err
	}
	return result.Genres, nil
}

// Keywords returns the keywords attached to a TMDB ID. TV and movie
// responses carry the list under different field names; both are handled.
func (c *Client) Keywords(ctx context.Context, contentType domain.ContentType, id int) ([]Keyword, error) {
	var result keywordsResponse
	if err := c.get(ctx, "keywords", fmt.Sprintf("/%s/%d/keywords", contentType, id), nil, &result); err != nil {
		return nil, err
	}
	if contentType == domain.ContentTypeTV {
		return result.Results, nil
	}
	return result.Keywords, nil
}

// FindByExternalID looks a record up by an identifier from another service,
// e.g. source "imdb_id" or "tvdb_id".
func (c *Client) FindByExternalID(ctx context.Context, externalID, source string) (*FindResult, error) {
	params := url.Values{}
	params.Set("external_source", source)

	var result FindResult
	if err := c.get(ctx, "find", fmt.Sprintf("/find/%s", url.PathEscape(externalID)), params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func pageParams(page int) url.Values {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	return params
}

func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" && params.Get("language") == "" {
		params.Set("language", c.language)
	}

	requestURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("tmdb request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	metrics.UpstreamRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Endpoint: path}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}

	return nil
}
