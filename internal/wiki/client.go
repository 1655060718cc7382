// Package wiki provides a minimal client for the department wiki search API.
package wiki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DefaultBaseURL is the department wiki host.
const DefaultBaseURL = "http://dicjlinux02.cegepjonquiere.ca:3000"

// Client is a minimal HTTP client for the wiki search endpoint. Results are cached by query and category.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	cache   *Cache
}

// New returns a new client. If httpClient is nil, a default with a 10s timeout is used.
// A nil cache disables caching.
func New(baseURL string, httpClient *http.Client, cache *Cache) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: httpClient, cache: cache}
}

// SearchParams are the filters accepted by the wiki search endpoint.
type SearchParams struct {
	Query    string
	Category string
}

// Result is a small normalized view of one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
	Raw     any    `json:"raw,omitempty"`
}

// Search queries the wiki and returns normalized results.
func (c *Client) Search(ctx context.Context, p SearchParams) ([]Result, error) {
	key := cacheKey(p)
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			return cached, nil
		}
	}

	reqURL, err := c.buildSearchURL(p)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building wiki request")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "querying wiki")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("wiki api status %d", resp.StatusCode)
	}

	var body any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decoding wiki response")
	}
	results := normalize(extractItems(body))
	if c.cache != nil {
		c.cache.Set(key, results)
	}
	return results, nil
}

// PageURL is the browser search page for a query, handed out when the API is unavailable.
func (c *Client) PageURL(query string) string {
	return c.BaseURL + "/search?q=" + url.QueryEscape(query)
}

func (c *Client) buildSearchURL(p SearchParams) (string, error) {
	u, err := url.Parse(c.BaseURL + "/api/search")
	if err != nil {
		return "", errors.Wrap(err, "invalid wiki base url")
	}
	q := u.Query()
	q.Set("q", p.Query)
	if p.Category != "" {
		q.Set("category", p.Category)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func cacheKey(p SearchParams) string {
	return strings.ToLower(strings.TrimSpace(p.Query)) + "|" + p.Category
}

// extractItems accepts either {"results": [...]}, {"data": [...]} or a bare array.
func extractItems(body any) []any {
	if m, ok := body.(map[string]any); ok {
		for _, key := range []string{"results", "data"} {
			if arr, ok := m[key].([]any); ok {
				return arr
			}
		}
	}
	if arr, ok := body.([]any); ok {
		return arr
	}
	return nil
}

func normalize(items []any) []Result {
	out := make([]Result, 0, len(items))
	for _, it := range items {
		m, _ := it.(map[string]any)
		out = append(out, Result{
			Title:   firstNonEmpty(getString(m, "title"), getString(m, "name")),
			URL:     firstNonEmpty(getString(m, "url"), getString(m, "path")),
			Excerpt: firstNonEmpty(getString(m, "excerpt"), getString(m, "description"), getString(m, "snippet")),
			Raw:     it,
		})
	}
	return out
}

func getString(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
