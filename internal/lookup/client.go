// Package lookup searches a third-party exercise catalogue by muscle and name.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/repcoach/internal/apperr"
)

// Exercise is one catalogue entry.
type Exercise struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Muscle       string `json:"muscle"`
	Equipment    string `json:"equipment"`
	Difficulty   string `json:"difficulty"`
	Instructions string `json:"instructions"`
}

// Query filters the catalogue. At least one field must be set.
type Query struct {
	Muscle string
	Name   string
}

func (q Query) normalized() Query {
	return Query{
		Muscle: strings.ToLower(strings.TrimSpace(q.Muscle)),
		Name:   strings.ToLower(strings.TrimSpace(q.Name)),
	}
}

func (q Query) values() url.Values {
	v := url.Values{}
	if q.Muscle != "" {
		v.Set("muscle", q.Muscle)
	}
	if q.Name != "" {
		v.Set("name", q.Name)
	}
	return v
}

// Client calls the catalogue API, caching successful responses.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *Cache
	ttl        time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a Client. cache may be nil to disable caching.
func NewClient(baseURL, apiKey string, cache *Cache, ttl time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cache:      cache,
		ttl:        ttl,
		logger:     logger,
		now:        time.Now,
	}
}

// Search returns catalogue exercises matching q. Upstream failures are
// apperr.ExternalService errors.
func (c *Client) Search(ctx context.Context, q Query) ([]Exercise, error) {
	q = q.normalized()
	if q.Muscle == "" && q.Name == "" {
		return nil, apperr.Invalid("muscle or name is required")
	}
	key := q.values().Encode()

	if c.cache != nil {
		body, ok, err := c.cache.Get(ctx, key, c.now().Add(-c.ttl))
		if err != nil {
			c.logger.Warn("lookup cache read failed", "query", key, "error", err)
		} else if ok {
			var out []Exercise
			if err := json.Unmarshal(body, &out); err == nil {
				return out, nil
			}
			c.logger.Warn("discarding undecodable cached response", "query", key)
		}
	}

	body, err := c.get(ctx, q.values())
	if err != nil {
		return nil, err
	}
	var out []Exercise
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperr.E(apperr.ExternalService, "decoding exercise lookup response", err)
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, key, body, c.now()); err != nil {
			c.logger.Warn("lookup cache write failed", "query", key, "error", err)
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	u := c.baseURL
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("lookup: create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.E(apperr.ExternalService, "exercise lookup unavailable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, apperr.E(apperr.ExternalService, "reading exercise lookup response", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("exercise lookup failed", "status", resp.StatusCode, "body", truncate(string(body), 200))
		return nil, apperr.E(apperr.ExternalService, fmt.Sprintf("exercise lookup returned %d", resp.StatusCode), nil)
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
