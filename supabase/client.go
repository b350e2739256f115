/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package supabase is a small PostgREST client for a hosted Supabase project:
// a structured query builder against /rest/v1/<table> and remote procedure
// calls against /rest/v1/rpc/<fn>.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config configures a Client.
type Config struct {
	// URL is the project URL, e.g. https://xyz.supabase.co
	URL string
	// APIKey is the anon (RLS enforced) or service role key.
	APIKey string
	// AccessToken is an optional user JWT sent as the bearer token so that
	// row-level security evaluates as that user.
	AccessToken string
	// Schema selects a non-public schema through Accept-Profile/Content-Profile.
	Schema string
	// Timeout applies to the default HTTP client.
	Timeout time.Duration
	// HTTPClient overrides the HTTP client. Retry and rate limiting are not
	// applied to a caller supplied client.
	HTTPClient *http.Client
	// Retry configures retries of idempotent requests.
	Retry RetryConfig
	// RateLimit caps requests per second; zero disables limiting.
	RateLimit float64
	RateBurst int
	// DefaultHeaders are added to every request.
	DefaultHeaders map[string]string
}

// Client is a long-lived, concurrency-safe handle to one Supabase project.
type Client struct {
	restURL     string
	apiKey      string
	accessToken string
	schema      string
	headers     map[string]string
	httpClient  *http.Client
}

// New validates cfg and creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid supabase URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid supabase URL: %s", cfg.URL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newTransport(http.DefaultTransport, cfg.Retry, cfg.RateLimit, cfg.RateBurst),
		}
	}

	headers := make(map[string]string, len(cfg.DefaultHeaders))
	for k, v := range cfg.DefaultHeaders {
		if v != "" {
			headers[k] = v
		}
	}

	return &Client{
		restURL:     strings.TrimRight(cfg.URL, "/") + "/rest/v1",
		apiKey:      cfg.APIKey,
		accessToken: cfg.AccessToken,
		schema:      cfg.Schema,
		headers:     headers,
		httpClient:  httpClient,
	}, nil
}

// WithAccessToken returns a copy of the client that authenticates as the
// user owning token. The HTTP client is shared.
func (c *Client) WithAccessToken(token string) *Client {
	clone := *c
	clone.accessToken = token
	return &clone
}

// RestURL returns the PostgREST base URL.
func (c *Client) RestURL() string {
	return c.restURL
}

// From starts a query builder for a table.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{
		client:  c,
		table:   table,
		method:  http.MethodGet,
		columns: "*",
		params:  url.Values{},
		headers: make(map[string]string),
	}
}

// RPC calls a Postgres function and returns the raw JSON response body.
func (c *Client) RPC(ctx context.Context, fn string, params any) ([]byte, error) {
	if fn == "" {
		return nil, fmt.Errorf("function name is required")
	}
	var body []byte
	if params != nil {
		var err error
		if body, err = json.Marshal(params); err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
	}
	resp, err := c.do(ctx, http.MethodPost, c.restURL+"/rpc/"+url.PathEscape(fn), body, nil)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, extra map[string]string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req, body != nil)
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: data, Header: resp.Header}, nil
}

func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("apikey", c.apiKey)
	token := c.apiKey
	if c.accessToken != "" {
		token = c.accessToken
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.schema != "" {
		if req.Method == http.MethodGet || req.Method == http.MethodHead {
			req.Header.Set("Accept-Profile", c.schema)
		} else {
			req.Header.Set("Content-Profile", c.schema)
		}
	}
}
