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

package supabase

import (
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RetryConfig configures retries of idempotent requests. The zero value
// disables retries.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// Jitter randomizes each backoff by up to this fraction (0.0 to 1.0).
	Jitter float64
	// StatusCodes are retried; empty means 429, 502, 503 and 504.
	StatusCodes []int
}

// DefaultRetryConfig returns three retries with exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
	}
}

var defaultRetryStatus = []int{
	http.StatusTooManyRequests,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

func (c RetryConfig) retryable(status int) bool {
	codes := c.StatusCodes
	if len(codes) == 0 {
		codes = defaultRetryStatus
	}
	for _, code := range codes {
		if code == status {
			return true
		}
	}
	return false
}

func (c RetryConfig) backoff(attempt int) time.Duration {
	mult := c.Multiplier
	if mult <= 0 {
		mult = 2
	}
	d := float64(c.InitialBackoff) * math.Pow(mult, float64(attempt))
	if c.MaxBackoff > 0 && d > float64(c.MaxBackoff) {
		d = float64(c.MaxBackoff)
	}
	if c.Jitter > 0 {
		d += d * c.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}

type transport struct {
	base    http.RoundTripper
	retry   RetryConfig
	limiter *rate.Limiter
}

func newTransport(base http.RoundTripper, retry RetryConfig, rateLimit float64, burst int) http.RoundTripper {
	t := &transport{base: base, retry: retry}
	if rateLimit > 0 {
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(rateLimit), burst)
	}
	return t
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// RoundTrip tags the request with an X-Request-Id, waits on the rate limiter
// and retries idempotent requests on transport errors and retryable statuses.
func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if req.Header.Get("X-Request-Id") == "" {
		req.Header.Set("X-Request-Id", uuid.NewString())
	}

	attempts := 1
	if idempotent(req.Method) && t.retry.MaxRetries > 0 {
		attempts += t.retry.MaxRetries
	}

	var (
		resp *http.Response
		err  error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(t.retry.backoff(attempt - 1))
			select {
			case <-req.Context().Done():
				timer.Stop()
				return nil, req.Context().Err()
			case <-timer.C:
			}
			if req.GetBody != nil {
				body, berr := req.GetBody()
				if berr != nil {
					return nil, berr
				}
				req.Body = body
			}
		}
		if t.limiter != nil {
			if werr := t.limiter.Wait(req.Context()); werr != nil {
				return nil, werr
			}
		}

		resp, err = t.base.RoundTrip(req)
		if err == nil && !t.retry.retryable(resp.StatusCode) {
			return resp, nil
		}
		if attempt < attempts-1 && resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
	}
	return resp, err
}
