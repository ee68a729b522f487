package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/andrescamacho/fleetcore/internal/domain/shared"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 4
	defaultBackoffBase = 350 * time.Millisecond

	// StatusRetriesExhausted is the synthetic status surfaced when every
	// attempt failed; callers treat it like any other 5xx.
	StatusRetriesExhausted = 599
)

// RequestLogger records outbound requests; implementations must never block
// the request path on failure.
type RequestLogger interface {
	Append(ctx context.Context, url string, statusCode int, requestBody string)
}

// Client talks to the game API with rate limiting and retries. On 429 it
// honours the server's retryAfter plus the backoff baseline; on transport
// errors it backs off the baseline between attempts; when attempts run out it
// reports the synthetic 599 status.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	baseURL     string
	agentToken  string
	maxAttempts int
	backoffBase time.Duration
	clock       shared.Clock
	logger      RequestLogger
}

// NewClient creates a game API client.
// If clock is nil, uses RealClock. logger may be nil to disable request
// logging. Zero retry settings fall back to the defaults.
func NewClient(baseURL, agentToken string, requestsPerSecond, burst, maxAttempts int, backoffBase time.Duration, clock shared.Clock, logger RequestLogger) *Client {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2
	}
	if burst <= 0 {
		burst = 2
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if backoffBase <= 0 {
		backoffBase = defaultBackoffBase
	}
	return &Client{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		baseURL:     baseURL,
		agentToken:  agentToken,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		clock:       clock,
		logger:      logger,
	}
}

// errorEnvelope is the error shape the game returns
type errorEnvelope struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    struct {
			RetryAfter float64 `json:"retryAfter"`
		} `json:"data"`
	} `json:"error"`
}

// request performs one API call with the retry policy and returns the final
// status code and raw body. Statuses other than 429 are returned as-is,
// including 4xx refusals: classification is the typed wrappers' job.
func (c *Client) request(ctx context.Context, method, path string, body interface{}) (int, []byte, error) {
	url := c.baseURL + path

	var bodyJSON []byte
	if body != nil {
		var err error
		bodyJSON, err = json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("rate limiter: %w", err)
		}

		var reqBody io.Reader
		if bodyJSON != nil {
			reqBody = bytes.NewReader(bodyJSON)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.agentToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return 0, nil, ctx.Err()
			}
			fmt.Printf("[ERROR] API request failed (%s %s): %v\n", method, path, err)
			c.clock.Sleep(c.backoffBase)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return 0, nil, fmt.Errorf("failed to read response: %w", err)
		}

		if c.logger != nil {
			c.logger.Append(ctx, url, resp.StatusCode, string(bodyJSON))
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			var envelope errorEnvelope
			retryAfter := time.Duration(0)
			if json.Unmarshal(respBody, &envelope) == nil && envelope.Error != nil {
				retryAfter = time.Duration(envelope.Error.Data.RetryAfter * float64(time.Second))
			}
			if ctx.Err() != nil {
				return 0, nil, ctx.Err()
			}
			c.clock.Sleep(c.backoffBase + retryAfter)
			continue
		}

		return resp.StatusCode, respBody, nil
	}

	fmt.Printf("[WARNING] API retries exhausted for %s %s.\n", method, path)
	return StatusRetriesExhausted, nil, nil
}

// call performs a request and decodes the data envelope into out when the
// status indicates success. Refusals become domain errors, exhaustion becomes
// a transient error.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	status, respBody, err := c.request(ctx, method, path, body)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		if out == nil {
			return nil
		}
		envelope := struct {
			Data json.RawMessage `json:"data"`
		}{}
		if err := json.Unmarshal(respBody, &envelope); err != nil {
			return fmt.Errorf("failed to unmarshal response envelope: %w", err)
		}
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to unmarshal response data: %w", err)
		}
		return nil
	case status >= 400 && status < 500:
		return shared.NewDomainError(shared.FailureRefused, "%s %s refused (status %d): %s", method, path, status, string(respBody))
	default:
		return shared.NewTransientError("%s %s failed (status %d)", method, path, status)
	}
}
