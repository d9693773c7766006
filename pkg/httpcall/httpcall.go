// Package httpcall adapts outbound HTTP requests into executor calls, with
// transport-level retries handled below the executor's admission control.
package httpcall

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/vnykmshr/gopace/pkg/executor"
)

// Config configures the HTTP client behind every call.
type Config struct {
	// RetryMax is the number of retries per request. Defaults to 3.
	RetryMax int

	// RetryWaitMin and RetryWaitMax bound the backoff between retries.
	// Default to 1s and 30s.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// Timeout bounds one attempt, connection included. Zero means no limit.
	Timeout time.Duration

	// Logger receives retry warnings. Defaults to a disabled logger.
	Logger *zerolog.Logger
}

// Client builds executor calls that perform HTTP requests.
type Client struct {
	http *http.Client
}

// New creates a Client with retrying transport.
func New(cfg Config) *Client {
	rc := retryablehttp.NewClient()
	if cfg.RetryMax > 0 {
		rc.RetryMax = cfg.RetryMax
	} else {
		rc.RetryMax = 3
	}
	if cfg.RetryWaitMin > 0 {
		rc.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		rc.RetryWaitMax = cfg.RetryWaitMax
	}
	rc.Logger = nil
	if cfg.Logger != nil {
		rc.Logger = leveledLogger{log: *cfg.Logger}
	}
	// When retries run out the last response must surface as a delivered
	// response, not an error: a 502 after every retry is still a response.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := rc.StandardClient()
	client.Timeout = cfg.Timeout
	return &Client{http: client}
}

// Call builds an executor.Call that performs one HTTP request. The response
// body is fully read and carried on the event as a string.
func (c *Client) Call(method, url string, headers map[string]string, body []byte) executor.Call {
	return func(ctx context.Context) (*executor.Response, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("httpcall: build request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("httpcall: %s %s: %w", method, url, err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("httpcall: read response body: %w", err)
		}

		respHeaders := make(map[string]string, len(resp.Header))
		for k := range resp.Header {
			respHeaders[k] = resp.Header.Get(k)
		}

		return &executor.Response{
			StatusCode: resp.StatusCode,
			Headers:    respHeaders,
			Body:       string(data),
		}, nil
	}
}

// Request builds a complete executor.Request for the given HTTP request,
// with the endpoint details filled in for auditing.
func (c *Client) Request(method, url string, headers map[string]string, body []byte) executor.Request {
	return executor.Request{
		Call:        c.Call(method, url, headers, body),
		EndpointURL: url,
		Method:      method,
		Headers:     headers,
	}
}

// leveledLogger adapts zerolog to the retryablehttp.LeveledLogger interface.
type leveledLogger struct {
	log zerolog.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...any) {
	l.log.Error().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...any) {
	l.log.Warn().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...any) {
	l.log.Info().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}
