package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/jonnytest1/commercetools-payone-integration/internal/infrastructure/observability"
)

// PostClient issues server-API calls to the payment gateway.
type PostClient interface {
	// ExecutePost submits the request and returns the parsed key=value
	// response. Transport and protocol failures are returned as *Error;
	// a business decline is a normal response with status ERROR.
	ExecutePost(ctx context.Context, req Request) (map[string]string, error)
}

// Client is the HTTP PostClient for the PAYONE server API. Calls are bounded
// by a request timeout and guarded by a circuit breaker so a slow or broken
// gateway cannot stall the dispatcher indefinitely.
type Client struct {
	url        string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[map[string]string]
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

// NewClient creates a gateway client for the given server-API URL. metrics may
// be nil.
func NewClient(apiURL string, timeout time.Duration, metrics *observability.Metrics, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:     apiURL,
		metrics: metrics,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: gobreaker.NewCircuitBreaker[map[string]string](gobreaker.Settings{
			Name:        "payone",
			MaxRequests: 5,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 10 && failureRatio >= 0.6
			},
		}),
		logger: logger.With().Str("component", "gateway").Logger(),
	}
}

// ExecutePost implements PostClient.
func (c *Client) ExecutePost(ctx context.Context, req Request) (map[string]string, error) {
	response, err := c.breaker.Execute(func() (map[string]string, error) {
		return c.post(ctx, req)
	})
	if err != nil {
		c.countCall(req.RequestType, "error")
		if gwErr, ok := err.(*Error); ok {
			return nil, gwErr
		}
		// Breaker-open and other infrastructure errors are protocol failures
		// from the caller's perspective.
		return nil, &Error{Op: req.RequestType, Err: err}
	}
	c.countCall(req.RequestType, response[FieldStatus])
	return response, nil
}

func (c *Client) countCall(requestType, status string) {
	if c.metrics != nil {
		c.metrics.GatewayCalls.WithLabelValues(requestType, status).Inc()
	}
}

func (c *Client) post(ctx context.Context, req Request) (map[string]string, error) {
	body := strings.NewReader(req.Values().Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, &Error{Op: req.RequestType, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Op: req.RequestType, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: req.RequestType, Err: err}
	}

	c.logger.Debug().
		Str("request", req.RequestType).
		Int("http_status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("gateway call completed")

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Op: req.RequestType, Err: fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)}
	}

	parsed, err := parseResponse(string(raw))
	if err != nil {
		return nil, &Error{Op: req.RequestType, Err: err}
	}
	return parsed, nil
}

// parseResponse decodes the gateway's newline-separated key=value body.
func parseResponse(body string) (map[string]string, error) {
	response := make(map[string]string)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("malformed response line %q", line)
		}
		response[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if _, ok := response[FieldStatus]; !ok {
		return nil, fmt.Errorf("response carries no %s field", FieldStatus)
	}
	return response, nil
}
