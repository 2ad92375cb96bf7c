package testpredict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/regpredict/pkg/logger"
)

// headerRequestID carries the generated request id to the service.
const headerRequestID = "X-Request-ID"

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request and decodes a JSON body into out.
func (c *HTTPClient) Get(ctx context.Context, url string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

// Post performs a POST request with a JSON body and decodes the reply into out.
func (c *HTTPClient) Post(ctx context.Context, url, requestID string, body, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		req.Header.Set(headerRequestID, requestID)
	}
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out any) (int, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response body: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// submitRequests posts every request using a worker pool and returns the
// results in request order.
func submitRequests(ctx context.Context, config *Config, client *HTTPClient, requests []Request, stats *Stats) []Result {
	logger.Get().Info(ctx, "submitting requests",
		logger.Int("requests", len(requests)),
		logger.Int("workers", config.Workers))

	url := config.BaseURL + "/predict"
	results := make([]Result, len(requests))

	var (
		successful int64
		failed     int64
	)

	workers := config.Workers
	if workers <= 0 {
		workers = 1
	}
	indexChan := make(chan int, workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexChan {
				results[idx] = submitSingleRequest(ctx, client, url, requests[idx])
				if results[idx].Err == "" {
					atomic.AddInt64(&successful, 1)
				} else {
					atomic.AddInt64(&failed, 1)
				}
				if config.Verbose {
					logger.Get().Debug(ctx, "request submitted",
						logger.String("id", requests[idx].ID),
						logger.Int("status", results[idx].StatusCode))
				}
			}
		}()
	}

	go func() {
		defer close(indexChan)
		for i := range requests {
			select {
			case <-ctx.Done():
				return
			case indexChan <- i:
			}
		}
	}()

	wg.Wait()

	stats.RequestsSuccessful = int(atomic.LoadInt64(&successful))
	stats.RequestsFailed = int(atomic.LoadInt64(&failed))
	stats.RequestsSubmitted = stats.RequestsSuccessful + stats.RequestsFailed

	logger.Get().Info(ctx, "request submission completed",
		logger.Int("successful", stats.RequestsSuccessful),
		logger.Int("failed", stats.RequestsFailed))
	return results
}

// submitSingleRequest posts one request and records the outcome.
func submitSingleRequest(ctx context.Context, client *HTTPClient, url string, request Request) Result {
	result := Result{Request: request}
	var body PredictResponse
	status, err := client.Post(ctx, url, request.ID, request.Values, &body)
	result.StatusCode = status
	switch {
	case err != nil:
		result.Err = err.Error()
	case status != http.StatusOK:
		result.Err = fmt.Sprintf("unexpected status %d", status)
	case body.Status != outcomeSuccess:
		result.Err = fmt.Sprintf("unexpected body status %q", body.Status)
	default:
		result.Prediction = body.Prediction
	}
	return result
}
