// Package httpclient provides the shared JSON HTTP client the engine's
// control-plane integrations are built on. Requests retry transparently
// on transient failures.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// errorBodyLimit truncates non-JSON error bodies in error messages.
const errorBodyLimit = 200

// BaseClient wraps a retrying HTTP client with JSON encoding and shared
// headers.
type BaseClient struct {
	baseURL    string
	httpClient *retryablehttp.Client
	headers    map[string]string
}

// NewBaseClient builds a client for baseURL (trailing slash removed).
// Requests retry up to three times with backoff and time out after
// timeout.
func NewBaseClient(baseURL string, timeout time.Duration) *BaseClient {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil
	retryClient.HTTPClient.Timeout = timeout

	return &BaseClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: retryClient,
		headers:    make(map[string]string),
	}
}

// SetHeader adds a header sent with every request.
func (c *BaseClient) SetHeader(key, value string) {
	c.headers[key] = value
}

// BaseURL returns the configured base URL.
func (c *BaseClient) BaseURL() string {
	return c.baseURL
}

// DoJSON performs one JSON request. reqBody may be nil (no body);
// respBody may be nil (response discarded). Non-2xx responses return an
// error carrying the server's error or message field when present.
func (c *BaseClient) DoJSON(ctx context.Context, method, path string, reqBody, respBody interface{}) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	fullURL := c.baseURL + path

	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errorResp struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if jsonErr := json.Unmarshal(body, &errorResp); jsonErr == nil {
			if errorResp.Error != "" {
				return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, errorResp.Error)
			}
			if errorResp.Message != "" {
				return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, errorResp.Message)
			}
		}
		bodyStr := string(body)
		if len(bodyStr) > errorBodyLimit {
			bodyStr = bodyStr[:errorBodyLimit] + "..."
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, bodyStr)
	}

	if respBody != nil && len(body) > 0 {
		if err := json.Unmarshal(body, respBody); err != nil {
			return fmt.Errorf("failed to unmarshal response body: %w", err)
		}
	}
	return nil
}
