// Package apiclient provides a REST client for filefluxctl.
package apiclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIError is a non-2xx response from the server. Body holds the raw
// response; some endpoints, healthz in particular, answer 503 with a
// structured body worth parsing.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Body       []byte `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// Client is the FileFlux API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client against the given base URL.
//
// The default timeout covers control requests only; UploadFile overrides
// it because upload bodies can stream for a long time.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// do performs an HTTP request and decodes the JSON response.
func (c *Client) do(req *http.Request, result any) error {
	return c.doWith(c.httpClient, req, result)
}

func (c *Client) doWith(hc *http.Client, req *http.Request, result any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr APIError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			apiErr.StatusCode = resp.StatusCode
			apiErr.Body = respBody
			return &apiErr
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody), Body: respBody}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) get(path string, result any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, result)
}

func (c *Client) post(path string, result any) error {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, result)
}
