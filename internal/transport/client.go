package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient is a JSON REST client for a WhatsApp gateway session
type HTTPClient struct {
	baseURL    string
	apiKey     string
	session    string
	httpClient *http.Client
}

// NewHTTPClient creates a gateway client for one session
func NewHTTPClient(baseURL, apiKey, session string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		session: session,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ErrorResponse is the gateway's error body
type ErrorResponse struct {
	Error string `json:"error"`
}

// Send posts the message to the gateway and returns the delivery id
func (c *HTTPClient) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	var result SendResult
	path := fmt.Sprintf("/api/v1/sessions/%s/messages", c.session)
	if err := c.request(ctx, http.MethodPost, path, msg, &result); err != nil {
		return nil, err
	}
	if result.MessageID == "" {
		return nil, fmt.Errorf("gateway returned no message id")
	}
	return &result, nil
}

// request performs an HTTP request against the gateway API
func (c *HTTPClient) request(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error == "" {
			return fmt.Errorf("gateway HTTP %d", resp.StatusCode)
		}
		return fmt.Errorf("gateway error: %s", errResp.Error)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
