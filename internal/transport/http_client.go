package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/http2"

	"github.com/TheMichaelB/zpass/internal/config"
	"github.com/TheMichaelB/zpass/internal/events"
	"github.com/TheMichaelB/zpass/internal/models"
)

// HTTPClient handles JSON communication with the vault API. Failed requests
// are reported, never retried.
type HTTPClient struct {
	client    *http.Client
	transport *http.Transport
	baseURL   string
	userAgent string
	logger    *events.Logger

	mu    sync.RWMutex
	token string
}

// NewHTTPClient creates an HTTP client.
func NewHTTPClient(cfg *config.APIConfig, logger *events.Logger) *HTTPClient {
	// Create transport with HTTP/2 support
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			NextProtos: []string{"h2", "http/1.1"},
		},
	}

	if err := http2.ConfigureTransport(transport); err != nil {
		logger.WithError(err).Warn("Failed to configure HTTP/2")
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		transport: transport,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		logger:    logger.WithField("component", "http_client"),
	}
}

// SetInsecureSkipVerify disables certificate verification for self-signed
// development servers.
func (c *HTTPClient) SetInsecureSkipVerify(skip bool) {
	c.transport.TLSClientConfig.InsecureSkipVerify = skip
	if skip {
		c.logger.Warn("TLS certificate verification disabled")
	}
}

// BaseURL returns the API base URL.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// SetToken sets the bearer token sent with every request.
func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// GetToken returns the current bearer token.
func (c *HTTPClient) GetToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// GetJSON sends a GET request and decodes the response into out.
func (c *HTTPClient) GetJSON(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// PostJSON sends a JSON POST request and decodes the response into out.
func (c *HTTPClient) PostJSON(ctx context.Context, path string, payload, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, payload, out)
}

// PutJSON sends a JSON PUT request and decodes the response into out.
func (c *HTTPClient) PutJSON(ctx context.Context, path string, payload, out interface{}) error {
	return c.do(ctx, http.MethodPut, path, payload, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload, out interface{}) error {
	url := c.baseURL + path
	op := method + " " + path

	var body io.Reader
	size := 0
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
		size = len(data)
	}

	// Request bodies carry passwords and ciphertext; log sizes only.
	c.logger.WithFields(map[string]interface{}{
		"method": method,
		"path":   path,
		"size":   size,
	}).Debug("Sending request")

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.GetToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id := events.GetRequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &models.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &models.NetworkError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	c.logger.WithFields(map[string]interface{}{
		"status": resp.StatusCode,
		"size":   len(respBody),
	}).Debug("Received response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// statusError maps a non-2xx response onto the error taxonomy.
func statusError(op string, status int, body []byte) error {
	apiErr := &models.APIError{StatusCode: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusUnprocessableEntity:
		// Flask-JWT answers 422 for malformed tokens.
		return &models.AuthenticationError{Reason: apiErr.Message, Err: apiErr}
	case status == http.StatusTooManyRequests || status >= 500:
		return &models.NetworkError{Op: op, StatusCode: status, Err: apiErr}
	default:
		return apiErr
	}
}
