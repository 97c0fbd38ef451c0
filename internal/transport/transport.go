package transport

import (
	"context"

	"github.com/TheMichaelB/zpass/internal/config"
	"github.com/TheMichaelB/zpass/internal/events"
	"github.com/TheMichaelB/zpass/internal/models"
)

// Transport combines HTTP and WebSocket functionality.
type Transport interface {
	// HTTP methods
	GetJSON(ctx context.Context, path string, out interface{}) error
	PostJSON(ctx context.Context, path string, payload, out interface{}) error
	PutJSON(ctx context.Context, path string, payload, out interface{}) error

	// WatchVault streams vault change events until ctx is cancelled.
	WatchVault(ctx context.Context, path string) (<-chan models.WSMessage, error)

	// Authentication
	SetToken(token string)
	GetToken() string

	BaseURL() string

	// Lifecycle
	Close() error
}

// DefaultTransport implements the Transport interface.
type DefaultTransport struct {
	httpClient *HTTPClient
	wsClient   *WSClient
	logger     *events.Logger
}

// NewTransport creates a transport instance.
func NewTransport(cfg *config.APIConfig, logger *events.Logger) *DefaultTransport {
	return &DefaultTransport{
		httpClient: NewHTTPClient(cfg, logger),
		logger:     logger,
	}
}

// HTTP returns the underlying HTTP client.
func (t *DefaultTransport) HTTP() *HTTPClient {
	return t.httpClient
}

// GetJSON forwards to HTTP client.
func (t *DefaultTransport) GetJSON(ctx context.Context, path string, out interface{}) error {
	return t.httpClient.GetJSON(ctx, path, out)
}

// PostJSON forwards to HTTP client.
func (t *DefaultTransport) PostJSON(ctx context.Context, path string, payload, out interface{}) error {
	return t.httpClient.PostJSON(ctx, path, payload, out)
}

// PutJSON forwards to HTTP client.
func (t *DefaultTransport) PutJSON(ctx context.Context, path string, payload, out interface{}) error {
	return t.httpClient.PutJSON(ctx, path, payload, out)
}

// WatchVault opens a new event stream, replacing any previous one.
func (t *DefaultTransport) WatchVault(ctx context.Context, path string) (<-chan models.WSMessage, error) {
	if t.wsClient != nil {
		_ = t.wsClient.Close()
	}
	t.wsClient = NewWSClient(t.httpClient.BaseURL()+path, t.httpClient.GetToken(), t.logger)

	msgs, err := t.wsClient.Watch(ctx)
	if err != nil {
		return nil, err
	}

	go func(ws *WSClient) {
		for err := range ws.Errors() {
			t.logger.WithError(err).Warn("Vault events error")
		}
	}(t.wsClient)

	return msgs, nil
}

// SetToken sets the auth token.
func (t *DefaultTransport) SetToken(token string) {
	t.httpClient.SetToken(token)
}

// GetToken returns the current auth token.
func (t *DefaultTransport) GetToken() string {
	return t.httpClient.GetToken()
}

// BaseURL returns the API base URL.
func (t *DefaultTransport) BaseURL() string {
	return t.httpClient.BaseURL()
}

// Close closes all connections.
func (t *DefaultTransport) Close() error {
	if t.wsClient != nil {
		return t.wsClient.Close()
	}
	return nil
}
