package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/TheMichaelB/zpass/internal/models"
)

// MockTransport provides a mock implementation for testing.
type MockTransport struct {
	mu sync.Mutex

	// Response configuration, keyed by "METHOD /path"
	Responses  map[string]interface{}
	Errors     map[string]error
	WSMessages []models.WSMessage

	// Error injection
	WatchError error

	// Request tracking
	Requests      []Request
	WatchRequests []string

	// State
	token   string
	baseURL string
	closed  bool
}

// Request tracks a mocked HTTP call.
type Request struct {
	Method  string
	Path    string
	Payload interface{}
	Token   string
}

// NewMockTransport creates a mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		Responses: make(map[string]interface{}),
		Errors:    make(map[string]error),
		baseURL:   "http://mock.invalid",
	}
}

// GetJSON mocks HTTP GET.
func (m *MockTransport) GetJSON(ctx context.Context, path string, out interface{}) error {
	return m.handle(ctx, http.MethodGet, path, nil, out)
}

// PostJSON mocks HTTP POST.
func (m *MockTransport) PostJSON(ctx context.Context, path string, payload, out interface{}) error {
	return m.handle(ctx, http.MethodPost, path, payload, out)
}

// PutJSON mocks HTTP PUT.
func (m *MockTransport) PutJSON(ctx context.Context, path string, payload, out interface{}) error {
	return m.handle(ctx, http.MethodPut, path, payload, out)
}

func (m *MockTransport) handle(ctx context.Context, method, path string, payload, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return &models.NetworkError{Op: method + " " + path, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := method + " " + path
	m.Requests = append(m.Requests, Request{
		Method:  method,
		Path:    path,
		Payload: payload,
		Token:   m.token,
	})

	if err, ok := m.Errors[key]; ok {
		return err
	}

	resp, ok := m.Responses[key]
	if !ok {
		return fmt.Errorf("no mock response for %s", key)
	}
	if out == nil {
		return nil
	}

	// Round-trip through JSON so callers see wire semantics.
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal mock response: %w", err)
	}
	return json.Unmarshal(data, out)
}

// WatchVault replays the configured messages and closes the channel.
func (m *MockTransport) WatchVault(ctx context.Context, path string) (<-chan models.WSMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WatchRequests = append(m.WatchRequests, path)
	if m.WatchError != nil {
		return nil, m.WatchError
	}

	ch := make(chan models.WSMessage, len(m.WSMessages))
	for _, msg := range m.WSMessages {
		ch <- msg
	}
	close(ch)
	return ch, nil
}

// SetToken mocks token setting.
func (m *MockTransport) SetToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

// GetToken returns the current token.
func (m *MockTransport) GetToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// BaseURL returns a placeholder URL.
func (m *MockTransport) BaseURL() string {
	return m.baseURL
}

// Close mocks connection closing.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Helper methods for test setup

// AddResponse sets the response for method and path.
func (m *MockTransport) AddResponse(method, path string, response interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[method+" "+path] = response
}

// AddError sets an error for method and path.
func (m *MockTransport) AddError(method, path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[method+" "+path] = err
}

// AddWSMessage adds a mock event message.
func (m *MockTransport) AddWSMessage(msg models.WSMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WSMessages = append(m.WSMessages, msg)
}

// RequestsFor returns the recorded requests for method and path.
func (m *MockTransport) RequestsFor(method, path string) []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Request
	for _, r := range m.Requests {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
