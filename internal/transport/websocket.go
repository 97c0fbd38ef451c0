package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TheMichaelB/zpass/internal/events"
	"github.com/TheMichaelB/zpass/internal/models"
)

// WSClient subscribes to the vault event stream.
type WSClient struct {
	url    string
	token  string
	logger *events.Logger

	// Connection state
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	// Channels
	messages chan models.WSMessage
	errors   chan error
	done     chan struct{}

	// Heartbeat
	pingInterval time.Duration
	pongTimeout  time.Duration
}

// NewWSClient creates a WebSocket client. http(s) URLs are rewritten to ws(s).
func NewWSClient(wsURL, token string, logger *events.Logger) *WSClient {
	return &WSClient{
		url:          websocketURL(wsURL),
		token:        token,
		logger:       logger.WithField("component", "ws_client"),
		messages:     make(chan models.WSMessage, 16),
		errors:       make(chan error, 4),
		done:         make(chan struct{}),
		pingInterval: 30 * time.Second,
		pongTimeout:  10 * time.Second,
	}
}

func websocketURL(u string) string {
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	default:
		return u
	}
}

// Connect establishes the WebSocket connection.
func (c *WSClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return errors.New("already connected")
	}
	if c.closed {
		return errors.New("client closed")
	}

	c.logger.WithField("url", c.url).Info("Connecting to vault events")

	headers := http.Header{}
	if c.token != "" {
		headers.Set("Authorization", "Bearer "+c.token)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, c.url, headers)
	if err != nil {
		if resp != nil {
			if resp.StatusCode == http.StatusUnauthorized {
				return &models.AuthenticationError{Reason: "event stream rejected token", Err: err}
			}
			return &models.NetworkError{Op: "connect events", StatusCode: resp.StatusCode, Err: err}
		}
		return &models.NetworkError{Op: "connect events", Err: err}
	}

	c.conn = conn

	go c.readLoop(conn)
	go c.pingLoop(conn)

	c.logger.Debug("Vault events connected")
	return nil
}

// Messages returns the message channel. It is closed when the connection ends.
func (c *WSClient) Messages() <-chan models.WSMessage {
	return c.messages
}

// Errors returns the error channel.
func (c *WSClient) Errors() <-chan error {
	return c.errors
}

// Close closes the WebSocket connection.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)

	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

		err := c.conn.Close()
		c.conn = nil
		return err
	}

	return nil
}

// readLoop decodes event messages until the connection ends.
func (c *WSClient) readLoop(conn *websocket.Conn) {
	defer func() {
		_ = c.Close()
		close(c.messages)
		close(c.errors)
	}()

	deadline := c.pongTimeout + c.pingInterval
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		var msg models.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				c.logger.WithError(err).Warn("Vault events read error")
				select {
				case c.errors <- err:
				default:
				}
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(deadline))

		c.logger.WithField("type", msg.Type).Debug("Received vault event")

		select {
		case c.messages <- msg:
		case <-c.done:
			return
		}
	}
}

// pingLoop sends periodic pings.
func (c *WSClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.pongTimeout))
			c.mu.Unlock()
			if err != nil {
				c.logger.WithError(err).Debug("Ping failed")
				return
			}
		case <-c.done:
			return
		}
	}
}

// Watch connects and forwards messages until ctx is cancelled or the
// connection drops.
func (c *WSClient) Watch(ctx context.Context) (<-chan models.WSMessage, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("watch vault: %w", err)
	}
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-c.done:
		}
	}()
	return c.messages, nil
}
