// Package wsconn provides a WebSocket client with automatic reconnection,
// exponential backoff, and keep-alive pings, built on github.com/coder/websocket.
package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// Sentinel errors surfaced by the client.
var (
	ErrNotConnected = errors.New("wsconn: not connected")
	ErrClosed       = errors.New("wsconn: client closed")
)

// MessageHandler receives every inbound message. It runs on the read
// goroutine, so slow handlers delay subsequent reads.
type MessageHandler func(ctx context.Context, msg []byte)

// StateChangeHandler is invoked on every state transition. err carries the
// failure that caused the transition, when there is one.
type StateChangeHandler func(state State, err error)

// ReconnectHandler runs after each successful automatic reconnect, before
// messages flow again. Returning an error aborts the session and triggers
// another reconnect cycle; subscription replay uses this hook.
type ReconnectHandler func(ctx context.Context) error

// Config holds WebSocket client configuration.
type Config struct {
	URL            string
	Name           string
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnects  int // consecutive failed attempts before giving up; 0 = infinite
	PingInterval   time.Duration
	PongTimeout    time.Duration
	ReadTimeout    time.Duration // max silence per read; 0 disables
	WriteTimeout   time.Duration
	MaxMessageSize int64
}

// DefaultConfig returns sensible defaults for a streaming market-data feed.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		MaxReconnects:  0, // infinite
		PingInterval:   30 * time.Second,
		PongTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 1 << 20,
	}
}

// Client is a reconnecting WebSocket client.
type Client struct {
	cfg Config

	mu    sync.RWMutex
	conn  *websocket.Conn
	state State

	writeMu sync.Mutex

	handlerMu     sync.RWMutex
	onMessage     MessageHandler
	onStateChange StateChangeHandler
	onReconnect   ReconnectHandler

	// lifetime outlives any single Connect ctx; Close cancels it.
	lifetime context.Context
	cancel   context.CancelFunc
	closed   atomic.Bool
}

// New validates cfg and creates a client. No connection is made yet.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("wsconn: invalid url %q: %w", cfg.URL, err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return nil, fmt.Errorf("wsconn: unsupported scheme %q", u.Scheme)
	}

	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.Name == "" {
		cfg.Name = "wsconn"
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		cfg:      cfg,
		state:    StateDisconnected,
		lifetime: ctx,
		cancel:   cancel,
	}, nil
}

// OnMessage registers the inbound message handler.
func (c *Client) OnMessage(h MessageHandler) {
	c.handlerMu.Lock()
	c.onMessage = h
	c.handlerMu.Unlock()
}

// OnStateChange registers the state transition handler.
func (c *Client) OnStateChange(h StateChangeHandler) {
	c.handlerMu.Lock()
	c.onStateChange = h
	c.handlerMu.Unlock()
}

// OnReconnect registers the post-reconnect hook.
func (c *Client) OnReconnect(h ReconnectHandler) {
	c.handlerMu.Lock()
	c.onReconnect = h
	c.handlerMu.Unlock()
}

// Connect dials once and starts the read and ping loops. Use
// ConnectWithRetry for backoff on the initial dial.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.IsConnected() {
		return nil
	}

	c.setState(StateConnecting, nil)

	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(StateDisconnected, err)
		return fmt.Errorf("wsconn %s: dial: %w", c.cfg.Name, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.setState(StateConnected, nil)

	go c.readLoop()
	if c.cfg.PingInterval > 0 {
		go c.pingLoop()
	}

	return nil
}

// ConnectWithRetry dials with exponential backoff until it succeeds, the
// context ends, or MaxReconnects attempts fail.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	backoff := c.cfg.InitialBackoff
	attempts := 0

	for {
		err := c.Connect(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrClosed) {
			return err
		}

		attempts++
		if c.cfg.MaxReconnects > 0 && attempts >= c.cfg.MaxReconnects {
			return fmt.Errorf("wsconn %s: giving up after %d attempts: %w", c.cfg.Name, attempts, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.lifetime.Done():
			return ErrClosed
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > c.cfg.MaxBackoff {
			backoff = c.cfg.MaxBackoff
		}
	}
}

// Send writes a raw message to the connection.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.RUnlock()

	if conn == nil || !connected {
		return ErrNotConnected
	}

	if c.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.WriteTimeout)
		defer cancel()
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
		return fmt.Errorf("wsconn %s: write: %w", c.cfg.Name, err)
	}
	return nil
}

// SendJSON marshals v and sends it as a text message.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wsconn %s: marshal: %w", c.cfg.Name, err)
	}
	return c.Send(ctx, data)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether the client currently holds a live connection.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Name returns the configured client name.
func (c *Client) Name() string {
	return c.cfg.Name
}

// Close shuts the client down. It is safe to call multiple times.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.cancel()

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = StateClosed
	c.mu.Unlock()

	c.notifyState(StateClosed, nil)

	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "client closing")
	}
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, c.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	if c.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(c.cfg.MaxMessageSize)
	}
	return conn, nil
}

// readLoop reads until the connection fails, then drives reconnection.
func (c *Client) readLoop() {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil {
			return
		}

		readCtx := c.lifetime
		var cancel context.CancelFunc
		if c.cfg.ReadTimeout > 0 {
			readCtx, cancel = context.WithTimeout(c.lifetime, c.cfg.ReadTimeout)
		}

		_, data, err := conn.Read(readCtx)
		if cancel != nil {
			cancel()
		}

		if err != nil {
			if c.closed.Load() || c.lifetime.Err() != nil {
				return
			}

			c.setState(StateReconnecting, err)
			if rerr := c.reconnect(); rerr != nil {
				if !c.closed.Load() {
					c.setState(StateDisconnected, rerr)
				}
				return
			}
			continue
		}

		c.handlerMu.RLock()
		handler := c.onMessage
		c.handlerMu.RUnlock()

		if handler != nil {
			handler(c.lifetime, data)
		}
	}
}

// reconnect re-dials with exponential backoff. It replaces c.conn on success
// and runs the OnReconnect hook so callers can replay subscriptions.
func (c *Client) reconnect() error {
	backoff := c.cfg.InitialBackoff
	attempts := 0

	for {
		select {
		case <-c.lifetime.Done():
			return ErrClosed
		case <-time.After(backoff):
		}

		attempts++
		if c.cfg.MaxReconnects > 0 && attempts > c.cfg.MaxReconnects {
			return fmt.Errorf("wsconn %s: reconnect gave up after %d attempts", c.cfg.Name, attempts-1)
		}

		c.setState(StateConnecting, nil)

		conn, err := c.dial(c.lifetime)
		if err != nil {
			c.setState(StateReconnecting, err)
			backoff *= 2
			if backoff > c.cfg.MaxBackoff {
				backoff = c.cfg.MaxBackoff
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		c.setState(StateConnected, nil)

		c.handlerMu.RLock()
		hook := c.onReconnect
		c.handlerMu.RUnlock()

		if hook != nil {
			if err := hook(c.lifetime); err != nil {
				// Subscription replay failed; the session is useless.
				conn.Close(websocket.StatusInternalError, "reconnect hook failed")
				c.setState(StateReconnecting, err)
				backoff = c.cfg.InitialBackoff
				continue
			}
		}

		return nil
	}
}

// pingLoop keeps the connection alive and lets dead peers surface as read
// errors, which the readLoop turns into reconnects.
func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.lifetime.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			connected := c.state == StateConnected
			c.mu.RUnlock()

			if conn == nil || !connected {
				continue
			}

			ctx, cancel := context.WithTimeout(c.lifetime, c.cfg.PongTimeout)
			err := conn.Ping(ctx)
			cancel()

			if err != nil && !c.closed.Load() {
				conn.Close(websocket.StatusGoingAway, "ping timeout")
			}
		}
	}
}

func (c *Client) setState(state State, err error) {
	c.mu.Lock()
	if c.state == StateClosed && state != StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()

	c.notifyState(state, err)
}

func (c *Client) notifyState(state State, err error) {
	c.handlerMu.RLock()
	handler := c.onStateChange
	c.handlerMu.RUnlock()

	if handler != nil {
		handler(state, err)
	}
}
