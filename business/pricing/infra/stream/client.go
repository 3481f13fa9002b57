// Package stream implements a streaming price source over a WebSocket
// price gateway. One client serves one venue; reconnects re-issue every
// registered pair subscription so the feed keeps flowing after drops.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dexarb/business/pricing/app"
	"github.com/fd1az/dexarb/business/pricing/domain"
	venuedomain "github.com/fd1az/dexarb/business/venue/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/logger"
	"github.com/fd1az/dexarb/internal/wsconn"
)

var _ app.StreamSource = (*Client)(nil)

const (
	tracerName = "price-stream"
	meterName  = "price-stream"
)

// ClientConfig holds configuration for one venue's stream connection.
type ClientConfig struct {
	URL          string
	Venue        venuedomain.ID
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(url string, venue venuedomain.ID) ClientConfig {
	return ClientConfig{
		URL:          url,
		Venue:        venue,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// clientMetrics holds OTEL metric instruments.
type clientMetrics struct {
	messagesReceived metric.Int64Counter
	pricesReceived   metric.Int64Counter
	subscriptions    metric.Int64UpDownCounter
	parseErrors      metric.Int64Counter
}

// Client is a per-venue streaming price source.
type Client struct {
	config ClientConfig
	logger logger.LoggerInterface

	conn   *wsconn.Client
	connMu sync.RWMutex

	handler   app.PriceHandler
	handlerMu sync.RWMutex

	// Pair subscriptions, replayed on every reconnect.
	pairs   map[string]domain.Pair
	pairsMu sync.RWMutex
	nextID  atomic.Int64

	tracer  trace.Tracer
	metrics *clientMetrics
}

// NewClient creates a streaming client for one venue.
func NewClient(cfg ClientConfig, log logger.LoggerInterface) (*Client, error) {
	if cfg.URL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("stream url is empty"))
	}
	if _, err := venuedomain.ParseID(string(cfg.Venue)); err != nil {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithCause(err),
			apperror.WithContext("stream venue id"))
	}

	c := &Client{
		config: cfg,
		logger: log,
		pairs:  make(map[string]domain.Pair),
		tracer: otel.Tracer(tracerName),
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return c, nil
}

func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.messagesReceived, err = meter.Int64Counter(
		"price_stream_messages_total",
		metric.WithDescription("Total messages received"),
	)
	if err != nil {
		return err
	}

	c.metrics.pricesReceived, err = meter.Int64Counter(
		"price_stream_prices_total",
		metric.WithDescription("Total price events parsed"),
	)
	if err != nil {
		return err
	}

	c.metrics.subscriptions, err = meter.Int64UpDownCounter(
		"price_stream_subscriptions",
		metric.WithDescription("Active pair subscriptions"),
	)
	if err != nil {
		return err
	}

	c.metrics.parseErrors, err = meter.Int64Counter(
		"price_stream_parse_errors_total",
		metric.WithDescription("Message parse errors"),
	)
	if err != nil {
		return err
	}

	return nil
}

// VenueID returns the venue this stream reports prices for.
func (c *Client) VenueID() venuedomain.ID {
	return c.config.Venue
}

// OnPrice registers the handler invoked for every parsed price event.
func (c *Client) OnPrice(handler app.PriceHandler) {
	c.handlerMu.Lock()
	c.handler = handler
	c.handlerMu.Unlock()
}

// Subscribe registers pair subscriptions. When connected the SUBSCRIBE
// frame goes out immediately; either way the pairs are replayed on every
// (re)connect.
func (c *Client) Subscribe(ctx context.Context, pairs ...domain.Pair) error {
	if len(pairs) == 0 {
		return nil
	}

	streams := make([]string, 0, len(pairs))
	c.pairsMu.Lock()
	for _, p := range pairs {
		if !p.Valid() {
			c.pairsMu.Unlock()
			return apperror.New(apperror.CodeInvalidInput,
				apperror.WithContext("pair "+p.String()))
		}
		if _, exists := c.pairs[p.Key()]; exists {
			continue
		}
		c.pairs[p.Key()] = p
		streams = append(streams, TickerStream(p))
	}
	c.pairsMu.Unlock()

	if len(streams) == 0 {
		return nil
	}
	c.metrics.subscriptions.Add(ctx, int64(len(streams)))

	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return nil // issued on connect
	}
	return c.sendSubscribe(ctx, conn, streams)
}

// Start opens the connection, issues the registered subscriptions and
// begins dispatching events. Blocks until connected or ctx is done.
func (c *Client) Start(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "stream.start",
		trace.WithAttributes(
			attribute.String("venue", c.config.Venue.String()),
			attribute.String("url", c.config.URL),
		),
	)
	defer span.End()

	wsCfg := wsconn.DefaultConfig(c.config.URL, "price-stream-"+c.config.Venue.String())
	wsCfg.ReadTimeout = c.config.ReadTimeout
	wsCfg.WriteTimeout = c.config.WriteTimeout

	conn, err := wsconn.New(wsCfg)
	if err != nil {
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext("failed to create wsconn"))
	}

	conn.OnMessage(c.handleMessage)
	conn.OnReconnect(c.resubscribe)

	if err := conn.ConnectWithRetry(ctx); err != nil {
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext("failed to connect price stream"))
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	if err := c.resubscribe(ctx); err != nil {
		c.logger.Warn(ctx, "initial subscription failed", "venue", c.config.Venue, "error", err)
	}

	c.logger.Info(ctx, "price stream connected",
		"venue", c.config.Venue,
		"url", c.config.URL,
		"pairs", len(c.registeredPairs()))
	return nil
}

// Close tears the connection down.
func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// resubscribe re-issues every registered pair subscription. Installed as
// the reconnect hook, so a reconnected socket never sits idle.
func (c *Client) resubscribe(ctx context.Context) error {
	pairs := c.registeredPairs()
	if len(pairs) == 0 {
		return nil
	}

	streams := make([]string, 0, len(pairs))
	for _, p := range pairs {
		streams = append(streams, TickerStream(p))
	}

	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return nil
	}

	if err := c.sendSubscribe(ctx, conn, streams); err != nil {
		return err
	}

	c.logger.Info(ctx, "subscriptions replayed",
		"venue", c.config.Venue,
		"streams", len(streams))
	return nil
}

func (c *Client) sendSubscribe(ctx context.Context, conn *wsconn.Client, streams []string) error {
	req := WSRequest{
		Method: "SUBSCRIBE",
		Params: streams,
		ID:     c.nextID.Add(1),
	}
	if err := conn.SendJSON(ctx, req); err != nil {
		return apperror.New(apperror.CodeSubscribeFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to subscribe"))
	}
	return nil
}

func (c *Client) registeredPairs() []domain.Pair {
	c.pairsMu.RLock()
	defer c.pairsMu.RUnlock()

	out := make([]domain.Pair, 0, len(c.pairs))
	for _, p := range c.pairs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// handleMessage parses an incoming frame and dispatches price events.
func (c *Client) handleMessage(ctx context.Context, data []byte) {
	c.metrics.messagesReceived.Add(ctx, 1)

	var event PriceEvent
	if err := json.Unmarshal(data, &event); err != nil || event.Stream == "" {
		// Might be a control-frame acknowledgement.
		var resp WSResponse
		if json.Unmarshal(data, &resp) == nil && resp.ID != 0 {
			c.logger.Debug(ctx, "subscription acknowledged", "id", resp.ID)
			return
		}
		c.metrics.parseErrors.Add(ctx, 1)
		c.logger.Debug(ctx, "unparseable stream message",
			"venue", c.config.Venue,
			"data", string(data[:min(len(data), 200)]))
		return
	}

	price, err := decimal.NewFromString(event.Price)
	if err != nil || event.Token == "" {
		c.metrics.parseErrors.Add(ctx, 1)
		c.logger.Warn(ctx, "malformed price event",
			"venue", c.config.Venue,
			"stream", event.Stream,
			"error", err)
		return
	}

	c.metrics.pricesReceived.Add(ctx, 1)

	c.handlerMu.RLock()
	handler := c.handler
	c.handlerMu.RUnlock()
	if handler == nil {
		return
	}

	handler(ctx, event.Token, domain.PricePoint{
		Venue:     c.config.Venue,
		Price:     price,
		Timestamp: time.UnixMilli(event.Timestamp),
	})
}
