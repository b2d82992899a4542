// Package stream ingests live minute aggregates from the Polygon websocket.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/alphalab-research/alphalab/models"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
	authTimeout      = 15 * time.Second

	// Polygon does not ping; we do, and drop the session when pongs stop.
	pingInterval = 30 * time.Second
	pongWait     = 75 * time.Second

	actionAuth      = "auth"
	actionSubscribe = "subscribe"

	eventStatus   = "status"
	eventStockAgg = "AM"
	eventForexAgg = "CA"

	statusAuthSuccess = "auth_success"
	statusAuthFailed  = "auth_failed"
)

// ErrAuthFailed means Polygon rejected the API key. Not worth retrying.
var ErrAuthFailed = errors.New("polygon websocket rejected credentials")

// BarHandler consumes decoded live bars.
type BarHandler func(bar models.SymbolBar)

// Config describes one websocket session.
type Config struct {
	URL    string
	APIKey string
	Topics []string
}

// Validate rejects configs that cannot open a session.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("stream url is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("stream api key is required")
	}
	if len(c.Topics) == 0 {
		return fmt.Errorf("stream needs at least one topic")
	}
	return nil
}

// action is the client-to-server command envelope.
type action struct {
	Action string `json:"action"`
	Params string `json:"params"`
}

// event is the server-to-client message shape. Polygon multiplexes status
// and aggregate events through the same array frames.
type event struct {
	Ev      string  `json:"ev"`
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Symbol  string  `json:"sym"`
	Pair    string  `json:"pair"`
	Open    float64 `json:"o"`
	High    float64 `json:"h"`
	Low     float64 `json:"l"`
	Close   float64 `json:"c"`
	Volume  float64 `json:"v"`
	VWAP    float64 `json:"vw"`
	StartMS int64   `json:"s"`
	EndMS   int64   `json:"e"`
}

// bar converts an aggregate event to a SymbolBar. Status frames and
// unknown event types report ok=false.
func (e event) bar() (models.SymbolBar, bool) {
	var symbol string
	switch e.Ev {
	case eventStockAgg:
		symbol = e.Symbol
	case eventForexAgg:
		symbol = strings.ReplaceAll(e.Pair, "/", "")
	default:
		return models.SymbolBar{}, false
	}
	if symbol == "" || e.StartMS == 0 {
		return models.SymbolBar{}, false
	}

	return models.SymbolBar{
		Symbol: symbol,
		Bar: models.Bar{
			Time:   time.UnixMilli(e.StartMS).UTC(),
			Open:   e.Open,
			High:   e.High,
			Low:    e.Low,
			Close:  e.Close,
			Volume: e.Volume,
			VWAP:   e.VWAP,
		},
	}, true
}

func decodeEvents(data []byte) ([]event, error) {
	var events []event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to decode event frame: %w", err)
	}
	return events, nil
}

// Client is a single authenticated websocket session.
type Client struct {
	cfg    Config
	logger zerolog.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewClient creates a client for one session. Connect must be called
// before Listen.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger.With().Str("component", "stream").Logger(),
	}
}

// Connect dials, authenticates, and subscribes to the configured topics.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", c.cfg.URL, err)
	}
	c.conn = conn

	if err := c.send(actionAuth, c.cfg.APIKey); err != nil {
		conn.Close()
		return err
	}
	if err := c.awaitAuth(); err != nil {
		conn.Close()
		return err
	}
	if err := c.send(actionSubscribe, strings.Join(c.cfg.Topics, ",")); err != nil {
		conn.Close()
		return err
	}

	c.logger.Info().Str("url", c.cfg.URL).Int("topics", len(c.cfg.Topics)).Msg("stream connected")
	return nil
}

// Close tears down the connection. Safe to call more than once.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	c.writeMu.Lock()
	c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *Client) send(act, params string) error {
	data, err := json.Marshal(action{Action: act, Params: params})
	if err != nil {
		return fmt.Errorf("failed to encode %s action: %w", act, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send %s action: %w", act, err)
	}
	return nil
}

// awaitAuth reads frames until the server confirms or rejects the key.
// The initial "connected" status frame is skipped.
func (c *Client) awaitAuth() error {
	deadline := time.Now().Add(authTimeout)
	c.conn.SetReadDeadline(deadline)
	defer c.conn.SetReadDeadline(time.Time{})

	for time.Now().Before(deadline) {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("failed to read auth response: %w", err)
		}
		events, err := decodeEvents(data)
		if err != nil {
			continue
		}
		for _, ev := range events {
			if ev.Ev != eventStatus {
				continue
			}
			switch ev.Status {
			case statusAuthSuccess:
				return nil
			case statusAuthFailed:
				return fmt.Errorf("%w: %s", ErrAuthFailed, ev.Message)
			}
		}
	}

	return fmt.Errorf("no auth response within %s", authTimeout)
}

// Listen reads aggregate events and hands each bar to handler. It blocks
// until the connection drops or ctx is cancelled; cancellation returns
// ctx.Err().
func (c *Client) Listen(ctx context.Context, handler BarHandler) error {
	done := make(chan struct{})
	defer close(done)

	// Closing the conn is the only way to unblock ReadMessage.
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
		}
	}()
	go c.pingLoop(done)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("websocket read failed: %w", err)
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		events, err := decodeEvents(data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("dropping undecodable frame")
			continue
		}

		for _, ev := range events {
			if ev.Ev == eventStatus {
				c.logger.Debug().Str("status", ev.Status).Str("message", ev.Message).Msg("stream status")
				continue
			}
			if sb, ok := ev.bar(); ok {
				handler(sb)
			}
		}
	}
}

func (c *Client) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug().Err(err).Msg("failed to send ping")
				return
			}
		}
	}
}
