// Package stream maintains the signed WebSocket connection to the exchange
// and turns ticker channel messages into probability samples.
//
// One connection is enough here: the subscription covers at most a few
// hundred tickers at a seconds cadence. The stream reconnects with
// exponential backoff and resubscribes after every reconnect; subscription
// state lives exchange-side, so a dropped connection means starting over.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/kalshi-trader/internal/auth"
	"github.com/rickgao/kalshi-trader/internal/model"
)

var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// Config configures the stream.
type Config struct {
	URL               string        // e.g. wss://api.elections.kalshi.com/trade-api/ws/v2
	PingTimeout       time.Duration // Max silence before the connection counts as stale
	WriteTimeout      time.Duration
	BufferSize        int // Samples channel capacity
	ReconnectBaseWait time.Duration
	ReconnectMaxWait  time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:               "wss://api.elections.kalshi.com/trade-api/ws/v2",
		PingTimeout:       60 * time.Second,
		WriteTimeout:      5 * time.Second,
		BufferSize:        4096,
		ReconnectBaseWait: time.Second,
		ReconnectMaxWait:  time.Minute,
	}
}

// command is a WebSocket command sent to the server.
type command struct {
	ID     int64  `json:"id"`
	Cmd    string `json:"cmd"`
	Params any    `json:"params"`
}

// subscribeParams are parameters for a subscribe command.
type subscribeParams struct {
	Channels      []string `json:"channels"`
	MarketTickers []string `json:"market_tickers,omitempty"`
}

// dataMessage is a data frame from the server.
type dataMessage struct {
	Type string          `json:"type"`
	SID  int64           `json:"sid"`
	Msg  json.RawMessage `json:"msg"`
}

// tickerMsg is the payload of a ticker channel frame. Prices arrive in cents.
type tickerMsg struct {
	MarketTicker string `json:"market_ticker"`
	YesAsk       int    `json:"yes_ask"`
	YesBid       int    `json:"yes_bid"`
	Price        int    `json:"price"`
	Ts           int64  `json:"ts"` // Unix seconds
}

// Stream is a single authenticated WebSocket subscription.
type Stream struct {
	cfg     Config
	signer  *auth.Signer
	logger  *slog.Logger
	tickers []string

	samples chan model.ProbabilitySample

	mu         sync.RWMutex
	conn       *websocket.Conn
	connected  bool
	closed     bool
	lastPingAt time.Time

	writeMu sync.Mutex
	cmdID   atomic.Int64

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a stream subscribing to the ticker channel for the given
// market tickers.
func New(cfg Config, signer *auth.Signer, tickers []string, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		cfg:     cfg,
		signer:  signer,
		logger:  logger,
		tickers: tickers,
		samples: make(chan model.ProbabilitySample, cfg.BufferSize),
		done:    make(chan struct{}),
	}
}

// Samples returns the channel of decoded probability samples.
func (s *Stream) Samples() <-chan model.ProbabilitySample {
	return s.samples
}

// IsConnected reports the current connection state.
func (s *Stream) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Run connects, subscribes, and keeps the stream alive until ctx is
// cancelled or Close is called, reconnecting with exponential backoff.
func (s *Stream) Run(ctx context.Context) {
	wait := s.cfg.ReconnectBaseWait
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		default:
		}

		err := s.runOnce(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}

		s.logger.Warn("stream disconnected, reconnecting",
			"error", err,
			"wait", wait,
		)
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-time.After(wait):
		}
		wait = min(wait*2, s.cfg.ReconnectMaxWait)
	}
}

// Close shuts the stream down. Safe to call once.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.connected = false
	conn := s.conn
	s.mu.Unlock()

	close(s.done)

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return conn.Close()
	}
	return nil
}

// runOnce performs one connect/subscribe/read cycle, returning the error
// that ended it.
func (s *Stream) runOnce(ctx context.Context) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrAlreadyClosed
	}

	headers, err := s.signer.SignWebSocket()
	if err != nil {
		return err
	}
	header := http.Header{}
	for k, v := range headers {
		header.Set(k, v)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.lastPingAt = time.Now()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		conn.Close()
	}()

	conn.SetPingHandler(func(data string) error {
		s.touchPing()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	conn.SetPongHandler(func(string) error {
		s.touchPing()
		return nil
	})

	if err := s.subscribe(conn); err != nil {
		return err
	}
	s.logger.Info("stream connected",
		"url", s.cfg.URL,
		"tickers", len(s.tickers),
	)

	hbErr := make(chan error, 1)
	hbDone := make(chan struct{})
	defer close(hbDone)
	s.wg.Add(1)
	go s.heartbeatLoop(conn, hbDone, hbErr)

	readErr := make(chan error, 1)
	go func() { readErr <- s.readLoop(conn) }()

	select {
	case <-ctx.Done():
		return context.Canceled
	case <-s.done:
		return nil
	case err := <-hbErr:
		return err
	case err := <-readErr:
		return err
	}
}

// subscribe sends the ticker channel subscription for the stream's markets.
func (s *Stream) subscribe(conn *websocket.Conn) error {
	cmd := command{
		ID:  s.cmdID.Add(1),
		Cmd: "subscribe",
		Params: subscribeParams{
			Channels:      []string{"ticker"},
			MarketTickers: s.tickers,
		},
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop decodes ticker frames into probability samples until the
// connection fails.
func (s *Stream) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		receivedAt := time.Now()
		if err != nil {
			return err
		}

		var msg dataMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("unparseable frame dropped", "error", err)
			continue
		}
		if msg.Type != "ticker" {
			continue
		}

		var tick tickerMsg
		if err := json.Unmarshal(msg.Msg, &tick); err != nil {
			s.logger.Debug("unparseable ticker payload dropped", "error", err)
			continue
		}

		observedAt := receivedAt
		if tick.Ts > 0 {
			observedAt = time.Unix(tick.Ts, 0)
		}
		sample := model.ProbabilitySample{
			Ticker:           tick.MarketTicker,
			ProbabilityCents: tick.YesAsk,
			ObservedAt:       observedAt,
		}

		select {
		case s.samples <- sample:
		case <-s.done:
			return nil
		default:
			s.logger.Warn("sample buffer full, dropping sample", "ticker", tick.MarketTicker)
		}
	}
}

// heartbeatLoop pings the server and fails the connection when nothing has
// been heard within the ping timeout.
func (s *Stream) heartbeatLoop(conn *websocket.Conn, done <-chan struct{}, fail chan<- error) {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-s.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				s.logger.Debug("failed to send ping", "error", err)
			}

			s.mu.RLock()
			lastPing := s.lastPingAt
			s.mu.RUnlock()
			if time.Since(lastPing) > s.cfg.PingTimeout {
				select {
				case fail <- ErrStaleConnection:
				default:
				}
				return
			}
		}
	}
}

func (s *Stream) touchPing() {
	s.mu.Lock()
	s.lastPingAt = time.Now()
	s.mu.Unlock()
}
