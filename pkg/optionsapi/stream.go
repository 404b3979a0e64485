package optionsapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultStreamURL  = "wss://stream.optionsgw.example.com/v1"
	heartBeatMessage  = "ping"
	heartBeatInterval = 10 * time.Second
)

// OrderUpdate is an order lifecycle event from the stream.
type OrderUpdate struct {
	OrderID        string    `json:"orderid"`
	Tag            string    `json:"ordertag"`
	Symbol         string    `json:"symbol"`
	Side           string    `json:"side"`
	Status         string    `json:"status"` // OPEN / FILLED / CANCELED / REJECTED
	FillPriceCents int64     `json:"fill_price_cents"`
	FilledQty      int64     `json:"filled_qty"`
	TS             time.Time `json:"ts"`
}

// BarUpdate is a completed hourly bar for a subscribed underlying.
type BarUpdate struct {
	Symbol     string    `json:"symbol"`
	TS         time.Time `json:"ts"`
	OpenCents  int64     `json:"open_cents"`
	HighCents  int64     `json:"high_cents"`
	LowCents   int64     `json:"low_cents"`
	CloseCents int64     `json:"close_cents"`
	Volume     int64     `json:"volume"`
}

// streamFrame is the tagged union the gateway sends on text frames.
type streamFrame struct {
	Type  string          `json:"type"` // "order" | "bar"
	Order *OrderUpdate    `json:"order,omitempty"`
	Bar   *BarUpdate      `json:"bar,omitempty"`
	Raw   json.RawMessage `json:"-"`
}

// StreamConfig configures the websocket stream.
type StreamConfig struct {
	URL        string // default: defaultStreamURL
	APIKey     string
	ClientCode string
	AuthToken  string // session JWT from Login
	FeedToken  string

	BarSymbols []string // underlyings to receive hourly bars for

	MaxRetryAttempts int           // default 5
	RetryDelay       time.Duration // default 2s, doubled per attempt
}

// Stream is the order-update and bar websocket. Connect starts the read
// and heartbeat loops; reconnects and resubscribes on read failure.
type Stream struct {
	cfg    StreamConfig
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn

	OnOrder     func(OrderUpdate)
	OnBar       func(BarUpdate)
	OnReconnect func()

	ctx    context.Context
	cancel context.CancelFunc
}

// NewStream validates the tokens and builds a stream.
func NewStream(cfg StreamConfig) (*Stream, error) {
	if cfg.AuthToken == "" || cfg.APIKey == "" || cfg.ClientCode == "" || cfg.FeedToken == "" {
		return nil, errors.New("provide valid values for all tokens")
	}
	if cfg.URL == "" {
		cfg.URL = defaultStreamURL
	}
	if cfg.MaxRetryAttempts == 0 {
		cfg.MaxRetryAttempts = 5
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	return &Stream{cfg: cfg, dialer: websocket.DefaultDialer}, nil
}

// Start connects and blocks until ctx is done or retries are exhausted.
func (s *Stream) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()

	delay := s.cfg.RetryDelay
	attempts := 0
	for {
		if err := s.connect(); err != nil {
			attempts++
			if attempts > s.cfg.MaxRetryAttempts {
				return err
			}
			log.Printf("[stream] connect failed (attempt %d/%d): %v", attempts, s.cfg.MaxRetryAttempts, err)
			select {
			case <-s.ctx.Done():
				return s.ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			continue
		}
		attempts = 0
		delay = s.cfg.RetryDelay

		err := s.readLoop()
		s.closeConn()
		if s.ctx.Err() != nil {
			return s.ctx.Err()
		}
		log.Printf("[stream] disconnected: %v, reconnecting", err)
		if s.OnReconnect != nil {
			s.OnReconnect()
		}
	}
}

// Stop tears the connection down and unblocks Start.
func (s *Stream) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.closeConn()
}

func (s *Stream) connect() error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.cfg.AuthToken)
	header.Set("x-api-key", s.cfg.APIKey)
	header.Set("x-client-code", s.cfg.ClientCode)
	header.Set("x-feed-token", s.cfg.FeedToken)

	conn, resp, err := s.dialer.Dial(s.cfg.URL, header)
	if err != nil {
		if resp != nil {
			log.Printf("[stream] dial failed, status: %s", resp.Status)
		}
		return err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(3 * heartBeatInterval))
	})

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	go s.heartbeatLoop(conn)

	return s.subscribe(conn)
}

func (s *Stream) closeConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
		s.conn = nil
	}
}

// subscribe requests order updates plus bars for the configured symbols.
func (s *Stream) subscribe(conn *websocket.Conn) error {
	req := map[string]any{
		"action": "subscribe",
		"params": map[string]any{
			"orders":      true,
			"bar_symbols": s.cfg.BarSymbols,
		},
	}
	return conn.WriteJSON(req)
}

func (s *Stream) readLoop() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("no connection")
	}
	conn.SetReadDeadline(time.Now().Add(3 * heartBeatInterval))

	for {
		if s.ctx.Err() != nil {
			return s.ctx.Err()
		}
		mt, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if mt != websocket.TextMessage {
			continue
		}
		if string(message) == "pong" {
			conn.SetReadDeadline(time.Now().Add(3 * heartBeatInterval))
			continue
		}
		var frame streamFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			log.Printf("[stream] bad frame: %v", err)
			continue
		}
		switch frame.Type {
		case "order":
			if frame.Order != nil && s.OnOrder != nil {
				s.OnOrder(*frame.Order)
			}
		case "bar":
			if frame.Bar != nil && s.OnBar != nil {
				s.OnBar(*frame.Bar)
			}
		}
	}
}

func (s *Stream) heartbeatLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(heartBeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte(heartBeatMessage)); err != nil {
				return
			}
		}
	}
}
