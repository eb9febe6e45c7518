package coinbase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// WebSocketClient maintains a feed connection and dispatches messages by
// type. It is an optional complement to REST polling; the trader works
// without it.
type WebSocketClient struct {
	url           string
	apiKey        string
	apiSecret     string
	passphrase    string
	conn          *websocket.Conn
	mu            sync.Mutex
	connected     bool
	subscriptions map[string]bool
	handlers      map[string]MessageHandler
	logger        *logrus.Logger
}

type MessageHandler func(message json.RawMessage) error

type SubscribeMessage struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
	Signature  string   `json:"signature"`
	Key        string   `json:"key"`
	Passphrase string   `json:"passphrase"`
	Timestamp  string   `json:"timestamp"`
}

func NewWebSocketClient(url, apiKey, apiSecret, passphrase string, logger *logrus.Logger) *WebSocketClient {
	return &WebSocketClient{
		url:           url,
		apiKey:        apiKey,
		apiSecret:     apiSecret,
		passphrase:    passphrase,
		subscriptions: make(map[string]bool),
		handlers:      make(map[string]MessageHandler),
		logger:        logger,
	}
}

func (ws *WebSocketClient) Connect(ctx context.Context) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.connected {
		return nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, ws.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}

	ws.conn = conn
	ws.connected = true

	go ws.readLoop(ctx)
	go ws.keepAlive(ctx)

	return nil
}

func (ws *WebSocketClient) Subscribe(channels []string, productIDs []string) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if !ws.connected {
		return fmt.Errorf("websocket not connected")
	}

	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	sub := SubscribeMessage{
		Type:       "subscribe",
		ProductIDs: productIDs,
		Channels:   channels,
		Key:        ws.apiKey,
		Passphrase: ws.passphrase,
		Timestamp:  timestamp,
	}

	// The feed authenticates subscribe messages against the verify path.
	sig, err := ws.sign(timestamp + "GET" + "/users/self/verify")
	if err != nil {
		return err
	}
	sub.Signature = sig

	for _, p := range productIDs {
		ws.subscriptions[p] = true
	}

	return ws.conn.WriteJSON(sub)
}

func (ws *WebSocketClient) RegisterHandler(messageType string, handler MessageHandler) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.handlers[messageType] = handler
}

func (ws *WebSocketClient) Connected() bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.connected
}

func (ws *WebSocketClient) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := ws.conn.ReadMessage()
			if err != nil {
				ws.logger.WithError(err).Error("Failed to read websocket message")
				ws.handleDisconnect()
				return
			}

			var envelope struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(data, &envelope); err != nil {
				ws.logger.WithError(err).Warn("Unparseable websocket message")
				continue
			}

			ws.mu.Lock()
			handler, ok := ws.handlers[envelope.Type]
			ws.mu.Unlock()
			if ok {
				if err := handler(data); err != nil {
					ws.logger.WithError(err).Error("Handler error")
				}
			}
		}
	}
}

func (ws *WebSocketClient) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ws.mu.Lock()
			if ws.connected {
				if err := ws.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					ws.logger.WithError(err).Error("Failed to send ping")
					ws.conn.Close()
					ws.connected = false
				}
			}
			ws.mu.Unlock()
		}
	}
}

func (ws *WebSocketClient) handleDisconnect() {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.connected = false
	if ws.conn != nil {
		ws.conn.Close()
	}
}

func (ws *WebSocketClient) sign(message string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(ws.apiSecret)
	if err != nil {
		return "", fmt.Errorf("api secret is not valid base64: %w", err)
	}
	h := hmac.New(sha256.New, key)
	h.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// TickerFeed caches the latest ticker price per product from the feed.
// Readers get the cached price plus its age and decide for themselves
// whether it is fresh enough; the feed never touches trading state.
type TickerFeed struct {
	client         *WebSocketClient
	logger         *logrus.Logger
	reconnectDelay time.Duration
	maxReconnects  int

	mu     sync.RWMutex
	prices map[string]tickerObservation
}

type tickerObservation struct {
	price decimal.Decimal
	seen  time.Time
}

type tickerMessage struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
}

func NewTickerFeed(client *WebSocketClient, reconnectDelay time.Duration, maxReconnects int, logger *logrus.Logger) *TickerFeed {
	f := &TickerFeed{
		client:         client,
		logger:         logger,
		reconnectDelay: reconnectDelay,
		maxReconnects:  maxReconnects,
		prices:         make(map[string]tickerObservation),
	}
	client.RegisterHandler("ticker", f.handleTicker)
	return f
}

// Start connects and subscribes to the ticker channel for the given
// products, reconnecting on drops until the context is cancelled or the
// reconnect attempts run out.
func (f *TickerFeed) Start(ctx context.Context, productIDs []string) error {
	if err := f.connect(ctx, productIDs); err != nil {
		return err
	}

	go func() {
		attempts := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(f.reconnectDelay):
			}
			if f.client.Connected() {
				attempts = 0
				continue
			}
			attempts++
			if f.maxReconnects > 0 && attempts > f.maxReconnects {
				f.logger.Error("Ticker feed gave up reconnecting")
				return
			}
			if err := f.connect(ctx, productIDs); err != nil {
				f.logger.WithError(err).Warn("Ticker feed reconnect failed")
			}
		}
	}()

	return nil
}

func (f *TickerFeed) connect(ctx context.Context, productIDs []string) error {
	if err := f.client.Connect(ctx); err != nil {
		return err
	}
	return f.client.Subscribe([]string{"ticker"}, productIDs)
}

func (f *TickerFeed) handleTicker(message json.RawMessage) error {
	var msg tickerMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return err
	}
	if msg.ProductID == "" || msg.Price == "" {
		return nil
	}
	price, err := decimal.NewFromString(msg.Price)
	if err != nil {
		return fmt.Errorf("ticker price %q: %w", msg.Price, err)
	}

	f.mu.Lock()
	f.prices[msg.ProductID] = tickerObservation{price: price, seen: time.Now().UTC()}
	f.mu.Unlock()
	return nil
}

// LastPrice returns the cached price for the product and when it was seen.
func (f *TickerFeed) LastPrice(productID string) (decimal.Decimal, time.Time, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	obs, ok := f.prices[productID]
	return obs.price, obs.seen, ok
}
