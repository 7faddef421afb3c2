package elementorder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultWSEndpoint = "wss://api.element.market/openapi/ws"
	HeartbeatInterval = 30 * time.Second

	DefaultReconnectInterval    = 5 * time.Second
	DefaultMaxReconnectAttempts = 10
)

// Stream actions
const (
	ActionHeartbeat   = "HEARTBEAT"
	ActionSubscribe   = "SUBSCRIBE"
	ActionUnsubscribe = "UNSUBSCRIBE"
)

// Order book channels
const (
	ChannelOrderListed    = "order.listed"
	ChannelOrderOffer     = "order.offer"
	ChannelOrderCancelled = "order.cancelled"
)

// SubscribeMessage subscribes to the orders of one collection, or of the whole
// chain when Collection is empty
type SubscribeMessage struct {
	Action     string `json:"action"`
	Channel    string `json:"channel"`
	Chain      string `json:"chain"`
	Collection string `json:"collection,omitempty"`
}

// HeartbeatMessage represents a heartbeat message
type HeartbeatMessage struct {
	Action string `json:"action"`
}

// StreamEvent is a pushed order book message
type StreamEvent struct {
	Channel string          `json:"channel"`
	Chain   string          `json:"chain"`
	MsgType string          `json:"msgType"`
	Data    json.RawMessage `json:"data"`
}

// DecodeStreamOrder extracts the order carried by a stream message. It
// returns nil without error for messages that carry no order.
func DecodeStreamOrder(data []byte) (*StreamEvent, *FetchedOrder, error) {
	var event StreamEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, nil, fmt.Errorf("%w: stream message: %v", ErrParse, err)
	}
	if event.Channel == "" || len(event.Data) == 0 || string(event.Data) == "null" {
		return &event, nil, nil
	}
	var order FetchedOrder
	if err := json.Unmarshal(event.Data, &order); err != nil {
		return &event, nil, fmt.Errorf("%w: stream order: %v", ErrParse, err)
	}
	return &event, &order, nil
}

// WSErrorHandler receives stream errors that do not stop the client
type WSErrorHandler func(err error)

// WSOrderHandler receives every order pushed on a subscribed channel
type WSOrderHandler func(event *StreamEvent, order *FetchedOrder)

// WSConfig holds configuration for the WebSocket client
type WSConfig struct {
	Endpoint             string
	APIKey               string
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	OnOrder              WSOrderHandler
	OnError              WSErrorHandler
}

// WSClient streams order book updates from Element. A dropped connection is
// redialed and its subscriptions replayed until Disconnect is called or the
// context given to Connect is done.
type WSClient struct {
	config WSConfig

	mu          sync.RWMutex
	conn        *websocket.Conn
	isConnected bool
	stopped     bool
	parent      context.Context
	cancel      context.CancelFunc
	writeMu     sync.Mutex

	subMu         sync.RWMutex
	subscriptions map[string]SubscribeMessage
}

// NewWSClient creates a new WebSocket client
func NewWSClient(config WSConfig) *WSClient {
	if config.Endpoint == "" {
		config.Endpoint = DefaultWSEndpoint
	}
	if config.ReconnectInterval == 0 {
		config.ReconnectInterval = DefaultReconnectInterval
	}
	if config.MaxReconnectAttempts == 0 {
		config.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}

	return &WSClient{
		config:        config,
		subscriptions: make(map[string]SubscribeMessage),
	}
}

// Connect dials the stream endpoint
func (ws *WSClient) Connect(ctx context.Context) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.isConnected {
		return nil
	}
	ws.parent = ctx
	ws.stopped = false
	return ws.dial()
}

func (ws *WSClient) streamURL() (string, error) {
	u, err := url.Parse(ws.config.Endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to parse WebSocket endpoint: %w", err)
	}
	q := u.Query()
	q.Set("x-api-key", ws.config.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// dial opens a connection bound to a fresh child of the parent context.
// Must be called with mu held.
func (ws *WSClient) dial() error {
	endpoint, err := ws.streamURL()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ws.parent)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	ws.conn = conn
	ws.cancel = cancel
	ws.isConnected = true

	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go ws.heartbeat(ctx)
	go ws.readLoop(ctx, conn)
	return nil
}

// Disconnect closes the connection and stops reconnecting
func (ws *WSClient) Disconnect() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.stopped = true
	ws.closeConn()
	return nil
}

// closeConn cancels the connection context, which closes the socket.
// Must be called with mu held.
func (ws *WSClient) closeConn() {
	if !ws.isConnected {
		return
	}
	ws.isConnected = false
	ws.cancel()
	ws.conn = nil
}

// IsConnected returns the current connection status
func (ws *WSClient) IsConnected() bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.isConnected
}

// Subscribe subscribes to a channel of chain. An empty collection
// subscribes to the whole chain.
func (ws *WSClient) Subscribe(channel, chain, collection string) error {
	msg := SubscribeMessage{
		Action:     ActionSubscribe,
		Channel:    channel,
		Chain:      chain,
		Collection: lc(collection),
	}

	if err := ws.sendMessage(msg); err != nil {
		return err
	}

	ws.subMu.Lock()
	ws.subscriptions[subscriptionKey(msg)] = msg
	ws.subMu.Unlock()

	return nil
}

// Unsubscribe removes a subscription made with Subscribe
func (ws *WSClient) Unsubscribe(channel, chain, collection string) error {
	msg := SubscribeMessage{
		Action:     ActionUnsubscribe,
		Channel:    channel,
		Chain:      chain,
		Collection: lc(collection),
	}

	if err := ws.sendMessage(msg); err != nil {
		return err
	}

	ws.subMu.Lock()
	delete(ws.subscriptions, subscriptionKey(msg))
	ws.subMu.Unlock()

	return nil
}

// SubscribeListings subscribes to new sell orders
func (ws *WSClient) SubscribeListings(chain, collection string) error {
	return ws.Subscribe(ChannelOrderListed, chain, collection)
}

// SubscribeOffers subscribes to new buy orders
func (ws *WSClient) SubscribeOffers(chain, collection string) error {
	return ws.Subscribe(ChannelOrderOffer, chain, collection)
}

// SubscribeCancellations subscribes to order cancellations
func (ws *WSClient) SubscribeCancellations(chain, collection string) error {
	return ws.Subscribe(ChannelOrderCancelled, chain, collection)
}

func subscriptionKey(msg SubscribeMessage) string {
	return fmt.Sprintf("%s:%s:%s", msg.Channel, msg.Chain, msg.Collection)
}

// sendMessage sends a message over the WebSocket connection
func (ws *WSClient) sendMessage(msg interface{}) error {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	if !ws.isConnected || ws.conn == nil {
		return fmt.Errorf("WebSocket not connected")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	if err := ws.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

func (ws *WSClient) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := ws.sendMessage(HeartbeatMessage{Action: ActionHeartbeat}); err != nil {
				ws.reportError(fmt.Errorf("heartbeat failed: %w", err))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (ws *WSClient) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ws.reportError(fmt.Errorf("read error: %w", err))
			}
			ws.handleDisconnect(conn)
			return
		}
		if messageType == websocket.TextMessage && ws.config.OnOrder != nil {
			ws.dispatchOrder(data)
		}
	}
}

// dispatchOrder hands a pushed order to OnOrder
func (ws *WSClient) dispatchOrder(data []byte) {
	event, order, err := DecodeStreamOrder(data)
	if err != nil {
		ws.reportError(err)
		return
	}
	if order != nil {
		ws.config.OnOrder(event, order)
	}
}

func (ws *WSClient) reportError(err error) {
	if ws.config.OnError != nil {
		ws.config.OnError(err)
	}
}

// handleDisconnect tears down conn after its read loop ends and starts
// reconnecting unless the client was stopped. It is a no-op when conn was
// already replaced or closed.
func (ws *WSClient) handleDisconnect(conn *websocket.Conn) {
	ws.mu.Lock()
	if ws.conn != conn {
		ws.mu.Unlock()
		return
	}
	ws.closeConn()
	parent := ws.parent
	stopped := ws.stopped || parent.Err() != nil
	ws.mu.Unlock()

	if !stopped {
		go ws.reconnect(parent)
	}
}

func (ws *WSClient) reconnect(parent context.Context) {
	for attempt := 1; attempt <= ws.config.MaxReconnectAttempts; attempt++ {
		select {
		case <-parent.Done():
			return
		case <-time.After(ws.config.ReconnectInterval):
		}

		ws.mu.Lock()
		if ws.stopped || ws.isConnected {
			ws.mu.Unlock()
			return
		}
		err := ws.dial()
		ws.mu.Unlock()
		if err != nil {
			ws.reportError(fmt.Errorf("reconnect attempt %d failed: %w", attempt, err))
			continue
		}

		ws.resubscribe()
		return
	}

	ws.reportError(fmt.Errorf("max reconnect attempts (%d) reached", ws.config.MaxReconnectAttempts))
}

func (ws *WSClient) resubscribe() {
	ws.subMu.RLock()
	defer ws.subMu.RUnlock()

	for _, msg := range ws.subscriptions {
		if err := ws.sendMessage(msg); err != nil {
			ws.reportError(fmt.Errorf("resubscribe failed: %w", err))
		}
	}
}

// GetSubscriptions returns a list of current subscriptions
func (ws *WSClient) GetSubscriptions() []string {
	ws.subMu.RLock()
	defer ws.subMu.RUnlock()

	subs := make([]string, 0, len(ws.subscriptions))
	for key := range ws.subscriptions {
		subs = append(subs, key)
	}
	return subs
}
