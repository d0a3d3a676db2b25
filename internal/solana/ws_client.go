package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// HandshakeTimeout is the dial timeout.
	HandshakeTimeout time.Duration
	// SubscribeTimeout is how long to wait for a subscription confirmation.
	SubscribeTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		HandshakeTimeout: 10 * time.Second,
		SubscribeTimeout: 30 * time.Second,
		PingInterval:     30 * time.Second,
		ReadTimeout:      120 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// WSClientImpl implements WSClient using gorilla/websocket.
//
// Signature subscriptions are one-shot: the node fires a single
// notification once the signature reaches the requested commitment and
// cancels the subscription itself. A dropped connection closes all
// outstanding subscription channels; callers fall back to polling.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps subscription ID to the one-shot delivery channel
	subs   map[int64]chan SignatureNotification
	subsMu sync.Mutex

	// pendingSubs maps request ID to channel waiting for subscription ID
	pendingSubs   map[uint64]chan int64
	pendingSubsMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &WSClientImpl{
		endpoint:    endpoint,
		config:      cfg,
		subs:        make(map[int64]chan SignatureNotification),
		pendingSubs: make(map[uint64]chan int64),
		done:        make(chan struct{}),
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// SubscribeSignature subscribes to confirmation of one signature.
func (c *WSClientImpl) SubscribeSignature(ctx context.Context, signature string, commitment Commitment) (<-chan SignatureNotification, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("client closed")
	}

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "signatureSubscribe",
		Params: []interface{}{
			signature,
			map[string]string{"commitment": string(commitment)},
		},
	}

	confirmCh := make(chan int64, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = confirmCh
	c.pendingSubsMu.Unlock()

	dropPending := func() {
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
	}

	c.connMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()
	if err != nil {
		dropPending()
		return nil, fmt.Errorf("write subscribe: %w", err)
	}

	var subID int64
	select {
	case subID = <-confirmCh:
	case <-time.After(c.config.SubscribeTimeout):
		dropPending()
		return nil, fmt.Errorf("subscription timeout after %s", c.config.SubscribeTimeout)
	case <-c.done:
		return nil, fmt.Errorf("client closed")
	case <-ctx.Done():
		dropPending()
		return nil, ctx.Err()
	}

	ch := make(chan SignatureNotification, 1)
	c.subsMu.Lock()
	c.subs[subID] = ch
	c.subsMu.Unlock()

	return ch, nil
}

// Close closes the WebSocket connection.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.closeAllSubs()
	c.wg.Wait()
	return nil
}

// closeAllSubs closes outstanding delivery and confirmation channels.
func (c *WSClientImpl) closeAllSubs() {
	c.subsMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	c.pendingSubsMu.Lock()
	for id, ch := range c.pendingSubs {
		close(ch)
		delete(c.pendingSubs, id)
	}
	c.pendingSubsMu.Unlock()
}

// readLoop reads messages from WebSocket and dispatches to subscribers.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			// Connection is gone. One-shot subscriptions cannot survive it;
			// close channels so watchers fall back to polling.
			c.closeAllSubs()
			return
		}

		c.handleMessage(message)
	}
}

// handleMessage processes one incoming WebSocket message.
func (c *WSClientImpl) handleMessage(message []byte) {
	// Subscription confirmation first
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.Result > 0 {
		c.pendingSubsMu.Lock()
		ch, ok := c.pendingSubs[resp.ID]
		if ok {
			delete(c.pendingSubs, resp.ID)
		}
		c.pendingSubsMu.Unlock()
		if ok {
			select {
			case ch <- resp.Result:
			default:
			}
		}
		return
	}

	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == "signatureNotification" {
		c.handleSignatureNotification(&notif)
	}
}

// handleSignatureNotification delivers the one-shot result and retires
// the subscription.
func (c *WSClientImpl) handleSignatureNotification(notif *wsNotification) {
	if notif.Params == nil {
		return
	}

	subID := notif.Params.Subscription

	c.subsMu.Lock()
	ch, ok := c.subs[subID]
	if ok {
		delete(c.subs, subID)
	}
	c.subsMu.Unlock()
	if !ok {
		return
	}

	n := SignatureNotification{Err: notif.Params.Result.Value.Err}
	if notif.Params.Result.Context != nil {
		n.Slot = notif.Params.Result.Context.Slot
	}

	ch <- n
	close(ch)
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will notice
				}
			}
			c.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"` // subscription ID
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext       `json:"context"`
	Value   wsSignatureValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsSignatureValue struct {
	Err interface{} `json:"err"`
}

var _ WSClient = (*WSClientImpl)(nil)
