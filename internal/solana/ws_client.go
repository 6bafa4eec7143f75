package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/decred/slog"
	"github.com/gorilla/websocket"
)

// ErrWatcherClosed is returned by a closed SignatureWatcher.
var ErrWatcherClosed = errors.New("signature watcher closed")

// WatcherOptions configures a SignatureWatcher.
type WatcherOptions struct {
	Endpoint string

	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// AckTimeout bounds the wait for the node to return a subscription id.
	AckTimeout time.Duration
	// MaxBackoff caps the delay between reconnect attempts.
	MaxBackoff time.Duration

	Log slog.Logger
}

func (o *WatcherOptions) setDefaults() {
	if o.PingInterval <= 0 {
		o.PingInterval = 20 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 3 * o.PingInterval
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.AckTimeout <= 0 {
		o.AckTimeout = 15 * time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 30 * time.Second
	}
	if o.Log == nil {
		o.Log = slog.Disabled
	}
}

// SignatureWatcher multiplexes one-shot signatureSubscribe requests over a
// single connection. Pending watches are re-subscribed after a reconnect.
type SignatureWatcher struct {
	opts   WatcherOptions
	dialer websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	nextID    uint64
	watches   map[string]*watch
	byRequest map[uint64]*watch
	bySub     map[int64]*watch
	closed    bool

	done chan struct{}
	wg   sync.WaitGroup
}

type watch struct {
	signature string
	ch        chan SignatureNotification
	acked     chan struct{}
	ackOnce   sync.Once
}

func (w *watch) ack() { w.ackOnce.Do(func() { close(w.acked) }) }

var _ SignatureSubscriber = (*SignatureWatcher)(nil)

// NewSignatureWatcher dials endpoint and starts the read and ping loops.
func NewSignatureWatcher(ctx context.Context, opts WatcherOptions) (*SignatureWatcher, error) {
	opts.setDefaults()
	w := &SignatureWatcher{
		opts:      opts,
		dialer:    websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		watches:   make(map[string]*watch),
		byRequest: make(map[uint64]*watch),
		bySub:     make(map[int64]*watch),
		done:      make(chan struct{}),
	}

	conn, err := w.dial(ctx)
	if err != nil {
		return nil, err
	}
	w.conn = conn

	w.wg.Add(2)
	go w.readLoop(conn)
	go w.pingLoop()
	return w, nil
}

func (w *SignatureWatcher) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := w.dialer.DialContext(ctx, w.opts.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial solana websocket: %w", err)
	}
	return conn, nil
}

// SubscribeSignature registers signature and waits for the node's ack.
func (w *SignatureWatcher) SubscribeSignature(ctx context.Context, signature string) (<-chan SignatureNotification, error) {
	wt := &watch{
		signature: signature,
		ch:        make(chan SignatureNotification, 1),
		acked:     make(chan struct{}),
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrWatcherClosed
	}
	if _, ok := w.watches[signature]; ok {
		w.mu.Unlock()
		return nil, fmt.Errorf("signature %s already watched", signature)
	}
	w.watches[signature] = wt
	err := w.subscribeLocked(wt)
	w.mu.Unlock()
	if err != nil {
		w.forget(wt)
		return nil, err
	}

	timer := time.NewTimer(w.opts.AckTimeout)
	defer timer.Stop()
	select {
	case <-wt.acked:
		return wt.ch, nil
	case <-timer.C:
		err = fmt.Errorf("subscription to %s not acknowledged after %s", signature, w.opts.AckTimeout)
	case <-ctx.Done():
		err = ctx.Err()
	case <-w.done:
		return nil, ErrWatcherClosed
	}
	w.forget(wt)
	return nil, err
}

// subscribeLocked writes a signatureSubscribe request for wt. Caller holds mu.
func (w *SignatureWatcher) subscribeLocked(wt *watch) error {
	if w.conn == nil {
		// sent again once reconnected
		return nil
	}
	w.nextID++
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      w.nextID,
		Method:  "signatureSubscribe",
		Params:  []interface{}{wt.signature, map[string]string{"commitment": "confirmed"}},
	}
	w.byRequest[req.ID] = wt

	w.conn.SetWriteDeadline(time.Now().Add(w.opts.WriteTimeout))
	if err := w.conn.WriteJSON(req); err != nil {
		delete(w.byRequest, req.ID)
		return fmt.Errorf("write signatureSubscribe: %w", err)
	}
	return nil
}

// forget drops every mapping of wt without closing its channel.
func (w *SignatureWatcher) forget(wt *watch) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watches[wt.signature] == wt {
		delete(w.watches, wt.signature)
	}
	for id, other := range w.byRequest {
		if other == wt {
			delete(w.byRequest, id)
		}
	}
	for id, other := range w.bySub {
		if other == wt {
			delete(w.bySub, id)
		}
	}
}

// Close stops the loops and closes every pending notification channel.
func (w *SignatureWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.done)
	if w.conn != nil {
		w.conn.SetWriteDeadline(time.Now().Add(w.opts.WriteTimeout))
		_ = w.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		w.conn.Close()
	}
	for sig, wt := range w.watches {
		close(wt.ch)
		delete(w.watches, sig)
	}
	w.byRequest = map[uint64]*watch{}
	w.bySub = map[int64]*watch{}
	w.mu.Unlock()

	w.wg.Wait()
	return nil
}

func (w *SignatureWatcher) readLoop(conn *websocket.Conn) {
	defer w.wg.Done()
	for {
		conn.SetReadDeadline(time.Now().Add(w.opts.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err == nil {
			w.handle(data)
			continue
		}
		if w.isClosed() {
			return
		}
		w.opts.Log.Warnf("Solana websocket read failed, reconnecting: %v", err)
		if conn = w.reconnect(); conn == nil {
			return
		}
	}
}

// reconnect redials with exponential backoff until it succeeds or the
// watcher closes, then re-subscribes every pending watch.
func (w *SignatureWatcher) reconnect() *websocket.Conn {
	w.mu.Lock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	// subscription ids do not survive the connection
	w.byRequest = map[uint64]*watch{}
	w.bySub = map[int64]*watch{}
	w.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-w.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = w.opts.MaxBackoff
	b.MaxElapsedTime = 0

	var conn *websocket.Conn
	err := backoff.RetryNotify(func() error {
		var err error
		conn, err = w.dial(ctx)
		return err
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		w.opts.Log.Debugf("Solana websocket redial failed, next attempt in %s: %v", next, err)
	})
	if err != nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		conn.Close()
		return nil
	}
	w.conn = conn
	for _, wt := range w.watches {
		if err := w.subscribeLocked(wt); err != nil {
			// the read loop will see the broken connection and retry
			w.opts.Log.Warnf("Resubscribe %s: %v", wt.signature, err)
			break
		}
	}
	w.opts.Log.Infof("Solana websocket reconnected, %d signature(s) pending", len(w.watches))
	return conn
}

func (w *SignatureWatcher) handle(data []byte) {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		w.opts.Log.Debugf("Solana websocket: undecodable message: %v", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case msg.Method == "signatureNotification" && msg.Params != nil:
		wt, ok := w.bySub[msg.Params.Subscription]
		if !ok {
			return
		}
		// the node drops signature subscriptions after one notification
		delete(w.bySub, msg.Params.Subscription)
		delete(w.watches, wt.signature)

		n := SignatureNotification{Signature: wt.signature, Err: msg.Params.Result.Value.Err}
		if msg.Params.Result.Context != nil {
			n.Slot = msg.Params.Result.Context.Slot
		}
		wt.ch <- n
		close(wt.ch)

	case msg.ID != 0:
		wt, ok := w.byRequest[msg.ID]
		if !ok {
			return
		}
		delete(w.byRequest, msg.ID)
		if msg.Error != nil {
			w.opts.Log.Warnf("signatureSubscribe %s rejected: code=%d %s", wt.signature, msg.Error.Code, msg.Error.Message)
			return
		}
		var subID int64
		if err := json.Unmarshal(msg.Result, &subID); err != nil {
			w.opts.Log.Warnf("signatureSubscribe %s: bad subscription id %s", wt.signature, msg.Result)
			return
		}
		w.bySub[subID] = wt
		wt.ack()
	}
}

func (w *SignatureWatcher) pingLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.Lock()
			if w.conn != nil {
				// a dead connection surfaces as a read error
				_ = w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.opts.WriteTimeout))
			}
			w.mu.Unlock()
		}
	}
}

func (w *SignatureWatcher) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsMessage struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Method string          `json:"method"`
	Params *struct {
		Subscription int64 `json:"subscription"`
		Result       struct {
			Context *struct {
				Slot int64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Err interface{} `json:"err"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
