package solana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// fakeNode acks every signatureSubscribe with subscription id = request id
// and, when notify is set, immediately reports the signature confirmed.
type fakeNode struct {
	t        *testing.T
	notify   bool
	ack      bool
	dropOnce atomic.Bool
	conns    atomic.Int32
	subs     chan string
}

func newFakeNode(t *testing.T) *fakeNode {
	return &fakeNode{t: t, notify: true, ack: true, subs: make(chan string, 16)}
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer c.Close()
	n.conns.Add(1)

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			n.t.Errorf("unmarshal request: %v", err)
			return
		}
		if req.Method != "signatureSubscribe" {
			n.t.Errorf("unexpected method %s", req.Method)
			continue
		}
		sig, _ := req.Params[0].(string)
		n.subs <- sig

		if n.dropOnce.CompareAndSwap(true, false) {
			// drop the connection before acking
			return
		}
		if !n.ack {
			continue
		}
		c.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": req.ID})
		if n.notify {
			c.WriteJSON(map[string]interface{}{
				"jsonrpc": "2.0",
				"method":  "signatureNotification",
				"params": map[string]interface{}{
					"subscription": req.ID,
					"result": map[string]interface{}{
						"context": map[string]interface{}{"slot": 777},
						"value":   map[string]interface{}{"err": nil},
					},
				},
			})
		}
	}
}

func newWatcher(t *testing.T, server *httptest.Server, opts WatcherOptions) *SignatureWatcher {
	t.Helper()
	opts.Endpoint = wsURL(server)
	w, err := NewSignatureWatcher(context.Background(), opts)
	if err != nil {
		t.Fatalf("NewSignatureWatcher: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func TestSignatureWatcher_Notification(t *testing.T) {
	node := newFakeNode(t)
	server := httptest.NewServer(node)
	defer server.Close()
	w := newWatcher(t, server, WatcherOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := w.SubscribeSignature(ctx, "sig-abc")
	if err != nil {
		t.Fatalf("SubscribeSignature: %v", err)
	}

	select {
	case n, ok := <-ch:
		if !ok {
			t.Fatal("channel closed without notification")
		}
		if n.Signature != "sig-abc" || n.Slot != 777 || n.Err != nil {
			t.Errorf("unexpected notification %+v", n)
		}
	case <-ctx.Done():
		t.Fatal("timeout waiting for notification")
	}
	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after notification")
	}

	// the signature can be watched again once delivered
	if _, err := w.SubscribeSignature(ctx, "sig-abc"); err != nil {
		t.Errorf("second SubscribeSignature: %v", err)
	}
}

func TestSignatureWatcher_DuplicateSignature(t *testing.T) {
	node := newFakeNode(t)
	node.notify = false
	server := httptest.NewServer(node)
	defer server.Close()
	w := newWatcher(t, server, WatcherOptions{})

	if _, err := w.SubscribeSignature(context.Background(), "sig"); err != nil {
		t.Fatalf("SubscribeSignature: %v", err)
	}
	if _, err := w.SubscribeSignature(context.Background(), "sig"); err == nil {
		t.Error("expected error watching the same signature twice")
	}
}

func TestSignatureWatcher_AckTimeout(t *testing.T) {
	node := newFakeNode(t)
	node.ack = false
	server := httptest.NewServer(node)
	defer server.Close()
	w := newWatcher(t, server, WatcherOptions{AckTimeout: 50 * time.Millisecond})

	if _, err := w.SubscribeSignature(context.Background(), "sig"); err == nil {
		t.Fatal("expected subscription timeout")
	}
	// a timed-out watch is forgotten
	w.mu.Lock()
	pending := len(w.watches)
	w.mu.Unlock()
	if pending != 0 {
		t.Errorf("expected no pending watches, got %d", pending)
	}
}

func TestSignatureWatcher_ResubscribesAfterReconnect(t *testing.T) {
	node := newFakeNode(t)
	node.dropOnce.Store(true)
	server := httptest.NewServer(node)
	defer server.Close()
	w := newWatcher(t, server, WatcherOptions{AckTimeout: 5 * time.Second, MaxBackoff: 100 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ch, err := w.SubscribeSignature(ctx, "sig-retry")
	if err != nil {
		t.Fatalf("SubscribeSignature: %v", err)
	}
	select {
	case n := <-ch:
		if n.Signature != "sig-retry" {
			t.Errorf("unexpected signature %s", n.Signature)
		}
	case <-ctx.Done():
		t.Fatal("timeout waiting for notification after reconnect")
	}
	if got := node.conns.Load(); got < 2 {
		t.Errorf("expected a reconnect, saw %d connection(s)", got)
	}
}

func TestSignatureWatcher_CloseIdempotent(t *testing.T) {
	node := newFakeNode(t)
	server := httptest.NewServer(node)
	defer server.Close()

	w, err := NewSignatureWatcher(context.Background(), WatcherOptions{Endpoint: wsURL(server)})
	if err != nil {
		t.Fatalf("NewSignatureWatcher: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := w.SubscribeSignature(context.Background(), "sig"); !errors.Is(err, ErrWatcherClosed) {
		t.Errorf("expected ErrWatcherClosed, got %v", err)
	}
}

func TestSignatureWatcher_DialFailure(t *testing.T) {
	if _, err := NewSignatureWatcher(context.Background(), WatcherOptions{Endpoint: "ws://127.0.0.1:1"}); err == nil {
		t.Error("expected dial error")
	}
}
