package relay

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
)

// Transport is one leg of the relay: a sequential frame reader plus a
// thread-safe writer. Both the widget socket and the upstream socket sit
// behind this, which keeps the session state machine testable without a
// live connection.
type Transport interface {
	// ReadFrame blocks until the next text frame arrives.
	ReadFrame() ([]byte, error)
	// WriteRaw sends a pre-encoded frame verbatim.
	WriteRaw(data []byte) error
	// WriteJSON encodes and sends v.
	WriteJSON(v any) error
	Close() error
}

// Dialer opens the upstream leg from a signed URL.
type Dialer func(ctx context.Context, signedURL string) (Transport, error)

// wsTransport adapts a gorilla connection to Transport. Writes are
// serialized; gorilla allows only one concurrent writer.
type wsTransport struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewWebsocketTransport wraps an established WebSocket connection.
func NewWebsocketTransport(conn *websocket.Conn) Transport {
	return &wsTransport{conn: conn}
}

// DialUpstream opens the provider conversation socket at the signed URL.
func DialUpstream(ctx context.Context, signedURL string) (Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, signedURL, nil)
	if err != nil {
		return nil, err
	}
	return NewWebsocketTransport(conn), nil
}

func (t *wsTransport) ReadFrame() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteRaw(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return websocket.ErrCloseSent
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) WriteJSON(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return websocket.ErrCloseSent
	}
	return t.conn.WriteJSON(v)
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}
