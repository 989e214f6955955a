package exchange

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is the minimal surface the Subscriber, Validator and
// ExchangeStream need from a connection — narrow enough that tests supply
// an in-memory fake instead of dialing a real socket.
type Transport interface {
	WriteMessage(msg WsMessage) error
	ReadMessage() (WsMessage, error)
	Close() error
}

const (
	dialTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
)

// wsTransport adapts gorilla/websocket to the Transport interface.
type wsTransport struct {
	conn *websocket.Conn
}

// Dial opens a gorilla/websocket connection to url and wraps it as a
// Transport.
func Dial(ctx context.Context, url string) (Transport, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) WriteMessage(msg WsMessage) error {
	t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return t.conn.WriteMessage(msg.Type, msg.Payload)
}

func (t *wsTransport) ReadMessage() (WsMessage, error) {
	msgType, data, err := t.conn.ReadMessage()
	if err != nil {
		return WsMessage{}, err
	}
	return WsMessage{Type: msgType, Payload: data}, nil
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
