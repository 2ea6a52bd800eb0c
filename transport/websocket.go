package transport

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// Port is the reference deployment's listening port (spec §4.2).
const Port = 21841

// DialWebsocket dials addr over a binary-mode WebSocket. addr may be a
// bare host, in which case Port is appended.
func DialWebsocket(ctx context.Context, addr string) (Conn, error) {
	u := url.URL{Scheme: "ws", Host: withPort(addr), Path: "/"}
	conn, _, err := (&websocket.Dialer{}).DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return &wsConn{conn: conn}, nil
}

func withPort(addr string) string {
	if strings.LastIndexByte(addr, ':') > strings.LastIndexByte(addr, ']') {
		return addr
	}
	return fmt.Sprintf("%s:%d", addr, Port)
}

// wsConn adapts a *websocket.Conn to Conn, rejecting any message that
// isn't binary (the wire protocol is never text).
type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) Send(frame []byte) error {
	return w.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (w *wsConn) Recv() ([]byte, error) {
	kind, data, err := w.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if kind != websocket.BinaryMessage {
		return nil, fmt.Errorf("transport: unexpected websocket message type %d", kind)
	}
	return data, nil
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}
