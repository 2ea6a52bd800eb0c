package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestDialWebsocketRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	echoed := make(chan []byte, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		kind, data, err := conn.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, websocket.BinaryMessage, kind)
		echoed <- data

		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, data))
	}))
	defer server.Close()

	addr := strings.TrimPrefix(server.URL, "http://")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := DialWebsocket(ctx, addr)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Send([]byte{1, 2, 3}))

	select {
	case got := <-echoed:
		require.Equal(t, []byte{1, 2, 3}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the message")
	}

	reply, err := conn.Recv()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, reply)
}

func TestWithPortAppendsDefaultPort(t *testing.T) {
	require.Equal(t, "10.0.0.1:21841", withPort("10.0.0.1"))
	require.Equal(t, "10.0.0.1:9999", withPort("10.0.0.1:9999"))
}
