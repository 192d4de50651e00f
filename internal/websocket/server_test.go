package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dan1elw/LARA/internal/tracking"
	"github.com/dan1elw/LARA/pkg/logger"
)

func newTestHub(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)

	hub := NewServer(log)
	go hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleConnection)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func waitForClients(t *testing.T, hub *Server, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		n := len(hub.clients)
		hub.mu.RUnlock()
		if n == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d clients", want)
}

func TestBroadcastReachesAllClients(t *testing.T) {
	hub, srv := newTestHub(t)
	c1 := dial(t, srv)
	c2 := dial(t, srv)
	waitForClients(t, hub, 2)

	hub.BroadcastSessionSealed(&tracking.FlightSession{
		ID:       "abc123_DLH123_1756400000",
		ICAO24:   "abc123",
		Callsign: "DLH123",
	})

	for _, conn := range []*websocket.Conn{c1, c2} {
		msg := readMessage(t, conn)
		assert.Equal(t, MessageTypeSessionSealed, msg.Type)
		data, ok := msg.Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "abc123", data["icao24"])
	}
}

func TestBroadcastPositionsSkipsEmptyBatch(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	hub.BroadcastPositions(nil)
	lat, lon := 50.05, 8.60
	hub.BroadcastPositions([]tracking.PositionSample{{
		ICAO24: "3c6444",
		Lat:    &lat,
		Lon:    &lon,
	}})

	// The empty batch must not have produced a message, so the first frame
	// received is the one-sample batch.
	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypePositions, msg.Type)
	batch, ok := msg.Data.([]any)
	require.True(t, ok)
	assert.Len(t, batch, 1)
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}
