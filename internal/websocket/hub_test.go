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

	"finclusion/internal/shared/testutil"
)

func dialTestHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, w, r, logger)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestHub_ConnectionHandshake(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger)
	hub.Start()
	defer hub.Stop()

	conn := dialTestHub(t, hub)

	msg := readMessage(t, conn)
	assert.Equal(t, TypeConnection, msg["type"])
	data := msg["data"].(map[string]interface{})
	assert.Equal(t, "connected", data["status"])
	assert.NotEmpty(t, data["client_id"])

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastProgressReachesClients(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger)
	hub.Start()
	defer hub.Stop()

	conn := dialTestHub(t, hub)
	readMessage(t, conn) // connection handshake

	hub.BroadcastProgress("enrich", 60, "interpolating gaps")

	msg := readMessage(t, conn)
	assert.Equal(t, TypeProgress, msg["type"])
	data := msg["data"].(map[string]interface{})
	assert.Equal(t, "enrich", data["stage"])
	assert.EqualValues(t, 60, data["progress"])
}

func TestHub_BroadcastRefreshNamesComponents(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger)
	hub.Start()
	defer hub.Stop()

	conn := dialTestHub(t, hub)
	readMessage(t, conn)

	hub.BroadcastRefresh("pipeline", []string{"summary", "forecasts"})

	msg := readMessage(t, conn)
	assert.Equal(t, TypeRefresh, msg["type"])
	data := msg["data"].(map[string]interface{})
	assert.Equal(t, "pipeline", data["source"])
	assert.Len(t, data["components"], 2)
}

func TestHub_StopDisconnectsClients(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger)
	hub.Start()

	conn := dialTestHub(t, hub)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	hub.Stop()

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		time.Second, 10*time.Millisecond)

	// A second Stop must not panic.
	hub.Stop()
}
