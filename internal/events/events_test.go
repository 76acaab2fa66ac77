package events

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *Hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	// The handler registers the client just after the handshake completes.
	deadline := time.Now().Add(2 * time.Second)
	for hub.clientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, 1, hub.clientCount())

	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var ev map[string]any
	require.NoError(t, conn.ReadJSON(&ev))

	return ev
}

func TestHub_BroadcastsProgress(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub)

	hub.Progress(3, 10, 2, 7, true)

	ev := readEvent(t, conn)
	assert.Equal(t, "progress", ev["type"])
	assert.Equal(t, float64(3), ev["image_index"])
	assert.Equal(t, float64(10), ev["total"])
	assert.Equal(t, float64(2), ev["step"])
	assert.Equal(t, float64(7), ev["total_steps"])
	assert.Equal(t, true, ev["major"])
}

func TestHub_BroadcastsSkipAndProcessed(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub)

	hub.Skipped("/pages/001.png", "ocr", "engine crashed")
	ev := readEvent(t, conn)
	assert.Equal(t, "skipped", ev["type"])
	assert.Equal(t, "/pages/001.png", ev["path"])
	assert.Equal(t, "ocr", ev["stage"])
	assert.Equal(t, "engine crashed", ev["message"])

	hub.Processed(1, nil, "/pages/002.png")
	ev = readEvent(t, conn)
	assert.Equal(t, "processed", ev["type"])
	assert.Equal(t, "/pages/002.png", ev["path"])
}

func TestHub_DropsDisconnectedClients(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub)

	require.NoError(t, conn.Close())

	deadline := time.Now().Add(2 * time.Second)
	for hub.clientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 0, hub.clientCount())

	// Broadcasting with no clients is a no-op.
	hub.Progress(0, 1, 1, 7, true)
	require.NoError(t, hub.Close())
}
