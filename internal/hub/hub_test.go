package hub

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routeiq/internal/metrics"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	typ, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	return string(msg)
}

func TestHub_EchoesAck(t *testing.T) {
	h := New(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	assert.Equal(t, "ack:ping", readText(t, conn))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("")))
	assert.Equal(t, "ack:", readText(t, conn))
}

func TestHub_Broadcast(t *testing.T) {
	h := New(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	a, b := dial(t, srv), dial(t, srv)
	// a round trip proves each client is registered
	for _, c := range []*websocket.Conn{a, b} {
		require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("hi")))
		require.Equal(t, "ack:hi", readText(t, c))
	}
	assert.Equal(t, 2, h.Clients())

	h.Publish(context.Background(), "snapshot", map[string]int{"tick": 7})
	for _, c := range []*websocket.Conn{a, b} {
		var env struct {
			Type string         `json:"type"`
			Data map[string]int `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(readText(t, c)), &env))
		assert.Equal(t, "snapshot", env.Type)
		assert.Equal(t, 7, env.Data["tick"])
	}
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	h := New(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("x")))
	readText(t, conn)
	require.Equal(t, 1, h.Clients())

	conn.Close()
	assert.Eventually(t, func() bool { return h.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_CloseDisconnectsAndRefuses(t *testing.T) {
	h := New(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("x")))
	readText(t, conn)

	h.Close()
	assert.Equal(t, 0, h.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	late := dial(t, srv)
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestHub_DropsSlowClient(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	h := New(m)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	// Never read from this conn, so the server's writes back up.
	dial(t, srv)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	frame := strings.Repeat("x", 1<<20)
	require.Eventually(t, func() bool {
		h.Publish(context.Background(), "snapshot", frame)
		return h.Clients() == 0
	}, 10*time.Second, time.Millisecond)

	assert.GreaterOrEqual(t, counterValue(t, reg, "routeiq_ws_dropped_clients_total"), 1.0)
}

func TestHub_PublishDoesNotBlockOnSlowClient(t *testing.T) {
	h := New(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	dial(t, srv)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 4*sendBuffer; i++ {
			h.Publish(context.Background(), "snapshot", i)
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a client that does not read")
	}
}

func TestHub_PingsIdleClients(t *testing.T) {
	h := New(nil)
	h.pingPeriod = 20 * time.Millisecond
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	conn := dial(t, srv)
	pings := make(chan struct{}, 8)
	conn.SetPingHandler(func(data string) error {
		select {
		case pings <- struct{}{}:
		default:
		}
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	// Control frames are only processed while reading.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.NotEmpty(t, pings)
}

func TestHub_DropsPeerThatStopsAnswering(t *testing.T) {
	h := New(nil)
	h.pongWait = 100 * time.Millisecond
	h.pingPeriod = time.Hour
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	dial(t, srv)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return h.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
