package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"routeiq/internal/grid"
	"routeiq/internal/notify"
	"routeiq/internal/sim"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNew_DisabledWithoutCredentials(t *testing.T) {
	assert.Nil(t, New(Options{}))
	assert.Nil(t, New(Options{BotToken: "t"}))
	assert.Nil(t, New(Options{ChatID: "42"}))

	var a *Alerter
	a.Publish(context.Background(), notify.TopicIncident, sim.IncidentUpdate{})
	assert.NoError(t, a.Run(context.Background()))
}

func TestAlerter_SendsIncidents(t *testing.T) {
	type sent struct {
		path string
		body map[string]string
	}
	got := make(chan sent, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		got <- sent{path: r.URL.Path, body: body}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	a := New(Options{BotToken: "secret", ChatID: "-100", APIBase: srv.URL + "/", Client: srv.Client()})
	require.NotNil(t, a)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	a.Publish(ctx, notify.TopicSnapshot, sim.Snapshot{})
	a.Publish(ctx, notify.TopicIncident, sim.IncidentUpdate{Point: grid.Point{X: 3, Y: 4}})

	select {
	case s := <-got:
		assert.Equal(t, "/botsecret/sendMessage", s.path)
		assert.Equal(t, "-100", s.body["chat_id"])
		assert.Equal(t, "RouteIQ: incident reported at (3, 4), cell blocked", s.body["text"])
	case <-time.After(2 * time.Second):
		t.Fatal("no alert delivered")
	}

	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, got, "snapshots must not be forwarded")
}

func TestFormatIncident_Cleared(t *testing.T) {
	msg := FormatIncident(sim.IncidentUpdate{Point: grid.Point{X: 1, Y: 2}, Cleared: true})
	assert.Equal(t, "RouteIQ: incident cleared at (1, 2)", msg)
}

func TestAlerter_PublishNeverBlocks(t *testing.T) {
	a := New(Options{BotToken: "t", ChatID: "1", APIBase: "http://127.0.0.1:1"})
	require.NotNil(t, a)

	// Run is not started, so nothing drains the queue.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < queueSize+10; i++ {
			a.Publish(context.Background(), notify.TopicIncident, sim.IncidentUpdate{Point: grid.Point{X: i % 20, Y: 0}})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
	assert.Len(t, a.queue, queueSize)
}
