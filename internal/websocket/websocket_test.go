package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesBroadcast(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- Subscribe(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil, func(e Event) { events <- e })
	}()

	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.BroadcastChange("inventory", "update", "item-1")

	select {
	case e := <-events:
		assert.Equal(t, "inventory_updated", e.Type)
		assert.Equal(t, "item-1", e.ID)
		assert.Equal(t, "update", e.Action)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after cancel")
	}
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSubscribeDialError(t *testing.T) {
	err := Subscribe(context.Background(), "ws://127.0.0.1:1/api/ws", nil, func(Event) {})
	assert.Error(t, err)
}
