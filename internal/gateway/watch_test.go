package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rayaadinda/kp-inventory/internal/session"
	"github.com/rayaadinda/kp-inventory/internal/websocket"
)

func TestWatch_RequiresToken(t *testing.T) {
	a, err := session.NewAuthContext(nil)
	require.NoError(t, err)
	c := New("http://127.0.0.1:1", a)

	err = c.Watch(context.Background(), func(websocket.Event) {})
	assert.True(t, IsKind(err, AuthRequired))
}

func TestWatch_ForwardsEvents(t *testing.T) {
	hub := websocket.NewHub(nil)
	c, _ := newTestClient(t, hub.ServeHTTP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan websocket.Event, 1)
	go c.Watch(ctx, func(e websocket.Event) { got <- e })

	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.BroadcastChange("inventory", "delete", "a1")

	select {
	case e := <-got:
		assert.Equal(t, "inventory_deleted", e.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}
}

func TestWatch_DialFailureIsTransport(t *testing.T) {
	c := New("http://127.0.0.1:1", signedIn(t))
	err := c.Watch(context.Background(), func(websocket.Event) {})
	assert.True(t, IsKind(err, Transport))
}

func TestWSURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:5000", wsURL("http://localhost:5000/"))
	assert.Equal(t, "wss://inv.example.com", wsURL("https://inv.example.com"))
}
