package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rayaadinda/kp-inventory/internal/websocket"
)

// Watch streams inventory change events from /api/ws until ctx ends. It
// needs a signed-in session, like every other call.
func (c *Client) Watch(ctx context.Context, fn func(websocket.Event)) error {
	token := c.auth.Token()
	if token == "" {
		return &Error{Kind: AuthRequired}
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	err := websocket.Subscribe(ctx, wsURL(c.baseURL)+"/api/ws", header, fn)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{Kind: Transport, Err: err}
}

func wsURL(base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}
