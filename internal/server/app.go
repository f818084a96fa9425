// Package server wires the reference backend: routes, auth and the
// middleware chain.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/rayaadinda/kp-inventory/internal/auth"
	"github.com/rayaadinda/kp-inventory/internal/events"
	"github.com/rayaadinda/kp-inventory/internal/models"
	"github.com/rayaadinda/kp-inventory/internal/websocket"
)

// ContextKey is the type used for request context keys.
type ContextKey string

const CtxUser ContextKey = "user"

// UserFrom returns the user RequireAuth stored on the request.
func UserFrom(r *http.Request) models.User {
	u, _ := r.Context().Value(CtxUser).(models.User)
	return u
}

func withUser(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, CtxUser, u)
}

// App holds shared dependencies for the application.
type App struct {
	DB     *sqlx.DB
	Hub    *websocket.Hub
	Tokens *auth.TokenIssuer
	Events events.Publisher
	Log    *zap.Logger

	AllowOrigins []string
	RateLimit    int
	RateWindow   time.Duration
	Limiter      *RateLimiter
}
