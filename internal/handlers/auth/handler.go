// Package auth serves login for the dashboard.
package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/rayaadinda/kp-inventory/internal/audit"
	authn "github.com/rayaadinda/kp-inventory/internal/auth"
	"github.com/rayaadinda/kp-inventory/internal/models"
	"github.com/rayaadinda/kp-inventory/internal/response"
	"github.com/rayaadinda/kp-inventory/internal/store"
	"github.com/rayaadinda/kp-inventory/internal/validation"
)

const msgInvalidCredentials = "Invalid email or password"

// Handler holds dependencies for auth handlers.
type Handler struct {
	DB     *sqlx.DB
	Users  store.UserRepository
	Tokens *authn.TokenIssuer
	Log    *zap.Logger

	// GetCurrentUser returns the authenticated caller.
	GetCurrentUser func(r *http.Request) models.User
}

func (h *Handler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

// HandleLogin handles POST /api/auth/login. The body is a LoginResponse
// with the token at the top level, not the data envelope.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "Invalid request body", 400)
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "email", req.Email)
	validation.ValidateEmail(ve, "email", req.Email)
	validation.RequireField(ve, "password", req.Password)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}
	ctx := r.Context()

	locked, err := authn.IsAccountLocked(ctx, h.DB, req.Email)
	if err == nil && locked {
		response.Err(w, "Account temporarily locked due to too many failed login attempts. Try again later.", 403)
		return
	}

	user, hash, err := h.Users.FindByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		response.Err(w, msgInvalidCredentials, 400)
		return
	}
	if err != nil {
		h.logger().Error("find user", zap.Error(err))
		response.Err(w, "login failed", 500)
		return
	}

	if err := authn.CheckPassword(hash, req.Password); err != nil {
		if err := authn.IncrementFailedLoginAttempts(ctx, h.DB, user.Email); err != nil {
			h.logger().Warn("count failed login", zap.Error(err))
		}
		response.Err(w, msgInvalidCredentials, 400)
		return
	}

	if err := authn.ResetFailedLoginAttempts(ctx, h.DB, user.Email); err != nil {
		h.logger().Warn("reset failed logins", zap.Error(err))
	}

	token, err := h.Tokens.Issue(*user)
	if err != nil {
		h.logger().Error("issue token", zap.Error(err))
		response.Err(w, "login failed", 500)
		return
	}

	if err := audit.Log(ctx, h.DB, audit.FromRequest(r, user.Email, audit.ActionLogin, "auth", user.ID, "Signed in")); err != nil {
		h.logger().Warn("audit write failed", zap.Error(err))
	}
	h.logger().Info("login", zap.String("email", user.Email), zap.String("role", user.Role))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.LoginResponse{Success: true, Token: token, User: user})
}

// HandleMe handles GET /api/auth/me.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, h.GetCurrentUser(r))
}
