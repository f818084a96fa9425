package dashboard

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/rayaadinda/kp-inventory/internal/gateway"
	"github.com/rayaadinda/kp-inventory/internal/session"
)

type LoginPage struct {
	gw   gateway.Gateway
	auth *session.AuthContext
	log  *zap.Logger
}

func NewLoginPage(gw gateway.Gateway, auth *session.AuthContext, log *zap.Logger) *LoginPage {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoginPage{gw: gw, auth: auth, log: log}
}

// Submit signs in and stores the session. Errors are ready for display
// through Message.
func (p *LoginPage) Submit(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return gateway.NewLocalValidation("email and password are required")
	}
	resp, err := p.gw.Login(ctx, email, password)
	if err != nil {
		p.log.Info("login failed", zap.String("email", email), zap.Error(err))
		return err
	}
	if err := p.auth.SignIn(resp.Token, resp.User); err != nil {
		return err
	}
	p.log.Info("signed in", zap.String("email", email))
	return nil
}

func (p *LoginPage) Logout() error {
	return p.auth.SignOut()
}
