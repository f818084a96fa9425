// Package dashboard holds the state behind each dashboard page: what is
// loaded, what the user has typed, and which message to show.
package dashboard

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rayaadinda/kp-inventory/internal/gateway"
)

// Message renders err for display next to the control that triggered it.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ge *gateway.Error
	if !errors.As(err, &ge) {
		return err.Error()
	}
	switch ge.Kind {
	case gateway.AuthRequired:
		return "authentication required, please sign in"
	case gateway.RateLimited:
		return "too many requests, please try again in a moment"
	case gateway.ServerError:
		if ge.Status == http.StatusNotFound {
			return "API endpoint not found, check the server configuration"
		}
		return fmt.Sprintf("server error: %d, the server did not return valid JSON", ge.Status)
	case gateway.InvalidResponseShape:
		return "invalid response from server: not valid JSON"
	}
	return ge.Error()
}

// NeedsLogin reports whether err should send the user back to the login view.
func NeedsLogin(err error) bool {
	return gateway.IsKind(err, gateway.AuthRequired)
}
