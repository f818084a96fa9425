// Package response writes the {success, data, message} JSON envelope.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/rayaadinda/kp-inventory/internal/models"
)

// JSON writes a successful API response with the given data.
func JSON(w http.ResponseWriter, data interface{}) {
	JSONStatus(w, http.StatusOK, data, "")
}

// JSONStatus writes a successful response with an explicit status and an
// optional message.
func JSONStatus(w http.ResponseWriter, code int, data interface{}, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(models.APIResponse{Success: true, Data: data, Message: msg})
}

// Err writes a failed response with the given message and HTTP status code.
func Err(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(models.APIResponse{Success: false, Message: msg})
}

// DecodeBody decodes a JSON request body into the given value.
func DecodeBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
