// Package testutil sets up databases, users and requests for handler and
// server tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/rayaadinda/kp-inventory/internal/auth"
	"github.com/rayaadinda/kp-inventory/internal/models"
	"github.com/rayaadinda/kp-inventory/internal/store"
)

const (
	AdminEmail    = "admin@example.com"
	StaffEmail    = "staff@example.com"
	TestPassword  = "changeme"
	TestJWTSecret = "test-secret"
)

// SetupTestDB creates a migrated in-memory SQLite database seeded with the
// default admin user.
func SetupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	testDB, err := store.Open(":memory:", nil)
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	t.Cleanup(func() { testDB.Close() })

	if err := store.SeedAdmin(context.Background(), testDB, AdminEmail, TestPassword); err != nil {
		t.Fatalf("Failed to create default admin user: %v", err)
	}
	return testDB
}

// Admin returns the seeded admin user.
func Admin(t *testing.T, db *sqlx.DB) models.User {
	t.Helper()
	u, _, err := store.NewUserRepository(db).FindByEmail(context.Background(), AdminEmail)
	if err != nil {
		t.Fatalf("Failed to find admin user: %v", err)
	}
	return *u
}

// CreateTestUser creates a user with TestPassword and the given role.
func CreateTestUser(t *testing.T, db *sqlx.DB, email, role string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	u, err := store.NewUserRepository(db).Create(context.Background(),
		models.User{Name: email + " Display", Email: email, Role: role}, string(hash))
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return *u
}

// CreateTestItem inserts an inventory item.
func CreateTestItem(t *testing.T, db *sqlx.DB, code, name string, qty int) models.InventoryItem {
	t.Helper()
	item, err := store.NewItemRepository(db).Create(context.Background(),
		models.CreateItemRequest{ProductCode: code, ProductName: name, Quantity: qty, Supplier: "Acme", Location: "A-1"})
	if err != nil {
		t.Fatalf("Failed to create test item: %v", err)
	}
	return *item
}

// Tokens returns the issuer shared by tests.
func Tokens() *auth.TokenIssuer {
	return auth.NewTokenIssuer(TestJWTSecret, time.Hour)
}

// TokenFor signs a bearer token for u.
func TokenFor(t *testing.T, u models.User) string {
	t.Helper()
	tok, err := Tokens().Issue(u)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return tok
}

// AuthedRequest creates an HTTP request carrying a bearer token.
func AuthedRequest(method, path string, body []byte, token string) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// AuthedJSONRequest creates an authenticated HTTP request with JSON content type.
func AuthedJSONRequest(method, path string, body interface{}, token string) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}

	req := AuthedRequest(method, path, bodyBytes, token)
	req.Header.Set("Content-Type", "application/json")

	return req
}

// DecodeAPIResponse decodes an APIResponse from a ResponseRecorder.
func DecodeAPIResponse(t *testing.T, w *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var response models.APIResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode API response: %v", err)
	}
	return response
}

// AssertStatus checks that the HTTP status code matches expected.
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// DecodeEnvelope decodes an API response envelope and extracts the data.
func DecodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode API envelope: %v", err)
	}
	dataBytes, _ := json.Marshal(resp.Data)
	if err := json.Unmarshal(dataBytes, v); err != nil {
		t.Fatalf("Failed to decode data from envelope: %v", err)
	}
}
