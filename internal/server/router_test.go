package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rayaadinda/kp-inventory/internal/gateway"
	"github.com/rayaadinda/kp-inventory/internal/models"
	"github.com/rayaadinda/kp-inventory/internal/session"
	"github.com/rayaadinda/kp-inventory/internal/testutil"
	"github.com/rayaadinda/kp-inventory/internal/websocket"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return &App{
		DB:           db,
		Hub:          websocket.NewHub(nil),
		Tokens:       testutil.Tokens(),
		AllowOrigins: []string{"http://localhost:3000"},
	}
}

func TestHealth(t *testing.T) {
	h := newTestApp(t).Router()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	testutil.AssertStatus(t, w, 200)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestRequireAuth(t *testing.T) {
	h := newTestApp(t).Router()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/inventory", nil))
	testutil.AssertStatus(t, w, 401)
	resp := testutil.DecodeAPIResponse(t, w)
	assert.False(t, resp.Success)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, testutil.AuthedRequest("GET", "/api/inventory", nil, "garbage"))
	testutil.AssertStatus(t, w, 401)

	w = httptest.NewRecorder()
	tok := testutil.TokenFor(t, models.User{ID: "s1", Email: "staff@example.com", Role: models.RoleStaff})
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/inventory?access_token="+tok, nil))
	testutil.AssertStatus(t, w, 200)
}

func TestDeleteRequiresAdmin(t *testing.T) {
	app := newTestApp(t)
	h := app.Router()
	item := testutil.CreateTestItem(t, app.DB, "WR-001", "Wire", 3)
	staff := testutil.CreateTestUser(t, app.DB, testutil.StaffEmail, models.RoleStaff)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, testutil.AuthedRequest("DELETE", "/api/inventory/"+item.ID, nil, testutil.TokenFor(t, staff)))
	testutil.AssertStatus(t, w, 403)
	assert.Equal(t, "Only administrators can perform this action", testutil.DecodeAPIResponse(t, w).Message)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, testutil.AuthedRequest("DELETE", "/api/inventory/"+item.ID, nil, testutil.TokenFor(t, testutil.Admin(t, app.DB))))
	testutil.AssertStatus(t, w, 200)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, testutil.AuthedRequest("GET", "/api/audit?module=inventory", nil, testutil.TokenFor(t, staff)))
	testutil.AssertStatus(t, w, 403)
}

func TestRateLimitMiddleware(t *testing.T) {
	app := newTestApp(t)
	app.RateLimit = 2
	h := app.Router()
	tok := testutil.TokenFor(t, testutil.Admin(t, app.DB))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, testutil.AuthedRequest("GET", "/api/inventory", nil, tok))
		testutil.AssertStatus(t, w, 200)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, testutil.AuthedRequest("GET", "/api/inventory", nil, tok))
	testutil.AssertStatus(t, w, 429)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	testutil.AssertStatus(t, w, 200)
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	exceeded, remaining, _ := rl.CheckRateLimit("k", 1, time.Minute)
	assert.False(t, exceeded)
	assert.Equal(t, 0, remaining)

	exceeded, _, reset := rl.CheckRateLimit("k", 1, time.Minute)
	assert.True(t, exceeded)
	assert.Equal(t, now.Add(time.Minute), reset)

	now = now.Add(61 * time.Second)
	exceeded, _, _ = rl.CheckRateLimit("k", 1, time.Minute)
	assert.False(t, exceeded)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestApp(t).Router()
	req := httptest.NewRequest("OPTIONS", "/api/inventory", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

// TestGatewayAgainstRouter drives the dashboard's gateway client against
// the real routes.
func TestGatewayAgainstRouter(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateTestItem(t, app.DB, "WR-001", "Wire AWG 18", 20)
	srv := httptest.NewServer(app.Router())
	defer srv.Close()

	authCtx, err := session.NewAuthContext(nil)
	require.NoError(t, err)
	gw := gateway.New(srv.URL, authCtx)
	ctx := context.Background()

	_, err = gw.ListInventory(ctx)
	assert.True(t, gateway.IsKind(err, gateway.AuthRequired))

	_, err = gw.Login(ctx, testutil.AdminEmail, "wrong")
	assert.True(t, gateway.IsKind(err, gateway.Rejected))

	resp, err := gw.Login(ctx, testutil.AdminEmail, testutil.TestPassword)
	require.NoError(t, err)
	require.NoError(t, authCtx.SignIn(resp.Token, resp.User))

	created, err := gw.CreateItem(ctx, models.CreateItemRequest{ProductCode: "TM-010", ProductName: "Terminal Ring", Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, "Terminal", created.Category)

	_, err = gw.CreateItem(ctx, models.CreateItemRequest{ProductCode: "TM-010", ProductName: "Terminal Ring"})
	assert.True(t, gateway.IsKind(err, gateway.Rejected))

	items, err := gw.ListInventory(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	res, err := gw.SubmitCheckout(ctx, models.CheckoutRequest{WorkOrderNumber: "WO-1", Items: []models.CheckoutItem{
		{ItemCode: "WR-001", Quantity: 8},
		{ItemCode: "TM-010", Quantity: 3},
	}})
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = gw.SubmitCheckout(ctx, models.CheckoutRequest{WorkOrderNumber: "WO-2", Items: []models.CheckoutItem{
		{ItemCode: "TM-010", Quantity: 3},
	}})
	require.Error(t, err)
	assert.True(t, gateway.IsKind(err, gateway.Rejected))
	assert.Contains(t, err.Error(), "insufficient stock for TM-010")

	history, err := gw.CheckoutHistory(ctx, gateway.HistoryQuery{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 11, history[0].TotalItems)
	assert.Equal(t, testutil.AdminEmail, history[0].Operator)

	csv, err := gw.ExportHistory(ctx, gateway.HistoryQuery{}, "csv")
	require.NoError(t, err)
	assert.Contains(t, string(csv), "WO-1")

	_, err = gw.UpdateQuantity(ctx, created.ID, 50)
	require.NoError(t, err)
	require.NoError(t, gw.DeleteItem(ctx, created.ID))
}

func TestWebsocketRequiresAuth(t *testing.T) {
	h := newTestApp(t).Router()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/ws", nil)
	req.Header.Set("Upgrade", "websocket")
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
