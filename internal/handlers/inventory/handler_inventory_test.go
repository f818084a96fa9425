package inventory_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/rayaadinda/kp-inventory/internal/audit"
	"github.com/rayaadinda/kp-inventory/internal/handlers/inventory"
	"github.com/rayaadinda/kp-inventory/internal/models"
	"github.com/rayaadinda/kp-inventory/internal/store"
	"github.com/rayaadinda/kp-inventory/internal/testutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.CheckoutEvent
}

func (p *recordingPublisher) PublishCheckout(_ context.Context, e *models.CheckoutEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func newHandler(t *testing.T) (*inventory.Handler, *sqlx.DB, *recordingPublisher) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	pub := &recordingPublisher{}
	h := &inventory.Handler{
		DB:        db,
		Items:     store.NewItemRepository(db),
		Checkouts: store.NewCheckoutRepository(db),
		Events:    pub,
		GetCurrentUser: func(r *http.Request) models.User {
			return models.User{Email: "op@example.com", Role: models.RoleStaff}
		},
	}
	return h, db, pub
}

func TestListInventory(t *testing.T) {
	h, db, _ := newHandler(t)
	testutil.CreateTestItem(t, db, "WR-001", "Wire AWG 18", 20)
	testutil.CreateTestItem(t, db, "TM-010", "Terminal Ring", 5)

	w := httptest.NewRecorder()
	h.ListInventory(w, testutil.AuthedRequest("GET", "/api/inventory", nil, ""))

	testutil.AssertStatus(t, w, 200)
	var items []models.InventoryItem
	testutil.DecodeEnvelope(t, w, &items)
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].ProductCode != "TM-010" || items[0].Category != "Terminal" {
		t.Errorf("Unexpected first item: %+v", items[0])
	}
}

func TestListInventory_Empty(t *testing.T) {
	h, _, _ := newHandler(t)
	w := httptest.NewRecorder()
	h.ListInventory(w, testutil.AuthedRequest("GET", "/api/inventory", nil, ""))

	if !strings.Contains(w.Body.String(), `"data":[]`) {
		t.Errorf("Expected empty array, got %s", w.Body.String())
	}
}

func TestCreateItem(t *testing.T) {
	h, db, _ := newHandler(t)

	w := httptest.NewRecorder()
	h.CreateItem(w, testutil.AuthedJSONRequest("POST", "/api/inventory", models.CreateItemRequest{
		ProductCode: "CT-100", ProductName: "Cable Tie 100mm", Quantity: 50,
	}, ""))
	testutil.AssertStatus(t, w, 201)

	var item models.InventoryItem
	testutil.DecodeEnvelope(t, w, &item)
	if item.Category != "Cable Ties" || item.Unit != "Meter" {
		t.Errorf("Expected derived classification, got unit=%s category=%s", item.Unit, item.Category)
	}

	entries, _ := audit.List(context.Background(), db, "inventory", 10)
	if len(entries) != 1 || entries[0].Action != audit.ActionCreate {
		t.Errorf("Expected one CREATE audit entry, got %+v", entries)
	}
}

func TestCreateItem_Validation(t *testing.T) {
	h, db, _ := newHandler(t)
	testutil.CreateTestItem(t, db, "WR-001", "Wire", 1)

	tests := []struct {
		name string
		body models.CreateItemRequest
		code int
	}{
		{"missing code", models.CreateItemRequest{ProductName: "Wire"}, 400},
		{"missing name", models.CreateItemRequest{ProductCode: "X-1"}, 400},
		{"negative quantity", models.CreateItemRequest{ProductCode: "X-1", ProductName: "X", Quantity: -1}, 400},
		{"bad code", models.CreateItemRequest{ProductCode: "X 1", ProductName: "X"}, 400},
		{"duplicate", models.CreateItemRequest{ProductCode: "WR-001", ProductName: "Wire again"}, 409},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.CreateItem(w, testutil.AuthedJSONRequest("POST", "/api/inventory", tt.body, ""))
			testutil.AssertStatus(t, w, tt.code)
			resp := testutil.DecodeAPIResponse(t, w)
			if resp.Success || resp.Message == "" {
				t.Errorf("Expected failure with message, got %+v", resp)
			}
		})
	}
}

func TestUpdateItem(t *testing.T) {
	h, db, _ := newHandler(t)
	item := testutil.CreateTestItem(t, db, "WR-001", "Wire", 20)

	w := httptest.NewRecorder()
	h.UpdateItem(w, testutil.AuthedJSONRequest("PUT", "/api/inventory/"+item.ID, map[string]int{"quantity": 7}, ""), item.ID)
	testutil.AssertStatus(t, w, 200)

	var got models.InventoryItem
	testutil.DecodeEnvelope(t, w, &got)
	if got.Quantity != 7 {
		t.Errorf("Expected quantity 7, got %d", got.Quantity)
	}

	w = httptest.NewRecorder()
	h.UpdateItem(w, testutil.AuthedJSONRequest("PUT", "/api/inventory/"+item.ID, map[string]int{"quantity": -1}, ""), item.ID)
	testutil.AssertStatus(t, w, 400)

	w = httptest.NewRecorder()
	h.UpdateItem(w, testutil.AuthedJSONRequest("PUT", "/api/inventory/"+item.ID, map[string]string{}, ""), item.ID)
	testutil.AssertStatus(t, w, 400)

	w = httptest.NewRecorder()
	h.UpdateItem(w, testutil.AuthedJSONRequest("PUT", "/api/inventory/nope", map[string]int{"quantity": 1}, ""), "nope")
	testutil.AssertStatus(t, w, 404)
}

func TestDeleteItem(t *testing.T) {
	h, db, _ := newHandler(t)
	item := testutil.CreateTestItem(t, db, "WR-001", "Wire", 20)

	w := httptest.NewRecorder()
	h.DeleteItem(w, testutil.AuthedRequest("DELETE", "/api/inventory/"+item.ID, nil, ""), item.ID)
	testutil.AssertStatus(t, w, 200)

	w = httptest.NewRecorder()
	h.DeleteItem(w, testutil.AuthedRequest("DELETE", "/api/inventory/"+item.ID, nil, ""), item.ID)
	testutil.AssertStatus(t, w, 404)
}

func TestCheckout(t *testing.T) {
	h, db, pub := newHandler(t)
	wire := testutil.CreateTestItem(t, db, "WR-001", "Wire AWG 18", 20)
	testutil.CreateTestItem(t, db, "TM-010", "Terminal Ring", 5)

	w := httptest.NewRecorder()
	h.Checkout(w, testutil.AuthedJSONRequest("POST", "/api/inventory/checkout", models.CheckoutRequest{
		WorkOrderNumber: " WO-1 ",
		Items: []models.CheckoutItem{
			{ItemCode: "WR-001", Quantity: 8},
			{ItemCode: "TM-010", Quantity: 2},
		},
	}, ""))
	testutil.AssertStatus(t, w, 200)
	resp := testutil.DecodeAPIResponse(t, w)
	if !resp.Success || resp.Message != inventory.MsgCheckoutSuccess {
		t.Errorf("Unexpected response: %+v", resp)
	}

	got, _ := store.NewItemRepository(db).Get(context.Background(), wire.ID)
	if got.Quantity != 12 {
		t.Errorf("Expected 12 left, got %d", got.Quantity)
	}
	if len(pub.events) != 1 || pub.events[0].WorkOrderNumber != "WO-1" || pub.events[0].Operator != "op@example.com" {
		t.Errorf("Unexpected published events: %+v", pub.events)
	}

	hist, _ := store.NewCheckoutRepository(db).History(context.Background(), "", "")
	if len(hist) != 1 || hist[0].TotalItems != 10 {
		t.Errorf("Expected one checkout of 10 items, got %+v", hist)
	}
}

func TestCheckout_InsufficientStock(t *testing.T) {
	h, db, pub := newHandler(t)
	testutil.CreateTestItem(t, db, "TM-010", "Terminal Ring", 5)

	w := httptest.NewRecorder()
	h.Checkout(w, testutil.AuthedJSONRequest("POST", "/api/inventory/checkout", models.CheckoutRequest{
		WorkOrderNumber: "WO-2",
		Items:           []models.CheckoutItem{{ItemCode: "TM-010", Quantity: 6}},
	}, ""))
	testutil.AssertStatus(t, w, 400)
	resp := testutil.DecodeAPIResponse(t, w)
	if !strings.Contains(resp.Message, "TM-010") {
		t.Errorf("Expected message naming the item, got %q", resp.Message)
	}
	if len(pub.events) != 0 {
		t.Error("Expected no event for a rejected checkout")
	}
}

func TestCheckout_Validation(t *testing.T) {
	h, _, _ := newHandler(t)
	tests := []struct {
		name string
		body models.CheckoutRequest
	}{
		{"no work order", models.CheckoutRequest{Items: []models.CheckoutItem{{ItemCode: "A", Quantity: 1}}}},
		{"no items", models.CheckoutRequest{WorkOrderNumber: "WO-1"}},
		{"zero quantity", models.CheckoutRequest{WorkOrderNumber: "WO-1", Items: []models.CheckoutItem{{ItemCode: "A"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.Checkout(w, testutil.AuthedJSONRequest("POST", "/api/inventory/checkout", tt.body, ""))
			testutil.AssertStatus(t, w, 400)
		})
	}
}

func TestCheckoutHistory_BadDate(t *testing.T) {
	h, _, _ := newHandler(t)
	w := httptest.NewRecorder()
	h.CheckoutHistory(w, testutil.AuthedRequest("GET", "/api/inventory/checkout-history?startDate=yesterday", nil, ""))
	testutil.AssertStatus(t, w, 400)

	w = httptest.NewRecorder()
	h.CheckoutHistory(w, testutil.AuthedRequest("GET", "/api/inventory/checkout-history?startDate=2024-01-01", nil, ""))
	testutil.AssertStatus(t, w, 200)
}
