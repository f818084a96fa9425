package checkout_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cucumber/godog"

	"github.com/rayaadinda/kp-inventory/internal/cart"
	"github.com/rayaadinda/kp-inventory/internal/checkout"
	"github.com/rayaadinda/kp-inventory/internal/gateway"
	"github.com/rayaadinda/kp-inventory/internal/models"
	"github.com/rayaadinda/kp-inventory/internal/session"
)

// fakeBackend answers POST /api/inventory/checkout with a fixed status.
type fakeBackend struct {
	mu       sync.Mutex
	status   int
	message  string
	received []models.CheckoutRequest
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/inventory/checkout" {
		http.NotFound(w, r)
		return
	}
	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	b.received = append(b.received, req)
	status, msg := b.status, b.message
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.APIResponse{Success: status < 300, Message: msg})
}

type checkoutFeature struct {
	backend   *fakeBackend
	srv       *httptest.Server
	flow      *checkout.Flow
	cart      *cart.Engine
	items     map[string]models.InventoryItem
	workOrder string
	addErr    error
	outcome   checkout.Outcome
	err       error
}

func (f *checkoutFeature) reset() error {
	f.backend = &fakeBackend{status: http.StatusOK, message: "Checkout successful"}
	f.srv = httptest.NewServer(f.backend)
	auth, err := session.NewAuthContext(nil)
	if err != nil {
		return err
	}
	if err := auth.SignIn("feature-token", &models.User{ID: "op", Role: models.RoleStaff}); err != nil {
		return err
	}
	f.flow = checkout.NewFlow(gateway.New(f.srv.URL, auth))
	f.cart = cart.New()
	f.items = map[string]models.InventoryItem{}
	f.workOrder, f.addErr, f.err = "", nil, nil
	f.outcome = checkout.Outcome{}
	return nil
}

func (f *checkoutFeature) inventoryHolds(code, name string, qty int) error {
	f.items[code] = models.InventoryItem{ID: "id-" + code, ProductCode: code, ProductName: name, Quantity: qty}
	return nil
}

func (f *checkoutFeature) backendAccepts() error {
	f.backend.status, f.backend.message = http.StatusOK, "Checkout successful"
	return nil
}

func (f *checkoutFeature) backendAnswers(status int, msg string) error {
	f.backend.status, f.backend.message = status, msg
	return nil
}

func (f *checkoutFeature) addToCart(qty int, code string) error {
	item, ok := f.items[code]
	if !ok {
		return fmt.Errorf("unknown item %s", code)
	}
	f.cart.SetPendingQuantity(item.ID, qty)
	f.addErr = f.cart.AddToCart(item)
	return nil
}

func (f *checkoutFeature) setWorkOrder(wo string) error {
	f.workOrder = wo
	return nil
}

func (f *checkoutFeature) submit() error {
	f.outcome, f.err = f.flow.Submit(context.Background(), f.cart, f.workOrder)
	return nil
}

func (f *checkoutFeature) succeedsWith(msg string) error {
	if f.err != nil {
		return fmt.Errorf("expected success, got %v", f.err)
	}
	if f.outcome.State != checkout.Succeeded || f.outcome.Message != msg {
		return fmt.Errorf("expected %s %q, got %s %q", checkout.Succeeded, msg, f.outcome.State, f.outcome.Message)
	}
	return nil
}

func (f *checkoutFeature) failsWithKind(kind string) error {
	if f.err == nil {
		return errors.New("expected the checkout to fail")
	}
	if got := gateway.KindOf(f.err); got != gateway.Kind(kind) {
		return fmt.Errorf("expected kind %s, got %s (%v)", kind, got, f.err)
	}
	if f.outcome.State != checkout.Failed {
		return fmt.Errorf("expected state %s, got %s", checkout.Failed, f.outcome.State)
	}
	return nil
}

func (f *checkoutFeature) cartIsEmpty() error {
	if !f.cart.IsEmpty() {
		return fmt.Errorf("expected an empty cart, got %d lines", f.cart.Len())
	}
	return nil
}

func (f *checkoutFeature) cartHolds(lines, units int) error {
	if f.cart.Len() != lines || f.cart.TotalItemCount() != units {
		return fmt.Errorf("expected %d lines with %d units, got %d with %d", lines, units, f.cart.Len(), f.cart.TotalItemCount())
	}
	return nil
}

func (f *checkoutFeature) backendReceived(wo string, lines, units int) error {
	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	if len(f.backend.received) != 1 {
		return fmt.Errorf("expected 1 checkout request, got %d", len(f.backend.received))
	}
	req := f.backend.received[0]
	total := 0
	for _, it := range req.Items {
		total += it.Quantity
	}
	if req.WorkOrderNumber != wo || len(req.Items) != lines || total != units {
		return fmt.Errorf("unexpected request %+v", req)
	}
	return nil
}

func (f *checkoutFeature) backendReceivedNothing() error {
	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	if n := len(f.backend.received); n != 0 {
		return fmt.Errorf("expected no checkout request, got %d", n)
	}
	return nil
}

func (f *checkoutFeature) lastAddRefused() error {
	if !errors.Is(f.addErr, cart.ErrExceedsAvailable) {
		return fmt.Errorf("expected the add to be refused, got %v", f.addErr)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	f := &checkoutFeature{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		return ctx, f.reset()
	})
	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		f.srv.Close()
		return ctx, nil
	})

	ctx.Step(`^the inventory holds "([^"]*)" "([^"]*)" with (\d+) units$`, f.inventoryHolds)
	ctx.Step(`^the backend accepts checkouts$`, f.backendAccepts)
	ctx.Step(`^the backend answers (\d+) "([^"]*)"$`, f.backendAnswers)
	ctx.Step(`^I add (\d+) of "([^"]*)" to the cart$`, f.addToCart)
	ctx.Step(`^the work order is "([^"]*)"$`, f.setWorkOrder)
	ctx.Step(`^I submit the checkout$`, f.submit)
	ctx.Step(`^the checkout succeeds with "([^"]*)"$`, f.succeedsWith)
	ctx.Step(`^the checkout fails with kind "([^"]*)"$`, f.failsWithKind)
	ctx.Step(`^the cart is empty$`, f.cartIsEmpty)
	ctx.Step(`^the cart holds (\d+) lines? with (\d+) units$`, f.cartHolds)
	ctx.Step(`^the backend received work order "([^"]*)" with (\d+) lines totalling (\d+) units$`, f.backendReceived)
	ctx.Step(`^the backend received no checkout$`, f.backendReceivedNothing)
	ctx.Step(`^the last add was refused$`, f.lastAddRefused)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/checkout.feature"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
