package dashboard

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rayaadinda/kp-inventory/internal/cart"
	"github.com/rayaadinda/kp-inventory/internal/checkout"
	"github.com/rayaadinda/kp-inventory/internal/gateway"
	"github.com/rayaadinda/kp-inventory/internal/models"
)

// CheckoutPage lets an operator pick stock for a work order.
type CheckoutPage struct {
	inventoryView
	cart      *cart.Engine
	flow      *checkout.Flow
	workOrder string
	notice    string
	errMsg    string
}

// NewCheckoutPage wires the cart, the submission flow and the item list.
// cartOpts are passed to cart.New.
func NewCheckoutPage(gw gateway.Gateway, log *zap.Logger, cartOpts ...cart.Option) *CheckoutPage {
	if log == nil {
		log = zap.NewNop()
	}
	p := &CheckoutPage{}
	p.init(gw, log)
	p.cart = cart.New(append([]cart.Option{cart.WithLogger(log)}, cartOpts...)...)
	p.flow = checkout.NewFlow(gw,
		checkout.WithLogger(log),
		checkout.WithOnSuccess(p.afterCheckout),
	)
	return p
}

// afterCheckout runs once the flow has cleared the cart.
func (p *CheckoutPage) afterCheckout(ctx context.Context) {
	p.mu.Lock()
	p.workOrder = ""
	p.mu.Unlock()
	if err := p.Load(ctx); err != nil {
		p.log.Warn("inventory refresh after checkout failed", zap.Error(err))
	}
}

func (p *CheckoutPage) SetPendingQuantity(id string, qty int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cart.SetPendingQuantity(id, qty)
}

// CanAdd reports whether the add control for the item is enabled.
func (p *CheckoutPage) CanAdd(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	item, ok := p.itemLocked(id)
	return ok && p.cart.CanAdd(item)
}

// AddToCart moves the pending quantity of the loaded item id into the cart.
func (p *CheckoutPage) AddToCart(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	item, ok := p.itemLocked(id)
	if !ok {
		return gateway.NewLocalValidation(fmt.Sprintf("item %s is not loaded", id))
	}
	err := p.cart.AddToCart(item)
	if err != nil {
		p.errMsg = err.Error()
	}
	return err
}

func (p *CheckoutPage) RemoveFromCart(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cart.RemoveFromCart(id)
}

func (p *CheckoutPage) ClearCart() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cart.ClearCart()
}

func (p *CheckoutPage) CartLines() []models.CartLine {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cart.Lines()
}

func (p *CheckoutPage) TotalItemCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cart.TotalItemCount()
}

func (p *CheckoutPage) SetWorkOrder(wo string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.workOrder = wo
}

func (p *CheckoutPage) WorkOrder() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workOrder
}

// CanSubmit is false while a submission is in flight.
func (p *CheckoutPage) CanSubmit() bool {
	return p.flow.State() != checkout.Submitting
}

func (p *CheckoutPage) State() checkout.State {
	return p.flow.State()
}

// Submit sends the cart for the current work order. The page's messages
// reflect the outcome until the next submission.
func (p *CheckoutPage) Submit(ctx context.Context) (checkout.Outcome, error) {
	p.mu.Lock()
	wo := p.workOrder
	p.notice, p.errMsg = "", ""
	p.mu.Unlock()

	out, err := p.flow.Submit(ctx, lockedCart{p}, wo)

	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case errors.Is(err, checkout.ErrSubmitInProgress):
	case err != nil:
		p.errMsg = Message(err)
	default:
		p.notice = out.Message
	}
	return out, err
}

// Acknowledge dismisses the last outcome.
func (p *CheckoutPage) Acknowledge() {
	p.flow.Acknowledge()
	p.mu.Lock()
	p.notice, p.errMsg = "", ""
	p.mu.Unlock()
}

// Messages returns the success notice and the error message, either may be "".
func (p *CheckoutPage) Messages() (notice, errMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.notice, p.errMsg
}

// lockedCart serialises the flow's cart access with the page.
type lockedCart struct{ p *CheckoutPage }

func (c lockedCart) IsEmpty() bool {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	return c.p.cart.IsEmpty()
}

func (c lockedCart) CheckoutItems() []models.CheckoutItem {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	return c.p.cart.CheckoutItems()
}

func (c lockedCart) ClearCart() {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	c.p.cart.ClearCart()
}
