// Package cart holds the checkout cart: one line per inventory item plus the
// quantity typed next to each item that has not been added yet.
package cart

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rayaadinda/kp-inventory/internal/catalog"
	"github.com/rayaadinda/kp-inventory/internal/models"
)

var ErrExceedsAvailable = errors.New("requested quantity exceeds available stock")

// ExceedsError reports a rejected add. It matches ErrExceedsAvailable.
type ExceedsError struct {
	ProductCode string
	Requested   int
	Available   int
}

func (e *ExceedsError) Error() string {
	return fmt.Sprintf("%s: requested %d, only %d available", e.ProductCode, e.Requested, e.Available)
}

func (e *ExceedsError) Unwrap() error { return ErrExceedsAvailable }

type Option func(*Engine)

// WithUncappedMerge validates only the first add of an item. Later adds are
// merged unchecked, whatever their size.
func WithUncappedMerge() Option {
	return func(e *Engine) { e.uncapped = true }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// Engine is not safe for concurrent use; the owning page serialises access.
type Engine struct {
	lines    map[string]*models.CartLine
	order    []string
	pending  map[string]int
	uncapped bool
	log      *zap.Logger
}

func New(opts ...Option) *Engine {
	e := &Engine{
		lines:   make(map[string]*models.CartLine),
		pending: make(map[string]int),
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// SetPendingQuantity records the quantity typed for an item. Any value is
// accepted; AddToCart and CanAdd interpret it.
func (e *Engine) SetPendingQuantity(id string, qty int) {
	e.pending[id] = qty
}

func (e *Engine) PendingQuantity(id string) int {
	return e.pending[id]
}

// CanAdd reports whether the add control for item should be enabled.
func (e *Engine) CanAdd(item models.InventoryItem) bool {
	p := e.pending[item.ID]
	return p > 0 && p <= item.Quantity
}

// AddToCart moves the pending quantity for item into the cart. A pending
// quantity of zero or less is a no-op. The pending quantity is reset whenever
// it was positive, including when the add is rejected.
func (e *Engine) AddToCart(item models.InventoryItem) error {
	qty := e.pending[item.ID]
	if qty <= 0 {
		return nil
	}
	e.pending[item.ID] = 0

	line, exists := e.lines[item.ID]
	requested := qty
	if exists {
		requested += line.QuantityRequested
	}
	if !(exists && e.uncapped) && requested > item.Quantity {
		e.log.Debug("cart add rejected",
			zap.String("productCode", item.ProductCode),
			zap.Int("requested", requested),
			zap.Int("available", item.Quantity))
		return &ExceedsError{ProductCode: item.ProductCode, Requested: requested, Available: item.Quantity}
	}

	if exists {
		line.QuantityRequested = requested
		line.QuantityAvailable = item.Quantity
		return nil
	}
	e.lines[item.ID] = &models.CartLine{
		ItemID:            item.ID,
		ProductCode:       item.ProductCode,
		ProductName:       item.ProductName,
		Supplier:          item.Supplier,
		Location:          item.Location,
		Unit:              string(catalog.UnitOf(item)),
		QuantityAvailable: item.Quantity,
		QuantityRequested: requested,
	}
	e.order = append(e.order, item.ID)
	return nil
}

func (e *Engine) RemoveFromCart(id string) {
	if _, ok := e.lines[id]; !ok {
		return
	}
	delete(e.lines, id)
	for i, v := range e.order {
		if v == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

func (e *Engine) ClearCart() {
	e.lines = make(map[string]*models.CartLine)
	e.order = nil
}

// TotalItemCount sums the requested quantity over all lines.
func (e *Engine) TotalItemCount() int {
	total := 0
	for _, l := range e.lines {
		total += l.QuantityRequested
	}
	return total
}

func (e *Engine) Len() int { return len(e.order) }

func (e *Engine) IsEmpty() bool { return len(e.order) == 0 }

// Lines returns copies of the cart lines in the order they were first added.
func (e *Engine) Lines() []models.CartLine {
	out := make([]models.CartLine, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, *e.lines[id])
	}
	return out
}

// Line returns the cart line for id, if any.
func (e *Engine) Line(id string) (models.CartLine, bool) {
	l, ok := e.lines[id]
	if !ok {
		return models.CartLine{}, false
	}
	return *l, true
}

// CheckoutItems converts the cart into checkout payload lines.
func (e *Engine) CheckoutItems() []models.CheckoutItem {
	items := make([]models.CheckoutItem, 0, len(e.order))
	for _, id := range e.order {
		l := e.lines[id]
		items = append(items, models.CheckoutItem{ItemCode: l.ProductCode, Quantity: l.QuantityRequested})
	}
	return items
}
