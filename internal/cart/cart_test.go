package cart

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rayaadinda/kp-inventory/internal/models"
)

var (
	wire     = models.InventoryItem{ID: "a1", ProductCode: "WR-001", ProductName: "Wire AWG 18", Quantity: 20}
	terminal = models.InventoryItem{ID: "b2", ProductCode: "TM-010", ProductName: "Terminal Ring", Quantity: 5}
)

func TestAddToCart_MergesRepeatedAdds(t *testing.T) {
	e := New()

	e.SetPendingQuantity(wire.ID, 5)
	require.NoError(t, e.AddToCart(wire))
	e.SetPendingQuantity(wire.ID, 3)
	require.NoError(t, e.AddToCart(wire))

	lines := e.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 8, lines[0].QuantityRequested)
	assert.Equal(t, "Meter", lines[0].Unit)
	assert.Equal(t, 0, e.PendingQuantity(wire.ID))
	assert.Equal(t, 8, e.TotalItemCount())
}

func TestAddToCart_NonPositivePendingIsNoop(t *testing.T) {
	e := New()

	require.NoError(t, e.AddToCart(wire))
	e.SetPendingQuantity(wire.ID, -2)
	require.NoError(t, e.AddToCart(wire))

	assert.True(t, e.IsEmpty())
	assert.Equal(t, -2, e.PendingQuantity(wire.ID))
}

func TestAddToCart_RejectsOverAvailable(t *testing.T) {
	e := New()

	e.SetPendingQuantity(terminal.ID, 6)
	err := e.AddToCart(terminal)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExceedsAvailable))
	assert.True(t, e.IsEmpty())
	assert.Equal(t, 0, e.PendingQuantity(terminal.ID))
}

func TestAddToCart_MergeRevalidatesTotal(t *testing.T) {
	e := New()

	e.SetPendingQuantity(terminal.ID, 4)
	require.NoError(t, e.AddToCart(terminal))
	e.SetPendingQuantity(terminal.ID, 2)
	err := e.AddToCart(terminal)

	var ex *ExceedsError
	require.True(t, errors.As(err, &ex))
	assert.Equal(t, 6, ex.Requested)
	assert.Equal(t, 5, ex.Available)

	line, ok := e.Line(terminal.ID)
	require.True(t, ok)
	assert.Equal(t, 4, line.QuantityRequested)
}

func TestAddToCart_UncappedMerge(t *testing.T) {
	e := New(WithUncappedMerge())

	e.SetPendingQuantity(terminal.ID, 4)
	require.NoError(t, e.AddToCart(terminal))
	e.SetPendingQuantity(terminal.ID, 4)
	require.NoError(t, e.AddToCart(terminal))

	assert.Equal(t, 8, e.TotalItemCount())

	// an increment larger than the stock is still merged
	e.SetPendingQuantity(terminal.ID, 9)
	require.NoError(t, e.AddToCart(terminal))
	assert.Equal(t, 17, e.TotalItemCount())

	// the first add of an item is always checked
	e.SetPendingQuantity(wire.ID, 21)
	assert.ErrorIs(t, e.AddToCart(wire), ErrExceedsAvailable)
}

func TestCanAdd(t *testing.T) {
	e := New()

	assert.False(t, e.CanAdd(terminal))
	e.SetPendingQuantity(terminal.ID, 5)
	assert.True(t, e.CanAdd(terminal))
	e.SetPendingQuantity(terminal.ID, 6)
	assert.False(t, e.CanAdd(terminal))
	e.SetPendingQuantity(terminal.ID, 0)
	assert.False(t, e.CanAdd(terminal))
}

func TestRemoveAndClear(t *testing.T) {
	e := New()
	e.SetPendingQuantity(wire.ID, 2)
	require.NoError(t, e.AddToCart(wire))
	e.SetPendingQuantity(terminal.ID, 1)
	require.NoError(t, e.AddToCart(terminal))

	e.RemoveFromCart("missing")
	assert.Equal(t, 2, e.Len())

	e.RemoveFromCart(wire.ID)
	assert.Equal(t, []models.CheckoutItem{{ItemCode: "TM-010", Quantity: 1}}, e.CheckoutItems())

	e.ClearCart()
	assert.True(t, e.IsEmpty())
	assert.Equal(t, 0, e.TotalItemCount())
}

func TestLines_InsertionOrder(t *testing.T) {
	e := New()
	e.SetPendingQuantity(terminal.ID, 1)
	require.NoError(t, e.AddToCart(terminal))
	e.SetPendingQuantity(wire.ID, 1)
	require.NoError(t, e.AddToCart(wire))
	e.SetPendingQuantity(terminal.ID, 1)
	require.NoError(t, e.AddToCart(terminal))

	lines := e.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "b2", lines[0].ItemID)
	assert.Equal(t, "a1", lines[1].ItemID)
}
