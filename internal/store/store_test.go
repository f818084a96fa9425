package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rayaadinda/kp-inventory/internal/models"
)

func openTestDB(t *testing.T) *checkoutRepository {
	t.Helper()
	db, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCheckoutRepository(db).(*checkoutRepository)
}

func TestItems_CreateDerivesClassification(t *testing.T) {
	cr := openTestDB(t)
	items := NewItemRepository(cr.db)
	ctx := context.Background()

	item, err := items.Create(ctx, models.CreateItemRequest{ProductCode: "WR-001", ProductName: "Wire AWG 18", Quantity: 20})
	require.NoError(t, err)
	assert.Equal(t, "Meter", item.Unit)
	assert.Equal(t, "Wire", item.Category)

	_, err = items.Create(ctx, models.CreateItemRequest{ProductCode: "WR-001", ProductName: "Dup"})
	assert.ErrorIs(t, err, ErrDuplicateCode)

	list, err := items.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Wire AWG 18", list[0].ProductName)
}

func TestItems_UpdateAndDelete(t *testing.T) {
	cr := openTestDB(t)
	items := NewItemRepository(cr.db)
	ctx := context.Background()

	item, err := items.Create(ctx, models.CreateItemRequest{ProductCode: "TM-010", ProductName: "Terminal Ring", Quantity: 5})
	require.NoError(t, err)

	updated, err := items.UpdateQuantity(ctx, item.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, 42, updated.Quantity)

	_, err = items.UpdateQuantity(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, items.Delete(ctx, item.ID))
	assert.ErrorIs(t, items.Delete(ctx, item.ID), ErrNotFound)
	_, err = items.Get(ctx, item.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMigrate_BackfillsLegacyRows(t *testing.T) {
	cr := openTestDB(t)
	cr.db.MustExec("INSERT INTO inventory (id, product_code, product_name, quantity) VALUES ('x', 'CT-1', 'Cable Tie 100mm', 3)")

	require.NoError(t, Migrate(cr.db, nil))

	item, err := NewItemRepository(cr.db).Get(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "Cable Ties", item.Category)
	assert.Equal(t, "Meter", item.Unit)
}

func TestCheckout_WithdrawsAllOrNothing(t *testing.T) {
	cr := openTestDB(t)
	cr.now = func() time.Time { return time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC) }
	items := NewItemRepository(cr.db)
	ctx := context.Background()

	wire, _ := items.Create(ctx, models.CreateItemRequest{ProductCode: "WR-001", ProductName: "Wire AWG 18", Quantity: 20})
	term, _ := items.Create(ctx, models.CreateItemRequest{ProductCode: "TM-010", ProductName: "Terminal Ring", Quantity: 5})

	_, err := cr.Checkout(ctx, models.CheckoutRequest{WorkOrderNumber: "WO-1", Items: []models.CheckoutItem{
		{ItemCode: "WR-001", Quantity: 8},
		{ItemCode: "TM-010", Quantity: 6},
	}}, "op@example.com")
	var se *StockError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "TM-010", se.ItemCode)

	w, _ := items.Get(ctx, wire.ID)
	assert.Equal(t, 20, w.Quantity)

	report, err := cr.Checkout(ctx, models.CheckoutRequest{WorkOrderNumber: "WO-1", Items: []models.CheckoutItem{
		{ItemCode: "WR-001", Quantity: 8},
		{ItemCode: "TM-010", Quantity: 5},
	}}, "op@example.com")
	require.NoError(t, err)
	assert.Equal(t, 13, report.TotalItems)
	assert.Equal(t, "2024-05-20", report.Date)

	w, _ = items.Get(ctx, wire.ID)
	tm, _ := items.Get(ctx, term.ID)
	assert.Equal(t, 12, w.Quantity)
	assert.Equal(t, 0, tm.Quantity)
}

func TestCheckout_UnknownItem(t *testing.T) {
	cr := openTestDB(t)
	_, err := cr.Checkout(context.Background(), models.CheckoutRequest{WorkOrderNumber: "WO-1", Items: []models.CheckoutItem{
		{ItemCode: "NOPE", Quantity: 1},
	}}, "")
	var se *StockError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Missing)
}

func TestCheckout_DuplicateLinesSummed(t *testing.T) {
	cr := openTestDB(t)
	ctx := context.Background()
	NewItemRepository(cr.db).Create(ctx, models.CreateItemRequest{ProductCode: "TM-010", ProductName: "Terminal", Quantity: 5})

	_, err := cr.Checkout(ctx, models.CheckoutRequest{WorkOrderNumber: "WO-1", Items: []models.CheckoutItem{
		{ItemCode: "TM-010", Quantity: 3},
		{ItemCode: "TM-010", Quantity: 3},
	}}, "")
	var se *StockError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 6, se.Requested)
}

func TestHistory_DateBounds(t *testing.T) {
	cr := openTestDB(t)
	ctx := context.Background()
	NewItemRepository(cr.db).Create(ctx, models.CreateItemRequest{ProductCode: "WR-001", ProductName: "Wire", Quantity: 100})

	for _, day := range []int{1, 10, 20} {
		d := day
		cr.now = func() time.Time { return time.Date(2024, 5, d, 8, 0, 0, 0, time.UTC) }
		_, err := cr.Checkout(ctx, models.CheckoutRequest{WorkOrderNumber: fmt.Sprintf("WO-%d", d), Items: []models.CheckoutItem{
			{ItemCode: "WR-001", Quantity: d},
		}}, "op")
		require.NoError(t, err)
	}

	all, err := cr.History(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-05-20", all[0].Date)
	assert.Equal(t, 20, all[0].TotalItems)
	require.Len(t, all[0].Items, 1)
	assert.Equal(t, "Meter", all[0].Items[0].Unit)

	since, err := cr.History(ctx, "2024-05-10", "")
	require.NoError(t, err)
	assert.Len(t, since, 2)

	single, err := cr.History(ctx, "2024-05-10", "2024-05-10")
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, 10, single[0].TotalItems)
}

func TestUsers(t *testing.T) {
	cr := openTestDB(t)
	users := NewUserRepository(cr.db)
	ctx := context.Background()

	require.NoError(t, SeedAdmin(ctx, cr.db, "admin@example.com", "changeme"))
	require.NoError(t, SeedAdmin(ctx, cr.db, "admin@example.com", "changeme"))

	u, hash, err := users.FindByEmail(ctx, "ADMIN@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)
	assert.NotEmpty(t, hash)

	created, err := users.Create(ctx, models.User{Name: "Op", Email: "op@example.com"}, "hash")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, created.Role)

	_, err = users.Create(ctx, models.User{Email: "op@example.com"}, "hash")
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	_, _, err = users.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}
