package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rayaadinda/kp-inventory/internal/classify"
	"github.com/rayaadinda/kp-inventory/internal/models"
)

const StatusCompleted = "Completed"

// StockError explains why a checkout line could not be fulfilled.
type StockError struct {
	ItemCode  string
	Requested int
	Available int
	Missing   bool
}

func (e *StockError) Error() string {
	if e.Missing {
		return fmt.Sprintf("item %s not found", e.ItemCode)
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ItemCode, e.Requested, e.Available)
}

type CheckoutRepository interface {
	Checkout(ctx context.Context, req models.CheckoutRequest, operator string) (*models.CheckoutReport, error)
	History(ctx context.Context, startDate, endDate string) ([]models.CheckoutReport, error)
}

type checkoutRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewCheckoutRepository(db *sqlx.DB) CheckoutRepository {
	return &checkoutRepository{db: db, now: time.Now}
}

// Checkout withdraws every line or none. Lines naming the same item code
// are summed before checking stock.
func (r *checkoutRepository) Checkout(ctx context.Context, req models.CheckoutRequest, operator string) (*models.CheckoutReport, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	totals := map[string]int{}
	for _, it := range req.Items {
		totals[it.ItemCode] += it.Quantity
	}

	now := r.now().UTC()
	report := &models.CheckoutReport{
		ID:        uuid.NewString(),
		Date:      now.Format("2006-01-02"),
		WorkOrder: req.WorkOrderNumber,
		Operator:  operator,
		Status:    StatusCompleted,
	}
	items := map[string]models.InventoryItem{}
	for _, it := range req.Items {
		if _, seen := items[it.ItemCode]; seen {
			continue
		}
		var item models.InventoryItem
		err := tx.GetContext(ctx, &item, "SELECT "+itemColumns+" FROM inventory WHERE product_code = ?", it.ItemCode)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &StockError{ItemCode: it.ItemCode, Missing: true}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load item %s: %w", it.ItemCode, err)
		}
		if item.Quantity < totals[it.ItemCode] {
			return nil, &StockError{ItemCode: it.ItemCode, Requested: totals[it.ItemCode], Available: item.Quantity}
		}
		items[it.ItemCode] = item
	}

	_, err = tx.ExecContext(ctx, "INSERT INTO checkouts (id, work_order, operator, status, created_at) VALUES (?, ?, ?, ?, ?)",
		report.ID, report.WorkOrder, operator, report.Status, now.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to record checkout: %w", err)
	}
	for _, it := range req.Items {
		item := items[it.ItemCode]
		unit := string(classify.UnitOf(item.Unit, item.ProductName))
		if _, err := tx.ExecContext(ctx, "INSERT INTO checkout_lines (checkout_id, item_code, name, quantity, unit) VALUES (?, ?, ?, ?, ?)",
			report.ID, it.ItemCode, item.ProductName, it.Quantity, unit); err != nil {
			return nil, fmt.Errorf("failed to record checkout line: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE inventory SET quantity = quantity - ?, last_updated = ? WHERE id = ?",
			it.Quantity, now.Format(timeLayout), item.ID); err != nil {
			return nil, fmt.Errorf("failed to withdraw %s: %w", it.ItemCode, err)
		}
		report.Items = append(report.Items, models.ReportLine{Name: item.ProductName, Quantity: it.Quantity, Unit: unit})
		report.TotalItems += it.Quantity
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return report, nil
}

// History returns checkouts between startDate and endDate inclusive,
// newest first. Either bound may be empty.
func (r *checkoutRepository) History(ctx context.Context, startDate, endDate string) ([]models.CheckoutReport, error) {
	query := `SELECT c.id, substr(c.created_at, 1, 10) AS date, c.work_order, COALESCE(c.operator,'') AS operator,
		COALESCE(c.status,'') AS status, COALESCE(c.project,'') AS project,
		(SELECT COALESCE(SUM(quantity),0) FROM checkout_lines l WHERE l.checkout_id = c.id) AS total_items
		FROM checkouts c WHERE 1=1`
	var args []interface{}
	if startDate != "" {
		query += " AND substr(c.created_at, 1, 10) >= ?"
		args = append(args, startDate)
	}
	if endDate != "" {
		query += " AND substr(c.created_at, 1, 10) <= ?"
		args = append(args, endDate)
	}
	query += " ORDER BY c.created_at DESC"

	reports := []models.CheckoutReport{}
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list checkouts: %w", err)
	}
	for i := range reports {
		lines := []models.ReportLine{}
		if err := r.db.SelectContext(ctx, &lines,
			"SELECT name, quantity, COALESCE(unit,'') AS unit FROM checkout_lines WHERE checkout_id = ? ORDER BY id", reports[i].ID); err != nil {
			return nil, fmt.Errorf("failed to list checkout lines: %w", err)
		}
		reports[i].Items = lines
	}
	return reports, nil
}
