package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rayaadinda/kp-inventory/internal/classify"
	"github.com/rayaadinda/kp-inventory/internal/models"
)

type ItemRepository interface {
	List(ctx context.Context) ([]models.InventoryItem, error)
	Get(ctx context.Context, id string) (*models.InventoryItem, error)
	Create(ctx context.Context, req models.CreateItemRequest) (*models.InventoryItem, error)
	UpdateQuantity(ctx context.Context, id string, quantity int) (*models.InventoryItem, error)
	Delete(ctx context.Context, id string) error
}

type itemRepository struct {
	db *sqlx.DB
}

func NewItemRepository(db *sqlx.DB) ItemRepository {
	return &itemRepository{db: db}
}

const itemColumns = `id, product_code, product_name, quantity, COALESCE(supplier,'') AS supplier,
	COALESCE(location,'') AS location, COALESCE(unit,'') AS unit, COALESCE(category,'') AS category,
	COALESCE(last_updated,'') AS last_updated`

func (r *itemRepository) List(ctx context.Context) ([]models.InventoryItem, error) {
	items := []models.InventoryItem{}
	if err := r.db.SelectContext(ctx, &items, "SELECT "+itemColumns+" FROM inventory ORDER BY product_code"); err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	return items, nil
}

func (r *itemRepository) Get(ctx context.Context, id string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.GetContext(ctx, &item, "SELECT "+itemColumns+" FROM inventory WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &item, nil
}

// Create stores a new item, deriving its unit and category from the name.
func (r *itemRepository) Create(ctx context.Context, req models.CreateItemRequest) (*models.InventoryItem, error) {
	item := models.InventoryItem{
		ID:          uuid.NewString(),
		ProductCode: req.ProductCode,
		ProductName: req.ProductName,
		Quantity:    req.Quantity,
		Supplier:    req.Supplier,
		Location:    req.Location,
		Unit:        string(classify.DetermineUnit(req.ProductName)),
		Category:    string(classify.DetermineCategory(req.ProductName)),
		LastUpdated: time.Now().UTC().Format(timeLayout),
	}
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO inventory
		(id, product_code, product_name, quantity, supplier, location, unit, category, last_updated)
		VALUES (:id, :product_code, :product_name, :quantity, :supplier, :location, :unit, :category, :last_updated)`, item)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrDuplicateCode
		}
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return &item, nil
}

func (r *itemRepository) UpdateQuantity(ctx context.Context, id string, quantity int) (*models.InventoryItem, error) {
	res, err := r.db.ExecContext(ctx, "UPDATE inventory SET quantity = ?, last_updated = ? WHERE id = ?",
		quantity, time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *itemRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM inventory WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
