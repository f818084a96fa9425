// Package catalog filters and decorates inventory listings.
package catalog

import (
	"strings"

	"github.com/rayaadinda/kp-inventory/internal/classify"
	"github.com/rayaadinda/kp-inventory/internal/models"
)

// Filter returns the items matching query and category, in input order.
// An empty query matches everything; whitespace is matched literally and classify.All disables the category
// filter. The input slice is not modified.
func Filter(items []models.InventoryItem, query string, category classify.Category) []models.InventoryItem {
	q := strings.ToLower(query)
	out := make([]models.InventoryItem, 0, len(items))
	for _, item := range items {
		if q != "" && !matchesQuery(item, q) {
			continue
		}
		if category != classify.All && category != "" && CategoryOf(item) != category {
			continue
		}
		out = append(out, item)
	}
	return out
}

func matchesQuery(item models.InventoryItem, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(item.ProductCode), lowerQuery) ||
		strings.Contains(strings.ToLower(item.ProductName), lowerQuery)
}

// Categories lists the distinct categories of items in order of first appearance.
func Categories(items []models.InventoryItem) []classify.Category {
	seen := make(map[classify.Category]struct{})
	var cats []classify.Category
	for _, item := range items {
		c := CategoryOf(item)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		cats = append(cats, c)
	}
	return cats
}

func CategoryOf(item models.InventoryItem) classify.Category {
	return classify.CategoryOf(item.Category, item.ProductName)
}

func UnitOf(item models.InventoryItem) classify.Unit {
	return classify.UnitOf(item.Unit, item.ProductName)
}

// Row is an inventory item with its derived display fields.
type Row struct {
	models.InventoryItem
	DisplayUnit     classify.Unit        `json:"displayUnit"`
	DisplayCategory classify.Category    `json:"displayCategory"`
	MinLevel        int                  `json:"minLevel"`
	Status          classify.StockStatus `json:"status"`
}

// Decorate derives unit, category, minimum level and stock status for items.
func Decorate(items []models.InventoryItem, policy classify.StockPolicy) []Row {
	rows := make([]Row, len(items))
	for i, item := range items {
		min := policy.MinimumLevel(item.Quantity)
		rows[i] = Row{
			InventoryItem:   item,
			DisplayUnit:     UnitOf(item),
			DisplayCategory: CategoryOf(item),
			MinLevel:        min,
			Status:          classify.DeriveStockStatus(item.Quantity, min),
		}
	}
	return rows
}

// Summary counts items per stock status.
type Summary struct {
	Total      int `json:"total"`
	InStock    int `json:"inStock"`
	LowStock   int `json:"lowStock"`
	OutOfStock int `json:"outOfStock"`
}

func Summarize(rows []Row) Summary {
	s := Summary{Total: len(rows)}
	for _, r := range rows {
		switch r.Status {
		case classify.InStock:
			s.InStock++
		case classify.LowStock:
			s.LowStock++
		case classify.OutOfStock:
			s.OutOfStock++
		}
	}
	return s
}
