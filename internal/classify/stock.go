package classify

import (
	"fmt"
	"math"
)

type StockStatus string

const (
	InStock    StockStatus = "In Stock"
	LowStock   StockStatus = "Low Stock"
	OutOfStock StockStatus = "Out of Stock"
)

// DeriveStockStatus classifies a quantity against a minimum level.
// Zero is always OutOfStock, even when the minimum is zero.
func DeriveStockStatus(quantity, minimumLevel int) StockStatus {
	switch {
	case quantity == 0:
		return OutOfStock
	case quantity < minimumLevel:
		return LowStock
	default:
		return InStock
	}
}

// PolicyKind names how a StockPolicy computes the minimum level.
type PolicyKind string

const (
	PolicyFixed   PolicyKind = "fixed"
	PolicyPercent PolicyKind = "percent"
)

const (
	DefaultThreshold = 10
	DefaultPercent   = 0.10
)

// StockPolicy computes the minimum stock level used for status display.
type StockPolicy struct {
	Kind      PolicyKind
	Threshold int
	Percent   float64
}

// DefaultStockPolicy is a fixed threshold of 10 units.
func DefaultStockPolicy() StockPolicy {
	return StockPolicy{Kind: PolicyFixed, Threshold: DefaultThreshold, Percent: DefaultPercent}
}

// NewStockPolicy validates and builds a policy. An empty kind means fixed.
func NewStockPolicy(kind string, threshold int, percent float64) (StockPolicy, error) {
	switch PolicyKind(kind) {
	case "", PolicyFixed:
		if threshold < 0 {
			return StockPolicy{}, fmt.Errorf("stock threshold must be non-negative, got %d", threshold)
		}
		return StockPolicy{Kind: PolicyFixed, Threshold: threshold, Percent: percent}, nil
	case PolicyPercent:
		if percent < 0 || percent > 1 {
			return StockPolicy{}, fmt.Errorf("stock percent must be between 0 and 1, got %v", percent)
		}
		return StockPolicy{Kind: PolicyPercent, Threshold: threshold, Percent: percent}, nil
	default:
		return StockPolicy{}, fmt.Errorf("unknown stock policy %q", kind)
	}
}

// MinimumLevel returns the minimum level for an item holding quantity units.
// The percent policy rounds half away from zero.
func (p StockPolicy) MinimumLevel(quantity int) int {
	if p.Kind == PolicyPercent {
		return int(math.Round(float64(quantity) * p.Percent))
	}
	return p.Threshold
}

// Status is DeriveStockStatus with the policy's minimum level.
func (p StockPolicy) Status(quantity int) StockStatus {
	return DeriveStockStatus(quantity, p.MinimumLevel(quantity))
}
