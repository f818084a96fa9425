// Package classify derives display attributes of an inventory item from its
// name and stock level.
package classify

import "strings"

type Unit string

const (
	Meter Unit = "Meter"
	Pcs   Unit = "Pcs"
)

type Category string

const (
	Wire      Category = "Wire"
	Terminal  Category = "Terminal"
	CableTies Category = "Cable Ties"
	Other     Category = "Other"

	// All is the filter value that disables category filtering. It is never
	// returned by DetermineCategory.
	All Category = "All"
)

var meterKeywords = []string{"wire", "cable", "kabel"}

type categoryRule struct {
	category Category
	keywords []string
}

// categoryRules is evaluated in order; the first rule with a matching keyword
// wins. "cable tie" names that also contain "wire" stay Wire.
var categoryRules = []categoryRule{
	{Wire, []string{"wire"}},
	{Terminal, []string{"terminal"}},
	{CableTies, []string{"cable ties", "cable tie", "cabletie"}},
}

// DetermineUnit returns Meter for wire and cable stock, Pcs for everything else.
func DetermineUnit(name string) Unit {
	if containsAny(strings.ToLower(name), meterKeywords) {
		return Meter
	}
	return Pcs
}

// DetermineCategory returns the first category whose keywords appear in name,
// or Other.
func DetermineCategory(name string) Category {
	lower := strings.ToLower(name)
	for _, rule := range categoryRules {
		if containsAny(lower, rule.keywords) {
			return rule.category
		}
	}
	return Other
}

// UnitOf returns the stored unit when present and derives it otherwise.
func UnitOf(stored, name string) Unit {
	if stored != "" {
		return Unit(stored)
	}
	return DetermineUnit(name)
}

// CategoryOf returns the stored category when present and derives it otherwise.
func CategoryOf(stored, name string) Category {
	if stored != "" {
		return Category(stored)
	}
	return DetermineCategory(name)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
