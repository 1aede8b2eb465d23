package filter

import (
	"strconv"
	"strings"

	"github.com/yurifrl/coinbook/pkg/models"
)

// Criteria narrows a dataset. Empty fields match everything.
type Criteria struct {
	Search   string `json:"search" yaml:"search"`
	Currency string `json:"currency" yaml:"currency"`
	Status   string `json:"status" yaml:"status"`
}

// IsZero reports whether the criteria match every item.
func (c Criteria) IsZero() bool {
	return strings.TrimSpace(c.Search) == "" && c.Currency == "" && c.Status == ""
}

// Func reports whether an item is kept.
type Func func(models.Item) bool

// Func compiles the criteria into a predicate. The search term is matched
// case-insensitively against code, currency label, distinctive mark, number,
// value and year. Currency and status must equal the display labels exactly.
func (c Criteria) Func() Func {
	term := strings.ToLower(strings.TrimSpace(c.Search))
	currency, status := c.Currency, c.Status

	return func(it models.Item) bool {
		if currency != "" && it.Currency != currency {
			return false
		}
		if status != "" && it.Status != status {
			return false
		}
		return term == "" || matchesSearch(it, term)
	}
}

func matchesSearch(it models.Item, term string) bool {
	fields := [...]string{
		it.Code,
		it.Currency,
		it.DistinctiveMark,
		it.Number,
		strconv.Itoa(it.Value),
		strconv.Itoa(it.Year),
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

// Apply returns the items kept by c in their original order. The input is
// never modified and the result is always a fresh slice.
func Apply(items []models.Item, c Criteria) []models.Item {
	keep := c.Func()
	out := make([]models.Item, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}
