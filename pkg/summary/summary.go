// Package summary computes the statistics shown above the item table.
package summary

import (
	"fmt"
	"sort"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/yurifrl/coinbook/pkg/models"
)

type Summary struct {
	Count                 int `json:"count"`
	DistinctCurrencyCount int `json:"distinctCurrencyCount"`
	TotalValue            int `json:"totalValue"`
	AverageValue          int `json:"averageValue"`
}

// Summarize counts items, distinct raw currency codes and sums face values.
// The average is rounded half up and is zero for an empty dataset.
func Summarize(items []models.Item) Summary {
	codes := make(map[string]struct{})
	total := 0
	for _, it := range items {
		codes[it.CurrencyCode] = struct{}{}
		total += it.Value
	}
	return Summary{
		Count:                 len(items),
		DistinctCurrencyCount: len(codes),
		TotalValue:            total,
		AverageValue:          Average(total, len(items)),
	}
}

// Average returns round(total/count), or 0 when count is 0.
func Average(total, count int) int {
	if count == 0 {
		return 0
	}
	avg := decimal.NewFromInt(int64(total)).Div(decimal.NewFromInt(int64(count)))
	return int(avg.Round(0).IntPart())
}

// CurrencyTotal is the share of one currency code in a dataset.
type CurrencyTotal struct {
	Code    string `json:"code"`
	Label   string `json:"label"`
	Count   int    `json:"count"`
	Total   int    `json:"total"`
	Display string `json:"display"`
}

// Breakdown groups items by currency code, sorted by code.
func Breakdown(items []models.Item) []CurrencyTotal {
	byCode := make(map[string]*CurrencyTotal)
	for _, it := range items {
		ct, ok := byCode[it.CurrencyCode]
		if !ok {
			ct = &CurrencyTotal{Code: it.CurrencyCode, Label: it.Currency}
			byCode[it.CurrencyCode] = ct
		}
		ct.Count++
		ct.Total += it.Value
	}

	out := make([]CurrencyTotal, 0, len(byCode))
	for _, ct := range byCode {
		ct.Display = FormatAmount(ct.Total, ct.Code)
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// FormatAmount renders a whole face value in its currency when the code is a
// known ISO 4217 currency, and as "<amount> <code>" otherwise.
func FormatAmount(amount int, code string) string {
	cur := money.GetCurrency(code)
	if cur == nil {
		return fmt.Sprintf("%d %s", amount, code)
	}
	factor, _ := decimal.NewFromInt(10).PowInt32(int32(cur.Fraction))
	minor := decimal.NewFromInt(int64(amount)).Mul(factor)
	return money.New(minor.IntPart(), code).Display()
}
