package summary

import (
	"testing"

	"github.com/yurifrl/coinbook/pkg/models"
)

func TestSummarize(t *testing.T) {
	items := []models.Item{
		{CurrencyCode: "USD", Currency: "dollar", Value: 10},
		{CurrencyCode: "EGP", Currency: "pound", Value: 20},
		{CurrencyCode: "USD", Currency: "dollar", Value: 30},
	}

	got := Summarize(items)
	want := Summary{Count: 3, DistinctCurrencyCount: 2, TotalValue: 60, AverageValue: 20}
	if got != want {
		t.Errorf("Summarize mismatch:\nExpected: %+v\nGot: %+v", want, got)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if got := Summarize(nil); got != (Summary{}) {
		t.Errorf("expected zero summary, got %+v", got)
	}
}

func TestSummarizeCountsRawCodes(t *testing.T) {
	// two codes sharing a label still count twice
	items := []models.Item{
		{CurrencyCode: "AAA", Currency: "same"},
		{CurrencyCode: "BBB", Currency: "same"},
	}
	if got := Summarize(items).DistinctCurrencyCount; got != 2 {
		t.Errorf("distinct currencies = %d, want 2", got)
	}
}

func TestAverage(t *testing.T) {
	tests := []struct {
		total, count, want int
	}{
		{0, 0, 0},
		{10, 4, 3},
		{10, 3, 3},
		{5, 2, 3},
		{7, 2, 4},
		{1, 3, 0},
	}
	for _, tt := range tests {
		if got := Average(tt.total, tt.count); got != tt.want {
			t.Errorf("Average(%d, %d) = %d, want %d", tt.total, tt.count, got, tt.want)
		}
	}
}

func TestBreakdown(t *testing.T) {
	items := []models.Item{
		{CurrencyCode: "USD", Currency: "dollar", Value: 100},
		{CurrencyCode: "QQQ", Currency: "QQQ", Value: 7},
		{CurrencyCode: "USD", Currency: "dollar", Value: 500},
	}

	got := Breakdown(items)
	if len(got) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(got))
	}
	if got[0].Code != "QQQ" || got[0].Display != "7 QQQ" {
		t.Errorf("QQQ group = %+v", got[0])
	}
	if got[1].Code != "USD" || got[1].Count != 2 || got[1].Total != 600 || got[1].Label != "dollar" {
		t.Errorf("USD group = %+v", got[1])
	}
	if got[1].Display != "$600.00" {
		t.Errorf("USD display = %q", got[1].Display)
	}
}
