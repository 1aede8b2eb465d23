package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/yurifrl/coinbook/pkg/csv"
	"github.com/yurifrl/coinbook/pkg/dataset"
	"github.com/yurifrl/coinbook/pkg/lookup"
	"github.com/yurifrl/coinbook/pkg/messages"
	"github.com/yurifrl/coinbook/pkg/summary"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	labelStyle  = lipgloss.NewStyle().Bold(true)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		})
}

func renderPage(w io.Writer, view dataset.View) {
	if len(view.Items) == 0 {
		fmt.Fprintln(w, mutedStyle.Render(messages.NoResults))
		return
	}

	t := newTable(csv.Header...)
	for _, it := range view.Items {
		t.Row(
			it.Code,
			it.Number,
			it.Currency,
			strconv.Itoa(it.Value),
			strconv.Itoa(it.Year),
			strconv.Itoa(it.Month),
			strconv.Itoa(it.Day),
			it.Status,
			it.DistinctiveMark,
		)
	}
	fmt.Fprintln(w, t.String())
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%s (%d)", messages.PageInfo(view.Page, view.TotalPages), view.Matches)))
}

func renderSummary(w io.Writer, s summary.Summary) {
	rows := []struct {
		label string
		value int
	}{
		{"items", s.Count},
		{"currencies", s.DistinctCurrencyCount},
		{"total value", s.TotalValue},
		{"average value", s.AverageValue},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s %d\n", labelStyle.Render(fmt.Sprintf("%-14s", r.label)), r.value)
	}
}

func renderBreakdown(w io.Writer, totals []summary.CurrencyTotal) {
	t := newTable("code", "currency", "items", "total")
	for _, ct := range totals {
		t.Row(ct.Code, ct.Label, strconv.Itoa(ct.Count), ct.Display)
	}
	fmt.Fprintln(w, t.String())
}

func renderCodes(w io.Writer) {
	currencies := newTable("code", "currency")
	for _, code := range lookup.Currencies() {
		currencies.Row(code, lookup.Currency(code))
	}
	fmt.Fprintln(w, currencies.String())

	statuses := newTable("code", "status")
	for _, code := range lookup.Statuses() {
		statuses.Row(code, lookup.Status(code))
	}
	fmt.Fprintln(w, statuses.String())
}
