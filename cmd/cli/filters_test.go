package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/coinbook/pkg/config"
	"github.com/yurifrl/coinbook/pkg/csv"
	"github.com/yurifrl/coinbook/pkg/plan"
)

const sample = `[
	{"code":"USD202306150100G","number":"1"},
	{"code":"EGP201012310050V","number":"2"},
	{"code":"EGP199901010005E","number":"3"},
	{"code":"bad"}
]`

func newProcessor(t *testing.T, f *filters) *FileProcessor {
	t.Helper()
	cfg := config.Default()
	cfg.PageSize = 2
	cfg.ExportLabel = "coins"
	p := NewFileProcessor(log.Default(), cfg, f)
	p.now = func() time.Time { return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) }
	return p
}

func writeInput(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(sample), 0600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func TestOpen(t *testing.T) {
	path := writeInput(t, t.TempDir(), "coins.json")

	tests := []struct {
		name    string
		filters filters
		matches int
		page    int
	}{
		{"no filters", filters{page: 1}, 3, 1},
		{"currency", filters{currency: "الجنيه المصري", page: 1}, 2, 1},
		{"search", filters{search: "1999", page: 1}, 1, 1},
		{"page clamped", filters{page: 9}, 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.filters
			store, report, err := newProcessor(t, &f).Open(context.Background(), path)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if report.Count != 3 {
				t.Errorf("loaded %d items, want 3", report.Count)
			}
			view := store.View()
			if view.Matches != tt.matches || view.Page != tt.page {
				t.Errorf("view = %d matches on page %d, want %d on %d", view.Matches, view.Page, tt.matches, tt.page)
			}
		})
	}
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	path := writeInput(t, dir, "coins.json")
	f := filters{currency: "الجنيه المصري"}

	out, err := newProcessor(t, &f).ProcessFile(context.Background(), path, filepath.Join(dir, "out"), plan.FormatCSV)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if want := filepath.Join(dir, "out", "coins_coins_2024-01-02.csv"); out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if lines := strings.Split(string(data), "\n"); len(lines) != 3 {
		t.Errorf("got %d lines, want header + 2 rows", len(lines))
	}

	none := filters{status: "ضعيف"}
	if _, err := newProcessor(t, &none).ProcessFile(context.Background(), path, "", plan.FormatCSV); !errors.Is(err, csv.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestProcessDirectory(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "a.json")
	writeInput(t, dir, "b.JSON")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := filepath.Join(dir, "out")

	if err := newProcessor(t, &filters{}).ProcessDirectory(context.Background(), dir, out, plan.FormatXLSX); err != nil {
		t.Fatalf("ProcessDirectory failed: %v", err)
	}

	for _, name := range []string{"a_coins_2024-01-02.xlsx", "b_coins_2024-01-02.xlsx"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	entries, _ := os.ReadDir(out)
	if len(entries) != 2 {
		t.Errorf("got %d outputs, want 2", len(entries))
	}
}
