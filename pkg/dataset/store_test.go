package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/coinbook/pkg/config"
	"github.com/yurifrl/coinbook/pkg/filter"
	"github.com/yurifrl/coinbook/pkg/importer"
	"github.com/yurifrl/coinbook/pkg/progress"
	"github.com/yurifrl/coinbook/pkg/service"
)

func newStore(pageSize int) *Store {
	cfg := config.Default()
	return New(pageSize, importer.New(cfg, log.Default()), service.NewProcessor(cfg, log.Default()))
}

func source(name, body string) Source {
	return Source{Name: name, Size: int64(len(body)), Reader: strings.NewReader(body)}
}

// document builds n valid records; record i has value i and alternates
// between USD and EGP.
func document(n int) string {
	parts := make([]string, n)
	for i := range parts {
		cur := "USD"
		if i%2 == 1 {
			cur = "EGP"
		}
		parts[i] = fmt.Sprintf(`{"code":"%s20000101%04dG","number":"%d"}`, cur, i, i)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func TestLoad(t *testing.T) {
	s := newStore(50)

	var last float64
	sink := progress.Func(func(p float64, _ string) { last = p })

	report, err := s.Load(context.Background(), source("coins.json", document(120)), sink)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if report.Count != 120 || report.Name != "coins.json" {
		t.Errorf("report = %+v", report)
	}
	if last != progress.Done {
		t.Errorf("final progress = %v", last)
	}
	if s.Processing() {
		t.Errorf("guard still held after load")
	}

	view := s.View()
	if view.Page != 1 || view.TotalPages != 3 || view.Matches != 120 || len(view.Items) != 50 {
		t.Errorf("view = page %d/%d matches %d items %d", view.Page, view.TotalPages, view.Matches, len(view.Items))
	}
	if view.File != "coins.json" {
		t.Errorf("file = %q", view.File)
	}
	if len(view.Options.Currencies) != 2 || len(view.Options.Statuses) != 1 {
		t.Errorf("options = %+v", view.Options)
	}
	if view.Summary.Count != 120 || view.Summary.DistinctCurrencyCount != 2 {
		t.Errorf("summary = %+v", view.Summary)
	}
}

func TestLoadFailureKeepsDataset(t *testing.T) {
	s := newStore(50)
	if _, err := s.Load(context.Background(), source("a.json", document(3)), nil); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		name string
		src  Source
		want error
	}{
		{"extension", source("a.txt", "[]"), importer.ErrExtension},
		{"empty file", source("a.json", ""), importer.ErrEmptyFile},
		{"malformed", source("a.json", "[{"), importer.ErrMalformedJSON},
		{"not array", source("a.json", `{"code":"x"}`), importer.ErrNotArray},
		{"empty array", source("a.json", "[]"), importer.ErrEmptyArray},
		{"no valid data", source("a.json", `[{"code":"bad"}]`), service.ErrNoValidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Load(context.Background(), tt.src, nil); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
			if s.Processing() {
				t.Errorf("guard not released after failure")
			}
			if got := len(s.Original()); got != 3 {
				t.Errorf("previous dataset replaced, %d items", got)
			}
		})
	}
}

// blockingLoader parks inside Read until released.
type blockingLoader struct {
	entered chan struct{}
	release chan struct{}
	inner   Loader
}

func (b *blockingLoader) Read(r io.Reader, name string, size int64, sink progress.Sink) ([]json.RawMessage, error) {
	close(b.entered)
	<-b.release
	return b.inner.Read(r, name, size, sink)
}

func TestBusyGuard(t *testing.T) {
	cfg := config.Default()
	bl := &blockingLoader{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		inner:   importer.New(cfg, log.Default()),
	}
	s := New(50, bl, service.NewProcessor(cfg, log.Default()))

	done := make(chan error, 1)
	go func() {
		_, err := s.Load(context.Background(), source("a.json", document(4)), nil)
		done <- err
	}()
	<-bl.entered

	if _, err := s.Load(context.Background(), source("b.json", document(2)), nil); !errors.Is(err, ErrBusy) {
		t.Errorf("second load: expected ErrBusy, got %v", err)
	}
	if err := s.ApplyFilters(filter.Criteria{Search: "x"}); !errors.Is(err, ErrBusy) {
		t.Errorf("filter during load: expected ErrBusy, got %v", err)
	}
	if err := s.Reset(); !errors.Is(err, ErrBusy) {
		t.Errorf("reset during load: expected ErrBusy, got %v", err)
	}

	close(bl.release)
	if err := <-done; err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	if len(s.Original()) != 4 {
		t.Errorf("expected the first load to win, got %d items", len(s.Original()))
	}
	if err := s.ApplyFilters(filter.Criteria{}); err != nil {
		t.Errorf("filter after load: %v", err)
	}
}

func TestFiltersAndReset(t *testing.T) {
	s := newStore(10)
	if _, err := s.Load(context.Background(), source("a.json", document(40)), nil); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	s.SetPage(3)
	if err := s.ApplyFilters(filter.Criteria{Currency: "الجنيه المصري"}); err != nil {
		t.Fatalf("ApplyFilters failed: %v", err)
	}
	page, total := s.Page()
	if page != 1 || total != 2 {
		t.Errorf("after filter page %d/%d, want 1/2", page, total)
	}
	for _, it := range s.Filtered() {
		if it.CurrencyCode != "EGP" {
			t.Errorf("unexpected item %+v", it)
		}
	}
	if s.Criteria().Currency != "الجنيه المصري" {
		t.Errorf("criteria not kept")
	}

	s.NextPage()
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	page, total = s.Page()
	if page != 1 || total != 4 || len(s.Filtered()) != 40 || !s.Criteria().IsZero() {
		t.Errorf("after reset page %d/%d with %d items", page, total, len(s.Filtered()))
	}
}

func TestPaging(t *testing.T) {
	s := newStore(10)
	if page, total := s.Page(); page != 1 || total != 1 {
		t.Errorf("empty store page %d/%d, want 1/1", page, total)
	}
	if len(s.PageItems()) != 0 {
		t.Errorf("empty store has items")
	}

	if _, err := s.Load(context.Background(), source("a.json", document(25)), nil); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if s.PrevPage() {
		t.Errorf("moved before page 1")
	}
	if !s.NextPage() || !s.NextPage() {
		t.Errorf("could not advance")
	}
	if s.NextPage() {
		t.Errorf("moved past the last page")
	}
	items := s.PageItems()
	if len(items) != 5 || items[0].ID != 20 {
		t.Errorf("last page = %d items starting at %d", len(items), items[0].ID)
	}

	if got := s.SetPage(99); got != 3 {
		t.Errorf("SetPage(99) = %d", got)
	}
	if got := s.SetPage(-4); got != 1 {
		t.Errorf("SetPage(-4) = %d", got)
	}

	if err := s.ApplyFilters(filter.Criteria{Search: "no such thing"}); err != nil {
		t.Fatalf("ApplyFilters failed: %v", err)
	}
	if page, total := s.Page(); page != 1 || total != 1 {
		t.Errorf("empty view page %d/%d, want 1/1", page, total)
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	s := newStore(10)
	if _, err := s.Load(context.Background(), source("a.json", document(2)), nil); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	f := s.Filtered()
	f[0].Code = "changed"
	if s.Original()[0].Code == "changed" || s.Filtered()[0].Code == "changed" {
		t.Errorf("snapshot aliases store state")
	}
}
