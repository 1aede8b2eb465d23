// Package dataset owns one loaded collection: the decoded items, the
// currently filtered view, the filter criteria and the page cursor.
//
// A Store admits one load at a time. While a load is running, further loads
// and filter changes fail with ErrBusy instead of waiting.
package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/yurifrl/coinbook/pkg/filter"
	"github.com/yurifrl/coinbook/pkg/models"
	"github.com/yurifrl/coinbook/pkg/progress"
	"github.com/yurifrl/coinbook/pkg/service"
	"github.com/yurifrl/coinbook/pkg/summary"
)

// ErrBusy is returned for requests that arrive while a load is running.
var ErrBusy = errors.New("a file is still being processed")

// Loader reads and validates an uploaded file.
type Loader interface {
	Read(r io.Reader, name string, size int64, sink progress.Sink) ([]json.RawMessage, error)
}

// Processor decodes raw elements into items.
type Processor interface {
	Process(ctx context.Context, raws []json.RawMessage, sink progress.Sink) (*service.Result, error)
}

// Source is a file offered for loading.
type Source struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// LoadReport describes a successful load.
type LoadReport struct {
	Name      string        `json:"name"`
	Size      int64         `json:"size"`
	HumanSize string        `json:"humanSize"`
	Count     int           `json:"count"`
	Stats     service.Stats `json:"stats"`
}

// Options are the values offered by the currency and status filters.
type Options struct {
	Currencies []string `json:"currencies"`
	Statuses   []string `json:"statuses"`
}

// View is a snapshot of what a client displays.
type View struct {
	File       string          `json:"file,omitempty"`
	Items      []models.Item   `json:"items"`
	Page       int             `json:"page"`
	TotalPages int             `json:"totalPages"`
	Matches    int             `json:"matches"`
	Criteria   filter.Criteria `json:"criteria"`
	Summary    summary.Summary `json:"summary"`
	Options    Options         `json:"options"`
}

type Store struct {
	loader    Loader
	processor Processor
	pageSize  int

	processing atomic.Bool

	mu       sync.RWMutex
	file     string
	original []models.Item
	filtered []models.Item
	options  Options
	criteria filter.Criteria
	page     int
}

func New(pageSize int, loader Loader, processor Processor) *Store {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Store{
		loader:    loader,
		processor: processor,
		pageSize:  pageSize,
		page:      1,
	}
}

// Processing reports whether a load is running.
func (s *Store) Processing() bool {
	return s.processing.Load()
}

// acquire takes the processing guard. The returned func releases it.
func (s *Store) acquire() (func(), error) {
	if !s.processing.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	return func() { s.processing.Store(false) }, nil
}

// Load reads, validates and decodes src and, on success, replaces the
// dataset, clears the filters and returns to page 1. On failure the
// previous dataset is left untouched.
func (s *Store) Load(ctx context.Context, src Source, sink progress.Sink) (*LoadReport, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if sink == nil {
		sink = progress.Discard
	}

	raws, err := s.loader.Read(src.Reader, src.Name, src.Size, sink)
	if err != nil {
		return nil, err
	}

	res, err := s.processor.Process(ctx, raws, sink)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.file = src.Name
	s.original = res.Items
	s.filtered = clone(res.Items)
	s.options = Options{Currencies: res.Currencies, Statuses: res.Statuses}
	s.criteria = filter.Criteria{}
	s.page = 1
	s.mu.Unlock()

	return &LoadReport{
		Name:      src.Name,
		Size:      src.Size,
		HumanSize: progress.FormatSize(src.Size),
		Count:     len(res.Items),
		Stats:     res.Stats,
	}, nil
}

// ApplyFilters recomputes the filtered view from the original dataset and
// returns to page 1.
func (s *Store) ApplyFilters(c filter.Criteria) error {
	if s.Processing() {
		return ErrBusy
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria = c
	s.filtered = filter.Apply(s.original, c)
	s.page = 1
	return nil
}

// Reset clears every filter and shows the whole dataset from page 1.
func (s *Store) Reset() error {
	if s.Processing() {
		return ErrBusy
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria = filter.Criteria{}
	s.filtered = clone(s.original)
	s.page = 1
	return nil
}

// SetPage moves to page n, clamped to the available pages, and returns the
// resulting page.
func (s *Store) SetPage(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = clamp(n, 1, s.totalPagesLocked())
	return s.page
}

// NextPage advances one page and reports whether it moved.
func (s *Store) NextPage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page >= s.totalPagesLocked() {
		return false
	}
	s.page++
	return true
}

// PrevPage goes back one page and reports whether it moved.
func (s *Store) PrevPage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page <= 1 {
		return false
	}
	s.page--
	return true
}

// Page returns the current page number and the page count.
func (s *Store) Page() (page, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page, s.totalPagesLocked()
}

// PageItems returns the items on the current page.
func (s *Store) PageItems() []models.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pageItemsLocked()
}

// View returns everything needed to render the current state.
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return View{
		File:       s.file,
		Items:      s.pageItemsLocked(),
		Page:       s.page,
		TotalPages: s.totalPagesLocked(),
		Matches:    len(s.filtered),
		Criteria:   s.criteria,
		Summary:    summary.Summarize(s.filtered),
		Options:    s.optionsLocked(),
	}
}

// Filtered returns a copy of the filtered view.
func (s *Store) Filtered() []models.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.filtered)
}

// Original returns a copy of the loaded dataset.
func (s *Store) Original() []models.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.original)
}

// Criteria returns the active filters.
func (s *Store) Criteria() filter.Criteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.criteria
}

// Options returns the sorted filter choices seen during the last load.
func (s *Store) Options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.optionsLocked()
}

// Summary summarizes the filtered view.
func (s *Store) Summary() summary.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return summary.Summarize(s.filtered)
}

// Loaded reports whether a dataset has been loaded.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.original) > 0
}

// --- helpers ---

func (s *Store) totalPagesLocked() int {
	pages := (len(s.filtered) + s.pageSize - 1) / s.pageSize
	if pages < 1 {
		return 1
	}
	return pages
}

func (s *Store) pageItemsLocked() []models.Item {
	start := (s.page - 1) * s.pageSize
	if start >= len(s.filtered) {
		return []models.Item{}
	}
	end := start + s.pageSize
	if end > len(s.filtered) {
		end = len(s.filtered)
	}
	return clone(s.filtered[start:end])
}

func (s *Store) optionsLocked() Options {
	return Options{
		Currencies: append([]string{}, s.options.Currencies...),
		Statuses:   append([]string{}, s.options.Statuses...),
	}
}

func clone(items []models.Item) []models.Item {
	out := make([]models.Item, len(items))
	copy(out, items)
	return out
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
