package executors

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/yurifrl/coinbook/pkg/csv"
	"github.com/yurifrl/coinbook/pkg/filter"
	"github.com/yurifrl/coinbook/pkg/models"
	"github.com/yurifrl/coinbook/pkg/plan"
	"github.com/yurifrl/coinbook/pkg/service"
	"github.com/yurifrl/coinbook/pkg/xlsx"
)

// ErrDuplicateOutput marks an export whose explicit output path is already
// taken by an earlier export of the same plan.
var ErrDuplicateOutput = errors.New("output already used by another export")

// Status is what will happen, or happened, to one export of a plan.
type Status int

const (
	Ready  Status = iota // has matching items
	Empty                // nothing matched, skipped
	Failed               // input not loaded, output taken or not written
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case Empty:
		return "empty"
	default:
		return "failed"
	}
}

type Entry struct {
	Export  plan.Export
	Input   string
	Output  string
	Total   int
	Matches int
	Status  Status
	Err     error

	items []models.Item
}

type Report struct {
	Entries []Entry
}

func (r *Report) count(s Status) int {
	n := 0
	for _, e := range r.Entries {
		if e.Status == s {
			n++
		}
	}
	return n
}

func (r *Report) ReadyCount() int  { return r.count(Ready) }
func (r *Report) EmptyCount() int  { return r.count(Empty) }
func (r *Report) FailedCount() int { return r.count(Failed) }

// Err joins the errors of every failed entry.
func (r *Report) Err() error {
	var errs []error
	for _, e := range r.Entries {
		if e.Status == Failed {
			errs = append(errs, e.Err)
		}
	}
	return errors.Join(errs...)
}

// buildReport loads every input of the plan once and filters it for each
// export. Nothing is written.
func (e *Executor) buildReport(ctx context.Context, p *plan.Plan) *Report {
	label := p.Label
	if label == "" {
		label = e.config.ExportLabel
	}

	loaded := make(map[string]*service.Result)
	failures := make(map[string]error)
	taken := make(map[string]bool)

	report := &Report{Entries: make([]Entry, 0, len(p.Exports))}
	for _, exp := range p.Exports {
		input := p.Resolve(exp.Input)
		entry := Entry{
			Export: exp,
			Input:  input,
			Output: e.outputPath(p, exp, input, label),
		}

		if taken[entry.Output] && exp.Output != "" {
			entry.Status = Failed
			entry.Err = fmt.Errorf("%w: %s", ErrDuplicateOutput, entry.Output)
			report.Entries = append(report.Entries, entry)
			continue
		}
		entry.Output = uniquePath(entry.Output, taken)
		taken[entry.Output] = true

		result, ok := loaded[input]
		if !ok && failures[input] == nil {
			var err error
			result, err = e.load(ctx, input)
			if err != nil {
				failures[input] = err
			} else {
				loaded[input] = result
			}
		}
		if err := failures[input]; err != nil {
			entry.Status = Failed
			entry.Err = err
			report.Entries = append(report.Entries, entry)
			continue
		}

		entry.items = filter.Apply(result.Items, exp.Criteria)
		entry.Total = len(result.Items)
		entry.Matches = len(entry.items)
		if entry.Matches == 0 {
			entry.Status = Empty
		}
		report.Entries = append(report.Entries, entry)
	}
	return report
}

func (e *Executor) load(ctx context.Context, input string) (*service.Result, error) {
	raws, err := e.importer.ReadFile(input, nil)
	if err != nil {
		return nil, err
	}
	result, err := e.processor.Process(ctx, raws, nil)
	if errors.Is(err, service.ErrNoValidData) {
		// an input without valid records is empty, not broken
		return result, nil
	}
	return result, err
}

func (e *Executor) outputPath(p *plan.Plan, exp plan.Export, input, label string) string {
	if exp.Output != "" {
		return p.Resolve(exp.Output)
	}
	name := csv.FileName(label, e.now())
	if exp.Format == plan.FormatXLSX {
		name = xlsx.FileName(label, e.now())
	}
	return filepath.Join(filepath.Dir(input), name)
}

// uniquePath numbers a default output that an earlier export already claimed:
// coins_2024-05-01.csv, coins_2024-05-01_2.csv, ...
func uniquePath(path string, taken map[string]bool) string {
	if !taken[path] {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if !taken[candidate] {
			return candidate
		}
	}
}
