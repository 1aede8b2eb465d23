package executors

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yurifrl/coinbook/pkg/csv"
	"github.com/yurifrl/coinbook/pkg/plan"
	"github.com/yurifrl/coinbook/pkg/xlsx"
)

// Apply writes every export that has matching items. Empty exports are
// reported and skipped. The returned error joins every failed entry.
func (e *Executor) Apply(ctx context.Context, p *plan.Plan) (*Report, error) {
	e.logger.Debug("applying plan", "count", len(p.Exports))

	report := e.buildReport(ctx, p)
	for i := range report.Entries {
		entry := &report.Entries[i]
		switch entry.Status {
		case Empty:
			e.logger.Warn("nothing to export", "input", entry.Input, "criteria", entry.Export.Criteria)
			continue
		case Failed:
			e.logger.Error("failed to load input", "input", entry.Input, "err", entry.Err)
			continue
		}

		if err := write(entry.Output, entry.Export.Format, entry); err != nil {
			entry.Status = Failed
			entry.Err = err
			e.logger.Error("failed to write export", "output", entry.Output, "err", err)
			continue
		}
		e.logger.Info("exported", "output", entry.Output, "items", entry.Matches)
	}

	fmt.Fprintf(e.out, "Apply: %d file(s) written, %d skipped, %d failed\n",
		report.ReadyCount(), report.EmptyCount(), report.FailedCount())
	return report, report.Err()
}

func write(path, format string, entry *Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if format == plan.FormatXLSX {
		return xlsx.WriteFile(path, entry.items)
	}
	return csv.WriteFile(path, entry.items)
}
