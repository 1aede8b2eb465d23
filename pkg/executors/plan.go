package executors

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/yurifrl/coinbook/pkg/plan"
)

var (
	readyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	emptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
)

// Plan evaluates every export and prints what Apply would do, without
// writing anything.
func (e *Executor) Plan(ctx context.Context, p *plan.Plan) (*Report, error) {
	e.logger.Debug("planning exports", "count", len(p.Exports))

	report := e.buildReport(ctx, p)
	for _, entry := range report.Entries {
		fmt.Fprintln(e.out, renderEntry(entry))
	}

	fmt.Fprintf(e.out, "\nPlan: %d file(s) will be written, %d skipped, %d failed\n",
		report.ReadyCount(), report.EmptyCount(), report.FailedCount())
	return report, nil
}

func renderEntry(entry Entry) string {
	switch entry.Status {
	case Ready:
		line := fmt.Sprintf("%s | %d/%d | %s | %s", entry.Input, entry.Matches, entry.Total, entry.Export.Format, entry.Output)
		return readyStyle.Render("+ " + line)
	case Empty:
		line := fmt.Sprintf("%s | 0/%d | no matching items", entry.Input, entry.Total)
		return emptyStyle.Render("= " + line)
	default:
		line := fmt.Sprintf("%s | %v", entry.Input, entry.Err)
		return failedStyle.Render("! " + line)
	}
}
