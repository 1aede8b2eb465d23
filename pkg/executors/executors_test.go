package executors

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/coinbook/pkg/config"
	"github.com/yurifrl/coinbook/pkg/plan"
)

const coins = `[
	{"code":"USD202306150100G","number":"1","distinctiveMark":"star"},
	{"code":"USD199001020005E","number":"2"},
	{"code":"EGP201012310050V","number":"3"},
	{"code":"broken"}
]`

func setup(t *testing.T, planYAML string) (*Executor, *plan.Plan, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "coins.json"), []byte(coins), 0600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	planPath := filepath.Join(dir, "plan.yaml")
	if err := os.WriteFile(planPath, []byte(planYAML), 0600); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	p, err := plan.Load(planPath)
	if err != nil {
		t.Fatalf("load plan: %v", err)
	}

	var out bytes.Buffer
	e := New(log.Default(), config.Default()).WithOutput(&out)
	e.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	return e, p, &out, dir
}

const testPlan = `
label: coins
exports:
  - input: coins.json
    currency: الدولار الأمريكي
  - input: coins.json
    search: star
    output: out/stars.xlsx
  - input: coins.json
    currency: اليورو
  - input: missing.json
`

func TestPlan(t *testing.T) {
	e, p, out, dir := setup(t, testPlan)

	report, err := e.Plan(context.Background(), p)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	want := []struct {
		status  Status
		matches int
	}{
		{Ready, 2},
		{Ready, 1},
		{Empty, 0},
		{Failed, 0},
	}
	if len(report.Entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(report.Entries), len(want))
	}
	for i, w := range want {
		got := report.Entries[i]
		if got.Status != w.status || got.Matches != w.matches {
			t.Errorf("entry %d = %s/%d, want %s/%d", i, got.Status, got.Matches, w.status, w.matches)
		}
	}

	if got := report.Entries[0].Output; got != filepath.Join(dir, "coins_2024-05-01.csv") {
		t.Errorf("default output = %q", got)
	}
	if got := report.Entries[0].Total; got != 3 {
		t.Errorf("total = %d, want 3", got)
	}
	if !strings.Contains(out.String(), "2 file(s) will be written, 1 skipped, 1 failed") {
		t.Errorf("summary missing from output:\n%s", out.String())
	}

	// plan never writes
	if _, err := os.Stat(report.Entries[0].Output); !os.IsNotExist(err) {
		t.Errorf("plan wrote %s", report.Entries[0].Output)
	}
}

func TestApply(t *testing.T) {
	e, p, _, dir := setup(t, testPlan)

	report, err := e.Apply(context.Background(), p)
	if err == nil {
		t.Fatal("expected the missing input to be reported")
	}
	if report.ReadyCount() != 2 || report.EmptyCount() != 1 || report.FailedCount() != 1 {
		t.Errorf("counts = %d/%d/%d", report.ReadyCount(), report.EmptyCount(), report.FailedCount())
	}

	data, err := os.ReadFile(filepath.Join(dir, "coins_2024-05-01.csv"))
	if err != nil {
		t.Fatalf("csv not written: %v", err)
	}
	if lines := strings.Split(string(data), "\n"); len(lines) != 3 {
		t.Errorf("csv has %d lines, want header + 2 rows", len(lines))
	}

	if info, err := os.Stat(filepath.Join(dir, "out", "stars.xlsx")); err != nil || info.Size() == 0 {
		t.Errorf("xlsx not written: %v", err)
	}
}

func TestApplyAllEmpty(t *testing.T) {
	e, p, out, dir := setup(t, "exports:\n  - input: coins.json\n    status: ضعيف\n")

	report, err := e.Apply(context.Background(), p)
	if err != nil {
		t.Fatalf("empty exports must not fail: %v", err)
	}
	if report.EmptyCount() != 1 {
		t.Errorf("empty = %d", report.EmptyCount())
	}
	entries, _ := os.ReadDir(dir)
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".csv") {
			t.Errorf("unexpected file %s", entry.Name())
		}
	}
	if !strings.Contains(out.String(), "0 file(s) written, 1 skipped") {
		t.Errorf("output = %q", out.String())
	}
}

func TestApplyDefaultOutputsStayApart(t *testing.T) {
	e, p, _, dir := setup(t, `
label: coins
exports:
  - input: coins.json
    currency: الدولار الأمريكي
  - input: coins.json
    currency: الجنيه المصري
  - input: coins.json
    output: picked.csv
  - input: coins.json
    search: star
    output: picked.csv
`)

	report, err := e.Apply(context.Background(), p)
	if !errors.Is(err, ErrDuplicateOutput) {
		t.Fatalf("expected ErrDuplicateOutput, got %v", err)
	}
	if report.ReadyCount() != 3 || report.FailedCount() != 1 {
		t.Errorf("counts = ready %d failed %d", report.ReadyCount(), report.FailedCount())
	}

	want := map[string]int{
		"coins_2024-05-01.csv":   2,
		"coins_2024-05-01_2.csv": 1,
		"picked.csv":             3,
	}
	for name, rows := range want {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("%s not written: %v", name, err)
			continue
		}
		if lines := strings.Split(string(data), "\n"); len(lines) != rows+1 {
			t.Errorf("%s has %d lines, want header + %d rows", name, len(lines), rows)
		}
	}
	if report.Entries[1].Output != filepath.Join(dir, "coins_2024-05-01_2.csv") {
		t.Errorf("second default output = %q", report.Entries[1].Output)
	}
}
