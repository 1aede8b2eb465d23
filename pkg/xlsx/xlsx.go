// Package xlsx exports items as a single-sheet workbook with the same columns
// as the CSV export.
package xlsx

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/yurifrl/coinbook/pkg/csv"
	"github.com/yurifrl/coinbook/pkg/models"
)

// SheetName is the name of the only sheet in an export.
const SheetName = "عملات"

// ErrNoData mirrors the CSV exporter so callers can check a single error.
var ErrNoData = csv.ErrNoData

// Build fills a new workbook. The caller closes it.
func Build(records []models.Item) (*excelize.File, error) {
	if len(records) == 0 {
		return nil, ErrNoData
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	rtl := true
	if err := f.SetSheetView(SheetName, 0, &excelize.ViewOptions{RightToLeft: &rtl}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set sheet view: %w", err)
	}

	header := make([]any, len(csv.Header))
	for i, h := range csv.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		row := []any{r.Code, r.Number, r.Currency, r.Value, r.Year, r.Month, r.Day, r.Status, r.DistinctiveMark}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	return f, nil
}

// Write streams the workbook for records to w.
func Write(w io.Writer, records []models.Item) error {
	f, err := Build(records)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteFile saves the workbook for records to path.
func WriteFile(path string, records []models.Item) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(out, records); err != nil {
		out.Close()
		os.Remove(path)
		return err
	}
	return out.Close()
}

// FileName returns "<label>_<YYYY-MM-DD>.xlsx" with the UTC date.
func FileName(label string, date time.Time) string {
	return label + "_" + date.UTC().Format(time.DateOnly) + ".xlsx"
}
