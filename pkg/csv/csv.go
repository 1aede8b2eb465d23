package csv

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/yurifrl/coinbook/pkg/filter"
	"github.com/yurifrl/coinbook/pkg/models"
)

// ErrNoData is returned instead of writing a header-only file.
var ErrNoData = errors.New("no data to export")

const bom = "\ufeff"

// Header is the column row shared by every export format.
var Header = []string{
	"الكود",
	"العدد",
	"نوع العملة",
	"القيمة",
	"سنة الإصدار",
	"شهر الإصدار",
	"يوم الإصدار",
	"الحالة",
	"العلامة المميزة",
}

// Create renders the items kept by keep (all of them when keep is nil) as
// BOM-prefixed CSV. Text columns are quoted, numeric columns are bare.
// Rows are separated by "\n" with no trailing newline.
func Create(records []models.Item, keep filter.Func) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(bom)
	buf.WriteString(strings.Join(Header, ","))

	n := 0
	for _, r := range records {
		if keep != nil && !keep(r) {
			continue
		}
		buf.WriteString(fmt.Sprintf("\n%s,%s,%s,%d,%d,%d,%d,%s,%s",
			quote(r.Code),
			quote(r.Number),
			quote(r.Currency),
			r.Value,
			r.Year,
			r.Month,
			r.Day,
			quote(r.Status),
			quote(r.DistinctiveMark)))
		n++
	}
	if n == 0 {
		return nil, ErrNoData
	}
	return buf.Bytes(), nil
}

// Write streams the export of records to w.
func Write(w io.Writer, records []models.Item) error {
	data, err := Create(records, nil)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteFile writes the export of records to path.
func WriteFile(path string, records []models.Item) error {
	data, err := Create(records, nil)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// FileName returns "<label>_<YYYY-MM-DD>.csv" with the UTC date.
func FileName(label string, date time.Time) string {
	return label + "_" + date.UTC().Format(time.DateOnly) + ".csv"
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
