package csv

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yurifrl/coinbook/pkg/filter"
	"github.com/yurifrl/coinbook/pkg/models"
)

func sample() []models.Item {
	return []models.Item{
		{Code: "USD202306150100A", Number: "7", Currency: "الدولار الأمريكي", Value: 100, Year: 2023, Month: 6, Day: 15, Status: "مقبول", DistinctiveMark: "star", CurrencyCode: "USD"},
		{Code: "EGP199912310500F", Number: "", Currency: "الجنيه المصري", Value: 500, Year: 1999, Month: 12, Day: 31, Status: "نظيف", DistinctiveMark: `say "hi"`, CurrencyCode: "EGP"},
	}
}

func TestCreate(t *testing.T) {
	out, err := Create(sample(), nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	expected := "\ufeff" +
		"الكود,العدد,نوع العملة,القيمة,سنة الإصدار,شهر الإصدار,يوم الإصدار,الحالة,العلامة المميزة\n" +
		`"USD202306150100A","7","الدولار الأمريكي",100,2023,6,15,"مقبول","star"` + "\n" +
		`"EGP199912310500F","","الجنيه المصري",500,1999,12,31,"نظيف","say ""hi"""`
	if string(out) != expected {
		t.Errorf("CSV mismatch:\nExpected: %q\nGot: %q", expected, string(out))
	}
}

func TestCreateStartsWithBOM(t *testing.T) {
	out, err := Create(sample(), nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !bytes.HasPrefix(out, []byte{0xEF, 0xBB, 0xBF}) {
		t.Errorf("missing UTF-8 BOM: % x", out[:3])
	}
	if strings.HasSuffix(string(out), "\n") {
		t.Errorf("unexpected trailing newline")
	}
}

func TestCreateFiltered(t *testing.T) {
	out, err := Create(sample(), filter.Criteria{Currency: "الجنيه المصري"}.Func())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	lines := strings.Split(string(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], `"EGP`) {
		t.Errorf("unexpected rows: %q", lines)
	}
}

func TestCreateEmpty(t *testing.T) {
	if _, err := Create(nil, nil); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
	if _, err := Create(sample(), filter.Criteria{Search: "nothing matches"}.Func()); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData when the filter drops everything, got %v", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, nil); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("nothing should be written on refusal")
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := WriteFile(path, sample()); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	want, _ := Create(sample(), nil)
	if !bytes.Equal(data, want) {
		t.Errorf("file content differs from Create output")
	}

	empty := filepath.Join(t.TempDir(), "empty.csv")
	if err := WriteFile(empty, nil); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Errorf("no file should be created for an empty export")
	}
}

func TestFileName(t *testing.T) {
	date := time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)
	if got := FileName("عملات", date); got != "عملات_2024-03-09.csv" {
		t.Errorf("FileName = %q", got)
	}
}
