// Package messages holds the texts shown to users for every reported
// condition.
package messages

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/yurifrl/coinbook/pkg/csv"
	"github.com/yurifrl/coinbook/pkg/dataset"
	"github.com/yurifrl/coinbook/pkg/importer"
	"github.com/yurifrl/coinbook/pkg/progress"
	"github.com/yurifrl/coinbook/pkg/service"
)

const (
	InvalidExtension = "يرجى اختيار ملف JSON صحيح"
	EmptyFile        = "الملف فارغ"
	ReadFailed       = "خطأ في قراءة الملف"
	MalformedJSON    = "خطأ في تنسيق ملف JSON. تأكد من صحة البيانات"
	NotArray         = "البيانات يجب أن تكون في صيغة مصفوفة"
	EmptyArray       = "الملف لا يحتوي على بيانات"
	NoValidData      = "لم يتم العثور على بيانات صحيحة في الملف"
	NoDataToExport   = "لا توجد بيانات للتصدير"
	ExportDone       = "تم تصدير البيانات بنجاح"
	Busy             = "جاري معالجة ملف آخر، يرجى الانتظار"
	AllCurrencies    = "جميع العملات"
	AllStatuses      = "جميع الحالات"
	NoResults        = "لا توجد نتائج"
)

var numbers = message.NewPrinter(language.English)

// TooLarge renders the size limit message.
func TooLarge(limit int64) string {
	return "حجم الملف كبير جداً. الحد الأقصى " + progress.FormatSize(limit)
}

// Loaded is the success message after a load.
func Loaded(count int) string {
	return fmt.Sprintf("تم تحميل %s عنصر بنجاح!", group(count))
}

// PageInfo renders "page X of Y".
func PageInfo(page, total int) string {
	return fmt.Sprintf("الصفحة %d من %d", page, total)
}

// For maps an error to the text a user sees. Unknown errors read as a
// generic read failure.
func For(err error) string {
	if err == nil {
		return ""
	}
	if text, ok := Lookup(err); ok {
		return text
	}
	return ReadFailed
}

// Lookup returns the user text for the conditions this package knows and
// false for any other error.
func Lookup(err error) (string, bool) {
	var limit *importer.LimitError
	switch {
	case err == nil:
		return "", false
	case errors.As(err, &limit):
		return TooLarge(limit.Limit), true
	case errors.Is(err, importer.ErrExtension):
		return InvalidExtension, true
	case errors.Is(err, importer.ErrEmptyFile):
		return EmptyFile, true
	case errors.Is(err, importer.ErrMalformedJSON):
		return MalformedJSON, true
	case errors.Is(err, importer.ErrNotArray):
		return NotArray, true
	case errors.Is(err, importer.ErrEmptyArray):
		return EmptyArray, true
	case errors.Is(err, importer.ErrRead):
		return ReadFailed, true
	case errors.Is(err, service.ErrNoValidData):
		return NoValidData, true
	case errors.Is(err, csv.ErrNoData):
		return NoDataToExport, true
	case errors.Is(err, dataset.ErrBusy):
		return Busy, true
	default:
		return "", false
	}
}

// group inserts thousands separators: 12345 -> "12,345".
func group(n int) string {
	return numbers.Sprintf("%d", n)
}
