// Package lookup maps the abbreviations embedded in item codes to the labels
// shown to users. The tables are not exhaustive: an unknown code is its own
// label.
package lookup

import "sort"

var currencies = map[string]string{
	"EGP": "الجنيه المصري",
	"AED": "الدرهم الإماراتي",
	"SAR": "الريال السعودي",
	"USD": "الدولار الأمريكي",
	"EUR": "اليورو",
	"GBP": "الجنيه الإسترليني",
	"JPY": "الين الياباني",
	"KWD": "الدينار الكويتي",
	"QAR": "الريال القطري",
	"BHD": "الدينار البحريني",
}

var statuses = map[string]string{
	"G": "جيد",
	"V": "جيد جداً",
	"A": "مقبول",
	"E": "ممتاز",
	"P": "ضعيف",
	"F": "نظيف",
	"U": "غير متداول",
}

// Currency returns the label for a three letter currency code.
func Currency(code string) string {
	if label, ok := currencies[code]; ok {
		return label
	}
	return code
}

// Status returns the label for a one letter condition code.
func Status(code string) string {
	if label, ok := statuses[code]; ok {
		return label
	}
	return code
}

// Currencies lists the known currency codes in order.
func Currencies() []string { return keys(currencies) }

// Statuses lists the known status codes in order.
func Statuses() []string { return keys(statuses) }

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
