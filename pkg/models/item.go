package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Item is a decoded, display-ready coin or banknote record.
type Item struct {
	ID              int    `json:"id"`
	Code            string `json:"code"`
	Number          string `json:"number"`
	Currency        string `json:"currency"`
	Value           int    `json:"value"`
	Year            int    `json:"year"`
	Month           int    `json:"month"`
	Day             int    `json:"day"`
	Status          string `json:"status"`
	DistinctiveMark string `json:"distinctiveMark"`
	CurrencyCode    string `json:"currencyCode"`
	StatusCode      string `json:"statusCode"`
}

// DecodedFields holds what a fixed-width code carries.
type DecodedFields struct {
	CurrencyCode string
	Value        int
	Year         int
	Month        int
	Day          int
	StatusCode   string
	Currency     string
	Status       string
}

// NewItem builds the item stored at position id of the input array.
func NewItem(id int, raw RawRecord, d DecodedFields) Item {
	return Item{
		ID:              id,
		Code:            raw.Code,
		Number:          raw.Number,
		Currency:        d.Currency,
		Value:           d.Value,
		Year:            d.Year,
		Month:           d.Month,
		Day:             d.Day,
		Status:          d.Status,
		DistinctiveMark: raw.DistinctiveMark,
		CurrencyCode:    d.CurrencyCode,
		StatusCode:      d.StatusCode,
	}
}

// RawRecord is one element of the uploaded JSON array.
type RawRecord struct {
	Code            string
	Number          string
	DistinctiveMark string
}

type rawFields struct {
	Code                 json.RawMessage `json:"code"`
	Number               json.RawMessage `json:"number"`
	DistinctiveMark      json.RawMessage `json:"distinctiveMark"`
	DistinctiveMarkSnake json.RawMessage `json:"distinctive_mark"`
}

// ParseRawRecord reads a single array element. It reports false when the
// element is not an object or carries no usable string code.
func ParseRawRecord(data json.RawMessage) (RawRecord, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return RawRecord{}, false
	}

	var f rawFields
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return RawRecord{}, false
	}

	code, ok := stringValue(f.Code)
	if !ok || code == "" {
		return RawRecord{}, false
	}

	mark := markValue(f.DistinctiveMark)
	if mark == "" {
		mark = markValue(f.DistinctiveMarkSnake)
	}

	return RawRecord{
		Code:            code,
		Number:          labelValue(f.Number),
		DistinctiveMark: mark,
	}, true
}

func stringValue(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// labelValue keeps number as an opaque label: strings verbatim, JSON numbers
// by their literal text, anything else empty.
func labelValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if s, ok := stringValue(raw); ok {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return ""
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return ""
	}
	return n.String()
}

// markValue renders a distinctive mark given as any truthy scalar. Numbers
// keep their literal text; zero, false, null and containers read as no mark.
func markValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		s, _ := stringValue(raw)
		return s
	case 't':
		if string(raw) == "true" {
			return "true"
		}
		return ""
	}
	n := labelValue(raw)
	if f, err := strconv.ParseFloat(n, 64); err != nil || f == 0 {
		return ""
	}
	return n
}
