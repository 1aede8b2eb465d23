package parser

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/yurifrl/coinbook/pkg/lookup"
	"github.com/yurifrl/coinbook/pkg/models"
)

// CodeLength is the number of characters a code must carry. Anything past it
// is ignored.
const CodeLength = 16

const (
	minMonth = 1
	maxMonth = 12
	minDay   = 1
	maxDay   = 31
	minYear  = 100
	maxYear  = 2100
)

type slot struct {
	name  string
	start int
	end   int
}

// Layout of a code: CCC YYYY MM DD VVVV S
var (
	currencySlot = slot{"currency", 0, 3}
	yearSlot     = slot{"year", 3, 7}
	monthSlot    = slot{"month", 7, 9}
	daySlot      = slot{"day", 9, 11}
	valueSlot    = slot{"value", 11, 15}
	statusSlot   = slot{"status", 15, 16}
)

type Parser struct {
	logger *log.Logger
}

func New(logger *log.Logger) *Parser {
	return &Parser{
		logger: logger,
	}
}

// Decode extracts the fields of a fixed-width code. It reports false when the
// code is too short, a numeric slot holds anything but digits, or a date part
// is out of range. Day 31 is accepted for every month.
func (p *Parser) Decode(code string) (models.DecodedFields, bool) {
	d, reason := decode(code)
	if reason != "" {
		p.logger.Debug("rejected code", "code", code, "reason", reason)
		return models.DecodedFields{}, false
	}
	return d, true
}

// Decode is the logger-free form of Parser.Decode.
func Decode(code string) (models.DecodedFields, bool) {
	d, reason := decode(code)
	return d, reason == ""
}

func decode(code string) (models.DecodedFields, string) {
	runes := []rune(code)
	if len(runes) < CodeLength {
		return models.DecodedFields{}, "too short"
	}

	nums := make(map[string]int, 4)
	for _, s := range []slot{yearSlot, monthSlot, daySlot, valueSlot} {
		n, ok := digits(s.take(runes))
		if !ok {
			return models.DecodedFields{}, s.name + " is not numeric"
		}
		nums[s.name] = n
	}

	year, month, day := nums[yearSlot.name], nums[monthSlot.name], nums[daySlot.name]
	switch {
	case month < minMonth || month > maxMonth:
		return models.DecodedFields{}, "month out of range"
	case day < minDay || day > maxDay:
		return models.DecodedFields{}, "day out of range"
	case year < minYear || year > maxYear:
		return models.DecodedFields{}, "year out of range"
	}

	currencyCode := strings.ToUpper(currencySlot.take(runes))
	statusCode := strings.ToUpper(statusSlot.take(runes))

	return models.DecodedFields{
		CurrencyCode: currencyCode,
		Value:        nums[valueSlot.name],
		Year:         year,
		Month:        month,
		Day:          day,
		StatusCode:   statusCode,
		Currency:     lookup.Currency(currencyCode),
		Status:       lookup.Status(statusCode),
	}, ""
}

func (s slot) take(runes []rune) string {
	return string(runes[s.start:s.end])
}

// digits parses s as a base-10 integer made only of ASCII digits.
func digits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
