package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders amounts as localized currency strings.
type Formatter struct {
	Symbol string
	Tag    language.Tag
}

// BRL is the storefront default: pt-BR grouping with the real sign.
var BRL = Formatter{Symbol: "R$", Tag: language.BrazilianPortuguese}

// NewFormatter parses a BCP 47 locale such as "pt-BR".
func NewFormatter(symbol, locale string) (Formatter, error) {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return Formatter{}, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	if strings.TrimSpace(symbol) == "" {
		return Formatter{}, fmt.Errorf("currency symbol is required")
	}
	return Formatter{Symbol: strings.TrimSpace(symbol), Tag: tag}, nil
}

// Format renders amount with two fraction digits, e.g. 1234.5 -> "R$ 1.234,50".
func (f Formatter) Format(amount decimal.Decimal) string {
	rounded := Round(amount)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}
	p := message.NewPrinter(f.Tag)
	digits := p.Sprint(number.Decimal(rounded.InexactFloat64(), number.Scale(2)))
	return sign + f.Symbol + " " + digits
}

// Format renders amount with the default BRL formatter.
func Format(amount decimal.Decimal) string {
	return BRL.Format(amount)
}

// Round rounds half away from zero to cents.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// FromCents converts an integer number of cents into a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// ToCents converts an amount to integer cents after rounding.
func ToCents(amount decimal.Decimal) int64 {
	return Round(amount).Shift(2).IntPart()
}
