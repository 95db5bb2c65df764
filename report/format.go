// Package report renders simulation results as CSV and Markdown.
//
// Rendering never re-derives figures: every number printed comes from the
// engine result as-is and is only rounded for display.
package report

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FormatBRL renders an amount as Brazilian reais, e.g. R$ 1.736,65.
func FormatBRL(v decimal.Decimal) string {
	s := formatNumber(v, 2)
	if strings.HasPrefix(s, "-") {
		return "-R$ " + s[1:]
	}
	return "R$ " + s
}

// FormatPercent renders a value already expressed in percent, e.g. 40,00%.
func FormatPercent(v decimal.Decimal) string {
	return formatNumber(v, 2) + "%"
}

// FormatRate renders a fraction as a percent: 0.19 becomes 19,00%.
func FormatRate(v decimal.Decimal) string {
	return FormatPercent(v.Mul(hundred))
}

// FormatMonths renders a possibly fractional month count, e.g. 44,44.
func FormatMonths(v decimal.Decimal) string {
	return formatNumber(v, 2)
}

// formatNumber uses '.' for thousands and ',' for decimals.
func formatNumber(v decimal.Decimal, places int32) string {
	fixed := v.Round(places).StringFixed(places)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, frac, _ := strings.Cut(fixed, ".")
	if sign != "" && strings.Trim(intPart+frac, "0") == "" {
		sign = ""
	}

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	return b.String()
}
