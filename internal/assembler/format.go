package assembler

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// formatCurrency renders d as US dollars with thousands separators, the way
// amounts appear on deposit tickets and endorsements.
func formatCurrency(d decimal.Decimal) string {
	cents := d.Round(2)
	whole := cents.Truncate(0).Abs()
	frac := cents.Abs().Sub(whole).Shift(2).IntPart()

	sign := ""
	if cents.IsNegative() {
		sign = "-"
	}
	return fmt.Sprintf("%s$%s.%02d", sign, printer.Sprintf("%d", whole.IntPart()), frac)
}
