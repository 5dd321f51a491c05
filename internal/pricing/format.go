package pricing

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var idPrinter = message.NewPrinter(language.Indonesian)

// FormatRupiah renders an amount as Indonesian Rupiah with no fraction
// digits and id-ID thousands grouping, e.g. "Rp 774.000".
func FormatRupiah(amount int64) string {
	return "Rp " + idPrinter.Sprint(number.Decimal(amount, number.MaxFractionDigits(0)))
}

// FormatPercentage renders a growth percentage with one decimal and an explicit sign.
func FormatPercentage(value float64) string {
	sign := ""
	if value >= 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.1f%%", sign, value)
}
