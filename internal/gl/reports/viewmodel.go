package reports

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders an amount with thousands separators for API payloads
// and exports, e.g. 1234567.5 -> "1,234,567.50".
func FormatAmount(v float64) string {
	return amountPrinter.Sprintf("%.2f", v)
}
