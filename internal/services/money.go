package services

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var pricePrinter = message.NewPrinter(language.English)

// FormatPrice renders an amount in whole currency units with thousands separators,
// e.g. ₦12,500,000.
func FormatPrice(symbol string, amount float64) string {
	return symbol + pricePrinter.Sprint(number.Decimal(amount, number.MaxFractionDigits(0)))
}
