package view

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Currency is the suffix every price is shown with.
const Currency = "₽"

var ruPrinter = message.NewPrinter(language.Russian)

// FormatPrice renders whole rubles the way ru-RU does: digits grouped in
// threes by a no-break space, followed by the ruble sign, e.g. "485 000 ₽".
func FormatPrice(rubles int64) string {
	return ruPrinter.Sprint(number.Decimal(rubles, number.MaxFractionDigits(0))) + " " + Currency
}
