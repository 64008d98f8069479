// Package money converts stored minor units into display amounts.
// Every currency is stored with two implied decimal places.
package money

import (
	"github.com/shopspring/decimal"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
)

// Amount is the API rendition of a stored amount.
type Amount struct {
	Cents    int64          `json:"cents"`
	Value    string         `json:"value"`
	Currency enums.Currency `json:"currency"`
}

// New builds an Amount for the stored minor units.
func New(cents int64, currency enums.Currency) Amount {
	return Amount{Cents: cents, Value: Format(cents, currency), Currency: currency}
}

// Format renders cents as a decimal string using the currency's display precision.
func Format(cents int64, currency enums.Currency) string {
	return decimal.NewFromInt(cents).Shift(-2).StringFixed(currency.DisplayPlaces())
}

// FromString parses a decimal amount into minor units, rounding half away from zero.
func FromString(value string) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, err
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

