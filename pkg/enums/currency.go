package enums

import (
	"fmt"
	"strings"
)

// Currency is the ISO code orders are priced in. Amounts are always stored
// as integers with two implied decimals, whatever the currency.
type Currency string

const (
	CurrencyVND Currency = "VND"
	CurrencyUSD Currency = "USD"
)

func (c Currency) String() string {
	return string(c)
}

func (c Currency) IsValid() bool {
	switch c {
	case CurrencyVND, CurrencyUSD:
		return true
	default:
		return false
	}
}

// DisplayPlaces is how many decimals a rendered amount shows. Dong has no
// minor unit in circulation.
func (c Currency) DisplayPlaces() int32 {
	if c == CurrencyVND {
		return 0
	}
	return 2
}

// ParseCurrency accepts any casing and surrounding whitespace.
func ParseCurrency(value string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(value)))
	if !c.IsValid() {
		return "", fmt.Errorf("invalid currency %q", value)
	}
	return c, nil
}
