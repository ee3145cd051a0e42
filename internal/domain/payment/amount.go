package payment

import (
	"github.com/shopspring/decimal"
)

// Currencies the provider bills in whole units.
var zeroDecimalCurrencies = map[string]struct{}{
	"bif": {}, "clp": {}, "djf": {}, "gnf": {}, "jpy": {}, "kmf": {}, "krw": {}, "mga": {},
	"pyg": {}, "rwf": {}, "ugx": {}, "vnd": {}, "vuv": {}, "xaf": {}, "xof": {}, "xpf": {},
}

func currencyExponent(currency string) int32 {
	if _, ok := zeroDecimalCurrencies[currency]; ok {
		return 0
	}
	return 2
}

// ToMinorUnits converts an amount to the smallest unit of currency, rejecting sub-unit precision.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	shifted := amount.Shift(currencyExponent(currency))
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, &ValidationError{Field: "amount", Reason: "has more precision than " + currency + " allows"}
	}
	return shifted.IntPart(), nil
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -currencyExponent(currency))
}
