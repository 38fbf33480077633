package amount

import "github.com/shopspring/decimal"

// Format renders minor units as a major.minor string, e.g. 1250 -> "12.50".
func Format(minor int64, minorDigits int32) string {
	if minorDigits <= 0 {
		return decimal.New(minor, 0).String()
	}
	return decimal.New(minor, -minorDigits).StringFixed(minorDigits)
}
