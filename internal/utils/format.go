package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatNaira renders an amount as ₦ with thousands separators, dropping
// trailing zero kobo ("₦3,575" rather than "₦3,575.00").
func FormatNaira(amount decimal.Decimal) string {
	s := amount.StringFixed(2)
	s = strings.TrimSuffix(s, ".00")

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole := s
	frac := ""
	if i := strings.Index(s, "."); i >= 0 {
		whole, frac = s[:i], s[i:]
	}

	var b strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}

	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s₦%s%s", sign, b.String(), frac)
}

// ToKobo converts a naira amount to minor units for the payment gateway.
func ToKobo(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}

// FirstName returns the first whitespace-separated token of a full name.
func FirstName(fullName string) string {
	fields := strings.Fields(strings.TrimSpace(fullName))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// CustomerEmail derives a placeholder email for gateway customers that have
// only a phone number.
func CustomerEmail(phone string) string {
	cleaned := strings.NewReplacer("+", "", " ", "").Replace(phone)
	return fmt.Sprintf("%s@customer.lolakitchen.com", cleaned)
}
