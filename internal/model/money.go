package model

import "github.com/shopspring/decimal"

// MoneyScale is the number of fractional digits stored for money.
const MoneyScale = 2

// MaxMoney is the largest value a decimal(20,2) money column holds.
var MaxMoney = decimal.RequireFromString("999999999999999999.99")

// ValidAmount reports whether d is a positive amount that fits the money
// columns exactly: at most two fractional digits and no more than MaxMoney.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Round(MoneyScale)) && d.LessThanOrEqual(MaxMoney)
}
