package service

import (
	"time"

	"github.com/shopspring/decimal"
)

// prorationPeriodDays is the nominal billing period length used for
// proration, independent of the calendar month.
const prorationPeriodDays = 30

// ProrateUpgrade computes the immediate charge for an upgrade:
// (newPrice - oldPrice) * daysRemaining / 30, rounded to the nearest
// minor currency unit. Downgrades and expired periods prorate to zero;
// the lower price simply takes effect at the next renewal.
func ProrateUpgrade(oldPriceCents, newPriceCents int64, daysRemaining int) int64 {
	if newPriceCents <= oldPriceCents || daysRemaining <= 0 {
		return 0
	}

	diff := decimal.NewFromInt(newPriceCents - oldPriceCents)
	prorated := diff.
		Mul(decimal.NewFromInt(int64(daysRemaining))).
		Div(decimal.NewFromInt(prorationPeriodDays)).
		Round(0)
	return prorated.IntPart()
}

// DaysRemaining returns the whole days left until periodEnd, rounded
// to the nearest day. Zero or negative once the period has lapsed.
func DaysRemaining(now, periodEnd time.Time) int {
	if !periodEnd.After(now) {
		return 0
	}
	hours := periodEnd.Sub(now).Hours()
	return int(hours/24 + 0.5)
}
