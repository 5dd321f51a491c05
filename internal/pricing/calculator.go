// Package pricing turns a plan selection into a monthly price.
package pricing

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/seacatering/subscription-service/internal/domain"
)

// WeeksPerMonth approximates the number of delivery weeks in a month.
var WeeksPerMonth = decimal.RequireFromString("4.3")

// Compute returns the monthly price in whole rupiah. An unknown plan or an
// empty meal/day selection yields 0, meaning "selection incomplete".
func Compute(plan domain.PlanID, mealTypes []domain.MealType, deliveryDays []domain.DeliveryDay) int64 {
	p, ok := domain.LookupPlan(plan)
	if !ok {
		return 0
	}
	meals := len(NormalizeMealTypes(mealTypes))
	days := len(NormalizeDeliveryDays(deliveryDays))
	if meals == 0 || days == 0 {
		return 0
	}

	return decimal.NewFromInt(p.UnitPrice).
		Mul(decimal.NewFromInt(int64(meals))).
		Mul(decimal.NewFromInt(int64(days))).
		Mul(WeeksPerMonth).
		Round(0).
		IntPart()
}

// Quote prices a raw selection, dropping unknown and duplicate values.
func Quote(in domain.QuoteInput) domain.Quote {
	plan := domain.PlanID(in.Plan)
	meals := NormalizeMealTypes(lo.Map(in.MealTypes, func(s string, _ int) domain.MealType { return domain.MealType(s) }))
	days := NormalizeDeliveryDays(lo.Map(in.DeliveryDays, func(s string, _ int) domain.DeliveryDay { return domain.DeliveryDay(s) }))

	price := Compute(plan, meals, days)
	return domain.Quote{
		Plan:           plan,
		MealTypes:      meals,
		DeliveryDays:   days,
		TotalPrice:     price,
		FormattedPrice: FormatRupiah(price),
		Complete:       price > 0,
	}
}

// NormalizeMealTypes keeps known meal types once each, in catalog order.
func NormalizeMealTypes(in []domain.MealType) []domain.MealType {
	return lo.Filter(domain.MealTypes, func(m domain.MealType, _ int) bool {
		return lo.Contains(in, m)
	})
}

// NormalizeDeliveryDays keeps known days once each, in week order.
func NormalizeDeliveryDays(in []domain.DeliveryDay) []domain.DeliveryDay {
	return lo.Filter(domain.DeliveryDays, func(d domain.DeliveryDay, _ int) bool {
		return lo.Contains(in, d)
	})
}
