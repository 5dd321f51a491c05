/**
 * @description
 * This file defines the static meal plan catalog and the selectable meal
 * slots and delivery days. The catalog is compiled in; subscriptions only
 * store the plan id and a price snapshot.
 */
package domain

// PlanID identifies one of the fixed catalog tiers.
type PlanID string

const (
	PlanDiet    PlanID = "diet"
	PlanProtein PlanID = "protein"
	PlanRoyal   PlanID = "royal"
)

// Plan is an immutable catalog entry. UnitPrice is the price of a single meal in rupiah.
type Plan struct {
	ID          PlanID `json:"id"`
	Name        string `json:"name"`
	UnitPrice   int64  `json:"unit_price"`
	Description string `json:"description"`
}

// MealType is a daily meal slot.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
)

// DeliveryDay is a weekday on which meals are delivered.
type DeliveryDay string

const (
	Monday    DeliveryDay = "monday"
	Tuesday   DeliveryDay = "tuesday"
	Wednesday DeliveryDay = "wednesday"
	Thursday  DeliveryDay = "thursday"
	Friday    DeliveryDay = "friday"
	Saturday  DeliveryDay = "saturday"
	Sunday    DeliveryDay = "sunday"
)

var catalog = []Plan{
	{ID: PlanDiet, Name: "Diet Plan", UnitPrice: 30000, Description: "Perfect for weight management"},
	{ID: PlanProtein, Name: "Protein Plan", UnitPrice: 40000, Description: "High-protein for fitness enthusiasts"},
	{ID: PlanRoyal, Name: "Royal Plan", UnitPrice: 60000, Description: "Premium gourmet meals"},
}

// MealTypes lists the meal slots in display order.
var MealTypes = []MealType{MealBreakfast, MealLunch, MealDinner}

// DeliveryDays lists the weekdays in display order.
var DeliveryDays = []DeliveryDay{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Plans returns a copy of the catalog.
func Plans() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

// LookupPlan returns the catalog entry for id.
func LookupPlan(id PlanID) (Plan, bool) {
	for _, p := range catalog {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

func (m MealType) Valid() bool {
	switch m {
	case MealBreakfast, MealLunch, MealDinner:
		return true
	}
	return false
}

func (d DeliveryDay) Valid() bool {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return true
	}
	return false
}
