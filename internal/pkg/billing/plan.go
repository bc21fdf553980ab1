package billing

import (
	"strings"
	"time"
)

// Plan is a purchasable tier. Monthly plans grant 30 days of PRO per
// payment, the yearly plan 365.
type Plan struct {
	ID           string
	Name         string
	PriceMXN     float64
	DurationDays int
	Recurring    bool
}

// promoDeadline is when the launch pricing ends and the regular monthly
// price takes over.
var promoDeadline = time.Date(2026, 1, 7, 6, 0, 0, 0, time.UTC)

var plans = map[string]Plan{
	"navidad-2024": {ID: "navidad-2024", Name: "Promo Navidad", PriceMXN: 29, DurationDays: 30, Recurring: true},
	"early-bird":   {ID: "early-bird", Name: "Early Bird", PriceMXN: 19, DurationDays: 30, Recurring: true},
	"regular":      {ID: "regular", Name: "Plan Mensual", PriceMXN: 49, DurationDays: 30, Recurring: true},
	"anual":        {ID: "anual", Name: "Plan Anual", PriceMXN: 490, DurationDays: 365, Recurring: false},
}

// GetPlan looks up a plan by id. Unknown ids fall back to the regular
// monthly plan so a stale checkout link still charges a real price.
func GetPlan(id string) Plan {
	if p, ok := plans[strings.TrimSpace(strings.ToLower(id))]; ok {
		return p
	}
	return plans["regular"]
}

// KnownPlan reports whether the id names a real plan.
func KnownPlan(id string) bool {
	_, ok := plans[strings.TrimSpace(strings.ToLower(id))]
	return ok
}

// CurrentMonthlyPlan returns the monthly plan in effect at the given time:
// the promo price while the launch window is open, the regular price after.
func CurrentMonthlyPlan(now time.Time) Plan {
	if now.Before(promoDeadline) {
		return plans["navidad-2024"]
	}
	return plans["regular"]
}

// BuildExternalReference encodes the user and plan into the reference string
// that travels through the payment processor and comes back on webhooks.
func BuildExternalReference(userPublicID, planID string) string {
	if strings.TrimSpace(planID) == "" {
		return userPublicID
	}
	return userPublicID + "|" + planID
}

// ParseExternalReference splits a reference back into user and plan. The
// legacy form carries only the user id; the plan defaults to empty then.
func ParseExternalReference(ref string) (userPublicID, planID string) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ""
	}
	parts := strings.SplitN(ref, "|", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return parts[0], ""
}
