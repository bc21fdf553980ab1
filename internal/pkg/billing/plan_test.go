package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetPlan(t *testing.T) {
	assert.Equal(t, 29.0, GetPlan("navidad-2024").PriceMXN)
	assert.Equal(t, 19.0, GetPlan("early-bird").PriceMXN)
	assert.Equal(t, 49.0, GetPlan("regular").PriceMXN)
	assert.Equal(t, 490.0, GetPlan("anual").PriceMXN)
	assert.Equal(t, 365, GetPlan("anual").DurationDays)
}

func TestGetPlanUnknownFallsBackToRegular(t *testing.T) {
	p := GetPlan("plan-que-no-existe")
	assert.Equal(t, "regular", p.ID)
	assert.False(t, KnownPlan("plan-que-no-existe"))
	assert.True(t, KnownPlan("ANUAL"), "lookup is case insensitive")
}

func TestCurrentMonthlyPlanPromoBoundary(t *testing.T) {
	deadline := time.Date(2026, 1, 7, 6, 0, 0, 0, time.UTC)

	assert.Equal(t, "navidad-2024", CurrentMonthlyPlan(deadline.Add(-time.Second)).ID)
	assert.Equal(t, "regular", CurrentMonthlyPlan(deadline).ID)
	assert.Equal(t, "regular", CurrentMonthlyPlan(deadline.Add(time.Second)).ID)
}

func TestExternalReferenceRoundTrip(t *testing.T) {
	ref := BuildExternalReference("abc-123", "anual")
	assert.Equal(t, "abc-123|anual", ref)

	user, plan := ParseExternalReference(ref)
	assert.Equal(t, "abc-123", user)
	assert.Equal(t, "anual", plan)
}

func TestParseExternalReferenceLegacyForm(t *testing.T) {
	user, plan := ParseExternalReference("abc-123")
	assert.Equal(t, "abc-123", user)
	assert.Equal(t, "", plan)

	user, plan = ParseExternalReference("")
	assert.Equal(t, "", user)
	assert.Equal(t, "", plan)
}

func TestBuildExternalReferenceWithoutPlan(t *testing.T) {
	assert.Equal(t, "abc-123", BuildExternalReference("abc-123", ""))
}
