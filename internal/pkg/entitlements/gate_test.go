package entitlements

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testLimits() Limits {
	return Limits{FreeWithoutEmail: 1, FreeWithEmail: 10, MaxFreeFavorites: 3}
}

func TestEvaluateProAlwaysAllows(t *testing.T) {
	l := testLimits()

	for _, gens := range []int{0, 1, 10, 5000} {
		d := Evaluate(Snapshot{IsPro: true, TotalGenerations: gens}, l)
		assert.Equal(t, DecisionAllow, d, "pro with %d generations", gens)
	}
}

func TestEvaluateAnonymousFirstTry(t *testing.T) {
	l := testLimits()

	d := Evaluate(Snapshot{TotalGenerations: 0, HasEmail: false}, l)
	assert.Equal(t, DecisionAllow, d)
}

func TestEvaluateAnonymousSecondTryRequiresAuth(t *testing.T) {
	l := testLimits()

	d := Evaluate(Snapshot{TotalGenerations: 1, HasEmail: false}, l)
	assert.Equal(t, DecisionRequireAuth, d)
}

func TestEvaluateWithEmailUpToLimit(t *testing.T) {
	l := testLimits()

	for gens := 0; gens < 10; gens++ {
		d := Evaluate(Snapshot{TotalGenerations: gens, HasEmail: true}, l)
		assert.Equal(t, DecisionAllow, d, "generation %d should be allowed", gens)
	}

	d := Evaluate(Snapshot{TotalGenerations: 10, HasEmail: true}, l)
	assert.Equal(t, DecisionRequireUpgrade, d)
}

func TestEvaluateBeyondLimitStaysUpgrade(t *testing.T) {
	l := testLimits()

	d := Evaluate(Snapshot{TotalGenerations: 37, HasEmail: true}, l)
	assert.Equal(t, DecisionRequireUpgrade, d)
}

// The anonymous check has to run before the upgrade check so that a user
// over both thresholds without an email is sent to sign-in, not to checkout.
func TestEvaluateAuthCheckedBeforeUpgrade(t *testing.T) {
	l := testLimits()

	d := Evaluate(Snapshot{TotalGenerations: 25, HasEmail: false}, l)
	assert.Equal(t, DecisionRequireAuth, d)
}

func TestEvaluateIsPure(t *testing.T) {
	l := testLimits()
	s := Snapshot{TotalGenerations: 5, HasEmail: true}

	first := Evaluate(s, l)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Evaluate(s, l))
	}
	assert.Equal(t, 5, s.TotalGenerations, "evaluate must not mutate the snapshot")
}

func TestCanSaveFavorite(t *testing.T) {
	l := testLimits()

	assert.True(t, CanSaveFavorite(false, 0, l))
	assert.True(t, CanSaveFavorite(false, 2, l))
	assert.False(t, CanSaveFavorite(false, 3, l))
	assert.False(t, CanSaveFavorite(false, 99, l))
	assert.True(t, CanSaveFavorite(true, 99, l))
}

func TestRemaining(t *testing.T) {
	l := testLimits()

	assert.Equal(t, 1, Remaining(Snapshot{TotalGenerations: 0}, l))
	assert.Equal(t, 0, Remaining(Snapshot{TotalGenerations: 1}, l))
	assert.Equal(t, 4, Remaining(Snapshot{TotalGenerations: 6, HasEmail: true}, l))
	assert.Equal(t, 0, Remaining(Snapshot{TotalGenerations: 50, HasEmail: true}, l))
	assert.Equal(t, -1, Remaining(Snapshot{IsPro: true}, l))
}
