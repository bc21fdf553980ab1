package entitlements

import "github.com/manana-app/manana/internal/pkg/env"

type Decision string

const (
	DecisionAllow          Decision = "allow"
	DecisionRequireAuth    Decision = "require_auth"
	DecisionRequireUpgrade Decision = "require_upgrade"
)

// Limits holds the free-tier thresholds. WithoutEmail must stay below
// WithEmail or the auth step could never unlock further generations.
type Limits struct {
	FreeWithoutEmail int
	FreeWithEmail    int
	MaxFreeFavorites int
}

// DefaultLimits reads the thresholds from the environment, falling back to
// the product defaults: 1 free try, 10 after leaving an email, 3 favorites.
func DefaultLimits() Limits {
	return Limits{
		FreeWithoutEmail: env.GetEnvInt("FREE_WITHOUT_EMAIL_LIMIT", 1),
		FreeWithEmail:    env.GetEnvInt("FREE_WITH_EMAIL_LIMIT", 10),
		MaxFreeFavorites: env.GetEnvInt("MAX_FREE_FAVORITES", 3),
	}
}

// Snapshot is the minimal entitlement view the gate decides on. It carries
// no identity beyond whether an email is known.
type Snapshot struct {
	IsPro            bool
	TotalGenerations int
	HasEmail         bool
}

// Evaluate decides whether a generation may proceed. The checks run in a
// fixed order: PRO always wins, then the anonymous limit, then the
// email-unlocked limit. The function does no I/O and never mutates state;
// counting a generation is the caller's job after the work succeeds.
func Evaluate(s Snapshot, l Limits) Decision {
	if s.IsPro {
		return DecisionAllow
	}
	if s.TotalGenerations >= l.FreeWithoutEmail && !s.HasEmail {
		return DecisionRequireAuth
	}
	if s.TotalGenerations >= l.FreeWithEmail {
		return DecisionRequireUpgrade
	}
	return DecisionAllow
}

// CanSaveFavorite reports whether another favorite fits under the free cap.
// PRO users are never capped.
func CanSaveFavorite(isPro bool, favoriteCount int, l Limits) bool {
	if isPro {
		return true
	}
	return favoriteCount < l.MaxFreeFavorites
}

// Remaining returns how many free generations are left for display purposes.
// Negative values clamp to zero.
func Remaining(s Snapshot, l Limits) int {
	if s.IsPro {
		return -1
	}
	limit := l.FreeWithoutEmail
	if s.HasEmail {
		limit = l.FreeWithEmail
	}
	left := limit - s.TotalGenerations
	if left < 0 {
		return 0
	}
	return left
}
