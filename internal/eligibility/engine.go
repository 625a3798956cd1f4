// Package eligibility decides whether a user may consume a unit of
// service right now: pay from balance, use the once-per-cooldown free
// allowance, or wait.
package eligibility

import (
	"time"

	"github.com/shopspring/decimal"
)

type Outcome int

const (
	// OutcomePay means the balance covers the cost and will be debited.
	OutcomePay Outcome = iota
	// OutcomeFree means the free allowance is available; no debit.
	OutcomeFree
	// OutcomeDeny means neither funds nor the free slot are available.
	OutcomeDeny
)

func (o Outcome) String() string {
	switch o {
	case OutcomePay:
		return "pay"
	case OutcomeFree:
		return "free"
	default:
		return "deny"
	}
}

// Decision is the result of one evaluation. Wait is set only for OutcomeDeny.
type Decision struct {
	Outcome Outcome
	Wait    time.Duration
}

// DefaultCooldown gates reuse of the free allowance.
const DefaultCooldown = 24 * time.Hour

// Engine evaluates eligibility. The zero value uses DefaultCooldown.
type Engine struct {
	Cooldown time.Duration
}

func New(cooldown time.Duration) Engine {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return Engine{Cooldown: cooldown}
}

// Evaluate is pure and side-effect free: the free-usage timestamp is
// committed elsewhere, on successful completion of a free request.
//
// Balance sufficiency takes priority over the free allowance: a funded
// user never burns the free slot.
func (e Engine) Evaluate(balance decimal.Decimal, lastFreeUsage *time.Time, cost decimal.Decimal, now time.Time) Decision {
	if balance.GreaterThanOrEqual(cost) {
		return Decision{Outcome: OutcomePay}
	}

	cooldown := e.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}

	if lastFreeUsage == nil {
		return Decision{Outcome: OutcomeFree}
	}
	elapsed := now.Sub(*lastFreeUsage)
	if elapsed >= cooldown {
		return Decision{Outcome: OutcomeFree}
	}
	return Decision{Outcome: OutcomeDeny, Wait: cooldown - elapsed}
}
