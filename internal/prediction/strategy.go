// Package prediction evaluates the Detailed betting strategy against a
// prediction event's outcomes and issues the bet RPC at most once per
// event, using implied-probability math and an ordered rule list with
// Bernoulli-gated attempt rates.
package prediction

import (
	"math"
	"math/rand"

	"pointskeeper/internal/entities"
)

// Decision is the outcome of a strategy evaluation: whether to bet, and if
// so, on which outcome and for how many points.
type Decision struct {
	Bet       bool
	OutcomeID string
	Points    int64
}

// Evaluate runs the Detailed strategy. It requires at least two outcomes,
// computes each outcome's implied probability via
// entities.SumOutcomeProbabilities, and returns the first ordered rule
// match (gated by a Bernoulli attemptRate trial) or the default band.
func Evaluate(strategy entities.DetailedStrategy, outcomes []entities.Outcome, balance uint32, rng *rand.Rand) Decision {
	if len(outcomes) < 2 {
		return Decision{}
	}
	probs := entities.SumOutcomeProbabilities(outcomes)

	for i, o := range outcomes {
		p := probs[i]
		for _, rule := range strategy.Rules {
			if !ruleMatches(rule.Comparator, p, rule.Threshold) {
				continue
			}
			if !bernoulli(rng, rule.AttemptRate) {
				continue
			}
			return Decision{
				Bet:       true,
				OutcomeID: o.ID,
				Points:    betSize(rule.Points, balance),
			}
		}
	}

	for i, o := range outcomes {
		p := probs[i]
		if p >= strategy.Default.MinPercentage && p <= strategy.Default.MaxPercentage {
			return Decision{
				Bet:       true,
				OutcomeID: o.ID,
				Points:    betSize(strategy.Default.Points, balance),
			}
		}
	}

	return Decision{}
}

func ruleMatches(cmp entities.RuleComparator, p, threshold float64) bool {
	switch cmp {
	case entities.ComparatorLe:
		return p <= threshold
	case entities.ComparatorGe:
		return p >= threshold
	default:
		return false
	}
}

// bernoulli reports success with probability rate, using the supplied
// rand.Rand so callers (and tests) control determinism.
func bernoulli(rng *rand.Rand, rate float64) bool {
	if rate >= 1 {
		return true
	}
	if rate <= 0 {
		return false
	}
	return rng.Float64() < rate
}

// betSize computes min(maxValue, floor(percent*balance)) when maxValue > 0,
// else floor(percent*balance).
func betSize(rule entities.PointsRule, balance uint32) int64 {
	size := int64(math.Floor(rule.Percent * float64(balance)))
	if rule.MaxValue > 0 && size > rule.MaxValue {
		return rule.MaxValue
	}
	return size
}

// Filters applies the sequential pre-strategy filters; the first non-match
// aborts with no bet.
func Filters(filters []entities.Filter, event entities.Event, now func() int64) bool {
	for _, f := range filters {
		switch f.Kind {
		case entities.FilterTotalUsers:
			var sum int64
			for _, o := range event.Outcomes {
				sum += o.TotalUsers
			}
			if sum < f.MinTotalUsers {
				return false
			}
		case entities.FilterDelaySeconds:
			elapsed := now() - event.CreatedAt.Unix()
			if elapsed < f.DelaySeconds {
				return false
			}
		case entities.FilterDelayPercentage:
			elapsed := now() - event.CreatedAt.Unix()
			required := int64(float64(event.WindowSeconds) * f.DelayPercentage)
			if elapsed < required {
				return false
			}
		}
	}
	return true
}
