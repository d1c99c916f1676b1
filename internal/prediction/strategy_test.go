package prediction

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointskeeper/internal/entities"
)

func timeFromUnix(sec int64) time.Time {
	return time.Unix(sec, 0)
}

func scenarioOutcomes() []entities.Outcome {
	return []entities.Outcome{
		{ID: "1", TotalPoints: 5000},
		{ID: "2", TotalPoints: 30000},
		{ID: "3", TotalPoints: 40000},
		{ID: "4", TotalPoints: 1000},
	}
}

func TestEvaluateDefaultBandHit(t *testing.T) {
	strategy := entities.DetailedStrategy{
		Default: entities.DefaultBand{
			MinPercentage: 0.45,
			MaxPercentage: 0.55,
			Points:        entities.PointsRule{MaxValue: 40000, Percent: 0.15},
		},
	}
	decision := Evaluate(strategy, scenarioOutcomes(), 50000, rand.New(rand.NewSource(1)))
	require.True(t, decision.Bet)
	assert.Equal(t, "3", decision.OutcomeID)
	assert.EqualValues(t, 7500, decision.Points)
}

func TestEvaluateHighOddsRuleFires(t *testing.T) {
	strategy := entities.DetailedStrategy{
		Rules: []entities.DetailedRule{
			{
				Comparator:  entities.ComparatorLe,
				Threshold:   0.10,
				AttemptRate: 1.0,
				Points:      entities.PointsRule{MaxValue: 1000, Percent: 0.001},
			},
		},
	}
	decision := Evaluate(strategy, scenarioOutcomes(), 50000, rand.New(rand.NewSource(1)))
	require.True(t, decision.Bet)
	assert.Equal(t, "1", decision.OutcomeID)
	assert.EqualValues(t, 50, decision.Points)
}

func TestEvaluateRequiresAtLeastTwoOutcomes(t *testing.T) {
	strategy := entities.DetailedStrategy{Default: entities.DefaultBand{MinPercentage: 0, MaxPercentage: 1}}
	decision := Evaluate(strategy, []entities.Outcome{{ID: "1", TotalPoints: 100}}, 1000, rand.New(rand.NewSource(1)))
	assert.False(t, decision.Bet)
}

func TestEvaluateNoMatchReturnsEmptyDecision(t *testing.T) {
	strategy := entities.DetailedStrategy{
		Default: entities.DefaultBand{MinPercentage: 0.9, MaxPercentage: 0.99},
	}
	decision := Evaluate(strategy, scenarioOutcomes(), 50000, rand.New(rand.NewSource(1)))
	assert.False(t, decision.Bet)
}

func TestBernoulliBoundaryRates(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.True(t, bernoulli(rng, 1))
	assert.False(t, bernoulli(rng, 0))
}

func TestBetSizeCapsAtMaxValue(t *testing.T) {
	rule := entities.PointsRule{MaxValue: 100, Percent: 0.5}
	assert.EqualValues(t, 100, betSize(rule, 1000))
}

func TestBetSizeUncappedWhenMaxValueZero(t *testing.T) {
	rule := entities.PointsRule{MaxValue: 0, Percent: 0.5}
	assert.EqualValues(t, 500, betSize(rule, 1000))
}

func TestFiltersTotalUsers(t *testing.T) {
	ev := entities.Event{Outcomes: []entities.Outcome{{TotalUsers: 5}, {TotalUsers: 3}}}
	filters := []entities.Filter{{Kind: entities.FilterTotalUsers, MinTotalUsers: 10}}
	assert.False(t, Filters(filters, ev, func() int64 { return 0 }))

	filters = []entities.Filter{{Kind: entities.FilterTotalUsers, MinTotalUsers: 8}}
	assert.True(t, Filters(filters, ev, func() int64 { return 0 }))
}

func TestFiltersDelaySeconds(t *testing.T) {
	ev := entities.Event{CreatedAt: timeFromUnix(100)}
	filters := []entities.Filter{{Kind: entities.FilterDelaySeconds, DelaySeconds: 30}}
	assert.False(t, Filters(filters, ev, func() int64 { return 110 }))
	assert.True(t, Filters(filters, ev, func() int64 { return 140 }))
}
