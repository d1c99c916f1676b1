package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSumOutcomeProbabilities(t *testing.T) {
	outcomes := []Outcome{
		{ID: "1", TotalPoints: 5000},
		{ID: "2", TotalPoints: 30000},
		{ID: "3", TotalPoints: 40000},
		{ID: "4", TotalPoints: 1000},
	}
	probs := SumOutcomeProbabilities(outcomes)
	require := assert.New(t)
	require.InDelta(0.0658, probs[0], 0.001)
	require.InDelta(0.3947, probs[1], 0.001)
	require.InDelta(0.5263, probs[2], 0.001)
	require.InDelta(0.0132, probs[3], 0.001)
}

func TestSumOutcomeProbabilitiesZeroTotal(t *testing.T) {
	outcomes := []Outcome{{ID: "1"}, {ID: "2"}}
	probs := SumOutcomeProbabilities(outcomes)
	assert.Equal(t, []float64{0, 0}, probs)
}

func TestTopicString(t *testing.T) {
	topic := Topic{Kind: TopicPredictions, ChannelID: "123456"}
	assert.Equal(t, "predictions-channel-v1.123456", topic.String())
}

func TestHasFreshBalance(t *testing.T) {
	b := &Broadcaster{}
	assert.False(t, b.HasFreshBalance(0, time.Now()))
}
