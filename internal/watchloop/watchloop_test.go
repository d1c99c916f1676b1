package watchloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointskeeper/internal/entities"
	"pointskeeper/internal/logging"
	"pointskeeper/internal/registry"
)

func liveBroadcaster(channelID, name string) *entities.Broadcaster {
	return &entities.Broadcaster{ChannelID: channelID, Name: name, Live: true, SpadeURL: "https://spade.invalid/" + channelID}
}

func TestSelectWatchItemsOrdersStreakThenPriorityThenRest(t *testing.T) {
	reg := registry.New()
	reg.Add(liveBroadcaster("1", "a"))
	reg.Add(liveBroadcaster("2", "b"))
	reg.Add(liveBroadcaster("3", "c"))

	l := New(nil, reg, []string{"b"}, true, logging.New(logging.Settings{}))
	l.streaks = []streakEntry{{channelID: "3"}}

	byID := map[string]struct{ spadeURL, name string }{
		"1": {"s1", "a"},
		"2": {"s2", "b"},
		"3": {"s3", "c"},
	}
	items := l.selectWatchItems(byID)
	require.Len(t, items, 3)
	assert.Equal(t, "3", items[0])
	assert.Equal(t, "2", items[1])
	assert.Equal(t, "1", items[2])
}

func TestTouchStreakAddsThenResetsIdleCounter(t *testing.T) {
	l := &Loop{}
	l.touchStreak("1")
	require.Len(t, l.streaks, 1)
	l.streaks[0].ticksIdle = 5
	l.touchStreak("1")
	assert.Equal(t, 0, l.streaks[0].ticksIdle)
}

func TestAgeStreaksDropsEntriesPastExpiry(t *testing.T) {
	l := &Loop{streaks: []streakEntry{
		{channelID: "1", ticksIdle: streakExpiry},
		{channelID: "2", ticksIdle: 0},
	}}
	byID := map[string]struct{ spadeURL, name string }{"2": {"s2", "b"}}
	l.ageStreaks(byID)
	require.Len(t, l.streaks, 1)
	assert.Equal(t, "2", l.streaks[0].channelID)
}

func TestMinuteWatchedPayloadIsValidBase64JSON(t *testing.T) {
	payload, err := minuteWatchedPayload()
	require.NoError(t, err)
	assert.NotEmpty(t, payload)
}
