package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointskeeper/internal/entities"
)

func TestUpsertEventOpenThenUpdate(t *testing.T) {
	r := New()
	r.Add(&entities.Broadcaster{ChannelID: "1", Name: "a"})

	tracked, isNew := r.UpsertEvent("1", entities.Event{EventID: "e1", Title: "will it rain"})
	require.True(t, isNew)
	require.NotNil(t, tracked)
	assert.False(t, tracked.Placed)

	tracked2, isNew2 := r.UpsertEvent("1", entities.Event{EventID: "e1", Title: "will it rain (updated)"})
	assert.False(t, isNew2)
	assert.Equal(t, "will it rain (updated)", tracked2.Event.Title)
}

func TestMarkPlacedIsIdempotentAcrossUpdates(t *testing.T) {
	r := New()
	r.Add(&entities.Broadcaster{ChannelID: "1", Name: "a"})
	r.UpsertEvent("1", entities.Event{EventID: "e1"})
	r.MarkPlaced("1", "e1")

	tracked, _ := r.UpsertEvent("1", entities.Event{EventID: "e1"})
	assert.True(t, tracked.Placed)
}

func TestPlacedForReflectsMarkPlaced(t *testing.T) {
	r := New()
	r.Add(&entities.Broadcaster{ChannelID: "1", Name: "a"})
	r.UpsertEvent("1", entities.Event{EventID: "e1"})

	assert.False(t, r.PlacedFor("1", "e1"))
	r.MarkPlaced("1", "e1")
	assert.True(t, r.PlacedFor("1", "e1"))
	assert.False(t, r.PlacedFor("1", "unknown-event"))
	assert.False(t, r.PlacedFor("unknown-channel", "e1"))
}

func TestLivePredictionsCopiesAcrossBroadcasters(t *testing.T) {
	r := New()
	r.Add(&entities.Broadcaster{ChannelID: "1", Name: "a"})
	r.Add(&entities.Broadcaster{ChannelID: "2", Name: "b"})
	r.UpsertEvent("1", entities.Event{EventID: "e1"})
	r.UpsertEvent("2", entities.Event{EventID: "e2"})
	r.MarkPlaced("2", "e2")

	live := r.LivePredictions()
	require.Len(t, live, 2)
	byEvent := map[string]PredictionSnapshot{}
	for _, p := range live {
		byEvent[p.Event.EventID] = p
	}
	assert.False(t, byEvent["e1"].Placed)
	assert.True(t, byEvent["e2"].Placed)
}

func TestRemoveEventDropsFromLiveMap(t *testing.T) {
	r := New()
	r.Add(&entities.Broadcaster{ChannelID: "1", Name: "a"})
	r.UpsertEvent("1", entities.Event{EventID: "e1"})
	r.RemoveEvent("1", "e1")

	_, isNew := r.UpsertEvent("1", entities.Event{EventID: "e1"})
	assert.True(t, isNew)
}

func TestByNameLinearScan(t *testing.T) {
	r := New()
	r.Add(&entities.Broadcaster{ChannelID: "1", Name: "a"})
	r.Add(&entities.Broadcaster{ChannelID: "2", Name: "b"})
	assert.Equal(t, "2", r.ByName("b").ChannelID)
	assert.Nil(t, r.ByName("c"))
}

func TestSnapshotOfMissingChannel(t *testing.T) {
	r := New()
	_, ok := r.SnapshotOf("missing")
	assert.False(t, ok)
}
