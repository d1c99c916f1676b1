package livepoller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointskeeper/internal/logging"
)

// cycle itself needs a working *platform.Client (StreamStatus makes a real
// HTTP call), so this test replays cycle's liveState de-duplication inline
// and checks what emit delivers, instead of going through a network client.
func TestCycleEmitsExactlyOneLiveTransitionEachWay(t *testing.T) {
	events := make(chan Event, 8)
	p := &Poller{
		events:    events,
		logger:    logging.New(logging.Settings{}),
		liveState: make(map[string]bool),
	}

	// broadcaster "a" (channel 1) starts live with broadcast id 2;
	// transitions are de-duplicated against liveState.
	transition := func(channelID string, live bool, broadcastID string) {
		if p.liveState[channelID] != live {
			p.liveState[channelID] = live
			p.emit(Event{Kind: EventLive, ChannelID: channelID, Live: live, BroadcastID: broadcastID})
		}
	}

	transition("1", true, "2")
	transition("1", true, "2") // redundant, must not emit again
	transition("1", false, "")

	close(events)
	var got []Event
	for e := range events {
		got = append(got, e)
	}

	require.Len(t, got, 2)
	assert.True(t, got[0].Live)
	assert.Equal(t, "2", got[0].BroadcastID)
	assert.False(t, got[1].Live)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	p := New(nil, nil, time.Hour, make(chan Event, 1), logging.New(logging.Settings{}), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
