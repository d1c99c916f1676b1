package eventrouter

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointskeeper/internal/entities"
	"pointskeeper/internal/livepoller"
	"pointskeeper/internal/logging"
	"pointskeeper/internal/metrics"
	"pointskeeper/internal/registry"
	"pointskeeper/internal/wspool"
)

func testRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func TestHandleLiveMarksBroadcasterLive(t *testing.T) {
	reg := registry.New()
	reg.Add(&entities.Broadcaster{ChannelID: "1", Name: "a"})

	pool := wspool.New("wss://example.invalid", "token", logging.New(logging.Settings{}), metrics.New(testRegistry()))
	router := New(nil, pool, reg, logging.New(logging.Settings{}))

	router.handleLive(livepoller.Event{ChannelID: "1", Live: true, BroadcastID: "99"})

	b := reg.Get("1")
	require.NotNil(t, b)
	assert.True(t, b.Live)
	require.NotNil(t, b.BroadcastID)
	assert.Equal(t, "99", *b.BroadcastID)
}

func TestHandleLiveOfflineClearsBroadcastID(t *testing.T) {
	reg := registry.New()
	reg.Add(&entities.Broadcaster{ChannelID: "1", Name: "a"})
	pool := wspool.New("wss://example.invalid", "token", logging.New(logging.Settings{}), metrics.New(testRegistry()))
	router := New(nil, pool, reg, logging.New(logging.Settings{}))

	router.handleLive(livepoller.Event{ChannelID: "1", Live: true, BroadcastID: "99"})
	router.handleLive(livepoller.Event{ChannelID: "1", Live: false})

	b := reg.Get("1")
	assert.False(t, b.Live)
	assert.Nil(t, b.BroadcastID)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	reg := registry.New()
	pool := wspool.New("wss://example.invalid", "token", logging.New(logging.Settings{}), metrics.New(testRegistry()))
	events := make(chan livepoller.Event)
	router := New(events, pool, reg, logging.New(logging.Settings{}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- router.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
