// Package eventrouter consumes livepoller transitions and drives wspool
// subscription changes and registry liveness updates. It never listens to
// or unlistens a video-playback topic, so its unlistens do not make the
// pool emit a synthetic StreamDown.
package eventrouter

import (
	"context"

	"pointskeeper/internal/entities"
	"pointskeeper/internal/livepoller"
	"pointskeeper/internal/logging"
	"pointskeeper/internal/registry"
	"pointskeeper/internal/wspool"
)

type Router struct {
	events   <-chan livepoller.Event
	pool     *wspool.Pool
	registry *registry.Registry
	logger   *logging.Logger
}

func New(events <-chan livepoller.Event, pool *wspool.Pool, reg *registry.Registry, logger *logging.Logger) *Router {
	return &Router{events: events, pool: pool, registry: reg, logger: logger}
}

// Run consumes from the events channel until ctx is canceled.
func (r *Router) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-r.events:
			r.handle(ev)
		}
	}
}

func (r *Router) handle(ev livepoller.Event) {
	switch ev.Kind {
	case livepoller.EventLive:
		r.handleLive(ev)
	case livepoller.EventSpadeUpdate:
		for _, b := range r.registry.Live() {
			r.registry.SetSpadeURL(b.ChannelID, ev.SpadeURL)
		}
	}
}

func (r *Router) handleLive(ev livepoller.Event) {
	var broadcastID *string
	if ev.Live {
		id := ev.BroadcastID
		broadcastID = &id
	}
	r.registry.SetLive(ev.ChannelID, ev.Live, broadcastID)

	topics := []entities.Topic{
		{Kind: entities.TopicPredictions, ChannelID: ev.ChannelID},
		{Kind: entities.TopicCommunityUser, ChannelID: ev.ChannelID},
		{Kind: entities.TopicRaid, ChannelID: ev.ChannelID},
	}

	for _, t := range topics {
		if ev.Live {
			r.pool.Listen(t)
		} else {
			r.pool.Unlisten(t)
		}
	}

	if r.logger != nil {
		state := "offline"
		if ev.Live {
			state = "live"
		}
		r.logger.EmojiPrintf(":green_circle:", "channel %s went %s", ev.ChannelID, state)
	}
}
