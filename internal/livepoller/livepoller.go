// Package livepoller periodically polls the platform's metadata RPC for
// liveness and emits Live/SpadeUpdate transitions.
package livepoller

import (
	"context"
	"time"

	"pointskeeper/internal/logging"
	"pointskeeper/internal/metrics"
	"pointskeeper/internal/platform"
)

type Broadcaster struct {
	ChannelID string
	Name      string
}

// EventKind distinguishes the two events LivePoller emits on the shared
// Events channel.
type EventKind int

const (
	EventLive EventKind = iota
	EventSpadeUpdate
)

type Event struct {
	Kind        EventKind
	ChannelID   string
	Live        bool
	BroadcastID string
	SpadeURL    string
}

type Poller struct {
	client    *platform.Client
	broadcast []Broadcaster
	interval  time.Duration
	events    chan<- Event
	logger    *logging.Logger
	metrics   *metrics.Collectors

	liveState map[string]bool
	cycles    int
}

func New(client *platform.Client, broadcasters []Broadcaster, interval time.Duration, events chan<- Event, logger *logging.Logger, mc *metrics.Collectors) *Poller {
	return &Poller{
		client:    client,
		broadcast: broadcasters,
		interval:  interval,
		events:    events,
		logger:    logger,
		metrics:   mc,
		liveState: make(map[string]bool),
	}
}

// Run is the LivePoller task: polls every interval (configurable in
// tests), retrying forever on a single cycle's failure.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	anyLive := false
	for _, b := range p.broadcast {
		live, broadcastID, err := p.client.StreamStatus(ctx, b.Name)
		if err != nil {
			p.logger.Errorf("livepoller: poll %s failed: %v", b.Name, err)
			continue
		}
		if live {
			anyLive = true
		}
		if p.liveState[b.ChannelID] != live {
			p.liveState[b.ChannelID] = live
			p.emit(Event{Kind: EventLive, ChannelID: b.ChannelID, Live: live, BroadcastID: broadcastID})
		}
	}

	if p.metrics != nil {
		p.metrics.LivePolls.Inc()
	}

	p.cycles++
	if anyLive && p.cycles%10 == 0 {
		url, err := p.client.SpadeURL(ctx, p.firstLiveName())
		if err == nil && url != "" {
			p.emit(Event{Kind: EventSpadeUpdate, SpadeURL: url})
		}
	}
}

func (p *Poller) firstLiveName() string {
	for _, b := range p.broadcast {
		if p.liveState[b.ChannelID] {
			return b.Name
		}
	}
	return ""
}

func (p *Poller) emit(e Event) {
	select {
	case p.events <- e:
	default:
		p.logger.Errorf("livepoller: events channel full, dropping event for %s", e.ChannelID)
	}
}
