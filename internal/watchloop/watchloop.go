// Package watchloop is the 10-second viewership heartbeat that keeps a
// capped set of live broadcasters "watched" so their channel points keep
// accruing, preferring streak entries, then priority-named channels, then
// the remaining live set.
package watchloop

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"pointskeeper/internal/logging"
	"pointskeeper/internal/platform"
	"pointskeeper/internal/registry"
)

const (
	tickInterval = 10 * time.Second
	// maxWatched is the platform's observed cap on how many channels a
	// single session can usefully send minute-watched beacons for per tick.
	maxWatched = 2
	// streakExpiry bounds how long a watch-streak entry is retained after
	// its broadcaster stops being live, in ticks (10 minutes).
	streakExpiry = 60
)

type streakEntry struct {
	channelID string
	ticksIdle int
}

type Loop struct {
	client      *platform.Client
	registry    *registry.Registry
	priority    []string
	watchStreak bool
	logger      *logging.Logger

	streaks []streakEntry
}

func New(client *platform.Client, reg *registry.Registry, priority []string, watchStreak bool, logger *logging.Logger) *Loop {
	return &Loop{client: client, registry: reg, priority: priority, watchStreak: watchStreak, logger: logger}
}

// Run ticks at a fixed 10s cadence, selecting up to two live broadcasters
// (streak entries first, then priority order) and POSTing a minute-watched
// payload for each.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.cycle(ctx)
		}
	}
}

func (l *Loop) cycle(ctx context.Context) {
	live := l.registry.Live()
	if len(live) == 0 {
		return
	}

	byID := make(map[string]struct{ spadeURL, name string }, len(live))
	for _, b := range live {
		if b.SpadeURL == "" {
			continue
		}
		byID[b.ChannelID] = struct{ spadeURL, name string }{b.SpadeURL, b.Name}
	}
	if len(byID) == 0 {
		return
	}

	items := l.selectWatchItems(byID)
	l.ageStreaks(byID)

	for i, channelID := range items {
		if i >= maxWatched {
			break
		}
		entry := byID[channelID]
		if err := l.sendHeartbeat(ctx, entry.spadeURL); err != nil {
			l.logger.Errorf("watchloop: heartbeat failed for %s: %v", entry.name, err)
			continue
		}
		if l.watchStreak {
			l.touchStreak(channelID)
		}
	}
}

// selectWatchItems orders priority-named live channels first, then any
// remaining live channels, then prepends still-tracked streak entries not
// already present.
func (l *Loop) selectWatchItems(byID map[string]struct{ spadeURL, name string }) []string {
	seen := make(map[string]bool)
	var out []string

	for _, s := range l.streaks {
		if _, ok := byID[s.channelID]; ok && !seen[s.channelID] {
			out = append(out, s.channelID)
			seen[s.channelID] = true
		}
	}
	for _, name := range l.priority {
		b := l.registry.ByName(name)
		if b == nil {
			continue
		}
		if _, ok := byID[b.ChannelID]; ok && !seen[b.ChannelID] {
			out = append(out, b.ChannelID)
			seen[b.ChannelID] = true
		}
	}
	for id := range byID {
		if !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	return out
}

func (l *Loop) touchStreak(channelID string) {
	for i := range l.streaks {
		if l.streaks[i].channelID == channelID {
			l.streaks[i].ticksIdle = 0
			return
		}
	}
	l.streaks = append(l.streaks, streakEntry{channelID: channelID})
}

// ageStreaks adds one idle tick to every entry whose broadcaster is not in
// byID (not live, or live without a spade URL) and drops entries idle for
// more than streakExpiry ticks.
func (l *Loop) ageStreaks(byID map[string]struct{ spadeURL, name string }) {
	kept := l.streaks[:0]
	for _, s := range l.streaks {
		if _, live := byID[s.channelID]; !live {
			s.ticksIdle++
		}
		if s.ticksIdle <= streakExpiry {
			kept = append(kept, s)
		}
	}
	l.streaks = kept
}

func (l *Loop) sendHeartbeat(ctx context.Context, spadeURL string) error {
	payload, err := minuteWatchedPayload()
	if err != nil {
		return err
	}
	return l.client.SendMinuteWatched(ctx, spadeURL, payload)
}

// minuteWatchedPayload builds the base64 "minute-watched" telemetry event
// the platform's spade endpoint expects.
func minuteWatchedPayload() (string, error) {
	events := []map[string]interface{}{
		{"event": "minute-watched", "properties": map[string]interface{}{}},
	}
	raw, err := json.Marshal(events)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
