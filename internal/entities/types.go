// Package entities holds the plain value types shared across the miner:
// broadcasters, prediction events, subscriptions, and their configuration.
package entities

import "time"

// Topic identifies one of the four pub/sub subscription kinds the pool
// multiplexes over its connection pool.
type Topic struct {
	Kind      TopicKind
	ChannelID string
}

type TopicKind string

const (
	TopicPredictions    TopicKind = "predictions-channel-v1"
	TopicCommunityUser  TopicKind = "community-points-user-v1"
	TopicRaid           TopicKind = "raid"
	TopicVideoPlayback  TopicKind = "video-playback-by-id"
)

// String renders the wire form, e.g. "predictions-channel-v1.123456".
func (t Topic) String() string {
	return string(t.Kind) + "." + t.ChannelID
}

// Outcome is one possible resolution of a prediction event.
type Outcome struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	TotalPoints int64  `json:"total_points"`
	TotalUsers  int64  `json:"total_users"`
}

// Event is a time-bounded prediction (betting) opportunity.
type Event struct {
	EventID          string
	ChannelID        string
	Title            string
	CreatedAt        time.Time
	WindowSeconds    int64
	Outcomes         []Outcome
	LockedAt         *time.Time
	EndedAt          *time.Time
	WinningOutcomeID *string
}

// TrackedEvent pairs an Event with the at-most-once bet flag the
// PredictionEngine maintains for it.
type TrackedEvent struct {
	Event  Event
	Placed bool
}

// Broadcaster is the authoritative in-memory record the registry owns for
// one streamer.
type Broadcaster struct {
	ChannelID         string
	Name              string
	Live              bool
	BroadcastID       *string
	Points            uint32
	LastPointsRefresh time.Time
	SpadeURL          string
	Predictions       map[string]*TrackedEvent
	Config            *StreamerConfig
}

// HasFreshBalance reports whether Points was refreshed within the staleness
// window PredictionEngine enforces before a bet is placed.
func (b *Broadcaster) HasFreshBalance(staleness time.Duration, now time.Time) bool {
	return now.Sub(b.LastPointsRefresh) < staleness
}

// SumOutcomeProbabilities computes each outcome's implied probability,
// p_i = totalPoints_i / sum(totalPoints), collapsing the div-by-zero case
// to zero rather than routing through odds = sum/outcome, p = 1/odds.
func SumOutcomeProbabilities(outcomes []Outcome) []float64 {
	var total int64
	for _, o := range outcomes {
		total += o.TotalPoints
	}
	probs := make([]float64, len(outcomes))
	if total == 0 {
		return probs
	}
	for i, o := range outcomes {
		if o.TotalPoints == 0 {
			probs[i] = 0
			continue
		}
		probs[i] = float64(o.TotalPoints) / float64(total)
	}
	return probs
}
