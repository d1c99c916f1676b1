package prediction

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"pointskeeper/internal/analytics"
	"pointskeeper/internal/entities"
	"pointskeeper/internal/logging"
	"pointskeeper/internal/metrics"
	"pointskeeper/internal/platform"
	"pointskeeper/internal/registry"
	"pointskeeper/internal/wspool"
)

// BalanceStaleness is the freshness window try-bet enforces on a
// broadcaster's last-known point balance before refreshing it.
const BalanceStaleness = 30 * time.Second

// Engine consumes TopicPredictions payloads from the pool and drives the
// three lifecycle paths (open, update, close) plus the try-bet procedure.
type Engine struct {
	input    <-chan wspool.Message
	registry *registry.Registry
	client   *platform.Client
	store    *analytics.Store
	logger   *logging.Logger
	metrics  *metrics.Collectors
	rng      *rand.Rand
	now      func() time.Time
	simulate bool
}

func New(input <-chan wspool.Message, reg *registry.Registry, client *platform.Client, store *analytics.Store, logger *logging.Logger, mc *metrics.Collectors) *Engine {
	return &Engine{
		input:    input,
		registry: reg,
		client:   client,
		store:    store,
		logger:   logger,
		metrics:  mc,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// SetSimulate gates the actual bet RPC: when true, try-bet runs the full
// filter/strategy evaluation and records it through analytics exactly as if
// the bet were placed, but never sends the bet RPC (balance refreshes still
// go to the platform), per the CLI's --simulate flag.
func (e *Engine) SetSimulate(simulate bool) {
	e.simulate = simulate
}

// Run consumes the pool's output channel, ignoring everything but
// TopicPredictions payloads.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-e.input:
			if msg.Topic.Kind != entities.TopicPredictions {
				continue
			}
			e.handle(ctx, msg)
		}
	}
}

// wirePredictionEvent mirrors the platform's predictions-channel-v1
// envelope closely enough to recover the Event shape; fields this engine
// doesn't act on are left unparsed.
type wirePredictionEvent struct {
	Event struct {
		ID            string `json:"id"`
		ChannelID     string `json:"channel_id"`
		Title         string `json:"title"`
		CreatedAt     string `json:"created_at"`
		PredictionWindowSeconds int64 `json:"prediction_window_seconds"`
		LockedAt      *string `json:"locked_at"`
		EndedAt       *string `json:"ended_at"`
		WinningOutcomeID *string `json:"winning_outcome_id"`
		Outcomes      []struct {
			ID          string `json:"id"`
			Title       string `json:"title"`
			TotalPoints int64  `json:"total_points"`
			TotalUsers  int64  `json:"total_users"`
		} `json:"outcomes"`
	} `json:"event"`
}

func (w wirePredictionEvent) toEvent() entities.Event {
	ev := entities.Event{
		EventID:       w.Event.ID,
		ChannelID:     w.Event.ChannelID,
		Title:         w.Event.Title,
		WindowSeconds: w.Event.PredictionWindowSeconds,
	}
	if t, err := time.Parse(time.RFC3339, w.Event.CreatedAt); err == nil {
		ev.CreatedAt = t
	}
	if w.Event.LockedAt != nil {
		if t, err := time.Parse(time.RFC3339, *w.Event.LockedAt); err == nil {
			ev.LockedAt = &t
		}
	}
	if w.Event.EndedAt != nil {
		if t, err := time.Parse(time.RFC3339, *w.Event.EndedAt); err == nil {
			ev.EndedAt = &t
		}
	}
	ev.WinningOutcomeID = w.Event.WinningOutcomeID
	for _, o := range w.Event.Outcomes {
		ev.Outcomes = append(ev.Outcomes, entities.Outcome{
			ID: o.ID, Title: o.Title, TotalPoints: o.TotalPoints, TotalUsers: o.TotalUsers,
		})
	}
	return ev
}

func (e *Engine) handle(ctx context.Context, msg wspool.Message) {
	var wire wirePredictionEvent
	if err := json.Unmarshal(msg.Raw, &wire); err != nil {
		e.logger.Errorf("prediction: malformed event payload: %v", err)
		return
	}
	ev := wire.toEvent()
	if ev.ChannelID == "" {
		ev.ChannelID = msg.Topic.ChannelID
	}

	switch {
	case ev.EndedAt != nil:
		e.handleClose(ctx, ev)
	case ev.LockedAt != nil:
		e.handleLock(ev)
	default:
		e.handleOpenOrUpdate(ctx, ev)
	}
}

// handleLock implements the "ignore-redundant-lock" path: a locked event
// with no corresponding tracked-open record arrived too late to act on
// (e.g. after a reconnect replays the already-locked state), so it is
// dropped rather than treated as a new event.
func (e *Engine) handleLock(ev entities.Event) {
	tracked, isNew := e.registry.UpsertEvent(ev.ChannelID, ev)
	if tracked == nil || isNew {
		e.registry.RemoveEvent(ev.ChannelID, ev.EventID)
		return
	}
}

// handleClose persists the final outcome snapshot, closes the prediction
// row, and records the post-settlement balance against the event so the
// timeline can place the delta.
func (e *Engine) handleClose(ctx context.Context, ev entities.Event) {
	winning := ""
	if ev.WinningOutcomeID != nil {
		winning = *ev.WinningOutcomeID
	}
	e.store.Submit(analytics.UpsertPrediction{
		ChannelID:     ev.ChannelID,
		EventID:       ev.EventID,
		Title:         ev.Title,
		WindowSeconds: ev.WindowSeconds,
		Outcomes:      ev.Outcomes,
		CreatedAt:     ev.CreatedAt,
	})
	e.store.Submit(analytics.EndPrediction{
		ChannelID:        ev.ChannelID,
		EventID:          ev.EventID,
		WinningOutcomeID: winning,
		Outcomes:         ev.Outcomes,
		ClosedAt:         e.now(),
	})
	if snap, ok := e.registry.SnapshotOf(ev.ChannelID); ok {
		e.recordPredictionBalance(ctx, ev.ChannelID, snap.Name, ev.EventID)
	}
	e.registry.RemoveEvent(ev.ChannelID, ev.EventID)
}

// recordPredictionBalance refreshes the point balance after a prediction
// settles and appends a row tagged against the event and the point row it
// supersedes, so the timeline join can attribute the delta to the event.
func (e *Engine) recordPredictionBalance(ctx context.Context, channelID, name, eventID string) {
	priorID, err := analytics.LastPointID(e.store.ReadDB(), channelID)
	if err != nil {
		e.logger.Errorf("prediction: prior point lookup failed for %s: %v", channelID, err)
	}
	points, _, err := e.client.ChannelPointsBalance(ctx, name)
	if err != nil {
		e.logger.Errorf("prediction: settlement balance refresh failed for %s: %v", name, err)
		return
	}
	now := e.now()
	e.registry.SetPoints(channelID, uint32(points), now)
	e.store.Submit(analytics.InsertPoints{
		ChannelID: channelID, Value: points, InfoKind: "Prediction", EventID: eventID, PointRowID: priorID, CreatedAt: now,
	})
}

func (e *Engine) handleOpenOrUpdate(ctx context.Context, ev entities.Event) {
	tracked, isNew := e.registry.UpsertEvent(ev.ChannelID, ev)
	if tracked == nil {
		return // channel not in the registry (raced with a remove)
	}
	e.store.Submit(analytics.UpsertPrediction{
		ChannelID:     ev.ChannelID,
		EventID:       ev.EventID,
		Title:         ev.Title,
		WindowSeconds: ev.WindowSeconds,
		Outcomes:      ev.Outcomes,
		CreatedAt:     ev.CreatedAt,
	})
	if isNew {
		e.logger.EmojiPrintf(":crystal_ball:", "prediction opened for %s: %s", ev.ChannelID, ev.Title)
	}
	e.tryBet(ctx, ev.ChannelID, tracked)
}

// tryBet checks the at-most-once placed flag, refreshes the balance if
// stale, runs the pre-strategy filters, evaluates the Detailed strategy,
// and places the bet.
func (e *Engine) tryBet(ctx context.Context, channelID string, tracked *entities.TrackedEvent) {
	if e.registry.PlacedFor(channelID, tracked.Event.EventID) {
		return
	}
	snap, ok := e.registry.SnapshotOf(channelID)
	if !ok || snap.Config == nil {
		return
	}

	balance := snap.Points
	if snap.LastPointsRefresh.IsZero() || e.now().Sub(snap.LastPointsRefresh) >= BalanceStaleness {
		points, _, err := e.client.ChannelPointsBalance(ctx, snap.Name)
		if err != nil {
			e.logger.Errorf("prediction: balance refresh failed for %s: %v", snap.Name, err)
			return
		}
		balance = uint32(points)
		e.registry.SetPoints(channelID, balance, e.now())
		e.store.Submit(analytics.InsertPoints{
			ChannelID: channelID, Value: points, InfoKind: "poll", CreatedAt: e.now(),
		})
	}

	if !Filters(snap.Config.Prediction.Filters, tracked.Event, func() int64 { return e.now().Unix() }) {
		return
	}

	decision := Evaluate(snap.Config.Prediction.Strategy, tracked.Event.Outcomes, balance, e.rng)
	if !decision.Bet {
		if e.metrics != nil {
			e.metrics.BetsSkipped.WithLabelValues("no-rule-match").Inc()
		}
		return
	}

	if e.simulate {
		e.logger.EmojiPrintf(":clipboard:", "simulate: would bet %d points on %s for event %s", decision.Points, decision.OutcomeID, tracked.Event.EventID)
	} else if err := e.client.MakePrediction(ctx, tracked.Event.EventID, decision.OutcomeID, decision.Points); err != nil {
		e.logger.Errorf("prediction: bet failed for %s/%s: %v", channelID, tracked.Event.EventID, err)
		if e.metrics != nil {
			e.metrics.BetsSkipped.WithLabelValues("rpc-error").Inc()
		}
		return
	}

	e.registry.MarkPlaced(channelID, tracked.Event.EventID)
	if e.metrics != nil {
		e.metrics.BetsPlaced.Inc()
	}
	e.recordPredictionBalance(ctx, channelID, snap.Name, tracked.Event.EventID)
	e.store.Submit(analytics.PlaceBet{
		ChannelID: channelID, EventID: tracked.Event.EventID, OutcomeID: decision.OutcomeID, Points: decision.Points,
	})
	e.logger.EmojiPrintf(":moneybag:", "placed %d points on %s for event %s", decision.Points, decision.OutcomeID, tracked.Event.EventID)
}
