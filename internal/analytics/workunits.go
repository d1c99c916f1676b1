package analytics

import (
	"database/sql"
	"encoding/json"
	"time"
)

// InsertStreamer registers a broadcaster row the first time it's seen.
type InsertStreamer struct {
	ChannelID string
	Name      string
}

func (w InsertStreamer) Kind() string { return "insertStreamer" }

func (w InsertStreamer) Execute(tx *sql.Tx) error {
	_, err := tx.Exec(`INSERT INTO streamer(id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`, w.ChannelID, w.Name)
	return err
}

// InsertPoints records a raw point-balance observation, tagged with the
// event that produced it: "poll" (try-bet's refresh of a stale balance) or
// "Prediction" (the post-settlement balance, carrying the closed event's id
// and the id of the point row it supersedes so the timeline join can place
// the delta against the event). "claim" rows come from InsertPointsIfUpdated.
type InsertPoints struct {
	ChannelID  string
	Value      int64
	InfoKind   string
	EventID    string
	PointRowID int64
	CreatedAt  time.Time
}

func (w InsertPoints) Kind() string { return "insertPoints" }

func (w InsertPoints) Execute(tx *sql.Tx) error {
	var eventID interface{}
	if w.EventID != "" {
		eventID = w.EventID
	}
	var pointRowID interface{}
	if w.PointRowID != 0 {
		pointRowID = w.PointRowID
	}
	_, err := tx.Exec(`INSERT INTO point(channel_id, value, info_kind, info_event_id, info_point_row_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, w.ChannelID, w.Value, w.InfoKind, eventID, pointRowID, w.CreatedAt)
	return err
}

// InsertPointsIfUpdated only writes a row when the balance differs from the
// most recent point row for the channel. Every row it writes is tagged
// "claim", whether or not a bonus was claimed.
type InsertPointsIfUpdated struct {
	ChannelID string
	Value     int64
	CreatedAt time.Time
}

func (w InsertPointsIfUpdated) Kind() string { return "insertPointsIfUpdated" }

func (w InsertPointsIfUpdated) Execute(tx *sql.Tx) error {
	var last sql.NullInt64
	row := tx.QueryRow(`SELECT value FROM point WHERE channel_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, w.ChannelID)
	if err := row.Scan(&last); err != nil && err != sql.ErrNoRows {
		return err
	}
	if last.Valid && last.Int64 == w.Value {
		return nil
	}
	_, err := tx.Exec(`INSERT INTO point(channel_id, value, info_kind, created_at) VALUES (?, ?, 'claim', ?)`,
		w.ChannelID, w.Value, w.CreatedAt)
	return err
}

// UpsertPrediction inserts a prediction event the first time it's seen for a
// channel. It compares the event id against the channel's most recent
// prediction row; a match is a no-op (the row already carries this event's
// outcomes snapshot from when it was opened), keeping repeated "still open"
// updates idempotent instead of duplicating rows.
type UpsertPrediction struct {
	ChannelID     string
	EventID       string
	Title         string
	WindowSeconds int64
	Outcomes      interface{}
	CreatedAt     time.Time
}

func (w UpsertPrediction) Kind() string { return "upsertPrediction" }

func (w UpsertPrediction) Execute(tx *sql.Tx) error {
	var lastEventID sql.NullString
	row := tx.QueryRow(`SELECT event_id FROM prediction WHERE channel_id = ? ORDER BY id DESC LIMIT 1`, w.ChannelID)
	if err := row.Scan(&lastEventID); err != nil && err != sql.ErrNoRows {
		return err
	}
	if lastEventID.Valid && lastEventID.String == w.EventID {
		return nil
	}
	outcomesJSON, err := json.Marshal(w.Outcomes)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`INSERT INTO prediction(channel_id, event_id, title, window_seconds, outcomes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, w.ChannelID, w.EventID, w.Title, w.WindowSeconds, string(outcomesJSON), w.CreatedAt)
	return err
}

// PlaceBet records that the miner placed a wager on an event's outcome.
type PlaceBet struct {
	ChannelID string
	EventID   string
	OutcomeID string
	Points    int64
}

func (w PlaceBet) Kind() string { return "placeBet" }

func (w PlaceBet) Execute(tx *sql.Tx) error {
	_, err := tx.Exec(`UPDATE prediction SET placed_bet_outcome_id = ?, placed_bet_points = ?
		WHERE channel_id = ? AND event_id = ?`, w.OutcomeID, w.Points, w.ChannelID, w.EventID)
	return err
}

// EndPrediction closes out a prediction row with its winning outcome and
// final per-outcome point/user totals.
type EndPrediction struct {
	ChannelID        string
	EventID          string
	WinningOutcomeID string
	Outcomes         interface{}
	ClosedAt         time.Time
}

func (w EndPrediction) Kind() string { return "endPrediction" }

func (w EndPrediction) Execute(tx *sql.Tx) error {
	outcomesJSON, err := json.Marshal(w.Outcomes)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`UPDATE prediction SET winning_outcome_id = ?, outcomes = ?, closed_at = ?
		WHERE channel_id = ? AND event_id = ?`, w.WinningOutcomeID, string(outcomesJSON), w.ClosedAt, w.ChannelID, w.EventID)
	return err
}

// LastPredictionID reads back the most recently opened prediction's id for
// a channel. It is read-only, so it runs directly against a *sql.DB rather
// than through the work-unit channel; nothing in the module calls it.
func LastPredictionID(db *sql.DB, channelID string) (int64, error) {
	var id int64
	err := db.QueryRow(`SELECT id FROM prediction WHERE channel_id = ? ORDER BY created_at DESC LIMIT 1`, channelID).Scan(&id)
	return id, err
}

// LastPointID reads back the most recent point row's id for a channel, for
// use as the prior-row reference on a subsequent "Prediction"-tagged
// InsertPoints. Returns 0, nil if the channel has no point rows yet.
func LastPointID(db *sql.DB, channelID string) (int64, error) {
	var id int64
	err := db.QueryRow(`SELECT id FROM point WHERE channel_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, channelID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return id, err
}

// TimelineRow is one windowed point-delta entry: the change in balance
// since the previous row for the same channel, computed with a LAG join.
type TimelineRow struct {
	ChannelID string
	Value     int64
	Delta     int64
	InfoKind  string
	CreatedAt time.Time
}

// Timeline runs the windowed LAG-join query backing the timeline endpoint.
func Timeline(db *sql.DB, channelID string, since time.Time, limit int) ([]TimelineRow, error) {
	rows, err := db.Query(`
		SELECT channel_id, value, info_kind, created_at,
		       value - LAG(value) OVER (PARTITION BY channel_id ORDER BY created_at) AS delta
		FROM point
		WHERE channel_id = ? AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT ?`, channelID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TimelineRow
	for rows.Next() {
		var r TimelineRow
		var delta sql.NullInt64
		if err := rows.Scan(&r.ChannelID, &r.Value, &r.InfoKind, &r.CreatedAt, &delta); err != nil {
			return nil, err
		}
		r.Delta = delta.Int64
		out = append(out, r)
	}
	return out, rows.Err()
}
