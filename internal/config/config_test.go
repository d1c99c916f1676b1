package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointskeeper/internal/entities"
)

func TestLoadCreatesDefaultWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.WatchStreak)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLoadNormalizesPercentagesOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	// Hand-write the on-disk 0-100 form directly (bypassing Save) to pin down
	// Load's contract in isolation from Save's denormalization.
	raw := "streamers:\n" +
		"  - name: shroud\n" +
		"    config:\n" +
		"      kind: specific\n" +
		"      specific:\n" +
		"        prediction:\n" +
		"          strategy:\n" +
		"            default:\n" +
		"              min_percentage: 45\n" +
		"              max_percentage: 55\n" +
		"              points:\n" +
		"                percent: 15\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	sc, ok := loaded.Resolve(loaded.Streamers[0].Entry)
	require.True(t, ok)
	assert.InDelta(t, 0.45, sc.Prediction.Strategy.Default.MinPercentage, 0.0001)
	assert.InDelta(t, 0.55, sc.Prediction.Strategy.Default.MaxPercentage, 0.0001)
	assert.InDelta(t, 0.15, sc.Prediction.Strategy.Default.Points.Percent, 0.0001)
}

// TestSaveRoundTripsNormalizedValues pins the bug where Save persisted the
// in-memory 0-1 fraction verbatim: a save-then-reload (as every control-plane
// mutation does) would then have Load's normalize divide by 100 a second
// time. Save must denormalize onto the on-disk 0-100 form without mutating
// the caller's in-memory cfg.
func TestSaveRoundTripsNormalizedValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := &entities.Config{
		Streamers: []entities.NamedStreamer{
			{
				Name: "shroud",
				Entry: entities.ConfigType{
					Kind: entities.ConfigTypeSpecific,
					Specific: &entities.StreamerConfig{
						Prediction: entities.PredictionSettings{
							Strategy: entities.DetailedStrategy{
								Default: entities.DefaultBand{MinPercentage: 0.45, MaxPercentage: 0.55, Points: entities.PointsRule{Percent: 0.15}},
							},
						},
					},
				},
			},
		},
	}
	require.NoError(t, Save(path, cfg))

	// The caller's in-memory cfg must be untouched by Save.
	assert.InDelta(t, 0.45, cfg.Streamers[0].Entry.Specific.Prediction.Strategy.Default.MinPercentage, 0.0001)

	loaded, err := Load(path)
	require.NoError(t, err)
	sc, ok := loaded.Resolve(loaded.Streamers[0].Entry)
	require.True(t, ok)
	assert.InDelta(t, 0.45, sc.Prediction.Strategy.Default.MinPercentage, 0.0001)
	assert.InDelta(t, 0.55, sc.Prediction.Strategy.Default.MaxPercentage, 0.0001)
	assert.InDelta(t, 0.15, sc.Prediction.Strategy.Default.Points.Percent, 0.0001)
}

func TestLoadRejectsUnknownWatchPriority(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := &entities.Config{WatchPriority: []string{"ghost"}}
	require.NoError(t, Save(path, cfg))

	_, err := Load(path)
	assert.Error(t, err)
}
