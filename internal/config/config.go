// Package config loads and persists the YAML configuration file, creating
// defaults on first run and normalizing percent/threshold fields to
// fractions.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pointskeeper/internal/entities"
)

// Load reads the YAML file at path, creating it with defaults if absent,
// and normalizes every percent/threshold field (0-100 in the file) to a
// fraction (0-1) exactly once.
func Load(path string) (*entities.Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg entities.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	normalize(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save rewrites the YAML file to disk; called at startup-with-defaults and
// after every mutating control-plane call. cfg holds normalized (0-1)
// fractions in memory, but the file is always the 0-100 form Load expects
// to normalize on the next read, so Save denormalizes onto a deep copy
// rather than the live cfg — the in-memory config the engine is actively
// reading stays untouched.
func Save(path string, cfg *entities.Config) error {
	onDisk := denormalizedCopy(cfg)
	data, err := yaml.Marshal(onDisk)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Default returns a streamer-less config with watch streaks enabled, ready
// to be appended to via the control plane.
func Default() *entities.Config {
	return &entities.Config{
		WatchStreak: true,
		Streamers:   []entities.NamedStreamer{},
		Presets:     []entities.NamedPreset{},
	}
}

// normalize divides every percent/threshold field by 100, exactly once,
// across every preset and every inline streamer config. Values already
// expressed as fractions by a prior load are not re-divided; normalize is
// only ever invoked once per on-disk read, which is what makes "exactly
// once" hold in practice — see NormalizeStreamerConfig for the calls made
// from the HTTP handlers on incoming request bodies.
func normalize(cfg *entities.Config) {
	for i := range cfg.Presets {
		if cfg.Presets[i].Config != nil {
			NormalizeStreamerConfig(cfg.Presets[i].Config)
		}
	}
	for i := range cfg.Streamers {
		if cfg.Streamers[i].Entry.Specific != nil {
			NormalizeStreamerConfig(cfg.Streamers[i].Entry.Specific)
		}
	}
}

// denormalizedCopy deep-copies cfg and converts every 0-1 fraction back to
// its 0-100 on-disk form, the inverse of normalize/NormalizeStreamerConfig.
func denormalizedCopy(cfg *entities.Config) *entities.Config {
	out := &entities.Config{
		WatchPriority: append([]string(nil), cfg.WatchPriority...),
		WatchStreak:   cfg.WatchStreak,
		Streamers:     make([]entities.NamedStreamer, len(cfg.Streamers)),
		Presets:       make([]entities.NamedPreset, len(cfg.Presets)),
	}
	for i, ns := range cfg.Streamers {
		out.Streamers[i] = entities.NamedStreamer{Name: ns.Name, Entry: denormalizedEntry(ns.Entry)}
	}
	for i, p := range cfg.Presets {
		out.Presets[i] = entities.NamedPreset{Name: p.Name, Config: denormalizedStreamerConfig(p.Config)}
	}
	return out
}

func denormalizedEntry(entry entities.ConfigType) entities.ConfigType {
	return entities.ConfigType{
		Kind:       entry.Kind,
		PresetName: entry.PresetName,
		Specific:   denormalizedStreamerConfig(entry.Specific),
	}
}

func denormalizedStreamerConfig(sc *entities.StreamerConfig) *entities.StreamerConfig {
	if sc == nil {
		return nil
	}
	out := *sc
	out.Prediction.Strategy.Rules = make([]entities.DetailedRule, len(sc.Prediction.Strategy.Rules))
	for i, r := range sc.Prediction.Strategy.Rules {
		r.Threshold *= 100
		r.AttemptRate *= 100
		r.Points.Percent *= 100
		out.Prediction.Strategy.Rules[i] = r
	}
	out.Prediction.Strategy.Default.MinPercentage *= 100
	out.Prediction.Strategy.Default.MaxPercentage *= 100
	out.Prediction.Strategy.Default.Points.Percent *= 100

	out.Prediction.Filters = make([]entities.Filter, len(sc.Prediction.Filters))
	for i, f := range sc.Prediction.Filters {
		if f.Kind == entities.FilterDelayPercentage {
			f.DelayPercentage *= 100
		}
		out.Prediction.Filters[i] = f
	}
	return &out
}

// NormalizeStreamerConfig converts every 0-100 percent/threshold field on a
// StreamerConfig to a 0-1 fraction. Exported so the preset-create,
// streamer-config and add-streamer HTTP handlers can apply it to request
// bodies exactly once.
func NormalizeStreamerConfig(sc *entities.StreamerConfig) {
	for i := range sc.Prediction.Strategy.Rules {
		r := &sc.Prediction.Strategy.Rules[i]
		r.Threshold /= 100
		r.AttemptRate /= 100
		r.Points.Percent /= 100
	}
	sc.Prediction.Strategy.Default.MinPercentage /= 100
	sc.Prediction.Strategy.Default.MaxPercentage /= 100
	sc.Prediction.Strategy.Default.Points.Percent /= 100

	for i := range sc.Prediction.Filters {
		f := &sc.Prediction.Filters[i]
		if f.Kind == entities.FilterDelayPercentage {
			f.DelayPercentage /= 100
		}
	}
}

// validate enforces the fatal config-shaped startup errors: an empty
// streamer list is allowed (control plane can add streamers later) but a
// watch-priority entry referencing an unknown streamer name is not.
func validate(cfg *entities.Config) error {
	known := make(map[string]bool, len(cfg.Streamers))
	for _, s := range cfg.Streamers {
		known[s.Name] = true
	}
	for _, name := range cfg.WatchPriority {
		if !known[name] {
			return fmt.Errorf("watch_priority references unknown streamer %q", name)
		}
	}
	return nil
}
