package entities

// RuleComparator is the comparison a Detailed bet rule applies to an
// outcome's implied probability.
type RuleComparator string

const (
	ComparatorLe RuleComparator = "le"
	ComparatorGe RuleComparator = "ge"
)

// PointsRule is the bet-sizing shape: min(maxValue, floor(percent*balance))
// when maxValue > 0, else floor(percent*balance). Percent is already a
// fraction (0-1) by the time it reaches here; the 0-100 form only exists in
// the YAML file and is normalized once at load/PUT time.
type PointsRule struct {
	MaxValue int64   `yaml:"max_value" json:"max_value"`
	Percent  float64 `yaml:"percent" json:"percent"`
}

// DetailedRule is one ordered entry in a Detailed strategy's rule list.
type DetailedRule struct {
	Comparator  RuleComparator `yaml:"comparator" json:"comparator"`
	Threshold   float64        `yaml:"threshold" json:"threshold"`
	AttemptRate float64        `yaml:"attempt_rate" json:"attempt_rate"`
	Points      PointsRule     `yaml:"points" json:"points"`
}

// DefaultBand is the fallback bet applied when no ordered rule matches but
// an outcome's implied probability falls within [MinPercentage, MaxPercentage].
type DefaultBand struct {
	MinPercentage float64    `yaml:"min_percentage" json:"min_percentage"`
	MaxPercentage float64    `yaml:"max_percentage" json:"max_percentage"`
	Points        PointsRule `yaml:"points" json:"points"`
}

// DetailedStrategy is the one strategy shape spec'd for the PredictionEngine.
type DetailedStrategy struct {
	Rules   []DetailedRule `yaml:"rules" json:"rules"`
	Default DefaultBand    `yaml:"default" json:"default"`
}

// FilterKind names one of the three sequential pre-strategy filters.
type FilterKind string

const (
	FilterTotalUsers      FilterKind = "total_users"
	FilterDelaySeconds    FilterKind = "delay_seconds"
	FilterDelayPercentage FilterKind = "delay_percentage"
)

// Filter is one entry in a StreamerConfig's ordered filter list; only the
// field matching Kind is meaningful.
type Filter struct {
	Kind            FilterKind `yaml:"kind" json:"kind"`
	MinTotalUsers   int64      `yaml:"min_total_users,omitempty" json:"min_total_users,omitempty"`
	DelaySeconds    int64      `yaml:"delay_seconds,omitempty" json:"delay_seconds,omitempty"`
	DelayPercentage float64    `yaml:"delay_percentage,omitempty" json:"delay_percentage,omitempty"`
}

// PredictionSettings bundles the filters and strategy a StreamerConfig
// applies to every prediction event on that channel.
type PredictionSettings struct {
	Strategy DetailedStrategy `yaml:"strategy" json:"strategy"`
	Filters  []Filter         `yaml:"filters" json:"filters"`
}

// StreamerConfig is the per-broadcaster effective configuration; Broadcaster
// holds a shared handle to one of these so live edits are picked up on the
// next strategy evaluation.
type StreamerConfig struct {
	FollowRaid bool               `yaml:"follow_raid" json:"follow_raid"`
	Prediction PredictionSettings `yaml:"prediction" json:"prediction"`
}

// ConfigTypeKind distinguishes a streamer entry that names a shared preset
// from one that inlines its own StreamerConfig.
type ConfigTypeKind string

const (
	ConfigTypePreset   ConfigTypeKind = "preset"
	ConfigTypeSpecific ConfigTypeKind = "specific"
)

// ConfigType is the sum type `Preset(name) | Specific(StreamerConfig)`.
type ConfigType struct {
	Kind       ConfigTypeKind  `yaml:"kind" json:"kind"`
	PresetName string          `yaml:"preset,omitempty" json:"preset,omitempty"`
	Specific   *StreamerConfig `yaml:"specific,omitempty" json:"specific,omitempty"`
}

// NamedStreamer preserves config-file order for Config.Streamers, which the
// spec models as an ordered map.
type NamedStreamer struct {
	Name  string     `yaml:"name" json:"name"`
	Entry ConfigType `yaml:"config" json:"config"`
}

// NamedPreset preserves config-file order for Config.Presets.
type NamedPreset struct {
	Name   string          `yaml:"name" json:"name"`
	Config *StreamerConfig `yaml:"config" json:"config"`
}

// Config is the top-level YAML shape.
type Config struct {
	WatchPriority []string        `yaml:"watch_priority,omitempty" json:"watch_priority,omitempty"`
	WatchStreak   bool            `yaml:"watch_streak" json:"watch_streak"`
	Streamers     []NamedStreamer `yaml:"streamers" json:"streamers"`
	Presets       []NamedPreset   `yaml:"presets,omitempty" json:"presets,omitempty"`
}

// Resolve looks up the effective StreamerConfig for a config-file entry,
// following a Preset reference if present.
func (c *Config) Resolve(entry ConfigType) (*StreamerConfig, bool) {
	switch entry.Kind {
	case ConfigTypeSpecific:
		return entry.Specific, entry.Specific != nil
	case ConfigTypePreset:
		for _, p := range c.Presets {
			if p.Name == entry.PresetName {
				return p.Config, true
			}
		}
		return nil, false
	default:
		return nil, false
	}
}
