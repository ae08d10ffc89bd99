// Package engine implements the activation pipeline: scoring candidate
// content units against a work context, lifecycle filtering, exclusion-group
// conflict resolution, load-limit truncation, and agent routing. Every run is
// a pure function of (catalog snapshot, work context, policy, as-of date).
package engine

import (
	"github.com/spf13/viper"

	"github.com/rulekit/rulekit/pkg/signals"
)

// ScopeLimits caps how many units a selection may load per task scope. Zero
// means unbounded; architecture scope defaults to unbounded.
type ScopeLimits struct {
	SingleFile   int `mapstructure:"single_file"`
	Feature      int `mapstructure:"feature"`
	MultiFile    int `mapstructure:"multi_file"`
	Architecture int `mapstructure:"architecture"`
}

// ScoreWeights are the scoring knobs. Marker signals outrank extensions,
// which outrank free-text keywords; declared priority dominates all of them
// through the priority factor. The exact numbers are policy, not contract.
type ScoreWeights struct {
	PriorityFactor float64 `mapstructure:"priority_factor"`
	ProjectMarker  float64 `mapstructure:"project_marker"`
	FileExtension  float64 `mapstructure:"file_extension"`
	Keyword        float64 `mapstructure:"keyword"`
}

// RouterThresholds tune when the agent router considers a single agent
// dominant enough to return directly.
type RouterThresholds struct {
	MinConfidence float64 `mapstructure:"min_confidence"`
	TieMargin     float64 `mapstructure:"tie_margin"`
}

// PolicyConfig carries all selection policy explicitly so callers and tests
// can vary it without shared state.
type PolicyConfig struct {
	Limits  ScopeLimits      `mapstructure:"limits"`
	Weights ScoreWeights     `mapstructure:"weights"`
	Router  RouterThresholds `mapstructure:"router"`
}

// DefaultPolicy returns the built-in policy
func DefaultPolicy() PolicyConfig {
	return PolicyConfig{
		Limits: ScopeLimits{
			SingleFile:   3,
			Feature:      5,
			MultiFile:    7,
			Architecture: 0,
		},
		Weights: ScoreWeights{
			PriorityFactor: 10,
			ProjectMarker:  3,
			FileExtension:  2,
			Keyword:        1,
		},
		Router: RouterThresholds{
			MinConfidence: 2,
			TieMargin:     0,
		},
	}
}

// PolicyFromViper overlays the "policy" config section onto the defaults
func PolicyFromViper() (PolicyConfig, error) {
	policy := DefaultPolicy()
	if err := viper.UnmarshalKey("policy", &policy); err != nil {
		return DefaultPolicy(), err
	}
	return policy, nil
}

// LimitFor returns the load limit for a task scope; zero means unbounded
func (p PolicyConfig) LimitFor(scope signals.TaskScope) int {
	switch scope {
	case signals.ScopeSingleFile:
		return p.Limits.SingleFile
	case signals.ScopeFeature:
		return p.Limits.Feature
	case signals.ScopeMultiFile:
		return p.Limits.MultiFile
	case signals.ScopeArchitecture:
		return p.Limits.Architecture
	default:
		return p.Limits.Feature
	}
}
