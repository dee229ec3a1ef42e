// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package allocator

import "time"

// Config is the allocator's static tuning surface (spec.md §6
// "Configuration"), shaped like the teacher's config structs: a plain
// YAML-tagged struct loaded once at startup via gopkg.in/yaml.v3.
type Config struct {
	// BweChangeThresholdFraction gates bandwidth_changed (spec.md §4.4):
	// a new estimate only triggers re-allocation if it differs from the
	// stored one by more than this fraction. spec.md §9 resolves the
	// observed 0.001 inline override as a bug, not a feature: this value
	// always comes from configuration.
	BweChangeThresholdFraction float64 `yaml:"bwe_change_threshold_fraction,omitempty"`

	// MaxTimeBetweenCalculations bounds how long the allocator can go
	// without a cycle before the periodic timer forces one (spec.md §5
	// "Periodic re-allocation").
	MaxTimeBetweenCalculations time.Duration `yaml:"max_time_between_calculations,omitempty"`

	// ThumbnailMaxHeightPx is carried in the configuration but not read by
	// the allocator: sources with no explicit per-source constraint get
	// AllocationSettings.DefaultConstraints, not this value.
	ThumbnailMaxHeightPx int `yaml:"thumbnail_max_height_px,omitempty"`

	// OnStageMaxHeightPx is folded into an on-stage source's effective
	// constraint via max() (spec.md §4.2).
	OnStageMaxHeightPx int `yaml:"on_stage_max_height_px,omitempty"`

	// OnStagePreferredHeightPx/OnStagePreferredFramerate define the
	// "preferred layer" threshold used by improve() (spec.md §4.3).
	OnStagePreferredHeightPx  int     `yaml:"on_stage_preferred_height_px,omitempty"`
	OnStagePreferredFramerate float64 `yaml:"on_stage_preferred_framerate,omitempty"`

	Predictor PredictorConfig `yaml:"predictor,omitempty"`
}

// PredictorConfig configures the optional RL delegation path (C8).
type PredictorConfig struct {
	Enabled bool          `yaml:"enabled,omitempty"`
	URL     string        `yaml:"url,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// CacheSize bounds the LRU response cache keyed by stats fingerprint.
	CacheSize int `yaml:"cache_size,omitempty"`
}

// DefaultConfig mirrors the values spec.md §8's worked scenarios use.
func DefaultConfig() Config {
	return Config{
		BweChangeThresholdFraction: 0.15,
		MaxTimeBetweenCalculations: 2 * time.Second,
		ThumbnailMaxHeightPx:       180,
		OnStageMaxHeightPx:         720,
		OnStagePreferredHeightPx:   360,
		OnStagePreferredFramerate:  30,
		Predictor: PredictorConfig{
			Timeout:   50 * time.Millisecond,
			CacheSize: 256,
		},
	}
}
