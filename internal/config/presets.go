package config

import (
	"sort"

	"github.com/samber/lo"
)

// Presets are named run setups per ring variant.
var Presets = map[string]map[string]*Config{
	"sugiyama": {
		"original": {
			Variant: "sugiyama", Rollouts: 1, Steps: 3000,
			Overrides: Overrides{NumVehicles: ptr(22), Lanes: ptr(1), Bunching: ptr(0.0)},
		},
		"dense": {
			Variant: "sugiyama", Rollouts: 1, Steps: 1500,
			Overrides: Overrides{NumVehicles: ptr(50)},
		},
		"ensemble": {
			Variant: "sugiyama", Rollouts: 8, Steps: 1500, Parallel: 4,
		},
	},
	"double_ring": {
		"default": {
			Variant: "double_ring", Rollouts: 1, Steps: 1500,
		},
		"uniform": {
			Variant: "double_ring", Rollouts: 1, Steps: 1500,
			Overrides: Overrides{Spacing: ptr("uniform"), Bunching: ptr(0.0)},
		},
		"no_lane_change": {
			Variant: "double_ring", Rollouts: 1, Steps: 1500,
			Overrides: Overrides{LaneChangeMode: ptr("no_lat_collide")},
		},
		"long": {
			Variant: "double_ring", Rollouts: 4, Steps: 6000, Parallel: 2,
		},
	},
}

// GetPreset returns a copy of the preset filled in over the defaults, or
// nil when it does not exist.
func GetPreset(variant, preset string) *Config {
	variantPresets, ok := Presets[variant]
	if !ok {
		return nil
	}
	p, ok := variantPresets[preset]
	if !ok {
		return nil
	}

	cfg := DefaultConfig()
	cfg.Variant = p.Variant
	cfg.Rollouts = p.Rollouts
	cfg.Steps = p.Steps
	if p.Parallel > 0 {
		cfg.Parallel = p.Parallel
	}
	cfg.Overrides = p.Overrides.Clone()
	return cfg
}

func ListPresets(variant string) []string {
	variantPresets, ok := Presets[variant]
	if !ok {
		return nil
	}
	names := lo.Keys(variantPresets)
	sort.Strings(names)
	return names
}
