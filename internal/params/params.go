package params

import (
	"errors"
	"fmt"
	"maps"
)

const (
	DefaultSimStep = 0.1
	DefaultRender  = false
	DefaultBinary  = "sumo"
	DefaultGUI     = "sumo-gui"
)

var (
	ErrUnknownLaneChangeMode = errors.New("params: unknown lane change mode")
	ErrUnknownController     = errors.New("params: unknown acceleration controller")
	ErrUnknownRouter         = errors.New("params: unknown routing controller")
	ErrDuplicateVehicleType  = errors.New("params: vehicle type already registered")
	ErrNegativeCount         = errors.New("params: vehicle count must be non-negative")
)

// SumoParams configures the simulator process.
type SumoParams struct {
	SimStep      float64 `yaml:"sim_step" json:"sim_step"`
	Render       bool    `yaml:"render" json:"render"`
	EmissionPath string  `yaml:"emission_path" json:"emission_path"`
	Seed         int64   `yaml:"seed" json:"seed"`
	Binary       string  `yaml:"binary" json:"binary"`
	GUIBinary    string  `yaml:"gui_binary" json:"gui_binary"`
}

func NewSumoParams() SumoParams {
	return SumoParams{
		SimStep:   DefaultSimStep,
		Render:    DefaultRender,
		Binary:    DefaultBinary,
		GUIBinary: DefaultGUI,
	}
}

// Executable returns the binary matching the render flag.
func (p SumoParams) Executable() string {
	if p.Render {
		if p.GUIBinary == "" {
			return DefaultGUI
		}
		return p.GUIBinary
	}
	if p.Binary == "" {
		return DefaultBinary
	}
	return p.Binary
}

// LaneChangeParams selects how human drivers change lanes.
type LaneChangeParams struct {
	Mode string `yaml:"mode" json:"mode"`
}

var laneChangeModes = map[string]int{
	"aggressive":     0,
	"no_lat_collide": 512,
	"strategic":      1621,
}

// vType attributes of the LC2013 model approximating each mode. Route
// files cannot carry laneChangeMode, so these stand in for it.
var laneChangeAttrs = map[string]map[string]string{
	"aggressive": {
		"lcStrategic":   "1.0",
		"lcCooperative": "0.0",
		"lcSpeedGain":   "2.0",
		"lcAssertive":   "5",
	},
	"no_lat_collide": {
		"lcStrategic":   "-1",
		"lcCooperative": "1.0",
		"lcSpeedGain":   "0.0",
	},
	"strategic": {
		"lcStrategic":   "1.0",
		"lcCooperative": "1.0",
		"lcSpeedGain":   "1.0",
		"lcKeepRight":   "1.0",
	},
}

func NewLaneChangeParams(mode string) (LaneChangeParams, error) {
	if _, ok := laneChangeModes[mode]; !ok {
		return LaneChangeParams{}, fmt.Errorf("%w: %q", ErrUnknownLaneChangeMode, mode)
	}
	return LaneChangeParams{Mode: mode}, nil
}

// Bitmask returns the SUMO laneChangeMode value for the mode.
func (p LaneChangeParams) Bitmask() int {
	return laneChangeModes[p.Mode]
}

func (p LaneChangeParams) Attrs() map[string]string {
	return maps.Clone(laneChangeAttrs[p.Mode])
}

func LaneChangeModes() []string {
	return []string{"aggressive", "no_lat_collide", "strategic"}
}

// NetParams holds the geometry fields a scenario reads.
type NetParams struct {
	AdditionalParams map[string]float64 `yaml:"additional_params" json:"additional_params"`
}

func NewNetParams(additional map[string]float64) NetParams {
	return NetParams{AdditionalParams: maps.Clone(additional)}
}

func (p NetParams) Clone() NetParams {
	return NetParams{AdditionalParams: maps.Clone(p.AdditionalParams)}
}

func (p NetParams) Get(key string) (float64, bool) {
	v, ok := p.AdditionalParams[key]
	return v, ok
}

// InitialConfig controls where vehicles start.
type InitialConfig struct {
	Bunching          float64 `yaml:"bunching" json:"bunching"`
	Spacing           string  `yaml:"spacing" json:"spacing"`
	LanesDistribution int     `yaml:"lanes_distribution" json:"lanes_distribution"`
	Shuffle           bool    `yaml:"shuffle" json:"shuffle"`
}

func NewInitialConfig(bunching float64, spacing string) InitialConfig {
	return InitialConfig{Bunching: bunching, Spacing: spacing}
}

// EnvParams carries the environment variant's extra parameters.
type EnvParams struct {
	AdditionalParams map[string]float64 `yaml:"additional_params" json:"additional_params"`
}

func NewEnvParams(additional map[string]float64) EnvParams {
	return EnvParams{AdditionalParams: maps.Clone(additional)}
}

func (p EnvParams) Clone() EnvParams {
	return EnvParams{AdditionalParams: maps.Clone(p.AdditionalParams)}
}
