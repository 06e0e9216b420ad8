package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultVariant   = "double_ring"
	DefaultRollouts  = 1
	DefaultSteps     = 1500
	DefaultParallel  = 1
	DefaultSimulator = "sumo"
	DefaultWorkDir   = ".sugiyama/work"
	DefaultDataDir   = ".sugiyama/runs"
	DefaultLogLevel  = "info"
)

type Config struct {
	Variant   string     `yaml:"variant"`
	Rollouts  int        `yaml:"rollouts"`
	Steps     int        `yaml:"steps"`
	Seed      int64      `yaml:"seed"`
	Parallel  int        `yaml:"parallel"`
	Render    *bool      `yaml:"render,omitempty"`
	Simulator string     `yaml:"simulator"`
	Sumo      SumoConfig `yaml:"sumo"`
	Overrides Overrides  `yaml:"overrides,omitempty"`
	Metrics   []string   `yaml:"metrics,omitempty"`
	LogLevel  string     `yaml:"log_level"`
	DataDir   string     `yaml:"data_dir"`
}

type SumoConfig struct {
	Binary      string `yaml:"binary,omitempty"`
	GUIBinary   string `yaml:"gui_binary,omitempty"`
	Netconvert  string `yaml:"netconvert,omitempty"`
	WorkDir     string `yaml:"work_dir"`
	EmissionDir string `yaml:"emission_dir,omitempty"`
}

// Overrides replace single fields of the selected variant. Unset fields
// keep the variant's value.
type Overrides struct {
	NumVehicles    *int     `yaml:"num_vehicles,omitempty"`
	Lanes          *int     `yaml:"lanes,omitempty"`
	Length         *float64 `yaml:"length,omitempty"`
	SpeedLimit     *float64 `yaml:"speed_limit,omitempty"`
	Resolution     *int     `yaml:"resolution,omitempty"`
	Bunching       *float64 `yaml:"bunching,omitempty"`
	Spacing        *string  `yaml:"spacing,omitempty"`
	SimStep        *float64 `yaml:"sim_step,omitempty"`
	LaneChangeMode *string  `yaml:"lane_change_mode,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Variant:   DefaultVariant,
		Rollouts:  DefaultRollouts,
		Steps:     DefaultSteps,
		Parallel:  DefaultParallel,
		Simulator: DefaultSimulator,
		Sumo: SumoConfig{
			WorkDir: DefaultWorkDir,
		},
		LogLevel: DefaultLogLevel,
		DataDir:  DefaultDataDir,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone copies the config, including the values behind pointer fields.
func (c *Config) Clone() *Config {
	out := *c
	out.Render = clonePtr(c.Render)
	out.Metrics = append([]string(nil), c.Metrics...)
	out.Overrides = c.Overrides.Clone()
	return &out
}

func (o Overrides) Clone() Overrides {
	return Overrides{
		NumVehicles:    clonePtr(o.NumVehicles),
		Lanes:          clonePtr(o.Lanes),
		Length:         clonePtr(o.Length),
		SpeedLimit:     clonePtr(o.SpeedLimit),
		Resolution:     clonePtr(o.Resolution),
		Bunching:       clonePtr(o.Bunching),
		Spacing:        clonePtr(o.Spacing),
		SimStep:        clonePtr(o.SimStep),
		LaneChangeMode: clonePtr(o.LaneChangeMode),
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func ptr[T any](v T) *T { return &v }
