package ring

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/san-kum/sugiyama/internal/config"
	"github.com/san-kum/sugiyama/internal/params"
	"github.com/san-kum/sugiyama/internal/scenario"
)

// Variant describes one ring road experiment. Every geometry field is
// passed to the scenario as given, so zero values are rejected there.
type Variant struct {
	Name           string  `yaml:"name" json:"name"`
	NumVehicles    int     `yaml:"num_vehicles" json:"num_vehicles"`
	Lanes          int     `yaml:"lanes" json:"lanes"`
	Length         float64 `yaml:"length" json:"length"`
	SpeedLimit     float64 `yaml:"speed_limit" json:"speed_limit"`
	Resolution     int     `yaml:"resolution" json:"resolution"`
	Bunching       float64 `yaml:"bunching" json:"bunching"`
	Spacing        string  `yaml:"spacing" json:"spacing"`
	SimStep        float64 `yaml:"sim_step" json:"sim_step"`
	LaneChangeMode string  `yaml:"lane_change_mode" json:"lane_change_mode"`
	Seed           int64   `yaml:"seed" json:"seed"`

	// Simulator process settings; empty keeps params.NewSumoParams.
	Binary       string `yaml:"binary,omitempty" json:"binary,omitempty"`
	GUIBinary    string `yaml:"gui_binary,omitempty" json:"gui_binary,omitempty"`
	EmissionPath string `yaml:"emission_path,omitempty" json:"emission_path,omitempty"`
}

// Sugiyama is the single ring: 45 vehicles on the default ring, widened to
// two lanes.
func Sugiyama() Variant {
	net := scenario.DefaultNetParams()
	length, _ := net.Get(scenario.KeyLength)
	speed, _ := net.Get(scenario.KeySpeedLimit)
	res, _ := net.Get(scenario.KeyResolution)

	return Variant{
		Name:           "sugiyama",
		NumVehicles:    45,
		Lanes:          2,
		Length:         length,
		SpeedLimit:     speed,
		Resolution:     int(res),
		Bunching:       20,
		Spacing:        scenario.SpacingRandom,
		SimStep:        params.DefaultSimStep,
		LaneChangeMode: "strategic",
	}
}

// DoubleRing is 41 vehicles on a 260m two lane ring.
func DoubleRing() Variant {
	return Variant{
		Name:           "double_ring",
		NumVehicles:    41,
		Lanes:          2,
		Length:         260,
		SpeedLimit:     30,
		Resolution:     40,
		Bunching:       20,
		Spacing:        scenario.SpacingRandom,
		SimStep:        params.DefaultSimStep,
		LaneChangeMode: "strategic",
	}
}

const DefaultVariant = "double_ring"

var variants = map[string]func() Variant{
	"sugiyama":    Sugiyama,
	"double_ring": DoubleRing,
}

func Lookup(name string) (Variant, error) {
	fn, ok := variants[name]
	if !ok {
		return Variant{}, fmt.Errorf("unknown variant: %s", name)
	}
	return fn(), nil
}

func Names() []string {
	names := lo.Keys(variants)
	sort.Strings(names)
	return names
}

// NetParams returns the network parameters of the variant, built on a
// fresh copy of the defaults.
func (v Variant) NetParams() params.NetParams {
	net := scenario.DefaultNetParams()
	net.AdditionalParams[scenario.KeyLanes] = float64(v.Lanes)
	net.AdditionalParams[scenario.KeyLength] = v.Length
	net.AdditionalParams[scenario.KeySpeedLimit] = v.SpeedLimit
	net.AdditionalParams[scenario.KeyResolution] = float64(v.Resolution)
	return net
}

// With applies the set fields of o.
func (v Variant) With(o config.Overrides) Variant {
	if o.NumVehicles != nil {
		v.NumVehicles = *o.NumVehicles
	}
	if o.Lanes != nil {
		v.Lanes = *o.Lanes
	}
	if o.Length != nil {
		v.Length = *o.Length
	}
	if o.SpeedLimit != nil {
		v.SpeedLimit = *o.SpeedLimit
	}
	if o.Resolution != nil {
		v.Resolution = *o.Resolution
	}
	if o.Bunching != nil {
		v.Bunching = *o.Bunching
	}
	if o.Spacing != nil {
		v.Spacing = *o.Spacing
	}
	if o.SimStep != nil {
		v.SimStep = *o.SimStep
	}
	if o.LaneChangeMode != nil {
		v.LaneChangeMode = *o.LaneChangeMode
	}
	return v
}

// WithSumo applies the binaries and emission directory of c.
func (v Variant) WithSumo(c config.SumoConfig) Variant {
	if c.Binary != "" {
		v.Binary = c.Binary
	}
	if c.GUIBinary != "" {
		v.GUIBinary = c.GUIBinary
	}
	if c.EmissionDir != "" {
		v.EmissionPath = c.EmissionDir
	}
	return v
}
