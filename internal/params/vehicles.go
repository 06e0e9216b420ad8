package params

import (
	"fmt"
	"maps"
)

type ControllerKind string

const (
	IDM    ControllerKind = "IDM"
	Krauss ControllerKind = "Krauss"
)

type RouterKind string

const (
	ContinuousRouter RouterKind = "ContinuousRouter"
	NoRouter         RouterKind = "None"
)

// Controller pairs a controller variant with its parameters.
type Controller struct {
	Kind   ControllerKind     `yaml:"kind" json:"kind"`
	Params map[string]float64 `yaml:"params" json:"params"`
}

type Router struct {
	Kind   RouterKind         `yaml:"kind" json:"kind"`
	Params map[string]float64 `yaml:"params" json:"params"`
}

// Default IDM parameters, as accepted by SUMO's IDM car-following model.
var idmDefaults = map[string]float64{
	"accel":  1.0,
	"decel":  1.5,
	"tau":    1.0,
	"delta":  4.0,
	"minGap": 2.0,
}

var kraussDefaults = map[string]float64{
	"accel":  2.6,
	"decel":  4.5,
	"sigma":  0.5,
	"tau":    1.0,
	"minGap": 2.5,
}

func (c Controller) valid() bool {
	return c.Kind == IDM || c.Kind == Krauss
}

// Resolved returns the controller parameters with defaults filled in.
func (c Controller) Resolved() map[string]float64 {
	var out map[string]float64
	switch c.Kind {
	case IDM:
		out = maps.Clone(idmDefaults)
	case Krauss:
		out = maps.Clone(kraussDefaults)
	default:
		out = make(map[string]float64)
	}
	maps.Copy(out, c.Params)
	return out
}

func (r Router) valid() bool {
	return r.Kind == ContinuousRouter || r.Kind == NoRouter
}

// VehicleType is one homogeneous class of vehicles in the fleet.
type VehicleType struct {
	ID          string           `yaml:"id" json:"id"`
	Controller  Controller       `yaml:"controller" json:"controller"`
	LaneChange  LaneChangeParams `yaml:"lane_change" json:"lane_change"`
	Router      Router           `yaml:"router" json:"router"`
	NumVehicles int              `yaml:"num_vehicles" json:"num_vehicles"`
	Length      float64          `yaml:"length" json:"length"`
}

const DefaultVehicleLength = 5.0

// MinGap is the standstill gap of the controller.
func (t VehicleType) MinGap() float64 {
	return t.Controller.Resolved()["minGap"]
}

func (t VehicleType) clone() VehicleType {
	c := t
	c.Controller.Params = maps.Clone(t.Controller.Params)
	c.Router.Params = maps.Clone(t.Router.Params)
	return c
}

// Vehicles registers the fleet. It may be called once per vehicle class.
type Vehicles struct {
	types []VehicleType
}

func NewVehicles() *Vehicles {
	return &Vehicles{types: make([]VehicleType, 0)}
}

func (v *Vehicles) Add(t VehicleType) error {
	if t.NumVehicles < 0 {
		return fmt.Errorf("%w: %s has %d", ErrNegativeCount, t.ID, t.NumVehicles)
	}
	if !t.Controller.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownController, t.Controller.Kind)
	}
	if !t.Router.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRouter, t.Router.Kind)
	}
	if _, ok := laneChangeModes[t.LaneChange.Mode]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLaneChangeMode, t.LaneChange.Mode)
	}
	for _, existing := range v.types {
		if existing.ID == t.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateVehicleType, t.ID)
		}
	}
	if t.Length <= 0 {
		t.Length = DefaultVehicleLength
	}
	v.types = append(v.types, t.clone())
	return nil
}

// Types returns copies of the registered classes.
func (v *Vehicles) Types() []VehicleType {
	out := make([]VehicleType, len(v.types))
	for i, t := range v.types {
		out[i] = t.clone()
	}
	return out
}

func (v *Vehicles) NumVehicles() int {
	n := 0
	for _, t := range v.types {
		n += t.NumVehicles
	}
	return n
}

// IDs lists vehicle ids as <class>_<index>, in registration order.
func (v *Vehicles) IDs() []string {
	ids := make([]string, 0, v.NumVehicles())
	for _, t := range v.types {
		for i := 0; i < t.NumVehicles; i++ {
			ids = append(ids, fmt.Sprintf("%s_%d", t.ID, i))
		}
	}
	return ids
}

// TypeOf returns the class of the vehicle at position index in IDs.
func (v *Vehicles) TypeOf(index int) (VehicleType, bool) {
	for _, t := range v.types {
		if index < t.NumVehicles {
			return t.clone(), true
		}
		index -= t.NumVehicles
	}
	return VehicleType{}, false
}

func (v *Vehicles) Clone() *Vehicles {
	return &Vehicles{types: v.Types()}
}
