package scenario

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/sugiyama/internal/params"
)

var (
	ErrInvalidNetParams     = errors.New("scenario: invalid net params")
	ErrInvalidInitialConfig = errors.New("scenario: invalid initial config")
)

// Required geometry keys of a loop scenario.
const (
	KeyLength     = "length"
	KeyLanes      = "lanes"
	KeySpeedLimit = "speed_limit"
	KeyResolution = "resolution"
)

const (
	SpacingUniform = "uniform"
	SpacingRandom  = "random"
)

// DefaultNetParams returns the loop defaults. Each call returns a fresh
// value, so callers may change fields on the result.
func DefaultNetParams() params.NetParams {
	return params.NewNetParams(map[string]float64{
		KeyLength:     230,
		KeyLanes:      1,
		KeySpeedLimit: 30,
		KeyResolution: 40,
	})
}

// Loop is a closed ring road made of four quarter-circle edges.
type Loop struct {
	name       string
	vehicles   *params.Vehicles
	net        params.NetParams
	initial    params.InitialConfig
	length     float64
	lanes      int
	speedLimit float64
	resolution int
}

// NewLoop validates the geometry and placement and returns the scenario.
// The scenario keeps its own copies of every argument.
func NewLoop(name string, vehicles *params.Vehicles, net params.NetParams, initial params.InitialConfig) (*Loop, error) {
	if vehicles == nil {
		vehicles = params.NewVehicles()
	}
	l := &Loop{
		name:     name,
		vehicles: vehicles.Clone(),
		net:      net.Clone(),
		initial:  initial,
	}
	if err := l.readNetParams(); err != nil {
		return nil, err
	}
	if err := l.validatePlacement(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Loop) readNetParams() error {
	for _, key := range []string{KeyLength, KeyLanes, KeySpeedLimit, KeyResolution} {
		if _, ok := l.net.Get(key); !ok {
			return fmt.Errorf("%w: missing %q", ErrInvalidNetParams, key)
		}
	}

	length, _ := l.net.Get(KeyLength)
	lanes, _ := l.net.Get(KeyLanes)
	speed, _ := l.net.Get(KeySpeedLimit)
	res, _ := l.net.Get(KeyResolution)

	if length <= 0 || math.IsInf(length, 0) || math.IsNaN(length) {
		return fmt.Errorf("%w: length must be positive, got %g", ErrInvalidNetParams, length)
	}
	if lanes < 1 || lanes != math.Trunc(lanes) {
		return fmt.Errorf("%w: lanes must be a positive integer, got %g", ErrInvalidNetParams, lanes)
	}
	if speed <= 0 {
		return fmt.Errorf("%w: speed_limit must be positive, got %g", ErrInvalidNetParams, speed)
	}
	if res < 2 || res != math.Trunc(res) {
		return fmt.Errorf("%w: resolution must be an integer >= 2, got %g", ErrInvalidNetParams, res)
	}

	l.length = length
	l.lanes = int(lanes)
	l.speedLimit = speed
	l.resolution = int(res)
	return nil
}

func (l *Loop) validatePlacement() error {
	ic := l.initial
	switch ic.Spacing {
	case SpacingUniform, SpacingRandom:
	default:
		return fmt.Errorf("%w: unknown spacing %q", ErrInvalidInitialConfig, ic.Spacing)
	}
	if ic.Bunching < 0 || ic.Bunching >= l.length {
		return fmt.Errorf("%w: bunching must be in [0, %g), got %g", ErrInvalidInitialConfig, l.length, ic.Bunching)
	}
	if ic.LanesDistribution < 0 {
		return fmt.Errorf("%w: lanes_distribution must be non-negative", ErrInvalidInitialConfig)
	}

	perLane := l.vehiclesPerLane()
	available := l.length - ic.Bunching
	for lane, n := range perLane {
		if float64(n)*l.minHeadway() > available {
			return fmt.Errorf("%w: %d vehicles do not fit on lane %d (%.1fm available)",
				ErrInvalidInitialConfig, n, lane, available)
		}
	}
	return nil
}

func (l *Loop) Name() string                        { return l.name }
func (l *Loop) Length() float64                     { return l.length }
func (l *Loop) Lanes() int                          { return l.lanes }
func (l *Loop) SpeedLimit() float64                 { return l.speedLimit }
func (l *Loop) Resolution() int                     { return l.resolution }
func (l *Loop) Vehicles() *params.Vehicles          { return l.vehicles.Clone() }
func (l *Loop) NetParams() params.NetParams         { return l.net.Clone() }
func (l *Loop) InitialConfig() params.InitialConfig { return l.initial }

// Radius of the circle the ring is laid on.
func (l *Loop) Radius() float64 {
	return l.length / (2 * math.Pi)
}

func (l *Loop) minHeadway() float64 {
	h := 0.0
	for _, t := range l.vehicles.Types() {
		if t.NumVehicles == 0 {
			continue
		}
		h = math.Max(h, t.Length+t.MinGap())
	}
	return h
}

func (l *Loop) lanesUsed() int {
	n := l.initial.LanesDistribution
	if n <= 0 || n > l.lanes {
		return l.lanes
	}
	return n
}

func (l *Loop) vehiclesPerLane() []int {
	used := l.lanesUsed()
	perLane := make([]int, used)
	for i := 0; i < l.vehicles.NumVehicles(); i++ {
		perLane[i%used]++
	}
	return perLane
}
