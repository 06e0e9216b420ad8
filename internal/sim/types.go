package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/sugiyama/internal/env"
)

// StoppedSpeed is the speed (m/s) under which a vehicle counts as stopped.
const StoppedSpeed = 0.1

type VehicleState struct {
	ID    string
	Type  string
	Edge  string
	Lane  int
	Pos   float64
	Speed float64
	X     float64
	Y     float64
}

// Snapshot is the fleet at one simulation step.
type Snapshot struct {
	Step     int
	Time     float64
	Vehicles []VehicleState
}

func (s Snapshot) Clone() Snapshot {
	c := s
	c.Vehicles = make([]VehicleState, len(s.Vehicles))
	copy(c.Vehicles, s.Vehicles)
	return c
}

func (s Snapshot) Speeds() []float64 {
	out := make([]float64, len(s.Vehicles))
	for i, v := range s.Vehicles {
		out[i] = v.Speed
	}
	return out
}

func (s Snapshot) MeanSpeed() float64 {
	if len(s.Vehicles) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range s.Vehicles {
		sum += v.Speed
	}
	return sum / float64(len(s.Vehicles))
}

func (s Snapshot) MinSpeed() float64 {
	if len(s.Vehicles) == 0 {
		return 0
	}
	m := math.Inf(1)
	for _, v := range s.Vehicles {
		m = math.Min(m, v.Speed)
	}
	return m
}

func (s Snapshot) Stopped() int {
	n := 0
	for _, v := range s.Vehicles {
		if v.Speed < StoppedSpeed {
			n++
		}
	}
	return n
}

// Session is one running rollout. Step returns io.EOF once the simulator
// has no more steps.
type Session interface {
	Step() (Snapshot, error)
	Close() error
}

// Simulator starts rollouts of an environment.
type Simulator interface {
	Start(ctx context.Context, e *env.Env, rollout int, steps int) (Session, error)
}

type Metric interface {
	Name() string
	Observe(s Snapshot)
	Value() float64
	Reset()
}

// Observer is called from the goroutine running the rollout.
type Observer interface {
	OnStep(rollout int, s Snapshot)
}

type Config struct {
	Steps int
}

// Sample is the per-step summary kept in a rollout.
type Sample struct {
	Time      float64
	MeanSpeed float64
	MinSpeed  float64
	Stopped   int
	Vehicles  int
}

type Rollout struct {
	Index          int
	Seed           int64
	StepsRequested int
	StepsTaken     int
	Samples        []Sample
	Metrics        map[string]float64
}

func (r *Rollout) MeanSpeeds() []float64 {
	out := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = s.MeanSpeed
	}
	return out
}

// StepError wraps a simulator failure with the step it happened at.
type StepError struct {
	Rollout int
	Step    int
	Time    float64
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("rollout %d step %d (t=%.4f): %v", e.Rollout, e.Step, e.Time, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
