package env

import (
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/san-kum/sugiyama/internal/params"
	"github.com/san-kum/sugiyama/internal/scenario"
)

var (
	ErrUnknownEnv      = errors.New("env: unknown environment")
	ErrMissingEnvParam = errors.New("env: missing additional env param")
	ErrInvalidSimStep  = errors.New("env: sim step must be positive")
	ErrNoScenario      = errors.New("env: scenario is required")
)

type Kind string

const (
	Accel           Kind = "AccelEnv"
	LaneChangeAccel Kind = "LaneChangeAccelEnv"
)

var requiredParams = map[Kind][]string{
	Accel:           {"max_accel", "max_decel", "target_velocity"},
	LaneChangeAccel: {"max_accel", "max_decel", "lane_change_duration", "target_velocity"},
}

// AccelAdditionalParams returns the defaults of the acceleration-only env.
func AccelAdditionalParams() map[string]float64 {
	return map[string]float64{
		"max_accel":       3,
		"max_decel":       3,
		"target_velocity": 10,
	}
}

// LaneChangeAdditionalParams returns the defaults of the lane-changing env.
func LaneChangeAdditionalParams() map[string]float64 {
	return map[string]float64{
		"max_accel":            3,
		"max_decel":            3,
		"lane_change_duration": 5,
		"target_velocity":      10,
	}
}

// Env binds a scenario to the simulator settings it runs under.
type Env struct {
	kind     Kind
	envp     params.EnvParams
	sumo     params.SumoParams
	scenario *scenario.Loop
}

func New(kind Kind, envParams params.EnvParams, sumoParams params.SumoParams, sc *scenario.Loop) (*Env, error) {
	required, ok := requiredParams[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEnv, kind)
	}
	if sc == nil {
		return nil, ErrNoScenario
	}
	if sumoParams.SimStep <= 0 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidSimStep, sumoParams.SimStep)
	}
	for _, key := range required {
		if _, ok := envParams.AdditionalParams[key]; !ok {
			return nil, fmt.Errorf("%w: %s requires %q", ErrMissingEnvParam, kind, key)
		}
	}

	return &Env{
		kind:     kind,
		envp:     envParams.Clone(),
		sumo:     sumoParams,
		scenario: sc,
	}, nil
}

func (e *Env) Kind() Kind                    { return e.kind }
func (e *Env) EnvParams() params.EnvParams   { return e.envp.Clone() }
func (e *Env) SumoParams() params.SumoParams { return e.sumo }
func (e *Env) Scenario() *scenario.Loop      { return e.scenario }
func (e *Env) AllowsLaneChange() bool        { return e.kind == LaneChangeAccel }

func (e *Env) Param(key string) (float64, bool) {
	v, ok := e.envp.AdditionalParams[key]
	return v, ok
}

// WithSeed returns a copy of the env whose simulator uses seed.
func (e *Env) WithSeed(seed int64) *Env {
	c := *e
	c.envp = e.envp.Clone()
	c.sumo.Seed = seed
	return &c
}

// Names lists the registered environment variants.
func Names() []string {
	names := lo.Map(lo.Keys(requiredParams), func(k Kind, _ int) string { return string(k) })
	sort.Strings(names)
	return names
}
