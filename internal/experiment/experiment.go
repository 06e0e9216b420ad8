package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/sugiyama/internal/env"
	"github.com/san-kum/sugiyama/internal/sim"
	"github.com/san-kum/sugiyama/internal/sumo"
)

const (
	DefaultRollouts = 1
	DefaultSteps    = 1500
)

var ErrInvalidCount = errors.New("experiment: rollouts and steps must be positive")

// Experiment runs rollouts of one environment. Nothing is started until Run.
type Experiment struct {
	env       *env.Env
	sim       sim.Simulator
	metrics   func() []sim.Metric
	observers []sim.Observer
	parallel  int
	seed      *int64
	log       *slog.Logger
}

type Option func(*Experiment)

func WithSimulator(s sim.Simulator) Option           { return func(x *Experiment) { x.sim = s } }
func WithMetrics(factory func() []sim.Metric) Option { return func(x *Experiment) { x.metrics = factory } }
func WithObserver(o sim.Observer) Option             { return func(x *Experiment) { x.observers = append(x.observers, o) } }
func WithParallel(n int) Option                      { return func(x *Experiment) { x.parallel = n } }
func WithLogger(l *slog.Logger) Option               { return func(x *Experiment) { x.log = l } }

// WithSeed sets the seed of rollout 0; rollout i uses seed+i. Without it
// the environment's SUMO seed is used.
func WithSeed(seed int64) Option {
	return func(x *Experiment) { x.seed = &seed }
}

// New binds an environment to a simulator, SUMO unless WithSimulator says
// otherwise.
func New(e *env.Env, opts ...Option) *Experiment {
	x := &Experiment{
		env:      e,
		parallel: 1,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.sim == nil {
		x.sim = sumo.New(sumo.WithLogger(x.log))
	}
	return x
}

func (x *Experiment) Env() *env.Env            { return x.env }
func (x *Experiment) Simulator() sim.Simulator { return x.sim }

// Result holds every rollout of a run in rollout order.
type Result struct {
	Scenario string
	Env      string
	Steps    int
	SimStep  float64
	Started  time.Time
	Finished time.Time
	Rollouts []*sim.Rollout
}

// Metric returns the named metric of each rollout that reported it.
func (r *Result) Metric(name string) []float64 {
	var out []float64
	for _, ro := range r.Rollouts {
		if ro == nil {
			continue
		}
		if v, ok := ro.Metrics[name]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Run executes numRollouts rollouts of numSteps steps each.
func (x *Experiment) Run(ctx context.Context, numRollouts, numSteps int) (*Result, error) {
	if numRollouts < 1 || numSteps < 1 {
		return nil, fmt.Errorf("%w: rollouts=%d steps=%d", ErrInvalidCount, numRollouts, numSteps)
	}
	if x.env == nil {
		return nil, env.ErrNoScenario
	}

	seed := x.env.SumoParams().Seed
	if x.seed != nil {
		seed = *x.seed
	}

	ens := sim.NewEnsemble(x.sim, x.env, x.parallel, seed)
	ens.SetMetrics(x.metrics)
	ens.SetLogger(x.log)
	for _, o := range x.observers {
		ens.AddObserver(o)
	}

	res := &Result{
		Scenario: x.env.Scenario().Name(),
		Env:      string(x.env.Kind()),
		Steps:    numSteps,
		SimStep:  x.env.SumoParams().SimStep,
		Started:  time.Now(),
	}

	x.log.Info("running experiment",
		"scenario", res.Scenario,
		"env", res.Env,
		"rollouts", numRollouts,
		"steps", numSteps,
		"parallel", x.parallel,
	)

	rollouts, err := ens.Run(ctx, numRollouts, numSteps)
	res.Rollouts = rollouts
	res.Finished = time.Now()
	if err != nil {
		return res, fmt.Errorf("experiment %s: %w", res.Scenario, err)
	}
	return res, nil
}
