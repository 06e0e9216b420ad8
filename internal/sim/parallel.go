package sim

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/sugiyama/internal/env"
	"golang.org/x/sync/errgroup"
)

// Ensemble runs the rollouts of one environment, up to parallel at a time.
// Rollout i runs with seed seedStart+i.
type Ensemble struct {
	sim       Simulator
	env       *env.Env
	metrics   func() []Metric
	observers []Observer
	parallel  int
	seedStart int64
	log       *slog.Logger
}

func NewEnsemble(s Simulator, e *env.Env, parallel int, seedStart int64) *Ensemble {
	if parallel < 1 {
		parallel = 1
	}
	return &Ensemble{
		sim:       s,
		env:       e,
		parallel:  parallel,
		seedStart: seedStart,
		log:       slog.Default(),
	}
}

// SetMetrics installs a factory; each rollout gets its own metric set.
func (e *Ensemble) SetMetrics(factory func() []Metric) { e.metrics = factory }
func (e *Ensemble) AddObserver(o Observer)             { e.observers = append(e.observers, o) }
func (e *Ensemble) SetLogger(l *slog.Logger)           { e.log = l }

func (e *Ensemble) Run(ctx context.Context, rollouts, steps int) ([]*Rollout, error) {
	if rollouts <= 0 {
		return nil, fmt.Errorf("rollouts must be positive, got %d", rollouts)
	}

	results := make([]*Rollout, rollouts)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallel)

	for i := 0; i < rollouts; i++ {
		i := i
		g.Go(func() error {
			r, err := e.runOne(ctx, i, steps)
			results[i] = r
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (e *Ensemble) runOne(ctx context.Context, index, steps int) (*Rollout, error) {
	seed := e.seedStart + int64(index)
	rolloutEnv := e.env.WithSeed(seed)

	e.log.Debug("starting rollout", "rollout", index, "seed", seed, "steps", steps)

	sess, err := e.sim.Start(ctx, rolloutEnv, index, steps)
	if err != nil {
		return nil, fmt.Errorf("rollout %d: start: %w", index, err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			e.log.Warn("closing session", "rollout", index, "err", cerr)
		}
	}()

	rec := NewRecorder()
	if e.metrics != nil {
		for _, m := range e.metrics() {
			rec.AddMetric(m)
		}
	}
	for _, o := range e.observers {
		rec.AddObserver(o)
	}

	r, err := rec.Run(ctx, sess, index, Config{Steps: steps})
	if r != nil {
		r.Seed = seed
	}
	if err != nil {
		return r, err
	}
	if r.StepsTaken < steps {
		e.log.Warn("simulator ended early", "rollout", index, "taken", r.StepsTaken, "requested", steps)
	}
	return r, nil
}
