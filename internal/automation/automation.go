package automation

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/san-kum/sugiyama/internal/analysis"
	"github.com/san-kum/sugiyama/internal/config"
	"github.com/san-kum/sugiyama/internal/experiment"
	"github.com/san-kum/sugiyama/internal/metrics"
	"github.com/san-kum/sugiyama/internal/ring"
	"github.com/san-kum/sugiyama/internal/storage"
	"gopkg.in/yaml.v3"
)

// Batch is a scripted sequence of ring experiments.
type Batch struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Steps       []BatchStep `yaml:"steps"`
}

type BatchStep struct {
	Variant   string           `yaml:"variant"`
	Rollouts  int              `yaml:"rollouts"`
	Steps     int              `yaml:"steps"`
	Seed      int64            `yaml:"seed"`
	Render    *bool            `yaml:"render,omitempty"`
	Overrides config.Overrides `yaml:"overrides,omitempty"`
}

func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var batch Batch
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return nil, err
	}

	return &batch, nil
}

// Runner builds and runs the experiments of batches and sweeps.
type Runner struct {
	// Options are passed to every experiment built.
	Options []experiment.Option
	// Sumo sets the simulator binaries and emission directory of every
	// variant run.
	Sumo config.SumoConfig
	// Store, when set, keeps each result as a run with its vehicle traces.
	Store *storage.Store
	Log   *slog.Logger
	// OnResult, when set, is called after each experiment finishes. runID
	// is empty without a Store.
	OnResult func(v ring.Variant, runID string, res *experiment.Result) error
}

func (r *Runner) logger() *slog.Logger {
	if r.Log == nil {
		return slog.Default()
	}
	return r.Log
}

func (r *Runner) run(ctx context.Context, v ring.Variant, render *bool, rollouts, steps int) (*experiment.Result, error) {
	v = v.WithSumo(r.Sumo)

	factory, err := metrics.Factory()
	if err != nil {
		return nil, err
	}
	opts := append([]experiment.Option{experiment.WithMetrics(factory)}, r.Options...)

	var run *storage.Run
	if r.Store != nil {
		run, err = r.Store.Create(v.Name)
		if err != nil {
			return nil, err
		}
		opts = append(opts, experiment.WithObserver(run.Trace()))
	}

	x, err := ring.Build(v, render, opts...)
	if err != nil {
		discard(run)
		return nil, err
	}
	res, err := x.Run(ctx, rollouts, steps)
	if err != nil {
		discard(run)
		return res, err
	}

	var runID string
	if run != nil {
		sc := x.Env().Scenario()
		if err := run.Finish(res, storage.RunInfo{
			Seed:       v.Seed,
			Vehicles:   v.NumVehicles,
			Lanes:      sc.Lanes(),
			Length:     sc.Length(),
			SpeedLimit: sc.SpeedLimit(),
		}); err != nil {
			return res, fmt.Errorf("save run: %w", err)
		}
		runID = run.ID
	}

	if r.OnResult != nil {
		if err := r.OnResult(v, runID, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// discard drops a run directory whose experiment never finished.
func discard(run *storage.Run) {
	if run == nil {
		return
	}
	run.Trace().Close()
	os.RemoveAll(run.Dir)
}

// RunBatch executes all steps of a batch in order. Zero rollouts or steps
// fall back to the defaults.
func (r *Runner) RunBatch(ctx context.Context, batch *Batch) ([]*experiment.Result, error) {
	results := make([]*experiment.Result, 0, len(batch.Steps))

	for i, step := range batch.Steps {
		name := step.Variant
		if name == "" {
			name = ring.DefaultVariant
		}
		v, err := ring.Lookup(name)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		v = v.With(step.Overrides)
		v.Seed = step.Seed

		rollouts, steps := step.Rollouts, step.Steps
		if rollouts == 0 {
			rollouts = experiment.DefaultRollouts
		}
		if steps == 0 {
			steps = experiment.DefaultSteps
		}

		r.logger().Info("batch step", "batch", batch.Name, "step", i+1, "of", len(batch.Steps), "variant", v.Name)

		res, err := r.run(ctx, v, step.Render, rollouts, steps)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		results = append(results, res)
	}

	return results, nil
}

// Sweep runs a variant across evenly spaced values of one parameter.
type Sweep struct {
	Variant   string
	ParamName string
	ParamMin  float64
	ParamMax  float64
	NumSteps  int
	Rollouts  int
	Steps     int
	Seed      int64
}

type SweepResult struct {
	ParamValue  float64
	MeanSpeed   float64
	SpeedSpread float64
	JamFraction float64
}

// SweepParams lists the parameters a sweep can vary.
var SweepParams = []string{"num_vehicles", "length", "speed_limit", "bunching", "lanes"}

func applyParam(v ring.Variant, name string, val float64) (ring.Variant, error) {
	o := config.Overrides{}
	switch name {
	case "num_vehicles":
		n := int(val + 0.5)
		o.NumVehicles = &n
	case "lanes":
		n := int(val + 0.5)
		o.Lanes = &n
	case "length":
		o.Length = &val
	case "speed_limit":
		o.SpeedLimit = &val
	case "bunching":
		o.Bunching = &val
	default:
		return v, fmt.Errorf("unknown sweep parameter: %s", name)
	}
	return v.With(o), nil
}

// RunSweep executes a parameter sweep. A point whose configuration is
// rejected fails the whole sweep.
func (r *Runner) RunSweep(ctx context.Context, sweep *Sweep) ([]SweepResult, error) {
	if sweep.NumSteps < 1 {
		return nil, fmt.Errorf("sweep needs at least one step, got %d", sweep.NumSteps)
	}
	base, err := ring.Lookup(sweep.Variant)
	if err != nil {
		return nil, err
	}
	base.Seed = sweep.Seed

	rollouts, steps := sweep.Rollouts, sweep.Steps
	if rollouts == 0 {
		rollouts = experiment.DefaultRollouts
	}
	if steps == 0 {
		steps = experiment.DefaultSteps
	}

	paramStep := 0.0
	if sweep.NumSteps > 1 {
		paramStep = (sweep.ParamMax - sweep.ParamMin) / float64(sweep.NumSteps-1)
	}

	results := make([]SweepResult, 0, sweep.NumSteps)
	for i := 0; i < sweep.NumSteps; i++ {
		paramVal := sweep.ParamMin + float64(i)*paramStep
		v, err := applyParam(base, sweep.ParamName, paramVal)
		if err != nil {
			return nil, err
		}

		res, err := r.run(ctx, v, nil, rollouts, steps)
		if err != nil {
			return results, fmt.Errorf("sweep %s=%g: %w", sweep.ParamName, paramVal, err)
		}

		results = append(results, SweepResult{
			ParamValue:  paramVal,
			MeanSpeed:   analysis.Summarize(res.Metric("mean_speed")).Mean,
			SpeedSpread: analysis.Summarize(res.Metric("speed_spread")).Mean,
			JamFraction: analysis.Summarize(res.Metric("jam_fraction")).Mean,
		})

		r.logger().Info("sweep", "point", i+1, "of", sweep.NumSteps, sweep.ParamName, paramVal)
	}

	return results, nil
}
