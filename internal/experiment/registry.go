package experiment

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/samber/lo"
	"github.com/san-kum/sugiyama/internal/env"
	"github.com/san-kum/sugiyama/internal/metrics"
	"github.com/san-kum/sugiyama/internal/sim"
	"github.com/san-kum/sugiyama/internal/sumo"
)

// Backend configures a simulator built from the registry.
type Backend struct {
	WorkDir    string
	Netconvert string
	Log        *slog.Logger
}

type Registry struct {
	simulators map[string]func(Backend) sim.Simulator
}

func NewRegistry() *Registry {
	r := &Registry{
		simulators: make(map[string]func(Backend) sim.Simulator),
	}

	r.simulators["sumo"] = func(b Backend) sim.Simulator {
		var opts []sumo.Option
		if b.WorkDir != "" {
			opts = append(opts, sumo.WithWorkDir(b.WorkDir))
		}
		if b.Netconvert != "" {
			opts = append(opts, sumo.WithNetconvert(b.Netconvert))
		}
		if b.Log != nil {
			opts = append(opts, sumo.WithLogger(b.Log))
		}
		return sumo.New(opts...)
	}

	return r
}

func (r *Registry) Register(name string, fn func(Backend) sim.Simulator) {
	r.simulators[name] = fn
}

func (r *Registry) GetSimulator(name string, b Backend) (sim.Simulator, error) {
	fn, ok := r.simulators[name]
	if !ok {
		return nil, fmt.Errorf("unknown simulator: %s", name)
	}
	return fn(b), nil
}

func (r *Registry) ListSimulators() []string {
	names := lo.Keys(r.simulators)
	sort.Strings(names)
	return names
}

func (r *Registry) ListEnvs() []string {
	return env.Names()
}

// DefaultMetrics builds a fresh set of every registered metric per rollout.
func (r *Registry) DefaultMetrics() (func() []sim.Metric, error) {
	return metrics.Factory()
}
