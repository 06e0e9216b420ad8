// Package metrics summarizes rollouts of a ring road.
package metrics

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/san-kum/sugiyama/internal/sim"
)

// DefaultWarmup is the time in seconds skipped by warmup-aware metrics,
// long enough for the vehicles to leave their initial placement.
const DefaultWarmup = 30.0

var registry = map[string]func() sim.Metric{
	"mean_speed":       func() sim.Metric { return NewMeanSpeed() },
	"speed_spread":     func() sim.Metric { return NewSpeedSpread() },
	"min_speed":        func() sim.Metric { return NewMinSpeed(DefaultWarmup) },
	"stopped_fraction": func() sim.Metric { return NewStoppedFraction() },
	"jam_fraction":     func() sim.Metric { return NewJamFraction(DefaultWarmup) },
}

func Names() []string {
	names := lo.Keys(registry)
	sort.Strings(names)
	return names
}

// Factory returns a constructor for a fresh set of the named metrics.
// With no names it builds every registered metric.
func Factory(names ...string) (func() []sim.Metric, error) {
	if len(names) == 0 {
		names = Names()
	}
	ctors := make([]func() sim.Metric, 0, len(names))
	for _, n := range names {
		ctor, ok := registry[n]
		if !ok {
			return nil, fmt.Errorf("unknown metric: %s", n)
		}
		ctors = append(ctors, ctor)
	}
	return func() []sim.Metric {
		out := make([]sim.Metric, len(ctors))
		for i, c := range ctors {
			out[i] = c()
		}
		return out
	}, nil
}
