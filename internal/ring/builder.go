// Package ring assembles ring road stop-and-go wave experiments.
package ring

import (
	"github.com/san-kum/sugiyama/internal/env"
	"github.com/san-kum/sugiyama/internal/experiment"
	"github.com/san-kum/sugiyama/internal/params"
	"github.com/san-kum/sugiyama/internal/scenario"
)

// VehicleType is the id of the human driven vehicle class.
const VehicleType = "idm"

// BuildExperiment builds the default double ring experiment. A nil render
// keeps params.DefaultRender.
func BuildExperiment(render *bool, opts ...experiment.Option) (*experiment.Experiment, error) {
	return Build(DoubleRing(), render, opts...)
}

// Build assembles the configuration records of v into an experiment.
// Invalid values are reported by the scenario and environment
// constructors. Nothing is started until the experiment runs.
func Build(v Variant, render *bool, opts ...experiment.Option) (*experiment.Experiment, error) {
	sumoParams := params.NewSumoParams()
	sumoParams.SimStep = v.SimStep
	sumoParams.Seed = v.Seed
	if render != nil {
		sumoParams.Render = *render
	}
	if v.Binary != "" {
		sumoParams.Binary = v.Binary
	}
	if v.GUIBinary != "" {
		sumoParams.GUIBinary = v.GUIBinary
	}
	sumoParams.EmissionPath = v.EmissionPath

	lc, err := params.NewLaneChangeParams(v.LaneChangeMode)
	if err != nil {
		return nil, err
	}

	vehicles := params.NewVehicles()
	if err := vehicles.Add(params.VehicleType{
		ID:          VehicleType,
		Controller:  params.Controller{Kind: params.IDM},
		LaneChange:  lc,
		Router:      params.Router{Kind: params.ContinuousRouter},
		NumVehicles: v.NumVehicles,
	}); err != nil {
		return nil, err
	}

	initial := params.NewInitialConfig(v.Bunching, v.Spacing)

	sc, err := scenario.NewLoop(v.Name, vehicles, v.NetParams(), initial)
	if err != nil {
		return nil, err
	}

	envParams := params.NewEnvParams(env.LaneChangeAdditionalParams())
	e, err := env.New(env.LaneChangeAccel, envParams, sumoParams, sc)
	if err != nil {
		return nil, err
	}

	return experiment.New(e, opts...), nil
}
