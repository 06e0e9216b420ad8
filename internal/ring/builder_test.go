package ring_test

import (
	"context"
	"io"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/sugiyama/internal/config"
	"github.com/san-kum/sugiyama/internal/env"
	"github.com/san-kum/sugiyama/internal/experiment"
	"github.com/san-kum/sugiyama/internal/params"
	"github.com/san-kum/sugiyama/internal/ring"
	"github.com/san-kum/sugiyama/internal/scenario"
	"github.com/san-kum/sugiyama/internal/sim"
)

type startCall struct {
	rollout int
	steps   int
}

type recordingSimulator struct {
	mu    sync.Mutex
	calls []startCall
}

func (r *recordingSimulator) Start(ctx context.Context, e *env.Env, rollout, steps int) (sim.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, startCall{rollout: rollout, steps: steps})
	return &emptySession{}, nil
}

type emptySession struct{}

func (emptySession) Step() (sim.Snapshot, error) { return sim.Snapshot{}, io.EOF }
func (emptySession) Close() error                { return nil }

func boolPtr(b bool) *bool { return &b }

var _ = Describe("Build", func() {
	Describe("sugiyama variant", func() {
		var x *experiment.Experiment

		BeforeEach(func() {
			var err error
			x, err = ring.Build(ring.Sugiyama(), nil)
			Expect(err).NotTo(HaveOccurred())
		})

		It("registers 45 IDM vehicles that change lanes strategically", func() {
			vehicles := x.Env().Scenario().Vehicles()
			Expect(vehicles.NumVehicles()).To(Equal(45))

			types := vehicles.Types()
			Expect(types).To(HaveLen(1))
			Expect(types[0].ID).To(Equal("idm"))
			Expect(types[0].Controller.Kind).To(Equal(params.IDM))
			Expect(types[0].Router.Kind).To(Equal(params.ContinuousRouter))
			Expect(types[0].LaneChange.Mode).To(Equal("strategic"))
		})

		It("widens the default ring to two lanes", func() {
			sc := x.Env().Scenario()
			Expect(sc.Lanes()).To(Equal(2))
			Expect(sc.Length()).To(Equal(230.0))
			Expect(sc.SpeedLimit()).To(Equal(30.0))
			Expect(sc.Resolution()).To(Equal(40))
		})

		It("leaves the default network parameters untouched", func() {
			Expect(scenario.DefaultNetParams().AdditionalParams[scenario.KeyLanes]).To(Equal(1.0))
		})

		It("bunches vehicles with random spacing at a 0.1s step", func() {
			initial := x.Env().Scenario().InitialConfig()
			Expect(initial.Bunching).To(Equal(20.0))
			Expect(initial.Spacing).To(Equal("random"))
			Expect(x.Env().SumoParams().SimStep).To(Equal(0.1))
		})

		It("uses the lane changing environment", func() {
			Expect(x.Env().Kind()).To(Equal(env.LaneChangeAccel))
			Expect(x.Env().Scenario().Name()).To(Equal("sugiyama"))
			v, ok := x.Env().Param("lane_change_duration")
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal(5.0))
		})
	})

	Describe("double ring variant", func() {
		It("builds 41 vehicles on a 260m two lane ring", func() {
			x, err := ring.BuildExperiment(nil)
			Expect(err).NotTo(HaveOccurred())

			sc := x.Env().Scenario()
			Expect(sc.Name()).To(Equal("double_ring"))
			Expect(sc.Vehicles().NumVehicles()).To(Equal(41))
			Expect(sc.Lanes()).To(Equal(2))
			Expect(sc.SpeedLimit()).To(Equal(30.0))
			Expect(sc.Length()).To(Equal(260.0))
			Expect(sc.Resolution()).To(Equal(40))
		})
	})

	DescribeTable("render override",
		func(render *bool, expected bool) {
			for _, v := range []ring.Variant{ring.Sugiyama(), ring.DoubleRing()} {
				x, err := ring.Build(v, render)
				Expect(err).NotTo(HaveOccurred())
				Expect(x.Env().SumoParams().Render).To(Equal(expected))
			}
		},
		Entry("absent keeps the default", nil, params.DefaultRender),
		Entry("true", boolPtr(true), true),
		Entry("false", boolPtr(false), false),
	)

	It("builds independent object graphs", func() {
		a, err := ring.BuildExperiment(nil)
		Expect(err).NotTo(HaveOccurred())
		b, err := ring.BuildExperiment(nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(a).NotTo(BeIdenticalTo(b))
		Expect(a.Env()).NotTo(BeIdenticalTo(b.Env()))
		Expect(a.Env().Scenario()).NotTo(BeIdenticalTo(b.Env().Scenario()))

		net := a.Env().Scenario().NetParams()
		net.AdditionalParams[scenario.KeyLanes] = 7
		Expect(b.Env().Scenario().NetParams().AdditionalParams[scenario.KeyLanes]).To(Equal(2.0))
		Expect(a.Env().Scenario().NetParams().AdditionalParams[scenario.KeyLanes]).To(Equal(2.0))

		ep := a.Env().EnvParams()
		ep.AdditionalParams["max_accel"] = 99
		v, _ := b.Env().Param("max_accel")
		Expect(v).To(Equal(3.0))
	})

	It("runs 1 rollout of 1500 steps by default", func() {
		rs := &recordingSimulator{}
		x, err := ring.BuildExperiment(nil, experiment.WithSimulator(rs))
		Expect(err).NotTo(HaveOccurred())
		Expect(rs.calls).To(BeEmpty())

		_, err = x.Run(context.Background(), experiment.DefaultRollouts, experiment.DefaultSteps)
		Expect(err).NotTo(HaveOccurred())
		Expect(rs.calls).To(Equal([]startCall{{rollout: 0, steps: 1500}}))
	})

	Describe("invalid configuration", func() {
		It("rejects zero lanes in the scenario constructor", func() {
			v := ring.DoubleRing()
			v.Lanes = 0
			_, err := ring.Build(v, nil)
			Expect(err).To(MatchError(scenario.ErrInvalidNetParams))
		})

		It("rejects a zero length override instead of using the default", func() {
			zero := 0.0
			_, err := ring.Build(ring.DoubleRing().With(config.Overrides{Length: &zero}), nil)
			Expect(err).To(MatchError(scenario.ErrInvalidNetParams))
		})

		It("rejects a zero speed limit on the default ring", func() {
			zero := 0.0
			_, err := ring.Build(ring.Sugiyama().With(config.Overrides{SpeedLimit: &zero}), nil)
			Expect(err).To(MatchError(scenario.ErrInvalidNetParams))
		})

		It("rejects an unknown spacing mode", func() {
			v := ring.Sugiyama()
			v.Spacing = "zigzag"
			_, err := ring.Build(v, nil)
			Expect(err).To(MatchError(scenario.ErrInvalidInitialConfig))
		})

		It("rejects a non-positive step size", func() {
			v := ring.Sugiyama()
			v.SimStep = 0
			_, err := ring.Build(v, nil)
			Expect(err).To(MatchError(env.ErrInvalidSimStep))
		})

		It("rejects an unknown lane change mode", func() {
			v := ring.Sugiyama()
			v.LaneChangeMode = "reckless"
			_, err := ring.Build(v, nil)
			Expect(err).To(MatchError(params.ErrUnknownLaneChangeMode))
		})
	})
})

var _ = Describe("Variants", func() {
	It("lists both rings", func() {
		Expect(ring.Names()).To(Equal([]string{"double_ring", "sugiyama"}))
	})

	It("looks up fresh copies", func() {
		v, err := ring.Lookup("sugiyama")
		Expect(err).NotTo(HaveOccurred())
		v.NumVehicles = 1

		again, _ := ring.Lookup("sugiyama")
		Expect(again.NumVehicles).To(Equal(45))
	})

	It("fails on unknown names", func() {
		_, err := ring.Lookup("figure_eight")
		Expect(err).To(HaveOccurred())
	})

	It("applies config overrides", func() {
		lanes, step := 1, 0.5
		v := ring.DoubleRing().With(config.Overrides{Lanes: &lanes, SimStep: &step})
		Expect(v.Lanes).To(Equal(1))
		Expect(v.SimStep).To(Equal(0.5))
		Expect(v.NumVehicles).To(Equal(41))
	})

	It("carries simulator binaries into the built environment", func() {
		v := ring.DoubleRing().WithSumo(config.SumoConfig{Binary: "/opt/sumo/bin/sumo", EmissionDir: "emissions"})
		x, err := ring.Build(v, nil)
		Expect(err).NotTo(HaveOccurred())

		sp := x.Env().SumoParams()
		Expect(sp.Binary).To(Equal("/opt/sumo/bin/sumo"))
		Expect(sp.GUIBinary).To(Equal("sumo-gui"))
		Expect(sp.EmissionPath).To(Equal("emissions"))
	})
})
