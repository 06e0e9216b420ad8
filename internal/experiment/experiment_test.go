package experiment

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/san-kum/sugiyama/internal/env"
	"github.com/san-kum/sugiyama/internal/params"
	"github.com/san-kum/sugiyama/internal/scenario"
	"github.com/san-kum/sugiyama/internal/sim"
)

type request struct {
	rollout int
	steps   int
	seed    int64
}

type fakeSimulator struct {
	mu       sync.Mutex
	requests []request
	fail     error
}

func (f *fakeSimulator) Start(ctx context.Context, e *env.Env, rollout, steps int) (sim.Session, error) {
	f.mu.Lock()
	f.requests = append(f.requests, request{rollout: rollout, steps: steps, seed: e.SumoParams().Seed})
	f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	return &fakeSession{steps: steps, dt: e.SumoParams().SimStep}, nil
}

type fakeSession struct {
	step  int
	steps int
	dt    float64
}

func (s *fakeSession) Step() (sim.Snapshot, error) {
	if s.step >= s.steps {
		return sim.Snapshot{}, io.EOF
	}
	snap := sim.Snapshot{
		Step: s.step,
		Time: float64(s.step) * s.dt,
		Vehicles: []sim.VehicleState{
			{ID: "idm_0", Speed: 4},
			{ID: "idm_1", Speed: 6},
		},
	}
	s.step++
	return snap, nil
}

func (s *fakeSession) Close() error { return nil }

func newEnv(t *testing.T) *env.Env {
	t.Helper()
	lc, err := params.NewLaneChangeParams("strategic")
	if err != nil {
		t.Fatal(err)
	}
	v := params.NewVehicles()
	if err := v.Add(params.VehicleType{
		ID:          "idm",
		Controller:  params.Controller{Kind: params.IDM},
		LaneChange:  lc,
		Router:      params.Router{Kind: params.ContinuousRouter},
		NumVehicles: 2,
	}); err != nil {
		t.Fatal(err)
	}
	sc, err := scenario.NewLoop("ring", v, scenario.DefaultNetParams(), params.NewInitialConfig(0, scenario.SpacingUniform))
	if err != nil {
		t.Fatal(err)
	}
	e, err := env.New(env.LaneChangeAccel, params.NewEnvParams(env.LaneChangeAdditionalParams()), params.NewSumoParams(), sc)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestRunRequestsExactCounts(t *testing.T) {
	fs := &fakeSimulator{}
	x := New(newEnv(t), WithSimulator(fs))

	res, err := x.Run(context.Background(), DefaultRollouts, DefaultSteps)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(fs.requests) != 1 {
		t.Fatalf("expected 1 rollout started, got %d", len(fs.requests))
	}
	if fs.requests[0].steps != 1500 {
		t.Errorf("expected 1500 steps requested, got %d", fs.requests[0].steps)
	}
	if len(res.Rollouts) != 1 || res.Rollouts[0].StepsTaken != 1500 {
		t.Errorf("unexpected rollouts: %+v", res.Rollouts)
	}
	if res.Scenario != "ring" || res.Env != "LaneChangeAccelEnv" {
		t.Errorf("unexpected result labels: %s/%s", res.Scenario, res.Env)
	}
}

func TestRunRejectsCounts(t *testing.T) {
	x := New(newEnv(t), WithSimulator(&fakeSimulator{}))

	tests := []struct {
		rollouts, steps int
	}{
		{0, 10},
		{1, 0},
		{-1, -1},
	}
	for _, tt := range tests {
		if _, err := x.Run(context.Background(), tt.rollouts, tt.steps); !errors.Is(err, ErrInvalidCount) {
			t.Errorf("Run(%d, %d): expected ErrInvalidCount, got %v", tt.rollouts, tt.steps, err)
		}
	}
}

func TestRunParallelSeeds(t *testing.T) {
	factory, err := NewRegistry().DefaultMetrics()
	if err != nil {
		t.Fatalf("DefaultMetrics failed: %v", err)
	}
	fs := &fakeSimulator{}
	x := New(newEnv(t),
		WithSimulator(fs),
		WithParallel(3),
		WithSeed(100),
		WithMetrics(factory),
	)

	res, err := x.Run(context.Background(), 4, 20)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	seeds := map[int]int64{}
	for _, r := range fs.requests {
		seeds[r.rollout] = r.seed
	}
	for i := 0; i < 4; i++ {
		if seeds[i] != int64(100+i) {
			t.Errorf("rollout %d: expected seed %d, got %d", i, 100+i, seeds[i])
		}
		if res.Rollouts[i].Index != i {
			t.Errorf("rollouts out of order at %d", i)
		}
	}

	speeds := res.Metric("mean_speed")
	if len(speeds) != 4 {
		t.Fatalf("expected mean_speed for 4 rollouts, got %d", len(speeds))
	}
	for _, v := range speeds {
		if v != 5 {
			t.Errorf("expected mean speed 5, got %f", v)
		}
	}
}

func TestRunStartFailure(t *testing.T) {
	boom := errors.New("sumo not found")
	x := New(newEnv(t), WithSimulator(&fakeSimulator{fail: boom}))

	if _, err := x.Run(context.Background(), 1, 10); !errors.Is(err, boom) {
		t.Errorf("expected wrapped start error, got %v", err)
	}
}

func TestNewDefaultsToSumo(t *testing.T) {
	x := New(newEnv(t))
	if x.Simulator() == nil {
		t.Fatal("expected a default simulator")
	}
	if x.Env().Scenario().Name() != "ring" {
		t.Error("environment not kept")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if _, err := r.GetSimulator("sumo", Backend{}); err != nil {
		t.Errorf("sumo backend missing: %v", err)
	}
	if _, err := r.GetSimulator("carla", Backend{}); err == nil {
		t.Error("expected error for unknown simulator")
	}
	if len(r.ListEnvs()) != 2 {
		t.Errorf("expected 2 environments, got %v", r.ListEnvs())
	}

	fs := &fakeSimulator{}
	r.Register("fake", func(Backend) sim.Simulator { return fs })
	got, err := r.GetSimulator("fake", Backend{})
	if err != nil || got != fs {
		t.Errorf("registered simulator not returned: %v", err)
	}
	names := r.ListSimulators()
	if len(names) != 2 || names[0] != "fake" || names[1] != "sumo" {
		t.Errorf("unexpected simulators: %v", names)
	}

	factory, err := r.DefaultMetrics()
	if err != nil {
		t.Fatalf("DefaultMetrics failed: %v", err)
	}
	if a, b := factory(), factory(); len(a) == 0 || len(a) != len(b) || &a[0] == &b[0] {
		t.Error("expected a fresh non-empty metric set per call")
	}
}
