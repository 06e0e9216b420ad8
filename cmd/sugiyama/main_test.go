package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/sugiyama/internal/config"
	"github.com/san-kum/sugiyama/internal/env"
	"github.com/san-kum/sugiyama/internal/experiment"
	"github.com/san-kum/sugiyama/internal/logging"
	"github.com/san-kum/sugiyama/internal/sim"
	"github.com/san-kum/sugiyama/internal/storage"
	"github.com/spf13/cobra"
)

// steadySimulator moves every vehicle at 5 m/s without starting SUMO.
type steadySimulator struct{}

func (steadySimulator) Start(ctx context.Context, e *env.Env, rollout, steps int) (sim.Session, error) {
	return &steadySession{n: e.Scenario().Vehicles().NumVehicles(), steps: steps}, nil
}

type steadySession struct {
	n, step, steps int
}

func (s *steadySession) Step() (sim.Snapshot, error) {
	if s.step >= s.steps {
		return sim.Snapshot{}, io.EOF
	}
	snap := sim.Snapshot{Step: s.step, Time: float64(s.step) * 0.1, Vehicles: make([]sim.VehicleState, s.n)}
	for i := range snap.Vehicles {
		snap.Vehicles[i].ID = fmt.Sprintf("idm_%d", i)
		snap.Vehicles[i].Edge = "bottom"
		snap.Vehicles[i].Speed = 5
	}
	s.step++
	return snap, nil
}

func (s *steadySession) Close() error { return nil }

func init() {
	registry.Register("steady", func(experiment.Backend) sim.Simulator { return steadySimulator{} })
}

// parse builds a fresh command tree and parses args against the named
// subcommand without running it.
func parse(t *testing.T, name string, args ...string) *cobra.Command {
	t.Helper()
	root := newRootCmd()
	cmd, _, err := root.Find([]string{name})
	if err != nil {
		t.Fatalf("find %s: %v", name, err)
	}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return cmd
}

func TestLoadConfigDefaults(t *testing.T) {
	cmd := parse(t, "run")
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Variant != "double_ring" || cfg.Rollouts != 1 || cfg.Steps != 1500 {
		t.Errorf("expected one double_ring rollout of 1500 steps, got %+v", cfg)
	}
	if cfg.Render != nil {
		t.Errorf("render should stay unset, got %v", *cfg.Render)
	}
	if cfg.Simulator != config.DefaultSimulator || cfg.Sumo.WorkDir != config.DefaultWorkDir {
		t.Errorf("unexpected backend settings: %q %+v", cfg.Simulator, cfg.Sumo)
	}
}

func TestLoadConfigRender(t *testing.T) {
	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"--render"}, true},
		{[]string{"--render=false"}, false},
	}
	for _, tt := range tests {
		cfg, err := loadConfig(parse(t, "run", tt.args...), nil)
		if err != nil {
			t.Fatalf("%v: loadConfig failed: %v", tt.args, err)
		}
		if cfg.Render == nil {
			t.Fatalf("%v: render left unset", tt.args)
		}
		if *cfg.Render != tt.want {
			t.Errorf("%v: render = %v, want %v", tt.args, *cfg.Render, tt.want)
		}
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	data := []byte(`variant: sugiyama
rollouts: 3
steps: 200
parallel: 2
seed: 7
sumo:
  binary: /usr/local/bin/sumo
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name                      string
		args                      []string
		rollouts, steps, parallel int
	}{
		{"file", []string{"--config", path}, 3, 200, 2},
		{"preset over file", []string{"--config", path, "--preset", "ensemble"}, 8, 1500, 4},
		{"flag over preset", []string{"--config", path, "--preset", "ensemble", "--steps", "50"}, 8, 50, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(parse(t, "run", tt.args...), nil)
			if err != nil {
				t.Fatalf("loadConfig failed: %v", err)
			}
			if cfg.Variant != "sugiyama" {
				t.Errorf("variant = %q, want sugiyama", cfg.Variant)
			}
			if cfg.Rollouts != tt.rollouts || cfg.Steps != tt.steps || cfg.Parallel != tt.parallel {
				t.Errorf("got %d x %d (parallel %d), want %d x %d (parallel %d)",
					cfg.Rollouts, cfg.Steps, cfg.Parallel, tt.rollouts, tt.steps, tt.parallel)
			}
			if cfg.Seed != 7 {
				t.Errorf("seed = %d, want 7 from the file", cfg.Seed)
			}
			if cfg.Sumo.Binary != "/usr/local/bin/sumo" {
				t.Errorf("sumo binary = %q", cfg.Sumo.Binary)
			}
		})
	}
}

func TestLoadConfigArgsAndOverrides(t *testing.T) {
	cmd := parse(t, "run", "--lane-change", "no_lat_collide", "--sumo-binary", "/opt/sumo", "--data", "runs")
	cfg, err := loadConfig(cmd, []string{"sugiyama"})
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Variant != "sugiyama" {
		t.Errorf("variant = %q", cfg.Variant)
	}
	if cfg.Overrides.LaneChangeMode == nil || *cfg.Overrides.LaneChangeMode != "no_lat_collide" {
		t.Errorf("lane change override not set: %+v", cfg.Overrides)
	}
	if cfg.Sumo.Binary != "/opt/sumo" || cfg.DataDir != "runs" {
		t.Errorf("flags not applied: %+v %q", cfg.Sumo, cfg.DataDir)
	}
}

func TestLoadConfigUnknownPreset(t *testing.T) {
	if _, err := loadConfig(parse(t, "run", "--preset", "missing"), nil); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestNewRunnerSumoFlags(t *testing.T) {
	for _, name := range []string{"batch", "sweep"} {
		t.Run(name, func(t *testing.T) {
			cmd := parse(t, name,
				"--sumo-binary", "/opt/sumo/bin/sumo",
				"--sumo-gui-binary", "/opt/sumo/bin/sumo-gui",
				"--netconvert-binary", "/opt/sumo/bin/netconvert",
				"--work-dir", "work",
			)
			r, err := newRunner(cmd, logging.NewLogger("error", io.Discard))
			if err != nil {
				t.Fatalf("newRunner failed: %v", err)
			}
			want := config.SumoConfig{
				Binary:     "/opt/sumo/bin/sumo",
				GUIBinary:  "/opt/sumo/bin/sumo-gui",
				Netconvert: "/opt/sumo/bin/netconvert",
				WorkDir:    "work",
			}
			if r.Sumo != want {
				t.Errorf("Sumo = %+v, want %+v", r.Sumo, want)
			}
			if r.Store == nil {
				t.Error("runs would not be stored")
			}
		})
	}
}

func TestNewRunnerUnknownSimulator(t *testing.T) {
	cmd := parse(t, "batch", "--simulator", "carla")
	if _, err := newRunner(cmd, logging.NewLogger("error", io.Discard)); err == nil {
		t.Error("expected error for unknown simulator")
	}
}

func TestRunStoresTraces(t *testing.T) {
	dataDir := t.TempDir()
	root := newRootCmd()
	root.SetArgs([]string{"run", "sugiyama",
		"--simulator", "steady",
		"--rollouts", "2",
		"--steps", "5",
		"--data", dataDir,
		"--work-dir", t.TempDir(),
		"--log-level", "error",
	})
	if err := root.Execute(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	st := storage.New(dataDir)
	id, err := st.Latest()
	if err != nil {
		t.Fatalf("no stored run: %v", err)
	}
	meta, err := st.Load(id)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Rollouts != 2 || meta.Steps != 5 || meta.Vehicles != 45 || meta.Length != 230 {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	frames, err := st.LoadTrace(id, 1)
	if err != nil {
		t.Fatalf("no trace: %v", err)
	}
	if len(frames) != 5 || len(frames[0].Vehicles) != 45 {
		t.Errorf("unexpected trace of %d frames", len(frames))
	}
}

func TestBatchStoresTraces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.yaml")
	data := []byte(`name: rings
steps:
  - variant: double_ring
    steps: 3
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	dataDir := filepath.Join(dir, "runs")

	root := newRootCmd()
	root.SetArgs([]string{"batch", path,
		"--simulator", "steady",
		"--data", dataDir,
		"--work-dir", filepath.Join(dir, "work"),
		"--log-level", "error",
	})
	if err := root.Execute(); err != nil {
		t.Fatalf("batch failed: %v", err)
	}

	st := storage.New(dataDir)
	id, err := st.Latest()
	if err != nil {
		t.Fatalf("no stored run: %v", err)
	}
	frames, err := st.LoadTrace(id, 0)
	if err != nil {
		t.Fatalf("no trace: %v", err)
	}
	if len(frames) != 3 || len(frames[0].Vehicles) != 41 {
		t.Errorf("unexpected trace of %d frames", len(frames))
	}
}
