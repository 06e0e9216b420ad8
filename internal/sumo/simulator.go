package sumo

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/san-kum/sugiyama/internal/env"
	"github.com/san-kum/sugiyama/internal/sim"
)

const (
	DefaultNetconvert = "netconvert"
	DefaultWorkDir    = ".sugiyama/work"
)

// Simulator runs each rollout as a batch SUMO process and replays its
// floating car data trace step by step.
type Simulator struct {
	runner     Runner
	netconvert string
	workDir    string
	log        *slog.Logger
}

type Option func(*Simulator)

func WithRunner(r Runner) Option       { return func(s *Simulator) { s.runner = r } }
func WithNetconvert(bin string) Option { return func(s *Simulator) { s.netconvert = bin } }
func WithWorkDir(dir string) Option    { return func(s *Simulator) { s.workDir = dir } }
func WithLogger(l *slog.Logger) Option { return func(s *Simulator) { s.log = l } }

func New(opts ...Option) *Simulator {
	s := &Simulator{
		netconvert: DefaultNetconvert,
		workDir:    DefaultWorkDir,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = ExecRunner{Log: s.log}
	}
	return s
}

func (s *Simulator) Start(ctx context.Context, e *env.Env, rollout int, steps int) (sim.Session, error) {
	if steps <= 0 {
		return nil, fmt.Errorf("sumo: steps must be positive, got %d", steps)
	}
	dir := filepath.Join(s.workDir, fmt.Sprintf("%s_rollout_%d", e.Scenario().Name(), rollout))

	files, err := WriteInputs(dir, e, steps)
	if err != nil {
		return nil, fmt.Errorf("sumo: %w", err)
	}

	if err := s.runner.Run(ctx, dir, s.netconvert,
		"--node-files", filepath.Base(files.Nodes),
		"--edge-files", filepath.Base(files.Edges),
		"--output-file", filepath.Base(files.Net),
		"--no-turnarounds", "true",
	); err != nil {
		return nil, fmt.Errorf("sumo: build network: %w", err)
	}

	args := []string{
		"-c", filepath.Base(files.Config),
		"--fcd-output", filepath.Base(files.FCD),
		"--no-step-log", "true",
	}
	sp := e.SumoParams()
	if sp.Render {
		args = append(args, "--start", "--quit-on-end")
	}

	s.log.Info("running simulator",
		"scenario", e.Scenario().Name(),
		"rollout", rollout,
		"steps", steps,
		"sim_step", sp.SimStep,
		"render", sp.Render,
		"seed", sp.Seed,
	)
	for _, t := range e.Scenario().Vehicles().Types() {
		s.log.Debug("vehicle type",
			"id", t.ID,
			"count", t.NumVehicles,
			"lane_change_mode", t.LaneChange.Mode,
			"lane_change_bitmask", t.LaneChange.Bitmask(),
		)
	}
	if err := s.runner.Run(ctx, dir, sp.Executable(), args...); err != nil {
		return nil, fmt.Errorf("sumo: simulate: %w", err)
	}

	sess, err := openSession(files.FCD)
	if err != nil {
		return nil, fmt.Errorf("sumo: open trace: %w", err)
	}
	return sess, nil
}
