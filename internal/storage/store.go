package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/sugiyama/internal/analysis"
	"github.com/san-kum/sugiyama/internal/experiment"
	"github.com/san-kum/sugiyama/internal/sim"
)

var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string                      `json:"id"`
	Scenario  string                      `json:"scenario"`
	Env       string                      `json:"env"`
	Timestamp time.Time                   `json:"timestamp"`
	Elapsed   float64                     `json:"elapsed_seconds"`
	Seed      int64                       `json:"seed"`
	SimStep   float64                     `json:"sim_step"`
	Steps     int                         `json:"steps"`
	Rollouts  int                         `json:"rollouts"`
	Vehicles  int                         `json:"vehicles"`
	Lanes     int                         `json:"lanes"`
	Length    float64                     `json:"length"`
	MaxSpeed  float64                     `json:"speed_limit"`
	Metrics   []map[string]float64        `json:"metrics"`
	Summary   map[string]analysis.Summary `json:"summary"`
}

// Run is a run directory being filled. Create it before the experiment
// starts so its trace can observe the rollouts.
type Run struct {
	ID    string
	Dir   string
	trace *TraceWriter
}

// Create makes a new run directory named after the scenario.
func (s *Store) Create(scenario string) (*Run, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	base := fmt.Sprintf("%s_%d", scenario, time.Now().Unix())
	id := base
	for i := 1; ; i++ {
		err := os.Mkdir(filepath.Join(s.baseDir, id), 0755)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return nil, err
		}
		id = fmt.Sprintf("%s_%d", base, i)
	}
	dir := filepath.Join(s.baseDir, id)
	return &Run{ID: id, Dir: dir, trace: NewTraceWriter(dir)}, nil
}

// Trace returns the observer that writes vehicle traces of each rollout.
func (r *Run) Trace() *TraceWriter { return r.trace }

// Finish closes the traces and writes the metadata and per-rollout series.
func (r *Run) Finish(res *experiment.Result, e RunInfo) error {
	traceErr := r.trace.Close()

	meta := RunMetadata{
		ID:        r.ID,
		Scenario:  res.Scenario,
		Env:       res.Env,
		Timestamp: res.Started,
		Elapsed:   res.Finished.Sub(res.Started).Seconds(),
		Seed:      e.Seed,
		SimStep:   res.SimStep,
		Steps:     res.Steps,
		Rollouts:  len(res.Rollouts),
		Vehicles:  e.Vehicles,
		Lanes:     e.Lanes,
		Length:    e.Length,
		MaxSpeed:  e.SpeedLimit,
		Metrics:   make([]map[string]float64, len(res.Rollouts)),
		Summary:   make(map[string]analysis.Summary),
	}

	names := map[string]bool{}
	for i, ro := range res.Rollouts {
		if ro == nil {
			continue
		}
		meta.Metrics[i] = ro.Metrics
		for n := range ro.Metrics {
			names[n] = true
		}
		if err := writeSeries(filepath.Join(r.Dir, seriesFile(i)), ro.Samples); err != nil {
			return err
		}
	}
	for n := range names {
		meta.Summary[n] = analysis.Summarize(res.Metric(n))
	}

	if err := writeJSON(filepath.Join(r.Dir, "metadata.json"), meta); err != nil {
		return err
	}
	return traceErr
}

// RunInfo is what the metadata records about the scenario beyond the
// experiment result.
type RunInfo struct {
	Seed       int64
	Vehicles   int
	Lanes      int
	Length     float64
	SpeedLimit float64
}

func seriesFile(rollout int) string { return fmt.Sprintf("rollout_%d.csv", rollout) }
func traceFile(rollout int) string  { return fmt.Sprintf("trace_%d.csv", rollout) }

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var seriesHeader = []string{"time", "mean_speed", "min_speed", "stopped", "vehicles"}

func writeSeries(path string, samples []sim.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(seriesHeader); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{
			strconv.FormatFloat(s.Time, 'f', 6, 64),
			strconv.FormatFloat(s.MeanSpeed, 'f', 6, 64),
			strconv.FormatFloat(s.MinSpeed, 'f', 6, 64),
			strconv.Itoa(s.Stopped),
			strconv.Itoa(s.Vehicles),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns the stored runs, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}

		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	metaPath := filepath.Join(s.baseDir, runID, "metadata.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// Latest returns the id of the most recent run.
func (s *Store) Latest() (string, error) {
	runs, err := s.List()
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", ErrRunNotFound
	}
	return runs[len(runs)-1].ID, nil
}

// LoadSeries reads the per-step summary of one rollout.
func (s *Store) LoadSeries(runID string, rollout int) ([]sim.Sample, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, seriesFile(rollout)))
	if err != nil {
		return nil, err
	}

	samples := make([]sim.Sample, 0, len(records))
	for i, rec := range records {
		if len(rec) < len(seriesHeader) {
			return nil, fmt.Errorf("%s row %d: expected %d fields, got %d", seriesFile(rollout), i+1, len(seriesHeader), len(rec))
		}
		var p parser
		samples = append(samples, sim.Sample{
			Time:      p.float(rec[0]),
			MeanSpeed: p.float(rec[1]),
			MinSpeed:  p.float(rec[2]),
			Stopped:   p.int(rec[3]),
			Vehicles:  p.int(rec[4]),
		})
		if p.err != nil {
			return nil, fmt.Errorf("%s row %d: %w", seriesFile(rollout), i+1, p.err)
		}
	}
	return samples, nil
}

// readCSV returns the records of a file without its header.
func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return [][]string{}, nil
	}
	return records[1:], nil
}

// parser keeps the first conversion error.
type parser struct {
	err error
}

func (p *parser) float(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && p.err == nil {
		p.err = err
	}
	return v
}

func (p *parser) int(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil && p.err == nil {
		p.err = err
	}
	return v
}
