package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/san-kum/sugiyama/internal/sim"
)

var traceHeader = []string{"step", "time", "id", "type", "edge", "lane", "pos", "speed", "x", "y"}

type traceSink struct {
	f *os.File
	w *csv.Writer
}

// TraceWriter is a sim.Observer writing every vehicle of every step to
// trace_<rollout>.csv. It is safe for concurrent rollouts; the first write
// error stops further writes and is returned by Close.
type TraceWriter struct {
	mu    sync.Mutex
	dir   string
	files map[int]*traceSink
	err   error
}

func NewTraceWriter(dir string) *TraceWriter {
	return &TraceWriter{dir: dir, files: make(map[int]*traceSink)}
}

func (t *TraceWriter) OnStep(rollout int, s sim.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return
	}

	tf, ok := t.files[rollout]
	if !ok {
		f, err := os.Create(filepath.Join(t.dir, traceFile(rollout)))
		if err != nil {
			t.err = err
			return
		}
		tf = &traceSink{f: f, w: csv.NewWriter(f)}
		t.files[rollout] = tf
		if err := tf.w.Write(traceHeader); err != nil {
			t.err = err
			return
		}
	}

	step := strconv.Itoa(s.Step)
	tm := strconv.FormatFloat(s.Time, 'f', 2, 64)
	for _, v := range s.Vehicles {
		row := []string{
			step,
			tm,
			v.ID,
			v.Type,
			v.Edge,
			strconv.Itoa(v.Lane),
			strconv.FormatFloat(v.Pos, 'f', 2, 64),
			strconv.FormatFloat(v.Speed, 'f', 3, 64),
			strconv.FormatFloat(v.X, 'f', 2, 64),
			strconv.FormatFloat(v.Y, 'f', 2, 64),
		}
		if err := tf.w.Write(row); err != nil {
			t.err = err
			return
		}
	}
}

func (t *TraceWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, tf := range t.files {
		tf.w.Flush()
		if err := tf.w.Error(); err != nil && t.err == nil {
			t.err = err
		}
		if err := tf.f.Close(); err != nil && t.err == nil {
			t.err = err
		}
	}
	t.files = map[int]*traceSink{}
	return t.err
}

// LoadTrace reads the vehicle trace of one rollout back into snapshots.
func (s *Store) LoadTrace(runID string, rollout int) ([]sim.Snapshot, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, traceFile(rollout)))
	if err != nil {
		return nil, err
	}

	var out []sim.Snapshot
	for i, rec := range records {
		if len(rec) < len(traceHeader) {
			return nil, fmt.Errorf("%s row %d: expected %d fields, got %d", traceFile(rollout), i+1, len(traceHeader), len(rec))
		}
		var p parser
		step := p.int(rec[0])
		tm := p.float(rec[1])
		v := sim.VehicleState{
			ID:    rec[2],
			Type:  rec[3],
			Edge:  rec[4],
			Lane:  p.int(rec[5]),
			Pos:   p.float(rec[6]),
			Speed: p.float(rec[7]),
			X:     p.float(rec[8]),
			Y:     p.float(rec[9]),
		}
		if p.err != nil {
			return nil, fmt.Errorf("%s row %d: %w", traceFile(rollout), i+1, p.err)
		}

		if len(out) == 0 || out[len(out)-1].Step != step {
			out = append(out, sim.Snapshot{Step: step, Time: tm})
		}
		last := &out[len(out)-1]
		last.Vehicles = append(last.Vehicles, v)
	}
	return out, nil
}
