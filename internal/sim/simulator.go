package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Recorder drains a session step by step, feeding metrics and observers
// and keeping a per-step summary.
type Recorder struct {
	metrics   []Metric
	observers []Observer
}

func NewRecorder() *Recorder {
	return &Recorder{
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
	}
}

func (r *Recorder) AddMetric(m Metric)     { r.metrics = append(r.metrics, m) }
func (r *Recorder) AddObserver(o Observer) { r.observers = append(r.observers, o) }

func (r *Recorder) Run(ctx context.Context, sess Session, index int, cfg Config) (*Rollout, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	result := &Rollout{
		Index:          index,
		StepsRequested: cfg.Steps,
		Samples:        make([]Sample, 0, cfg.Steps),
		Metrics:        make(map[string]float64),
	}

	for _, m := range r.metrics {
		m.Reset()
	}

	lastTime := 0.0
	for i := 0; i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		snap, err := sess.Step()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, &StepError{Rollout: index, Step: i, Time: lastTime, Err: err}
		}
		lastTime = snap.Time

		for _, m := range r.metrics {
			m.Observe(snap)
		}
		for _, obs := range r.observers {
			obs.OnStep(index, snap)
		}

		result.Samples = append(result.Samples, Sample{
			Time:      snap.Time,
			MeanSpeed: snap.MeanSpeed(),
			MinSpeed:  snap.MinSpeed(),
			Stopped:   snap.Stopped(),
			Vehicles:  len(snap.Vehicles),
		})
		result.StepsTaken++
	}

	for _, m := range r.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	return result, nil
}

func validateConfig(cfg Config) error {
	if cfg.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", cfg.Steps)
	}
	return nil
}
