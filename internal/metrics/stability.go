package metrics

import (
	"github.com/san-kum/sugiyama/internal/sim"
)

// JamFraction is the fraction of observed steps, after warmup seconds, in
// which at least one vehicle was stopped.
type JamFraction struct {
	warmup  float64
	jammed  int
	samples int
}

func NewJamFraction(warmup float64) *JamFraction {
	return &JamFraction{warmup: warmup}
}

func (j *JamFraction) Name() string {
	return "jam_fraction"
}

func (j *JamFraction) Observe(s sim.Snapshot) {
	if s.Time < j.warmup {
		return
	}
	j.samples++
	if s.Stopped() > 0 {
		j.jammed++
	}
}

func (j *JamFraction) Value() float64 {
	if j.samples == 0 {
		return 0
	}
	return float64(j.jammed) / float64(j.samples)
}

func (j *JamFraction) Reset() {
	j.jammed = 0
	j.samples = 0
}

// StoppedFraction is the time average of the share of vehicles that are
// stopped.
type StoppedFraction struct {
	sum     float64
	samples int
}

func NewStoppedFraction() *StoppedFraction { return &StoppedFraction{} }

func (f *StoppedFraction) Name() string { return "stopped_fraction" }

func (f *StoppedFraction) Observe(s sim.Snapshot) {
	if len(s.Vehicles) == 0 {
		return
	}
	f.sum += float64(s.Stopped()) / float64(len(s.Vehicles))
	f.samples++
}

func (f *StoppedFraction) Value() float64 {
	if f.samples == 0 {
		return 0
	}
	return f.sum / float64(f.samples)
}

func (f *StoppedFraction) Reset() {
	f.sum = 0
	f.samples = 0
}
