package metrics

import (
	"math"

	"github.com/san-kum/sugiyama/internal/sim"
)

// MeanSpeed is the time average of the fleet mean speed.
type MeanSpeed struct {
	sum     float64
	samples int
}

func NewMeanSpeed() *MeanSpeed { return &MeanSpeed{} }

func (m *MeanSpeed) Name() string { return "mean_speed" }

func (m *MeanSpeed) Observe(s sim.Snapshot) {
	if len(s.Vehicles) == 0 {
		return
	}
	m.sum += s.MeanSpeed()
	m.samples++
}

func (m *MeanSpeed) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *MeanSpeed) Reset() {
	m.sum = 0
	m.samples = 0
}

// SpeedSpread is the time average of the standard deviation of vehicle
// speeds. It stays near zero in free flow and grows once stop-and-go
// waves form.
type SpeedSpread struct {
	sum     float64
	samples int
}

func NewSpeedSpread() *SpeedSpread { return &SpeedSpread{} }

func (m *SpeedSpread) Name() string { return "speed_spread" }

func (m *SpeedSpread) Observe(s sim.Snapshot) {
	if len(s.Vehicles) == 0 {
		return
	}
	mean := s.MeanSpeed()
	v := 0.0
	for _, veh := range s.Vehicles {
		d := veh.Speed - mean
		v += d * d
	}
	m.sum += math.Sqrt(v / float64(len(s.Vehicles)))
	m.samples++
}

func (m *SpeedSpread) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *SpeedSpread) Reset() {
	m.sum = 0
	m.samples = 0
}

// MinSpeed is the lowest speed any vehicle reached after warmup seconds.
type MinSpeed struct {
	warmup float64
	min    float64
	seen   bool
}

func NewMinSpeed(warmup float64) *MinSpeed { return &MinSpeed{warmup: warmup} }

func (m *MinSpeed) Name() string { return "min_speed" }

func (m *MinSpeed) Observe(s sim.Snapshot) {
	if s.Time < m.warmup || len(s.Vehicles) == 0 {
		return
	}
	v := s.MinSpeed()
	if !m.seen || v < m.min {
		m.min = v
		m.seen = true
	}
}

func (m *MinSpeed) Value() float64 { return m.min }

func (m *MinSpeed) Reset() {
	m.min = 0
	m.seen = false
}
