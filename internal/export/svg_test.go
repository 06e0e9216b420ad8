package export

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/san-kum/sugiyama/internal/sim"
)

func wellFormed(t *testing.T, svg string) {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(svg))
	for {
		_, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			t.Fatalf("svg is not well formed: %v", err)
		}
	}
}

func TestSeriesToSVG(t *testing.T) {
	svg := SeriesToSVG([]float64{0, 0.1, 0.2}, []float64{3, 1, 2}, 200, 100, "#00ff88")
	wellFormed(t, svg)
	if !strings.Contains(svg, "L200.0,") {
		t.Error("last point should sit on the right edge")
	}
	if SeriesToSVG([]float64{0}, []float64{1}, 10, 10, "red") != "" {
		t.Error("single point should give empty output")
	}
}

func TestRingToSVG(t *testing.T) {
	snap := sim.Snapshot{Vehicles: []sim.VehicleState{
		{ID: "idm_0", Edge: "bottom", Pos: 0, Speed: 0},
		{ID: "idm_1", Edge: "top", Pos: 0, Speed: 30},
		{ID: "idm_2", Edge: "elsewhere", Pos: 0, Speed: 30},
	}}
	svg := RingToSVG(snap, 260, 30, 400)
	wellFormed(t, svg)

	if !strings.Contains(svg, `fill="#ff0044"`) {
		t.Error("stopped vehicle should be red")
	}
	if !strings.Contains(svg, `fill="#00ff44"`) {
		t.Error("vehicle at the limit should be green")
	}
	// ring outline plus two placed vehicles
	if n := strings.Count(svg, "<circle"); n != 3 {
		t.Errorf("expected 3 circles, got %d", n)
	}
	// bottom of the ring is below the center in screen coordinates
	if !strings.Contains(svg, `cx="200.0" cy="360.0"`) {
		t.Errorf("first vehicle misplaced:\n%s", svg)
	}
}
