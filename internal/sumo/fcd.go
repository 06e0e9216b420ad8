package sumo

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/san-kum/sugiyama/internal/sim"
)

type fcdTimestep struct {
	Time     float64      `xml:"time,attr"`
	Vehicles []fcdVehicle `xml:"vehicle"`
}

type fcdVehicle struct {
	ID    string  `xml:"id,attr"`
	X     float64 `xml:"x,attr"`
	Y     float64 `xml:"y,attr"`
	Type  string  `xml:"type,attr"`
	Speed float64 `xml:"speed,attr"`
	Pos   float64 `xml:"pos,attr"`
	Lane  string  `xml:"lane,attr"`
}

// FCDReader streams the timesteps of a floating car data trace.
type FCDReader struct {
	dec  *xml.Decoder
	step int
}

func NewFCDReader(r io.Reader) *FCDReader {
	return &FCDReader{dec: xml.NewDecoder(r)}
}

// Next returns the next timestep, or io.EOF at the end of the trace.
func (f *FCDReader) Next() (sim.Snapshot, error) {
	for {
		tok, err := f.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return sim.Snapshot{}, io.EOF
			}
			return sim.Snapshot{}, fmt.Errorf("fcd: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "timestep" {
			continue
		}

		var ts fcdTimestep
		if err := f.dec.DecodeElement(&ts, &se); err != nil {
			return sim.Snapshot{}, fmt.Errorf("fcd: timestep %d: %w", f.step, err)
		}

		snap := sim.Snapshot{
			Step:     f.step,
			Time:     ts.Time,
			Vehicles: make([]sim.VehicleState, len(ts.Vehicles)),
		}
		for i, v := range ts.Vehicles {
			edge, lane := splitLane(v.Lane)
			snap.Vehicles[i] = sim.VehicleState{
				ID:    v.ID,
				Type:  v.Type,
				Edge:  edge,
				Lane:  lane,
				Pos:   v.Pos,
				Speed: v.Speed,
				X:     v.X,
				Y:     v.Y,
			}
		}
		f.step++
		return snap, nil
	}
}

// splitLane splits a SUMO lane id such as "bottom_1" or ":right_0_0"
// into its edge id and lane index.
func splitLane(id string) (string, int) {
	i := strings.LastIndexByte(id, '_')
	if i < 0 {
		return id, 0
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return id, 0
	}
	return id[:i], n
}

// fcdSession replays a finished rollout's trace.
type fcdSession struct {
	file   *os.File
	reader *FCDReader
}

func openSession(path string) (*fcdSession, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &fcdSession{file: f, reader: NewFCDReader(f)}, nil
}

func (s *fcdSession) Step() (sim.Snapshot, error) { return s.reader.Next() }
func (s *fcdSession) Close() error                { return s.file.Close() }
