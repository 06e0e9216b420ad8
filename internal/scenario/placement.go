package scenario

import (
	"math/rand"
)

// Position is the starting slot of one vehicle.
type Position struct {
	VehicleID string
	TypeID    string
	Edge      string
	Lane      int
	Pos       float64
}

// InitialPositions places every vehicle on the ring. Vehicles are dealt
// round-robin across lanes and packed into the first length-bunching
// meters of each lane. The rng drives random spacing and shuffling; it
// may be nil for uniform spacing without shuffle.
func (l *Loop) InitialPositions(rng *rand.Rand) []Position {
	if rng == nil {
		rng = rand.New(rand.NewSource(0))
	}

	ids := l.vehicles.IDs()
	order := make([]int, len(ids))
	for i := range order {
		order[i] = i
	}
	if l.initial.Shuffle {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	perLane := l.vehiclesPerLane()
	available := l.length - l.initial.Bunching
	offsets := make([][]float64, len(perLane))
	for lane, n := range perLane {
		if l.initial.Spacing == SpacingRandom {
			offsets[lane] = randomOffsets(rng, n, available, l.minHeadway())
		} else {
			offsets[lane] = uniformOffsets(n, available)
		}
	}

	positions := make([]Position, 0, len(ids))
	used := len(perLane)
	for slot, vi := range order {
		lane := slot % used
		s := offsets[lane][slot/used]
		edge, pos := l.EdgeAt(s)
		typ, _ := l.vehicles.TypeOf(vi)
		positions = append(positions, Position{
			VehicleID: ids[vi],
			TypeID:    typ.ID,
			Edge:      edge,
			Lane:      lane,
			Pos:       pos,
		})
	}
	return positions
}

func uniformOffsets(n int, available float64) []float64 {
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	h := available / float64(n)
	for i := range out {
		out[i] = float64(i) * h
	}
	return out
}

// randomOffsets draws n headways that each keep at least minHeadway and
// together fill the available distance.
func randomOffsets(rng *rand.Rand, n int, available, minHeadway float64) []float64 {
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	slack := available - float64(n)*minHeadway
	if slack < 0 {
		slack = 0
	}

	weights := make([]float64, n)
	total := 0.0
	for i := range weights {
		weights[i] = rng.ExpFloat64()
		total += weights[i]
	}

	s := 0.0
	for i := range out {
		out[i] = s
		s += minHeadway + slack*weights[i]/total
	}
	return out
}
