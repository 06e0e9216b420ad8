package scenario

import (
	"math"
	"strings"
)

type Node struct {
	ID string
	X  float64
	Y  float64
}

type Point struct {
	X float64
	Y float64
}

type Edge struct {
	ID     string
	From   string
	To     string
	Length float64
	Lanes  int
	Speed  float64
	Shape  []Point
}

// EdgeOrder is the direction of travel around the ring.
var EdgeOrder = []string{"bottom", "right", "top", "left"}

func (l *Loop) Nodes() []Node {
	r := l.Radius()
	return []Node{
		{ID: "bottom", X: 0, Y: -r},
		{ID: "right", X: r, Y: 0},
		{ID: "top", X: 0, Y: r},
		{ID: "left", X: -r, Y: 0},
	}
}

// Edges returns the four quarter arcs. Edge i starts at node i and ends at
// node i+1, with Resolution shape points along the arc.
func (l *Loop) Edges() []Edge {
	r := l.Radius()
	quarter := l.length / 4
	edges := make([]Edge, len(EdgeOrder))
	for i, id := range EdgeOrder {
		start := -math.Pi/2 + float64(i)*math.Pi/2
		shape := make([]Point, l.resolution)
		for k := range shape {
			theta := start + float64(k)*(math.Pi/2)/float64(l.resolution-1)
			shape[k] = Point{X: r * math.Cos(theta), Y: r * math.Sin(theta)}
		}
		edges[i] = Edge{
			ID:     id,
			From:   id,
			To:     EdgeOrder[(i+1)%len(EdgeOrder)],
			Length: quarter,
			Lanes:  l.lanes,
			Speed:  l.speedLimit,
			Shape:  shape,
		}
	}
	return edges
}

// Routes maps each edge to one full lap starting on it.
func (l *Loop) Routes() map[string][]string {
	routes := make(map[string][]string, len(EdgeOrder))
	for i, id := range EdgeOrder {
		lap := make([]string, 0, len(EdgeOrder))
		for k := 0; k < len(EdgeOrder); k++ {
			lap = append(lap, EdgeOrder[(i+k)%len(EdgeOrder)])
		}
		routes[id] = lap
	}
	return routes
}

// EdgeAt converts a distance along the ring into an edge and an offset on it.
func (l *Loop) EdgeAt(s float64) (string, float64) {
	s = math.Mod(s, l.length)
	if s < 0 {
		s += l.length
	}
	quarter := l.length / 4
	idx := int(s / quarter)
	if idx >= len(EdgeOrder) {
		idx = len(EdgeOrder) - 1
	}
	return EdgeOrder[idx], s - float64(idx)*quarter
}

// Distance converts an edge id and an offset on it back into a distance
// along a ring of the given length. Junction edges such as ":right_0"
// count as the start of the edge leaving that node.
func Distance(edge string, pos, length float64) (float64, bool) {
	if strings.HasPrefix(edge, ":") {
		edge = edge[1:]
		if i := strings.IndexByte(edge, '_'); i >= 0 {
			edge = edge[:i]
		}
	}
	quarter := length / 4
	for i, id := range EdgeOrder {
		if id == edge {
			return math.Mod(float64(i)*quarter+pos, length), true
		}
	}
	return 0, false
}
