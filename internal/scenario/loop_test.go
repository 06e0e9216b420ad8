package scenario

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/san-kum/sugiyama/internal/params"
)

func fleet(t *testing.T, n int) *params.Vehicles {
	t.Helper()
	lc, err := params.NewLaneChangeParams("strategic")
	if err != nil {
		t.Fatal(err)
	}
	v := params.NewVehicles()
	if err := v.Add(params.VehicleType{
		ID:          "idm",
		Controller:  params.Controller{Kind: params.IDM},
		LaneChange:  lc,
		Router:      params.Router{Kind: params.ContinuousRouter},
		NumVehicles: n,
	}); err != nil {
		t.Fatal(err)
	}
	return v
}

func doubleRingNet() params.NetParams {
	return params.NewNetParams(map[string]float64{
		KeyLength:     260,
		KeyLanes:      2,
		KeySpeedLimit: 30,
		KeyResolution: 40,
	})
}

func TestDefaultNetParamsFresh(t *testing.T) {
	a := DefaultNetParams()
	a.AdditionalParams[KeyLanes] = 2

	b := DefaultNetParams()
	if lanes, _ := b.Get(KeyLanes); lanes != 1 {
		t.Errorf("defaults were mutated through a returned value, lanes = %f", lanes)
	}
	if length, _ := b.Get(KeyLength); length != 230 {
		t.Errorf("expected default length 230, got %f", length)
	}
}

func TestNewLoop(t *testing.T) {
	l, err := NewLoop("double_ring", fleet(t, 41), doubleRingNet(), params.NewInitialConfig(20, SpacingRandom))
	if err != nil {
		t.Fatalf("NewLoop failed: %v", err)
	}
	if l.Name() != "double_ring" {
		t.Errorf("expected name double_ring, got %s", l.Name())
	}
	if l.Lanes() != 2 || l.Length() != 260 || l.SpeedLimit() != 30 || l.Resolution() != 40 {
		t.Errorf("unexpected geometry: lanes=%d length=%f speed=%f res=%d",
			l.Lanes(), l.Length(), l.SpeedLimit(), l.Resolution())
	}
	if l.Vehicles().NumVehicles() != 41 {
		t.Errorf("expected 41 vehicles, got %d", l.Vehicles().NumVehicles())
	}
}

func TestNewLoopRejects(t *testing.T) {
	with := func(key string, val float64) params.NetParams {
		n := doubleRingNet()
		n.AdditionalParams[key] = val
		return n
	}
	without := func(key string) params.NetParams {
		n := doubleRingNet()
		delete(n.AdditionalParams, key)
		return n
	}
	ic := params.NewInitialConfig(20, SpacingRandom)

	tests := []struct {
		name    string
		net     params.NetParams
		initial params.InitialConfig
		n       int
		want    error
	}{
		{"zero lanes", with(KeyLanes, 0), ic, 10, ErrInvalidNetParams},
		{"fractional lanes", with(KeyLanes, 1.5), ic, 10, ErrInvalidNetParams},
		{"zero length", with(KeyLength, 0), ic, 10, ErrInvalidNetParams},
		{"negative speed", with(KeySpeedLimit, -1), ic, 10, ErrInvalidNetParams},
		{"low resolution", with(KeyResolution, 1), ic, 10, ErrInvalidNetParams},
		{"missing length", without(KeyLength), ic, 10, ErrInvalidNetParams},
		{"unknown spacing", doubleRingNet(), params.NewInitialConfig(0, "staggered"), 10, ErrInvalidInitialConfig},
		{"negative bunching", doubleRingNet(), params.NewInitialConfig(-1, SpacingUniform), 10, ErrInvalidInitialConfig},
		{"bunching covers ring", doubleRingNet(), params.NewInitialConfig(260, SpacingUniform), 10, ErrInvalidInitialConfig},
		{"overfull", doubleRingNet(), ic, 200, ErrInvalidInitialConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoop("bad", fleet(t, tt.n), tt.net, tt.initial)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLoopKeepsCopies(t *testing.T) {
	net := doubleRingNet()
	v := fleet(t, 10)
	l, err := NewLoop("ring", v, net, params.NewInitialConfig(0, SpacingUniform))
	if err != nil {
		t.Fatal(err)
	}

	net.AdditionalParams[KeyLanes] = 5
	if lanes, _ := l.NetParams().Get(KeyLanes); lanes != 2 {
		t.Errorf("scenario aliased caller net params, lanes = %f", lanes)
	}

	lc, _ := params.NewLaneChangeParams("strategic")
	_ = v.Add(params.VehicleType{
		ID: "extra", Controller: params.Controller{Kind: params.IDM}, LaneChange: lc,
		Router: params.Router{Kind: params.ContinuousRouter}, NumVehicles: 3,
	})
	if l.Vehicles().NumVehicles() != 10 {
		t.Errorf("scenario aliased caller fleet, got %d vehicles", l.Vehicles().NumVehicles())
	}
}

func TestEdges(t *testing.T) {
	l, err := NewLoop("ring", fleet(t, 1), doubleRingNet(), params.NewInitialConfig(0, SpacingUniform))
	if err != nil {
		t.Fatal(err)
	}

	edges := l.Edges()
	if len(edges) != 4 {
		t.Fatalf("expected 4 edges, got %d", len(edges))
	}

	total := 0.0
	for i, e := range edges {
		total += e.Length
		if len(e.Shape) != 40 {
			t.Errorf("edge %s: expected 40 shape points, got %d", e.ID, len(e.Shape))
		}
		if e.Lanes != 2 {
			t.Errorf("edge %s: expected 2 lanes, got %d", e.ID, e.Lanes)
		}
		if next := edges[(i+1)%4]; e.To != next.From {
			t.Errorf("edge %s ends at %s but next starts at %s", e.ID, e.To, next.From)
		}
		for _, p := range e.Shape {
			if r := math.Hypot(p.X, p.Y); math.Abs(r-l.Radius()) > 1e-9 {
				t.Errorf("shape point off the circle: r=%f", r)
			}
		}
	}
	if math.Abs(total-260) > 1e-9 {
		t.Errorf("edge lengths sum to %f, want 260", total)
	}

	routes := l.Routes()
	if got := routes["top"]; len(got) != 4 || got[0] != "top" || got[3] != "right" {
		t.Errorf("unexpected route from top: %v", got)
	}
}

func TestEdgeAt(t *testing.T) {
	l, _ := NewLoop("ring", fleet(t, 1), doubleRingNet(), params.NewInitialConfig(0, SpacingUniform))

	tests := []struct {
		s    float64
		edge string
		pos  float64
	}{
		{0, "bottom", 0},
		{64, "bottom", 64},
		{65, "right", 0},
		{200, "left", 5},
		{260, "bottom", 0},
		{-5, "left", 60},
	}
	for _, tt := range tests {
		edge, pos := l.EdgeAt(tt.s)
		if edge != tt.edge || math.Abs(pos-tt.pos) > 1e-9 {
			t.Errorf("EdgeAt(%f) = %s/%f, want %s/%f", tt.s, edge, pos, tt.edge, tt.pos)
		}
	}
}

func ringOffset(l *Loop, p Position) float64 {
	s, ok := Distance(p.Edge, p.Pos, l.Length())
	if !ok {
		return -1
	}
	return s
}

func TestDistance(t *testing.T) {
	tests := []struct {
		edge string
		pos  float64
		want float64
		ok   bool
	}{
		{"bottom", 10, 10, true},
		{"top", 5, 135, true},
		{"left", 65, 0, true},
		{":right_0", 1, 66, true},
		{"ramp", 0, 0, false},
	}
	for _, tt := range tests {
		got, ok := Distance(tt.edge, tt.pos, 260)
		if ok != tt.ok || math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Distance(%s, %f) = %f/%v, want %f/%v", tt.edge, tt.pos, got, ok, tt.want, tt.ok)
		}
	}

	l, _ := NewLoop("ring", fleet(t, 1), doubleRingNet(), params.NewInitialConfig(0, SpacingUniform))
	for _, s := range []float64{0, 17.5, 100, 259} {
		edge, pos := l.EdgeAt(s)
		if back, _ := Distance(edge, pos, l.Length()); math.Abs(back-s) > 1e-9 {
			t.Errorf("EdgeAt/Distance round trip of %f gave %f", s, back)
		}
	}
}

func TestUniformPositions(t *testing.T) {
	l, err := NewLoop("ring", fleet(t, 10), doubleRingNet(), params.NewInitialConfig(0, SpacingUniform))
	if err != nil {
		t.Fatal(err)
	}

	positions := l.InitialPositions(nil)
	if len(positions) != 10 {
		t.Fatalf("expected 10 positions, got %d", len(positions))
	}

	lane0 := make([]float64, 0)
	for _, p := range positions {
		if p.Lane == 0 {
			lane0 = append(lane0, ringOffset(l, p))
		}
	}
	if len(lane0) != 5 {
		t.Fatalf("expected 5 vehicles on lane 0, got %d", len(lane0))
	}
	sort.Float64s(lane0)
	for i := 1; i < len(lane0); i++ {
		if gap := lane0[i] - lane0[i-1]; math.Abs(gap-52) > 1e-9 {
			t.Errorf("expected uniform headway 52, got %f", gap)
		}
	}
}

func TestRandomPositions(t *testing.T) {
	l, err := NewLoop("ring", fleet(t, 41), doubleRingNet(), params.NewInitialConfig(20, SpacingRandom))
	if err != nil {
		t.Fatal(err)
	}

	a := l.InitialPositions(rand.New(rand.NewSource(7)))
	b := l.InitialPositions(rand.New(rand.NewSource(7)))
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced different placement at %d", i)
		}
	}

	perLane := map[int][]float64{}
	for _, p := range a {
		perLane[p.Lane] = append(perLane[p.Lane], ringOffset(l, p))
		if p.TypeID != "idm" {
			t.Errorf("expected type idm, got %s", p.TypeID)
		}
	}
	for lane, offsets := range perLane {
		sort.Float64s(offsets)
		for i := 1; i < len(offsets); i++ {
			if offsets[i]-offsets[i-1] < 7-1e-9 {
				t.Errorf("lane %d: headway %f below minimum", lane, offsets[i]-offsets[i-1])
			}
		}
		if last := offsets[len(offsets)-1]; last >= 240 {
			t.Errorf("lane %d: vehicle at %f inside the bunching gap", lane, last)
		}
	}
}
