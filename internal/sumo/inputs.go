package sumo

import (
	"encoding/xml"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/san-kum/sugiyama/internal/env"
	"github.com/san-kum/sugiyama/internal/params"
	"github.com/san-kum/sugiyama/internal/scenario"
)

// Files are the inputs and outputs of one rollout.
type Files struct {
	Dir      string
	Nodes    string
	Edges    string
	Net      string
	Routes   string
	Config   string
	FCD      string
	Emission string
}

// newFiles lays out the rollout files. The emission trace goes to
// emissionDir, named after the rollout directory; it is skipped when
// emissionDir is empty.
func newFiles(dir, name, emissionDir string) Files {
	f := Files{
		Dir:    dir,
		Nodes:  filepath.Join(dir, name+".nod.xml"),
		Edges:  filepath.Join(dir, name+".edg.xml"),
		Net:    filepath.Join(dir, name+".net.xml"),
		Routes: filepath.Join(dir, name+".rou.xml"),
		Config: filepath.Join(dir, name+".sumocfg"),
		FCD:    filepath.Join(dir, name+".fcd.xml"),
	}
	if emissionDir != "" {
		f.Emission = filepath.Join(emissionDir, filepath.Base(dir)+"-emission.xml")
	}
	return f
}

type xmlNodes struct {
	XMLName xml.Name  `xml:"nodes"`
	Nodes   []xmlNode `xml:"node"`
}

type xmlNode struct {
	ID string `xml:"id,attr"`
	X  string `xml:"x,attr"`
	Y  string `xml:"y,attr"`
}

type xmlEdges struct {
	XMLName xml.Name  `xml:"edges"`
	Edges   []xmlEdge `xml:"edge"`
}

type xmlEdge struct {
	ID       string `xml:"id,attr"`
	From     string `xml:"from,attr"`
	To       string `xml:"to,attr"`
	NumLanes int    `xml:"numLanes,attr"`
	Speed    string `xml:"speed,attr"`
	Length   string `xml:"length,attr"`
	Shape    string `xml:"shape,attr"`
}

type xmlRoutes struct {
	XMLName  xml.Name     `xml:"routes"`
	VTypes   []xmlVType   `xml:"vType"`
	Routes   []xmlRoute   `xml:"route"`
	Vehicles []xmlVehicle `xml:"vehicle"`
}

type xmlVType struct {
	ID    string     `xml:"id,attr"`
	Attrs []xml.Attr `xml:",any,attr"`
}

type xmlRoute struct {
	ID     string `xml:"id,attr"`
	Edges  string `xml:"edges,attr"`
	Repeat int    `xml:"repeat,attr,omitempty"`
}

type xmlVehicle struct {
	ID          string `xml:"id,attr"`
	Type        string `xml:"type,attr"`
	Route       string `xml:"route,attr"`
	Depart      string `xml:"depart,attr"`
	DepartLane  int    `xml:"departLane,attr"`
	DepartPos   string `xml:"departPos,attr"`
	DepartSpeed string `xml:"departSpeed,attr"`
}

type valueAttr struct {
	Value string `xml:"value,attr"`
}

type xmlConfig struct {
	XMLName    xml.Name   `xml:"configuration"`
	NetFile    valueAttr  `xml:"input>net-file"`
	RouteFiles valueAttr  `xml:"input>route-files"`
	Begin      valueAttr  `xml:"time>begin"`
	End        valueAttr  `xml:"time>end"`
	StepLength valueAttr  `xml:"time>step-length"`
	FCD        valueAttr  `xml:"output>fcd-output"`
	Emission   *valueAttr `xml:"output>emission-output,omitempty"`
	Seed       valueAttr  `xml:"random_number>seed"`
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fixed(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Laps returns how many times a continuously routed vehicle must be able
// to circle the ring to last the whole rollout at the speed limit.
func Laps(sc *scenario.Loop, steps int, simStep float64) int {
	distance := float64(steps) * simStep * sc.SpeedLimit()
	return int(math.Ceil(distance/sc.Length())) + 1
}

func buildNodes(sc *scenario.Loop) xmlNodes {
	out := xmlNodes{}
	for _, n := range sc.Nodes() {
		out.Nodes = append(out.Nodes, xmlNode{ID: n.ID, X: fixed(n.X), Y: fixed(n.Y)})
	}
	return out
}

func buildEdges(sc *scenario.Loop) xmlEdges {
	out := xmlEdges{}
	for _, e := range sc.Edges() {
		pts := make([]string, len(e.Shape))
		for i, p := range e.Shape {
			pts[i] = fixed(p.X) + "," + fixed(p.Y)
		}
		out.Edges = append(out.Edges, xmlEdge{
			ID:       e.ID,
			From:     e.From,
			To:       e.To,
			NumLanes: e.Lanes,
			Speed:    ftoa(e.Speed),
			Length:   ftoa(e.Length),
			Shape:    strings.Join(pts, " "),
		})
	}
	return out
}

func carFollowModel(k params.ControllerKind) string {
	if k == params.Krauss {
		return "Krauss"
	}
	return "IDM"
}

func buildVType(t params.VehicleType) xmlVType {
	attrs := map[string]string{
		"carFollowModel":  carFollowModel(t.Controller.Kind),
		"length":          ftoa(t.Length),
		"laneChangeModel": "LC2013",
	}
	for k, v := range t.Controller.Resolved() {
		attrs[k] = ftoa(v)
	}
	for k, v := range t.LaneChange.Attrs() {
		attrs[k] = v
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vt := xmlVType{ID: t.ID}
	for _, k := range keys {
		vt.Attrs = append(vt.Attrs, xml.Attr{Name: xml.Name{Local: k}, Value: attrs[k]})
	}
	return vt
}

func routeID(typeID, edge string) string {
	return "route_" + typeID + "_" + edge
}

func buildRoutes(e *env.Env, steps int) xmlRoutes {
	sc := e.Scenario()
	vehicles := sc.Vehicles()
	types := vehicles.Types()
	laps := Laps(sc, steps, e.SumoParams().SimStep)
	routes := sc.Routes()

	out := xmlRoutes{}
	for _, t := range types {
		out.VTypes = append(out.VTypes, buildVType(t))
		repeat := 0
		if t.Router.Kind == params.ContinuousRouter {
			repeat = laps
		}
		for _, edge := range scenario.EdgeOrder {
			out.Routes = append(out.Routes, xmlRoute{
				ID:     routeID(t.ID, edge),
				Edges:  strings.Join(routes[edge], " "),
				Repeat: repeat,
			})
		}
	}

	rng := rand.New(rand.NewSource(e.SumoParams().Seed))
	for _, p := range sc.InitialPositions(rng) {
		out.Vehicles = append(out.Vehicles, xmlVehicle{
			ID:          p.VehicleID,
			Type:        p.TypeID,
			Route:       routeID(p.TypeID, p.Edge),
			Depart:      "0",
			DepartLane:  p.Lane,
			DepartPos:   fixed(p.Pos),
			DepartSpeed: "0",
		})
	}
	return out
}

func buildConfig(e *env.Env, f Files, steps int) xmlConfig {
	sp := e.SumoParams()
	c := xmlConfig{
		NetFile:    valueAttr{filepath.Base(f.Net)},
		RouteFiles: valueAttr{filepath.Base(f.Routes)},
		Begin:      valueAttr{"0"},
		End:        valueAttr{ftoa(float64(steps) * sp.SimStep)},
		StepLength: valueAttr{ftoa(sp.SimStep)},
		FCD:        valueAttr{filepath.Base(f.FCD)},
		Seed:       valueAttr{strconv.FormatInt(sp.Seed, 10)},
	}
	if f.Emission != "" {
		path, err := filepath.Abs(f.Emission)
		if err != nil {
			path = f.Emission
		}
		c.Emission = &valueAttr{path}
	}
	return c
}

// WriteInputs writes the network, routes and configuration of a rollout.
func WriteInputs(dir string, e *env.Env, steps int) (Files, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Files{}, err
	}
	emissionDir := e.SumoParams().EmissionPath
	if emissionDir != "" {
		if err := os.MkdirAll(emissionDir, 0755); err != nil {
			return Files{}, err
		}
	}
	f := newFiles(dir, e.Scenario().Name(), emissionDir)

	docs := []struct {
		path string
		v    any
	}{
		{f.Nodes, buildNodes(e.Scenario())},
		{f.Edges, buildEdges(e.Scenario())},
		{f.Routes, buildRoutes(e, steps)},
		{f.Config, buildConfig(e, f, steps)},
	}
	for _, d := range docs {
		if err := writeXML(d.path, d.v); err != nil {
			return Files{}, fmt.Errorf("write %s: %w", filepath.Base(d.path), err)
		}
	}
	return f, nil
}

func writeXML(path string, v any) error {
	data, err := xml.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	data = append([]byte(xml.Header), data...)
	data = append(data, '\n')
	return os.WriteFile(path, data, 0644)
}
