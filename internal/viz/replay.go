package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/sugiyama/internal/scenario"
	"github.com/san-kum/sugiyama/internal/sim"
)

const (
	width       = 60
	height      = 24
	maxRate     = 64
	graphPoints = 300
	laneSpacing = 3
)

type TickMsg time.Time

// Model replays a stored vehicle trace around the ring.
type Model struct {
	title      string
	length     float64
	speedLimit float64
	frames     []sim.Snapshot
	meanSpeeds []float64
	playHead   int
	rate       int
	running    bool
	canvas     *Canvas
	theme      Theme
	showHelp   bool
}

// NewModel prepares a replay of frames on a ring of the given length.
func NewModel(title string, length, speedLimit float64, frames []sim.Snapshot) Model {
	means := make([]float64, len(frames))
	for i, f := range frames {
		means[i] = f.MeanSpeed()
	}
	if speedLimit <= 0 {
		speedLimit = 30
	}
	return Model{
		title:      title,
		length:     length,
		speedLimit: speedLimit,
		frames:     frames,
		meanSpeeds: means,
		rate:       1,
		running:    len(frames) > 0,
		canvas:     NewCanvas(width, height),
		theme:      Themes[0],
	}
}

func (m Model) WithTheme(name string) Model {
	m.theme = GetTheme(name)
	return m
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.playHead = 0
		case "[":
			m.scrub(-10 * m.rate)
		case "]":
			m.scrub(10 * m.rate)
		case "+", "=":
			if m.rate < maxRate {
				m.rate *= 2
			}
		case "-", "_":
			if m.rate > 1 {
				m.rate /= 2
			}
		case "t":
			m.theme = m.theme.next()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			m.advance(m.rate)
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) advance(n int) {
	if len(m.frames) == 0 {
		return
	}
	m.playHead += n
	if m.playHead >= len(m.frames)-1 {
		m.playHead = len(m.frames) - 1
		m.running = false
	}
}

// scrub moves the play head and pauses.
func (m *Model) scrub(n int) {
	m.running = false
	m.playHead += n
	if m.playHead < 0 {
		m.playHead = 0
	}
	if m.playHead >= len(m.frames) {
		m.playHead = len(m.frames) - 1
	}
	if m.playHead < 0 {
		m.playHead = 0
	}
}

// Frame returns the snapshot under the play head.
func (m Model) Frame() (sim.Snapshot, bool) {
	if len(m.frames) == 0 {
		return sim.Snapshot{}, false
	}
	return m.frames[m.playHead], true
}

// draw plots the ring and every vehicle at its distance along it; outer
// lanes sit further out.
func (m *Model) draw(f sim.Snapshot) {
	m.canvas.Clear()
	cw, ch := m.canvas.Width*2, m.canvas.Height*4
	cx, cy := cw/2, ch/2
	r := float64(min(cw, ch))/2 - 2*laneSpacing - 2

	m.canvas.DrawCircle(cx, cy, r-laneSpacing)
	for _, v := range f.Vehicles {
		s, ok := scenario.Distance(v.Edge, v.Pos, m.length)
		if !ok {
			continue
		}
		a := -math.Pi/2 + 2*math.Pi*s/m.length
		rv := r + float64(v.Lane*laneSpacing)
		x := cx + int(math.Round(rv*math.Cos(a)))
		y := cy - int(math.Round(rv*math.Sin(a)))
		m.canvas.Dot(x, y, 1)
	}
}

// speedsAlongRing orders vehicle speeds by distance along the ring.
func (m Model) speedsAlongRing(f sim.Snapshot) []float64 {
	type pv struct{ s, v float64 }
	pts := make([]pv, 0, len(f.Vehicles))
	for _, v := range f.Vehicles {
		s, _ := scenario.Distance(v.Edge, v.Pos, m.length)
		pts = append(pts, pv{s, v.Speed})
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].s < pts[j].s })
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.v
	}
	return out
}

func (m Model) status() string {
	switch {
	case len(m.frames) == 0:
		return "NO DATA"
	case m.running:
		return fmt.Sprintf("PLAYING x%d", m.rate)
	case m.playHead == len(m.frames)-1:
		return "END"
	default:
		return "PAUSED"
	}
}

func (m Model) View() string {
	f, ok := m.Frame()
	if ok {
		m.draw(f)
	} else {
		m.canvas.Clear()
	}
	ringStyle := lipgloss.NewStyle().Foreground(m.theme.Primary)
	canvasView := canvasStyle.Render(ringStyle.Render(m.canvas.String()))

	var s strings.Builder
	s.WriteString(headerStyle(m.theme).Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(m.status() + "\n\n")

	if ok {
		lo := max(0, m.playHead-graphPoints+1)
		if hist := m.meanSpeeds[lo : m.playHead+1]; len(hist) > 1 {
			chart := asciigraph.Plot(hist, asciigraph.Height(5), asciigraph.Width(36), asciigraph.Caption("Mean speed (m/s)"))
			s.WriteString(chart + "\n\n")
		}

		s.WriteString(labelStyle.Render("Time") + valueStyle.Render(fmt.Sprintf("%.1fs", f.Time)) + "\n")
		s.WriteString(labelStyle.Render("Vehicles") + valueStyle.Render(fmt.Sprintf("%d", len(f.Vehicles))) + "\n")
		s.WriteString(labelStyle.Render("Mean speed") + valueStyle.Render(fmt.Sprintf("%.2f m/s", f.MeanSpeed())) + "\n")
		s.WriteString(labelStyle.Render("Min speed") + valueStyle.Render(fmt.Sprintf("%.2f m/s", f.MinSpeed())) + "\n")
		stopped := f.Stopped()
		stoppedText := fmt.Sprintf("%d", stopped)
		if stopped > 0 {
			stoppedText = lipgloss.NewStyle().Foreground(m.theme.Slow).Render(stoppedText)
		}
		s.WriteString(labelStyle.Render("Stopped") + valueStyle.Render(stoppedText) + "\n\n")

		s.WriteString("SPEEDS ALONG RING\n")
		s.WriteString(SparklineChart(m.theme, m.speedsAlongRing(f), m.speedLimit, 40) + "\n\n")
		s.WriteString(ProgressBar(m.theme, float64(m.playHead+1)/float64(len(m.frames)), 40) + "\n")
	}

	s.WriteString(helpStyle.Render("SP:Pause [ ]:Scrub +/-:Rate R:Restart T:Theme ?:Help Q:Quit"))
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))

	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume replay      ║
║  [ ]      - Step back/forward        ║
║  + -      - Faster/slower playback   ║
║  R        - Restart                  ║
║  T        - Cycle themes             ║
║  Q        - Quit                     ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝
` + "\n\n" + mainView
	}
	return mainView
}

// Run replays frames in the terminal until the user quits.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
