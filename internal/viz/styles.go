package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(50)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

func headerStyle(t Theme) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Accent).Bold(true).MarginBottom(1)
}

// speedStyle shades a value in [0, 1] of the speed limit.
func speedStyle(t Theme, norm float64) lipgloss.Style {
	switch {
	case norm > 0.7:
		return lipgloss.NewStyle().Foreground(t.Fast)
	case norm > 0.3:
		return lipgloss.NewStyle().Foreground(t.Mid)
	default:
		return lipgloss.NewStyle().Foreground(t.Slow)
	}
}

// ProgressBar renders how far the replay has played.
func ProgressBar(t Theme, percent float64, width int) string {
	filled := int(percent * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return lipgloss.NewStyle().Foreground(t.Primary).Render(bar)
}

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// SparklineChart renders values scaled against max, sampled to width.
func SparklineChart(t Theme, values []float64, max float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", width)
	}
	if max <= 0 {
		max = 1
	}

	step := len(values) / width
	if step < 1 {
		step = 1
	}

	var result strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		norm := values[i*step] / max
		if norm > 1 {
			norm = 1
		}
		if norm < 0 {
			norm = 0
		}
		c := sparkChars[int(norm*float64(len(sparkChars)-1))]
		result.WriteString(speedStyle(t, norm).Render(string(c)))
	}

	return result.String()
}
