package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/sugiyama/internal/scenario"
	"github.com/san-kum/sugiyama/internal/sim"
)

// SeriesToSVG plots a time series such as the fleet mean speed.
func SeriesToSVG(times, values []float64, width, height int, strokeColor string) string {
	n := min(len(times), len(values))
	if n < 2 {
		return ""
	}

	minX, maxX := times[0], times[n-1]
	minY, maxY := values[0], values[0]
	for _, v := range values[:n] {
		minY = math.Min(minY, v)
		maxY = math.Max(maxY, v)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeY = maxY - minY

	var sb strings.Builder

	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, strokeColor)

	for i := 0; i < n; i++ {
		x := (times[i] - minX) / rangeX * float64(width)
		y := float64(height) - (values[i]-minY)/rangeY*float64(height)

		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}

// RingToSVG draws one snapshot: the ring and each vehicle colored from
// red (stopped) to green (at speedLimit).
func RingToSVG(snap sim.Snapshot, length, speedLimit float64, size int) string {
	if length <= 0 || size <= 0 {
		return ""
	}
	if speedLimit <= 0 {
		speedLimit = 1
	}
	c := float64(size) / 2
	r := c * 0.8

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<circle cx="%.1f" cy="%.1f" r="%.1f" fill="none" stroke="#444466" stroke-width="2"/>
`, size, size, size, size, c, c, r)

	for _, v := range snap.Vehicles {
		s, ok := scenario.Distance(v.Edge, v.Pos, length)
		if !ok {
			continue
		}
		a := -math.Pi/2 + 2*math.Pi*s/length
		rv := r + float64(v.Lane)*6
		x := c + rv*math.Cos(a)
		y := c - rv*math.Sin(a)
		fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"3\" fill=\"%s\"><title>%s %.1f m/s</title></circle>\n",
			x, y, speedColor(v.Speed/speedLimit), v.ID, v.Speed)
	}

	sb.WriteString("</svg>")
	return sb.String()
}

func speedColor(norm float64) string {
	norm = math.Max(0, math.Min(1, norm))
	red := int(255 * (1 - norm))
	green := int(255 * norm)
	return fmt.Sprintf("#%02x%02x44", red, green)
}
