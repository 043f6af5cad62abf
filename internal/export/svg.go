package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/dcmotor/internal/loop"
	"github.com/san-kum/dcmotor/internal/sim"
)

// Series is one polyline on a shared time axis.
type Series struct {
	Name  string
	Color string
	X, Y  []float64
}

const margin = 40

// TracesToSVG draws series on common axes. Series shorter than two points
// are skipped; it returns "" when nothing is drawable.
func TracesToSVG(series []Series, width, height int) string {
	drawable := make([]Series, 0, len(series))
	for _, s := range series {
		if len(s.X) >= 2 && len(s.X) == len(s.Y) {
			drawable = append(drawable, s)
		}
	}
	if len(drawable) == 0 {
		return ""
	}

	// Find bounds
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, s := range drawable {
		for i := range s.X {
			minX, maxX = math.Min(minX, s.X[i]), math.Max(maxX, s.X[i])
			minY, maxY = math.Min(minY, s.Y[i]), math.Max(maxY, s.Y[i])
		}
	}

	// Add padding
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

	plotW := float64(width - 2*margin)
	plotH := float64(height - 2*margin)
	px := func(x float64) float64 { return margin + (x-minX)/rangeX*plotW }
	py := func(y float64) float64 { return margin + plotH - (y-minY)/rangeY*plotH }

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g stroke="#444466" stroke-width="1">
<line x1="%d" y1="%.1f" x2="%.1f" y2="%.1f"/>
<line x1="%d" y1="%d" x2="%d" y2="%.1f"/>
</g>
<g fill="#888899" font-family="monospace" font-size="11">
<text x="%d" y="%d">%.4g</text>
<text x="%d" y="%.1f">%.4g</text>
<text x="%d" y="%.1f">%.4g s</text>
<text x="%.1f" y="%.1f" text-anchor="end">%.4g s</text>
</g>
`,
		width, height, width, height,
		margin, margin+plotH, margin+plotW, margin+plotH,
		margin, margin, margin, margin+plotH,
		2, margin-4, maxY,
		2, margin+plotH, minY,
		margin, margin+plotH+16, minX,
		margin+plotW, margin+plotH+16, maxX,
	))

	for k, s := range drawable {
		sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, s.Color))
		for i := range s.X {
			if i == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", px(s.X[i]), py(s.Y[i])))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", px(s.X[i]), py(s.Y[i])))
			}
		}
		sb.WriteString("\"/>\n")
		sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>
`, margin+float64(k)*110, 16, s.Color, s.Name))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// RunToSVG plots the setpoint, the measured speed and, when recorded, the
// plant's true output speed.
func RunToSVG(result *sim.Result, width, height int) string {
	times := result.Times()
	series := []Series{
		{Name: "setpoint", Color: "#ffaa00", X: times, Y: result.Series(func(s loop.Sample) float64 { return s.Setpoint })},
		{Name: "pv", Color: "#00ff88", X: times, Y: result.Series(func(s loop.Sample) float64 { return s.ProcessVariable })},
	}
	if len(result.TrueRPM) == len(times) {
		series = append(series, Series{Name: "true rpm", Color: "#00ccff", X: times, Y: result.TrueRPM})
	}
	return TracesToSVG(series, width, height)
}
