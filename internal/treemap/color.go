package treemap

import (
	"fmt"
	"image/color"
	"math"
)

// DefaultThreshold is the change, in percent, at which colours saturate.
const DefaultThreshold = 3.0

type stop struct {
	pos float64
	c   color.RGBA
}

// Falls are green and rises red.
var stops = []stop{
	{0.0, color.RGBA{0x00, 0x64, 0x00, 0xff}},
	{0.4, color.RGBA{0x90, 0xee, 0x90, 0xff}},
	{0.5, color.RGBA{0xd3, 0xd3, 0xd3, 0xff}},
	{0.6, color.RGBA{0xf0, 0x80, 0x80, 0xff}},
	{1.0, color.RGBA{0x8b, 0x00, 0x00, 0xff}},
}

// ColorScale maps a percent change onto the diverging palette, clipped to
// ±Threshold.
type ColorScale struct {
	Threshold float64
}

// RGBA returns the interpolated colour for change.
func (s ColorScale) RGBA(change float64) color.RGBA {
	t := s.Threshold
	if !(t > 0) {
		t = DefaultThreshold
	}
	if math.IsNaN(change) {
		change = 0
	}
	change = math.Max(-t, math.Min(t, change))
	pos := (change + t) / (2 * t)

	for i := 1; i < len(stops); i++ {
		lo, hi := stops[i-1], stops[i]
		if pos > hi.pos {
			continue
		}
		f := (pos - lo.pos) / (hi.pos - lo.pos)
		return color.RGBA{
			R: lerp(lo.c.R, hi.c.R, f),
			G: lerp(lo.c.G, hi.c.G, f),
			B: lerp(lo.c.B, hi.c.B, f),
			A: 0xff,
		}
	}
	return stops[len(stops)-1].c
}

// Hex returns the colour as #rrggbb.
func (s ColorScale) Hex(change float64) string {
	c := s.RGBA(change)
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// TextColor picks black or white for legibility on the fill for change.
func (s ColorScale) TextColor(change float64) string {
	c := s.RGBA(change)
	luma := 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
	if luma > 150 {
		return "#000000"
	}
	return "#ffffff"
}

func lerp(a, b uint8, f float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*f))
}
