package render

import (
	"image/color"
	"math"
)

// viridis holds evenly spaced samples of matplotlib's viridis map.
var viridis = []color.RGBA{
	{R: 0x44, G: 0x01, B: 0x54, A: 0xff},
	{R: 0x48, G: 0x24, B: 0x75, A: 0xff},
	{R: 0x41, G: 0x44, B: 0x87, A: 0xff},
	{R: 0x35, G: 0x5f, B: 0x8d, A: 0xff},
	{R: 0x2a, G: 0x78, B: 0x8e, A: 0xff},
	{R: 0x21, G: 0x91, B: 0x8c, A: 0xff},
	{R: 0x22, G: 0xa8, B: 0x84, A: 0xff},
	{R: 0x44, G: 0xbf, B: 0x70, A: 0xff},
	{R: 0x7a, G: 0xd1, B: 0x51, A: 0xff},
	{R: 0xbd, G: 0xdf, B: 0x26, A: 0xff},
	{R: 0xfd, G: 0xe7, B: 0x25, A: 0xff},
}

// Viridis returns the colour at position t in [0, 1]; t is clamped.
func Viridis(t float64) color.RGBA {
	if math.IsNaN(t) || t <= 0 {
		return viridis[0]
	}
	if t >= 1 {
		return viridis[len(viridis)-1]
	}

	pos := t * float64(len(viridis)-1)
	i := int(pos)
	f := pos - float64(i)
	a, b := viridis[i], viridis[i+1]
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*f))
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 0xff}
}
