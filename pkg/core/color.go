package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Color is a linear RGBA color with components in [0,1].
type Color struct {
	R, G, B, A float64
}

// White is the default vehicle paint.
var White = Color{R: 1, G: 1, B: 1, A: 1}

// SavedColor is the portable form of a Color: a "#RRGGBB" hex string and an
// "h,s,b" triple. It carries no alpha.
type SavedColor struct {
	RGB string
	HSB string
}

// SaveColor converts c into its portable form.
func SaveColor(c Color) SavedColor {
	h, s, b := toHSB(c)
	return SavedColor{
		RGB: fmt.Sprintf("#%02X%02X%02X", channelByte(c.R), channelByte(c.G), channelByte(c.B)),
		HSB: fmt.Sprintf("%s,%s,%s", formatUnit(h), formatUnit(s), formatUnit(b)),
	}
}

// Color parses the RGB component back into a Color with alpha 1.
func (s SavedColor) Color() (Color, error) {
	hex := strings.TrimPrefix(s.RGB, "#")
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("saved color: malformed rgb %q", s.RGB)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("saved color: malformed rgb %q: %w", s.RGB, err)
	}
	return Color{
		R: float64((v>>16)&0xFF) / 255,
		G: float64((v>>8)&0xFF) / 255,
		B: float64(v&0xFF) / 255,
		A: 1,
	}, nil
}

// HSBTriple parses the HSB component.
func (s SavedColor) HSBTriple() (h, sat, b float64, err error) {
	parts := strings.Split(s.HSB, ",")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("saved color: malformed hsb %q", s.HSB)
	}
	vals := make([]float64, 3)
	for i, p := range parts {
		vals[i], err = strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("saved color: malformed hsb %q: %w", s.HSB, err)
		}
	}
	return vals[0], vals[1], vals[2], nil
}

func channelByte(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 255))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func formatUnit(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// toHSB returns hue, saturation and brightness, all in [0,1].
func toHSB(c Color) (h, s, b float64) {
	r, g, bl := clamp01(c.R), clamp01(c.G), clamp01(c.B)
	maxC := math.Max(r, math.Max(g, bl))
	minC := math.Min(r, math.Min(g, bl))
	delta := maxC - minC

	b = maxC
	if maxC > 0 {
		s = delta / maxC
	}
	if delta == 0 {
		return 0, s, b
	}
	switch maxC {
	case r:
		h = (g - bl) / delta
		if h < 0 {
			h += 6
		}
	case g:
		h = (bl-r)/delta + 2
	default:
		h = (r-g)/delta + 4
	}
	return h / 6, s, b
}
