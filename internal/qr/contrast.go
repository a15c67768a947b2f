package qr

import (
	"image/color"
	"math"
)

// MinContrast is the lowest foreground/background contrast ratio accepted.
// Phone cameras struggle to lock onto codes below it, especially on printed cards.
const MinContrast = 3.0

// relativeLuminance follows the WCAG 2.1 definition.
// https://www.w3.org/WAI/GL/wiki/Relative_luminance
func relativeLuminance(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	channel := func(v uint32) float64 {
		s := float64(v>>8) / 255.0
		if s <= 0.03928 {
			return s / 12.92
		}
		return math.Pow((s+0.055)/1.055, 2.4)
	}
	return 0.2126*channel(r) + 0.7152*channel(g) + 0.0722*channel(b)
}

// ContrastRatio returns the WCAG contrast ratio of two colors, from 1 (none) to 21.
func ContrastRatio(a, b color.Color) float64 {
	l1, l2 := relativeLuminance(a), relativeLuminance(b)
	if l1 < l2 {
		l1, l2 = l2, l1
	}
	return (l1 + 0.05) / (l2 + 0.05)
}
