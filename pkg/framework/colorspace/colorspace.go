// Package colorspace converts colors between the spaces the color services callback and the
// color space suite speak. Components travel as unit values: every component in [0, 1],
// hue as a fraction of a turn and Lab a/b mapped from [-128, 127].
package colorspace

import (
	"errors"
	"fmt"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Space identifies a color space by its classic number.
type Space int16

const (
	RGB  Space = 0
	HSB  Space = 1
	CMYK Space = 2
	Lab  Space = 3
	Gray Space = 4
	HSL  Space = 5
	XYZ  Space = 6
)

// ErrUnknownSpace is returned for space numbers outside the classic set.
var ErrUnknownSpace = errors.New("colorspace: unknown color space")

func (s Space) String() string {
	switch s {
	case RGB:
		return "RGB"
	case HSB:
		return "HSB"
	case CMYK:
		return "CMYK"
	case Lab:
		return "Lab"
	case Gray:
		return "Gray"
	case HSL:
		return "HSL"
	case XYZ:
		return "XYZ"
	default:
		return fmt.Sprintf("space(%d)", int16(s))
	}
}

// Valid reports whether s is one of the classic spaces.
func (s Space) Valid() bool { return s >= RGB && s <= XYZ }

// Unit holds up to four components in unit form.
type Unit [4]float64

// Decode turns unit components in space s into a color.
func Decode(s Space, u Unit) (colorful.Color, error) {
	switch s {
	case RGB:
		return colorful.Color{R: u[0], G: u[1], B: u[2]}, nil
	case HSB:
		return colorful.Hsv(hueDegrees(u[0]), u[1], u[2]), nil
	case HSL:
		return colorful.Hsl(hueDegrees(u[0]), u[1], u[2]), nil
	case CMYK:
		k := 1 - u[3]
		return colorful.Color{R: (1 - u[0]) * k, G: (1 - u[1]) * k, B: (1 - u[2]) * k}, nil
	case Lab:
		return colorful.Lab(u[0], labAxis(u[1]), labAxis(u[2])), nil
	case Gray:
		return colorful.Color{R: u[0], G: u[0], B: u[0]}, nil
	case XYZ:
		return colorful.Xyz(u[0], u[1], u[2]), nil
	}
	return colorful.Color{}, fmt.Errorf("%w: %d", ErrUnknownSpace, s)
}

// Encode expresses c in space s.
func Encode(s Space, c colorful.Color) (Unit, error) {
	switch s {
	case RGB:
		return Unit{c.R, c.G, c.B}, nil
	case HSB:
		h, sat, v := c.Hsv()
		return Unit{h / 360, sat, v}, nil
	case HSL:
		h, sat, l := c.Hsl()
		return Unit{h / 360, sat, l}, nil
	case CMYK:
		k := 1 - math.Max(c.R, math.Max(c.G, c.B))
		if k >= 1 {
			return Unit{0, 0, 0, 1}, nil
		}
		return Unit{(1 - c.R - k) / (1 - k), (1 - c.G - k) / (1 - k), (1 - c.B - k) / (1 - k), k}, nil
	case Lab:
		l, a, b := c.Lab()
		return Unit{l, labUnit(a), labUnit(b)}, nil
	case Gray:
		return Unit{0.299*c.R + 0.587*c.G + 0.114*c.B}, nil
	case XYZ:
		x, y, z := c.Xyz()
		return Unit{x, y, z}, nil
	}
	return Unit{}, fmt.Errorf("%w: %d", ErrUnknownSpace, s)
}

// Convert moves unit components from one space to another. inGamut is false when the color
// had to be clamped to the RGB gamut on the way.
func Convert(from, to Space, u Unit) (out Unit, inGamut bool, err error) {
	c, err := Decode(from, u)
	if err != nil {
		return Unit{}, false, err
	}
	inGamut = c.IsValid()
	out, err = Encode(to, c.Clamped())
	if err != nil {
		return Unit{}, false, err
	}
	for i := range out {
		out[i] = clamp01(out[i])
	}
	return out, inGamut, nil
}

func hueDegrees(u float64) float64 { return math.Mod(u*360, 360) }

// labAxis maps the unit form of a or b to go-colorful's scale, where 1 is 100.
func labAxis(u float64) float64 { return (u*255 - 128) / 100 }
func labUnit(v float64) float64 { return (v*100 + 128) / 255 }

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
