package colorspace

import "math"

// Services components are the int16 form used by the color services callback: hue in
// degrees, Lab a/b signed, everything else 0..255.
type Services [4]int16

// FromServices converts callback components to unit form.
func FromServices(s Space, c Services) Unit {
	var u Unit
	for i, v := range c {
		switch {
		case i == 0 && (s == HSB || s == HSL):
			u[i] = float64(v) / 360
		case i > 0 && i < 3 && s == Lab:
			u[i] = (float64(v) + 128) / 255
		default:
			u[i] = float64(v) / 255
		}
	}
	return u
}

// ToServices converts unit form to callback components.
func ToServices(s Space, u Unit) Services {
	var c Services
	for i, v := range u {
		switch {
		case i == 0 && (s == HSB || s == HSL):
			c[i] = int16(math.Round(v*360)) % 360
		case i > 0 && i < 3 && s == Lab:
			c[i] = int16(math.Round(v*255)) - 128
		default:
			c[i] = int16(math.Round(v * 255))
		}
	}
	return c
}

// Color8 is the 8-bit component form of the color space suite.
type Color8 [4]uint8

// Color16 is the 16-bit component form of the color space suite, 0..32768.
type Color16 [4]uint16

const max16 = 32768

func From8(c Color8) Unit {
	return Unit{float64(c[0]) / 255, float64(c[1]) / 255, float64(c[2]) / 255, float64(c[3]) / 255}
}

func To8(u Unit) Color8 {
	var c Color8
	for i, v := range u {
		c[i] = uint8(math.Round(clamp01(v) * 255))
	}
	return c
}

func From16(c Color16) Unit {
	return Unit{float64(c[0]) / max16, float64(c[1]) / max16, float64(c[2]) / max16, float64(c[3]) / max16}
}

func To16(u Unit) Color16 {
	var c Color16
	for i, v := range u {
		c[i] = uint16(math.Round(clamp01(v) * max16))
	}
	return c
}

// Widen converts 8-bit components to 16-bit ones.
func Widen(c Color8) Color16 { return To16(From8(c)) }

// Narrow converts 16-bit components to 8-bit ones.
func Narrow(c Color16) Color8 { return To8(From16(c)) }
