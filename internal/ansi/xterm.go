package ansi

import "mudstream/internal/text"

// xterm256 is the standard xterm palette: 16 classic colours, a 6x6x6 cube,
// and a 24-step grayscale ramp.
var xterm256 = buildXterm256()

func buildXterm256() [256]text.Colour {
	var t [256]text.Colour

	classics := [16]text.Colour{
		text.NewRGB(0, 0, 0),       // black
		text.NewRGB(128, 0, 0),     // maroon
		text.NewRGB(0, 128, 0),     // green
		text.NewRGB(128, 128, 0),   // olive
		text.NewRGB(0, 0, 128),     // navy
		text.NewRGB(128, 0, 128),   // purple
		text.NewRGB(0, 128, 128),   // teal
		text.NewRGB(192, 192, 192), // silver
		text.NewRGB(128, 128, 128), // gray
		text.NewRGB(255, 0, 0),     // red
		text.NewRGB(0, 255, 0),     // lime
		text.NewRGB(255, 255, 0),   // yellow
		text.NewRGB(0, 0, 255),     // blue
		text.NewRGB(255, 0, 255),   // magenta
		text.NewRGB(0, 255, 255),   // cyan
		text.NewRGB(255, 255, 255), // white
	}
	copy(t[:16], classics[:])

	// 16-231: colour cube
	values := [6]uint8{0, 95, 135, 175, 215, 255}
	for r := 0; r < 6; r++ {
		for g := 0; g < 6; g++ {
			for b := 0; b < 6; b++ {
				t[16+r*36+g*6+b] = text.NewRGB(values[r], values[g], values[b])
			}
		}
	}

	// 232-255: grayscale ramp
	for grey := 0; grey < 24; grey++ {
		v := uint8(8 + grey*10)
		t[232+grey] = text.NewRGB(v, v, v)
	}

	return t
}

// Xterm256 returns the RGB value of an xterm palette index. Out-of-range
// indices return black.
func Xterm256(i int) text.Colour {
	if i < 0 || i > 255 {
		return 0
	}
	return xterm256[i]
}
