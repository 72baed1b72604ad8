package theme

import (
	"strings"

	"github.com/gdamore/tcell/v2"

	"mudstream/internal/text"
)

// FromTcell converts a tcell colour to a packed 24-bit value.
func FromTcell(c tcell.Color) text.Colour {
	h := c.Hex()
	if h < 0 {
		return 0
	}
	return text.Colour(uint32(h) & 0xFFFFFF)
}

// ParseColour resolves a colour written as "#RRGGBB" or as a W3C colour name
// ("red", "dodgerblue", ...). Unknown names report false rather than a
// default, so callers can count bad server colours without changing state.
func ParseColour(name string) (text.Colour, bool) {
	s := strings.TrimSpace(name)
	if s == "" {
		return 0, false
	}

	c := tcell.GetColor(strings.ToLower(s))
	if !c.Valid() {
		return 0, false
	}
	return FromTcell(c), true
}
