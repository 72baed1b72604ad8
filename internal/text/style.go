package text

import "fmt"

// StyleFlags packs the attribute bits, colour-type bits and action-type bits
// for one run of text. The bit layout is kept compatible with the classic
// MUSHclient style word so captures and plugin data stay comparable.
type StyleFlags uint16

const (
	Bold      StyleFlags = 0x0001
	Underline StyleFlags = 0x0002
	Italic    StyleFlags = 0x0004 // historically the blink bit
	Inverse   StyleFlags = 0x0008
	Changed   StyleFlags = 0x0010
	Strikeout StyleFlags = 0x0020

	// Colour type: how Fore/Back are interpreted.
	ColourANSI     StyleFlags = 0x0000 // palette index 0-7
	ColourCustom   StyleFlags = 0x0100 // custom palette index 0-15
	ColourRGB      StyleFlags = 0x0200 // packed 24-bit value
	ColourTypeMask StyleFlags = 0x0300

	// Action type: what clicking the run does.
	ActionNone      StyleFlags = 0x0000
	ActionSend      StyleFlags = 0x0400
	ActionHyperlink StyleFlags = 0x0800
	ActionPrompt    StyleFlags = 0x0C00
	ActionTypeMask  StyleFlags = 0x0C00

	// StyleBits masks everything that affects appearance or behaviour.
	StyleBits StyleFlags = 0x0FFF

	// StartTag marks a run opened by a markup start tag, so the matching
	// close can find the spot where its style took effect.
	StartTag StyleFlags = 0x1000

	// TextAttributes covers just the visual attribute bits.
	TextAttributes StyleFlags = Bold | Underline | Italic | Inverse | Strikeout
)

// ColourType extracts the colour-type bits.
func (f StyleFlags) ColourType() StyleFlags { return f & ColourTypeMask }

// ActionType extracts the action-type bits.
func (f StyleFlags) ActionType() StyleFlags { return f & ActionTypeMask }

// Colour holds either a palette index (ANSI 0-7, custom 0-15) or a packed
// 24-bit RGB value; the owning style's colour-type bits say which.
type Colour uint32

// ANSI palette indices, valid when the colour type is ColourANSI.
const (
	Black Colour = iota
	Red
	Green
	Yellow
	Blue
	Magenta
	Cyan
	White
)

// NewRGB packs a 24-bit colour.
func NewRGB(r, g, b uint8) Colour {
	return Colour(r)<<16 | Colour(g)<<8 | Colour(b)
}

// RGB unpacks a 24-bit colour.
func (c Colour) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// Index returns the colour as a palette index.
func (c Colour) Index() int { return int(c) }

// Hex formats the colour as "#rrggbb".
func (c Colour) Hex() string {
	r, g, b := c.RGB()
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// Style describes the appearance of one run of characters. It is a value
// type; completed lines hold interned pointers so identical styles share one
// allocation across the whole scrollback.
type Style struct {
	Flags  StyleFlags
	Fore   Colour
	Back   Colour
	Action *Action
}

// DefaultStyle is plain ANSI white on black with no action.
func DefaultStyle() Style {
	return Style{Fore: White, Back: Black}
}

// Same reports whether two styles render and behave identically, ignoring
// bookkeeping bits above StyleBits. Actions must already be interned for the
// pointer comparison to mean value equality.
func (s Style) Same(o Style) bool {
	return s.Flags&StyleBits == o.Flags&StyleBits &&
		s.Fore == o.Fore &&
		s.Back == o.Back &&
		s.Action == o.Action
}
