package ansi

import (
	"mudstream/internal/text"
	"mudstream/internal/theme"
)

// Result says how ApplyCode consumed an SGR code.
type Result int

const (
	// Applied means the code was folded into the style, or ignored.
	Applied Result = iota
	// ExtendedFore means the code was 38: the parameters that follow pick a
	// 256-colour or truecolor foreground.
	ExtendedFore
	// ExtendedBack is the background counterpart, code 48.
	ExtendedBack
)

// ApplyCode folds one SGR numeric code into the in-flight style. Named
// colours stay palette indices while the style is in ANSI colour mode and
// resolve through the palette once the style has gone RGB, so an explicit
// 256/truecolor assignment survives later named-colour codes on the other
// channel. Inverse only sets a flag; the channel swap happens once, at
// materialization. Unknown codes are ignored.
func ApplyCode(p *theme.Palette, st *text.Style, code int) Result {
	switch {
	case code == 38:
		return ExtendedFore
	case code == 48:
		return ExtendedBack

	case code >= 30 && code <= 37:
		setNamedFore(p, st, code-30)
	case code == 39: // default foreground
		setNamedFore(p, st, int(text.White))
	case code >= 40 && code <= 47:
		setNamedBack(p, st, code-40)
	case code == 49: // default background
		setNamedBack(p, st, int(text.Black))

	case code >= 90 && code <= 97: // bright foreground, no bold implied
		EnsureRGB(p, st)
		st.Fore = p.Bold[code-90]
	case code >= 100 && code <= 107: // bright background
		EnsureRGB(p, st)
		st.Back = p.Bold[code-100]

	default:
		applyAttribute(st, code)
	}
	return Applied
}

func applyAttribute(st *text.Style, code int) {
	switch code {
	case 0:
		// Reset clears attributes and colours but leaves the action bits
		// alone: a clickable span stays clickable until its tag closes.
		st.Flags &^= text.StyleBits &^ text.ActionTypeMask
		st.Fore, st.Back = text.White, text.Black
	case 1:
		st.Flags |= text.Bold
	case 3, 5, 6: // blink renders as italic
		st.Flags |= text.Italic
	case 4, 21:
		st.Flags |= text.Underline
	case 7:
		st.Flags |= text.Inverse
	case 9:
		st.Flags |= text.Strikeout
	case 2, 22: // faint renders as not-bold
		st.Flags &^= text.Bold
	case 23, 25:
		st.Flags &^= text.Italic
	case 24:
		st.Flags &^= text.Underline
	case 27:
		st.Flags &^= text.Inverse
	case 29:
		st.Flags &^= text.Strikeout
	}
}

func setNamedFore(p *theme.Palette, st *text.Style, i int) {
	if st.Flags.ColourType() == text.ColourCustom {
		EnsureRGB(p, st)
	}
	if st.Flags.ColourType() == text.ColourRGB {
		if st.Flags&text.Bold != 0 {
			st.Fore = p.Bold[i]
		} else {
			st.Fore = p.Normal[i]
		}
		return
	}
	st.Fore = text.Colour(i)
}

func setNamedBack(p *theme.Palette, st *text.Style, i int) {
	if st.Flags.ColourType() == text.ColourCustom {
		EnsureRGB(p, st)
	}
	if st.Flags.ColourType() == text.ColourRGB {
		// Backgrounds never take the bold table.
		st.Back = p.Normal[i]
		return
	}
	st.Back = text.Colour(i)
}

// EnsureRGB converts a style's colours to concrete RGB in place, so an
// extended colour can land on one channel without losing the other.
func EnsureRGB(p *theme.Palette, st *text.Style) {
	if st.Flags.ColourType() == text.ColourRGB {
		return
	}
	st.Fore, st.Back = p.Resolve(*st)
	st.Flags = st.Flags&^text.ColourTypeMask | text.ColourRGB
}

// SetExtended256 applies an xterm palette index (ESC[38;5;Nm and the 48
// form). Out-of-range indices change nothing.
func SetExtended256(p *theme.Palette, st *text.Style, index int, background bool) {
	if index < 0 || index > 255 {
		return
	}
	EnsureRGB(p, st)
	if background {
		st.Back = Xterm256(index)
	} else {
		st.Fore = Xterm256(index)
	}
}

// SetExtendedRGB applies a truecolor value (ESC[38;2;R;G;Bm and the 48
// form).
func SetExtendedRGB(p *theme.Palette, st *text.Style, c text.Colour, background bool) {
	EnsureRGB(p, st)
	if background {
		st.Back = c
	} else {
		st.Fore = c
	}
}
