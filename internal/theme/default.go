package theme

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"mudstream/internal/text"
)

// Standard ANSI 16-color palette using the classic hex values. These are the
// traditional MUD client defaults, so colours match what servers design for
// regardless of the local terminal scheme.
var (
	// Basic 8 colors (0-7)
	ANSIBlack     = tcell.NewHexColor(0x000000) // 0: Black
	ANSIRed       = tcell.NewHexColor(0x800000) // 1: Red (Dark Red)
	ANSIGreen     = tcell.NewHexColor(0x008000) // 2: Green (Dark Green)
	ANSIYellow    = tcell.NewHexColor(0x808000) // 3: Yellow/Brown (Dark Yellow)
	ANSIBlue      = tcell.NewHexColor(0x000080) // 4: Blue (Dark Blue)
	ANSIMagenta   = tcell.NewHexColor(0x800080) // 5: Magenta (Dark Magenta)
	ANSICyan      = tcell.NewHexColor(0x008080) // 6: Cyan (Dark Cyan)
	ANSISilver    = tcell.NewHexColor(0xC0C0C0) // 7: White/Light Gray

	// Bright 8 colors (bold table)
	ANSIGray          = tcell.NewHexColor(0x808080) // 0: Gray
	ANSIBrightRed     = tcell.NewHexColor(0xFF0000) // 1: Bright Red
	ANSIBrightGreen   = tcell.NewHexColor(0x00FF00) // 2: Bright Green
	ANSIBrightYellow  = tcell.NewHexColor(0xFFFF00) // 3: Bright Yellow
	ANSIBrightBlue    = tcell.NewHexColor(0x0000FF) // 4: Bright Blue
	ANSIBrightMagenta = tcell.NewHexColor(0xFF00FF) // 5: Bright Magenta
	ANSIBrightCyan    = tcell.NewHexColor(0x00FFFF) // 6: Bright Cyan
	ANSIWhite         = tcell.NewHexColor(0xFFFFFF) // 7: Bright White
)

// NewDefaultPalette builds the stock palette: classic ANSI tables, sixteen
// white-on-black custom slots named Custom1..Custom16, and the traditional
// note/echo/link colours.
func NewDefaultPalette() *Palette {
	p := &Palette{
		name: "default",
		Normal: [8]text.Colour{
			FromTcell(ANSIBlack),
			FromTcell(ANSIRed),
			FromTcell(ANSIGreen),
			FromTcell(ANSIYellow),
			FromTcell(ANSIBlue),
			FromTcell(ANSIMagenta),
			FromTcell(ANSICyan),
			FromTcell(ANSISilver),
		},
		Bold: [8]text.Colour{
			FromTcell(ANSIGray),
			FromTcell(ANSIBrightRed),
			FromTcell(ANSIBrightGreen),
			FromTcell(ANSIBrightYellow),
			FromTcell(ANSIBrightBlue),
			FromTcell(ANSIBrightMagenta),
			FromTcell(ANSIBrightCyan),
			FromTcell(ANSIWhite),
		},
		NoteFore:  text.NewRGB(0, 128, 255),
		EchoFore:  text.NewRGB(128, 128, 128),
		Hyperlink: text.NewRGB(0, 128, 255),
		LinkedURL: text.NewRGB(0, 0, 255),
	}

	for i := range p.Custom {
		p.Custom[i] = CustomColour{
			Name: fmt.Sprintf("Custom%d", i+1),
			Text: text.NewRGB(255, 255, 255),
			Back: text.NewRGB(0, 0, 0),
		}
	}

	return p
}
