package theme

import (
	"fmt"

	"mudstream/internal/text"
)

// CustomColour is one slot of the 16-entry user palette: a display name plus
// a text/background colour pair.
type CustomColour struct {
	Name string
	Text text.Colour
	Back text.Colour
}

// Palette is the colour configuration a session renders with: the ANSI
// lookup tables, the custom 16-colour table, and the special-purpose colours
// the line assembler applies to notes, echoed commands and links.
type Palette struct {
	name string

	// Normal and Bold back the eight ANSI colour indices; bold only ever
	// applies to foregrounds.
	Normal [8]text.Colour
	Bold   [8]text.Colour

	Custom [16]CustomColour

	NoteFore  text.Colour // RGB, client-generated note lines
	EchoFore  text.Colour // RGB, echoed command lines
	Hyperlink text.Colour // RGB, markup links
	LinkedURL text.Colour // RGB, auto-detected bare URLs
}

// Name returns the palette name.
func (p *Palette) Name() string { return p.name }

// CustomByName finds a custom palette slot by its display name.
func (p *Palette) CustomByName(name string) (int, bool) {
	for i := range p.Custom {
		if p.Custom[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

// Materialize resolves a style to concrete RGB foreground and background for
// display or logging. Palette lookups honour the colour-type bits, bold
// selects the bright table for foregrounds only, and the inverse swap is
// applied here exactly once.
func (p *Palette) Materialize(s text.Style) (fore, back text.Colour) {
	fore, back = p.Resolve(s)
	if s.Flags&text.Inverse != 0 {
		fore, back = back, fore
	}
	return fore, back
}

// Resolve looks up a style's colours as RGB without applying the inverse
// swap. Out-of-range palette indices pass through unchanged.
func (p *Palette) Resolve(s text.Style) (fore, back text.Colour) {
	switch s.Flags.ColourType() {
	case text.ColourANSI:
		fi := s.Fore.Index() & 0xFF
		bi := s.Back.Index() & 0xFF
		if fi < 8 {
			if s.Flags&text.Bold != 0 {
				fore = p.Bold[fi]
			} else {
				fore = p.Normal[fi]
			}
		} else {
			fore = s.Fore
		}
		if bi < 8 {
			back = p.Normal[bi]
		} else {
			back = s.Back
		}
	case text.ColourCustom:
		fi := s.Fore.Index() & 0xFF
		bi := s.Back.Index() & 0xFF
		if fi < len(p.Custom) {
			fore = p.Custom[fi].Text
		} else {
			fore = s.Fore
		}
		if bi < len(p.Custom) {
			back = p.Custom[bi].Back
		} else {
			back = s.Back
		}
	default:
		fore, back = s.Fore, s.Back
	}
	return fore, back
}

// Manager tracks the registered palettes and which one is current.
type Manager struct {
	current  *Palette
	palettes map[string]*Palette
}

// NewManager creates a manager with the built-in palettes registered and the
// default palette selected.
func NewManager() *Manager {
	m := &Manager{
		palettes: make(map[string]*Palette),
	}

	m.Register(NewDefaultPalette())
	m.Set("default")

	return m
}

// Register adds a palette to the manager.
func (m *Manager) Register(p *Palette) {
	m.palettes[p.Name()] = p
}

// Set selects the current palette by name.
func (m *Manager) Set(name string) error {
	if p, exists := m.palettes[name]; exists {
		m.current = p
		return nil
	}
	return fmt.Errorf("palette '%s' not found", name)
}

// Current returns the selected palette.
func (m *Manager) Current() *Palette {
	return m.current
}

// Available returns the registered palette names.
func (m *Manager) Available() []string {
	names := make([]string, 0, len(m.palettes))
	for name := range m.palettes {
		names = append(names, name)
	}
	return names
}

// Global manager instance
var defaultManager = NewManager()

// Current returns the current palette from the global manager.
func Current() *Palette {
	return defaultManager.Current()
}

// GetManager returns the global palette manager.
func GetManager() *Manager {
	return defaultManager
}
