package text

import "time"

// LineFlags classify where a line came from, plus display hints.
type LineFlags uint8

const (
	Note      LineFlags = 0x01 // client-generated note
	UserInput LineFlags = 0x02 // echo of a typed command
	LogLine   LineFlags = 0x04
	Bookmark  LineFlags = 0x08
	HorizRule LineFlags = 0x10 // drawn as a rule, text ignored

	// NoteOrCommand masks the two non-server sources.
	NoteOrCommand = Note | UserInput
)

// Run is a span of Length text bytes drawn in one style.
type Run struct {
	Length int
	Style  *Style
}

// Line is one display line: UTF-8 text plus the style runs that cover it and
// per-line metadata. A line under construction grows in place; once handed to
// the scrollback it is not modified again except for recolouring.
type Line struct {
	Text []byte
	Runs []Run

	Flags      LineFlags
	HardReturn bool // ended by a newline rather than a wrap
	Prompt     bool // ended by telnet GA/EOR
	Time       time.Time
	Number     int64
}

// NewLine starts an empty line numbered n, stamped now.
func NewLine(n int64, flags LineFlags) *Line {
	return &Line{
		Flags:  flags,
		Time:   time.Now(),
		Number: n,
	}
}

// String returns the plain text of the line.
func (l *Line) String() string { return string(l.Text) }

// LastRun returns the trailing run, or nil for an unstyled line.
func (l *Line) LastRun() *Run {
	if len(l.Runs) == 0 {
		return nil
	}
	return &l.Runs[len(l.Runs)-1]
}

// RunText returns the text bytes covered by run i.
func (l *Line) RunText(i int) []byte {
	start := 0
	for j := 0; j < i; j++ {
		start += l.Runs[j].Length
	}
	end := start + l.Runs[i].Length
	if end > len(l.Text) {
		end = len(l.Text)
	}
	return l.Text[start:end]
}

// Length returns the line length in bytes.
func (l *Line) Length() int { return len(l.Text) }
