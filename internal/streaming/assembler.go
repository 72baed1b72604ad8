package streaming

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"

	"mudstream/internal/text"
	"mudstream/internal/theme"
)

// urlPattern matches the schemes worth linking, stopping at characters
// that never appear in a pasted URL.
var urlPattern = regexp.MustCompile(`(?i)(https?://|ftp://|mailto:)[^\s<>"{}|\\^` + "`" + `\[\]]+`)

// AssemblerOptions sizes the line assembler.
type AssemblerOptions struct {
	WrapColumn    int  // display columns before a line breaks; 0 disables wrapping
	WordWrap      bool // break at the last space instead of mid-word
	ScrollbackMax int  // completed lines kept; older ones fall off
	RecentLines   int  // plain-text ring of hard server lines
	LinkifyURLs   bool // rewrite bare URLs into clickable spans
}

// AssemblerStats counts line traffic.
type AssemblerStats struct {
	TotalLines       int64 // lines started, including the one in flight
	NewlinesReceived int64 // hard returns from the server
	WrappedLines     int64
	ScrollbackLines  int
}

// Assembler builds display lines from decoded text. It owns the live
// style, coalesces equal-style text into runs, wraps at the configured
// column and files completed lines into the scrollback. The markup
// engine writes through it as its Sink.
type Assembler struct {
	opts AssemblerOptions

	interner *text.Interner

	cur       *text.Line
	style     text.Style
	lastSpace int // byte index of the wrap break candidate, -1 when none

	scrollback []*text.Line
	recent     []string

	totalLines       int64
	newlinesReceived int64
	wrapped          int64

	onLine func(*text.Line)
}

// NewAssembler creates an assembler that hands completed lines to
// onLine after filing them.
func NewAssembler(opts AssemblerOptions, onLine func(*text.Line)) *Assembler {
	a := &Assembler{
		opts:     opts,
		interner: text.NewInterner(text.DefaultInternCapacity),
		style:    text.DefaultStyle(),
		onLine:   onLine,
	}
	a.cur = a.newLine(0)
	return a
}

// newLine starts the next line. The live style seeds an empty first run
// so plain appends extend it instead of opening another.
func (a *Assembler) newLine(flags text.LineFlags) *text.Line {
	a.totalLines++
	l := text.NewLine(a.totalLines, flags)
	l.Runs = append(l.Runs, text.Run{Style: a.interner.Style(a.style)})
	a.lastSpace = -1
	return l
}

// Style returns the live style new text will take.
func (a *Assembler) Style() text.Style { return a.style }

// SetStyle replaces the live style. The next text appended starts a run
// with it.
func (a *Assembler) SetStyle(s text.Style) { a.style = s }

// AppendText appends decoded text to the current line in the live style.
func (a *Assembler) AppendText(s string) {
	for _, r := range s {
		a.addRune(r)
	}
}

// addRune wraps before appending, not after: a line that lands exactly
// on the column stays whole until more text actually arrives, so a
// full-width line followed by a newline does not leave a blank row.
func (a *Assembler) addRune(r rune) {
	if a.opts.WrapColumn > 0 {
		a.maybeWrap()
		if r == ' ' && a.lineWidth() < a.opts.WrapColumn {
			a.lastSpace = len(a.cur.Text)
		}
	}
	var buf [4]byte
	n := utf8.EncodeRune(buf[:], r)
	a.cur.Text = append(a.cur.Text, buf[:n]...)
	a.extendRun(n)
}

// extendRun grows the trailing run by n bytes, or opens a new run when
// the live style no longer matches. The empty seed run adopts the first
// style it sees.
func (a *Assembler) extendRun(n int) {
	st := a.interner.Style(a.style)
	last := a.cur.LastRun()
	switch {
	case last == nil:
		a.cur.Runs = append(a.cur.Runs, text.Run{Length: n, Style: st})
	case last.Length == 0:
		last.Style = st
		last.Length = n
	case last.Style == st || last.Style.Same(*st):
		last.Length += n
	default:
		a.cur.Runs = append(a.cur.Runs, text.Run{Length: n, Style: st})
	}
}

func (a *Assembler) lineWidth() int {
	return runewidth.StringWidth(string(a.cur.Text))
}

// maybeWrap breaks the current line for as long as it fills the wrap
// column. Word wrap carries the tail after the last fitting space; a
// line with no spaces at all is left to extend so ASCII art survives.
func (a *Assembler) maybeWrap() {
	for a.lineWidth() >= a.opts.WrapColumn {
		if !a.wrapOnce() {
			return
		}
	}
}

func (a *Assembler) wrapOnce() bool {
	cut := -1
	if a.opts.WordWrap {
		if a.lastSpace >= 0 && runewidth.StringWidth(string(a.cur.Text[a.lastSpace+1:])) < a.opts.WrapColumn {
			// break after the space; the space stays on the upper line
			cut = a.lastSpace + 1
		} else if bytes.IndexByte(a.cur.Text, ' ') < 0 {
			return false
		}
	}
	if cut < 0 {
		cut = a.hardBreak()
	}
	if cut <= 0 {
		return false
	}

	carryText, carryRuns := a.splitAt(cut)
	flags := a.cur.Flags & text.NoteOrCommand
	a.FinishLine(false)
	a.cur.Flags |= flags
	a.restore(carryText, carryRuns)
	a.wrapped++
	return true
}

// hardBreak returns the byte offset of the last grapheme boundary that
// still fits the column. A single oversized cluster moves whole.
func (a *Assembler) hardBreak() int {
	width, cut := 0, 0
	rest := string(a.cur.Text)
	state := -1
	for len(rest) > 0 {
		var cluster string
		cluster, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		w := runewidth.StringWidth(cluster)
		if width+w > a.opts.WrapColumn && cut > 0 {
			break
		}
		width += w
		cut += len(cluster)
		if width >= a.opts.WrapColumn {
			break
		}
	}
	return cut
}

// splitAt truncates the current line at cut and returns the carried
// text and run tail. A run straddling the cut is divided in two.
func (a *Assembler) splitAt(cut int) ([]byte, []text.Run) {
	carryText := append([]byte(nil), a.cur.Text[cut:]...)
	var kept, carried []text.Run
	pos := 0
	for _, run := range a.cur.Runs {
		if run.Length == 0 {
			continue
		}
		start, end := pos, pos+run.Length
		pos = end
		if start < cut {
			k := run
			if end > cut {
				k.Length = cut - start
			}
			kept = append(kept, k)
		}
		if end > cut {
			c := run
			if start < cut {
				c.Length = end - cut
			}
			carried = append(carried, c)
		}
	}
	a.cur.Text = a.cur.Text[:cut]
	a.cur.Runs = kept
	return carryText, carried
}

// restore lays carried text onto the fresh line with its original runs
// and recomputes the wrap break candidate.
func (a *Assembler) restore(carry []byte, runs []text.Run) {
	if len(carry) == 0 {
		return
	}
	a.cur.Text = append(a.cur.Text, carry...)
	for _, run := range runs {
		last := a.cur.LastRun()
		switch {
		case last != nil && last.Length == 0:
			*last = run
		case last != nil && (last.Style == run.Style || last.Style.Same(*run.Style)):
			last.Length += run.Length
		default:
			a.cur.Runs = append(a.cur.Runs, run)
		}
	}
	for i := range a.cur.Text {
		if a.cur.Text[i] == ' ' && runewidth.StringWidth(string(a.cur.Text[:i])) < a.opts.WrapColumn {
			a.lastSpace = i
		}
	}
}

// FinishLine completes the current line and starts its successor. Hard
// marks a server newline or explicit break as opposed to a wrap.
func (a *Assembler) FinishLine(hard bool) {
	line := a.cur
	line.HardReturn = hard

	if a.opts.LinkifyURLs {
		a.linkify(line)
	}

	a.scrollback = append(a.scrollback, line)
	if m := a.opts.ScrollbackMax; m > 0 && len(a.scrollback) > m {
		a.scrollback = a.scrollback[1:]
	}

	if hard && line.Flags&text.NoteOrCommand == 0 {
		a.newlinesReceived++
		a.pushRecent(line.String())
	}

	if a.onLine != nil {
		a.onLine(line)
	}

	a.cur = a.newLine(0)
}

// BreakLine ends the line early; markup <br> arrives here.
func (a *Assembler) BreakLine() {
	a.FinishLine(true)
}

// RuleLine emits a horizontal-rule line for markup <hr>. A partial line
// completes first so the rule sits on its own row.
func (a *Assembler) RuleLine() {
	if len(a.cur.Text) > 0 {
		a.FinishLine(true)
	}
	a.cur.Flags |= text.HorizRule
	a.FinishLine(true)
}

// MarkPrompt flags the line under construction as a prompt.
func (a *Assembler) MarkPrompt() {
	a.cur.Prompt = true
}

// Current returns the line under construction.
func (a *Assembler) Current() *text.Line { return a.cur }

// Scrollback returns the retained completed lines, oldest first. The
// slice is live; callers must not modify it.
func (a *Assembler) Scrollback() []*text.Line { return a.scrollback }

// Recent returns the plain text of the latest hard server lines.
func (a *Assembler) Recent() []string { return a.recent }

func (a *Assembler) pushRecent(s string) {
	if a.opts.RecentLines <= 0 {
		return
	}
	a.recent = append(a.recent, s)
	if len(a.recent) > a.opts.RecentLines {
		a.recent = a.recent[1:]
	}
}

// Note injects client-generated text as note lines in the palette note
// colour. A partial server line completes first; the server continues
// on a fresh line afterwards.
func (a *Assembler) Note(s string) {
	a.inject(s, text.Note, theme.Current().NoteFore)
}

// Echo injects a locally echoed command as a user-input line.
func (a *Assembler) Echo(s string) {
	a.inject(s, text.UserInput, theme.Current().EchoFore)
}

func (a *Assembler) inject(s string, flags text.LineFlags, fore text.Colour) {
	if len(a.cur.Text) > 0 {
		a.FinishLine(true)
	}

	saved := a.style
	st := text.DefaultStyle()
	st.Flags = st.Flags&^text.ColourTypeMask | text.ColourRGB
	st.Fore = fore
	st.Back = text.NewRGB(0, 0, 0)
	a.style = st

	a.cur.Flags |= flags
	for i, part := range strings.Split(strings.TrimSuffix(s, "\n"), "\n") {
		if i > 0 {
			a.FinishLine(true)
			a.cur.Flags |= flags
		}
		a.AppendText(part)
	}
	a.FinishLine(true)
	a.style = saved
}

// Stats returns the line counters.
func (a *Assembler) Stats() AssemblerStats {
	return AssemblerStats{
		TotalLines:       a.totalLines,
		NewlinesReceived: a.newlinesReceived,
		WrappedLines:     a.wrapped,
		ScrollbackLines:  len(a.scrollback),
	}
}

// DropPartial abandons the line under construction and the live style,
// for a connection reset. History stays.
func (a *Assembler) DropPartial() {
	a.style = text.DefaultStyle()
	a.cur = a.newLine(0)
}

// Clear wipes history as well; a fresh session starts from nothing.
func (a *Assembler) Clear() {
	a.scrollback = nil
	a.recent = nil
	a.totalLines = 0
	a.newlinesReceived = 0
	a.wrapped = 0
	a.DropPartial()
}

// linkify rewrites runs so detected URLs become clickable spans in the
// link colour. Runs crossing a URL boundary split; adjacent equal
// segments merge back.
func (a *Assembler) linkify(line *text.Line) {
	if len(line.Text) == 0 {
		return
	}
	matches := urlPattern.FindAllIndex(line.Text, -1)
	if len(matches) == 0 {
		return
	}
	linkFore := theme.Current().LinkedURL

	var out []text.Run
	add := func(n int, st *text.Style) {
		if n == 0 {
			return
		}
		if len(out) > 0 && out[len(out)-1].Style == st {
			out[len(out)-1].Length += n
			return
		}
		out = append(out, text.Run{Length: n, Style: st})
	}

	pos, mi := 0, 0
	for _, run := range line.Runs {
		if run.Length == 0 {
			continue
		}
		start, end := pos, pos+run.Length
		pos = end
		for start < end {
			for mi < len(matches) && matches[mi][1] <= start {
				mi++
			}
			inURL := mi < len(matches) && matches[mi][0] <= start
			segEnd := end
			if mi < len(matches) {
				if inURL {
					segEnd = min(segEnd, matches[mi][1])
				} else {
					segEnd = min(segEnd, matches[mi][0])
				}
			}
			st := run.Style
			if inURL {
				url := string(line.Text[matches[mi][0]:matches[mi][1]])
				st = a.linkStyle(*run.Style, url, linkFore)
			}
			add(segEnd-start, st)
			start = segEnd
		}
	}
	line.Runs = out
}

// linkStyle derives the clickable span style: link colour over the
// original background, underlined, opening the URL on activation.
func (a *Assembler) linkStyle(base text.Style, url string, fore text.Colour) *text.Style {
	st := base
	if st.Flags.ColourType() != text.ColourRGB {
		_, st.Back = theme.Current().Resolve(base)
	}
	st.Flags = st.Flags&^(text.ColourTypeMask|text.ActionTypeMask) |
		text.ColourRGB | text.ActionHyperlink | text.Underline
	st.Fore = fore
	st.Action = a.interner.Action(text.Action{Send: url, Hint: url})
	return a.interner.Style(st)
}
