package streaming

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"mudstream/internal/ansi"
	"mudstream/internal/log"
	"mudstream/internal/mxp"
	"mudstream/internal/telnet"
	"mudstream/internal/text"
	"mudstream/internal/theme"
)

// Collection buffers stop growing at these sizes; a stream that blows
// them is broken and the partial content is discarded.
const (
	maxSubnegLength  = 64 * 1024
	maxElementLength = 8 * 1024
	maxEntityLength  = 512
)

// MachineStats counts stream-level oddities and prompt markers.
type MachineStats struct {
	UTF8Errors   int64 // invalid, torn or overlong sequences dropped
	MarkupErrors int64 // tag and entity collection restarts
	Overflows    int64 // oversized collection buffers discarded
	Prompts      int64 // GA and EOR markers seen
}

// Machine dispatches one plain (post-decompression) byte at a time into
// telnet negotiation, ANSI colour parsing, markup collection and line
// text. Compression activations are flagged rather than handled: the
// bytes after the activation sequence are compressed, so the caller
// must route them back through the decompressor before feeding more.
type Machine struct {
	neg *telnet.Negotiator
	eng *mxp.Engine
	asm *Assembler

	utf8      bool
	cmap      *charmap.Charmap
	convertGA bool

	phase Phase

	code       int // numeric parameter being accumulated
	red, green int // pending truecolor channels

	utf8Buf  [4]byte
	utf8Len  int
	utf8Need int // continuation bytes expected

	subnegOption byte
	subneg       bytes.Buffer
	markup       bytes.Buffer // element, comment and entity collection
	quote        byte         // closing quote inside PhaseElementQuote

	pendingCompression int // 0 none, else the MCCP version just activated

	onPrompt func()

	stats MachineStats
}

// NewMachine wires a machine to its negotiator, markup engine and line
// assembler.
func NewMachine(opts Options, neg *telnet.Negotiator, eng *mxp.Engine, asm *Assembler) *Machine {
	m := &Machine{
		neg:       neg,
		eng:       eng,
		asm:       asm,
		utf8:      opts.UTF8,
		convertGA: opts.ConvertGAToNewline,
	}
	if !opts.UTF8 {
		m.cmap = charmapByName(opts.Charset)
	}
	return m
}

// charmapByName resolves a session charset to its single-byte decode
// table. Unknown names fall back to Latin-1, which maps every byte to
// the code point of the same value.
func charmapByName(name string) *charmap.Charmap {
	switch strings.ToUpper(name) {
	case "CP437", "IBM437", "437":
		return charmap.CodePage437
	case "WINDOWS-1252", "CP1252", "1252":
		return charmap.Windows1252
	default:
		return charmap.ISO8859_1
	}
}

// ProcessByte advances the machine by one byte.
func (m *Machine) ProcessByte(b byte) {
	switch m.phase {
	case PhaseNone:
		m.plainByte(b)
	case PhaseEsc:
		m.escByte(b)
	case PhaseCode, PhaseFore256, PhaseFore256Index, PhaseForeRed, PhaseForeGreen, PhaseForeBlue,
		PhaseBack256, PhaseBack256Index, PhaseBackRed, PhaseBackGreen, PhaseBackBlue:
		m.ansiByte(b)
	case PhaseIAC:
		m.iacByte(b)
	case PhaseWill:
		m.neg.HandleWill(b)
		m.phase = PhaseNone
	case PhaseWont:
		m.neg.HandleWont(b)
		m.phase = PhaseNone
	case PhaseDo:
		m.neg.HandleDo(b)
		m.phase = PhaseNone
	case PhaseDont:
		m.neg.HandleDont(b)
		m.phase = PhaseNone
	case PhaseSB:
		m.sbByte(b)
	case PhaseSubneg:
		m.subnegByte(b)
	case PhaseSubnegIAC:
		m.subnegIACByte(b)
	case PhaseCompress:
		if b == telnet.WILL {
			m.phase = PhaseCompressWill
		} else {
			m.phase = PhaseNone
		}
	case PhaseCompressWill:
		// the v1 activation sequence ends IAC SB COMPRESS WILL SE
		if b == telnet.SE {
			log.Info("MCCP v1 compression starting")
			m.pendingCompression = 1
		}
		m.phase = PhaseNone
	case PhaseUTF8:
		m.utf8Continuation(b)
	case PhaseElement:
		m.elementByte(b)
	case PhaseElementQuote:
		m.elementQuoteByte(b)
	case PhaseComment:
		m.commentByte(b)
	case PhaseEntity:
		m.entityByte(b)
	}
}

func (m *Machine) plainByte(b byte) {
	switch {
	case b == telnet.IAC:
		m.phase = PhaseIAC
	case b == 0x1B:
		m.phase = PhaseEsc
	case m.utf8 && b >= 0x80:
		m.utf8Lead(b)
	case b == '<' && m.eng.CollectsMarkup():
		m.markup.Reset()
		m.phase = PhaseElement
	case b == '&' && m.eng.CollectsMarkup():
		m.markup.Reset()
		m.phase = PhaseEntity
	case b == '\n':
		m.newline()
	case b == '\r':
		// carriage returns carry no information of their own
	case b >= 32 || b == '\t':
		m.charByte(b)
	default:
		// remaining C0 controls are dropped
	}
}

// newline ends the display line unless markup is joining lines:
// paragraph mode turns the break into a space and <nobr> swallows one
// break outright. Script bodies absorb their newlines entirely.
func (m *Machine) newline() {
	if m.eng.Diverting() {
		m.eng.TextAdded("\n")
		return
	}
	switch {
	case m.eng.InParagraph():
		m.emitText(" ")
	case m.eng.NoBreak():
	default:
		m.asm.FinishLine(true)
	}
	m.eng.LineEnded()
}

func (m *Machine) charByte(b byte) {
	if m.utf8 {
		// plain ASCII; multi-byte sequences took the lead path
		m.emitText(string(b))
		return
	}
	m.emitRune(m.cmap.DecodeByte(b))
}

// emitText routes displayable text: script bodies swallow it, markup
// captures mirror it, everything else lands on the current line.
func (m *Machine) emitText(s string) {
	if s == "" {
		return
	}
	if m.eng.Diverting() {
		m.eng.TextAdded(s)
		return
	}
	m.asm.AppendText(s)
	m.eng.TextAdded(s)
}

func (m *Machine) emitRune(r rune) {
	m.emitText(string(r))
}

func (m *Machine) utf8Lead(b byte) {
	switch {
	case b&0xE0 == 0xC0:
		m.utf8Need = 1
	case b&0xF0 == 0xE0:
		m.utf8Need = 2
	case b&0xF8 == 0xF0:
		m.utf8Need = 3
	default:
		// stray continuation or invalid lead
		m.stats.UTF8Errors++
		return
	}
	m.utf8Buf[0] = b
	m.utf8Len = 1
	m.phase = PhaseUTF8
}

func (m *Machine) utf8Continuation(b byte) {
	if b&0xC0 != 0x80 {
		// torn sequence: drop what we had and let this byte start over
		m.stats.UTF8Errors++
		m.utf8Len = 0
		m.phase = PhaseNone
		m.ProcessByte(b)
		return
	}
	m.utf8Buf[m.utf8Len] = b
	m.utf8Len++
	if m.utf8Len < m.utf8Need+1 {
		return
	}
	seq := m.utf8Buf[:m.utf8Len]
	m.utf8Len = 0
	m.phase = PhaseNone
	if !utf8.Valid(seq) {
		// overlong and surrogate encodings never display
		m.stats.UTF8Errors++
		return
	}
	m.emitText(string(seq))
}

func (m *Machine) escByte(b byte) {
	if b == '[' {
		m.code = 0
		m.phase = PhaseCode
		return
	}
	// not a CSI sequence; the introducer and this byte both vanish
	m.phase = PhaseNone
}

// ansiByte handles every byte inside ESC[. Digits accumulate, ';' and
// ':' apply the pending code, 'm' applies and ends the sequence, 'z' is
// the markup line-security tag. Anything else abandons the sequence.
func (m *Machine) ansiByte(b byte) {
	switch {
	case b >= '0' && b <= '9':
		if m.code <= 0xFFFF {
			m.code = m.code*10 + int(b-'0')
		}
	case b == ';' || b == ':':
		m.applyAnsiCode()
		m.code = 0
	case b == 'm':
		m.applyAnsiCode()
		m.code = 0
		m.phase = PhaseNone
	case b == 'z':
		m.eng.ModeChange(m.code)
		m.code = 0
		m.phase = PhaseNone
	default:
		m.code = 0
		m.phase = PhaseNone
	}
}

// applyAnsiCode folds the accumulated parameter into the live style.
// The extended-colour states form a chain: 38/48 select a channel, 5 or
// 2 select the form, then the index or the three channels follow. A
// sequence cut short leaves the style untouched.
func (m *Machine) applyAnsiCode() {
	pal := theme.Current()
	st := m.asm.Style()

	switch m.phase {
	case PhaseCode:
		switch ansi.ApplyCode(pal, &st, m.code) {
		case ansi.ExtendedFore:
			m.phase = PhaseFore256
		case ansi.ExtendedBack:
			m.phase = PhaseBack256
		}

	case PhaseFore256, PhaseBack256:
		back := m.phase == PhaseBack256
		switch m.code {
		case 5:
			if back {
				m.phase = PhaseBack256Index
			} else {
				m.phase = PhaseFore256Index
			}
		case 2:
			if back {
				m.phase = PhaseBackRed
			} else {
				m.phase = PhaseForeRed
			}
		default:
			// neither palette nor RGB form; abandon the sequence
			m.phase = PhaseNone
		}

	case PhaseFore256Index, PhaseBack256Index:
		// out-of-range indices change nothing but later codes still apply
		ansi.SetExtended256(pal, &st, m.code, m.phase == PhaseBack256Index)
		m.phase = PhaseCode

	case PhaseForeRed:
		m.red = clamp255(m.code)
		m.phase = PhaseForeGreen
	case PhaseForeGreen:
		m.green = clamp255(m.code)
		m.phase = PhaseForeBlue
	case PhaseForeBlue:
		ansi.SetExtendedRGB(pal, &st, text.NewRGB(uint8(m.red), uint8(m.green), uint8(clamp255(m.code))), false)
		m.phase = PhaseCode

	case PhaseBackRed:
		m.red = clamp255(m.code)
		m.phase = PhaseBackGreen
	case PhaseBackGreen:
		m.green = clamp255(m.code)
		m.phase = PhaseBackBlue
	case PhaseBackBlue:
		ansi.SetExtendedRGB(pal, &st, text.NewRGB(uint8(m.red), uint8(m.green), uint8(clamp255(m.code))), true)
		m.phase = PhaseCode
	}

	m.asm.SetStyle(st)
}

func clamp255(v int) int {
	if v > 255 {
		return 255
	}
	return v
}

func (m *Machine) iacByte(b byte) {
	switch b {
	case telnet.GA, telnet.EOR:
		m.prompt()
		m.phase = PhaseNone
	case telnet.SB:
		m.phase = PhaseSB
	case telnet.WILL:
		m.phase = PhaseWill
	case telnet.WONT:
		m.phase = PhaseWont
	case telnet.DO:
		m.phase = PhaseDo
	case telnet.DONT:
		m.phase = PhaseDont
	case telnet.IAC:
		// doubled IAC is a literal 0xFF data byte
		m.phase = PhaseNone
		m.literal255()
	default:
		// NOP, DM, AYT and the other bare commands need no action
		m.phase = PhaseNone
	}
}

func (m *Machine) literal255() {
	if m.utf8 {
		// 0xFF never occurs in UTF-8
		m.stats.UTF8Errors++
		return
	}
	m.emitRune(m.cmap.DecodeByte(0xFF))
}

// prompt handles GA and EOR: the line in flight is marked, announced,
// and optionally completed as if a newline had followed.
func (m *Machine) prompt() {
	m.stats.Prompts++
	m.asm.MarkPrompt()
	if m.onPrompt != nil {
		m.onPrompt()
	}
	if m.convertGA {
		m.asm.FinishLine(true)
		m.eng.LineEnded()
	}
}

func (m *Machine) sbByte(b byte) {
	if b == telnet.COMPRESS {
		m.phase = PhaseCompress
		return
	}
	m.subnegOption = b
	m.subneg.Reset()
	m.phase = PhaseSubneg
}

func (m *Machine) subnegByte(b byte) {
	if b == telnet.IAC {
		m.phase = PhaseSubnegIAC
		return
	}
	m.appendSubneg(b)
}

func (m *Machine) subnegIACByte(b byte) {
	if b == telnet.IAC {
		// doubled IAC is one data byte
		m.phase = PhaseSubneg
		m.appendSubneg(0xFF)
		return
	}
	// any other byte ends the payload; SE is the well-formed case
	m.phase = PhaseNone
	m.dispatchSubneg()
}

func (m *Machine) appendSubneg(b byte) {
	if m.subneg.Len() >= maxSubnegLength {
		log.Warn("Oversized subnegotiation discarded", "option", telnet.OptionName(m.subnegOption))
		m.stats.Overflows++
		m.subneg.Reset()
		m.phase = PhaseNone
		return
	}
	m.subneg.WriteByte(b)
}

func (m *Machine) dispatchSubneg() {
	if m.subnegOption == telnet.COMPRESS2 {
		log.Info("MCCP v2 compression starting")
		m.pendingCompression = 2
		m.subneg.Reset()
		return
	}
	m.neg.HandleSubnegotiation(m.subnegOption, m.subneg.Bytes())
	m.subneg.Reset()
}

func (m *Machine) elementByte(b byte) {
	switch b {
	case '>':
		element := m.markup.String()
		m.markup.Reset()
		m.phase = PhaseNone
		m.eng.CollectedElement(element)
	case '<':
		log.Warn("'<' inside a tag, restarting collection", "partial", m.markup.String())
		m.stats.MarkupErrors++
		m.markup.Reset()
	case '\'', '"':
		if m.appendMarkup(b, maxElementLength) {
			m.quote = b
			m.phase = PhaseElementQuote
		}
	case '-':
		if m.appendMarkup(b, maxElementLength) && m.markup.Len() == 3 &&
			bytes.Equal(m.markup.Bytes(), []byte("!--")) {
			m.phase = PhaseComment
		}
	default:
		m.appendMarkup(b, maxElementLength)
	}
}

func (m *Machine) elementQuoteByte(b byte) {
	if !m.appendMarkup(b, maxElementLength) {
		return
	}
	if b == m.quote {
		m.phase = PhaseElement
	}
}

func (m *Machine) commentByte(b byte) {
	if b == '>' && bytes.HasSuffix(m.markup.Bytes(), []byte("--")) {
		// comments are dropped whole, the engine never sees them
		m.markup.Reset()
		m.phase = PhaseNone
		return
	}
	m.appendMarkup(b, maxElementLength)
}

func (m *Machine) entityByte(b byte) {
	switch b {
	case ';':
		name := m.markup.String()
		m.markup.Reset()
		m.phase = PhaseNone
		m.emitText(m.eng.CollectedEntity(name))
	case '&':
		log.Warn("'&' inside an entity, restarting collection", "partial", m.markup.String())
		m.stats.MarkupErrors++
		m.markup.Reset()
	case '<':
		log.Warn("'<' inside an entity, collecting a tag instead", "partial", m.markup.String())
		m.stats.MarkupErrors++
		m.markup.Reset()
		m.phase = PhaseElement
	default:
		m.appendMarkup(b, maxEntityLength)
	}
}

func (m *Machine) appendMarkup(b byte, limit int) bool {
	if m.markup.Len() >= limit {
		log.Warn("Oversized markup discarded", "phase", m.phase.String())
		m.stats.Overflows++
		m.markup.Reset()
		m.phase = PhaseNone
		return false
	}
	m.markup.WriteByte(b)
	return true
}

// AbortMarkup drops a half-collected tag or entity. Markup switching
// off mid-tag would otherwise leave the machine eating text until the
// next '>' by luck.
func (m *Machine) AbortMarkup() {
	switch m.phase {
	case PhaseElement, PhaseElementQuote, PhaseComment, PhaseEntity:
		m.markup.Reset()
		m.phase = PhaseNone
	}
}

// TakePendingCompression returns the MCCP version a just-processed byte
// activated, clearing the flag. Everything after the activation
// sequence is compressed and must re-enter through the decompressor.
func (m *Machine) TakePendingCompression() int {
	v := m.pendingCompression
	m.pendingCompression = 0
	return v
}

// Reset returns the machine to the ground state for a new connection.
func (m *Machine) Reset() {
	m.phase = PhaseNone
	m.code = 0
	m.red, m.green = 0, 0
	m.utf8Len = 0
	m.utf8Need = 0
	m.subneg.Reset()
	m.markup.Reset()
	m.quote = 0
	m.pendingCompression = 0
	m.stats = MachineStats{}
}

// Phase exposes the dispatch state for tests and diagnostics.
func (m *Machine) Phase() Phase { return m.phase }

// Stats returns the oddity counters.
func (m *Machine) Stats() MachineStats { return m.stats }
