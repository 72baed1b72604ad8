package streaming

import "fmt"

// Phase is the byte-dispatch state of the stream machine. One incoming
// byte moves the machine between phases with no lookahead, so escape
// sequences, telnet commands and markup torn across network reads cost
// nothing to reassemble.
type Phase int

const (
	PhaseNone Phase = iota

	// ANSI escape parsing.
	PhaseEsc          // ESC seen, '[' expected
	PhaseCode         // inside ESC[ collecting a numeric parameter
	PhaseFore256      // ESC[38; seen, next code selects 5 (palette) or 2 (RGB)
	PhaseFore256Index // ESC[38;5; seen, next code is the xterm index
	PhaseForeRed      // ESC[38;2; seen, next three codes are the channels
	PhaseForeGreen
	PhaseForeBlue
	PhaseBack256
	PhaseBack256Index
	PhaseBackRed
	PhaseBackGreen
	PhaseBackBlue

	// Telnet command parsing.
	PhaseIAC
	PhaseWill
	PhaseWont
	PhaseDo
	PhaseDont
	PhaseSB           // IAC SB seen, option byte expected
	PhaseSubneg       // collecting a subnegotiation payload
	PhaseSubnegIAC    // IAC inside a subnegotiation
	PhaseCompress     // IAC SB COMPRESS seen, the MCCP v1 quirk sequence
	PhaseCompressWill // IAC SB COMPRESS WILL seen, SE starts compression

	// Multi-byte character reassembly.
	PhaseUTF8

	// Markup collection.
	PhaseElement      // between '<' and '>'
	PhaseElementQuote // inside a quoted attribute value
	PhaseComment      // inside <!-- -->
	PhaseEntity       // between '&' and ';'
)

var phaseNames = [...]string{
	PhaseNone:         "None",
	PhaseEsc:          "Esc",
	PhaseCode:         "Code",
	PhaseFore256:      "Fore256",
	PhaseFore256Index: "Fore256Index",
	PhaseForeRed:      "ForeRed",
	PhaseForeGreen:    "ForeGreen",
	PhaseForeBlue:     "ForeBlue",
	PhaseBack256:      "Back256",
	PhaseBack256Index: "Back256Index",
	PhaseBackRed:      "BackRed",
	PhaseBackGreen:    "BackGreen",
	PhaseBackBlue:     "BackBlue",
	PhaseIAC:          "IAC",
	PhaseWill:         "Will",
	PhaseWont:         "Wont",
	PhaseDo:           "Do",
	PhaseDont:         "Dont",
	PhaseSB:           "SB",
	PhaseSubneg:       "Subneg",
	PhaseSubnegIAC:    "SubnegIAC",
	PhaseCompress:     "Compress",
	PhaseCompressWill: "CompressWill",
	PhaseUTF8:         "UTF8",
	PhaseElement:      "Element",
	PhaseElementQuote: "ElementQuote",
	PhaseComment:      "Comment",
	PhaseEntity:       "Entity",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}
