package telnet

import (
	"mudstream/internal/log"
)

// MXPPolicy controls when MXP is switched on for a session.
type MXPPolicy int

const (
	// MXPNever refuses the option outright.
	MXPNever MXPPolicy = iota
	// MXPOnQuery activates MXP as soon as the server asks for the option.
	MXPOnQuery
	// MXPOnNegotiated agrees to the option but waits for the server's
	// IAC SB MXP IAC SE activation subnegotiation.
	MXPOnNegotiated
)

// Decision is what the NegotiateOverride hook returns for an option.
type Decision int

const (
	// DecideDefault falls through to the built-in policy.
	DecideDefault Decision = iota
	// DecideAccept forces agreement.
	DecideAccept
	// DecideRefuse forces refusal.
	DecideRefuse
)

// Config holds the negotiation policy for a session.
type Config struct {
	// TerminalType is the first answer of the TTYPE/MTTS cycle.
	TerminalType string
	// UTF8 selects UTF-8 in CHARSET negotiation and the MTTS bitmask.
	UTF8 bool
	// Charset is a fallback charset name offered in CHARSET negotiation
	// when UTF-8 is off (e.g. "ISO-8859-1").
	Charset string

	ClientName    string
	ClientVersion string

	// DisableCompression refuses MCCP even though zlib is available.
	DisableCompression bool
	// IgnoreEchoControl refuses server control of local echo.
	IgnoreEchoControl bool
	// ConvertGAToNewline also gates EOR agreement; a server that marks
	// prompts is only useful when we act on the marks.
	ConvertGAToNewline bool

	// NAWS enables window-size reporting with the given dimensions.
	NAWS   bool
	Width  int
	Height int

	UseMXP MXPPolicy

	EnableZMP  bool
	EnableATCP bool
	EnableGMCP bool
	EnableMSP  bool
}

// Stats counts received negotiation verbs for diagnostics.
type Stats struct {
	Will int
	Wont int
	Do   int
	Dont int
}

// Negotiator answers server WILL/WONT/DO/DONT and subnegotiation requests.
// It keeps per-option sent bitsets so repeated requests never loop: a verb
// already on the wire for an option is not sent again until the opposite
// verb clears it.
type Negotiator struct {
	cfg   Config
	write func([]byte) error

	sentWill [256]bool
	sentWont [256]bool
	sentDo   [256]bool
	sentDont [256]bool

	gotWill [256]bool
	gotWont [256]bool
	gotDo   [256]bool
	gotDont [256]bool

	stats Stats

	ttypeSequence int
	supportsMCCP2 bool
	noEcho        bool
	nawsWanted    bool

	zmpActive  bool
	atcpActive bool
	gmcpActive bool
	mspActive  bool

	// NegotiateOverride, when set, is consulted before the built-in policy
	// for server WILL and DO requests.
	NegotiateOverride func(verb byte, option byte) Decision

	// OnReply fires for every negotiation verb actually written.
	OnReply func(verb byte, option byte)

	// OnMXPEnable and OnMXPDisable connect option negotiation to the
	// markup engine.
	OnMXPEnable  func()
	OnMXPDisable func()

	// OnSubnegotiation receives every subnegotiation payload that no
	// built-in handler consumed, plus the Aardwolf payload.
	OnSubnegotiation func(option byte, data []byte)

	// OnTelnetPayload receives ZMP/ATCP/GMCP/Aardwolf application data in
	// parsed form: a message name and its remaining text.
	OnTelnetPayload func(option byte, message string, data string)

	// OnSound receives parsed MSP requests.
	OnSound func(Sound)
}

// NewNegotiator creates a negotiator that emits replies through write.
// A nil writer discards replies, which is what capture replay wants.
func NewNegotiator(cfg Config, write func([]byte) error) *Negotiator {
	if cfg.TerminalType == "" {
		cfg.TerminalType = "mushclient"
	}
	if cfg.ClientName == "" {
		cfg.ClientName = "mudstream"
	}
	if cfg.ClientVersion == "" {
		cfg.ClientVersion = "1.0"
	}
	return &Negotiator{cfg: cfg, write: write}
}

// Reset clears all negotiation state for a fresh connection.
func (n *Negotiator) Reset() {
	n.sentWill = [256]bool{}
	n.sentWont = [256]bool{}
	n.sentDo = [256]bool{}
	n.sentDont = [256]bool{}
	n.gotWill = [256]bool{}
	n.gotWont = [256]bool{}
	n.gotDo = [256]bool{}
	n.gotDont = [256]bool{}
	n.stats = Stats{}
	n.ttypeSequence = 0
	n.supportsMCCP2 = false
	n.noEcho = false
	n.nawsWanted = false
	n.zmpActive = false
	n.atcpActive = false
	n.gmcpActive = false
	n.mspActive = false
}

// Stats returns the verb counters.
func (n *Negotiator) Stats() Stats { return n.stats }

// NoEcho reports whether the server has asked us to stop local echo
// (typically during password entry).
func (n *Negotiator) NoEcho() bool { return n.noEcho }

// SupportsMCCP2 reports whether COMPRESS2 has been agreed, which makes a
// later COMPRESS (v1) offer redundant.
func (n *Negotiator) SupportsMCCP2() bool { return n.supportsMCCP2 }

// UseMXP exposes the configured MXP policy.
func (n *Negotiator) UseMXP() MXPPolicy { return n.cfg.UseMXP }

func (n *Negotiator) send(p []byte) {
	if n.write == nil {
		return
	}
	if err := n.write(p); err != nil {
		log.Warn("Failed to send negotiation reply", "error", err)
	}
}

func (n *Negotiator) reply(verb byte, option byte) {
	log.Debug("Sending negotiation", "verb", CommandName(verb), "option", OptionName(option))
	n.send([]byte{IAC, verb, option})
	if n.OnReply != nil {
		n.OnReply(verb, option)
	}
}

// SendWill offers an option, unless a WILL for it is already outstanding.
func (n *Negotiator) SendWill(option byte) {
	if n.sentWill[option] {
		return
	}
	n.sentWill[option] = true
	n.sentWont[option] = false
	n.reply(WILL, option)
}

// SendWont refuses an option, unless a WONT for it is already outstanding.
func (n *Negotiator) SendWont(option byte) {
	if n.sentWont[option] {
		return
	}
	n.sentWont[option] = true
	n.sentWill[option] = false
	n.reply(WONT, option)
}

// SendDo asks the server to enable an option, with the same suppression.
func (n *Negotiator) SendDo(option byte) {
	if n.sentDo[option] {
		return
	}
	n.sentDo[option] = true
	n.sentDont[option] = false
	n.reply(DO, option)
}

// SendDont asks the server to disable an option, with the same suppression.
func (n *Negotiator) SendDont(option byte) {
	if n.sentDont[option] {
		return
	}
	n.sentDont[option] = true
	n.sentDo[option] = false
	n.reply(DONT, option)
}

func (n *Negotiator) overridden(verb byte, option byte) (Decision, bool) {
	if n.NegotiateOverride == nil {
		return DecideDefault, false
	}
	d := n.NegotiateOverride(verb, option)
	return d, d != DecideDefault
}

// HandleWill processes IAC WILL <option> from the server and answers DO or
// DONT.
func (n *Negotiator) HandleWill(option byte) {
	n.stats.Will++
	n.gotWill[option] = true
	log.Debug("Received negotiation", "verb", "WILL", "option", OptionName(option))

	if d, ok := n.overridden(WILL, option); ok {
		if d == DecideAccept {
			n.SendDo(option)
		} else {
			n.SendDont(option)
		}
		return
	}

	switch option {
	case COMPRESS, COMPRESS2:
		// Prefer v2: once COMPRESS2 is agreed, a v1 offer is refused.
		if n.cfg.DisableCompression || (option == COMPRESS && n.supportsMCCP2) {
			n.SendDont(option)
			return
		}
		n.SendDo(option)
		if option == COMPRESS2 {
			n.supportsMCCP2 = true
		}

	case SUPPRESS_GO_AHEAD:
		n.SendDo(option)

	case ECHO:
		if n.cfg.IgnoreEchoControl {
			n.SendDont(option)
			return
		}
		n.noEcho = true
		n.SendDo(option)

	case MXP:
		if n.cfg.UseMXP == MXPNever {
			n.SendDont(option)
			return
		}
		n.SendDo(option)
		if n.cfg.UseMXP == MXPOnQuery && n.OnMXPEnable != nil {
			n.OnMXPEnable()
		}

	case END_OF_RECORD:
		if n.cfg.ConvertGAToNewline {
			n.SendDo(option)
		} else {
			n.SendDont(option)
		}

	case CHARSET:
		n.SendDo(option)

	case ZMP:
		if n.cfg.EnableZMP {
			n.zmpActive = true
			n.SendDo(option)
		} else {
			n.SendDont(option)
		}

	case ATCP:
		if n.cfg.EnableATCP {
			n.atcpActive = true
			n.SendDo(option)
		} else {
			n.SendDont(option)
		}

	case GMCP:
		if n.cfg.EnableGMCP {
			n.gmcpActive = true
			n.SendDo(option)
		} else {
			n.SendDont(option)
		}

	case MSP:
		if n.cfg.EnableMSP {
			n.mspActive = true
			n.SendDo(option)
		} else {
			n.SendDont(option)
		}

	default:
		n.SendDont(option)
	}
}

// HandleWont processes IAC WONT <option> and acknowledges with DONT. A
// withdrawn ECHO restores local echo; a withdrawn MXP stops markup.
func (n *Negotiator) HandleWont(option byte) {
	n.stats.Wont++
	n.gotWont[option] = true
	log.Debug("Received negotiation", "verb", "WONT", "option", OptionName(option))

	if option == ECHO && !n.cfg.IgnoreEchoControl {
		n.noEcho = false
	}
	n.SendDont(option)

	if option == MXP && n.OnMXPDisable != nil {
		n.OnMXPDisable()
	}
}

// HandleDo processes IAC DO <option> and answers WILL or WONT.
func (n *Negotiator) HandleDo(option byte) {
	n.stats.Do++
	n.gotDo[option] = true
	log.Debug("Received negotiation", "verb", "DO", "option", OptionName(option))

	if d, ok := n.overridden(DO, option); ok {
		if d == DecideAccept {
			n.SendWill(option)
		} else {
			n.SendWont(option)
		}
		return
	}

	switch option {
	case SUPPRESS_GO_AHEAD, ECHO, CHARSET:
		n.SendWill(option)

	case TERMINAL_TYPE:
		n.ttypeSequence = 0
		n.SendWill(option)

	case NAWS:
		if n.cfg.NAWS {
			n.SendWill(option)
			n.nawsWanted = true
			n.SendWindowSize(n.cfg.Width, n.cfg.Height)
		} else {
			n.SendWont(option)
		}

	case MXP:
		if n.cfg.UseMXP == MXPNever {
			n.SendWont(option)
			return
		}
		n.SendWill(option)
		if n.cfg.UseMXP == MXPOnQuery && n.OnMXPEnable != nil {
			n.OnMXPEnable()
		}

	default:
		n.SendWont(option)
	}
}

// HandleDont processes IAC DONT <option>. The reply is always WONT; MXP and
// TTYPE carry extra teardown.
func (n *Negotiator) HandleDont(option byte) {
	n.stats.Dont++
	n.gotDont[option] = true
	log.Debug("Received negotiation", "verb", "DONT", "option", OptionName(option))

	n.SendWont(option)

	switch option {
	case MXP:
		if n.OnMXPDisable != nil {
			n.OnMXPDisable()
		}
	case TERMINAL_TYPE:
		n.ttypeSequence = 0
	}
}

// SendWindowSize sends IAC SB NAWS w h IAC SE with both sizes as big-endian
// 16-bit values and any 0xFF bytes doubled. It is a no-op until the server
// has asked for NAWS.
func (n *Negotiator) SendWindowSize(width, height int) {
	if !n.nawsWanted {
		return
	}

	p := []byte{IAC, SB, NAWS}
	p = appendSizeEscaped(p, uint16(width))
	p = appendSizeEscaped(p, uint16(height))
	p = append(p, IAC, SE)

	log.Debug("Sending window size", "width", width, "height", height)
	n.send(p)
}

func appendSizeEscaped(p []byte, v uint16) []byte {
	for _, b := range []byte{byte(v >> 8), byte(v)} {
		p = append(p, b)
		if b == IAC {
			p = append(p, IAC)
		}
	}
	return p
}
