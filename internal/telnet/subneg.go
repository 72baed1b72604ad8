package telnet

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mudstream/internal/log"
)

const clientDescription = "MUD terminal client"

// Sound is a parsed MUD Sound Protocol request.
type Sound struct {
	Command  string // SOUND, MUSIC or STOP
	Filename string
	Volume   int    // 0 (silent) to 100 (full)
	Loop     bool   // repeat until stopped
	URL      string // download base when the file is not local
}

// HandleSubnegotiation dispatches a completed IAC SB <option> ... IAC SE
// payload. COMPRESS/COMPRESS2 activation is the decompression stage's
// business and never arrives here.
func (n *Negotiator) HandleSubnegotiation(option byte, data []byte) {
	log.Debug("Received subnegotiation", "option", OptionName(option), "bytes", len(data))

	switch option {
	case MXP:
		// IAC SB MXP IAC SE is the server's "start now" signal.
		if n.cfg.UseMXP == MXPOnNegotiated && n.OnMXPEnable != nil {
			n.OnMXPEnable()
		}
	case TERMINAL_TYPE:
		n.handleTerminalType(data)
	case CHARSET:
		n.handleCharset(data)
	case ZMP:
		n.handleZMP(data)
	case ATCP:
		n.handleATCP(data)
	case GMCP:
		n.handleGMCP(data)
	case MSP:
		n.handleMSP(data)
	case MUD_SPECIFIC:
		if n.OnTelnetPayload != nil {
			n.OnTelnetPayload(MUD_SPECIFIC, "", string(data))
		}
		fallthrough
	default:
		if n.OnSubnegotiation != nil {
			n.OnSubnegotiation(option, data)
		}
	}
}

// handleTerminalType answers IAC SB TTYPE SEND IAC SE. Successive requests
// walk the MTTS cycle: the configured identification first, then "ANSI",
// then an "MTTS <bitmask>" report the cycle parks on.
func (n *Negotiator) handleTerminalType(data []byte) {
	if len(data) == 0 || data[0] != TTYPE_SEND {
		return
	}

	var name string
	switch n.ttypeSequence {
	case 0:
		name = truncate(n.cfg.TerminalType, 20)
		n.ttypeSequence++
	case 1:
		name = "ANSI"
		n.ttypeSequence++
	default:
		// ANSI(1) + 256 colours(8) + true colour(256), plus UTF-8(4).
		if n.cfg.UTF8 {
			name = "MTTS 269"
		} else {
			name = "MTTS 265"
		}
	}

	p := []byte{IAC, SB, TERMINAL_TYPE, TTYPE_IS}
	p = append(p, name...)
	p = append(p, IAC, SE)

	log.Debug("Sending terminal type", "name", name)
	n.send(p)
}

// handleCharset answers IAC SB CHARSET REQUEST <delim> <names> IAC SE with
// the first charset both sides know, or a rejection.
func (n *Negotiator) handleCharset(data []byte) {
	if len(data) < 3 || data[0] != CHARSET_REQUEST {
		return
	}

	offered := bytes.Split(data[2:], data[1:2])

	var want []string
	if n.cfg.UTF8 {
		want = append(want, "UTF-8")
	}
	if n.cfg.Charset != "" {
		want = append(want, n.cfg.Charset)
	}
	want = append(want, "US-ASCII")

	for _, name := range want {
		for _, cs := range offered {
			if string(cs) != name {
				continue
			}
			p := []byte{IAC, SB, CHARSET, CHARSET_ACCEPTED}
			p = append(p, truncate(name, 20)...)
			p = append(p, IAC, SE)

			log.Debug("Accepting charset", "name", name)
			n.send(p)
			return
		}
	}

	log.Debug("Rejecting charset request", "offered", string(data[2:]))
	n.send([]byte{IAC, SB, CHARSET, CHARSET_REJECTED, IAC, SE})
}

// handleZMP processes a NUL-separated ZMP command with arguments. The core
// zmp.* commands get built-in replies; everything reaches the payload hook.
func (n *Negotiator) handleZMP(data []byte) {
	if !n.zmpActive || len(data) == 0 {
		return
	}

	parts := bytes.Split(data, []byte{0})
	for len(parts) > 0 && len(parts[len(parts)-1]) == 0 {
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 {
		return
	}

	command := string(parts[0])
	args := make([]string, 0, len(parts)-1)
	for _, p := range parts[1:] {
		args = append(args, string(p))
	}

	switch {
	case command == "zmp.ping":
		n.sendZMP("zmp.time", time.Now().UTC().Format("2006-01-02 15:04:05"))

	case command == "zmp.check" && len(args) > 0:
		pkg := args[0]
		if strings.HasPrefix(pkg, "zmp.") {
			n.sendZMP("zmp.support", pkg)
		} else {
			n.sendZMP("zmp.no-support", pkg)
		}

	case command == "zmp.ident":
		n.sendZMP("zmp.ident", n.cfg.ClientName, n.cfg.ClientVersion, clientDescription)
	}

	if n.OnTelnetPayload != nil {
		n.OnTelnetPayload(ZMP, command, strings.Join(args, " "))
	}
}

func (n *Negotiator) sendZMP(args ...string) {
	p := []byte{IAC, SB, ZMP}
	for _, a := range args {
		p = append(p, a...)
		p = append(p, 0)
	}
	p = append(p, IAC, SE)
	n.send(p)
}

// handleATCP processes "Package.Command value" text. An Auth.Request gets
// the client identification reply some servers gate features on.
func (n *Negotiator) handleATCP(data []byte) {
	if !n.atcpActive || len(data) == 0 {
		return
	}

	message, value := splitMessage(string(data))
	if message == "Auth.Request" {
		hello := fmt.Sprintf("hello %s %s", n.cfg.ClientName, n.cfg.ClientVersion)
		p := []byte{IAC, SB, ATCP}
		p = append(p, hello...)
		p = append(p, IAC, SE)
		n.send(p)
	}

	if n.OnTelnetPayload != nil {
		n.OnTelnetPayload(ATCP, message, value)
	}
}

// handleGMCP forwards "Module.Name {json}" payloads to the hook.
func (n *Negotiator) handleGMCP(data []byte) {
	if !n.gmcpActive || len(data) == 0 {
		return
	}

	message, value := splitMessage(string(data))
	if n.OnTelnetPayload != nil {
		n.OnTelnetPayload(GMCP, message, value)
	}
}

// handleMSP parses a sound request and hands it to the sound hook. No audio
// plays here; the embedder decides what a SOUND or MUSIC request means.
func (n *Negotiator) handleMSP(data []byte) {
	if !n.mspActive || len(data) == 0 {
		return
	}

	raw := string(data)
	if s, ok := parseSound(raw); ok {
		log.Debug("MSP request", "command", s.Command, "filename", s.Filename,
			"volume", s.Volume, "loop", s.Loop)
		if n.OnSound != nil {
			n.OnSound(s)
		}
	}

	if n.OnTelnetPayload != nil {
		message, value := splitMessage(raw)
		n.OnTelnetPayload(MSP, message, value)
	}
}

// parseSound parses "SOUND|MUSIC|STOP <filename> [V=vol] [L=loops] [P=pri]
// [T=type] [U=url]". Priority and type are accepted and ignored. A SOUND
// loops for L=-1 or a count above one; MUSIC loops unless L=1 says once.
func parseSound(s string) (Sound, bool) {
	parts := strings.Fields(s)
	if len(parts) < 2 {
		log.Warn("Invalid MSP request", "data", s)
		return Sound{}, false
	}

	snd := Sound{
		Command:  strings.ToUpper(parts[0]),
		Filename: parts[1],
		Volume:   100,
	}
	loops := 1

	for _, param := range parts[2:] {
		if len(param) < 2 {
			continue
		}
		value := param[2:]
		switch strings.ToUpper(param[:2]) {
		case "V=":
			snd.Volume = clampInt(atoiZero(value), 0, 100)
		case "L=":
			loops = atoiZero(value)
		case "U=":
			snd.URL = value
		}
	}

	switch snd.Command {
	case "SOUND":
		snd.Loop = loops < 0 || loops > 1
	case "MUSIC":
		snd.Loop = loops != 1
	case "STOP":
	default:
		log.Warn("Unknown MSP command", "command", snd.Command)
		return Sound{}, false
	}
	return snd, true
}

// splitMessage splits "Message.Type rest of payload" at the first space.
func splitMessage(s string) (message, value string) {
	message, value, _ = strings.Cut(s, " ")
	return message, value
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

func atoiZero(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
