package telnet

import "fmt"

// Telnet command constants
const (
	IAC  = 0xFF // Interpret As Command
	DONT = 0xFE // Don't use option
	DO   = 0xFD // Use option
	WONT = 0xFC // Won't use option
	WILL = 0xFB // Will use option
	SB   = 0xFA // Subnegotiation Begin
	GA   = 0xF9 // Go Ahead
	EL   = 0xF8 // Erase Line
	EC   = 0xF7 // Erase Character
	AYT  = 0xF6 // Are You There
	AO   = 0xF5 // Abort Output
	IP   = 0xF4 // Interrupt Process
	BRK  = 0xF3 // Break
	DM   = 0xF2 // Data Mark
	NOP  = 0xF1 // No Operation
	SE   = 0xF0 // Subnegotiation End
	EOR  = 0xEF // End Of Record (prompt marker, like GA)
)

// Telnet option constants
const (
	ECHO              = 0x01 // 1: server-controlled echo
	SUPPRESS_GO_AHEAD = 0x03 // 3: suppress go ahead
	TERMINAL_TYPE     = 0x18 // 24: terminal type / MTTS
	END_OF_RECORD     = 0x19 // 25: EOR prompt marking
	NAWS              = 0x1F // 31: Negotiate About Window Size
	CHARSET           = 0x2A // 42: RFC 2066 charset negotiation
	COMPRESS          = 0x55 // 85: MCCP v1
	COMPRESS2         = 0x56 // 86: MCCP v2
	MSP               = 0x5A // 90: MUD Sound Protocol
	MXP               = 0x5B // 91: MUD eXtension Protocol
	ZMP               = 0x5D // 93: Zenith MUD Protocol
	MUD_SPECIFIC      = 0x66 // 102: Aardwolf out-of-band data
	ATCP              = 0xC8 // 200: Achaea Telnet Client Protocol
	GMCP              = 0xC9 // 201: Generic MUD Communication Protocol
)

// Subnegotiation verbs shared by TERMINAL-TYPE and CHARSET.
const (
	TTYPE_IS   = 0 // terminal type reply
	TTYPE_SEND = 1 // terminal type request

	CHARSET_REQUEST  = 1
	CHARSET_ACCEPTED = 2
	CHARSET_REJECTED = 3
)

var optionNames = map[byte]string{
	ECHO:              "ECHO",
	SUPPRESS_GO_AHEAD: "SUPPRESS-GO-AHEAD",
	TERMINAL_TYPE:     "TERMINAL-TYPE",
	END_OF_RECORD:     "END-OF-RECORD",
	NAWS:              "NAWS",
	CHARSET:           "CHARSET",
	COMPRESS:          "COMPRESS",
	COMPRESS2:         "COMPRESS2",
	MSP:               "MSP",
	MXP:               "MXP",
	ZMP:               "ZMP",
	MUD_SPECIFIC:      "MUD-SPECIFIC",
	ATCP:              "ATCP",
	GMCP:              "GMCP",
}

var commandNames = map[byte]string{
	IAC:  "IAC",
	DONT: "DONT",
	DO:   "DO",
	WONT: "WONT",
	WILL: "WILL",
	SB:   "SB",
	GA:   "GA",
	EL:   "EL",
	EC:   "EC",
	AYT:  "AYT",
	AO:   "AO",
	IP:   "IP",
	BRK:  "BRK",
	DM:   "DM",
	NOP:  "NOP",
	SE:   "SE",
	EOR:  "EOR",
}

// OptionName returns a readable name for a telnet option, or the numeric
// value for options we have no name for.
func OptionName(option byte) string {
	if name, ok := optionNames[option]; ok {
		return name
	}
	return fmt.Sprintf("%d", option)
}

// CommandName returns a readable name for a telnet command byte.
func CommandName(command byte) string {
	if name, ok := commandNames[command]; ok {
		return name
	}
	return fmt.Sprintf("%d", command)
}
