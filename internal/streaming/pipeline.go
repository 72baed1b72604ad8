// Package streaming turns raw MUD server bytes into styled display
// lines. A pipeline chains MCCP decompression, a byte-at-a-time
// dispatch machine for telnet, ANSI and markup, and a line assembler,
// and reports everything noteworthy on an event bus.
package streaming

import (
	"mudstream/internal/log"
	"mudstream/internal/mccp"
	"mudstream/internal/mxp"
	"mudstream/internal/telnet"
	"mudstream/internal/text"
)

// Options configures a session pipeline end to end.
type Options struct {
	// TerminalType seeds the TTYPE/MTTS answer cycle.
	TerminalType  string
	ClientName    string
	ClientVersion string

	// UTF8 enables multi-byte reassembly; otherwise Charset names the
	// single-byte table incoming bytes decode through ("ISO-8859-1",
	// "CP437", "Windows-1252").
	UTF8    bool
	Charset string

	// UseMXP decides how markup negotiation is answered.
	UseMXP telnet.MXPPolicy
	// User and Password answer markup auto-login tags when set.
	User     string
	Password string
	// ReplyToAFK answers <afk> probes with the idle time.
	ReplyToAFK bool

	ConvertGAToNewline bool
	IgnoreEchoControl  bool
	DisableCompression bool

	NAWS   bool
	Width  int
	Height int

	EnableZMP  bool
	EnableATCP bool
	EnableGMCP bool
	EnableMSP  bool

	WrapColumn    int
	WordWrap      bool
	ScrollbackMax int
	RecentLines   int
	LinkifyURLs   bool

	// RawCapture appends every chunk in both directions to the capture
	// file for later replay with cmd/raw_replay.
	RawCapture bool
}

// DefaultOptions is a sensible starting point for a modern server.
func DefaultOptions() Options {
	return Options{
		TerminalType:       "mushclient",
		ClientName:         "mudstream",
		ClientVersion:      "1.0",
		UTF8:               true,
		Charset:            "ISO-8859-1",
		UseMXP:             telnet.MXPOnNegotiated,
		ConvertGAToNewline: true,
		NAWS:               true,
		Width:              80,
		Height:             24,
		EnableZMP:          true,
		EnableATCP:         true,
		EnableGMCP:         true,
		EnableMSP:          true,
		WrapColumn:         80,
		WordWrap:           true,
		ScrollbackMax:      5000,
		RecentLines:        200,
		LinkifyURLs:        true,
	}
}

// PipelineStats aggregates diagnostics across the stages.
type PipelineStats struct {
	BytesIn     int64
	Machine     MachineStats
	Assembler   AssemblerStats
	Negotiation telnet.Stats
	Compression mccp.Stats
	Markup      mxp.Stats
	// MarkupErrors is machine collection restarts plus engine errors.
	MarkupErrors int64
}

// Pipeline is the incoming-stream engine for one session: MCCP
// decompression, byte dispatch, option negotiation, markup and line
// assembly wired together behind a single Feed call. It is not safe
// for concurrent use; feed it from one goroutine.
type Pipeline struct {
	opts Options

	bus  *Bus
	neg  *telnet.Negotiator
	eng  *mxp.Engine
	dec  *mccp.Decompressor
	mach *Machine
	asm  *Assembler

	bytesIn int64
}

// New builds a pipeline. Negotiation replies and markup answers leave
// through write; nil drops them, which suits replaying captures.
func New(opts Options, write func([]byte) error) *Pipeline {
	p := &Pipeline{opts: opts, bus: NewBus()}

	send := func(b []byte) error {
		if write == nil {
			return nil
		}
		if opts.RawCapture {
			log.LogDataChunk("out", b)
		}
		return write(b)
	}

	p.asm = NewAssembler(AssemblerOptions{
		WrapColumn:    opts.WrapColumn,
		WordWrap:      opts.WordWrap,
		ScrollbackMax: opts.ScrollbackMax,
		RecentLines:   opts.RecentLines,
		LinkifyURLs:   opts.LinkifyURLs,
	}, func(line *text.Line) {
		p.bus.publish(Event{Kind: EventLineCompleted, Data: line})
	})

	p.eng = mxp.NewEngine(mxp.Config{
		ClientName:    opts.ClientName,
		ClientVersion: opts.ClientVersion,
		User:          opts.User,
		Password:      opts.Password,
		ReplyToAFK:    opts.ReplyToAFK,
	}, send, p.asm)

	p.neg = telnet.NewNegotiator(telnet.Config{
		TerminalType:       opts.TerminalType,
		UTF8:               opts.UTF8,
		Charset:            opts.Charset,
		ClientName:         opts.ClientName,
		ClientVersion:      opts.ClientVersion,
		DisableCompression: opts.DisableCompression,
		IgnoreEchoControl:  opts.IgnoreEchoControl,
		ConvertGAToNewline: opts.ConvertGAToNewline,
		NAWS:               opts.NAWS,
		Width:              opts.Width,
		Height:             opts.Height,
		UseMXP:             opts.UseMXP,
		EnableZMP:          opts.EnableZMP,
		EnableATCP:         opts.EnableATCP,
		EnableGMCP:         opts.EnableGMCP,
		EnableMSP:          opts.EnableMSP,
	}, send)

	p.dec = mccp.NewDecompressor()
	p.mach = NewMachine(opts, p.neg, p.eng, p.asm)

	p.wireHooks()
	return p
}

func (p *Pipeline) wireHooks() {
	p.neg.OnMXPEnable = func() {
		p.eng.On()
		p.bus.publish(Event{Kind: EventMXPStarted})
	}
	p.neg.OnMXPDisable = func() {
		p.mach.AbortMarkup()
		p.eng.Off(true)
		p.bus.publish(Event{Kind: EventMXPStopped})
	}
	p.neg.OnReply = func(verb, option byte) {
		p.bus.publish(Event{Kind: EventNegotiation, Data: Negotiation{Verb: verb, Option: option}})
	}
	p.neg.OnTelnetPayload = func(option byte, message string, data string) {
		p.bus.publish(Event{Kind: EventTelnetPayload, Data: TelnetPayload{Option: option, Message: message, Data: data}})
	}
	p.neg.OnSound = func(s telnet.Sound) {
		kind := EventSound
		if s.Command == "MUSIC" {
			kind = EventMusic
		}
		p.bus.publish(Event{Kind: kind, Data: s})
	}

	p.eng.OnVariable = func(name, value string) {
		p.bus.publish(Event{Kind: EventVariable, Data: Variable{Name: name, Value: value}})
	}
	p.eng.OnGauge = func(g mxp.Gauge) {
		p.bus.publish(Event{Kind: EventGauge, Data: g})
	}
	p.eng.OnStat = func(g mxp.Gauge) {
		p.bus.publish(Event{Kind: EventStat, Data: g})
	}
	p.eng.OnMedia = func(media mxp.Media) {
		p.bus.publish(Event{Kind: EventMedia, Data: media})
	}

	p.mach.onPrompt = func() {
		p.bus.publish(Event{Kind: EventPartialLine, Data: p.asm.Current()})
	}
}

// Feed pushes raw network bytes through decompression and the byte
// machine. When an MCCP activation appears mid-buffer, the bytes after
// it re-enter through the decompressor, so one read may straddle the
// compression boundary safely.
func (p *Pipeline) Feed(data []byte) {
	if len(data) == 0 {
		return
	}
	if p.opts.RawCapture {
		log.LogDataChunk("in", data)
	}
	p.bytesIn += int64(len(data))

	pending := data
	for len(pending) > 0 {
		wasActive := p.dec.Active()
		plain := p.dec.Feed(pending)
		pending = nil
		if wasActive && !p.dec.Active() {
			stats := p.dec.Stats()
			log.Info("Compression ended",
				"in", stats.CompressedIn, "out", stats.DecompressedOut)
			p.bus.publish(Event{Kind: EventCompressionEnded, Data: Compression{Version: stats.Version, Stats: stats}})
		}
		for i := 0; i < len(plain); i++ {
			p.mach.ProcessByte(plain[i])
			if v := p.mach.TakePendingCompression(); v != 0 {
				p.dec.Activate(v)
				p.bus.publish(Event{Kind: EventCompressionStarted, Data: Compression{Version: v, Stats: p.dec.Stats()}})
				pending = plain[i+1:]
				break
			}
		}
	}
}

// Reset prepares for a reconnect: negotiation, compression, markup
// activation and the partial line all return to ground state.
// Scrollback, recent lines and user markup definitions survive.
func (p *Pipeline) Reset() {
	p.mach.Reset()
	p.dec.Reset()
	p.neg.Reset()
	p.eng.Off(true)
	p.asm.DropPartial()
	log.Info("Pipeline reset for reconnect")
}

// ResetSession additionally clears history, definitions and counters,
// as if the world had just been opened.
func (p *Pipeline) ResetSession() {
	p.Reset()
	p.eng.Reset()
	p.eng.ClearDefinitions()
	p.asm.Clear()
	p.bytesIn = 0
}

// Stats returns aggregated diagnostics.
func (p *Pipeline) Stats() PipelineStats {
	ms := p.mach.Stats()
	xs := p.eng.Stats()
	return PipelineStats{
		BytesIn:      p.bytesIn,
		Machine:      ms,
		Assembler:    p.asm.Stats(),
		Negotiation:  p.neg.Stats(),
		Compression:  p.dec.Stats(),
		Markup:       xs,
		MarkupErrors: ms.MarkupErrors + int64(xs.Errors),
	}
}

// Bus returns the event bus for subscriptions.
func (p *Pipeline) Bus() *Bus { return p.bus }

// MXP exposes the markup engine so applications can attach the room,
// user-tag, expiry and idle-time hooks not routed through the bus.
func (p *Pipeline) MXP() *mxp.Engine { return p.eng }

// Negotiator exposes option state such as NoEcho.
func (p *Pipeline) Negotiator() *telnet.Negotiator { return p.neg }

// Scrollback returns the retained completed lines, oldest first.
func (p *Pipeline) Scrollback() []*text.Line { return p.asm.Scrollback() }

// Recent returns the plain text of the latest hard server lines.
func (p *Pipeline) Recent() []string { return p.asm.Recent() }

// Current returns the line under construction.
func (p *Pipeline) Current() *text.Line { return p.asm.Current() }

// Note injects client-generated text as note lines.
func (p *Pipeline) Note(s string) { p.asm.Note(s) }

// Echo injects a locally echoed command line.
func (p *Pipeline) Echo(s string) { p.asm.Echo(s) }

// SetWindowSize reports new dimensions to a server that negotiated
// NAWS.
func (p *Pipeline) SetWindowSize(width, height int) {
	p.opts.Width, p.opts.Height = width, height
	p.neg.SendWindowSize(width, height)
}
