package streaming

import (
	"fmt"

	"mudstream/internal/mccp"
)

// EventKind names one class of pipeline occurrence.
type EventKind int

const (
	// EventLineCompleted carries the *text.Line that just entered the
	// scrollback.
	EventLineCompleted EventKind = iota
	// EventPartialLine carries the *text.Line a telnet GA or EOR just
	// marked as a prompt, while it is still under construction.
	EventPartialLine
	// EventNegotiation carries a Negotiation for every reply written.
	EventNegotiation
	// EventCompressionStarted and EventCompressionEnded carry a
	// Compression.
	EventCompressionStarted
	EventCompressionEnded
	// EventMXPStarted and EventMXPStopped mark markup switching on and
	// off. No payload.
	EventMXPStarted
	EventMXPStopped
	// EventVariable carries a Variable the server published.
	EventVariable
	// EventGauge and EventStat carry an mxp.Gauge.
	EventGauge
	EventStat
	// EventSound and EventMusic carry a telnet.Sound parsed from MSP.
	EventSound
	EventMusic
	// EventMedia carries an mxp.Media from markup sound, music and
	// image tags.
	EventMedia
	// EventTelnetPayload carries a TelnetPayload from the ZMP, ATCP,
	// GMCP and Aardwolf channels.
	EventTelnetPayload
)

var eventKindNames = [...]string{
	EventLineCompleted:      "LineCompleted",
	EventPartialLine:        "PartialLine",
	EventNegotiation:        "Negotiation",
	EventCompressionStarted: "CompressionStarted",
	EventCompressionEnded:   "CompressionEnded",
	EventMXPStarted:         "MXPStarted",
	EventMXPStopped:         "MXPStopped",
	EventVariable:           "Variable",
	EventGauge:              "Gauge",
	EventStat:               "Stat",
	EventSound:              "Sound",
	EventMusic:              "Music",
	EventMedia:              "Media",
	EventTelnetPayload:      "TelnetPayload",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventKindNames) {
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
	return eventKindNames[k]
}

// Event is one dispatch. Data holds the payload type documented on the
// kind constant.
type Event struct {
	Kind EventKind
	Data any
}

// Negotiation reports a telnet reply this side wrote.
type Negotiation struct {
	Verb   byte
	Option byte
}

// Compression reports a decompression stage change.
type Compression struct {
	Version int
	Stats   mccp.Stats
}

// Variable is a server-published name and value.
type Variable struct {
	Name  string
	Value string
}

// TelnetPayload is application data from an out-of-band telnet channel.
type TelnetPayload struct {
	Option  byte
	Message string
	Data    string
}

// Handler receives events synchronously on the feeding goroutine.
type Handler func(Event)

// Bus fans pipeline events out to subscribers, in subscription order,
// on the goroutine that fed the bytes. There is no queue: a slow
// handler slows the stream.
type Bus struct {
	byKind map[EventKind][]Handler
	all    []Handler
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{byKind: make(map[EventKind][]Handler)}
}

// Subscribe registers a handler for one kind.
func (b *Bus) Subscribe(kind EventKind, h Handler) {
	b.byKind[kind] = append(b.byKind[kind], h)
}

// SubscribeAll registers a handler for every kind.
func (b *Bus) SubscribeAll(h Handler) {
	b.all = append(b.all, h)
}

func (b *Bus) publish(ev Event) {
	for _, h := range b.byKind[ev.Kind] {
		h(ev)
	}
	for _, h := range b.all {
		h(ev)
	}
}
