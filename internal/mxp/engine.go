// Package mxp implements the in-band markup protocol MUD servers use for
// rich text: built-in and user-defined elements, entities, line security
// modes, and the active-tag stack that keeps nesting honest. The engine
// consumes element and entity text collected by the stream layer and
// drives its side effects through a narrow display sink, a reply writer,
// and optional hooks.
package mxp

import (
	"fmt"
	"strconv"
	"strings"

	"mudstream/internal/log"
	"mudstream/internal/text"
)

// Mode is the line security state markup runs under. The values track the
// ESC[<n>z escape codes.
type Mode int

const (
	ModeOpen       Mode = 0 // every tag allowed
	ModeSecure     Mode = 1 // open-only tags rejected
	ModeLocked     Mode = 2 // definitions rejected as well
	ModeReset      Mode = 3 // pseudo-mode: close open tags now
	ModeSecureOnce Mode = 4 // secure for exactly the next tag
	ModePermOpen   Mode = 5
	ModePermSecure Mode = 6
	ModePermLocked Mode = 7

	ModeRoomName        Mode = 10
	ModeRoomDescription Mode = 11
	ModeRoomExits       Mode = 12
	ModeWelcome         Mode = 19
)

func (m Mode) String() string {
	switch m {
	case ModeOpen:
		return "open"
	case ModeSecure:
		return "secure"
	case ModeLocked:
		return "locked"
	case ModeReset:
		return "reset"
	case ModeSecureOnce:
		return "secure next tag only"
	case ModePermOpen:
		return "permanently open"
	case ModePermSecure:
		return "permanently secure"
	case ModePermLocked:
		return "permanently locked"
	case ModeRoomName:
		return "room name"
	case ModeRoomDescription:
		return "room description"
	case ModeRoomExits:
		return "room exits"
	case ModeWelcome:
		return "welcome text"
	}
	return fmt.Sprintf("mode %d", int(m))
}

// secureContext reports whether tags needing open mode are rejected.
func (m Mode) secureContext() bool {
	switch m {
	case ModeSecure, ModeLocked, ModeSecureOnce, ModePermSecure, ModePermLocked:
		return true
	}
	return false
}

// lockedContext reports whether definitions are rejected.
func (m Mode) lockedContext() bool {
	return m == ModeLocked || m == ModePermLocked
}

// collecting reports whether the mode gathers line text for a hook.
func (m Mode) collecting() bool {
	switch m {
	case ModeRoomName, ModeRoomDescription, ModeRoomExits, ModeWelcome:
		return true
	}
	return false
}

// Sink is the display surface tag actions drive: the style applied to
// upcoming text, injected characters, and line structure.
type Sink interface {
	Style() text.Style
	SetStyle(text.Style)
	AppendText(s string)
	BreakLine()
	RuleLine()
}

// Config carries the client-side markup settings.
type Config struct {
	ClientName    string // reported to <version>
	ClientVersion string
	User          string // auto-reply for <user>; empty sends nothing
	Password      string // auto-reply for <password>; empty sends nothing
	ReplyToAFK    bool   // answer <afk> with the idle time
	DefaultMode   Mode   // line security right after activation
	IgnoreColours bool   // drop <color> and <font> colour changes
}

// Stats counts markup activity. Tag, entity and error counters restart on
// each activation; Activations accumulates.
type Stats struct {
	Activations int
	Tags        int
	Entities    int
	Errors      int
}

// Gauge is a server-published meter (IsGauge) or numeric stat. The value
// arrives as the tag's text content when the tag closes.
type Gauge struct {
	Entity  string
	Caption string
	Colour  string
	Max     int
	Value   int
	IsGauge bool
}

// MediaKind distinguishes media requests.
type MediaKind int

const (
	MediaSound MediaKind = iota
	MediaMusic
	MediaImage
)

func (k MediaKind) String() string {
	switch k {
	case MediaSound:
		return "sound"
	case MediaMusic:
		return "music"
	case MediaImage:
		return "image"
	}
	return "media"
}

// Media is a sound, music or inline image request from the server.
// Width, Height and Align stay strings; servers send percentages and
// pixel counts interchangeably.
type Media struct {
	Kind     MediaKind
	Name     string
	URL      string
	Type     string
	Volume   int
	Loops    int
	Priority int
	Continue bool
	Width    string
	Height   string
	Align    string
}

// CustomElement is a user-defined tag expanding to a sequence of built-in
// tags, with optional default attributes, a numbered line tag, and a
// variable that receives the tag's text content.
type CustomElement struct {
	Name       string
	Items      []ElementItem
	Attributes Arguments
	Tag        int // line tag 20-99, 0 when unset
	Flag       string
	Open       bool
	Command    bool
}

// ElementItem is one step of a custom element's expansion.
type ElementItem struct {
	Atomic *AtomicElement
	Args   Arguments
}

// activeTag is one open tag awaiting its close.
type activeTag struct {
	name    string
	secure  bool
	noReset bool
	actions []Action   // executed opening actions, undone in reverse
	prev    text.Style // style when the tag opened

	link    *text.Action     // span action pending &text; substitution
	capture *strings.Builder // span text, when something waits on it
	gauge   *Gauge
	userTag int
	flagVar string
}

func (t *activeTag) ensureCapture() {
	if t.capture == nil {
		t.capture = &strings.Builder{}
	}
}

// Engine implements the markup side of a connection. It is not safe for
// concurrent use; the stream layer serializes access.
type Engine struct {
	cfg   Config
	write func([]byte) error
	sink  Sink

	active bool
	pueblo bool

	mode         Mode
	defaultMode  Mode
	previousMode Mode // restored after a secure-once tag

	atomic         map[string]*AtomicElement
	customElements map[string]*CustomElement
	customEntities map[string]*Entity

	stack []*activeTag

	paragraph    bool
	noBreak      bool
	preformatted bool
	centered     bool
	scriptDepth  int

	listDepth   int
	listOrdered bool
	listCounter int

	collected strings.Builder // line text for room and welcome modes

	gauges map[string]Gauge

	stats Stats

	// Hooks fire as tags execute; nil hooks are skipped.
	OnVariable        func(name, value string)
	OnGauge           func(Gauge)
	OnStat            func(Gauge)
	OnMedia           func(Media)
	OnExpire          func(name string)
	OnUserTag         func(tag int, content string)
	OnRoomName        func(string)
	OnRoomDescription func(string)
	OnRoomExits       func(string)
	OnWelcome         func(string)
	AFKSeconds        func() int
}

// NewEngine creates an inactive engine. write receives protocol replies
// such as the <version> response; sink receives display effects. Either
// may be nil, in which case that half is discarded.
func NewEngine(cfg Config, write func([]byte) error, sink Sink) *Engine {
	if cfg.ClientName == "" {
		cfg.ClientName = "mudstream"
	}
	if cfg.ClientVersion == "" {
		cfg.ClientVersion = "1.0"
	}
	if write == nil {
		write = func([]byte) error { return nil }
	}
	if sink == nil {
		sink = nopSink{}
	}
	return &Engine{
		cfg:            cfg,
		write:          write,
		sink:           sink,
		mode:           cfg.DefaultMode,
		defaultMode:    cfg.DefaultMode,
		previousMode:   cfg.DefaultMode,
		customElements: make(map[string]*CustomElement),
		customEntities: make(map[string]*Entity),
		gauges:         make(map[string]Gauge),
	}
}

type nopSink struct{}

func (nopSink) Style() text.Style   { return text.DefaultStyle() }
func (nopSink) SetStyle(text.Style) {}
func (nopSink) AppendText(string)   {}
func (nopSink) BreakLine()          {}
func (nopSink) RuleLine()           {}

// On activates markup processing: the element table is built, security
// returns to the configured default, and the per-activation counters
// restart. Already-active engines ignore the call. User definitions from
// earlier activations stay available.
func (e *Engine) On() {
	if e.active {
		return
	}
	log.Debug("MXP on")

	e.active = true
	e.pueblo = false
	e.mode = e.cfg.DefaultMode
	e.defaultMode = e.cfg.DefaultMode
	e.previousMode = e.cfg.DefaultMode
	e.paragraph = false
	e.noBreak = false
	e.preformatted = false
	e.centered = false
	e.scriptDepth = 0
	e.listDepth = 0
	e.listCounter = 0
	e.collected.Reset()
	e.stack = e.stack[:0]

	e.atomic = newAtomicTable()

	e.stats = Stats{Activations: e.stats.Activations + 1}
}

// OnPueblo activates the engine in Pueblo compatibility mode: the
// Pueblo-flagged half of the element table applies instead of the
// markup-flagged half.
func (e *Engine) OnPueblo() {
	e.On()
	e.pueblo = true
}

// Off resets or deactivates markup processing. A plain reset (force
// false) closes open tags except no-reset ones and clears line-local
// modes, leaving the engine active; force drains everything and shuts
// markup down. User definitions survive either way and drop only through
// ClearDefinitions.
func (e *Engine) Off(force bool) {
	if !e.active {
		return
	}

	e.paragraph = false
	e.noBreak = false
	e.preformatted = false
	e.centered = false
	e.scriptDepth = 0
	e.listDepth = 0
	e.listCounter = 0

	e.closeOpenTags(force)

	if force {
		log.Debug("MXP off", "pueblo", e.pueblo)
		e.atomic = nil
		e.mode = ModeOpen
		e.defaultMode = ModeOpen
		e.collected.Reset()
		e.pueblo = false
		e.active = false
	}
}

// Reset returns the engine to its just-constructed state except for user
// definitions, which persist for the session.
func (e *Engine) Reset() {
	e.Off(true)
	e.mode = e.cfg.DefaultMode
	e.defaultMode = e.cfg.DefaultMode
	e.previousMode = e.cfg.DefaultMode
	e.gauges = make(map[string]Gauge)
	e.stats = Stats{}
}

// ClearDefinitions drops user-defined elements and entities. Built-ins
// are untouched.
func (e *Engine) ClearDefinitions() {
	e.customElements = make(map[string]*CustomElement)
	e.customEntities = make(map[string]*Entity)
}

// ModeChange applies an ESC[<n>z line security code. Negative codes mean
// "back to the default". Code 3 is the reset pseudo-mode: open tags close
// now and the mode itself stays put. Codes 10, 11, 12 and 19 start
// room-name, room-description, room-exit and welcome-text collection.
func (e *Engine) ModeChange(code int) {
	mode := Mode(code)
	if code < 0 {
		mode = e.defaultMode
	}

	if mode == ModeReset {
		e.Off(false)
		return
	}

	if e.mode.collecting() && mode != e.mode {
		e.flushCollected()
	}

	switch mode {
	case ModeOpen, ModeSecure, ModeLocked:
		e.defaultMode = ModeOpen
	case ModeSecureOnce:
		e.previousMode = e.mode
	case ModePermOpen, ModePermSecure, ModePermLocked:
		e.defaultMode = mode
	}

	if mode != e.mode {
		log.Debug("MXP mode change", "from", e.mode.String(), "to", mode.String())
	}
	e.mode = mode
}

// LineEnded tells the engine a display line completed. Collected room and
// welcome text flushes to its hook, line security returns to the default
// mode, and <nobr> suppression expires: it covers only the line it was
// issued on.
func (e *Engine) LineEnded() {
	if !e.active {
		return
	}
	e.flushCollected()
	e.mode = e.defaultMode
	e.noBreak = false
}

func (e *Engine) flushCollected() {
	content := e.collected.String()
	e.collected.Reset()

	switch e.mode {
	case ModeRoomName:
		if e.OnRoomName != nil {
			e.OnRoomName(content)
		}
	case ModeRoomDescription:
		if e.OnRoomDescription != nil {
			e.OnRoomDescription(content)
		}
	case ModeRoomExits:
		if e.OnRoomExits != nil {
			e.OnRoomExits(content)
		}
	case ModeWelcome:
		if e.OnWelcome != nil {
			e.OnWelcome(content)
		}
	}
}

// TextAdded mirrors displayed text into the engine: collection modes and
// tags capturing their content both read it.
func (e *Engine) TextAdded(s string) {
	if !e.active || s == "" {
		return
	}
	if e.mode.collecting() {
		e.collected.WriteString(s)
	}
	for _, t := range e.stack {
		if t.capture != nil {
			t.capture.WriteString(s)
		}
	}
}

// Active reports whether markup processing is on.
func (e *Engine) Active() bool { return e.active }

// Mode returns the current line security mode.
func (e *Engine) Mode() Mode { return e.mode }

// CollectsMarkup reports whether '<' and '&' currently begin markup
// collection rather than literal text. Collection modes show markup
// characters literally.
func (e *Engine) CollectsMarkup() bool {
	return e.active && e.mode >= ModeOpen && e.mode <= ModePermLocked
}

// Diverting reports whether displayed text is being swallowed. Script
// bodies are the only case.
func (e *Engine) Diverting() bool { return e.active && e.scriptDepth > 0 }

// InParagraph reports paragraph mode: newlines join instead of breaking.
func (e *Engine) InParagraph() bool { return e.active && e.paragraph }

// NoBreak reports <nobr> suppression of the next line break.
func (e *Engine) NoBreak() bool { return e.active && e.noBreak }

// Preformatted reports <pre> mode for wrapping decisions.
func (e *Engine) Preformatted() bool { return e.active && e.preformatted }

// Centered reports <center> alignment for the current span.
func (e *Engine) Centered() bool { return e.active && e.centered }

// OpenTags returns how many tags await their close.
func (e *Engine) OpenTags() int { return len(e.stack) }

// Stats returns the activity counters.
func (e *Engine) Stats() Stats { return e.stats }

// Gauges returns a snapshot of server-published meters by entity name.
func (e *Engine) Gauges() map[string]Gauge {
	out := make(map[string]Gauge, len(e.gauges))
	for k, v := range e.gauges {
		out[k] = v
	}
	return out
}

// CollectedElement processes the text gathered between '<' and '>'.
func (e *Engine) CollectedElement(element string) {
	str := strings.TrimSpace(element)

	if str == "" {
		log.Debug("Empty element")
		e.stats.Errors++
		return
	}

	if strings.HasPrefix(str, "!--") {
		return // comment
	}
	if str[0] == '!' {
		e.definition(strings.TrimSpace(str[1:]))
		return
	}
	if str[0] == '/' {
		e.endTag(strings.TrimSpace(str[1:]))
		return
	}
	e.startTag(str)
}

func (e *Engine) cancelSecureOnce() {
	if e.mode == ModeSecureOnce {
		e.mode = e.previousMode
	}
}

// findAtomic looks up a built-in element honouring the protocol gate:
// markup-flagged tags in markup mode, Pueblo-flagged tags in Pueblo mode.
func (e *Engine) findAtomic(name string) *AtomicElement {
	elem := e.atomic[name]
	if elem == nil {
		return nil
	}
	if e.pueblo {
		if elem.Flags&TagPueblo == 0 {
			return nil
		}
	} else if elem.Flags&TagMXP == 0 {
		return nil
	}
	return elem
}

func (e *Engine) startTag(tag string) {
	rawName, args := ParseTag(tag)
	if rawName == "" {
		log.Warn("Tag without a name", "tag", tag)
		e.stats.Errors++
		return
	}
	name := strings.ToLower(rawName)

	// The security context is fixed before secure-once reverts: the tag
	// being processed is the one the mode was for.
	secure := e.mode.secureContext()
	e.cancelSecureOnce()

	e.stats.Tags++

	atomic := e.findAtomic(name)
	var custom *CustomElement
	var open, command, noReset bool

	if atomic != nil {
		open = atomic.Flags&TagOpen != 0
		command = atomic.Flags&TagCommand != 0
		noReset = atomic.Flags&TagNoReset != 0
	} else {
		custom = e.customElements[name]
		if custom == nil {
			log.Info("Unknown element", "name", name)
			e.stats.Errors++
			return
		}
		open = custom.Open
		command = custom.Command
	}

	if open && secure {
		log.Warn("Open-mode tag rejected on secure line", "name", name)
		e.stats.Errors++
		return
	}

	// Entity references in argument values resolve now; &text; waits for
	// the span content.
	for _, arg := range args {
		if strings.Contains(arg.Value, "&") {
			expanded, ok := e.expandEntities(arg.Value, true)
			if !ok {
				e.stats.Errors++
			}
			arg.Value = expanded
		}
	}

	var entry *activeTag
	if !command {
		entry = &activeTag{
			name:    name,
			secure:  secure,
			noReset: noReset,
			prev:    e.sink.Style(),
		}
		e.stack = append(e.stack, entry)
		if len(e.stack)%100 == 0 {
			log.Warn("Many unclosed tags", "count", len(e.stack))
		}
	}

	if atomic != nil {
		e.executeItem(atomic, args, entry)
		return
	}

	for _, item := range custom.Items {
		e.executeItem(item.Atomic, e.expandItemArgs(custom, item, args), entry)
	}

	if entry != nil {
		if custom.Flag != "" {
			entry.flagVar = custom.Flag
			entry.ensureCapture()
		}
		if custom.Tag != 0 {
			entry.userTag = custom.Tag
			entry.ensureCapture()
		}
	}
}

func (e *Engine) executeItem(elem *AtomicElement, args Arguments, entry *activeTag) {
	bindArgs(elem, args)
	if entry != nil {
		entry.actions = append(entry.actions, elem.Action)
	}
	e.executeAction(elem, args, entry)
}

// expandItemArgs builds the argument list one expansion step runs with:
// the element's default attributes, overridden by the use-site arguments,
// substituted into the step's stored arguments.
func (e *Engine) expandItemArgs(custom *CustomElement, item ElementItem, userArgs Arguments) Arguments {
	merged := cloneArguments(custom.Attributes)

	slot := 0
	for _, ua := range userArgs {
		if ua.Keyword {
			continue
		}
		if ua.Name != "" {
			if m := merged.find(ua.Name); m != nil {
				m.Value = ua.Value
			} else {
				merged = append(merged, &Argument{Name: strings.ToLower(ua.Name), Value: ua.Value})
			}
			continue
		}
		if slot < len(merged) {
			merged[slot].Value = ua.Value
		} else {
			merged = append(merged, &Argument{Value: ua.Value})
		}
		slot++
	}

	out := make(Arguments, 0, len(item.Args))
	for _, ia := range item.Args {
		na := &Argument{Name: ia.Name, Position: ia.Position, Keyword: ia.Keyword}
		na.Value = e.substituteAttrs(ia.Value, merged)
		out = append(out, na)
	}
	return out
}

// substituteAttrs resolves &name; references in a stored expansion value
// against the merged attribute list first, then the entity tables. The
// &text; placeholder passes through for span substitution.
func (e *Engine) substituteAttrs(s string, merged Arguments) string {
	if !strings.Contains(s, "&") {
		return s
	}
	var b strings.Builder
	pos := 0
	for pos < len(s) {
		if s[pos] != '&' {
			b.WriteByte(s[pos])
			pos++
			continue
		}
		semi := strings.IndexByte(s[pos+1:], ';')
		if semi == -1 {
			b.WriteString(s[pos:])
			break
		}
		ref := s[pos+1 : pos+1+semi]
		if ref == "text" {
			b.WriteString("&text;")
		} else if m := merged.find(ref); m != nil {
			b.WriteString(m.Value)
		} else if value, ok := e.Entity(ref); ok {
			b.WriteString(value)
		}
		pos += semi + 2
	}
	return b.String()
}

func (e *Engine) endTag(tag string) {
	secure := e.mode.secureContext()
	e.cancelSecureOnce()

	name := strings.ToLower(tag)
	if name == "" {
		log.Warn("Closing tag without a name")
		e.stats.Errors++
		return
	}
	if strings.ContainsAny(name, " \t") {
		log.Warn("Closing tag carries arguments", "tag", tag)
	}

	match := -1
	for i := len(e.stack) - 1; i >= 0; i-- {
		t := e.stack[i]
		if t.name == name {
			match = i
			break
		}
		if !secure && t.secure {
			log.Warn("Close blocked by secure tag", "name", name, "blocking", t.name)
			e.stats.Errors++
			return
		}
	}
	if match == -1 {
		log.Debug("Closing tag without opening tag", "name", name)
		e.stats.Errors++
		return
	}
	if !secure && e.stack[match].secure {
		log.Warn("Secure tag closed from open line", "name", name)
		e.stats.Errors++
		return
	}

	// Everything above the match closes too; mis-nested tags recover here.
	for len(e.stack) > match {
		t := e.stack[len(e.stack)-1]
		e.stack = e.stack[:len(e.stack)-1]
		if t.name != name {
			log.Debug("Closing out-of-sequence tag", "name", t.name, "wanted", name)
		}
		e.endEntry(t)
	}
}

// endEntry runs a tag's close-time effects: opening actions undo in
// reverse, then whatever waited on the span content gets it.
func (e *Engine) endEntry(t *activeTag) {
	for i := len(t.actions) - 1; i >= 0; i-- {
		e.endAction(t.actions[i], t)
	}
	e.finishCapture(t)
}

func (e *Engine) finishCapture(t *activeTag) {
	content := ""
	if t.capture != nil {
		content = t.capture.String()
	}

	if t.gauge != nil {
		e.finishGauge(t.gauge, content)
	}
	if t.flagVar != "" {
		e.storeVariable(t.flagVar, strings.TrimSpace(content))
	}
	if t.userTag != 0 && e.OnUserTag != nil {
		e.OnUserTag(t.userTag, content)
	}
}

// closeOpenTags drains the active-tag stack, newest first. Entries
// flagged no-reset stay open unless force drains everything.
func (e *Engine) closeOpenTags(force bool) {
	if len(e.stack) == 0 {
		return
	}
	log.Debug("Closing open tags", "count", len(e.stack), "force", force)

	var kept []*activeTag
	for i := len(e.stack) - 1; i >= 0; i-- {
		t := e.stack[i]
		if !force && t.noReset {
			kept = append(kept, t)
			continue
		}
		e.endEntry(t)
	}
	// kept is newest first; the stack stores oldest first.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	e.stack = kept
}

func (e *Engine) definition(def string) {
	locked := e.mode.lockedContext()
	e.cancelSecureOnce()
	if locked {
		log.Warn("Definition rejected on locked line", "definition", def)
		e.stats.Errors++
		return
	}

	switch {
	case hasPrefixFold(def, "ELEMENT"):
		e.defineElement(strings.TrimSpace(def[len("ELEMENT"):]))
	case hasPrefixFold(def, "ENTITY"):
		e.defineEntity(strings.TrimSpace(def[len("ENTITY"):]))
	case hasPrefixFold(def, "ATTLIST"):
		e.defineAttList(strings.TrimSpace(def[len("ATTLIST"):]))
	default:
		log.Debug("Unknown definition", "definition", def)
	}
}

// defineElement handles <!ELEMENT name definition ...>. The definition is
// a quoted sequence of built-in tags; ATT supplies default attributes,
// TAG a line tag number, FLAG a variable fed the tag's content, OPEN and
// EMPTY the security and command properties, DELETE removes the element.
func (e *Engine) defineElement(def string) {
	rawName, args := ParseTag(def)
	if rawName == "" {
		log.Warn("Element definition without a name", "definition", def)
		e.stats.Errors++
		return
	}
	name := strings.ToLower(rawName)

	if e.atomic[name] != nil {
		log.Warn("Cannot redefine built-in element", "name", name)
		e.stats.Errors++
		return
	}

	del := false
	elem := &CustomElement{Name: name}
	for _, arg := range args {
		if !arg.Keyword {
			continue
		}
		switch arg.Name {
		case "DELETE":
			del = true
		case "OPEN":
			elem.Open = true
		case "EMPTY":
			elem.Command = true
		}
	}

	if _, exists := e.customElements[name]; exists {
		delete(e.customElements, name)
		if !del {
			log.Debug("Replacing element", "name", name)
		}
	}
	if del {
		log.Debug("Deleted element", "name", name)
		return
	}

	defArg := args.Positional(1)
	if defArg == nil {
		log.Warn("Element definition without a body", "name", name)
		e.stats.Errors++
		return
	}
	if !e.parseElementItems(elem, defArg.Value) {
		return
	}

	if att := args.Get("ATT"); att != "" {
		elem.Attributes = parseAttributes(att)
	}
	if tagValue := args.Get("TAG"); tagValue != "" {
		if n, err := strconv.Atoi(tagValue); err == nil && n >= 20 && n <= 99 {
			elem.Tag = n
		} else {
			log.Debug("Line tag out of range", "name", name, "tag", tagValue)
		}
	}
	if flag := args.Get("FLAG"); flag != "" {
		if hasPrefixFold(flag, "set ") {
			flag = strings.TrimSpace(flag[4:])
		}
		elem.Flag = strings.ReplaceAll(flag, " ", "_")
	}

	e.customElements[name] = elem
	log.Debug("Defined element", "name", name, "items", len(elem.Items))
}

// parseElementItems parses a definition body like "<color &col;><b>" into
// expansion steps. Unknown or illegal steps are skipped; malformed
// bracketing drops the whole definition.
func (e *Engine) parseElementItems(elem *CustomElement, definition string) bool {
	pos := 0
	for pos < len(definition) {
		for pos < len(definition) && isSpace(definition[pos]) {
			pos++
		}
		if pos >= len(definition) {
			break
		}
		if definition[pos] != '<' {
			log.Warn("Element definition item must start with '<'", "definition", definition)
			e.stats.Errors++
			return false
		}
		pos++
		start := pos

		inQuote := false
		var quote byte
	scan:
		for pos < len(definition) {
			switch c := definition[pos]; {
			case inQuote && c == quote:
				inQuote = false
			case !inQuote && (c == '\'' || c == '"'):
				inQuote = true
				quote = c
			case !inQuote && c == '<':
				log.Warn("Nested '<' in element definition", "definition", definition)
				e.stats.Errors++
				return false
			case !inQuote && c == '>':
				break scan
			}
			pos++
		}
		if pos >= len(definition) {
			log.Warn("Element definition item missing '>'", "definition", definition)
			e.stats.Errors++
			return false
		}

		itemText := definition[start:pos]
		pos++

		rawItem, itemArgs := ParseTag(itemText)
		itemName := strings.ToLower(rawItem)

		if strings.HasPrefix(itemName, "/") || strings.HasPrefix(itemName, "!") {
			log.Warn("Illegal item in element definition", "item", itemName)
			e.stats.Errors++
			continue
		}

		atomic := e.findAtomic(itemName)
		if atomic == nil {
			log.Warn("Unknown element in definition", "item", itemName)
			e.stats.Errors++
			continue
		}

		elem.Items = append(elem.Items, ElementItem{Atomic: atomic, Args: itemArgs})
	}
	return true
}

// defineAttList handles <!ATTLIST name attributes>, replacing the default
// attributes of an existing custom element.
func (e *Engine) defineAttList(def string) {
	rawName, _ := ParseTag(def)
	if rawName == "" {
		log.Warn("Attribute list without element name", "definition", def)
		e.stats.Errors++
		return
	}
	name := strings.ToLower(rawName)

	if e.atomic[name] != nil {
		log.Warn("Cannot redefine built-in element", "name", name)
		e.stats.Errors++
		return
	}
	elem := e.customElements[name]
	if elem == nil {
		log.Warn("Attribute list for unknown element", "name", name)
		e.stats.Errors++
		return
	}

	rest := strings.TrimSpace(def)
	if space := indexSpace(rest, 0); space != -1 {
		elem.Attributes = parseAttributes(strings.TrimSpace(rest[space+1:]))
	} else {
		elem.Attributes = nil
	}
	log.Debug("Defined attribute list", "name", name, "attributes", len(elem.Attributes))
}

// parseAttributes parses an ATT-style attribute list: bare names and
// name=default pairs. Bare names canonicalize to named slots with empty
// defaults so positional overrides land by order.
func parseAttributes(att string) Arguments {
	_, attrs := ParseTag("_attlist " + att)
	for _, attr := range attrs {
		if !attr.Keyword && attr.Name == "" && attr.Value != "" {
			attr.Name = strings.ToLower(attr.Value)
			attr.Value = ""
		} else {
			attr.Name = strings.ToLower(attr.Name)
		}
	}
	return attrs
}
