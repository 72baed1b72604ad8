package mxp

import (
	"fmt"
	"strconv"
	"strings"

	"mudstream/internal/log"
	"mudstream/internal/text"
	"mudstream/internal/theme"
)

// bindArgs names positional arguments after the element's declared
// parameter order, so <color red> reads the same as <color fore=red>. A
// bare value matching a declared parameter name becomes a keyword flag,
// which is how "prompt" in <send "cmd" prompt> stays a flag rather than
// a hint.
func bindArgs(elem *AtomicElement, args Arguments) {
	if len(elem.Args) == 0 {
		return
	}
	n := 0
	for _, arg := range args {
		if arg.Keyword || arg.Name != "" {
			continue
		}
		if declaredArg(elem, arg.Value) {
			arg.Name = strings.ToLower(arg.Value)
			arg.Value = ""
			arg.Keyword = true
			continue
		}
		if n < len(elem.Args) {
			arg.Name = elem.Args[n]
			n++
		}
	}
}

func declaredArg(elem *AtomicElement, value string) bool {
	for _, name := range elem.Args {
		if strings.EqualFold(name, value) {
			return true
		}
	}
	return false
}

func (e *Engine) executeAction(elem *AtomicElement, args Arguments, t *activeTag) {
	switch elem.Action {
	case ActionBold, ActionHigh:
		e.setFlags(text.Bold)
	case ActionItalic:
		e.setFlags(text.Italic)
	case ActionUnderline:
		e.setFlags(text.Underline)
	case ActionStrike:
		e.setFlags(text.Strikeout)
	case ActionH1, ActionH2:
		e.setFlags(text.Bold | text.Underline)
	case ActionH3, ActionH4, ActionH5, ActionH6:
		e.setFlags(text.Bold)
	case ActionSmall, ActionTT, ActionSamp:
		// Font hints with no terminal rendering.

	case ActionBr:
		e.sink.BreakLine()
	case ActionHr:
		e.sink.RuleLine()
	case ActionP:
		e.paragraph = true
	case ActionNoBr:
		e.noBreak = true
	case ActionPre:
		e.preformatted = true
	case ActionCenter:
		e.centered = true

	case ActionColor:
		e.applyColours(args.Get("fore"), args.Get("back"))
	case ActionFont:
		if face := args.Get("face"); face != "" {
			log.Debug("Font face ignored", "face", face)
		}
		args.Get("size")
		e.applyColours(args.Get("color"), args.Get("back"))

	case ActionSend:
		e.beginLink(t, args, true)
	case ActionHyperlink:
		e.beginLink(t, args, false)

	case ActionSound:
		e.playSound(elem, args)
	case ActionImage, ActionImg:
		e.showImage(args)

	case ActionVersion:
		e.sendVersion()
	case ActionSupport:
		e.sendSupport(args)
	case ActionUser:
		e.sendLine(e.cfg.User)
	case ActionPassword:
		e.sendLine(e.cfg.Password)
	case ActionAFK:
		e.sendAFK()
	case ActionRelocate:
		log.Info("Relocate request ignored", "server", args.Get("server"), "port", args.Get("port"))

	case ActionGauge:
		e.beginGauge(t, args, true)
	case ActionStat:
		e.beginGauge(t, args, false)
	case ActionExpire:
		if e.OnExpire != nil {
			e.OnExpire(args.Get("name"))
		}
	case ActionVar:
		e.setVariable(args)

	case ActionUl:
		e.listDepth++
		e.listOrdered = false
	case ActionOl:
		e.listDepth++
		e.listOrdered = true
		e.listCounter = 1
	case ActionLi:
		e.listItem()

	case ActionReset:
		e.closeOpenTags(false)
	case ActionMXP:
		e.protocolTag(args)
	case ActionScript:
		e.scriptDepth++

	case ActionFrame, ActionDest, ActionFilter:
		log.Debug("Unimplemented tag", "name", elem.Name)
	case ActionOption, ActionRecommendOption:
		log.Debug("Option tag ignored", "name", elem.Name)
	case ActionBody, ActionHead, ActionHTML, ActionTitle, ActionXchPage, ActionXchPane:
		log.Debug("Pueblo tag ignored", "name", elem.Name)

	default:
		log.Warn("Unhandled action", "action", int(elem.Action), "name", elem.Name)
	}
}

// endAction restores what the matching opening action changed, and only
// that, from the snapshot taken when the tag opened.
func (e *Engine) endAction(action Action, t *activeTag) {
	switch action {
	case ActionBold, ActionHigh:
		e.restoreFlags(t, text.Bold)
	case ActionItalic:
		e.restoreFlags(t, text.Italic)
	case ActionUnderline:
		e.restoreFlags(t, text.Underline)
	case ActionStrike:
		e.restoreFlags(t, text.Strikeout)
	case ActionH1, ActionH2, ActionH3, ActionH4, ActionH5, ActionH6:
		e.restoreFlags(t, text.Bold|text.Underline)

	case ActionColor, ActionFont:
		e.restoreColours(t)

	case ActionSend, ActionHyperlink:
		e.finishLink(t)

	case ActionP:
		e.paragraph = false
	case ActionNoBr:
		e.noBreak = false
	case ActionPre:
		e.preformatted = false
	case ActionCenter:
		e.centered = false

	case ActionUl, ActionOl:
		if e.listDepth > 0 {
			e.listDepth--
		}
	case ActionScript:
		if e.scriptDepth > 0 {
			e.scriptDepth--
		}
	}
}

func (e *Engine) setFlags(mask text.StyleFlags) {
	s := e.sink.Style()
	s.Flags |= mask
	e.sink.SetStyle(s)
}

// restoreFlags puts the masked attribute bits back to their value at tag
// open, leaving everything else alone.
func (e *Engine) restoreFlags(t *activeTag, mask text.StyleFlags) {
	s := e.sink.Style()
	s.Flags = s.Flags&^mask | t.prev.Flags&mask
	e.sink.SetStyle(s)
}

// restoreColours puts colours and the colour type back as they were at
// tag open.
func (e *Engine) restoreColours(t *activeTag) {
	s := e.sink.Style()
	s.Flags = s.Flags&^text.ColourTypeMask | t.prev.Flags&text.ColourTypeMask
	s.Fore = t.prev.Fore
	s.Back = t.prev.Back
	e.sink.SetStyle(s)
}

// ensureRGB rewrites a style to hold concrete RGB values, so one channel
// can change without re-interpreting the other through a palette.
func ensureRGB(s text.Style) text.Style {
	if s.Flags.ColourType() == text.ColourRGB {
		return s
	}
	fore, back := theme.Current().Resolve(s)
	s.Fore = fore
	s.Back = back
	s.Flags = s.Flags&^text.ColourTypeMask | text.ColourRGB
	return s
}

// applyColours handles the colour pair of <color> and <font>. Unknown
// colour names count as errors and change nothing.
func (e *Engine) applyColours(fore, back string) {
	if e.cfg.IgnoreColours {
		return
	}

	s := e.sink.Style()
	changed := false
	if fore != "" {
		if c, ok := e.resolveColour(fore, false); ok {
			s = ensureRGB(s)
			s.Fore = c
			changed = true
		} else {
			log.Debug("Unknown colour", "name", fore)
			e.stats.Errors++
		}
	}
	if back != "" {
		if c, ok := e.resolveColour(back, true); ok {
			s = ensureRGB(s)
			s.Back = c
			changed = true
		} else {
			log.Debug("Unknown colour", "name", back)
			e.stats.Errors++
		}
	}
	if changed {
		e.sink.SetStyle(s)
	}
}

// resolveColour turns a colour written as #RRGGBB, a W3C name, or a
// custom palette colour name into a packed RGB value. Custom names match
// case-insensitively and split into text and background halves.
func (e *Engine) resolveColour(spec string, back bool) (text.Colour, bool) {
	p := theme.Current()
	for i := range p.Custom {
		if strings.EqualFold(p.Custom[i].Name, spec) {
			if back {
				return p.Custom[i].Back, true
			}
			return p.Custom[i].Text, true
		}
	}
	return theme.ParseColour(spec)
}

// beginLink starts a clickable span. The action rides the style until the
// closing tag substitutes the span text into it and restores the prior
// state.
func (e *Engine) beginLink(t *activeTag, args Arguments, send bool) {
	act := &text.Action{Send: args.Get("href"), Hint: args.Get("hint")}

	s := ensureRGB(e.sink.Style())
	s.Action = act
	s.Flags &^= text.ActionTypeMask
	switch {
	case !send:
		s.Flags |= text.ActionHyperlink
	case args.Has("prompt"):
		s.Flags |= text.ActionPrompt
	default:
		s.Flags |= text.ActionSend
	}
	s.Flags |= text.Underline
	s.Fore = theme.Current().Hyperlink
	e.sink.SetStyle(s)

	if t != nil {
		t.link = act
		t.ensureCapture()
	}
}

// finishLink completes a span action: an empty command takes the span
// text, &text; placeholders substitute it, and the styling the link
// imposed reverts.
func (e *Engine) finishLink(t *activeTag) {
	if t.link != nil {
		content := ""
		if t.capture != nil {
			content = t.capture.String()
		}
		if t.link.Send == "" {
			t.link.Send = content
		} else {
			t.link.Send = strings.ReplaceAll(t.link.Send, "&text;", content)
		}
		t.link.Hint = strings.ReplaceAll(t.link.Hint, "&text;", content)
		t.link = nil
	}

	s := e.sink.Style()
	s.Action = t.prev.Action
	s.Flags = s.Flags&^(text.ActionTypeMask|text.Underline|text.ColourTypeMask) |
		t.prev.Flags&(text.ActionTypeMask|text.Underline|text.ColourTypeMask)
	s.Fore = t.prev.Fore
	s.Back = t.prev.Back
	e.sink.SetStyle(s)
}

// beginGauge starts a meter or stat definition; the tag content supplies
// the current value when it closes.
func (e *Engine) beginGauge(t *activeTag, args Arguments, isGauge bool) {
	entity := args.Get("entity")
	if entity == "" {
		log.Warn("Gauge without an entity name")
		e.stats.Errors++
		return
	}
	caption := args.Get("caption")
	if caption == "" {
		caption = entity
	}
	g := &Gauge{
		Entity:  entity,
		Caption: caption,
		Max:     atoiDefault(args.Get("max"), 100),
		IsGauge: isGauge,
	}
	if isGauge {
		g.Colour = args.Get("color")
	}
	if t == nil {
		e.finishGauge(g, "")
		return
	}
	t.gauge = g
	t.ensureCapture()
}

func (e *Engine) finishGauge(g *Gauge, content string) {
	g.Value = atoiDefault(strings.TrimSpace(content), 0)
	e.gauges[g.Entity] = *g
	if g.IsGauge {
		if e.OnGauge != nil {
			e.OnGauge(*g)
		}
	} else if e.OnStat != nil {
		e.OnStat(*g)
	}
}

// setVariable handles <var>: the server publishes a name and value which
// also becomes an entity for later &name; references.
func (e *Engine) setVariable(args Arguments) {
	name := args.Get("name")
	if name == "" {
		if p := args.Positional(1); p != nil {
			name = p.Value
		}
	}
	if name == "" {
		log.Warn("Variable tag without a name")
		e.stats.Errors++
		return
	}
	e.storeVariable(name, args.Get("value"))
}

func (e *Engine) playSound(elem *AtomicElement, args Arguments) {
	m := Media{
		Kind:     MediaSound,
		Name:     args.Get("fname"),
		URL:      args.Get("u"),
		Type:     args.Get("t"),
		Volume:   atoiDefault(args.Get("v"), 100),
		Loops:    atoiDefault(args.Get("l"), 1),
		Priority: atoiDefault(args.Get("p"), 50),
	}
	if elem.Name == "music" {
		m.Kind = MediaMusic
		m.Continue = args.Get("c") != "0"
	}
	if m.Name == "" && m.URL == "" {
		log.Warn("Sound tag without fname or URL")
		e.stats.Errors++
		return
	}
	log.Debug("Media request", "kind", m.Kind.String(), "name", m.Name,
		"volume", m.Volume, "loops", m.Loops)
	if e.OnMedia != nil {
		e.OnMedia(m)
	}
}

func (e *Engine) showImage(args Arguments) {
	m := Media{
		Kind:   MediaImage,
		Name:   args.Get("fname"),
		URL:    args.Get("url"),
		Type:   args.Get("t"),
		Width:  args.Get("w"),
		Height: args.Get("h"),
		Align:  args.Get("align"),
	}
	if m.Name == "" {
		m.Name = args.Get("src")
	}
	if m.Name == "" && m.URL == "" {
		log.Warn("Image tag without fname or URL")
		e.stats.Errors++
		return
	}
	if e.OnMedia != nil {
		e.OnMedia(m)
	}
}

// listItem renders a bullet or number for the current list nesting.
func (e *Engine) listItem() {
	e.sink.BreakLine()
	indent := strings.Repeat("  ", max(e.listDepth-1, 0))
	if e.listOrdered {
		e.sink.AppendText(fmt.Sprintf("%s%d. ", indent, e.listCounter))
		e.listCounter++
		return
	}
	e.sink.AppendText(indent + "* ")
}

// protocolTag handles <mxp>. The only recognized form is <mxp off>,
// which shuts markup down entirely.
func (e *Engine) protocolTag(args Arguments) {
	off := args.Has("off")
	if !off {
		if p := args.Positional(1); p != nil && strings.EqualFold(p.Value, "off") {
			off = true
		}
	}
	if off {
		e.Off(true)
		return
	}
	log.Debug("Protocol tag ignored")
}

func (e *Engine) send(data []byte) {
	if err := e.write(data); err != nil {
		log.Warn("Markup reply failed", "error", err)
	}
}

// sendVersion answers <version> with the client identification.
func (e *Engine) sendVersion() {
	e.send([]byte(fmt.Sprintf("\x1b[1z<VERSION MXP=1.0 CLIENT=%s VERSION=%q REGISTERED=yes>\r\n",
		e.cfg.ClientName, e.cfg.ClientVersion)))
}

// sendSupport answers <support>. Without arguments the whole implemented
// table reports; with arguments each queried tag answers individually,
// keeping any ".option" suffix the server asked with.
func (e *Engine) sendSupport(args Arguments) {
	var b strings.Builder
	b.WriteString("\x1b[1z<SUPPORTS")

	var queried []string
	for _, arg := range args {
		if !arg.Keyword && arg.Name == "" && arg.Value != "" {
			queried = append(queried, strings.ToLower(arg.Value))
		}
	}

	if len(queried) == 0 {
		for i := range builtinElements {
			elem := &builtinElements[i]
			if elem.Flags&TagMXP == 0 || elem.Flags&TagNotImp != 0 {
				continue
			}
			b.WriteString(" +")
			b.WriteString(elem.Name)
		}
	} else {
		for _, name := range queried {
			base, _, _ := strings.Cut(name, ".")
			elem := e.atomic[base]
			if elem != nil && elem.Flags&TagMXP != 0 && elem.Flags&TagNotImp == 0 {
				b.WriteString(" +")
			} else {
				b.WriteString(" -")
			}
			b.WriteString(name)
		}
	}

	b.WriteString(">\r\n")
	e.send([]byte(b.String()))
}

// sendLine transmits a stored credential reply, if one is configured.
func (e *Engine) sendLine(value string) {
	if value == "" {
		return
	}
	e.send([]byte(value + "\r\n"))
}

// sendAFK answers <afk> with the idle time when enabled.
func (e *Engine) sendAFK() {
	if !e.cfg.ReplyToAFK {
		return
	}
	idle := 0
	if e.AFKSeconds != nil {
		idle = e.AFKSeconds()
	}
	e.send([]byte(fmt.Sprintf("\x1b[1z<AFK %d>\r\n", idle)))
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
