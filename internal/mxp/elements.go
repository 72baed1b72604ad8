package mxp

// TagFlag bits describe how a built-in element behaves and when it applies.
type TagFlag int

const (
	// TagOpen marks a tag that only runs while line security is open;
	// secure and locked lines reject it.
	TagOpen TagFlag = 0x01
	// TagCommand marks a tag with no closing form. Commands never join the
	// active-tag stack.
	TagCommand TagFlag = 0x02
	// TagPueblo and TagMXP say which protocol the tag belongs to; a tag
	// can carry both.
	TagPueblo TagFlag = 0x04
	TagMXP    TagFlag = 0x08
	// TagNoReset keeps the tag open across a <reset>.
	TagNoReset TagFlag = 0x10
	// TagNotImp marks tags that parse but deliberately do nothing.
	TagNotImp TagFlag = 0x20
)

// AtomicElement is one entry of the built-in element table: the tag name,
// its behaviour flags, the action it performs, and the parameter names its
// positional arguments bind to, in order.
type AtomicElement struct {
	Name   string
	Flags  TagFlag
	Action Action
	Args   []string
}

// builtinElements lists the standard tags servers may use without defining
// them first. The order is load-bearing: the <support> reply walks the
// table as written.
var builtinElements = []AtomicElement{
	{Name: "b", Flags: TagMXP, Action: ActionBold},
	{Name: "bold", Flags: TagMXP, Action: ActionBold},
	{Name: "i", Flags: TagMXP, Action: ActionItalic},
	{Name: "italic", Flags: TagMXP, Action: ActionItalic},
	{Name: "u", Flags: TagMXP, Action: ActionUnderline},
	{Name: "underline", Flags: TagMXP, Action: ActionUnderline},
	{Name: "strike", Flags: TagMXP, Action: ActionStrike},
	{Name: "strikeout", Flags: TagMXP, Action: ActionStrike},
	{Name: "small", Flags: TagMXP, Action: ActionSmall},
	{Name: "tt", Flags: TagMXP, Action: ActionTT},
	{Name: "high", Flags: TagMXP, Action: ActionHigh},

	{Name: "p", Flags: TagMXP, Action: ActionP},
	{Name: "br", Flags: TagMXP | TagCommand, Action: ActionBr},
	{Name: "nobr", Flags: TagMXP, Action: ActionNoBr},
	{Name: "sbr", Flags: TagMXP | TagCommand, Action: ActionBr},
	{Name: "hr", Flags: TagMXP | TagCommand, Action: ActionHr},

	{Name: "h1", Flags: TagMXP, Action: ActionH1},
	{Name: "h2", Flags: TagMXP, Action: ActionH2},
	{Name: "h3", Flags: TagMXP, Action: ActionH3},
	{Name: "h4", Flags: TagMXP, Action: ActionH4},
	{Name: "h5", Flags: TagMXP, Action: ActionH5},
	{Name: "h6", Flags: TagMXP, Action: ActionH6},

	{Name: "ul", Flags: TagMXP, Action: ActionUl},
	{Name: "ol", Flags: TagMXP, Action: ActionOl},
	{Name: "li", Flags: TagMXP, Action: ActionLi},

	{Name: "color", Flags: TagMXP, Action: ActionColor, Args: []string{"fore", "back"}},
	{Name: "font", Flags: TagMXP, Action: ActionFont, Args: []string{"face", "size", "color", "back"}},
	{Name: "a", Flags: TagMXP, Action: ActionHyperlink, Args: []string{"href"}},
	{Name: "send", Flags: TagOpen | TagMXP, Action: ActionSend, Args: []string{"href", "hint", "prompt"}},

	{Name: "sound", Flags: TagOpen | TagCommand | TagMXP, Action: ActionSound,
		Args: []string{"fname", "v", "l", "p", "t", "u"}},
	{Name: "music", Flags: TagOpen | TagCommand | TagMXP, Action: ActionSound,
		Args: []string{"fname", "v", "l", "p", "t", "u", "c"}},
	{Name: "image", Flags: TagOpen | TagCommand | TagMXP, Action: ActionImage,
		Args: []string{"fname", "url", "t", "h", "w", "hspace", "vspace", "align"}},
	{Name: "filter", Flags: TagCommand | TagMXP | TagNotImp, Action: ActionFilter,
		Args: []string{"src", "dest", "name"}},

	{Name: "gauge", Flags: TagMXP, Action: ActionGauge, Args: []string{"entity", "max", "caption", "color"}},
	{Name: "stat", Flags: TagMXP, Action: ActionStat, Args: []string{"entity", "max", "caption"}},

	{Name: "version", Flags: TagMXP | TagCommand, Action: ActionVersion},
	{Name: "support", Flags: TagMXP, Action: ActionSupport},
	{Name: "expire", Flags: TagMXP, Action: ActionExpire, Args: []string{"name"}},
	{Name: "var", Flags: TagMXP | TagCommand, Action: ActionVar},
	{Name: "option", Flags: TagMXP | TagCommand | TagNotImp, Action: ActionOption},
	{Name: "recommend_option", Flags: TagMXP | TagCommand | TagNotImp, Action: ActionRecommendOption},

	{Name: "user", Flags: TagOpen | TagCommand | TagMXP, Action: ActionUser},
	{Name: "password", Flags: TagOpen | TagCommand | TagMXP, Action: ActionPassword},
	{Name: "relocate", Flags: TagOpen | TagCommand | TagMXP | TagNotImp, Action: ActionRelocate,
		Args: []string{"server", "port"}},

	{Name: "frame", Flags: TagMXP | TagNotImp, Action: ActionFrame,
		Args: []string{"name", "action", "title", "internal", "align", "left", "top",
			"width", "height", "scrolling", "floating"}},
	{Name: "dest", Flags: TagMXP | TagNotImp, Action: ActionDest, Args: []string{"name", "x", "y", "eol"}},

	{Name: "script", Flags: TagMXP, Action: ActionScript},
	{Name: "center", Flags: TagMXP, Action: ActionCenter},
	{Name: "samp", Flags: TagMXP, Action: ActionSamp},
	{Name: "afk", Flags: TagMXP | TagCommand, Action: ActionAFK},

	{Name: "pre", Flags: TagPueblo, Action: ActionPre},
	{Name: "body", Flags: TagPueblo | TagNoReset, Action: ActionBody},
	{Name: "head", Flags: TagPueblo | TagNoReset, Action: ActionHead},
	{Name: "html", Flags: TagPueblo | TagNoReset, Action: ActionHTML},
	{Name: "title", Flags: TagPueblo, Action: ActionTitle},
	{Name: "img", Flags: TagPueblo | TagCommand, Action: ActionImg,
		Args: []string{"src", "fname", "url", "t", "h", "w", "hspace", "vspace", "align"}},
	{Name: "xch_page", Flags: TagPueblo | TagCommand, Action: ActionXchPage},
	{Name: "xch_pane", Flags: TagPueblo | TagCommand, Action: ActionXchPane},

	{Name: "reset", Flags: TagMXP | TagCommand, Action: ActionReset},
	{Name: "mxp", Flags: TagMXP | TagCommand, Action: ActionMXP},
}

// newAtomicTable indexes the built-in elements by name. The table is built
// on every activation and dropped on shutdown; the entries themselves are
// shared and never written.
func newAtomicTable() map[string]*AtomicElement {
	table := make(map[string]*AtomicElement, len(builtinElements))
	for i := range builtinElements {
		table[builtinElements[i].Name] = &builtinElements[i]
	}
	return table
}
