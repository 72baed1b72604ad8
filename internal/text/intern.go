package text

import lru "github.com/hashicorp/golang-lru/v2"

// DefaultInternCapacity bounds how many distinct styles and actions stay
// deduplicated at once. Sessions rarely see more than a few hundred.
const DefaultInternCapacity = 2048

// Interner deduplicates Style and Action values so a long scrollback holds
// one allocation per distinct style instead of one per run. Eviction only
// costs sharing: an evicted style that reappears is simply allocated again.
type Interner struct {
	styles  *lru.Cache[Style, *Style]
	actions *lru.Cache[Action, *Action]
}

// NewInterner creates an interner holding up to capacity entries per table.
// A capacity below one falls back to DefaultInternCapacity.
func NewInterner(capacity int) *Interner {
	if capacity < 1 {
		capacity = DefaultInternCapacity
	}
	styles, _ := lru.New[Style, *Style](capacity)
	actions, _ := lru.New[Action, *Action](capacity)
	return &Interner{styles: styles, actions: actions}
}

// Style returns the shared pointer for s, allocating it on first sight.
// Intern the style's Action first so equal styles key identically.
func (in *Interner) Style(s Style) *Style {
	if p, ok := in.styles.Get(s); ok {
		return p
	}
	p := new(Style)
	*p = s
	in.styles.Add(s, p)
	return p
}

// Action returns the shared pointer for a, allocating it on first sight.
func (in *Interner) Action(a Action) *Action {
	if p, ok := in.actions.Get(a); ok {
		return p
	}
	p := new(Action)
	*p = a
	in.actions.Add(a, p)
	return p
}

// Len reports how many distinct styles are currently interned.
func (in *Interner) Len() int { return in.styles.Len() }
