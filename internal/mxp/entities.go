package mxp

import (
	"strconv"
	"strings"

	"mudstream/internal/log"
)

// builtinEntities maps the standard HTML-style entity names to their
// codepoints. Built-in names cannot be redefined.
var builtinEntities = map[string]rune{
	"lt":   '<',
	"gt":   '>',
	"amp":  '&',
	"quot": '"',
	"apos": '\'',
	"nbsp": 0x00A0,

	"copy":  0x00A9,
	"reg":   0x00AE,
	"trade": 0x2122,
	"euro":  0x20AC,
	"pound": 0x00A3,
	"yen":   0x00A5,
	"cent":  0x00A2,

	"times":  0x00D7,
	"divide": 0x00F7,
	"plusmn": 0x00B1,
	"deg":    0x00B0,
	"frac12": 0x00BD,
	"frac14": 0x00BC,
	"frac34": 0x00BE,

	"larr": 0x2190,
	"uarr": 0x2191,
	"rarr": 0x2192,
	"darr": 0x2193,

	"hearts": 0x2665,
	"clubs":  0x2663,
	"spades": 0x2660,
	"diams":  0x2666,
}

// Entity is a user-defined entity: a name bound to replacement text.
// Private entities resolve normally but are hidden from Entities.
type Entity struct {
	Name    string
	Value   string
	Private bool
}

// Entity resolves an entity name to its replacement text: numeric forms
// (&#68; and &#x44;), then user definitions, then the built-in table.
// Entity names are case-sensitive; user definitions always store in lower
// case. ok is false for unknown names and rejected numeric values.
func (e *Engine) Entity(name string) (string, bool) {
	if strings.HasPrefix(name, "#") {
		return numericEntity(name)
	}
	if ent, found := e.customEntities[name]; found {
		return ent.Value, true
	}
	if r, found := builtinEntities[name]; found {
		return string(r), true
	}
	return "", false
}

// numericEntity decodes &#DDD; and &#xHHH; references. Codepoints beyond
// the Unicode range and control characters other than TAB, LF and CR are
// rejected.
func numericEntity(name string) (string, bool) {
	digits := name[1:]
	base := 10
	if len(digits) > 0 && (digits[0] == 'x' || digits[0] == 'X') {
		digits = digits[1:]
		base = 16
	}
	n, err := strconv.ParseUint(digits, base, 32)
	if err != nil || n > 0x10FFFF {
		log.Debug("Invalid numeric entity", "name", name)
		return "", false
	}
	if n < 32 && n != 9 && n != 10 && n != 13 {
		log.Debug("Rejected control character entity", "name", name)
		return "", false
	}
	return string(rune(n)), true
}

// CollectedEntity resolves text gathered between '&' and ';' and returns
// what the caller should display: the replacement for known entities, the
// reference spelled back out for unknown ones.
func (e *Engine) CollectedEntity(name string) string {
	if value, ok := e.Entity(name); ok {
		e.stats.Entities++
		return value
	}
	log.Debug("Unknown entity", "name", name)
	e.stats.Errors++
	return "&" + name + ";"
}

// expandEntities replaces &name; references in s. With keepText set, the
// &text; placeholder passes through untouched for later span substitution.
// ok is false when a reference never closes; the partial expansion is
// still returned.
func (e *Engine) expandEntities(s string, keepText bool) (string, bool) {
	if !strings.Contains(s, "&") {
		return s, true
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
			log.Warn("Entity reference missing ';'", "text", s)
			return b.String(), false
		}
		name := s[pos+1 : pos+1+semi]
		if keepText && name == "text" {
			b.WriteString("&text;")
		} else {
			value, _ := e.Entity(name)
			b.WriteString(value)
		}
		pos += semi + 2
	}
	return b.String(), true
}

// defineEntity handles <!ENTITY name value>. Values expand embedded
// entity references once, at definition time. The trailing keywords ADD,
// REMOVE, PRIVATE and PUBLISH adjust how the value lands: ADD and REMOVE
// edit a pipe-separated list, PRIVATE hides the entity from Entities, and
// PUBLISH announces the value through the variable hook.
func (e *Engine) defineEntity(def string) {
	remaining := strings.TrimSpace(def)

	space := indexSpace(remaining, 0)
	if space == -1 {
		log.Warn("Entity definition missing value", "definition", def)
		e.stats.Errors++
		return
	}

	name := strings.ToLower(remaining[:space])
	remaining = strings.TrimSpace(remaining[space+1:])

	if _, found := builtinEntities[name]; found {
		log.Warn("Cannot redefine built-in entity", "name", name)
		e.stats.Errors++
		return
	}

	if hasPrefixFold(remaining, "DELETE") {
		delete(e.customEntities, name)
		log.Debug("Deleted entity", "name", name)
		return
	}

	var value string
	if len(remaining) > 0 && (remaining[0] == '"' || remaining[0] == '\'') {
		quote := remaining[0]
		closing := strings.IndexByte(remaining[1:], quote)
		if closing == -1 {
			log.Warn("Entity definition missing closing quote", "definition", def)
			e.stats.Errors++
			return
		}
		value = remaining[1 : 1+closing]
		remaining = remaining[closing+2:]
	} else if next := indexSpace(remaining, 0); next == -1 {
		value = remaining
		remaining = ""
	} else {
		value = remaining[:next]
		remaining = remaining[next:]
	}

	var add, remove, private, publish bool
	for _, kw := range strings.Fields(remaining) {
		switch strings.ToUpper(kw) {
		case "ADD":
			add = true
		case "REMOVE":
			remove = true
		case "PRIVATE":
			private = true
		case "PUBLISH":
			publish = true
		}
	}

	// References expand once, now. Redefining what they named later does
	// not flow through.
	expanded, ok := e.expandEntities(value, false)
	if !ok {
		e.stats.Errors++
		return
	}

	current := ""
	if old, found := e.customEntities[name]; found {
		current = old.Value
	}

	switch {
	case remove:
		kept := make([]string, 0, 4)
		for _, item := range strings.Split(current, "|") {
			if item != "" && item != expanded {
				kept = append(kept, item)
			}
		}
		if len(kept) == 0 {
			delete(e.customEntities, name)
			log.Debug("Removed last entity list item", "name", name)
			return
		}
		expanded = strings.Join(kept, "|")
	case add && current != "":
		expanded = current + "|" + expanded
	}

	e.customEntities[name] = &Entity{Name: name, Value: expanded, Private: private}
	log.Debug("Defined entity", "name", name, "value", expanded)

	if publish && e.OnVariable != nil {
		e.OnVariable(name, expanded)
	}
}

// storeVariable records a server-set variable as an entity and notifies
// the hook. Built-in entity names stay off limits here too.
func (e *Engine) storeVariable(name, value string) {
	key := strings.ToLower(name)
	if _, found := builtinEntities[key]; found {
		log.Warn("Cannot redefine built-in entity", "name", key)
		e.stats.Errors++
		return
	}
	e.customEntities[key] = &Entity{Name: key, Value: value}
	if e.OnVariable != nil {
		e.OnVariable(name, value)
	}
}

// Entities returns the visible user-defined entities by name.
func (e *Engine) Entities() map[string]string {
	out := make(map[string]string, len(e.customEntities))
	for name, ent := range e.customEntities {
		if !ent.Private {
			out[name] = ent.Value
		}
	}
	return out
}

// hasPrefixFold reports whether s starts with prefix, ignoring case.
func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
