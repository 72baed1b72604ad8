package mxp

import "strings"

// Argument is one parsed tag argument: named (name=value), positional
// (value only), or a bare keyword such as OPEN or EMPTY. Position numbers
// named and positional arguments together, starting at 1.
type Argument struct {
	Name     string
	Value    string
	Position int
	Keyword  bool
	Used     bool
}

// Arguments holds one tag invocation's arguments in the order written.
type Arguments []*Argument

// Get returns the named argument's value and marks it used. Matching is
// case-insensitive; a missing argument reads as "".
func (a Arguments) Get(name string) string {
	for _, arg := range a {
		if strings.EqualFold(arg.Name, name) {
			arg.Used = true
			return arg.Value
		}
	}
	return ""
}

// Has reports whether the named argument or keyword flag is present.
func (a Arguments) Has(name string) bool {
	for _, arg := range a {
		if strings.EqualFold(arg.Name, name) {
			arg.Used = true
			return true
		}
	}
	return false
}

// Positional returns the n-th unnamed argument (1-based), or nil.
func (a Arguments) Positional(n int) *Argument {
	seen := 0
	for _, arg := range a {
		if arg.Name == "" && !arg.Keyword {
			seen++
			if seen == n {
				return arg
			}
		}
	}
	return nil
}

func (a Arguments) find(name string) *Argument {
	for _, arg := range a {
		if strings.EqualFold(arg.Name, name) {
			return arg
		}
	}
	return nil
}

func cloneArguments(a Arguments) Arguments {
	out := make(Arguments, len(a))
	for i, arg := range a {
		c := *arg
		out[i] = &c
	}
	return out
}

// ParseTag splits collected tag text into the tag name and its arguments.
// Arguments may be name=value pairs, bare positional values, or keyword
// flags; values quote with either ' or ", and a backslash inside a quoted
// value keeps the next character from closing it. The name comes back as
// written; callers lower-case it for lookups.
func ParseTag(tag string) (string, Arguments) {
	str := strings.TrimSpace(tag)
	if str == "" {
		return "", nil
	}

	space := indexSpace(str, 0)
	if space == -1 {
		return str, nil
	}
	name := str[:space]

	rest := strings.TrimSpace(str[space+1:])
	if rest == "" {
		return name, nil
	}

	var args Arguments
	pos := 0
	position := 1
	for pos < len(rest) {
		for pos < len(rest) && isSpace(rest[pos]) {
			pos++
		}
		if pos >= len(rest) {
			break
		}

		eq := strings.IndexByte(rest[pos:], '=')
		if eq >= 0 {
			eq += pos
		}
		next := indexSpace(rest, pos)

		if eq == -1 || (next != -1 && next < eq) {
			// Positional value or keyword flag.
			var value string
			quoted := false
			if q := rest[pos]; q == '"' || q == '\'' {
				quoted = true
				value, pos = readQuoted(rest, pos)
			} else {
				end := next
				if end == -1 {
					end = len(rest)
				}
				value = strings.TrimSpace(rest[pos:end])
				pos = end
			}

			// Quoting always makes a value: <send 'OPEN'> sends the word.
			keyword := false
			if !quoted {
				switch value {
				case "OPEN", "EMPTY", "DELETE", "ADD", "REMOVE":
					keyword = true
				}
			}

			if keyword || quoted || value != "" {
				arg := &Argument{Position: position}
				if keyword {
					arg.Name = value
					arg.Keyword = true
				} else {
					arg.Value = value
				}
				args = append(args, arg)
				position++
			}
			continue
		}

		argName := strings.TrimSpace(rest[pos:eq])
		pos = eq + 1
		for pos < len(rest) && isSpace(rest[pos]) {
			pos++
		}
		if pos >= len(rest) {
			break
		}

		var value string
		if q := rest[pos]; q == '"' || q == '\'' {
			value, pos = readQuoted(rest, pos)
		} else {
			start := pos
			for pos < len(rest) && !isSpace(rest[pos]) {
				pos++
			}
			value = rest[start:pos]
		}

		if argName != "" {
			args = append(args, &Argument{Name: argName, Value: value, Position: position})
			position++
		}
	}

	return name, args
}

// readQuoted reads a quoted value starting at the opening quote. Backslash
// protects the next character from terminating the quote but stays in the
// value. Returns the value and the offset just past the closing quote.
func readQuoted(s string, pos int) (string, int) {
	quote := s[pos]
	pos++
	start := pos
	for pos < len(s) && s[pos] != quote {
		if s[pos] == '\\' && pos+1 < len(s) {
			pos++
		}
		pos++
	}
	value := s[start:pos]
	if pos < len(s) {
		pos++
	}
	return value, pos
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

func indexSpace(s string, from int) int {
	for i := from; i < len(s); i++ {
		if isSpace(s[i]) {
			return i
		}
	}
	return -1
}
