package text

// PopupDelimiter separates the alternatives of a multi-choice send action in
// both the Send and Hint fields. The first Hint segment is the tooltip; the
// rest caption the menu entries.
const PopupDelimiter = "|"

// Action carries the click behaviour attached to a styled run: the command
// text to send (or URL to open), an optional hover hint, and an optional
// variable name the server wants set to the clicked value.
type Action struct {
	Send     string
	Hint     string
	Variable string
}

// IsMenu reports whether the action offers multiple commands to pick from.
func (a *Action) IsMenu() bool {
	if a == nil {
		return false
	}
	for i := 0; i < len(a.Send); i++ {
		if a.Send[i] == '|' {
			return true
		}
	}
	return false
}
