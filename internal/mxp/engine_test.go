package mxp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"mudstream/internal/text"
)

// fakeSink records style changes and injected display effects.
type fakeSink struct {
	style  text.Style
	out    strings.Builder
	breaks int
	rules  int
}

func (s *fakeSink) Style() text.Style      { return s.style }
func (s *fakeSink) SetStyle(st text.Style) { s.style = st }
func (s *fakeSink) AppendText(t string)    { s.out.WriteString(t) }
func (s *fakeSink) BreakLine()             { s.breaks++ }
func (s *fakeSink) RuleLine()              { s.rules++ }

// captureWriter collects every reply frame the engine writes.
type captureWriter struct {
	frames [][]byte
}

func (w *captureWriter) write(p []byte) error {
	cp := make([]byte, len(p))
	copy(cp, p)
	w.frames = append(w.frames, cp)
	return nil
}

func (w *captureWriter) last() string {
	if len(w.frames) == 0 {
		return ""
	}
	return string(w.frames[len(w.frames)-1])
}

func newTestEngine(cfg Config) (*Engine, *fakeSink, *captureWriter) {
	sink := &fakeSink{style: text.DefaultStyle()}
	w := &captureWriter{}
	e := NewEngine(cfg, w.write, sink)
	e.On()
	return e, sink, w
}

func TestEngine_ActivationLifecycle(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	require.True(t, e.Active())
	require.Equal(t, 1, e.Stats().Activations)

	// Re-activating while on is a no-op.
	e.On()
	require.Equal(t, 1, e.Stats().Activations)

	e.Off(true)
	require.False(t, e.Active())
	require.False(t, e.CollectsMarkup())

	e.On()
	require.Equal(t, 2, e.Stats().Activations)
	require.Equal(t, 0, e.Stats().Tags)
}

func TestEngine_FormattingTagsNestAndRestore(t *testing.T) {
	e, sink, _ := newTestEngine(Config{})

	e.CollectedElement("b")
	require.NotZero(t, sink.style.Flags&text.Bold)
	e.CollectedElement("i")
	require.NotZero(t, sink.style.Flags&text.Italic)

	e.CollectedElement("/i")
	require.Zero(t, sink.style.Flags&text.Italic)
	require.NotZero(t, sink.style.Flags&text.Bold)

	e.CollectedElement("/b")
	require.Equal(t, text.DefaultStyle(), sink.style)
}

func TestEngine_CloseRestoresPreexistingAttribute(t *testing.T) {
	e, sink, _ := newTestEngine(Config{})

	// Bold arrived by ANSI before the tag; the close must keep it.
	sink.style.Flags |= text.Bold

	e.CollectedElement("b")
	e.CollectedElement("/b")
	require.NotZero(t, sink.style.Flags&text.Bold)
}

func TestEngine_TagStackRecoveryOrder(t *testing.T) {
	e, sink, _ := newTestEngine(Config{})

	e.CollectedElement("b")
	e.CollectedElement("i")
	e.CollectedElement("u")
	require.Equal(t, 3, e.OpenTags())

	// Closing the outermost tag closes the mis-nested inner ones first.
	e.CollectedElement("/b")
	require.Equal(t, 0, e.OpenTags())
	require.Equal(t, text.DefaultStyle(), sink.style)
}

func TestEngine_UnmatchedCloseCounts(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	e.CollectedElement("/b")
	require.Equal(t, 1, e.Stats().Errors)
	require.Equal(t, 0, e.OpenTags())
}

func TestEngine_SecureLineRejectsOpenTags(t *testing.T) {
	e, sink, _ := newTestEngine(Config{})

	e.ModeChange(1)
	e.CollectedElement("send href='kill rat'")
	require.Equal(t, 1, e.Stats().Errors)
	require.Equal(t, 0, e.OpenTags())
	require.Nil(t, sink.style.Action)

	// Formatting tags are fine on secure lines.
	e.CollectedElement("b")
	require.NotZero(t, sink.style.Flags&text.Bold)

	// Back in open mode the same tag works.
	e.LineEnded()
	e.CollectedElement("send href='kill rat'")
	require.NotNil(t, sink.style.Action)
}

func TestEngine_SecureOnceCoversExactlyOneTag(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	e.ModeChange(4)
	require.Equal(t, ModeSecureOnce, e.Mode())

	e.CollectedElement("send href='n'")
	require.Equal(t, 1, e.Stats().Errors)
	require.Equal(t, ModeOpen, e.Mode())

	e.CollectedElement("send href='n'")
	require.Equal(t, 1, e.Stats().Errors)
	require.Equal(t, 1, e.OpenTags())
}

func TestEngine_SecureOnceRevertsToPriorMode(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	e.ModeChange(6)
	e.ModeChange(4)
	e.CollectedElement("b")
	require.Equal(t, ModePermSecure, e.Mode())
}

func TestEngine_SecureTagBlocksInsecureClose(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	e.ModeChange(1)
	e.CollectedElement("b")
	e.LineEnded()

	// An open line cannot close what a secure line opened.
	e.CollectedElement("/b")
	require.Equal(t, 1, e.Stats().Errors)
	require.Equal(t, 1, e.OpenTags())

	// A secure line can.
	e.ModeChange(1)
	e.CollectedElement("/b")
	require.Equal(t, 0, e.OpenTags())
}

func TestEngine_InsecureCloseCannotCrossSecureTag(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	e.CollectedElement("u")
	e.ModeChange(1)
	e.CollectedElement("b")
	e.LineEnded()
	e.CollectedElement("i")

	// Closing u would have to pop the secure b; refuse.
	e.CollectedElement("/u")
	require.Equal(t, 1, e.Stats().Errors)
	require.Equal(t, 3, e.OpenTags())
}

func TestEngine_ResetClosesTagsButKeepsNoResetOnes(t *testing.T) {
	sink := &fakeSink{style: text.DefaultStyle()}
	e := NewEngine(Config{}, nil, sink)
	e.OnPueblo()

	e.CollectedElement("body")
	e.CollectedElement("pre")
	require.Equal(t, 2, e.OpenTags())
	require.True(t, e.Preformatted())

	e.ModeChange(3)
	require.Equal(t, 1, e.OpenTags())
	require.False(t, e.Preformatted())
	require.True(t, e.Active())

	// A full shutdown drains even no-reset tags.
	e.Off(true)
	require.Equal(t, 0, e.OpenTags())
}

func TestEngine_ResetTagClosesOpenTags(t *testing.T) {
	e, sink, _ := newTestEngine(Config{})

	e.CollectedElement("b")
	e.CollectedElement("reset")
	require.Equal(t, 0, e.OpenTags())
	require.Zero(t, sink.style.Flags&text.Bold)
	require.True(t, e.Active())
}

func TestEngine_ModeReturnsToDefaultAtLineEnd(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	e.ModeChange(1)
	e.LineEnded()
	require.Equal(t, ModeOpen, e.Mode())

	e.ModeChange(6)
	e.LineEnded()
	require.Equal(t, ModePermSecure, e.Mode())

	// A plain security code drops the permanent default again.
	e.ModeChange(1)
	e.LineEnded()
	require.Equal(t, ModeOpen, e.Mode())
}

func TestEngine_CollectsMarkupByMode(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	require.True(t, e.CollectsMarkup())
	e.ModeChange(2)
	require.True(t, e.CollectsMarkup())
	e.ModeChange(10)
	require.False(t, e.CollectsMarkup())
	e.LineEnded()
	require.True(t, e.CollectsMarkup())
}

func TestEngine_RoomCollectionTeesToHooks(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	var name, desc, exits string
	e.OnRoomName = func(s string) { name = s }
	e.OnRoomDescription = func(s string) { desc = s }
	e.OnRoomExits = func(s string) { exits = s }

	e.ModeChange(10)
	e.TextAdded("Temple of Midgaard")
	e.LineEnded()
	require.Equal(t, "Temple of Midgaard", name)
	require.Equal(t, ModeOpen, e.Mode())

	e.ModeChange(11)
	e.TextAdded("You are in the southern end ")
	// A mode change mid-line flushes what was collected so far.
	e.ModeChange(12)
	require.Equal(t, "You are in the southern end ", desc)
	e.TextAdded("north south")
	e.LineEnded()
	require.Equal(t, "north south", exits)
}

func TestEngine_WelcomeCollection(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	var lines []string
	e.OnWelcome = func(s string) { lines = append(lines, s) }

	e.ModeChange(19)
	e.TextAdded("Welcome to the game!")
	e.LineEnded()
	require.Equal(t, []string{"Welcome to the game!"}, lines)
}

func TestEngine_ScriptBodyDiverts(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	require.False(t, e.Diverting())
	e.CollectedElement("script")
	require.True(t, e.Diverting())
	e.CollectedElement("/script")
	require.False(t, e.Diverting())
}

func TestEngine_ParagraphAndLayoutFlags(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	e.CollectedElement("p")
	require.True(t, e.InParagraph())
	e.CollectedElement("/p")
	require.False(t, e.InParagraph())

	e.CollectedElement("nobr")
	require.True(t, e.NoBreak())
	e.CollectedElement("/nobr")
	require.False(t, e.NoBreak())

	e.CollectedElement("center")
	require.True(t, e.Centered())
	e.CollectedElement("/center")
	require.False(t, e.Centered())
}

func TestEngine_CommentsIgnored(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	e.CollectedElement("!-- anything at all <b> &x; --")
	require.Equal(t, 0, e.Stats().Errors)
	require.Equal(t, 0, e.Stats().Tags)
}

func TestEngine_EmptyAndUnknownElementsCount(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	e.CollectedElement("")
	require.Equal(t, 1, e.Stats().Errors)

	e.CollectedElement("wibble")
	require.Equal(t, 2, e.Stats().Errors)
	require.Equal(t, 1, e.Stats().Tags)
}

func TestEngine_DefinitionsRejectedOnLockedLines(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	e.ModeChange(2)
	e.CollectedElement("!ELEMENT boo '<b>'")
	require.Equal(t, 1, e.Stats().Errors)

	e.LineEnded()
	e.CollectedElement("!ELEMENT boo '<b>'")
	require.Equal(t, 1, e.Stats().Errors)
	e.CollectedElement("boo")
	require.Equal(t, 1, e.OpenTags())
}

func TestEngine_PuebloGatesElementTable(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	// Pueblo-only tags read as unknown in markup mode.
	e.CollectedElement("pre")
	require.Equal(t, 1, e.Stats().Errors)
	require.False(t, e.Preformatted())
}

func TestEngine_MXPOffTagShutsDown(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	e.CollectedElement("mxp off")
	require.False(t, e.Active())
}

func TestEngine_ResetKeepsDefinitions(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	e.CollectedElement("!ENTITY hp 100")
	e.CollectedElement("!ELEMENT boo '<b>'")

	e.Reset()
	e.On()

	got, ok := e.Entity("hp")
	require.True(t, ok)
	require.Equal(t, "100", got)
	e.CollectedElement("boo")
	require.Equal(t, 1, e.OpenTags())

	e.ClearDefinitions()
	_, ok = e.Entity("hp")
	require.False(t, ok)
}
