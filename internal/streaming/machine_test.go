package streaming

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"mudstream/internal/ansi"
	"mudstream/internal/mxp"
	"mudstream/internal/telnet"
	"mudstream/internal/text"
	"mudstream/internal/theme"
)

func TestMachine_SplitsRunsAtStyleChanges(t *testing.T) {
	h := newHarness(t, nil)

	h.feed("\x1b[1;31mHello\x1b[0m World\r\n")

	require.Equal(t, []string{"Hello World"}, h.texts())
	rs := runs(h.lines[0])
	require.Len(t, rs, 2)
	require.Equal(t, "Hello", string(h.lines[0].RunText(0)))
	require.NotZero(t, rs[0].Style.Flags&text.Bold)
	require.Equal(t, text.ColourANSI, rs[0].Style.Flags.ColourType())
	require.Equal(t, text.Red, rs[0].Style.Fore)
	require.True(t, rs[1].Style.Same(text.DefaultStyle()))
}

func TestMachine_Extended256Foreground(t *testing.T) {
	h := newHarness(t, nil)

	h.feed("\x1b[38;5;196mlava\r\n")

	st := runs(h.lines[0])[0].Style
	require.Equal(t, text.ColourRGB, st.Flags.ColourType())
	require.Equal(t, ansi.Xterm256(196), st.Fore)
	require.Equal(t, theme.Current().Normal[text.Black], st.Back)
}

func TestMachine_TruecolourBackgroundThenAttribute(t *testing.T) {
	h := newHarness(t, nil)

	// The attribute after the five colour parameters must still apply.
	h.feed("\x1b[48;2;10;20;30;1mdeep\r\n")

	st := runs(h.lines[0])[0].Style
	require.Equal(t, text.ColourRGB, st.Flags.ColourType())
	require.Equal(t, text.NewRGB(10, 20, 30), st.Back)
	require.NotZero(t, st.Flags&text.Bold)
}

func TestMachine_TruncatedExtendedColourLeavesStyleAlone(t *testing.T) {
	h := newHarness(t, nil)

	// Only two of the three channels arrive before the terminator.
	h.feed("\x1b[38;2;255;128mx\r\n")

	require.True(t, runs(h.lines[0])[0].Style.Same(text.DefaultStyle()))
	require.Equal(t, PhaseNone, h.p.mach.Phase())
}

func TestMachine_OutOfRangePaletteIndexSkipped(t *testing.T) {
	h := newHarness(t, nil)

	h.feed("\x1b[38;5;300;4mx\r\n")

	st := runs(h.lines[0])[0].Style
	require.Equal(t, text.ColourANSI, st.Flags.ColourType())
	require.NotZero(t, st.Flags&text.Underline)
}

func TestMachine_DanglingEscapeQuirks(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		// An unrecognised parameter byte abandons the sequence and the
		// rest prints, exactly as the classic client behaves.
		{"private-mode introducer abandons parsing", "a\x1b[?25hb\r\n", "a25hb"},
		{"non-csi escape swallows one byte", "a\x1bMb\r\n", "ab"},
		{"empty sgr resets to default", "a\x1b[mb\r\n", "ab"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.feed(tc.input)
			require.Equal(t, []string{tc.want}, h.texts())
		})
	}
}

func TestMachine_UTF8AcrossChunks(t *testing.T) {
	h := newHarness(t, nil)

	h.feed("caf\xc3")
	h.feed("\xa9\r\n")

	require.Equal(t, []string{"café"}, h.texts())
	require.Zero(t, h.p.Stats().Machine.UTF8Errors)
}

func TestMachine_UTF8ErrorHandling(t *testing.T) {
	testCases := []struct {
		name   string
		input  string
		want   string
		errors int64
	}{
		{"torn sequence redispatches the intruder", "ab\xc3(cd\r\n", "ab(cd", 1},
		{"overlong encoding dropped", "\xc0\xafZ\r\n", "Z", 1},
		{"stray continuation dropped", "a\x80b\r\n", "ab", 1},
		{"escaped 0xFF is not valid text", "a\xff\xffb\r\n", "ab", 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.feed(tc.input)
			require.Equal(t, []string{tc.want}, h.texts())
			require.Equal(t, tc.errors, h.p.Stats().Machine.UTF8Errors)
		})
	}
}

func TestMachine_SingleByteCharsets(t *testing.T) {
	testCases := []struct {
		name    string
		charset string
		input   string
		want    string
	}{
		{"latin-1 accents", "ISO-8859-1", "caf\xe9\r\n", "café"},
		{"cp437 box drawing", "CP437", "\xc9\xcd\xbb\r\n", "╔═╗"},
		{"windows-1252 smart quotes", "windows-1252", "\x93hi\x94\r\n", "“hi”"},
		{"escaped 0xFF decodes as a literal", "ISO-8859-1", "x\xff\xffy\r\n", "xÿy"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, func(o *Options) {
				o.UTF8 = false
				o.Charset = tc.charset
			})
			h.feed(tc.input)
			require.Equal(t, []string{tc.want}, h.texts())
		})
	}
}

func TestMachine_ControlBytesFiltered(t *testing.T) {
	h := newHarness(t, nil)

	h.feed("a\tb\x07c\x00d\r\n")

	require.Equal(t, []string{"a\tbcd"}, h.texts())
}

func TestMachine_SendTagMakesClickableCommand(t *testing.T) {
	h := newHarness(t, nil)

	h.feed("\xff\xfb\x5b") // IAC WILL MXP
	// The '>' inside the quoted attribute must not end the tag.
	h.feed("<send href='say hi > all'>greet</send>\r\n")

	require.Equal(t, []string{"greet"}, h.texts())
	st := runs(h.lines[0])[0].Style
	require.Equal(t, text.ActionSend, st.Flags.ActionType())
	require.NotZero(t, st.Flags&text.Underline)
	require.Equal(t, "say hi > all", st.Action.Send)
}

func TestMachine_SecureLineRejectsOpenOnlyTags(t *testing.T) {
	h := newHarness(t, nil)

	h.feed("\xff\xfb\x5b")
	require.Equal(t, mxp.ModeOpen, h.p.MXP().Mode())

	h.feed("\x1b[1z")
	require.Equal(t, mxp.ModeSecure, h.p.MXP().Mode())

	h.feed("<send href='n'>go</send>\r\n")

	require.Equal(t, []string{"go"}, h.texts())
	require.Equal(t, text.ActionNone, runs(h.lines[0])[0].Style.Flags.ActionType())
	require.NotZero(t, h.p.MXP().Stats().Errors)

	// Line security returns to the default when the line ends.
	require.Equal(t, mxp.ModeOpen, h.p.MXP().Mode())
}

func TestMachine_ResetModeClosesOpenTags(t *testing.T) {
	h := newHarness(t, nil)

	h.feed("\xff\xfb\x5b")
	h.feed("<b>bold\x1b[3zplain\r\n")

	require.Equal(t, []string{"boldplain"}, h.texts())
	rs := runs(h.lines[0])
	require.Len(t, rs, 2)
	require.NotZero(t, rs[0].Style.Flags&text.Bold)
	require.Zero(t, rs[1].Style.Flags&text.Bold)
	require.Zero(t, h.p.MXP().OpenTags())
}

func TestMachine_ElementCollectionRestartsOnStrayBracket(t *testing.T) {
	h := newHarness(t, nil)

	h.feed("\xff\xfb\x5b")
	h.feed("a<b<b>c\r\n")

	require.Equal(t, []string{"ac"}, h.texts())
	rs := runs(h.lines[0])
	require.Len(t, rs, 2)
	require.NotZero(t, rs[1].Style.Flags&text.Bold)
	require.Equal(t, int64(1), h.p.Stats().Machine.MarkupErrors)
}

func TestMachine_EntityCollectionRestarts(t *testing.T) {
	h := newHarness(t, nil)

	h.feed("\xff\xfb\x5b")
	h.feed("x&am&amp;y\r\n")

	require.Equal(t, []string{"x&y"}, h.texts())
	require.Equal(t, int64(1), h.p.Stats().Machine.MarkupErrors)
}

func TestMachine_CommentsVanishWhole(t *testing.T) {
	h := newHarness(t, nil)

	h.feed("\xff\xfb\x5b")
	h.feed("a<!-- <b>secret</b> &amp; -->b\r\n")

	require.Equal(t, []string{"ab"}, h.texts())
	require.Len(t, runs(h.lines[0]), 1)
	require.Zero(t, h.p.MXP().Stats().Tags)
}

func TestMachine_NobrJoinsTheNextLine(t *testing.T) {
	h := newHarness(t, nil)

	h.feed("\xff\xfb\x5b")
	h.feed("<nobr>one\ntwo\r\n")

	require.Equal(t, []string{"onetwo"}, h.texts())
}

func TestMachine_ParagraphTurnsNewlinesIntoSpaces(t *testing.T) {
	h := newHarness(t, nil)

	h.feed("\xff\xfb\x5b")
	h.feed("<p>alpha\nbeta</p> done\r\n")

	require.Equal(t, []string{"alpha beta done"}, h.texts())
}

func TestMachine_WontMXPStopsCollection(t *testing.T) {
	h := newHarness(t, nil)

	h.feed("\xff\xfb\x5b")
	h.feed("<b>x</b>\r\n")
	h.feed("\xff\xfc\x5b") // IAC WONT MXP

	require.False(t, h.p.MXP().Active())
	require.Equal(t, 1, h.eventCount(EventMXPStopped))

	h.feed("<b>y\r\n")
	require.Equal(t, []string{"x", "<b>y"}, h.texts())
}

func TestMachine_ResetAbandonsHalfCollectedTag(t *testing.T) {
	h := newHarness(t, nil)

	h.feed("\xff\xfb\x5b")
	h.feed("<sen")
	require.Equal(t, PhaseElement, h.p.mach.Phase())

	h.p.Reset()
	require.Equal(t, PhaseNone, h.p.mach.Phase())

	h.feed("d>x\r\n")
	require.Equal(t, []string{"d>x"}, h.texts())
}

func TestMachine_OversizedSubnegotiationDiscarded(t *testing.T) {
	h := newHarness(t, nil)

	h.feed("\xff\xfb\xc9") // IAC WILL GMCP, so a sane payload would dispatch
	h.p.Feed([]byte{telnet.IAC, telnet.SB, telnet.GMCP})
	h.p.Feed(bytes.Repeat([]byte{'a'}, maxSubnegLength+1))
	h.p.Feed([]byte{telnet.IAC, telnet.SE})

	require.Equal(t, int64(1), h.p.Stats().Machine.Overflows)
	require.Zero(t, h.eventCount(EventTelnetPayload))
	require.Equal(t, PhaseNone, h.p.mach.Phase())
	require.Equal(t, "", h.p.Current().String())
}
