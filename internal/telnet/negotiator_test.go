package telnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// captureWriter collects every frame the negotiator writes.
type captureWriter struct {
	frames [][]byte
}

func (w *captureWriter) write(p []byte) error {
	cp := make([]byte, len(p))
	copy(cp, p)
	w.frames = append(w.frames, cp)
	return nil
}

func newTestNegotiator(cfg Config) (*Negotiator, *captureWriter) {
	w := &captureWriter{}
	return NewNegotiator(cfg, w.write), w
}

func TestNegotiator_WillReplies(t *testing.T) {
	testCases := []struct {
		name   string
		cfg    Config
		option byte
		want   []byte
	}{
		{"suppress go ahead accepted", Config{}, SUPPRESS_GO_AHEAD, []byte{IAC, DO, SUPPRESS_GO_AHEAD}},
		{"echo accepted", Config{}, ECHO, []byte{IAC, DO, ECHO}},
		{"echo refused when control ignored", Config{IgnoreEchoControl: true}, ECHO, []byte{IAC, DONT, ECHO}},
		{"charset accepted", Config{}, CHARSET, []byte{IAC, DO, CHARSET}},
		{"compression v1 accepted", Config{}, COMPRESS, []byte{IAC, DO, COMPRESS}},
		{"compression v2 accepted", Config{}, COMPRESS2, []byte{IAC, DO, COMPRESS2}},
		{"compression refused when disabled", Config{DisableCompression: true}, COMPRESS2, []byte{IAC, DONT, COMPRESS2}},
		{"eor accepted with prompt conversion", Config{ConvertGAToNewline: true}, END_OF_RECORD, []byte{IAC, DO, END_OF_RECORD}},
		{"eor refused without prompt conversion", Config{}, END_OF_RECORD, []byte{IAC, DONT, END_OF_RECORD}},
		{"mxp refused when never", Config{UseMXP: MXPNever}, MXP, []byte{IAC, DONT, MXP}},
		{"mxp accepted", Config{UseMXP: MXPOnNegotiated}, MXP, []byte{IAC, DO, MXP}},
		{"zmp accepted when enabled", Config{EnableZMP: true}, ZMP, []byte{IAC, DO, ZMP}},
		{"zmp refused when disabled", Config{}, ZMP, []byte{IAC, DONT, ZMP}},
		{"atcp accepted when enabled", Config{EnableATCP: true}, ATCP, []byte{IAC, DO, ATCP}},
		{"gmcp accepted when enabled", Config{EnableGMCP: true}, GMCP, []byte{IAC, DO, GMCP}},
		{"msp accepted when enabled", Config{EnableMSP: true}, MSP, []byte{IAC, DO, MSP}},
		{"unknown option refused", Config{}, 49, []byte{IAC, DONT, 49}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			n, w := newTestNegotiator(tc.cfg)
			n.HandleWill(tc.option)
			require.Len(t, w.frames, 1)
			require.Equal(t, tc.want, w.frames[0])
		})
	}
}

func TestNegotiator_WillEchoTracksState(t *testing.T) {
	n, _ := newTestNegotiator(Config{})

	require.False(t, n.NoEcho())
	n.HandleWill(ECHO)
	require.True(t, n.NoEcho())
	n.HandleWont(ECHO)
	require.False(t, n.NoEcho())
}

func TestNegotiator_CompressionPrefersV2(t *testing.T) {
	n, w := newTestNegotiator(Config{})

	n.HandleWill(COMPRESS2)
	require.True(t, n.SupportsMCCP2())

	// A v1 offer after v2 has been agreed is refused.
	n.HandleWill(COMPRESS)
	require.Equal(t, [][]byte{
		{IAC, DO, COMPRESS2},
		{IAC, DONT, COMPRESS},
	}, w.frames)
}

func TestNegotiator_DoReplies(t *testing.T) {
	testCases := []struct {
		name   string
		cfg    Config
		option byte
		want   []byte
	}{
		{"suppress go ahead", Config{}, SUPPRESS_GO_AHEAD, []byte{IAC, WILL, SUPPRESS_GO_AHEAD}},
		{"echo", Config{}, ECHO, []byte{IAC, WILL, ECHO}},
		{"charset", Config{}, CHARSET, []byte{IAC, WILL, CHARSET}},
		{"terminal type", Config{}, TERMINAL_TYPE, []byte{IAC, WILL, TERMINAL_TYPE}},
		{"naws refused when disabled", Config{}, NAWS, []byte{IAC, WONT, NAWS}},
		{"mxp refused when never", Config{UseMXP: MXPNever}, MXP, []byte{IAC, WONT, MXP}},
		{"mxp accepted", Config{UseMXP: MXPOnNegotiated}, MXP, []byte{IAC, WILL, MXP}},
		{"unknown option refused", Config{}, 49, []byte{IAC, WONT, 49}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			n, w := newTestNegotiator(tc.cfg)
			n.HandleDo(tc.option)
			require.Len(t, w.frames, 1)
			require.Equal(t, tc.want, w.frames[0])
		})
	}
}

func TestNegotiator_DoNAWSSendsWindowSize(t *testing.T) {
	n, w := newTestNegotiator(Config{NAWS: true, Width: 255, Height: 80})

	n.HandleDo(NAWS)

	require.Equal(t, [][]byte{
		{IAC, WILL, NAWS},
		// Width 255 has an 0xFF low byte, which must be doubled.
		{IAC, SB, NAWS, 0x00, 0xFF, 0xFF, 0x00, 0x50, IAC, SE},
	}, w.frames)
}

func TestNegotiator_WindowSizeBeforeRequestIsSilent(t *testing.T) {
	n, w := newTestNegotiator(Config{NAWS: true, Width: 80, Height: 24})

	n.SendWindowSize(80, 24)
	require.Empty(t, w.frames)
}

func TestNegotiator_WindowSizeDoublesEveryIAC(t *testing.T) {
	n, w := newTestNegotiator(Config{NAWS: true, Width: 0xFFFF, Height: 24})

	n.HandleDo(NAWS)

	require.Equal(t,
		[]byte{IAC, SB, NAWS, 0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x18, IAC, SE},
		w.frames[1])
}

func TestNegotiator_DuplicateVerbsSuppressed(t *testing.T) {
	n, w := newTestNegotiator(Config{})

	n.HandleWill(SUPPRESS_GO_AHEAD)
	n.HandleWill(SUPPRESS_GO_AHEAD)
	n.HandleWill(SUPPRESS_GO_AHEAD)

	// One DO on the wire no matter how often the server repeats itself.
	require.Equal(t, [][]byte{{IAC, DO, SUPPRESS_GO_AHEAD}}, w.frames)

	// Every received verb still counts.
	require.Equal(t, 3, n.Stats().Will)
}

func TestNegotiator_OppositeVerbReopensOption(t *testing.T) {
	n, w := newTestNegotiator(Config{})

	n.HandleWill(ECHO)
	n.HandleWont(ECHO)
	n.HandleWill(ECHO)

	require.Equal(t, [][]byte{
		{IAC, DO, ECHO},
		{IAC, DONT, ECHO},
		{IAC, DO, ECHO},
	}, w.frames)
}

func TestNegotiator_DontAlwaysAcknowledged(t *testing.T) {
	n, w := newTestNegotiator(Config{})

	n.HandleDont(49)
	n.HandleDont(ECHO)

	require.Equal(t, [][]byte{
		{IAC, WONT, 49},
		{IAC, WONT, ECHO},
	}, w.frames)
	require.Equal(t, 2, n.Stats().Dont)
}

func TestNegotiator_DontMXPFiresDisable(t *testing.T) {
	n, _ := newTestNegotiator(Config{UseMXP: MXPOnNegotiated})

	disabled := false
	n.OnMXPDisable = func() { disabled = true }

	n.HandleDont(MXP)
	require.True(t, disabled)
}

func TestNegotiator_MXPActivation(t *testing.T) {
	t.Run("query policy activates at negotiation", func(t *testing.T) {
		n, _ := newTestNegotiator(Config{UseMXP: MXPOnQuery})
		enabled := false
		n.OnMXPEnable = func() { enabled = true }

		n.HandleWill(MXP)
		require.True(t, enabled)
	})

	t.Run("negotiated policy waits for the subnegotiation", func(t *testing.T) {
		n, _ := newTestNegotiator(Config{UseMXP: MXPOnNegotiated})
		enabled := false
		n.OnMXPEnable = func() { enabled = true }

		n.HandleWill(MXP)
		require.False(t, enabled)

		n.HandleSubnegotiation(MXP, nil)
		require.True(t, enabled)
	})
}

func TestNegotiator_Override(t *testing.T) {
	n, w := newTestNegotiator(Config{})
	n.NegotiateOverride = func(verb byte, option byte) Decision {
		switch option {
		case 70:
			return DecideAccept
		case SUPPRESS_GO_AHEAD:
			return DecideRefuse
		}
		return DecideDefault
	}

	n.HandleWill(70)
	n.HandleDo(70)
	n.HandleWill(SUPPRESS_GO_AHEAD)
	n.HandleWill(ECHO) // default policy still applies

	require.Equal(t, [][]byte{
		{IAC, DO, 70},
		{IAC, WILL, 70},
		{IAC, DONT, SUPPRESS_GO_AHEAD},
		{IAC, DO, ECHO},
	}, w.frames)
}

func TestNegotiator_ResetClearsState(t *testing.T) {
	n, w := newTestNegotiator(Config{})

	n.HandleWill(ECHO)
	n.HandleWill(COMPRESS2)
	require.True(t, n.NoEcho())
	require.True(t, n.SupportsMCCP2())

	n.Reset()

	require.False(t, n.NoEcho())
	require.False(t, n.SupportsMCCP2())
	require.Equal(t, Stats{}, n.Stats())

	// Cleared bitsets mean the same reply goes out again.
	w.frames = nil
	n.HandleWill(ECHO)
	require.Equal(t, [][]byte{{IAC, DO, ECHO}}, w.frames)
}

func TestNegotiator_OnReplyObservesVerbs(t *testing.T) {
	n, _ := newTestNegotiator(Config{})

	type sent struct{ verb, option byte }
	var replies []sent
	n.OnReply = func(verb, option byte) {
		replies = append(replies, sent{verb, option})
	}

	n.HandleWill(ECHO)
	n.HandleWill(ECHO) // suppressed, no reply event

	require.Equal(t, []sent{{DO, ECHO}}, replies)
}

func TestNegotiator_NilWriterDiscards(t *testing.T) {
	n := NewNegotiator(Config{}, nil)

	// Must not panic; replay tooling runs without a connection.
	n.HandleWill(ECHO)
	n.HandleDo(TERMINAL_TYPE)
	require.True(t, n.NoEcho())
}

func TestOptionName(t *testing.T) {
	require.Equal(t, "MXP", OptionName(MXP))
	require.Equal(t, "COMPRESS2", OptionName(COMPRESS2))
	require.Equal(t, "47", OptionName(47))
}

func TestCommandName(t *testing.T) {
	require.Equal(t, "IAC", CommandName(IAC))
	require.Equal(t, "SE", CommandName(SE))
	require.Equal(t, "3", CommandName(3))
}
