package mccp

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/stretchr/testify/require"
)

// compressFlushed compresses s and sync-flushes, the way MCCP servers make
// output visible without ending the stream.
func compressFlushed(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Flush())
	return buf.Bytes()
}

// compressClosed compresses s and ends the zlib stream, the way a server
// turns compression off mid-connection.
func compressClosed(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDecompressor_InactivePassthrough(t *testing.T) {
	d := NewDecompressor()

	in := []byte("plain text \xff\xfb\x56 with telnet bytes")
	require.Equal(t, in, d.Feed(in))
	require.False(t, d.Active())
}

func TestDecompressor_InflatesAfterActivation(t *testing.T) {
	d := NewDecompressor()
	d.Activate(Version2)
	require.True(t, d.Active())

	out := d.Feed(compressFlushed(t, "Hello World\r\n"))
	require.Equal(t, "Hello World\r\n", string(out))
	require.True(t, d.Active())
}

func TestDecompressor_ChunkedInputMatchesOneShot(t *testing.T) {
	payload := "The quick brown fox jumps over the lazy dog.\r\nA second line.\r\n"
	fixture := compressFlushed(t, payload)

	d := NewDecompressor()
	d.Activate(Version2)

	var got []byte
	for _, b := range fixture {
		got = append(got, d.Feed([]byte{b})...)
	}

	require.Equal(t, payload, string(got))
}

func TestDecompressor_MultipleFlushes(t *testing.T) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	for _, s := range []string{"first\r\n", "second\r\n", "third\r\n"} {
		_, err := zw.Write([]byte(s))
		require.NoError(t, err)
		require.NoError(t, zw.Flush())
	}

	d := NewDecompressor()
	d.Activate(Version1)

	out := d.Feed(buf.Bytes())
	require.Equal(t, "first\r\nsecond\r\nthird\r\n", string(out))
}

func TestDecompressor_OrderlyEndReturnsTrailingBytes(t *testing.T) {
	d := NewDecompressor()
	d.Activate(Version2)

	in := append(compressClosed(t, "compressed part\r\n"), []byte("plain prompt> ")...)
	out := d.Feed(in)

	require.Equal(t, "compressed part\r\nplain prompt> ", string(out))
	require.False(t, d.Active(), "stream end must deactivate compression")
	require.NoError(t, d.Err())

	// Everything afterwards passes straight through.
	require.Equal(t, []byte("more plain"), d.Feed([]byte("more plain")))
}

func TestDecompressor_CorruptionDisablesAndKeepsOutput(t *testing.T) {
	d := NewDecompressor()
	d.Activate(Version2)

	good := compressFlushed(t, "salvaged line\r\n")
	// A stored block whose length check cannot pass.
	bad := []byte{0x00, 0x01, 0x02, 0x03, 0xFF}

	out := d.Feed(append(good, bad...))

	require.True(t, bytes.HasPrefix(out, []byte("salvaged line\r\n")),
		"output decoded before the corruption must survive, got %q", out)
	require.False(t, d.Active())
	require.Error(t, d.Err())

	require.Equal(t, []byte("back to plain"), d.Feed([]byte("back to plain")))
}

func TestDecompressor_CorruptHeaderDisables(t *testing.T) {
	d := NewDecompressor()
	d.Activate(Version2)

	out := d.Feed([]byte{0x00, 0x00, 'r', 'e', 's', 't'})

	require.False(t, d.Active())
	require.Error(t, d.Err())
	require.Equal(t, "rest", string(out))
}

func TestDecompressor_Counters(t *testing.T) {
	payload := "counted payload that compresses reasonably well well well well\r\n"
	fixture := compressFlushed(t, payload)

	d := NewDecompressor()
	d.Activate(Version2)
	d.Feed(fixture)

	st := d.Stats()
	require.Equal(t, int64(len(fixture)), st.CompressedIn)
	require.Equal(t, int64(len(payload)), st.DecompressedOut)
	require.True(t, st.Active)
	require.Equal(t, Version2, st.Version)
	require.Greater(t, st.Ratio(), 0.0)
}

func TestDecompressor_ResetMidStream(t *testing.T) {
	d := NewDecompressor()
	d.Activate(Version2)

	// Feed a partial stream so the pump is mid-inflate, then reset.
	fixture := compressFlushed(t, "interrupted\r\n")
	d.Feed(fixture[:len(fixture)-3])

	d.Reset()

	require.False(t, d.Active())
	require.NoError(t, d.Err())
	require.Equal(t, Stats{}, d.Stats())
	require.Equal(t, []byte("plain"), d.Feed([]byte("plain")))
}

func TestDecompressor_ReactivationAfterReset(t *testing.T) {
	d := NewDecompressor()

	d.Activate(Version1)
	require.Equal(t, "one\r\n", string(d.Feed(compressFlushed(t, "one\r\n"))))
	d.Reset()

	d.Activate(Version2)
	require.Equal(t, "two\r\n", string(d.Feed(compressFlushed(t, "two\r\n"))))
	require.Equal(t, Version2, d.Stats().Version)
}

func TestDecompressor_ActivateWhileActiveIgnored(t *testing.T) {
	d := NewDecompressor()
	d.Activate(Version2)
	d.Activate(Version1)

	require.Equal(t, Version2, d.Stats().Version)

	out := d.Feed(compressFlushed(t, "still v2\r\n"))
	require.Equal(t, "still v2\r\n", string(out))
}

func TestDecompressor_EmptyFeed(t *testing.T) {
	d := NewDecompressor()
	require.Nil(t, d.Feed(nil))

	d.Activate(Version2)
	require.Nil(t, d.Feed([]byte{}))
}
