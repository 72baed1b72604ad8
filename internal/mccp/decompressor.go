// Package mccp implements the MUD Client Compression Protocol: a telnet
// option that switches the server-to-client stream to zlib-compressed data
// mid-session. The Decompressor sits in front of all other parsing as a pure
// byte-stream transform; everything downstream sees plain bytes.
package mccp

import (
	"compress/zlib"
	"errors"
	"io"
	"sync"

	"mudstream/internal/log"
)

// Working buffer for draining the inflater, sized like the classic client's
// compression buffer.
const workingBufferSize = 20000

// MCCP protocol versions. They differ only in how activation is signalled
// on the wire; the compressed stream is identical.
const (
	Version1 = 1
	Version2 = 2
)

var errStreamEnded = errors.New("mccp: compressed stream ended")

// Stats reports compression totals for diagnostics.
type Stats struct {
	CompressedIn    int64
	DecompressedOut int64
	Active          bool
	Version         int
}

// Ratio is the expansion factor achieved so far.
func (s Stats) Ratio() float64 {
	if s.CompressedIn == 0 {
		return 1
	}
	return float64(s.DecompressedOut) / float64(s.CompressedIn)
}

// Decompressor converts the incoming byte stream once MCCP is active.
// Before activation, and after the server ends the stream or the stream
// corrupts, Feed passes bytes through untouched.
//
// The standard library inflater is pull-based, so the Decompressor runs it
// in an internal goroutine against a pipe and hands it bytes as they
// arrive. Feed is synchronous: it returns only after the inflater has
// consumed the chunk and gone back to waiting, so every byte decodable
// from the input so far (that is, up to the server's last flush point) is
// in the returned slice.
type Decompressor struct {
	mu   sync.Mutex
	cond *sync.Cond

	active  bool
	version int
	pw      *io.PipeWriter

	idle  bool   // pump is blocked waiting for input
	reads uint64 // completed pump reads, for the Feed barrier
	out   []byte // decompressed output not yet collected
	err   error  // sticky corruption diagnostic
	done  bool   // pump exited
	ended bool   // orderly zlib stream end (server turned compression off)

	compressedIn    int64
	decompressedOut int64
}

// NewDecompressor returns an inactive decompressor.
func NewDecompressor() *Decompressor {
	d := &Decompressor{}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Activate starts decompressing everything subsequently fed. The version
// only matters for diagnostics. Activating an active decompressor is a
// no-op.
func (d *Decompressor) Activate(version int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active {
		return
	}

	pr, pw := io.Pipe()
	d.active = true
	d.version = version
	d.pw = pw
	d.idle = false
	d.reads = 0
	d.out = nil
	d.err = nil
	d.done = false
	d.ended = false

	go d.pump(pr)
	log.Info("Compression started", "version", version)
}

// Active reports whether bytes are currently being decompressed.
func (d *Decompressor) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Err returns the corruption diagnostic if the stream failed, nil otherwise.
func (d *Decompressor) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Stats returns the byte counters.
func (d *Decompressor) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		CompressedIn:    d.compressedIn,
		DecompressedOut: d.decompressedOut,
		Active:          d.active,
		Version:         d.version,
	}
}

// Feed pushes received bytes through the decompressor and returns the bytes
// the rest of the pipeline should see. While inactive this is the input
// itself. On an orderly stream end the remaining input is returned
// uncompressed and the decompressor deactivates; on corruption it
// deactivates, keeps whatever decompressed successfully, and passes the
// rest through.
func (d *Decompressor) Feed(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}

	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return data
	}
	start := d.reads
	pw := d.pw
	d.mu.Unlock()

	n, werr := pw.Write(data)

	d.mu.Lock()
	d.compressedIn += int64(n)
	if werr == nil {
		// Wait for the inflater to consume the chunk and come back for
		// more; at that point d.out holds all decodable output.
		for !d.done && !(d.idle && d.reads > start) {
			d.cond.Wait()
		}
	} else {
		// A failed write means the pump is on its way out; wait so its
		// final output and verdict are visible.
		for !d.done {
			d.cond.Wait()
		}
	}
	out := d.out
	d.out = nil
	done := d.done
	ended := d.ended
	err := d.err
	d.mu.Unlock()

	if done {
		switch {
		case err != nil:
			log.Error("Decompression failed, treating stream as uncompressed",
				"error", err)
		case ended:
			log.Info("Compression ended by server")
		}
		d.deactivate(err)
		out = append(out, data[n:]...)
	}
	return out
}

// Reset tears down any active decompression and clears the diagnostics, for
// a fresh connection.
func (d *Decompressor) Reset() {
	d.mu.Lock()
	if d.active && !d.done {
		// Unblock the pump; it will exit through its error path.
		d.pw.CloseWithError(io.ErrClosedPipe)
		for !d.done {
			d.cond.Wait()
		}
	}
	d.mu.Unlock()

	d.deactivate(nil)

	d.mu.Lock()
	d.err = nil
	d.compressedIn = 0
	d.decompressedOut = 0
	d.mu.Unlock()
}

// deactivate returns to passthrough, keeping err as the sticky diagnostic.
func (d *Decompressor) deactivate(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pw != nil {
		d.pw.CloseWithError(io.ErrClosedPipe)
		d.pw = nil
	}
	d.active = false
	d.version = 0
	d.out = nil
	d.err = err
	d.idle = false
	d.done = false
	d.ended = false
}

// pump runs the inflater, collecting output until the stream ends or
// breaks. Closing the read side releases a Feed blocked in Write.
func (d *Decompressor) pump(pr *io.PipeReader) {
	src := &pumpReader{d: d, pr: pr}
	buf := make([]byte, workingBufferSize)

	zr, err := zlib.NewReader(src)
	if err != nil {
		d.pumpDone(pr, err, false)
		return
	}
	defer zr.Close()

	for {
		n, err := zr.Read(buf)
		if n > 0 {
			d.mu.Lock()
			d.out = append(d.out, buf[:n]...)
			d.decompressedOut += int64(n)
			d.mu.Unlock()
		}
		if err == io.EOF {
			d.pumpDone(pr, nil, true)
			return
		}
		if err != nil {
			d.pumpDone(pr, err, false)
			return
		}
	}
}

func (d *Decompressor) pumpDone(pr *io.PipeReader, err error, ended bool) {
	if err != nil {
		pr.CloseWithError(err)
	} else {
		pr.CloseWithError(errStreamEnded)
	}

	d.mu.Lock()
	d.err = err
	d.ended = ended
	d.done = true
	d.cond.Broadcast()
	d.mu.Unlock()
}

// pumpReader feeds the inflater from the pipe and maintains the idle flag
// and read counter the Feed barrier relies on. Implementing io.ByteReader
// keeps the inflater from buffering ahead, so an orderly stream end leaves
// trailing uncompressed bytes exactly where Feed can recover them.
type pumpReader struct {
	d   *Decompressor
	pr  *io.PipeReader
	one [1]byte
}

func (r *pumpReader) Read(p []byte) (int, error) {
	d := r.d
	d.mu.Lock()
	d.idle = true
	d.cond.Broadcast()
	d.mu.Unlock()

	n, err := r.pr.Read(p)

	d.mu.Lock()
	d.idle = false
	d.reads++
	d.mu.Unlock()
	return n, err
}

func (r *pumpReader) ReadByte() (byte, error) {
	_, err := r.Read(r.one[:])
	return r.one[0], err
}
