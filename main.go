package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"

	"mudstream/internal/log"
	"mudstream/internal/streaming"
	"mudstream/internal/telnet"
	"mudstream/internal/text"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Global panic handler: crashes land in the log file, not on top of
	// whatever the server was printing.
	defer func() {
		if r := recover(); r != nil {
			log.Error("GLOBAL PANIC recovered", "error", r, "stack", string(debug.Stack()))
			fmt.Fprintf(os.Stderr, "Application crashed. See the debug log for details.\n")
			os.Exit(1)
		}
	}()

	var (
		host    = flag.String("host", "", "server host to connect to")
		port    = flag.Int("port", 23, "server port")
		logFile = flag.String("log", "mudstream_debug.log", "debug log file")
		rawFile = flag.String("raw", "", "append a replayable capture of both directions to this file")
		useUTF8 = flag.Bool("utf8", true, "treat the stream as UTF-8")
		charset = flag.String("charset", "ISO-8859-1", "single-byte charset used when -utf8=false")
		wrap    = flag.Int("wrap", 80, "wrap column, 0 to disable wrapping")
		term    = flag.String("term", "mushclient", "terminal type reported to the server")
		mxpMode = flag.String("mxp", "negotiated", "markup activation: never, query or negotiated")
	)
	flag.Parse()

	if *host == "" {
		fmt.Fprintln(os.Stderr, "usage: mudstream -host <server> [-port 23]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := log.SetFileOutput(*logFile); err != nil {
		fmt.Printf("Warning: Could not configure debug logging to file: %v\n", err)
	}

	policy, err := mxpPolicy(*mxpMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	opts := streaming.DefaultOptions()
	opts.TerminalType = *term
	opts.ClientVersion = version
	opts.UTF8 = *useUTF8
	opts.Charset = *charset
	opts.WrapColumn = *wrap
	opts.UseMXP = policy
	if *wrap > 0 {
		// Report the wrap column as the window width so the server
		// formats to the same measure we break at.
		opts.Width = *wrap
	}
	if *rawFile != "" {
		log.SetRawOutput(*rawFile)
		opts.RawCapture = true
	}

	addr := net.JoinHostPort(*host, strconv.Itoa(*port))

	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Printf("mudstream %s (%s, built %s)\n", version, commit, date)
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect %s: %v\n", addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	p := streaming.New(opts, func(b []byte) error {
		_, err := conn.Write(b)
		return err
	})
	p.Bus().Subscribe(streaming.EventLineCompleted, func(ev streaming.Event) {
		fmt.Println(ev.Data.(*text.Line).String())
	})
	p.Note("Connected to " + addr)

	// Ctrl-C closes the connection; the read loop then falls through to
	// the diagnostics.
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signalChan
		log.Info("Signal received, closing connection", "signal", sig.String())
		conn.Close()
	}()

	go relayInput(conn)

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			p.Feed(buf[:n])
		}
		if err != nil {
			if err != io.EOF {
				log.Info("Connection closed", "error", err)
			}
			break
		}
	}

	if cur := p.Current().String(); cur != "" {
		fmt.Println(cur)
	}
	logStats(p.Stats())
}

func mxpPolicy(name string) (telnet.MXPPolicy, error) {
	switch strings.ToLower(name) {
	case "never":
		return telnet.MXPNever, nil
	case "query":
		return telnet.MXPOnQuery, nil
	case "negotiated":
		return telnet.MXPOnNegotiated, nil
	}
	return 0, fmt.Errorf("unknown -mxp mode %q (want never, query or negotiated)", name)
}

// relayInput forwards stdin lines to the server. On stdin EOF the write
// side closes so the server can finish sending before the socket drops.
func relayInput(conn net.Conn) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if _, err := conn.Write(clientLine(scanner.Bytes())); err != nil {
			log.Error("Send failed", "error", err)
			return
		}
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.CloseWrite()
	}
}

// clientLine builds the wire form of one command: IAC bytes doubled so
// they survive telnet, CRLF terminated.
func clientLine(line []byte) []byte {
	out := make([]byte, 0, len(line)+2)
	for _, b := range line {
		out = append(out, b)
		if b == telnet.IAC {
			out = append(out, telnet.IAC)
		}
	}
	return append(out, '\r', '\n')
}

func logStats(s streaming.PipelineStats) {
	log.Info("Session ended",
		"bytesIn", s.BytesIn,
		"lines", s.Assembler.NewlinesReceived,
		"wrapped", s.Assembler.WrappedLines,
		"prompts", s.Machine.Prompts,
		"utf8Errors", s.Machine.UTF8Errors,
		"markupTags", s.Markup.Tags,
		"markupErrors", s.MarkupErrors,
		"negotiations", s.Negotiation.Will+s.Negotiation.Wont+s.Negotiation.Do+s.Negotiation.Dont)
	if s.Compression.CompressedIn > 0 {
		log.Info("Compression totals",
			"version", s.Compression.Version,
			"in", s.Compression.CompressedIn,
			"out", s.Compression.DecompressedOut,
			"ratio", fmt.Sprintf("%.2f", s.Compression.Ratio()))
	}
}
