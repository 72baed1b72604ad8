package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"mudstream/internal/log"
	"mudstream/internal/streaming"
	"mudstream/internal/telnet"
	"mudstream/internal/text"
)

// chunk is one direction-tagged line from a capture file: "in" arrived
// from the server, "out" was written to it.
type chunk struct {
	dir  string
	data []byte
	line int // 1-based line number in the capture
}

func main() {
	var (
		rawFile   = flag.String("raw", "raw.log", "capture file to replay")
		startLine = flag.Int("start-line", 1, "first capture line to replay (1-based)")
		endLine   = flag.Int("end-line", -1, "last capture line to replay, -1 for end of file")
		showStats = flag.Bool("stats", false, "print pipeline diagnostics after the replay")
	)
	flag.Parse()

	// Replay output goes to stdout; keep routine logging out of it.
	log.SetLevel(slog.LevelWarn)

	chunks, err := parseCapture(*rawFile, *startLine, *endLine)
	if err != nil {
		fmt.Printf("Error reading capture: %v\n", err)
		os.Exit(1)
	}

	opts := streaming.DefaultOptions()
	// Query mode turns markup on at the WILL, so captures recorded under
	// either activation policy replay with their tags interpreted.
	opts.UseMXP = telnet.MXPOnQuery

	// A nil writer drops negotiation replies: nobody is listening.
	p := streaming.New(opts, nil)
	p.Bus().Subscribe(streaming.EventLineCompleted, func(ev streaming.Event) {
		fmt.Println(ev.Data.(*text.Line).String())
	})

	fed := 0
	for _, c := range chunks {
		if c.dir != "in" {
			continue
		}
		p.Feed(c.data)
		fed++
	}
	if cur := p.Current().String(); cur != "" {
		fmt.Println(cur)
	}

	if *showStats {
		printStats(fed, p.Stats())
	}
}

func parseCapture(filename string, startLine, endLine int) ([]chunk, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var chunks []chunk
	scanner := bufio.NewScanner(file)
	// A single network read can be tens of kilobytes once escaped.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo < startLine {
			continue
		}
		if endLine != -1 && lineNo > endLine {
			break
		}

		dir, escaped, ok := strings.Cut(scanner.Text(), " ")
		if !ok || (dir != "in" && dir != "out") {
			continue
		}
		// The capture stores each chunk %q-escaped minus the outer
		// quotes; putting them back makes it a Go string literal again.
		data, err := strconv.Unquote(`"` + escaped + `"`)
		if err != nil {
			fmt.Printf("Skipping unparseable capture line %d: %v\n", lineNo, err)
			continue
		}
		chunks = append(chunks, chunk{dir: dir, data: []byte(data), line: lineNo})
	}

	return chunks, scanner.Err()
}

func printStats(fed int, s streaming.PipelineStats) {
	fmt.Println("--- replay diagnostics ---")
	fmt.Printf("chunks fed:   %d (%d bytes)\n", fed, s.BytesIn)
	fmt.Printf("lines:        %d hard, %d wrapped, %d prompts\n",
		s.Assembler.NewlinesReceived, s.Assembler.WrappedLines, s.Machine.Prompts)
	fmt.Printf("negotiation:  WILL %d WONT %d DO %d DONT %d\n",
		s.Negotiation.Will, s.Negotiation.Wont, s.Negotiation.Do, s.Negotiation.Dont)
	fmt.Printf("markup:       %d tags, %d entities, %d errors\n",
		s.Markup.Tags, s.Markup.Entities, s.MarkupErrors)
	fmt.Printf("stream:       %d utf8 errors, %d oversized blocks\n",
		s.Machine.UTF8Errors, s.Machine.Overflows)
	if s.Compression.CompressedIn > 0 {
		fmt.Printf("compression:  v%d, %d -> %d bytes (x%.2f)\n",
			s.Compression.Version, s.Compression.CompressedIn,
			s.Compression.DecompressedOut, s.Compression.Ratio())
	}
}
