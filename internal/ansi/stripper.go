package ansi

import (
	"strings"
)

// StreamingStripper removes ANSI escape sequences from streaming server
// output. It keeps state across chunks so a sequence split over two socket
// reads still disappears cleanly.
type StreamingStripper struct {
	state int // 0=normal, 1=saw ESC, 2=in CSI sequence
}

// NewStreamingStripper creates a new streaming ANSI stripper.
func NewStreamingStripper() *StreamingStripper {
	return &StreamingStripper{}
}

// StripChunk processes a chunk and returns it with escape sequences removed.
// A lone ESC is dropped; the byte after it is kept unless it opened a CSI
// sequence, mirroring how the protocol engine treats a stray ESC.
func (s *StreamingStripper) StripChunk(chunk string) string {
	var result strings.Builder

	for _, char := range chunk {
		switch s.state {
		case 0:
			if char == '\x1b' {
				s.state = 1
			} else {
				result.WriteRune(char)
			}

		case 1:
			if char == '[' {
				s.state = 2
			} else {
				result.WriteRune(char)
				s.state = 0
			}

		case 2:
			// Any final byte ends a CSI sequence; parameters and
			// intermediates keep accumulating silently.
			if char >= '@' && char <= '~' {
				s.state = 0
			}
		}
	}

	return result.String()
}

// Reset clears the stripper state for a new connection.
func (s *StreamingStripper) Reset() {
	s.state = 0
}

// StripString strips ANSI sequences from a complete string.
func StripString(chunk string) string {
	stripper := NewStreamingStripper()
	return stripper.StripChunk(chunk)
}
