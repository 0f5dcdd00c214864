package frameloop

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/mirrorfit/internal/pose"
)

const maxReplayLine = 1 << 20

// ReplaySource reads recorded pose-estimator output, one JSON frame per
// line. Blank lines are skipped; a malformed line is reported as an error
// for that tick and replay continues with the next line. A read failure
// (including a line longer than maxReplayLine) is reported once, after
// which the source is exhausted.
type ReplaySource struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
	done    bool
}

// NewReplaySource reads frames from r.
func NewReplaySource(r io.Reader) *ReplaySource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxReplayLine)
	rs := &ReplaySource{scanner: scanner}
	if c, ok := r.(io.Closer); ok {
		rs.closer = c
	}
	return rs
}

// OpenReplayFile opens a JSON-lines recording.
func OpenReplayFile(path string) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay file: %w", err)
	}
	return NewReplaySource(f), nil
}

// NextFrame returns the next recorded frame.
func (s *ReplaySource) NextFrame(ctx context.Context) (pose.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.done {
		return nil, io.EOF
	}
	for s.scanner.Scan() {
		s.line++
		data := bytes.TrimSpace(s.scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		frame, err := pose.DecodeFrame(data)
		if err != nil {
			return nil, fmt.Errorf("replay line %d: %w", s.line, err)
		}
		return frame, nil
	}
	s.done = true
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read replay after line %d: %w", s.line, err)
	}
	return nil, io.EOF
}

// Close releases the underlying file, if any.
func (s *ReplaySource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
