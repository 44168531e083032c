package station

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/aluedtke7/stick_trail_display/trail"
)

// Source keeps the newest telemetry frame received from the input acquisition
// process. Frames are newline delimited JSON objects in the trail.Input format.
type Source struct {
	mu       sync.Mutex
	latest   trail.Input
	received uint64
	bad      uint64
}

// maxFrameSize bounds one telemetry line, longer lines are counted as bad.
const maxFrameSize = 64 * 1024

// Run reads frames until r is exhausted. Malformed or oversized lines are
// counted and skipped.
func (s *Source) Run(r io.Reader) error {
	br := bufio.NewReader(r)
	var line []byte
	tooLong := false
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read telemetry: %w", err)
		}
		if !tooLong {
			if len(line)+len(chunk) > maxFrameSize {
				tooLong = true
			} else {
				line = append(line, chunk...)
			}
		}
		if isPrefix {
			continue
		}
		if tooLong {
			s.skip(fmt.Errorf("frame longer than %d bytes", maxFrameSize))
		} else {
			s.handle(line)
		}
		line = line[:0]
		tooLong = false
	}
}

func (s *Source) handle(line []byte) {
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}
	var in trail.Input
	if err := json.Unmarshal(line, &in); err != nil {
		s.skip(err)
		return
	}
	s.mu.Lock()
	s.latest = in
	s.received++
	s.mu.Unlock()
}

func (s *Source) skip(err error) {
	s.mu.Lock()
	s.bad++
	s.mu.Unlock()
	lg.Warnf("Skipping telemetry frame: %s", err)
}

// Latest returns the newest frame and whether any frame arrived yet.
func (s *Source) Latest() (trail.Input, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.received > 0
}

func (s *Source) Counts() (received, bad uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received, s.bad
}
