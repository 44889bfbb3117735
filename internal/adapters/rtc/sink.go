package rtc

import (
	"io"
	"sync"

	"github.com/pion/rtp"
	"github.com/pkg/errors"
)

var errSinkClosed = errors.New("sink closed")

// WriterSink writes remote track payloads to an io.Writer, typically a
// playback pipe. Implements core.AudioSink.
type WriterSink struct {
	mu     sync.Mutex
	w      io.Writer
	closed bool
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) WriteRTP(pkt *rtp.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSinkClosed
	}
	_, err := s.w.Write(pkt.Payload)
	return err
}

func (s *WriterSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// DiscardSink drops remote audio. Used when no playback target exists.
type DiscardSink struct{}

func (DiscardSink) WriteRTP(*rtp.Packet) error { return nil }
func (DiscardSink) Close() error               { return nil }
