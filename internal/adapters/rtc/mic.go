package rtc

import (
	"context"
	"time"

	"github.com/pion/webrtc/v4/pkg/media"
)

// LocalAudioSource supplies encoded audio frames for the local publish track.
// Platform capture backends plug in through this seam.
type LocalAudioSource interface {
	ReadSample(ctx context.Context) (media.Sample, error)
	Close() error
}

// opusSilence is a minimal opus DTX frame.
var opusSilence = []byte{0xF8, 0xFF, 0xFE}

// SilenceSource emits silent opus frames at a fixed cadence. It stands in
// when no capture backend is wired, keeping the publish track alive.
type SilenceSource struct {
	frame time.Duration
}

func NewSilenceSource(frame time.Duration) *SilenceSource {
	if frame <= 0 {
		frame = 20 * time.Millisecond
	}
	return &SilenceSource{frame: frame}
}

func (s *SilenceSource) ReadSample(ctx context.Context) (media.Sample, error) {
	select {
	case <-ctx.Done():
		return media.Sample{}, ctx.Err()
	case <-time.After(s.frame):
		return media.Sample{Data: opusSilence, Duration: s.frame}, nil
	}
}

func (s *SilenceSource) Close() error { return nil }
