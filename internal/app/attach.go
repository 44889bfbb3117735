package app

import (
	"context"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/nexus-ai/callmate/internal/core"
)

// trackAttachment pumps one remote track into the audio sink. It is a scoped
// resource: started once per track, released on every disconnect path.
type trackAttachment struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func newTrackAttachment(ctx context.Context, track *webrtc.TrackRemote, sink core.AudioSink, logger zerolog.Logger) *trackAttachment {
	ctx, cancel := context.WithCancel(ctx)
	a := &trackAttachment{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go a.pump(ctx, track, sink, logger)
	return a
}

// pump reads RTP from the remote track and forwards it to the sink until the
// attachment is released or the track errors out (handle closed).
func (a *trackAttachment) pump(ctx context.Context, track *webrtc.TrackRemote, sink core.AudioSink, logger zerolog.Logger) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("attachment ctx done")
			return
		default:
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if ctx.Err() == nil {
				logger.Info().Err(err).Msg("attachment read RTP ended")
			}
			return
		}
		if err := sink.WriteRTP(pkt); err != nil {
			logger.Error().Err(err).Msg("attachment sink write error")
			return
		}
	}
}

// release cancels the pump. It does not wait: the read unblocks when the
// media handle closes and the goroutine drains on its own.
func (a *trackAttachment) release() {
	a.cancel()
}
