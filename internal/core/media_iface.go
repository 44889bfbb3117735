package core

import (
	"context"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// MediaSession wraps one real-time transport connection.
// Owned exclusively by one coordinator for the duration of one call attempt;
// it must be released before a new one is created.
type MediaSession interface {
	// Connect dials the transport and blocks until the session is established
	// or ctx/timeout fires. Lifecycle events are still delivered through the
	// callbacks below.
	Connect(ctx context.Context, url, token string) error
	// Close releases the transport and all attached media resources. Idempotent.
	// No events are delivered after Close returns.
	Close()
	// SetLocalAudioEnabled toggles the microphone publish flag.
	SetLocalAudioEnabled(enabled bool) error

	OnConnected(func())
	OnDisconnected(func())
	OnReconnecting(func())
	OnReconnected(func())
	// OnRemoteTrack sets a callback that will be invoked when a remote track
	// arrives. ctx is canceled when the session closes.
	OnRemoteTrack(func(ctx context.Context, track *webrtc.TrackRemote))
}

// MediaDialer creates a fresh MediaSession per call attempt.
type MediaDialer interface {
	NewSession(room, participant string) (MediaSession, error)
}

// AudioSink is the audio output a remote track gets attached to.
// An attachment is a scoped resource: exactly one per track, released on
// every disconnect path.
type AudioSink interface {
	WriteRTP(pkt *rtp.Packet) error
	Close() error
}
