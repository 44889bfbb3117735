package rtc

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/nexus-ai/callmate/internal/config"
	"github.com/nexus-ai/callmate/internal/core"
)

var (
	ErrSessionClosed  = errors.New("media session closed")
	ErrConnectTimeout = errors.New("transport connect timed out")
)

// Dialer creates one Session per call attempt.
type Dialer struct {
	WebRTC         webrtc.Configuration
	ConnectTimeout time.Duration
	// NewSource supplies the local audio frames for each session.
	// Nil means a silence source (no capture backend wired).
	NewSource func() LocalAudioSource
}

func NewDialer(cfg *config.Config) *Dialer {
	return &Dialer{
		WebRTC: webrtc.Configuration{
			ICEServers: []webrtc.ICEServer{{URLs: []string{cfg.StunURL}}},
		},
		ConnectTimeout: cfg.ConnectTimeout,
	}
}

func (d *Dialer) NewSession(room, participant string) (core.MediaSession, error) {
	pc, err := webrtc.NewPeerConnection(d.WebRTC)
	if err != nil {
		return nil, errors.Wrap(err, "new peer connection")
	}

	source := LocalAudioSource(nil)
	if d.NewSource != nil {
		source = d.NewSource()
	}
	if source == nil {
		source = NewSilenceSource(20 * time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		room:        room,
		participant: participant,
		pc:          pc,
		source:      source,
		timeout:     d.ConnectTimeout,
		ctx:         ctx,
		cancel:      cancel,
		connected:   make(chan struct{}),
	}
	return s, nil
}

// Session implements core.MediaSession over a pion PeerConnection with
// websocket signaling to the transport URL.
type Session struct {
	room        string
	participant string
	pc          *webrtc.PeerConnection
	source      LocalAudioSource
	timeout     time.Duration

	mu    sync.Mutex
	sig   *signalConn
	track *webrtc.TrackLocalStaticSample

	micEnabled atomic.Bool
	closed     atomic.Bool
	closeOnce  sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	// evMu serializes lifecycle event dispatch so events apply in the order
	// the transport produced them.
	evMu           sync.Mutex
	connectedOnce  bool
	connected      chan struct{}
	onConnected    func()
	onDisconnected func()
	onReconnecting func()
	onReconnected  func()
	onRemoteTrack  func(ctx context.Context, track *webrtc.TrackRemote)
}

func (s *Session) OnConnected(fn func())    { s.evMu.Lock(); s.onConnected = fn; s.evMu.Unlock() }
func (s *Session) OnDisconnected(fn func()) { s.evMu.Lock(); s.onDisconnected = fn; s.evMu.Unlock() }
func (s *Session) OnReconnecting(fn func()) { s.evMu.Lock(); s.onReconnecting = fn; s.evMu.Unlock() }
func (s *Session) OnReconnected(fn func())  { s.evMu.Lock(); s.onReconnected = fn; s.evMu.Unlock() }

func (s *Session) OnRemoteTrack(fn func(ctx context.Context, track *webrtc.TrackRemote)) {
	s.evMu.Lock()
	s.onRemoteTrack = fn
	s.evMu.Unlock()
}

// Connect dials the signaling endpoint, publishes the local audio track and
// blocks until the peer connection is established or the timeout fires.
// Callbacks must be registered before Connect.
func (s *Session) Connect(ctx context.Context, rawURL, token string) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrap(err, "parse transport url")
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return errors.Wrap(err, "dial transport")
	}
	sig := newSignalConn(ws)
	s.mu.Lock()
	s.sig = sig
	s.mu.Unlock()
	go sig.writePump(s.ctx)
	go sig.readPump(s.ctx, s.handleSignal)

	s.bindPeerHandlers()

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", s.participant,
	)
	if err != nil {
		return errors.Wrap(err, "new local track")
	}
	if _, err := s.pc.AddTrack(track); err != nil {
		return errors.Wrap(err, "add local track")
	}
	s.mu.Lock()
	s.track = track
	s.mu.Unlock()
	go s.publishLoop()

	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return errors.Wrap(err, "create offer")
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return errors.Wrap(err, "set local description")
	}
	if err := sig.TrySend(envelope{Type: "offer", SDP: offer.SDP}); err != nil {
		return errors.Wrap(err, "send offer")
	}

	timeout := s.timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	select {
	case <-s.connected:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return ErrSessionClosed
	case <-time.After(timeout):
		return ErrConnectTimeout
	}
}

func (s *Session) bindPeerHandlers() {
	s.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		init := cand.ToJSON()
		s.mu.Lock()
		sig := s.sig
		s.mu.Unlock()
		if sig != nil {
			_ = sig.TrySend(envelope{Type: "candidate", Candidate: &init})
		}
	})

	s.pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("room", s.room).Str("peer_connection_state", st.String()).Msg("peer state")
		switch st {
		case webrtc.PeerConnectionStateConnected:
			s.dispatchConnected()
		case webrtc.PeerConnectionStateDisconnected:
			s.dispatch(func() func() { return s.onReconnecting })
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			s.dispatch(func() func() { return s.onDisconnected })
		}
	})

	s.pc.OnICEConnectionStateChange(func(st webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("room", s.room).Str("ice_state", st.String()).Msg("ICE state")
	})

	s.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("room", s.room).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("remote track")
		if s.closed.Load() {
			return
		}
		s.evMu.Lock()
		fn := s.onRemoteTrack
		s.evMu.Unlock()
		if fn != nil {
			fn(s.ctx, track)
		}
	})
}

// dispatchConnected maps the first connected transition to "connected" and
// every later one to "reconnected".
func (s *Session) dispatchConnected() {
	if s.closed.Load() {
		return
	}
	s.evMu.Lock()
	defer s.evMu.Unlock()
	if !s.connectedOnce {
		s.connectedOnce = true
		close(s.connected)
		if s.onConnected != nil {
			s.onConnected()
		}
		return
	}
	if s.onReconnected != nil {
		s.onReconnected()
	}
}

func (s *Session) dispatch(pick func() func()) {
	if s.closed.Load() {
		return
	}
	s.evMu.Lock()
	defer s.evMu.Unlock()
	if fn := pick(); fn != nil {
		fn()
	}
}

func (s *Session) handleSignal(env envelope) {
	switch env.Type {
	case "answer":
		if err := s.pc.SetRemoteDescription(webrtc.SessionDescription{
			Type: webrtc.SDPTypeAnswer,
			SDP:  env.SDP,
		}); err != nil {
			log.Error().Err(err).Str("module", "rtc").Str("room", s.room).Msg("apply answer")
		}
	case "candidate":
		if env.Candidate == nil {
			return
		}
		if err := s.pc.AddICECandidate(*env.Candidate); err != nil {
			log.Error().Err(err).Str("module", "rtc").Str("room", s.room).Msg("add candidate")
		}
	case "bye":
		s.dispatch(func() func() { return s.onDisconnected })
	default:
		log.Warn().Str("module", "rtc").Str("type", env.Type).Msg("unknown signal")
	}
}

// publishLoop feeds local audio into the publish track. Muted sessions keep
// reading to preserve the capture cadence but drop the frames.
func (s *Session) publishLoop() {
	defer func() { _ = s.source.Close() }()
	for {
		sample, err := s.source.ReadSample(s.ctx)
		if err != nil {
			if s.ctx.Err() == nil {
				log.Error().Err(err).Str("module", "rtc").Str("room", s.room).Msg("audio source read")
			}
			return
		}
		if !s.micEnabled.Load() {
			continue
		}
		s.mu.Lock()
		track := s.track
		s.mu.Unlock()
		if track == nil {
			continue
		}
		if err := track.WriteSample(sample); err != nil {
			if s.ctx.Err() == nil {
				log.Error().Err(err).Str("module", "rtc").Str("room", s.room).Msg("write sample")
			}
			return
		}
	}
}

func (s *Session) SetLocalAudioEnabled(enabled bool) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	s.micEnabled.Store(enabled)
	log.Info().Str("module", "rtc").Str("room", s.room).Bool("enabled", enabled).Msg("local audio")
	return nil
}

// Close releases the peer connection and signaling socket. Idempotent; no
// lifecycle events are dispatched after it returns.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		s.mu.Lock()
		sig := s.sig
		s.mu.Unlock()
		if sig != nil {
			_ = sig.TrySend(envelope{Type: "bye"})
			sig.Close()
		}
		if err := s.pc.Close(); err != nil {
			log.Error().Err(err).Str("module", "rtc").Str("room", s.room).Msg("close error")
		} else {
			log.Info().Str("module", "rtc").Str("room", s.room).Msg("closed")
		}
	})
}
