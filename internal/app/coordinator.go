// Package app owns the live-call session coordinator: the connection state
// machine, the poll lifecycle and the merged transcript/analysis view.
package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/nexus-ai/callmate/internal/core"
	"github.com/nexus-ai/callmate/internal/domain"
)

var (
	ErrCallInProgress   = errors.New("a call is already in progress")
	ErrCallEnded        = errors.New("call ended")
	ErrNotInCall        = errors.New("no live call")
	ErrTransportConnect = errors.New("transport connect failed")
)

// Config carries the coordinator knobs. Zero values fall back to the source
// behavior: 1.5s polling, 60-message window.
type Config struct {
	PollInterval time.Duration
	MessageLimit int
	// OnChange is invoked with a fresh snapshot after every observable change.
	OnChange func(Snapshot)
}

// Snapshot is the read-only view the control plane renders from.
type Snapshot struct {
	State      domain.ConnectionState   `json:"state"`
	RoomID     string                   `json:"room_id,omitempty"`
	Muted      bool                     `json:"muted"`
	LastError  string                   `json:"last_error,omitempty"`
	Transcript []domain.TranscriptEntry `json:"transcript"`
	Analysis   *domain.AnalysisSnapshot `json:"analysis,omitempty"`
}

// Coordinator owns exactly one live media session and one poller at a time.
// The connection state is a pure function of transport events and explicit
// user actions; poll results only supply transcript/analysis content.
type Coordinator struct {
	cfg      Config
	tokens   core.TokenProvider
	source   core.TranscriptSource
	recorder core.SessionRecorder
	dialer   core.MediaDialer
	sink     core.AudioSink

	mu         sync.Mutex
	gen        uint64 // bumped on every cleanup; guards late callbacks
	session    *domain.CallSession
	media      core.MediaSession
	poller     *Poller
	attach     *trackAttachment
	transcript []domain.TranscriptEntry
	analysis   *domain.AnalysisSnapshot
	lastErr    string
}

func NewCoordinator(cfg Config, tokens core.TokenProvider, source core.TranscriptSource, recorder core.SessionRecorder, dialer core.MediaDialer, sink core.AudioSink) *Coordinator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 1500 * time.Millisecond
	}
	if cfg.MessageLimit <= 0 {
		cfg.MessageLimit = 60
	}
	return &Coordinator{
		cfg:      cfg,
		tokens:   tokens,
		source:   source,
		recorder: recorder,
		dialer:   dialer,
		sink:     sink,
	}
}

// Start begins a new call attempt: generates room/participant identities,
// requests a token and connects the media session. Returns ErrCallInProgress
// while an attempt is already Connecting/Connected/Reconnecting; a terminal
// session is replaced by a fresh one.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.session != nil && !c.session.State.Terminal() {
		c.mu.Unlock()
		return ErrCallInProgress
	}
	session := &domain.CallSession{
		RoomID:        "room-" + uuid.NewString(),
		ParticipantID: "user-" + uuid.NewString(),
		State:         domain.StateConnecting,
	}
	c.session = session
	c.transcript = nil
	c.analysis = nil
	c.lastErr = ""
	gen := c.gen
	c.mu.Unlock()
	c.notify()

	log.Info().Str("module", "call").Str("room", session.RoomID).Msg("starting call")

	grant, err := c.tokens.Token(ctx, session.RoomID, session.ParticipantID)
	if err != nil {
		c.fail(gen, session, err)
		return err
	}

	media, err := c.dialer.NewSession(session.RoomID, session.ParticipantID)
	if err != nil {
		err = errors.Wrapf(ErrTransportConnect, "%v", err)
		c.fail(gen, session, err)
		return err
	}
	media.OnConnected(func() { c.transportConnected(gen) })
	media.OnReconnecting(func() { c.transportReconnecting(gen) })
	media.OnReconnected(func() { c.transportReconnected(gen) })
	media.OnDisconnected(func() { c.transportDisconnected(gen) })
	media.OnRemoteTrack(func(tctx context.Context, track *webrtc.TrackRemote) {
		c.remoteTrack(gen, tctx, track)
	})

	c.mu.Lock()
	if c.gen != gen || c.session != session || session.State != domain.StateConnecting {
		// Torn down while the token request was in flight.
		c.mu.Unlock()
		media.Close()
		return ErrCallEnded
	}
	c.media = media
	c.mu.Unlock()

	if err := media.Connect(ctx, grant.URL, grant.Token); err != nil {
		err = errors.Wrapf(ErrTransportConnect, "%v", err)
		c.fail(gen, session, err)
		return err
	}
	return nil
}

// fail moves a setup failure to the Error state and drops anything acquired
// so far. Late calls for an already finished attempt are ignored.
func (c *Coordinator) fail(gen uint64, session *domain.CallSession, cause error) {
	c.mu.Lock()
	if c.gen != gen || c.session != session || session.State.Terminal() {
		c.mu.Unlock()
		return
	}
	session.State = domain.StateError
	c.lastErr = cause.Error()
	poller := c.poller
	c.poller = nil
	attach := c.attach
	c.attach = nil
	media := c.media
	c.media = nil
	c.gen++
	c.mu.Unlock()

	if poller != nil {
		poller.Stop()
	}
	if media != nil {
		media.Close()
	}
	if attach != nil {
		attach.release()
	}
	log.Error().Err(cause).Str("module", "call").Str("room", session.RoomID).Msg("call setup failed")
	c.notify()
}

func (c *Coordinator) transportConnected(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.session == nil || c.session.State != domain.StateConnecting {
		c.mu.Unlock()
		return
	}
	session := c.session
	session.State = domain.StateConnected
	media := c.media
	room := session.RoomID
	muted := session.Muted
	p := NewPoller(c.source, room, c.cfg.PollInterval, c.cfg.MessageLimit, func(res TickResult) {
		c.applyPoll(gen, room, res)
	})
	c.poller = p
	c.mu.Unlock()

	if media != nil {
		if err := media.SetLocalAudioEnabled(!muted); err != nil {
			log.Warn().Err(err).Str("module", "call").Str("room", room).Msg("enable microphone")
		}
	}
	p.Start()
	log.Info().Str("module", "call").Str("room", room).Msg("connected, polling started")
	c.notify()
}

func (c *Coordinator) transportReconnecting(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.session == nil || c.session.State != domain.StateConnected {
		c.mu.Unlock()
		return
	}
	// Poller keeps running best-effort while the transport recovers.
	c.session.State = domain.StateReconnecting
	room := c.session.RoomID
	c.mu.Unlock()
	log.Warn().Str("module", "call").Str("room", room).Msg("transport reconnecting")
	c.notify()
}

func (c *Coordinator) transportReconnected(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.session == nil || c.session.State != domain.StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.session.State = domain.StateConnected
	room := c.session.RoomID
	c.mu.Unlock()
	log.Info().Str("module", "call").Str("room", room).Msg("transport reconnected")
	c.notify()
}

func (c *Coordinator) transportDisconnected(gen uint64) {
	c.mu.Lock()
	ok := c.gen == gen && c.session != nil && c.session.State.Live()
	c.mu.Unlock()
	if !ok {
		return
	}
	c.teardown("transport disconnected")
}

// End finishes the call locally. Valid from Connected/Reconnecting; a no-op
// in any other state.
func (c *Coordinator) End() {
	c.mu.Lock()
	ok := c.session != nil && c.session.State.Live()
	c.mu.Unlock()
	if !ok {
		return
	}
	c.teardown("user ended call")
}

// Close tears down from any non-terminal state. Safe to call repeatedly and
// alongside transport-driven cleanup; a second invocation is a no-op.
func (c *Coordinator) Close() {
	c.teardown("teardown")
}

// teardown is the single cleanup path: stop the poller, release the media
// handle and its attachment, fire the persist notification. All steps are
// best-effort and attempted regardless of the others.
func (c *Coordinator) teardown(reason string) {
	c.mu.Lock()
	if c.session == nil || c.session.State.Terminal() {
		c.mu.Unlock()
		return
	}
	c.session.State = domain.StateDisconnected
	room := c.session.RoomID
	poller := c.poller
	c.poller = nil
	attach := c.attach
	c.attach = nil
	media := c.media
	c.media = nil
	c.gen++
	c.mu.Unlock()

	if poller != nil {
		poller.Stop()
	}
	if media != nil {
		media.Close()
	}
	if attach != nil {
		attach.release()
	}
	if room != "" {
		go c.persistSession(room)
	}
	log.Info().Str("module", "call").Str("room", room).Str("reason", reason).Msg("call ended")
	c.notify()
}

// persistSession is fire-and-forget: failure is logged, never surfaced,
// never retried, and never blocks the teardown path.
func (c *Coordinator) persistSession(room string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.recorder.Persist(ctx, room); err != nil {
		log.Warn().Err(err).Str("module", "call").Str("kind", "persist_notification").Str("room", room).Msg("session persist failed")
	}
}

// SetMuted flips the local audio publish flag. Only valid while the call is
// live; it never changes the connection state.
func (c *Coordinator) SetMuted(muted bool) error {
	c.mu.Lock()
	if c.session == nil || !c.session.State.Live() || c.media == nil {
		c.mu.Unlock()
		return ErrNotInCall
	}
	session := c.session
	media := c.media
	c.mu.Unlock()

	if err := media.SetLocalAudioEnabled(!muted); err != nil {
		return errors.Wrap(err, "toggle microphone")
	}
	c.mu.Lock()
	session.Muted = muted
	c.mu.Unlock()
	c.notify()
	return nil
}

// applyPoll merges one tick's results. The fetched message list is an
// authoritative replacement snapshot ordered by sent timestamp. Results for
// a finished attempt or a different room are discarded.
func (c *Coordinator) applyPoll(gen uint64, room string, res TickResult) {
	c.mu.Lock()
	if c.gen != gen || c.session == nil || c.session.RoomID != room || !c.session.State.Live() {
		c.mu.Unlock()
		log.Debug().Str("module", "call").Str("room", room).Msg("discarding stale poll result")
		return
	}
	if res.MessagesOK {
		msgs := append([]domain.TranscriptEntry(nil), res.Messages...)
		sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].SentTS < msgs[j].SentTS })
		c.transcript = msgs
	}
	if res.AnalysisOK {
		c.analysis = res.Analysis
	}
	c.mu.Unlock()
	c.notify()
}

// remoteTrack attaches the assistant's audio track to the sink, exactly once
// per attempt. Extra tracks are ignored.
func (c *Coordinator) remoteTrack(gen uint64, ctx context.Context, track *webrtc.TrackRemote) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		log.Debug().Str("module", "call").Str("kind", track.Kind().String()).Msg("ignoring non-audio track")
		return
	}
	c.mu.Lock()
	if c.gen != gen || c.session == nil || c.session.State.Terminal() {
		c.mu.Unlock()
		return
	}
	if c.attach != nil {
		c.mu.Unlock()
		log.Info().Str("module", "call").Str("track_id", track.ID()).Msg("audio already attached, ignoring track")
		return
	}
	if c.sink == nil {
		c.mu.Unlock()
		log.Debug().Str("module", "call").Msg("no audio sink wired, dropping remote track")
		return
	}
	logger := log.With().
		Str("module", "call").
		Str("room", c.session.RoomID).
		Str("track_id", track.ID()).
		Logger()
	c.attach = newTrackAttachment(ctx, track, c.sink, logger)
	c.mu.Unlock()
	logger.Info().Msg("remote audio attached")
}

// Snapshot returns a copy of the current view.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		State:      domain.StateIdle,
		LastError:  c.lastErr,
		Transcript: append([]domain.TranscriptEntry(nil), c.transcript...),
		Analysis:   c.analysis,
	}
	if c.session != nil {
		snap.State = c.session.State
		snap.RoomID = c.session.RoomID
		snap.Muted = c.session.Muted
	}
	return snap
}

func (c *Coordinator) notify() {
	if c.cfg.OnChange == nil {
		return
	}
	c.cfg.OnChange(c.Snapshot())
}
