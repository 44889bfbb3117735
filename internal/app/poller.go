package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nexus-ai/callmate/internal/core"
	"github.com/nexus-ai/callmate/internal/domain"
)

// TickResult carries the outcome of one poll tick. The two fetches of a tick
// are independent: either side may be missing when its fetch failed.
type TickResult struct {
	Messages   []domain.TranscriptEntry
	MessagesOK bool
	Analysis   *domain.AnalysisSnapshot
	AnalysisOK bool
}

// Poller repeatedly pulls the message window and the latest analysis snapshot
// for one room and hands both to apply as a unit. At most one poller runs per
// coordinator; it exists only while the transport is live.
type Poller struct {
	source   core.TranscriptSource
	room     string
	interval time.Duration
	limit    int
	apply    func(TickResult)

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	stopped atomic.Bool
}

func NewPoller(source core.TranscriptSource, room string, interval time.Duration, limit int, apply func(TickResult)) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		source:   source,
		room:     room,
		interval: interval,
		limit:    limit,
		apply:    apply,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

func (p *Poller) Start() {
	go p.loop()
}

func (p *Poller) loop() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// First pull immediately, then on the interval.
	p.tick()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

// tick issues both fetches concurrently and independently; a failure in one
// never blocks or invalidates the other. Both results land in one apply call,
// and ticks run back to back on the loop goroutine, so one tick's results are
// always applied before the next tick's are considered.
func (p *Poller) tick() {
	ctx, cancel := context.WithTimeout(p.ctx, p.interval)
	defer cancel()

	var res TickResult
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		msgs, err := p.source.Messages(ctx, p.room, p.limit)
		if err != nil {
			log.Warn().Err(err).Str("module", "poller").Str("kind", "poll_tick").Str("room", p.room).Msg("messages fetch failed")
			return
		}
		res.Messages = msgs
		res.MessagesOK = true
	}()
	go func() {
		defer wg.Done()
		a, err := p.source.Analysis(ctx, p.room)
		if err != nil {
			log.Warn().Err(err).Str("module", "poller").Str("kind", "poll_tick").Str("room", p.room).Msg("analysis fetch failed")
			return
		}
		res.Analysis = a
		res.AnalysisOK = true
	}()
	wg.Wait()

	// Results from a stopped poller are discarded regardless of completion order.
	if p.stopped.Load() {
		return
	}
	if res.MessagesOK || res.AnalysisOK {
		p.apply(res)
	}
}

// Stop cancels the timer and marks in-flight ticks stale. It does not wait
// for an in-flight tick; the stopped flag and the coordinator's generation
// guard both reject late results.
func (p *Poller) Stop() {
	p.stopped.Store(true)
	p.cancel()
}

// Done is closed when the loop goroutine has exited.
func (p *Poller) Done() <-chan struct{} { return p.done }
