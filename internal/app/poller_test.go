package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-ai/callmate/internal/domain"
)

type gateSource struct {
	mu          sync.Mutex
	messages    []domain.TranscriptEntry
	msgErr      error
	analysis    *domain.AnalysisSnapshot
	analysisErr error
	calls       int
	gate        chan struct{} // when set, Messages blocks until closed
}

func (g *gateSource) Messages(_ context.Context, _ string, _ int) ([]domain.TranscriptEntry, error) {
	g.mu.Lock()
	g.calls++
	gate := g.gate
	msgs := append([]domain.TranscriptEntry(nil), g.messages...)
	err := g.msgErr
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return msgs, err
}

func (g *gateSource) Analysis(_ context.Context, _ string) (*domain.AnalysisSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.analysis, g.analysisErr
}

func collectTicks() (func(TickResult), func() []TickResult) {
	var mu sync.Mutex
	var results []TickResult
	apply := func(res TickResult) {
		mu.Lock()
		results = append(results, res)
		mu.Unlock()
	}
	get := func() []TickResult {
		mu.Lock()
		defer mu.Unlock()
		return append([]TickResult(nil), results...)
	}
	return apply, get
}

func TestPollerFirstTickImmediate(t *testing.T) {
	src := &gateSource{messages: []domain.TranscriptEntry{{Text: "hi", SentTS: 10}}}
	apply, got := collectTicks()

	p := NewPoller(src, "room-1000", time.Hour, 60, apply)
	p.Start()
	defer p.Stop()

	require.Eventually(t, func() bool { return len(got()) == 1 }, time.Second, 5*time.Millisecond)
	res := got()[0]
	assert.True(t, res.MessagesOK)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "hi", res.Messages[0].Text)
}

func TestPollerRepeats(t *testing.T) {
	src := &gateSource{}
	apply, got := collectTicks()

	p := NewPoller(src, "room-1000", 10*time.Millisecond, 60, apply)
	p.Start()
	defer p.Stop()

	require.Eventually(t, func() bool { return len(got()) >= 3 }, time.Second, 5*time.Millisecond)
}

func TestPollerFailureIsolation(t *testing.T) {
	src := &gateSource{
		msgErr:   errors.New("messages endpoint down"),
		analysis: &domain.AnalysisSnapshot{Sentiment: domain.SentimentPositive, Confidence: 0.8},
	}
	apply, got := collectTicks()

	p := NewPoller(src, "room-1000", time.Hour, 60, apply)
	p.Start()
	defer p.Stop()

	// One side failing must not block or invalidate the other.
	require.Eventually(t, func() bool { return len(got()) == 1 }, time.Second, 5*time.Millisecond)
	res := got()[0]
	assert.False(t, res.MessagesOK)
	assert.True(t, res.AnalysisOK)
	require.NotNil(t, res.Analysis)
	assert.Equal(t, domain.SentimentPositive, res.Analysis.Sentiment)
}

func TestPollerFullyFailedTickSkipped(t *testing.T) {
	src := &gateSource{
		msgErr:      errors.New("down"),
		analysisErr: errors.New("down"),
	}
	apply, got := collectTicks()

	p := NewPoller(src, "room-1000", 10*time.Millisecond, 60, apply)
	p.Start()
	defer p.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, got())
}

func TestPollerStopDiscardsLateResults(t *testing.T) {
	gate := make(chan struct{})
	src := &gateSource{
		gate:     gate,
		messages: []domain.TranscriptEntry{{Text: "late", SentTS: 1}},
	}
	apply, got := collectTicks()

	p := NewPoller(src, "room-1000", time.Hour, 60, apply)
	p.Start()

	// Wait for the first tick to be in flight, then stop and release it.
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.calls == 1
	}, time.Second, time.Millisecond)
	p.Stop()
	close(gate)

	<-p.Done()
	assert.Empty(t, got())
}

func TestPollerStopCancelsTimer(t *testing.T) {
	src := &gateSource{}
	apply, got := collectTicks()

	p := NewPoller(src, "room-1000", 5*time.Millisecond, 60, apply)
	p.Start()
	require.Eventually(t, func() bool { return len(got()) >= 1 }, time.Second, time.Millisecond)

	p.Stop()
	<-p.Done()
	n := len(got())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, len(got()))
}
