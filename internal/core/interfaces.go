package core

import (
	"context"

	"github.com/nexus-ai/callmate/internal/domain"
)

// TokenGrant is the credential pair returned by the token endpoint.
type TokenGrant struct {
	Token string `json:"token"`
	URL   string `json:"url"`
	Room  string `json:"room"`
}

// TokenProvider exchanges (room, participant) for a media connection credential.
type TokenProvider interface {
	Token(ctx context.Context, room, participant string) (*TokenGrant, error)
}

// TranscriptSource reads the transcript/analysis side channel for a room.
// Both reads are full-window snapshots, never deltas.
type TranscriptSource interface {
	Messages(ctx context.Context, room string, limit int) ([]domain.TranscriptEntry, error)
	Analysis(ctx context.Context, room string) (*domain.AnalysisSnapshot, error)
}

// SessionRecorder asks the backend to persist a finished session.
// Callers treat it as fire-and-forget; failures are logged, never surfaced.
type SessionRecorder interface {
	Persist(ctx context.Context, room string) error
}
