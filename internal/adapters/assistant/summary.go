package assistant

import (
	"context"
	"fmt"

	"github.com/nexus-ai/callmate/internal/domain"
)

// CallSummary is the stored post-call view for one room.
type CallSummary struct {
	RoomID   string                   `json:"room_id"`
	Messages []domain.TranscriptEntry `json:"messages"`
	Analysis *domain.AnalysisSnapshot `json:"analysis"`
	SavedAt  string                   `json:"saved_at"`
}

// RecentCall is one row of the recent-calls listing.
type RecentCall struct {
	RoomID       string           `json:"room_id"`
	StartedAt    string           `json:"started_at"`
	MessageCount int              `json:"message_count"`
	Sentiment    domain.Sentiment `json:"sentiment"`
}

func (c *Client) CallSummary(ctx context.Context, room string) (*CallSummary, error) {
	var out CallSummary
	if err := c.getJSON(ctx, fmt.Sprintf("/call-summary/%s", room), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RecentCalls(ctx context.Context) ([]RecentCall, error) {
	var out struct {
		Calls []RecentCall `json:"calls"`
	}
	if err := c.getJSON(ctx, "/recent-calls", &out); err != nil {
		return nil, err
	}
	return out.Calls, nil
}
