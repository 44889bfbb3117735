package assistant

import (
	"context"
	"fmt"

	"github.com/nexus-ai/callmate/internal/domain"
)

type messagesResponse struct {
	RoomID   string                   `json:"room_id"`
	Messages []domain.TranscriptEntry `json:"messages"`
}

type analysisResponse struct {
	RoomID   string                   `json:"room_id"`
	Analysis *domain.AnalysisSnapshot `json:"analysis"`
}

// Messages fetches the recent message window for a room, newest window wins.
func (c *Client) Messages(ctx context.Context, room string, limit int) ([]domain.TranscriptEntry, error) {
	var out messagesResponse
	path := fmt.Sprintf("/messages/%s", room)
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Analysis fetches the latest sentiment snapshot for a room. A nil snapshot
// with a nil error means no analysis exists yet.
func (c *Client) Analysis(ctx context.Context, room string) (*domain.AnalysisSnapshot, error) {
	var out analysisResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/analysis/%s", room), &out); err != nil {
		return nil, err
	}
	return out.Analysis, nil
}
