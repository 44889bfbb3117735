package assistant

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/nexus-ai/callmate/internal/core"
)

type tokenRequest struct {
	RoomName        string `json:"room_name"`
	ParticipantName string `json:"participant_name"`
	UserID          string `json:"userId,omitempty"`
}

// Token exchanges (room, participant) for a connection token and transport URL.
// Non-2xx or a network error is a hard ErrTokenRequest; callers never retry.
func (c *Client) Token(ctx context.Context, room, participant string) (*core.TokenGrant, error) {
	var grant core.TokenGrant
	_, err := c.postJSON(ctx, "/get-token", tokenRequest{
		RoomName:        room,
		ParticipantName: participant,
	}, &grant)
	if err != nil {
		log.Error().Err(err).Str("module", "assistant").Str("room", room).Msg("token request failed")
		return nil, errors.Wrap(ErrTokenRequest, err.Error())
	}
	return &grant, nil
}
