package assistant

import (
	"context"
	"net/url"
)

// Persist asks the backend to store the finished session. The response body
// is ignored; the caller treats failure as log-only.
func (c *Client) Persist(ctx context.Context, room string) error {
	_, err := c.postJSON(ctx, "/save-session?room_id="+url.QueryEscape(room), nil, nil)
	return err
}
