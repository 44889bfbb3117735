package assistant

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/nexus-ai/callmate/internal/domain"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is the token-bearing response of the auth endpoints.
type AuthResult struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *domain.User `json:"user"`
}

// Login checks credentials against the backend. A 401 maps to ErrAuthFailed
// so the control plane can answer with a clean message.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	status, err := c.postJSON(ctx, "/auth/login", credentials{Email: email, Password: password}, &out)
	if err != nil {
		if status == http.StatusUnauthorized || status == http.StatusBadRequest {
			return nil, ErrAuthFailed
		}
		return nil, errors.Wrap(err, "login")
	}
	return &out, nil
}

// Register creates an account and returns the same token shape as Login.
func (c *Client) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	status, err := c.postJSON(ctx, "/auth/register", credentials{Email: email, Password: password}, &out)
	if err != nil {
		if status == http.StatusBadRequest || status == http.StatusConflict {
			return nil, ErrAuthFailed
		}
		return nil, errors.Wrap(err, "register")
	}
	return &out, nil
}
