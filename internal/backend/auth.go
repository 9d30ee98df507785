package backend

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, username, password string) (Tokens, error) {
	rq, err := jsonRequest(http.MethodPost, "/api/auth/login/", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return Tokens{}, err
	}
	body, err := c.send(ctx, nil, rq)
	if err != nil {
		return Tokens{}, err
	}
	var res struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return Tokens{}, errors.Wrap(err, "unable to decode login response")
	}
	if res.Access == "" {
		return Tokens{}, ErrUnexpectedResponse
	}
	return Tokens{Access: res.Access, Refresh: res.Refresh}, nil
}

// Register creates an account. Field level validation failures come back as
// an *APIError with Fields set.
func (c *Client) Register(ctx context.Context, in RegisterRequest) error {
	rq, err := jsonRequest(http.MethodPost, "/api/auth/register/", in)
	if err != nil {
		return err
	}
	_, err = c.send(ctx, nil, rq)
	return err
}

// Refresh obtains a new access token.
func (c *Client) Refresh(ctx context.Context, refresh string) (string, error) {
	rq, err := jsonRequest(http.MethodPost, "/api/auth/refresh/", map[string]string{"refresh": refresh})
	if err != nil {
		return "", err
	}
	body, status, err := c.roundTrip(ctx, nil, rq)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", newAPIError(status, body)
	}
	var res struct {
		Access string `json:"access"`
	}
	if err := json.Unmarshal(body, &res); err != nil || res.Access == "" {
		return "", ErrUnexpectedResponse
	}
	return res.Access, nil
}
