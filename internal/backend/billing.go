package backend

import (
	"context"
	"encoding/json"
	"net/http"
)

// CreateCheckoutSession asks the backend for a hosted checkout URL. The
// caller only redirects to it.
func (c *Client) CreateCheckoutSession(ctx context.Context, tk *Tokens) (string, error) {
	body, err := c.send(ctx, tk, request{method: http.MethodPost, path: "/api/billing/checkout-session/"})
	if err != nil {
		return "", err
	}
	var res struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &res); err != nil || res.URL == "" {
		return "", ErrUnexpectedResponse
	}
	return res.URL, nil
}
