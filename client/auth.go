package client

import (
	"context"
	"net/http"

	"github.com/lizet96/frontdesk/models"
	"github.com/pkg/errors"
)

// Login signs in and stores the token pair in the token source. mfaCode may be
// empty; accounts with MFA enabled then fail with ErrMFARequired.
func (c *Client) Login(ctx context.Context, email, password, mfaCode string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	_, err := c.call(ctx, request{
		method:    http.MethodPost,
		path:      "/auth/login",
		body:      models.LoginRequest{Email: email, Password: password, MFACode: mfaCode},
		anonymous: true,
	}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized && apiErr.Message == ErrMFARequired.Message {
			return nil, ErrMFARequired
		}
		return nil, err
	}

	if c.tokens != nil {
		if err := c.tokens.SetTokens(resp.AccessToken, resp.RefreshToken, seconds(resp.RefreshExpiresIn)); err != nil {
			return nil, errors.Wrap(err, "failed to store session")
		}
	}
	return &resp, nil
}

// Refresh rotates the stored token pair
func (c *Client) Refresh(ctx context.Context) error {
	if c.tokens == nil {
		return ErrUnauthorized
	}
	return c.refresh(ctx, c.tokens.AccessToken())
}

// Logout revokes the session on the server and always clears it locally
func (c *Client) Logout(ctx context.Context) error {
	if c.tokens == nil {
		return nil
	}
	defer c.clearSession()

	if c.tokens.AccessToken() == "" {
		return nil
	}
	_, err := c.call(ctx, request{
		method: http.MethodPost,
		path:   "/auth/logout",
		body:   models.RefreshRequest{RefreshToken: c.tokens.RefreshToken()},
	}, nil)
	if errors.Is(err, ErrUnauthorized) {
		return nil
	}
	return err
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if _, err := c.call(ctx, request{method: http.MethodGet, path: "/auth/me"}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	if _, err := c.call(ctx, request{method: http.MethodGet, path: "/dashboard/stats"}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
