package api

import (
	"context"
	"net/http"
	"net/url"
)

// Login calls POST /auth/login. No bearer token is sent.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*Envelope[AuthPayload], error) {
	var env Envelope[AuthPayload]
	if err := c.do(anonymous(ctx), http.MethodPost, "/auth/login", req, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Register calls POST /auth/register. No bearer token is sent.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Envelope[AuthPayload], error) {
	var env Envelope[AuthPayload]
	if err := c.do(anonymous(ctx), http.MethodPost, "/auth/register", req, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Refresh calls POST /auth/refresh with the attached session's token.
func (c *Client) Refresh(ctx context.Context) (*Envelope[AuthPayload], error) {
	var env Envelope[AuthPayload]
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Me calls GET /auth/me.
func (c *Client) Me(ctx context.Context) (*Envelope[User], error) {
	var env Envelope[User]
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// UpdateProfile calls PUT /auth/profile.
func (c *Client) UpdateProfile(ctx context.Context, req ProfileUpdate) (*Envelope[User], error) {
	var env Envelope[User]
	if err := c.do(ctx, http.MethodPut, "/auth/profile", req, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// ChangePassword calls PUT /auth/change-password.
func (c *Client) ChangePassword(ctx context.Context, req ChangePasswordRequest) (*Envelope[string], error) {
	var env Envelope[string]
	if err := c.do(ctx, http.MethodPut, "/auth/change-password", req, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// CheckUsername reports whether username is still available.
func (c *Client) CheckUsername(ctx context.Context, username string) (bool, error) {
	return c.check(ctx, "/auth/check-username?username="+url.QueryEscape(username))
}

// CheckEmail reports whether email is still available.
func (c *Client) CheckEmail(ctx context.Context, email string) (bool, error) {
	return c.check(ctx, "/auth/check-email?email="+url.QueryEscape(email))
}

func (c *Client) check(ctx context.Context, path string) (bool, error) {
	var env Envelope[bool]
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return false, err
	}
	if err := env.Rejection(); err != nil {
		return false, err
	}
	return env.Data != nil && *env.Data, nil
}
