package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/reportctl/internal/models"
	"github.com/wolfeidau/reportctl/internal/session"
)

var _ session.Authenticator = (*Client)(nil)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token bundle.
func (c *Client) Login(ctx context.Context, email, password string) (*models.TokenBundle, error) {
	var bundle models.TokenBundle

	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/v1/auth/login",
		body:   loginRequest{Email: email, Password: password},
	}, &bundle)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests {
			log.Debug().
				Int("status", apiErr.StatusCode).
				Str("detail", apiErr.Detail).
				Msg("Login rejected")

			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if bundle.AccessToken == "" {
		return nil, ErrUnexpectedResponse
	}

	return &bundle, nil
}

// Me fetches the claims of the user owning accessToken.
func (c *Client) Me(ctx context.Context, accessToken string) (*models.Claims, error) {
	var claims models.Claims

	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/v1/auth/me",
		bearer: accessToken,
	}, &claims)
	if err != nil {
		return nil, err
	}

	return &claims, nil
}

// Verify revalidates accessToken and returns the current claims.
func (c *Client) Verify(ctx context.Context, accessToken string) (*models.Claims, error) {
	var claims models.Claims

	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/v1/auth/verify",
		bearer: accessToken,
	}, &claims)
	if err != nil {
		return nil, err
	}

	return &claims, nil
}
