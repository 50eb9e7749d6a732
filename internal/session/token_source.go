package session

import (
	"context"

	"golang.org/x/oauth2"
)

var _ oauth2.TokenSource = (*TokenSource)(nil)

// TokenSource supplies bearer tokens from a Manager.
type TokenSource struct {
	ctx context.Context
	m   *Manager
}

// Token implements oauth2.TokenSource.
func (s *TokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.m.Access(s.ctx)
	if err != nil {
		return nil, err
	}

	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	return &oauth2.Token{
		AccessToken: tok.AccessToken,
		TokenType:   tokenType,
		Expiry:      tok.ExpiresAt,
	}, nil
}
