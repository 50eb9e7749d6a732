package session

import (
	"time"

	"github.com/wolfeidau/reportctl/internal/models"
)

const (
	// MaxSessionAge is the hard ceiling on a session measured from login.
	// Refreshing never extends it.
	MaxSessionAge = 30 * time.Minute

	// ErrorRefreshFailed tags a session whose silent refresh was rejected.
	ErrorRefreshFailed = "RefreshAccessTokenError"

	// ErrorCeilingExceeded tags a session that outlived MaxSessionAge.
	ErrorCeilingExceeded = "SessionCeilingExceeded"
)

// State is the lifecycle state of a cached session token.
type State int

const (
	StateAnonymous State = iota
	StateValid
	StateRefreshPending
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateValid:
		return "valid"
	case StateRefreshPending:
		return "refresh_pending"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Action is the side effect requested by Evaluate.
type Action int

const (
	ActionNone Action = iota
	ActionRefresh
)

// Token is the credential and identity state held for a signed-in principal.
type Token struct {
	Claims      models.Claims `json:"claims"`
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`

	IssuedAt  time.Time     `json:"issued_at"`
	ExpiresAt time.Time     `json:"expires_at"`
	Lifetime  time.Duration `json:"lifetime"`

	// Error is terminal: once set the token is retained but never trusted.
	Error string `json:"error,omitempty"`
}

// ExpiresAtEpochMs returns the expiry instant in milliseconds since the epoch.
func (t *Token) ExpiresAtEpochMs() int64 {
	return t.ExpiresAt.UnixMilli()
}

// Ceiling returns the instant past which the token is never trusted.
func (t *Token) Ceiling(maxAge time.Duration) time.Time {
	return t.IssuedAt.Add(maxAge)
}

func (t *Token) clone() *Token {
	c := *t
	return &c
}

// Evaluate decides the state of tok at now and the side effect needed to
// make it usable. It has no side effects itself.
func Evaluate(tok *Token, now time.Time, maxAge time.Duration) (State, Action) {
	if tok == nil || tok.AccessToken == "" {
		return StateAnonymous, ActionNone
	}

	if tok.Error != "" {
		return StateErrored, ActionNone
	}

	if !now.Before(tok.Ceiling(maxAge)) {
		return StateErrored, ActionNone
	}

	if now.Before(tok.ExpiresAt) {
		return StateValid, ActionNone
	}

	return StateRefreshPending, ActionRefresh
}
