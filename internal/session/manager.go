package session

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/reportctl/internal/models"
	"github.com/wolfeidau/reportctl/internal/telemetry"
	"golang.org/x/sync/singleflight"
)

// Sentinel errors
var (
	// ErrNotSignedIn is returned when no session exists.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrSessionErrored is returned once a session can no longer be trusted.
	// Callers must sign out rather than retry.
	ErrSessionErrored = errors.New("session is no longer valid")
)

const settleKey = "settle"

// Authenticator is the backend surface the session lifecycle depends on.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*models.TokenBundle, error)
	Me(ctx context.Context, accessToken string) (*models.Claims, error)
	Verify(ctx context.Context, accessToken string) (*models.Claims, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithMaxSessionAge overrides the session ceiling.
func WithMaxSessionAge(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.maxAge = d
		}
	}
}

// Manager owns the session token for one signed-in principal. It decides on
// every access whether the cached token is usable, refreshes it when it has
// expired and records irrecoverable failure. It never prompts or navigates.
type Manager struct {
	store  Store
	auth   Authenticator
	now    func() time.Time
	maxAge time.Duration

	mu  sync.RWMutex
	tok *Token

	settle singleflight.Group

	hooksMu      sync.Mutex
	signOutHooks []func(context.Context) error
}

// NewManager creates a manager and loads any session held by store.
func NewManager(store Store, auth Authenticator, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:  store,
		auth:   auth,
		now:    time.Now,
		maxAge: MaxSessionAge,
	}

	for _, opt := range opts {
		opt(m)
	}

	tok, err := store.Load()
	switch {
	case errors.Is(err, ErrNoSession):
	case err != nil:
		return nil, fmt.Errorf("failed to load session: %w", err)
	default:
		m.tok = tok
		log.Debug().
			Str("subject", tok.Claims.SubjectID).
			Str("fingerprint", tok.Fingerprint()).
			Time("expiresAt", tok.ExpiresAt).
			Msg("session loaded")
	}

	return m, nil
}

// OnSignOut registers a hook run after the session is cleared.
func (m *Manager) OnSignOut(hook func(context.Context) error) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()

	m.signOutHooks = append(m.signOutHooks, hook)
}

// State reports the current lifecycle state without side effects.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, _ := Evaluate(m.tok, m.now(), m.maxAge)
	return state
}

// Login exchanges credentials for a token, loads the identity claims and
// replaces any existing session.
func (m *Manager) Login(ctx context.Context, email, password string) (*Token, error) {
	metrics := telemetry.GetMetrics()

	bundle, err := m.auth.Login(ctx, email, password)
	if err != nil {
		metrics.LoginFailuresTotal.Add(ctx, 1)
		return nil, err
	}

	claims, err := m.auth.Me(ctx, bundle.AccessToken)
	if err != nil {
		metrics.LoginFailuresTotal.Add(ctx, 1)
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}

	now := m.now()
	lifetime, expiresAt := loginExpiry(bundle.AccessToken, bundle.ExpiresIn, now, m.maxAge)

	tok := &Token{
		Claims:      *claims,
		AccessToken: bundle.AccessToken,
		TokenType:   bundle.TokenType,
		IssuedAt:    now,
		ExpiresAt:   expiresAt,
		Lifetime:    lifetime,
	}

	if err := m.store.Save(tok); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	m.mu.Lock()
	m.tok = tok
	m.mu.Unlock()

	metrics.LoginsTotal.Add(ctx, 1)

	log.Info().
		Str("subject", claims.SubjectID).
		Str("fingerprint", tok.Fingerprint()).
		Time("expiresAt", expiresAt).
		Msg("signed in")

	return tok.clone(), nil
}

// Access returns a trusted copy of the session token, refreshing it first if
// it has expired. An errored session is returned together with
// ErrSessionErrored so callers can still show who was signed in.
func (m *Manager) Access(ctx context.Context) (*Token, error) {
	m.mu.RLock()
	if state, _ := Evaluate(m.tok, m.now(), m.maxAge); state == StateValid {
		tok := m.tok.clone()
		m.mu.RUnlock()
		return tok, nil
	}
	m.mu.RUnlock()

	// Everything past the fast path is serialized so at most one refresh
	// is in flight.
	v, err, _ := m.settle.Do(settleKey, func() (any, error) {
		return m.settleToken(ctx)
	})

	tok, _ := v.(*Token)
	if tok != nil {
		tok = tok.clone()
	}

	return tok, err
}

// SignOut clears the session from any state and runs the sign-out hooks.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	prev := m.tok
	m.tok = nil
	m.mu.Unlock()

	var errs []error

	if err := m.store.Clear(); err != nil {
		errs = append(errs, fmt.Errorf("failed to clear session: %w", err))
	}

	m.hooksMu.Lock()
	hooks := append([]func(context.Context) error(nil), m.signOutHooks...)
	m.hooksMu.Unlock()

	for _, hook := range hooks {
		if err := hook(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	telemetry.GetMetrics().SignOutsTotal.Add(ctx, 1)

	if prev != nil {
		log.Info().Str("subject", prev.Claims.SubjectID).Msg("signed out")
	}

	return errors.Join(errs...)
}

// TokenSource adapts the manager for use with oauth2.Transport. Every token
// request goes through Access.
func (m *Manager) TokenSource(ctx context.Context) *TokenSource {
	return &TokenSource{ctx: ctx, m: m}
}

func (m *Manager) settleToken(ctx context.Context) (*Token, error) {
	m.mu.Lock()
	tok := m.tok
	now := m.now()
	state, action := Evaluate(tok, now, m.maxAge)

	if action != ActionRefresh {
		defer m.mu.Unlock()
		return m.resultLocked(state)
	}
	m.mu.Unlock()

	metrics := telemetry.GetMetrics()
	started := time.Now()

	claims, err := m.auth.Verify(ctx, tok.AccessToken)

	metrics.RefreshDuration.Record(ctx, float64(time.Since(started).Milliseconds()))

	// The caller gave up, the backend never answered. The token stays
	// pending so the next access refreshes again.
	if err != nil && ctx.Err() != nil {
		log.Debug().
			Err(err).
			Str("fingerprint", tok.Fingerprint()).
			Msg("session refresh interrupted")

		return nil, fmt.Errorf("refresh interrupted: %w", ctx.Err())
	}

	m.mu.Lock()

	// Signed out or signed in again while the refresh was in flight.
	if m.tok == nil || m.tok.AccessToken != tok.AccessToken {
		state, action := Evaluate(m.tok, m.now(), m.maxAge)
		if action == ActionRefresh {
			m.mu.Unlock()
			return m.settleToken(ctx)
		}

		defer m.mu.Unlock()
		return m.resultLocked(state)
	}
	defer m.mu.Unlock()

	if err != nil {
		metrics.RefreshFailuresTotal.Add(ctx, 1)

		errored := m.tok.clone()
		errored.Error = ErrorRefreshFailed
		m.tok = errored
		m.persistLocked()

		log.Warn().
			Err(err).
			Str("subject", errored.Claims.SubjectID).
			Str("fingerprint", errored.Fingerprint()).
			Msg("session refresh failed")

		return errored.clone(), fmt.Errorf("%w: refresh failed: %w", ErrSessionErrored, err)
	}

	metrics.RefreshesTotal.Add(ctx, 1)

	refreshed := m.tok.clone()
	refreshed.Claims = *claims
	refreshed.ExpiresAt = refreshExpiry(refreshed, now, m.maxAge)
	refreshed.Error = ""
	m.tok = refreshed
	m.persistLocked()

	log.Debug().
		Str("subject", claims.SubjectID).
		Str("fingerprint", refreshed.Fingerprint()).
		Time("expiresAt", refreshed.ExpiresAt).
		Msg("session refreshed")

	return refreshed.clone(), nil
}

// resultLocked maps a state that needs no refresh to the value Access returns.
func (m *Manager) resultLocked(state State) (*Token, error) {
	switch state {
	case StateValid:
		return m.tok.clone(), nil
	case StateErrored:
		if m.tok.Error == "" {
			errored := m.tok.clone()
			errored.Error = ErrorCeilingExceeded
			m.tok = errored
			m.persistLocked()

			log.Info().
				Str("subject", errored.Claims.SubjectID).
				Time("issuedAt", errored.IssuedAt).
				Msg("session ceiling exceeded")
		}
		return m.tok.clone(), fmt.Errorf("%w: %s", ErrSessionErrored, m.tok.Error)
	case StateAnonymous:
		return nil, ErrNotSignedIn
	default:
		return nil, fmt.Errorf("unexpected session state %s", state)
	}
}

func (m *Manager) persistLocked() {
	if err := m.store.Save(m.tok); err != nil {
		log.Warn().Err(err).Msg("failed to persist session, continuing with in-memory copy")
	}
}

// Fingerprint identifies the access token in logs without revealing it.
func (t *Token) Fingerprint() string {
	if t.AccessToken == "" {
		return ""
	}

	hash := sha256.Sum256([]byte(t.AccessToken))
	fp := base58.Encode(hash[:])

	return fp[:12]
}
