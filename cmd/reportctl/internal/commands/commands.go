package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/reportctl/cmd/reportctl/internal/credentials"
	"github.com/wolfeidau/reportctl/internal/api"
	"github.com/wolfeidau/reportctl/internal/config"
	"github.com/wolfeidau/reportctl/internal/session"
	"github.com/wolfeidau/reportctl/internal/tracker"
)

var (
	errSessionExpired = errors.New("your session has expired, please log in again with: reportctl login")
	errNotLoggedIn    = errors.New("not logged in, run: reportctl login")
)

type Globals struct {
	Debug    bool
	Version  string
	Server   string
	StateDir string
	Config   string

	// Stdout receives command output, os.Stdout if nil.
	Stdout io.Writer
}

func (g *Globals) out() io.Writer {
	if g.Stdout != nil {
		return g.Stdout
	}
	return os.Stdout
}

// app wires the state store, session manager, backend client and tracked
// set for a single command invocation.
type app struct {
	out     io.Writer
	cfg     *config.Config
	store   *credentials.Store
	manager *session.Manager
	client  *api.Client
	tracked *tracker.Set
}

func newApp(ctx context.Context, globals *Globals) (*app, error) {
	store, err := credentials.NewStore(globals.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state store: %w", err)
	}

	cfgPath := globals.Config
	if cfgPath == "" {
		cfgPath = filepath.Join(store.Dir(), "config.yaml")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	if globals.Server != "" {
		cfg.Server = globals.Server
	}

	clientConfig := api.Config{
		ServerURL: cfg.Server,
		Timeout:   cfg.Timeout,
		Debug:     globals.Debug,
	}

	// the session manager authenticates with its own client so a refresh
	// never draws a token from itself
	authClient, err := api.NewClient(clientConfig, api.WithMessages(cfg.Messages))
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	manager, err := session.NewManager(store, authClient)
	if err != nil {
		return nil, err
	}

	client, err := api.NewClient(clientConfig,
		api.WithMessages(cfg.Messages),
		api.WithTokenSource(manager.TokenSource(ctx)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	ids, err := store.LoadTracked()
	if err != nil {
		log.Warn().Err(err).Msg("ignoring unreadable tracked jobs")
	}

	a := &app{
		out:     globals.out(),
		cfg:     cfg,
		store:   store,
		manager: manager,
		client:  client,
		tracked: tracker.NewSet(ids...),
	}

	manager.OnSignOut(func(ctx context.Context) error {
		a.tracked.Clear()
		return store.ClearTracked()
	})

	return a, nil
}

func (a *app) saveTracked() error {
	if err := a.store.SaveTracked(a.tracked.IDs()); err != nil {
		return fmt.Errorf("failed to save tracked jobs: %w", err)
	}
	return nil
}

// userError converts err into what the user should see. An errored session
// is signed out here, it cannot recover without a new login.
func (a *app) userError(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil

	// interrupted, nothing is known about the session
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err

	case errors.Is(err, session.ErrSessionErrored):
		log.Debug().Err(err).Msg("session errored, signing out")

		if signOutErr := a.manager.SignOut(context.WithoutCancel(ctx)); signOutErr != nil {
			log.Warn().Err(signOutErr).Msg("failed to clear session")
		}
		return errSessionExpired

	case errors.Is(err, session.ErrNotSignedIn):
		return errNotLoggedIn
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		log.Debug().
			Int("status", apiErr.StatusCode).
			Str("detail", apiErr.Detail).
			Msg("request failed")

		return apiErr
	}

	return err
}
