package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wolfeidau/reportctl/internal/session"
	"golang.org/x/term"
)

// LoginCmd signs in with email and password.
type LoginCmd struct {
	Email    string `arg:"" help:"Account email address"`
	Password string `help:"Account password, prompted for when unset" env:"REPORTCTL_PASSWORD"`
}

func (l *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := newApp(ctx, globals)
	if err != nil {
		return err
	}

	password := l.Password
	if password == "" {
		password, err = readPassword()
		if err != nil {
			return err
		}
	}

	tok, err := a.manager.Login(ctx, strings.TrimSpace(l.Email), password)
	if err != nil {
		return a.userError(ctx, err)
	}

	// jobs tracked by a previous user are not ours to follow
	a.tracked.Clear()
	if err := a.store.ClearTracked(); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Logged in as %s <%s>\n", tok.Claims.Name(), tok.Claims.Email)
	return nil
}

func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())

	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("password is required, set --password or REPORTCTL_PASSWORD")
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	return string(b), nil
}

// LogoutCmd clears the session and tracked jobs.
type LogoutCmd struct{}

func (l *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := newApp(ctx, globals)
	if err != nil {
		return err
	}

	if err := a.manager.SignOut(ctx); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

// WhoamiCmd shows the signed in user, refreshing the session if needed.
type WhoamiCmd struct{}

func (w *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := newApp(ctx, globals)
	if err != nil {
		return err
	}

	tok, err := a.manager.Access(ctx)
	if err != nil {
		return a.userError(ctx, err)
	}

	c := tok.Claims

	fmt.Fprintf(a.out, "Name:         %s\n", c.Name())
	fmt.Fprintf(a.out, "Email:        %s\n", c.Email)
	fmt.Fprintf(a.out, "User ID:      %s\n", c.SubjectID)
	fmt.Fprintf(a.out, "Role:         %s\n", c.Role)
	if c.Organization != nil {
		fmt.Fprintf(a.out, "Organization: %s\n", *c.Organization)
	}
	fmt.Fprintf(a.out, "Active:       %t\n", c.IsActive)
	fmt.Fprintf(a.out, "Token:        %s\n", tok.Fingerprint())
	fmt.Fprintf(a.out, "Expires:      %s\n", tok.ExpiresAt.Local().Format(time.RFC3339))
	fmt.Fprintf(a.out, "Session ends: %s\n", tok.Ceiling(session.MaxSessionAge).Local().Format(time.RFC3339))

	return nil
}

// StatusCmd reports the session state and tracked jobs without contacting
// the server.
type StatusCmd struct{}

func (s *StatusCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := newApp(ctx, globals)
	if err != nil {
		return err
	}

	state := a.manager.State()
	fmt.Fprintf(a.out, "Session:      %s\n", state)

	if state == session.StateErrored {
		fmt.Fprintln(a.out, "              expired, run login to sign in again")
	}

	ids := a.tracked.IDs()
	fmt.Fprintf(a.out, "Tracked jobs: %d\n", len(ids))
	for _, id := range ids {
		fmt.Fprintf(a.out, "  %s\n", id)
	}

	return nil
}
