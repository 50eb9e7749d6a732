package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/reportctl/internal/session"
)

const (
	sessionFile = "session.json"
	trackedFile = "tracked.json"

	fileVersion = 1
)

// ErrUnsupportedVersion is returned when a state file was written by a newer client.
var ErrUnsupportedVersion = errors.New("unsupported state file version")

var _ session.Store = (*Store)(nil)

type sessionState struct {
	Version int            `json:"version"`
	Token   *session.Token `json:"token"`
}

type trackedState struct {
	Version int      `json:"version"`
	IDs     []string `json:"ids"`
}

// Store keeps the session token and the tracked job ids on the local
// filesystem. Files are written atomically with 0600 permissions.
type Store struct {
	baseDir string
}

// DefaultDir returns ~/.reportctl.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".reportctl"), nil
}

// NewStore creates a new state store.
// If baseDir is empty, uses ~/.reportctl/
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		baseDir = dir
	}

	// Create directory with 0700 permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	log.Debug().Str("baseDir", baseDir).Msg("state store initialized")

	return &Store{baseDir: baseDir}, nil
}

// Dir returns the directory holding the state files.
func (s *Store) Dir() string {
	return s.baseDir
}

// Load implements session.Store. A missing or unreadable session file is
// reported as session.ErrNoSession so the user is asked to log in again.
func (s *Store) Load() (*session.Token, error) {
	var state sessionState

	err := s.readJSON(sessionFile, &state)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, session.ErrNoSession
		}
		if errors.Is(err, ErrUnsupportedVersion) {
			return nil, err
		}

		log.Warn().Err(err).Msg("ignoring unreadable session file")
		return nil, fmt.Errorf("%w: %v", session.ErrNoSession, err)
	}

	if state.Version > fileVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, state.Version)
	}

	if state.Token == nil || state.Token.AccessToken == "" {
		return nil, session.ErrNoSession
	}

	return state.Token, nil
}

// Save implements session.Store.
func (s *Store) Save(tok *session.Token) error {
	return s.writeJSON(sessionFile, &sessionState{Version: fileVersion, Token: tok})
}

// Clear implements session.Store.
func (s *Store) Clear() error {
	return s.remove(sessionFile)
}

// LoadTracked returns the persisted tracked job ids, empty if none.
func (s *Store) LoadTracked() ([]string, error) {
	var state trackedState

	if err := s.readJSON(trackedFile, &state); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	if state.Version > fileVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, state.Version)
	}

	return state.IDs, nil
}

// SaveTracked replaces the persisted tracked job ids.
func (s *Store) SaveTracked(ids []string) error {
	ids = slices.Clone(ids)
	slices.Sort(ids)

	return s.writeJSON(trackedFile, &trackedState{Version: fileVersion, IDs: ids})
}

// ClearTracked removes the tracked job ids.
func (s *Store) ClearTracked() error {
	return s.remove(trackedFile)
}

func (s *Store) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.baseDir, name))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}

	return nil
}

// writeJSON writes the file atomically.
func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	// Write to temp file first
	path := filepath.Join(s.baseDir, name)
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save %s: %w", name, err)
	}

	return nil
}

func (s *Store) remove(name string) error {
	if err := os.Remove(filepath.Join(s.baseDir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	return nil
}
