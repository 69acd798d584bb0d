package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/0xF3546/stockflow-frontend/internal/logger"
	"github.com/0xF3546/stockflow-frontend/internal/models"
)

// CurrentVersion is the schema version written by this build.
const CurrentVersion = "1.2"

// Store persists the session state (token, user, watchlist) as a JSON file.
type Store struct {
	path   string
	logger *logger.Logger
	mu     sync.Mutex
}

// NewStore returns a store backed by the file at path.
func NewStore(path string, l *logger.Logger) *Store {
	if l == nil {
		l = logger.NewSilent()
	}
	return &Store{path: path, logger: l}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state from disk. A missing file yields a fresh template
// which is written immediately so the next run finds it.
func (s *Store) Load() (models.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st models.SessionState

	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info().Str("file", s.path).Msg("State file missing, generating template")
		st = models.SessionState{Version: CurrentVersion, Watchlist: []string{}}
		return st, s.saveLocked(st)
	}
	if err != nil {
		return st, err
	}

	if err := json.Unmarshal(b, &st); err != nil {
		return st, fmt.Errorf("decode %s: %w", s.path, err)
	}

	if migrateState(&st) {
		s.logger.Info().Str("version", st.Version).Msg("State migrated, saving")
		if err := s.saveLocked(st); err != nil {
			return st, err
		}
	}

	return st, nil
}

// Save writes the state using an atomic write pattern.
func (s *Store) Save(st models.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(st)
}

// Update loads, mutates and saves the state in one step.
func (s *Store) Update(fn func(*models.SessionState)) error {
	st, err := s.Load()
	if err != nil {
		return err
	}
	fn(&st)
	return s.Save(st)
}

// migrateState handles schema evolution.
// Returns true if changes were made and the state needs to be saved.
func migrateState(s *models.SessionState) bool {
	updated := false

	// 1.0 -> 1.1: watchlist added, never nil on disk
	if s.Version < "1.1" {
		if s.Watchlist == nil {
			s.Watchlist = []string{}
		}
		s.Version = "1.1"
		updated = true
	}

	// 1.1 -> 1.2: symbols are stored upper-case and unique
	if s.Version < "1.2" {
		seen := make(map[string]bool, len(s.Watchlist))
		clean := make([]string, 0, len(s.Watchlist))
		for _, sym := range s.Watchlist {
			sym = models.NormalizeSymbol(sym)
			if sym == "" || seen[sym] {
				continue
			}
			seen[sym] = true
			clean = append(clean, sym)
		}
		s.Watchlist = clean
		s.Version = "1.2"
		updated = true
	}

	return updated
}

// saveLocked writes to a temp file, syncs, then renames over the destination.
func (s *Store) saveLocked(st models.SessionState) error {
	if st.Version == "" {
		st.Version = CurrentVersion
	}
	if st.Watchlist == nil {
		st.Watchlist = []string{}
	}

	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	// Temp file in the same directory so the rename stays atomic
	tmpFile := s.path + ".tmp"
	f, err := os.OpenFile(tmpFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync temp state file: %w", err)
	}

	// Close explicitly before renaming (essential on Windows)
	f.Close()

	if err := os.Rename(tmpFile, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
