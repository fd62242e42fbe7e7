package session

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/mrcode/dexshare-widget/internal/fileutil"
	dexerr "github.com/mrcode/dexshare-widget/pkg/errors"
)

// Store persists the session as a single JSON file. Saves go through an
// atomic write so a crash mid-save leaves the previous state intact.
type Store struct {
	path string
}

// NewStore returns a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (st *Store) Path() string {
	return st.path
}

// Load reads the persisted session. A missing file means first run and
// returns (nil, nil). A file that exists but cannot be parsed or fails
// validation is reported as corrupt state, never silently replaced.
func (st *Store) Load() (*Session, error) {
	data, err := os.ReadFile(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, dexerr.Wrap(dexerr.KindConfig, "reading session file", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, dexerr.Wrap(dexerr.KindCorruptConfig, "session file is not valid JSON", err)
	}
	if err := s.Validate(); err != nil {
		return nil, dexerr.Wrap(dexerr.KindCorruptConfig, "session file failed validation", err)
	}
	return &s, nil
}

// Save validates and persists the session with owner-only permissions.
func (st *Store) Save(s *Session) error {
	if err := s.Validate(); err != nil {
		return dexerr.Wrap(dexerr.KindConfig, "refusing to persist invalid session", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return dexerr.Wrap(dexerr.KindConfig, "encoding session", err)
	}

	if err := os.MkdirAll(filepath.Dir(st.path), 0o750); err != nil {
		return dexerr.Wrap(dexerr.KindConfig, "creating session directory", err)
	}
	if err := fileutil.WriteAtomic(st.path, data, 0o600); err != nil {
		return dexerr.Wrap(dexerr.KindConfig, "writing session file", err)
	}
	return nil
}

// Delete removes the persisted session. Missing files are not an error.
func (st *Store) Delete() error {
	if err := os.Remove(st.path); err != nil && !os.IsNotExist(err) {
		return dexerr.Wrap(dexerr.KindConfig, "removing session file", err)
	}
	return nil
}
