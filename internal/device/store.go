package device

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/naveenspark/beacon/pkg/domain"
)

const stateFile = "device.json"

// credentials are the secrets behind one push channel. Byte slices are
// stored base64-encoded by encoding/json.
type credentials struct {
	ID         string    `json:"id"`
	Endpoint   string    `json:"endpoint"`
	PrivateKey []byte    `json:"private_key"`
	Auth       []byte    `json:"auth"`
	ServerKey  []byte    `json:"server_key"`
	CreatedAt  time.Time `json:"created_at"`
}

type state struct {
	Permission   domain.PermissionState `json:"permission"`
	Subscription *credentials           `json:"subscription,omitempty"`
}

// Store persists the device state as a single JSON file readable only by
// the current user.
type Store struct {
	path string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, stateFile)}
}

// Path returns the location of the state file.
func (s *Store) Path() string {
	return s.path
}

// stat reports the state file's current identity, or nil if it is missing.
func (s *Store) stat() os.FileInfo {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil
	}
	return info
}

// unchanged reports whether a and b describe the same version of the file.
// save renames a fresh file into place, so a write by any process changes
// the file identity even when the modification time does not move.
func unchanged(a, b os.FileInfo) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return os.SameFile(a, b) && a.ModTime().Equal(b.ModTime()) && a.Size() == b.Size()
}

func (s *Store) load() (state, error) {
	st := state{Permission: domain.PermissionDefault}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("device.load: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("device.load: parse %s: %w", s.path, err)
	}
	if !domain.ValidPermission(st.Permission) {
		st.Permission = domain.PermissionDefault
	}
	return st, nil
}

// save atomically replaces the state file and returns the identity of the
// file it wrote.
func (s *Store) save(st state) (os.FileInfo, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, fmt.Errorf("device.save: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("device.save: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return nil, fmt.Errorf("device.save: %w", err)
	}
	info, err := os.Stat(tmp)
	if err != nil {
		return nil, fmt.Errorf("device.save: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return nil, fmt.Errorf("device.save: %w", err)
	}
	return info, nil
}
