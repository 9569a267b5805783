package allowlist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	pkgerrors "github.com/pkg/errors"
)

// FileRepo persists allow-list entries as a JSON document in the data folder.
// Writes go through a temp file + rename so a crash never leaves a half-written
// document behind.
type FileRepo struct {
	mu      sync.RWMutex
	path    string
	entries map[string]*Entry // email -> entry
}

// NewFileRepo loads (or initializes) the allow-list document at path.
func NewFileRepo(path string) (*FileRepo, error) {
	if path == "" {
		return nil, pkgerrors.New("[allowlist.NewFileRepo] path is required")
	}

	r := &FileRepo{
		path:    path,
		entries: make(map[string]*Entry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r, nil
		}
		return nil, pkgerrors.Wrap(err, "[allowlist.NewFileRepo] os.ReadFile")
	}

	var entries []*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, pkgerrors.Wrap(err, "[allowlist.NewFileRepo] json.Unmarshal")
	}
	for _, entry := range entries {
		r.entries[entry.Email] = entry
	}
	return r, nil
}

// GetByEmail retrieves the entry for an email
func (r *FileRepo) GetByEmail(email string) (*Entry, error) {
	if email == "" {
		return nil, errors.New("email is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[email]
	if !ok {
		return nil, ErrEntryNotFound
	}
	copied := *entry
	return &copied, nil
}

// Upsert creates or replaces the entry for entry.Email and flushes to disk
func (r *FileRepo) Upsert(entry *Entry) error {
	if entry == nil {
		return errors.New("entry cannot be nil")
	}
	if entry.Email == "" {
		return errors.New("entry email is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *entry
	r.entries[entry.Email] = &copied
	return r.flushLocked()
}

// List returns all entries sorted by email
func (r *FileRepo) List() ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked(), nil
}

func (r *FileRepo) sortedLocked() []*Entry {
	entries := make([]*Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		copied := *entry
		entries = append(entries, &copied)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Email < entries[j].Email })
	return entries
}

func (r *FileRepo) flushLocked() error {
	data, err := json.MarshalIndent(r.sortedLocked(), "", "  ")
	if err != nil {
		return pkgerrors.Wrap(err, "[FileRepo.flush] json.MarshalIndent")
	}

	tmp := r.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return pkgerrors.Wrap(err, "[FileRepo.flush] os.MkdirAll")
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return pkgerrors.Wrap(err, "[FileRepo.flush] os.WriteFile")
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return pkgerrors.Wrap(err, "[FileRepo.flush] os.Rename")
	}
	return nil
}
