package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
)

// FileRepo persists session records as a JSON document in the data folder,
// with temp-file + rename writes so a crash never truncates the document.
type FileRepo struct {
	mu       sync.RWMutex
	path     string
	sessions map[string]*Session
}

// NewFileRepo loads (or initializes) the session document at path.
func NewFileRepo(path string) (*FileRepo, error) {
	if path == "" {
		return nil, pkgerrors.New("[session.NewFileRepo] path is required")
	}

	r := &FileRepo{
		path:     path,
		sessions: make(map[string]*Session),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r, nil
		}
		return nil, pkgerrors.Wrap(err, "[session.NewFileRepo] os.ReadFile")
	}

	var sessions []*Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, pkgerrors.Wrap(err, "[session.NewFileRepo] json.Unmarshal")
	}
	for _, s := range sessions {
		r.sessions[s.ID] = s
	}
	return r, nil
}

// Upsert creates or replaces a session record and flushes to disk
func (r *FileRepo) Upsert(session *Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if session.ID == "" {
		return errors.New("session ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *session
	copied.EncryptedTokens = append([]byte(nil), session.EncryptedTokens...)
	r.sessions[session.ID] = &copied
	return r.flushLocked()
}

// Get retrieves a session by ID
func (r *FileRepo) Get(sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, errors.New("sessionID is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	copied := *session
	copied.EncryptedTokens = append([]byte(nil), session.EncryptedTokens...)
	return &copied, nil
}

// Delete removes a session and flushes; absent records are not an error
func (r *FileRepo) Delete(sessionID string) error {
	if sessionID == "" {
		return errors.New("sessionID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; !ok {
		return nil
	}
	delete(r.sessions, sessionID)
	return r.flushLocked()
}

// DeleteExpired removes every record with expiry at or before cutoff
func (r *FileRepo) DeleteExpired(cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, session := range r.sessions {
		if !session.ExpiresAt.After(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, r.flushLocked()
}

// Count returns the number of stored records
func (r *FileRepo) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), nil
}

func (r *FileRepo) flushLocked() error {
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}

	data, err := json.Marshal(sessions)
	if err != nil {
		return pkgerrors.Wrap(err, "[FileRepo.flush] json.Marshal")
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
