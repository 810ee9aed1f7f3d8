package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"shrinkray/internal/fileutil"
)

// ErrNotFound is returned when no checkpoint exists for a session id.
var ErrNotFound = errors.New("session not found")

// Store persists session checkpoints as one JSON document per session.
// Writes are atomic (temp file + rename) so a crash mid-write never corrupts
// the last good checkpoint. A mutex funnels writers; reads share the lock
// only long enough to read the file.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates the checkpoint directory if needed and returns a store.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("session store: directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save checkpoints the session. Counters are recomputed before writing so the
// persisted document is always internally consistent.
func (s *Store) Save(sess *Session) error {
	if sess == nil || sess.ID == "" {
		return errors.New("session store: session with id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.RecomputeCounters()

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := fileutil.WriteAtomic(s.path(sess.ID), data, 0o644); err != nil {
		return fmt.Errorf("checkpoint session %s: %w", sess.ID, err)
	}
	return nil
}

// Load reads the checkpoint for a session id.
func (s *Store) Load(id string) (*Session, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

// ListResumable returns sessions checkpointed in a non-terminal state, newest
// first.
func (s *Store) ListResumable() ([]*Session, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var resumable []*Session
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		sess, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			// A corrupt or foreign file should not block resume listing.
			continue
		}
		if !sess.Status.Terminal() {
			resumable = append(resumable, sess)
		}
	}
	sort.Slice(resumable, func(i, j int) bool {
		return resumable[i].CreatedAt.After(resumable[j].CreatedAt)
	})
	return resumable, nil
}

// List returns every checkpointed session, newest first.
func (s *Store) List() ([]*Session, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var sessions []*Session
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		sess, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
