// Package precedent keeps the durable, append-oriented outcome history
// per action class and converts it into a decaying, bounded trust score.
package precedent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/calyptra/ace-go/pkg/errors"
)

// Instance is one recorded action for a class. Result stays empty until
// an outcome is reported for it.
type Instance struct {
	Timestamp time.Time `json:"ts"`
	Details   string    `json:"details,omitempty"`
	Result    Result    `json:"result,omitempty"`
}

// ScoreChange is one applied score delta: a direct outcome, a
// propagated penalty, or a reset. Decay is not recorded here; it is a
// function of time, not of outcomes.
type ScoreChange struct {
	Timestamp time.Time `json:"ts"`
	Delta     float64   `json:"delta"`
}

// Entry is the full per-class record.
type Entry struct {
	Instances   []Instance    `json:"instances"`
	Changes     []ScoreChange `json:"changes,omitempty"`
	Score       float64       `json:"score"`
	DecayAnchor time.Time     `json:"decayAnchor"`
}

// Store is the durable backend for precedent entries. Load is called
// once at process start; Put persists a single class after every write.
type Store interface {
	Load() (map[string]*Entry, error)
	Put(class string, entry *Entry) error
	Close() error
}

// FileStore persists entries as a JSON map in a single file, guarded by
// an in-process mutex plus flock for cross-process safety. Writes are
// atomic via a temp file rename.
type FileStore struct {
	Path string
	mu   sync.Mutex
}

// NewFileStore creates a file-backed store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads all entries. A missing file is an empty store, not an
// error; any other read failure is a storage error so it can never be
// mistaken for absent history.
func (s *FileStore) Load() (map[string]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lockFile, err := s.acquireFileLock(syscall.LOCK_SH)
	if err != nil {
		return nil, errors.Wrap(err, errors.StorageUnavailable, "cannot lock precedent store")
	}
	defer s.releaseFileLock(lockFile)

	return s.readLocked()
}

// Put persists a single class entry, leaving every other entry intact.
func (s *FileStore) Put(class string, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lockFile, err := s.acquireFileLock(syscall.LOCK_EX)
	if err != nil {
		return errors.Wrap(err, errors.StorageUnavailable, "cannot lock precedent store")
	}
	defer s.releaseFileLock(lockFile)

	entries, err := s.readLocked()
	if err != nil {
		return err
	}
	entries[class] = entry

	return s.writeLocked(entries)
}

// Close releases nothing for a file store but satisfies Store.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) readLocked() (map[string]*Entry, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return map[string]*Entry{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "cannot read precedent store")
	}

	entries := map[string]*Entry{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "corrupt precedent store")
	}
	return entries, nil
}

func (s *FileStore) writeLocked(entries map[string]*Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.StorageFailed, "cannot encode precedent store")
	}

	tmpPath := s.Path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return errors.Wrap(err, errors.StorageFailed, "cannot write precedent store")
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.StorageFailed, "cannot replace precedent store")
	}
	return nil
}

func (s *FileStore) acquireFileLock(lockType int) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return nil, err
	}

	lockPath := s.Path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}

	if err := syscall.Flock(int(lockFile.Fd()), lockType); err != nil {
		lockFile.Close()
		return nil, err
	}

	return lockFile, nil
}

func (s *FileStore) releaseFileLock(lockFile *os.File) {
	if lockFile != nil {
		_ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)
		lockFile.Close()
	}
}

// MemoryStore is a volatile Store for tests and embedding.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]*Entry{}}
}

func (s *MemoryStore) Load() (map[string]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*Entry, len(s.entries))
	for k, v := range s.entries {
		cp := *v
		out[k] = &cp
	}
	return out, nil
}

func (s *MemoryStore) Put(class string, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	s.entries[class] = &cp
	return nil
}

func (s *MemoryStore) Close() error { return nil }
