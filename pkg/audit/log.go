package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calyptra/ace-go/pkg/errors"
)

// DefaultLogPath returns the well-known audit log location:
// $ACE_AUDIT_LOG if set, otherwise ~/.ace/audit.jsonl.
func DefaultLogPath() string {
	if p := os.Getenv("ACE_AUDIT_LOG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".ace", "audit.jsonl")
}

// Record is one line of the append-only audit log.
type Record struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"ts"`
	Kind      string      `json:"kind"`
	Payload   interface{} `json:"payload,omitempty"`
}

// DecodePayload unmarshals the record payload into v. Records read
// back from disk carry payloads as generic JSON values; this round-trip
// recovers the typed form.
func (r Record) DecodePayload(v interface{}) error {
	data, err := json.Marshal(r.Payload)
	if err != nil {
		return errors.Wrap(err, errors.StorageFailed, "cannot re-encode audit payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.WithFields(
			errors.Wrap(err, errors.StorageFailed, "corrupt audit payload"),
			errors.Fields{"kind": r.Kind, "id": r.ID})
	}
	return nil
}

// Log appends JSON records, one per line, to a single file.
type Log struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewLog creates a log writing to path. The file and its directory are
// created on first append.
func NewLog(path string) *Log {
	return &Log{path: path, now: time.Now}
}

// Append writes one record. Failures surface as storage errors so an
// unreadable disk is never mistaken for a quiet log.
func (l *Log) Append(kind string, payload interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return errors.Wrap(err, errors.StorageFailed, "cannot create audit log directory")
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, errors.StorageUnavailable, "cannot open audit log")
	}
	defer f.Close()

	rec := Record{
		ID:        uuid.NewString(),
		Timestamp: l.now().UTC(),
		Kind:      kind,
		Payload:   payload,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, errors.StorageFailed, "cannot encode audit record")
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return errors.Wrap(err, errors.StorageFailed, "cannot append audit record")
	}
	return nil
}

// Read returns every record in the log, oldest first. A missing file is
// an empty log.
func (l *Log) Read() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.StorageUnavailable, "cannot open audit log")
	}
	defer f.Close()

	var out []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, errors.Wrap(err, errors.StorageFailed, "corrupt audit record")
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "cannot read audit log")
	}
	return out, nil
}

// Path returns the log file location.
func (l *Log) Path() string { return l.path }
