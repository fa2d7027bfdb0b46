package precedent

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/calyptra/ace-go/pkg/errors"
)

// SQLiteStore persists precedent entries in a sqlite database, one row
// per class with the instance history as a JSON column. WAL mode keeps
// concurrent readers off the writer's back.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and prepares
// the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.StorageUnavailable, "cannot open precedent database")
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.StorageUnavailable, "cannot enable WAL")
	}

	schema := `
	CREATE TABLE IF NOT EXISTS precedent (
		class        TEXT PRIMARY KEY,
		score        REAL NOT NULL,
		decay_anchor INTEGER NOT NULL,
		instances    TEXT NOT NULL,
		changes      TEXT NOT NULL DEFAULT '[]'
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.StorageFailed, "cannot create precedent schema")
	}

	return &SQLiteStore{db: db}, nil
}

// Load reads every class row into memory.
func (s *SQLiteStore) Load() (map[string]*Entry, error) {
	rows, err := s.db.Query("SELECT class, score, decay_anchor, instances, changes FROM precedent")
	if err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "cannot read precedent rows")
	}
	defer rows.Close()

	entries := map[string]*Entry{}
	for rows.Next() {
		var (
			class     string
			score     float64
			anchorUS  int64
			instances string
			changes   string
		)
		if err := rows.Scan(&class, &score, &anchorUS, &instances, &changes); err != nil {
			return nil, errors.Wrap(err, errors.StorageFailed, "cannot scan precedent row")
		}

		entry := &Entry{
			Score:       score,
			DecayAnchor: time.UnixMicro(anchorUS).UTC(),
		}
		if err := json.Unmarshal([]byte(instances), &entry.Instances); err != nil {
			return nil, errors.WithFields(
				errors.Wrap(err, errors.StorageFailed, "corrupt instance history"),
				errors.Fields{"class": class})
		}
		if err := json.Unmarshal([]byte(changes), &entry.Changes); err != nil {
			return nil, errors.WithFields(
				errors.Wrap(err, errors.StorageFailed, "corrupt change history"),
				errors.Fields{"class": class})
		}
		entries[class] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "cannot read precedent rows")
	}

	return entries, nil
}

// Put upserts one class row.
func (s *SQLiteStore) Put(class string, entry *Entry) error {
	instances, err := json.Marshal(entry.Instances)
	if err != nil {
		return errors.Wrap(err, errors.StorageFailed, "cannot encode instance history")
	}
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return errors.Wrap(err, errors.StorageFailed, "cannot encode change history")
	}

	_, err = s.db.Exec(`
		INSERT INTO precedent (class, score, decay_anchor, instances, changes)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(class) DO UPDATE SET
			score = excluded.score,
			decay_anchor = excluded.decay_anchor,
			instances = excluded.instances,
			changes = excluded.changes`,
		class, entry.Score, entry.DecayAnchor.UnixMicro(), string(instances), string(changes))
	if err != nil {
		return errors.WithFields(
			errors.Wrap(err, errors.StorageFailed, "cannot persist precedent entry"),
			errors.Fields{"class": class})
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
