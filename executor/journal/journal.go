// Package journal keeps a record of the commands an executor handled.
package journal

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Entry is one handled command.
type Entry struct {
	ID        string        `db:"id"`
	Command   string        `db:"command"`
	DBPath    string        `db:"db_path"`
	Timestamp int64         `db:"timestamp"`
	Duration  time.Duration `db:"-"`
	// DurationMicros mirrors Duration for storage.
	DurationMicros int64  `db:"duration_us"`
	Error          string `db:"error"`
}

// Journal writes entries to a command_journal table.
type Journal struct {
	db *sqlx.DB
}

// New creates a journal, creating its table if needed.
func New(db *sqlx.DB) (*Journal, error) {
	if err := DBInit(db); err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

// DBInit initializes the command journal table
func DBInit(db *sqlx.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS command_journal (
		id TEXT PRIMARY KEY,
		command TEXT NOT NULL,
		db_path TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		duration_us INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_command_journal_timestamp ON command_journal(timestamp)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_command_journal_db_path ON command_journal(db_path)`)
	return err
}

// Record stores an entry, filling in its ID and timestamp when unset.
func (j *Journal) Record(entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().Unix()
	}
	entry.DurationMicros = entry.Duration.Microseconds()

	_, err := j.db.NamedExec(`
		INSERT INTO command_journal (id, command, db_path, timestamp, duration_us, error)
		VALUES (:id, :command, :db_path, :timestamp, :duration_us, :error)`,
		entry,
	)
	return err
}

// Recent returns the newest entries first, at most limit of them.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	var entries []Entry
	err := j.db.Select(&entries, `
		SELECT id, command, db_path, timestamp, duration_us, error
		FROM command_journal
		ORDER BY timestamp DESC, rowid DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Duration = time.Duration(entries[i].DurationMicros) * time.Microsecond
	}
	return entries, nil
}

// ForPath returns every entry recorded for a store, oldest first.
func (j *Journal) ForPath(dbPath string) ([]Entry, error) {
	var entries []Entry
	err := j.db.Select(&entries, `
		SELECT id, command, db_path, timestamp, duration_us, error
		FROM command_journal
		WHERE db_path = $1
		ORDER BY timestamp ASC, rowid ASC`, dbPath)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Duration = time.Duration(entries[i].DurationMicros) * time.Microsecond
	}
	return entries, nil
}
