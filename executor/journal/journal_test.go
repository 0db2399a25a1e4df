package journal

import (
	"path"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	dbPath := path.Join(t.TempDir(), "test_journal.db")
	db := sqlx.MustConnect("sqlite3", dbPath)
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestDBInit(t *testing.T) {
	db := setupTestDB(t)
	if err := DBInit(db); err != nil {
		t.Fatalf("DBInit returned error: %v", err)
	}

	var tableName string
	err := db.Get(&tableName, "SELECT name FROM sqlite_master WHERE type='table' AND name='command_journal'")
	if err != nil {
		t.Fatalf("Table 'command_journal' does not exist: %v", err)
	}

	var count int
	err = db.Get(&count, "SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND tbl_name='command_journal'")
	if err != nil {
		t.Fatalf("Failed to query indexes: %v", err)
	}
	if count < 2 {
		t.Errorf("Expected at least 2 indexes, got %d", count)
	}

	// Running it twice must be harmless
	if err := DBInit(db); err != nil {
		t.Fatalf("second DBInit returned error: %v", err)
	}
}

func TestRecordAndRecent(t *testing.T) {
	db := setupTestDB(t)
	j, err := New(db)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if err := j.Record(Entry{Command: "open", DBPath: "/tmp/a.db", Duration: 1500 * time.Microsecond}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := j.Record(Entry{Command: "select", DBPath: "/tmp/a.db", Error: "query failed"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	entries, err := j.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Command != "select" || entries[0].Error != "query failed" {
		t.Errorf("Unexpected newest entry: %+v", entries[0])
	}
	if entries[1].Duration != 1500*time.Microsecond {
		t.Errorf("Expected duration 1.5ms, got %v", entries[1].Duration)
	}
	if entries[0].ID == "" || entries[0].ID == entries[1].ID {
		t.Error("Expected distinct generated IDs")
	}
	if entries[0].Timestamp == 0 {
		t.Error("Expected timestamp to be set")
	}

	limited, err := j.Recent(1)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected 1 entry, got %d", len(limited))
	}
}

func TestForPath(t *testing.T) {
	db := setupTestDB(t)
	j, err := New(db)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	for _, e := range []Entry{
		{Command: "open", DBPath: "/tmp/a.db"},
		{Command: "open", DBPath: "/tmp/b.db"},
		{Command: "execute", DBPath: "/tmp/a.db"},
	} {
		if err := j.Record(e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	entries, err := j.ForPath("/tmp/a.db")
	if err != nil {
		t.Fatalf("ForPath failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Command != "open" || entries[1].Command != "execute" {
		t.Errorf("Unexpected order: %s, %s", entries[0].Command, entries[1].Command)
	}
}
