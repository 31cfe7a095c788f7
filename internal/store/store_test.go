package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"readings", "bindings"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer s.Close()

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM readings").Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.verifyPragma(ctx, "journal_mode", "wal"); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma(ctx, "busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma(ctx, "user_version", "1"); err != nil {
		t.Error(err)
	}
}

func TestOpen_ClearsStaleBindings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := s.db.Exec(`INSERT INTO bindings (id, sensor, registered_at) VALUES ('x', 'a@b:c', 1)`); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	records, err := s.Bindings(context.Background())
	if err != nil {
		t.Fatalf("Bindings() failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("stale bindings survived reopen: %v", records)
	}
}
