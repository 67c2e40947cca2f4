package index

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/arond1/jotter/internal/notebook"
	"github.com/arond1/jotter/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testManager(t *testing.T) (*notebook.Manager, *storage.FS) {
	t.Helper()
	store, err := storage.NewOS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return notebook.NewManager(store, notebook.WithLogger(quietLogger())), store
}

func TestSync_IndexesTreeLeaves(t *testing.T) {
	db := testDB(t)
	m, _ := testManager(t)

	s, _, err := m.Create("work", 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.WriteNote("note.md", []byte("# Hello\nsee #todo")); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateNote("plans/q3.md"); err != nil {
		t.Fatal(err)
	}

	if err := Sync(db, m, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	all, _ := db.AllChecksums("work")
	if len(all) != 2 || all["note.md"] == "" || all["plans/q3.md"] == "" {
		t.Fatalf("indexed = %v", all)
	}

	results, err := db.Search("Hello", "work", 10)
	if err != nil || len(results) != 1 || results[0].Title != "Hello" {
		t.Errorf("search = %+v, err = %v", results, err)
	}

	if err := s.DeleteNote("plans/q3.md"); err != nil {
		t.Fatal(err)
	}
	if err := SyncNotebook(db, s, quietLogger()); err != nil {
		t.Fatal(err)
	}
	if cs := checksumOf(t, db, "work", "plans/q3.md"); cs != "" {
		t.Errorf("stale note still indexed")
	}
}

func TestSync_SkipsUnchanged(t *testing.T) {
	db := testDB(t)
	m, _ := testManager(t)
	if _, _, err := m.Create("work", 1, false); err != nil {
		t.Fatal(err)
	}
	if err := Sync(db, m, quietLogger()); err != nil {
		t.Fatal(err)
	}
	var before time.Time
	if err := db.conn.QueryRow(`SELECT updated_at FROM notes WHERE notebook = 'work'`).Scan(&before); err != nil {
		t.Fatal(err)
	}

	time.Sleep(20 * time.Millisecond)
	if err := Sync(db, m, quietLogger()); err != nil {
		t.Fatal(err)
	}
	var after time.Time
	if err := db.conn.QueryRow(`SELECT updated_at FROM notes WHERE notebook = 'work'`).Scan(&after); err != nil {
		t.Fatal(err)
	}
	if !after.Equal(before) {
		t.Errorf("unchanged note was reindexed: %v -> %v", before, after)
	}
}

func TestSync_DropsUnregisteredNotebooks(t *testing.T) {
	db := testDB(t)
	m, _ := testManager(t)
	upsert(t, db, "ghost", "old.md", "1", "")

	if err := Sync(db, m, quietLogger()); err != nil {
		t.Fatal(err)
	}
	names, _ := db.Notebooks()
	if len(names) != 0 {
		t.Errorf("Notebooks = %v, want none", names)
	}
}

func TestSyncNotebook_FollowsTreeNotDisk(t *testing.T) {
	db := testDB(t)
	m, store := testManager(t)
	s, _, err := m.Create("work", 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CreateNote("todo.txt"); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateNote("gone.md"); err != nil {
		t.Fatal(err)
	}
	if err := SyncNotebook(db, s, quietLogger()); err != nil {
		t.Fatal(err)
	}
	if cs := checksumOf(t, db, "work", "todo.txt"); cs == "" {
		t.Error("leaf without .md extension not indexed")
	}

	_ = store.Write("work/stray.md", []byte("# Stray"))
	_ = store.Remove("work/gone.md")
	if err := SyncNotebook(db, s, quietLogger()); err != nil {
		t.Fatal(err)
	}
	all, _ := db.AllChecksums("work")
	if _, ok := all["stray.md"]; ok {
		t.Error("untracked file indexed")
	}
	if _, ok := all["gone.md"]; ok {
		t.Error("leaf with missing file still indexed")
	}
	if len(all) != 2 {
		t.Errorf("indexed = %v, want note.md and todo.txt", all)
	}
}
