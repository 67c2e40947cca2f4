// Package testutil provides shared test helpers for setting up notebook
// roots and index databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/arond1/jotter/internal/index"
	"github.com/arond1/jotter/internal/notebook"
	"github.com/arond1/jotter/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "jotter-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRoot creates a temporary storage root.
func TestRoot(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewOS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestManager returns a notebook manager over a fresh temporary root.
func TestManager(t *testing.T) (*notebook.Manager, *storage.FS) {
	t.Helper()
	_, store := TestRoot(t)
	return notebook.NewManager(store, notebook.WithLogger(Discard())), store
}
