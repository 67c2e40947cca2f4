package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/arond1/jotter/internal/notebook"
	"github.com/arond1/jotter/internal/storage"
)

// watcherTestEnv creates notebook "work" whose tree holds the given notes
// and returns its directory, the manager and a DB.
func watcherTestEnv(t *testing.T, notes ...string) (string, *notebook.Manager, *DB) {
	t.Helper()
	m, store := testManager(t)
	s, _, err := m.Create("work", 1, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range notes {
		if err := s.CreateNote(p); err != nil {
			t.Fatalf("CreateNote(%s): %v", p, err)
		}
	}
	return filepath.Join(store.Root(), "work"), m, testDB(t)
}

func mustStore(t *testing.T, root string) *storage.FS {
	t.Helper()
	store, err := storage.NewOS(root)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func errorLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func startWatch(t *testing.T, db *DB, m *notebook.Manager, cb EventCallback) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, db, m, errorLogger(), cb)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
}

func TestWatcher_LeafEditIndexed(t *testing.T) {
	dir, m, db := watcherTestEnv(t, "todo.txt")

	var mu sync.Mutex
	var events []string
	startWatch(t, db, m, func(kind, nb, path string) {
		mu.Lock()
		events = append(events, kind+":"+nb+"/"+path)
		mu.Unlock()
	})

	_ = os.WriteFile(filepath.Join(dir, "todo.txt"), []byte("# Todo\nbuy milk"), 0o600)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("work", "todo.txt")
		return cs != ""
	}, "tree leaf not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:work/todo.txt" {
				return true
			}
		}
		return false
	}, "expected created:work/todo.txt callback")
}

func TestWatcher_IgnoresUntrackedFiles(t *testing.T) {
	dir, m, db := watcherTestEnv(t, "real.md")
	startWatch(t, db, m, nil)

	_ = os.WriteFile(filepath.Join(filepath.Dir(dir), "loose.md"), []byte("# Loose"), 0o600)
	_ = os.WriteFile(filepath.Join(dir, "stray.md"), []byte("# Stray"), 0o600)
	_ = os.WriteFile(filepath.Join(dir, "real.md"), []byte("# Real"), 0o600)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("work", "real.md")
		return cs != ""
	}, "note not indexed")

	time.Sleep(reconcileDelay + 100*time.Millisecond)
	if cs, _ := db.GetChecksum("work", "stray.md"); cs != "" {
		t.Error("file outside the tree was indexed")
	}
	names, _ := db.Notebooks()
	if len(names) != 1 || names[0] != "work" {
		t.Errorf("Notebooks = %v, want [work]", names)
	}
}

func TestWatcher_TreeChangeFromAnotherWriter(t *testing.T) {
	_, m, db := watcherTestEnv(t)
	startWatch(t, db, m, nil)

	// A second manager on the same root stands in for another process.
	other := notebook.NewManager(mustStore(t, m.Root()), notebook.WithLogger(quietLogger()))
	if err := other.Update("work", func(s *notebook.Session) error {
		if err := s.CreateNote("sub/deep.md"); err != nil {
			return err
		}
		return s.WriteNote("sub/deep.md", []byte("# Deep"))
	}); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("work", "sub/deep.md")
		return cs != ""
	}, "note added by another writer not indexed")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	dir, m, db := watcherTestEnv(t, "del.md")
	if err := IndexNote(db, "work", "del.md", nil); err != nil {
		t.Fatal(err)
	}

	startWatch(t, db, m, nil)
	_ = os.Remove(filepath.Join(dir, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("work", "del.md")
		return cs == ""
	}, "deleted file still in index")
}

func TestWatcher_RenameKeepsTreeMembership(t *testing.T) {
	dir, m, db := watcherTestEnv(t, "todo.txt", "old.md")
	s, err := m.Load("work")
	if err != nil {
		t.Fatal(err)
	}
	if err := SyncNotebook(db, s, quietLogger()); err != nil {
		t.Fatal(err)
	}

	startWatch(t, db, m, nil)
	_ = os.WriteFile(filepath.Join(dir, "stray.md"), []byte("# Stray"), 0o600)
	_ = os.Rename(filepath.Join(dir, "old.md"), filepath.Join(dir, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("work", "old.md")
		return cs == ""
	}, "renamed-away leaf still indexed")

	time.Sleep(reconcileDelay + 200*time.Millisecond)
	all, _ := db.AllChecksums("work")
	for _, p := range []string{"note.md", "todo.txt"} {
		if _, ok := all[p]; !ok {
			t.Errorf("tree leaf %s dropped from index: %v", p, all)
		}
	}
	for _, p := range []string{"renamed.md", "stray.md"} {
		if _, ok := all[p]; ok {
			t.Errorf("untracked %s indexed: %v", p, all)
		}
	}
}
