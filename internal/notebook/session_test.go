package notebook

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arond1/jotter/internal/apperr"
	"github.com/arond1/jotter/internal/storage"
	"github.com/arond1/jotter/internal/tree"
)

func openNotebook(t *testing.T, name string) (*Manager, *Session, *storage.FS, *testClock) {
	t.Helper()
	m, store, clk := testManager(t)
	s, _, err := m.Create(name, 1, false)
	require.NoError(t, err)
	return m, s, store, clk
}

func TestCreateDirectoryNested(t *testing.T) {
	m, s, store, _ := openNotebook(t, "work")

	require.NoError(t, s.CreateDirectory("a/b"))
	assert.True(t, store.IsDir("work/a"))
	assert.True(t, store.IsDir("work/a/b"))

	n, ok := tree.Get(s.Tree(), "a")
	require.True(t, ok)
	assert.True(t, n.IsBranch())
	n, ok = tree.Get(s.Tree(), "a/b")
	require.True(t, ok)
	assert.True(t, n.IsBranch())
	assert.True(t, n.Branch().Empty())

	reloaded, err := m.Load("work")
	require.NoError(t, err)
	assert.True(t, tree.Equal(s.Tree(), reloaded.Tree()))
}

func TestCreateDirectoryKeepsChildren(t *testing.T) {
	_, s, _, _ := openNotebook(t, "work")
	require.NoError(t, s.CreateNote("a/x.md"))
	require.NoError(t, s.CreateDirectory("a"))

	n, ok := tree.Get(s.Tree(), "a/x.md")
	require.True(t, ok)
	assert.True(t, n.Present())
}

func TestCreateNoteWithParents(t *testing.T) {
	m, s, store, _ := openNotebook(t, "work")

	require.NoError(t, s.CreateNote("deep/er/todo.md"))
	assert.True(t, store.Exists("work/deep/er/todo.md"))
	assert.Equal(t, `{"note.md":true,"deep":{"er":{"todo.md":true}}}`, treeJSON(t, s.Tree()))

	reloaded, err := m.Load("work")
	require.NoError(t, err)
	assert.Equal(t, treeJSON(t, s.Tree()), treeJSON(t, reloaded.Tree()))
}

func TestCreateNoteKeepsContent(t *testing.T) {
	_, s, _, _ := openNotebook(t, "work")
	require.NoError(t, s.WriteNote("note.md", []byte("# keep")))
	require.NoError(t, s.CreateNote("note.md"))

	data, err := s.ReadNote("note.md")
	require.NoError(t, err)
	assert.Equal(t, "# keep", string(data))
}

func TestRenameNote(t *testing.T) {
	m, s, store, _ := openNotebook(t, "work")
	require.NoError(t, s.CreateNote("notes/todo.md"))

	np, err := s.RenameNote("notes/todo.md", "done.md")
	require.NoError(t, err)
	assert.Equal(t, "notes/done.md", np)
	assert.False(t, store.Exists("work/notes/todo.md"))
	assert.True(t, store.Exists("work/notes/done.md"))

	_, ok := tree.Get(s.Tree(), "notes/todo.md")
	assert.False(t, ok)
	n, ok := tree.Get(s.Tree(), "notes/done.md")
	require.True(t, ok)
	assert.True(t, n.Present())

	reloaded, err := m.Load("work")
	require.NoError(t, err)
	_, ok = tree.Get(reloaded.Tree(), "notes/done.md")
	assert.True(t, ok)
}

func TestRenameDirectoryMovesSubtree(t *testing.T) {
	_, s, store, _ := openNotebook(t, "work")
	require.NoError(t, s.CreateNote("drafts/a.md"))
	require.NoError(t, s.CreateNote("drafts/b.md"))

	np, err := s.RenameNote("drafts", "final")
	require.NoError(t, err)
	assert.Equal(t, "final", np)
	assert.True(t, store.Exists("work/final/a.md"))
	assert.Equal(t, `{"note.md":true,"final":{"a.md":true,"b.md":true}}`, treeJSON(t, s.Tree()))
}

func TestRenameFailuresKeepTree(t *testing.T) {
	_, s, _, _ := openNotebook(t, "work")
	require.NoError(t, s.CreateNote("other.md"))
	before := s.Tree()

	_, err := s.RenameNote("ghost.md", "x.md")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.RenameNote("note.md", "other.md")
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	for _, bad := range []string{"", "..", "a/b", "../up.md"} {
		_, err = s.RenameNote("note.md", bad)
		assert.ErrorIs(t, err, apperr.ErrInvalidPath, "new name %q", bad)
	}

	assert.Same(t, before, s.Tree())
}

func TestDeleteNote(t *testing.T) {
	m, s, store, _ := openNotebook(t, "work")
	require.NoError(t, s.CreateNote("gone.md"))

	require.NoError(t, s.DeleteNote("gone.md"))
	assert.False(t, store.Exists("work/gone.md"))

	reloaded, err := m.Load("work")
	require.NoError(t, err)
	_, ok := tree.Get(reloaded.Tree(), "gone.md")
	assert.False(t, ok)
}

func TestDeleteNoteMissingFileIsNotPersisted(t *testing.T) {
	m, s, store, _ := openNotebook(t, "work")
	require.NoError(t, s.CreateNote("gone.md"))
	require.NoError(t, os.Remove(filepath.Join(store.Root(), "work", "gone.md")))

	err := s.DeleteNote("gone.md")
	require.Error(t, err)

	_, ok := tree.Get(s.Tree(), "gone.md")
	assert.False(t, ok, "entry stays removed in memory")

	reloaded, err := m.Load("work")
	require.NoError(t, err)
	_, ok = tree.Get(reloaded.Tree(), "gone.md")
	assert.True(t, ok, "document on disk still lists the entry")
}

func TestDeleteDirectory(t *testing.T) {
	_, s, store, _ := openNotebook(t, "work")
	require.NoError(t, s.CreateDirectory("empty"))
	require.NoError(t, s.CreateNote("full/x.md"))

	require.NoError(t, s.DeleteDirectory("empty"))
	assert.False(t, store.Exists("work/empty"))

	err := s.DeleteDirectory("full")
	assert.ErrorIs(t, err, apperr.ErrNotEmpty)
	assert.True(t, store.Exists("work/full/x.md"))
}

func TestReservedAndTraversalPaths(t *testing.T) {
	_, s, _, _ := openNotebook(t, "work")
	before := s.Tree()

	for _, p := range []string{"../escape.md", "a/../../b", "", "/", DocumentFile} {
		assert.ErrorIs(t, s.CreateNote(p), apperr.ErrInvalidPath, "note %q", p)
		assert.ErrorIs(t, s.CreateDirectory(p), apperr.ErrInvalidPath, "dir %q", p)
	}
	_, err := s.ReadNote("../../notebooks.json")
	assert.ErrorIs(t, err, apperr.ErrInvalidPath)
	assert.Same(t, before, s.Tree())
}

func TestNonUTF8NamesRejected(t *testing.T) {
	m, s, store, _ := openNotebook(t, "work")
	require.NoError(t, s.CreateNote("ok.md"))
	before := s.Tree()

	assert.ErrorIs(t, s.CreateNote("\xff.md"), apperr.ErrInvalidPath)
	assert.ErrorIs(t, s.CreateNote("dir/\xfe\xfd.md"), apperr.ErrInvalidPath)
	assert.ErrorIs(t, s.CreateDirectory("\xff"), apperr.ErrInvalidPath)
	_, err := s.RenameNote("ok.md", "\xff.md")
	assert.ErrorIs(t, err, apperr.ErrInvalidPath)
	assert.Same(t, before, s.Tree())

	entries, err := os.ReadDir(filepath.Join(store.Root(), "work"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "\xff")
	}
	assert.False(t, store.Exists("work/dir"))

	reloaded, err := m.Load("work")
	require.NoError(t, err)
	problems, err := reloaded.Verify()
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestReadWriteNote(t *testing.T) {
	_, s, _, clk := openNotebook(t, "work")
	created := s.Notebook().Updated

	clk.advance(time.Hour)
	require.NoError(t, s.WriteNote("note.md", []byte("hello")))
	assert.Greater(t, s.Notebook().Updated, created)

	data, err := s.ReadNote("note.md")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = s.ReadNote("missing.md")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.ErrorIs(t, s.WriteNote("untracked.md", []byte("x")), apperr.ErrNotFound)
}

func TestVerify(t *testing.T) {
	_, s, store, _ := openNotebook(t, "work")
	require.NoError(t, s.CreateNote("kept.md"))
	require.NoError(t, s.CreateNote("lost.md"))
	require.NoError(t, s.CreateDirectory("dir"))

	problems, err := s.Verify()
	require.NoError(t, err)
	assert.Empty(t, problems)

	root := filepath.Join(store.Root(), "work")
	require.NoError(t, os.Remove(filepath.Join(root, "lost.md")))
	require.NoError(t, os.Remove(filepath.Join(root, "dir")))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dir"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.md"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".DS_Store"), nil, 0o600))

	problems, err = s.Verify()
	require.NoError(t, err)
	assert.ElementsMatch(t, []Problem{
		{Path: "lost.md", Kind: ProblemMissing},
		{Path: "dir", Kind: ProblemWrongKind},
		{Path: "stray.md", Kind: ProblemUntracked},
	}, problems)
}

var errDisk = errors.New("disk full")

// flakyStore fails document saves once failSave is set.
type flakyStore struct {
	storage.Provider
	failSave *atomic.Bool
}

func (f flakyStore) Sub(dir string) (storage.Provider, error) {
	sub, err := f.Provider.Sub(dir)
	if err != nil {
		return nil, err
	}
	return flakyStore{Provider: sub, failSave: f.failSave}, nil
}

func (f flakyStore) SaveJSON(p string, v any, c storage.Codec) error {
	if f.failSave.Load() {
		return errDisk
	}
	return f.Provider.SaveJSON(p, v, c)
}

func TestPersistenceFailureIsReported(t *testing.T) {
	base, err := storage.NewOS(t.TempDir())
	require.NoError(t, err)
	fail := &atomic.Bool{}
	m := NewManager(flakyStore{Provider: base, failSave: fail}, WithLogger(quietLogger()))

	s, _, err := m.Create("work", 1, false)
	require.NoError(t, err)

	fail.Store(true)
	err = s.CreateNote("new.md")
	assert.ErrorIs(t, err, errDisk)
	assert.True(t, base.Exists("work/new.md"), "file step already happened")

	fail.Store(false)
	reloaded, err := m.Load("work")
	require.NoError(t, err)
	_, ok := tree.Get(reloaded.Tree(), "new.md")
	assert.False(t, ok)

	fail.Store(true)
	_, _, err = m.Create("second", 1, false)
	assert.ErrorIs(t, err, errDisk)
}
