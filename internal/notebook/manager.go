// Package notebook keeps each notebook's metadata tree in step with its
// directory on disk and owns the notebook lifecycle: creation, loading and
// persistence after every mutation.
package notebook

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/arond1/jotter/internal/apperr"
	"github.com/arond1/jotter/internal/models"
	"github.com/arond1/jotter/internal/storage"
	"github.com/arond1/jotter/internal/tree"
)

// AllUsers disables the owner filter of List.
const AllUsers = -1

// Option configures a Manager.
type Option func(*Manager)

// WithCodec sets how registry and notebook documents are stored.
func WithCodec(c storage.Codec) Option {
	return func(m *Manager) { m.codec = c }
}

// WithDefaultNote sets the name of the note seeded into new notebooks.
func WithDefaultNote(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.defaultNote = name
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// Manager creates and loads notebooks below one storage root. Documents are
// never cached: every Load and Registry call reads from disk.
//
// Within one process, Create and Update serialize access per notebook name.
// Other processes writing the same root are not coordinated with.
type Manager struct {
	store       storage.Provider
	codec       storage.Codec
	defaultNote string
	now         func() time.Time
	logger      *slog.Logger

	regMu sync.Mutex
	locks lockTable
}

// NewManager returns a Manager rooted at store.
func NewManager(store storage.Provider, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		defaultNote: DefaultNote,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root returns the absolute storage root directory.
func (m *Manager) Root() string { return m.store.Root() }

// Registry loads the registry. A missing registry is empty.
func (m *Manager) Registry() (models.Registry, error) {
	reg := models.Registry{}
	if err := m.store.LoadJSON(RegistryFile, &reg, m.codec); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.Registry{}, nil
		}
		return nil, fmt.Errorf("notebook: load registry: %w", err)
	}
	if reg == nil {
		reg = models.Registry{}
	}
	return reg, nil
}

func (m *Manager) saveRegistry(reg models.Registry) error {
	if err := m.store.SaveJSON(RegistryFile, reg, m.codec); err != nil {
		return fmt.Errorf("notebook: save registry: %w", err)
	}
	return nil
}

// List returns the registered notebooks sorted by name. With a userID other
// than AllUsers only that user's notebooks are returned.
func (m *Manager) List(userID int) ([]models.NotebookSummary, error) {
	reg, err := m.Registry()
	if err != nil {
		return nil, err
	}
	out := make([]models.NotebookSummary, 0, len(reg))
	for name, e := range reg {
		if userID != AllUsers && e.User != userID {
			continue
		}
		out = append(out, models.NotebookSummary{Name: name, User: e.User})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Create registers and initializes a new notebook: its directory, the
// default note and the notebook document. The returned bool reports whether
// a new notebook was made.
//
// Creating a name that is already registered by the same owner is not an
// error: the existing notebook is loaded, its visibility updated, and both
// documents are saved again. Another owner gets ErrForbidden and nothing is
// written.
func (m *Manager) Create(name string, owner int, public bool) (*Session, bool, error) {
	if err := ValidateName(name); err != nil {
		return nil, false, err
	}

	m.regMu.Lock()
	defer m.regMu.Unlock()
	unlock := m.locks.lock(name)
	defer unlock()

	reg, err := m.Registry()
	if err != nil {
		return nil, false, err
	}

	if _, ok := reg[name]; ok {
		s, err := m.load(name)
		if err != nil {
			return nil, false, err
		}
		if s.doc.User != owner {
			return nil, false, fmt.Errorf("notebook: %s belongs to another user: %w", name, apperr.ErrForbidden)
		}
		s.doc.Public = public
		if err := m.saveRegistry(reg); err != nil {
			return nil, false, err
		}
		return s, false, s.Save()
	}

	if err := m.store.MkdirAll(name); err != nil {
		return nil, false, fmt.Errorf("notebook: create %s: %w", name, err)
	}
	sub, err := m.store.Sub(name)
	if err != nil {
		return nil, false, fmt.Errorf("notebook: create %s: %w", name, err)
	}
	if err := sub.Touch(m.defaultNote); err != nil {
		return nil, false, fmt.Errorf("notebook: seed %s: %w", name, err)
	}

	now := m.now().Unix()
	doc := &models.Notebook{
		Created: now,
		Updated: now,
		User:    owner,
		Public:  public,
		Tree:    tree.Set(tree.NewBranch(), m.defaultNote, tree.Leaf(true)),
	}
	reg[name] = models.RegistryEntry{User: owner}

	if err := m.saveRegistry(reg); err != nil {
		return nil, false, err
	}
	if err := sub.SaveJSON(DocumentFile, doc, m.codec); err != nil {
		return nil, false, fmt.Errorf("notebook: save %s: %w", name, err)
	}

	m.logger.Info("notebook: created",
		slog.String("notebook", name),
		slog.Int("user", owner),
		slog.Bool("public", public))
	return m.session(name, sub, doc), true, nil
}

// Load reads a notebook document from disk. Names containing ".." are
// rejected before any file is touched.
func (m *Manager) Load(name string) (*Session, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return m.load(name)
}

// Update loads the named notebook while holding its lock and passes the
// session to fn. The lock is released when fn returns.
func (m *Manager) Update(name string, fn func(*Session) error) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	unlock := m.locks.lock(name)
	defer unlock()

	s, err := m.load(name)
	if err != nil {
		return err
	}
	return fn(s)
}

func (m *Manager) load(name string) (*Session, error) {
	if !m.store.IsDir(name) {
		return nil, fmt.Errorf("notebook: %s: %w", name, apperr.ErrNotFound)
	}
	sub, err := m.store.Sub(name)
	if err != nil {
		return nil, fmt.Errorf("notebook: open %s: %w", name, err)
	}
	doc := &models.Notebook{}
	if err := sub.LoadJSON(DocumentFile, doc, m.codec); err != nil {
		return nil, fmt.Errorf("notebook: load %s: %w", name, err)
	}
	if doc.Tree == nil {
		doc.Tree = tree.NewBranch()
	}
	return m.session(name, sub, doc), nil
}

func (m *Manager) session(name string, sub storage.Provider, doc *models.Notebook) *Session {
	return &Session{
		name:   name,
		store:  sub,
		mirror: NewMirror(sub),
		doc:    doc,
		codec:  m.codec,
		now:    m.now,
		logger: m.logger,
	}
}

// lockTable hands out one mutex per notebook name. Entries are never
// removed, so the table only grows with the names seen by this process.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (t *lockTable) lock(name string) func() {
	t.mu.Lock()
	if t.locks == nil {
		t.locks = make(map[string]*sync.Mutex)
	}
	l, ok := t.locks[name]
	if !ok {
		l = &sync.Mutex{}
		t.locks[name] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}
