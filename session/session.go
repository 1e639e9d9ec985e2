// Package session is the root object of one experiment directory. A session
// owns the .ndx metadata directory (SQLite document database, identity
// file), the registered DAQ systems, and the time synchronization graph
// built from their epochs.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ndx-io/NDX/daq"
	"github.com/ndx-io/NDX/daq/navigator"
	"github.com/ndx-io/NDX/db"
	"github.com/ndx-io/NDX/document"
	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/ido"
	"github.com/ndx-io/NDX/sym"
	"github.com/ndx-io/NDX/timesync"
)

// Session metadata lives under <dir>/.ndx.
const (
	DotDir   = ".ndx"
	dbName   = "ndx.db"
	metaName = "session.json"
)

// meta is the on-disk identity of a session.
type meta struct {
	ID        string    `json:"id"`
	Ref       string    `json:"ref"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is one open experiment directory.
type Session struct {
	ref    string
	dir    string
	id     string
	conn   *sql.DB
	store  *document.Store
	graph  *timesync.Graph
	rules  *timesync.Registry
	logger *zap.SugaredLogger

	mu       sync.RWMutex
	systems  map[string]*daq.System
	order    []string
	watchers []*navigator.Watcher
	onChange []func()
}

// New opens the session in dir, creating the .ndx directory, database, and
// identity file on first use. An existing session's reference must match
// ref.
func New(ref, dir string, logger *zap.SugaredLogger) (*Session, error) {
	if ref == "" {
		return nil, errors.NewInvalidRequestError("session reference is empty")
	}
	if dir == "" {
		return nil, errors.NewInvalidRequestError("session directory is empty")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	dot := filepath.Join(dir, DotDir)
	if err := os.MkdirAll(dot, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", dot)
	}

	m, err := loadMeta(filepath.Join(dot, metaName))
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = &meta{ID: ido.New(), Ref: ref, CreatedAt: time.Now().UTC()}
		if err := writeMeta(filepath.Join(dot, metaName), m); err != nil {
			return nil, err
		}
		logger.Infow("Session created",
			"symbol", sym.Session,
			"session_id", m.ID,
			"ref", ref,
			"dir", dir,
		)
	} else if m.Ref != ref {
		return nil, errors.NewInvalidRequestError(
			"directory %s holds session %q, not %q", dir, m.Ref, ref)
	}

	conn, err := db.OpenWithMigrations(filepath.Join(dot, dbName), logger)
	if err != nil {
		return nil, err
	}

	return &Session{
		ref:     m.Ref,
		dir:     dir,
		id:      m.ID,
		conn:    conn,
		store:   document.NewStore(conn, logger),
		graph:   timesync.NewGraph(nil, logger),
		rules:   timesync.NewRegistry(),
		logger:  logger,
		systems: make(map[string]*daq.System),
	}, nil
}

// IsSessionDir reports whether dir holds an initialized session.
func IsSessionDir(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, DotDir, metaName))
	return err == nil && info.Mode().IsRegular()
}

// Open opens an existing session, reading the reference from its identity
// file. A directory never initialized as a session is ErrNotFound.
func Open(dir string, logger *zap.SugaredLogger) (*Session, error) {
	m, err := loadMeta(filepath.Join(dir, DotDir, metaName))
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "no session in %s", dir)
	}
	return New(m.Ref, dir, logger)
}

func loadMeta(path string) (*meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var m meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if !ido.IsValid(m.ID) {
		return nil, errors.NewInvalidRequestError("session file %s has invalid id %q", path, m.ID)
	}
	return &m, nil
}

func writeMeta(path string, m *meta) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal session meta")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write %s", path)
}

// ID returns the session's persistent identifier.
func (s *Session) ID() string { return s.id }

// Ref returns the human reference the session was created under.
func (s *Session) Ref() string { return s.ref }

// Dir returns the experiment directory.
func (s *Session) Dir() string { return s.dir }

// Store returns the session's document store.
func (s *Session) Store() *document.Store { return s.store }

// Graph returns the session's sync graph.
func (s *Session) Graph() *timesync.Graph { return s.graph }

// Rules returns the session's rule registry, used to rebuild persisted
// rules.
func (s *Session) Rules() *timesync.Registry { return s.rules }

// DB exposes the underlying database connection for stats and maintenance.
func (s *Session) DB() *sql.DB { return s.conn }

// Close stops watchers and closes the database.
func (s *Session) Close() error {
	s.mu.Lock()
	watchers := s.watchers
	s.watchers = nil
	s.mu.Unlock()

	var firstErr error
	for _, w := range watchers {
		if err := w.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.conn.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// AddDAQSystem registers an acquisition system under its name and appends
// its sync rules to the graph's rule list, in the given order.
func (s *Session) AddDAQSystem(sys *daq.System, rules ...timesync.Rule) error {
	if sys == nil {
		return errors.NewInvalidRequestError("daq system is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.systems[sys.Name()]; ok {
		return errors.Wrapf(errors.ErrAlreadyExists, "daq system %s", sys.Name())
	}
	s.systems[sys.Name()] = sys
	s.order = append(s.order, sys.Name())
	for _, r := range rules {
		s.graph.AddRule(r)
	}
	return nil
}

// DAQSystem returns a registered system by name.
func (s *Session) DAQSystem(name string) (*daq.System, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sys, ok := s.systems[name]
	return sys, ok
}

// DAQSystems returns the registered systems in registration order.
func (s *Session) DAQSystems() []*daq.System {
	s.mu.RLock()
	defer s.mu.RUnlock()
	systems := make([]*daq.System, 0, len(s.order))
	for _, name := range s.order {
		systems = append(systems, s.systems[name])
	}
	return systems
}

// WatchDAQSystem starts a filesystem watcher on a system's epoch root.
// Directory changes invalidate the system's epoch cache and the affected
// graph nodes. The watcher runs until Close.
func (s *Session) WatchDAQSystem(name string) error {
	sys, ok := s.DAQSystem(name)
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "daq system %s", name)
	}
	w, err := navigator.NewWatcher(sys.Navigator())
	if err != nil {
		return err
	}
	w.OnChange(func(epochDirs []string) {
		for _, dir := range epochDirs {
			s.InvalidateEpoch(name, dir)
		}
	})
	w.Start()

	s.mu.Lock()
	s.watchers = append(s.watchers, w)
	s.mu.Unlock()
	return nil
}

// OnGraphChange registers a callback invoked after epoch invalidation
// changes the sync graph. Callbacks run on the watcher goroutine and must
// not block.
func (s *Session) OnGraphChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *Session) notifyGraphChange() {
	s.mu.RLock()
	callbacks := make([]func(), len(s.onChange))
	copy(callbacks, s.onChange)
	s.mu.RUnlock()
	for _, fn := range callbacks {
		fn()
	}
}

// InvalidateEpoch drops a system's cached epoch table and removes the
// epoch's clock nodes from the sync graph.
func (s *Session) InvalidateEpoch(systemName, epochID string) {
	sys, ok := s.DAQSystem(systemName)
	if !ok {
		return
	}
	sys.Invalidate()

	device := sys.DeviceID()
	for _, node := range s.graph.Nodes() {
		if node.Device == device && node.Epoch == epochID {
			s.graph.InvalidateNode(node)
		}
	}
	s.logger.Infow("Epoch invalidated",
		"symbol", sym.Epoch,
		"system", systemName,
		"epoch", epochID,
	)
	s.notifyGraphChange()
}

// BuildSyncGraph registers every epoch clock node from every system and
// runs rule discovery over all epoch pairs. Discovery order follows system
// registration order, then epoch order, so rebuilt graphs are identical
// run to run. A mapping conflicting with an existing edge aborts the build
// with a *timesync.ConflictingMappingError.
func (s *Session) BuildSyncGraph(ctx context.Context) error {
	var metas []timesync.EpochMeta
	for _, sys := range s.DAQSystems() {
		epochs, err := sys.Epochs(ctx)
		if err != nil {
			return err
		}
		for _, ep := range epochs {
			m := ep.SyncMeta()
			if err := s.graph.AddEpoch(m); err != nil {
				return err
			}
			metas = append(metas, m)
		}
	}

	discovered := 0
	for i := 0; i < len(metas); i++ {
		for j := i + 1; j < len(metas); j++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, by, err := s.graph.Discover(metas[i], metas[j])
			if err != nil {
				return err
			}
			if by != "" {
				discovered++
			}
		}
	}

	s.logger.Infow("Sync graph built",
		"symbol", sym.Session,
		"epochs", len(metas),
		"nodes", s.graph.NodeCount(),
		"edges", s.graph.EdgeCount(),
		"discovered", discovered,
	)
	return nil
}
