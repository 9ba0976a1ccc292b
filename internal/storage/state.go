package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/multierr"

	"tg-exchange/internal/logger"
	"tg-exchange/internal/models"
)

// Table names a persisted table. The name is also its file name under the
// data directory; the last-known-good copy lives next to it with a dot prefix.
type Table string

const (
	TableAdmins  Table = "admin_ids"
	TableBad     Table = "bad_ids"
	TableConfigs Table = "configs"
	TableExcept  Table = "except_ids"
	TableLack    Table = "lack_group_ids"
	TableLeft    Table = "left_group_ids"
	TableTrust   Table = "trust_ids"
	TableUsers   Table = "user_ids"
	TableWatch   Table = "watch_ids"
	TableReset   Table = "reset_month"
)

// Tables lists every persisted table.
var Tables = []Table{
	TableAdmins, TableBad, TableConfigs, TableExcept, TableLack,
	TableLeft, TableTrust, TableUsers, TableWatch, TableReset,
}

type persister interface {
	load(dir string) error
	save(dir string) error
	restore(dir string, raw []byte) error
}

type table[T any] struct {
	name  Table
	mu    sync.RWMutex
	data  T
	fresh func() T
	fix   func(*T)
}

func newTable[T any](name Table, fresh func() T, fix func(*T)) *table[T] {
	return &table[T]{name: name, fresh: fresh, fix: fix, data: fresh()}
}

func (t *table[T]) paths(dir string) (primary, backup string) {
	return filepath.Join(dir, string(t.name)), filepath.Join(dir, "."+string(t.name))
}

func readTable[T any](path string) (T, error) {
	var v T
	raw, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	if err := sonic.ConfigStd.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", path, err)
	}
	return v, nil
}

// load reads the primary file, falling back to the backup. A table with
// neither file starts empty; a table whose files both exist but fail to
// decode is reported as ErrCorrupted.
func (t *table[T]) load(dir string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	primary, backup := t.paths(dir)
	data, perr := readTable[T](primary)
	if perr == nil {
		t.set(data)
		return nil
	}
	if !errors.Is(perr, os.ErrNotExist) {
		logger.Warningf("Load %s failed, trying backup: %v", t.name, perr)
	}

	data, berr := readTable[T](backup)
	if berr == nil {
		if !errors.Is(perr, os.ErrNotExist) {
			logger.Warningf("Restored %s from backup", t.name)
		}
		t.set(data)
		return t.persist(dir)
	}

	if errors.Is(perr, os.ErrNotExist) && errors.Is(berr, os.ErrNotExist) {
		t.data = t.fresh()
		return t.persist(dir)
	}
	return fmt.Errorf("%w: %s: primary: %v; backup: %v", ErrCorrupted, t.name, perr, berr)
}

func (t *table[T]) set(data T) {
	if t.fix != nil {
		t.fix(&data)
	}
	t.data = data
}

// restore replaces the table with raw, which must decode as the table type.
func (t *table[T]) restore(dir string, raw []byte) error {
	var data T
	if err := sonic.ConfigStd.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupted, t.name, err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.set(data)
	return t.persist(dir)
}

func (t *table[T]) save(dir string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.persist(dir)
}

// persist writes the backup first, then the primary. Caller holds t.mu.
func (t *table[T]) persist(dir string) error {
	raw, err := sonic.ConfigStd.Marshal(t.data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", t.name, err)
	}
	primary, backup := t.paths(dir)
	if err := writeAtomic(backup, raw); err != nil {
		return err
	}
	return writeAtomic(primary, raw)
}

// update runs fn under the table's write lock and persists when fn reports a
// change.
func update[T any](s *Store, t *table[T], fn func(*T) bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !fn(&t.data) {
		return nil
	}
	if err := t.persist(s.dir); err != nil {
		logger.Errorf("Save %s failed: %v", t.name, err)
		return err
	}
	return nil
}

func view[T any](t *table[T], fn func(T)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn(t.data)
}

// Store is the process-local state of the node. Every table is guarded by its
// own lock and written to disk right after each change.
type Store struct {
	dir string

	admins  *table[map[int64]models.IDSet]
	trust   *table[map[int64]models.IDSet]
	configs *table[map[int64]*models.Config]
	bad     *table[models.BadIDs]
	except  *table[models.ExceptIDs]
	users   *table[map[int64]*models.UserStatus]
	watch   *table[models.WatchList]
	lack    *table[models.IDSet]
	left    *table[models.IDSet]
	reset   *table[string]

	registry map[Table]persister

	// not persisted
	memMu    sync.Mutex
	declared map[int64]models.IDSet
	recorded map[int64]models.IDSet

	now func() time.Time
}

// Open loads every table from dir. It fails with ErrCorrupted when a table
// cannot be read from either its primary or its backup file.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{
		dir:      dir,
		admins:   newTable(TableAdmins, groupSets, fixGroupSets),
		trust:    newTable(TableTrust, groupSets, fixGroupSets),
		configs:  newTable(TableConfigs, func() map[int64]*models.Config { return make(map[int64]*models.Config) }, fixConfigs),
		bad:      newTable(TableBad, models.NewBadIDs, (*models.BadIDs).Normalize),
		except:   newTable(TableExcept, models.NewExceptIDs, (*models.ExceptIDs).Normalize),
		users:    newTable(TableUsers, func() map[int64]*models.UserStatus { return make(map[int64]*models.UserStatus) }, fixUsers),
		watch:    newTable(TableWatch, models.NewWatchList, (*models.WatchList).Normalize),
		lack:     newTable(TableLack, func() models.IDSet { return models.NewIDSet() }, fixSet),
		left:     newTable(TableLeft, func() models.IDSet { return models.NewIDSet() }, fixSet),
		reset:    newTable(TableReset, func() string { return "" }, nil),
		declared: make(map[int64]models.IDSet),
		recorded: make(map[int64]models.IDSet),
		now:      time.Now,
	}
	s.registry = map[Table]persister{
		TableAdmins:  s.admins,
		TableBad:     s.bad,
		TableConfigs: s.configs,
		TableExcept:  s.except,
		TableLack:    s.lack,
		TableLeft:    s.left,
		TableTrust:   s.trust,
		TableUsers:   s.users,
		TableWatch:   s.watch,
		TableReset:   s.reset,
	}

	for _, name := range Tables {
		if err := s.registry[name].load(dir); err != nil {
			return nil, err
		}
	}

	s.syncGroups()

	logger.Infof("State loaded from %s", dir)
	return s, nil
}

// Save writes one table to disk.
func (s *Store) Save(name Table) error {
	p, ok := s.registry[name]
	if !ok {
		return fmt.Errorf("unknown table %q", name)
	}
	return p.save(s.dir)
}

// Restore replaces one table with the content of a backup file. Data that does
// not decode is rejected with ErrCorrupted and the table is left untouched.
func (s *Store) Restore(name Table, path string) error {
	p, ok := s.registry[name]
	if !ok {
		return fmt.Errorf("unknown table %q", name)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := p.restore(s.dir, raw); err != nil {
		return err
	}
	if name == TableAdmins {
		s.syncGroups()
	}
	logger.Infof("Table %s restored from %s", name, path)
	return nil
}

// SaveAll writes every table, collecting all failures.
func (s *Store) SaveAll() error {
	var err error
	for _, name := range Tables {
		err = multierr.Append(err, s.registry[name].save(s.dir))
	}
	return err
}

// Path returns the primary file of a table.
func (s *Store) Path(name Table) string {
	return filepath.Join(s.dir, string(name))
}

// syncGroups makes the declared and recorded ids follow the managed groups.
func (s *Store) syncGroups() {
	managed := models.NewIDSet(s.GroupIDs()...)
	s.memMu.Lock()
	defer s.memMu.Unlock()
	for gid := range managed {
		if _, ok := s.declared[gid]; !ok {
			s.declared[gid] = models.NewIDSet()
		}
		if _, ok := s.recorded[gid]; !ok {
			s.recorded[gid] = models.NewIDSet()
		}
	}
	for gid := range s.declared {
		if !managed.Has(gid) {
			delete(s.declared, gid)
			delete(s.recorded, gid)
		}
	}
}

func groupSets() map[int64]models.IDSet {
	return make(map[int64]models.IDSet)
}

func fixGroupSets(m *map[int64]models.IDSet) {
	if *m == nil {
		*m = groupSets()
	}
	for gid, set := range *m {
		if set == nil {
			(*m)[gid] = models.NewIDSet()
		}
	}
}

func fixConfigs(m *map[int64]*models.Config) {
	if *m == nil {
		*m = make(map[int64]*models.Config)
	}
	for gid, c := range *m {
		if c == nil {
			def := models.DefaultConfig()
			(*m)[gid] = &def
		}
	}
}

func fixUsers(m *map[int64]*models.UserStatus) {
	if *m == nil {
		*m = make(map[int64]*models.UserStatus)
	}
	models.NormalizeUsers(*m)
}

func fixSet(s *models.IDSet) {
	if *s == nil {
		*s = models.NewIDSet()
	}
}
