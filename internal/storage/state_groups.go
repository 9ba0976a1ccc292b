package storage

import (
	"go.uber.org/multierr"

	"tg-exchange/internal/models"
)

// InitGroup starts managing a group with the default config. It reports
// whether the group was new.
func (s *Store) InitGroup(gid int64) (bool, error) {
	added := false
	err := update(s, s.admins, func(m *map[int64]models.IDSet) bool {
		if _, ok := (*m)[gid]; ok {
			return false
		}
		(*m)[gid] = models.NewIDSet()
		added = true
		return true
	})
	if err != nil || !added {
		return added, err
	}

	err = multierr.Combine(
		update(s, s.trust, func(m *map[int64]models.IDSet) bool {
			if _, ok := (*m)[gid]; ok {
				return false
			}
			(*m)[gid] = models.NewIDSet()
			return true
		}),
		update(s, s.configs, func(m *map[int64]*models.Config) bool {
			if _, ok := (*m)[gid]; ok {
				return false
			}
			def := models.DefaultConfig()
			(*m)[gid] = &def
			return true
		}),
		update(s, s.left, func(set *models.IDSet) bool { return set.Remove(gid) }),
	)

	s.memMu.Lock()
	s.declared[gid] = models.NewIDSet()
	s.recorded[gid] = models.NewIDSet()
	s.memMu.Unlock()

	return true, err
}

// PurgeGroup drops every record of a group the bot has left.
func (s *Store) PurgeGroup(gid int64) error {
	del := func(m *map[int64]models.IDSet) bool {
		if _, ok := (*m)[gid]; !ok {
			return false
		}
		delete(*m, gid)
		return true
	}
	err := multierr.Combine(
		update(s, s.admins, del),
		update(s, s.trust, del),
		update(s, s.configs, func(m *map[int64]*models.Config) bool {
			if _, ok := (*m)[gid]; !ok {
				return false
			}
			delete(*m, gid)
			return true
		}),
		update(s, s.lack, func(set *models.IDSet) bool { return set.Remove(gid) }),
		update(s, s.left, func(set *models.IDSet) bool { return set.Add(gid) }),
	)

	s.memMu.Lock()
	delete(s.declared, gid)
	delete(s.recorded, gid)
	s.memMu.Unlock()

	return err
}

// IsManaged reports whether the group has been initialized and not left.
func (s *Store) IsManaged(gid int64) bool {
	var ok bool
	view(s.admins, func(m map[int64]models.IDSet) { _, ok = m[gid] })
	return ok
}

// HasLeft reports whether the bot left the group before.
func (s *Store) HasLeft(gid int64) bool {
	var ok bool
	view(s.left, func(set models.IDSet) { ok = set.Has(gid) })
	return ok
}

// GroupIDs lists every managed group.
func (s *Store) GroupIDs() []int64 {
	var ids []int64
	view(s.admins, func(m map[int64]models.IDSet) {
		set := models.NewIDSet()
		for gid := range m {
			set.Add(gid)
		}
		ids = set.Slice()
	})
	return ids
}

func (s *Store) SetAdmins(gid int64, ids []int64) error {
	return update(s, s.admins, func(m *map[int64]models.IDSet) bool {
		(*m)[gid] = models.NewIDSet(ids...)
		return true
	})
}

func (s *Store) Admins(gid int64) models.IDSet {
	var out models.IDSet
	view(s.admins, func(m map[int64]models.IDSet) { out = m[gid].Clone() })
	return out
}

func (s *Store) IsAdmin(gid, uid int64) bool {
	var ok bool
	view(s.admins, func(m map[int64]models.IDSet) { ok = m[gid].Has(uid) })
	return ok
}

func (s *Store) SetTrusted(gid int64, ids []int64) error {
	return update(s, s.trust, func(m *map[int64]models.IDSet) bool {
		(*m)[gid] = models.NewIDSet(ids...)
		return true
	})
}

func (s *Store) IsTrusted(gid, uid int64) bool {
	var ok bool
	view(s.trust, func(m map[int64]models.IDSet) { ok = m[gid].Has(uid) })
	return ok
}

// Config returns a copy of the group's config.
func (s *Store) Config(gid int64) (models.Config, bool) {
	var (
		c  models.Config
		ok bool
	)
	view(s.configs, func(m map[int64]*models.Config) {
		if p, found := m[gid]; found {
			c, ok = *p, true
		}
	})
	return c, ok
}

// UpdateConfig applies fn to a managed group's config. Nothing is saved when
// fn fails.
func (s *Store) UpdateConfig(gid int64, fn func(*models.Config) error) error {
	var fnErr error
	err := update(s, s.configs, func(m *map[int64]*models.Config) bool {
		p, ok := (*m)[gid]
		if !ok {
			fnErr = ErrUnknownGroup
			return false
		}
		c := *p
		if fnErr = fn(&c); fnErr != nil {
			return false
		}
		(*m)[gid] = &c
		return true
	})
	if fnErr != nil {
		return fnErr
	}
	return err
}

// SetLack records whether the bot lacks permissions in a group. It reports
// whether the value changed.
func (s *Store) SetLack(gid int64, lacking bool) (bool, error) {
	changed := false
	err := update(s, s.lack, func(set *models.IDSet) bool {
		if lacking {
			changed = set.Add(gid)
		} else {
			changed = set.Remove(gid)
		}
		return changed
	})
	return changed, err
}

func (s *Store) IsLacking(gid int64) bool {
	var ok bool
	view(s.lack, func(set models.IDSet) { ok = set.Has(gid) })
	return ok
}

// IsDeclared reports whether a message was already handled by some node.
func (s *Store) IsDeclared(gid int64, mid int) bool {
	s.memMu.Lock()
	defer s.memMu.Unlock()
	return s.declared[gid].Has(int64(mid))
}

// Declare adds a message to the ledger of a managed group. It reports whether
// the message was new.
func (s *Store) Declare(gid int64, mid int) bool {
	s.memMu.Lock()
	defer s.memMu.Unlock()
	set, ok := s.declared[gid]
	if !ok {
		return false
	}
	return set.Add(int64(mid))
}

// Record marks a user as handled in a group for the current window. It
// reports whether the user was not recorded yet.
func (s *Store) Record(gid, uid int64) bool {
	s.memMu.Lock()
	defer s.memMu.Unlock()
	set, ok := s.recorded[gid]
	if !ok {
		set = models.NewIDSet()
		s.recorded[gid] = set
	}
	return set.Add(uid)
}

func (s *Store) Unrecord(gid, uid int64) {
	s.memMu.Lock()
	defer s.memMu.Unlock()
	s.recorded[gid].Remove(uid)
}

func (s *Store) IsRecorded(gid, uid int64) bool {
	s.memMu.Lock()
	defer s.memMu.Unlock()
	return s.recorded[gid].Has(uid)
}

// ResetRecorded starts a new rate window.
func (s *Store) ResetRecorded() {
	s.memMu.Lock()
	defer s.memMu.Unlock()
	for gid := range s.recorded {
		s.recorded[gid] = models.NewIDSet()
	}
}
