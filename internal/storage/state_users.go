package storage

import (
	"strings"
	"time"

	"go.uber.org/multierr"

	"tg-exchange/internal/models"
)

func (s *Store) status(m map[int64]*models.UserStatus, uid int64) *models.UserStatus {
	u, ok := m[uid]
	if !ok {
		u = models.NewUserStatus()
		m[uid] = u
	}
	return u
}

// User returns a copy of the user's status.
func (s *Store) User(uid int64) (*models.UserStatus, bool) {
	var (
		out *models.UserStatus
		ok  bool
	)
	view(s.users, func(m map[int64]*models.UserStatus) {
		if u, found := m[uid]; found {
			out, ok = u.Clone(), true
		}
	})
	return out, ok
}

func (s *Store) IsBanned(gid, uid int64) bool {
	var ok bool
	view(s.users, func(m map[int64]*models.UserStatus) {
		if u, found := m[uid]; found {
			ok = u.Ban.Has(gid)
		}
	})
	return ok
}

func (s *Store) IsRestricted(gid, uid int64) bool {
	var ok bool
	view(s.users, func(m map[int64]*models.UserStatus) {
		if u, found := m[uid]; found {
			ok = u.Restrict.Has(gid)
		}
	})
	return ok
}

// MarkBanned adds gid to the user's ban set and reports whether it was new.
func (s *Store) MarkBanned(gid, uid int64) (bool, error) {
	added := false
	err := update(s, s.users, func(m *map[int64]*models.UserStatus) bool {
		added = s.status(*m, uid).Ban.Add(gid)
		return added
	})
	return added, err
}

func (s *Store) UnmarkBanned(gid, uid int64) error {
	return update(s, s.users, func(m *map[int64]*models.UserStatus) bool {
		u, ok := (*m)[uid]
		return ok && u.Ban.Remove(gid)
	})
}

// MarkRestricted adds gid to the user's restrict set and reports whether it
// was new.
func (s *Store) MarkRestricted(gid, uid int64) (bool, error) {
	added := false
	err := update(s, s.users, func(m *map[int64]*models.UserStatus) bool {
		added = s.status(*m, uid).Restrict.Add(gid)
		return added
	})
	return added, err
}

func (s *Store) UnmarkRestricted(gid, uid int64) error {
	return update(s, s.users, func(m *map[int64]*models.UserStatus) bool {
		u, ok := (*m)[uid]
		return ok && u.Restrict.Remove(gid)
	})
}

// ClearSanctions empties the user's ban and restrict sets, returning what
// they held.
func (s *Store) ClearSanctions(uid int64) (banned, restricted []int64, err error) {
	err = update(s, s.users, func(m *map[int64]*models.UserStatus) bool {
		u, ok := (*m)[uid]
		if !ok || (len(u.Ban) == 0 && len(u.Restrict) == 0) {
			return false
		}
		banned, restricted = u.Ban.Slice(), u.Restrict.Slice()
		u.Ban, u.Restrict = models.NewIDSet(), models.NewIDSet()
		return true
	})
	return banned, restricted, err
}

// SetScore stores the score a detector reported for a user.
func (s *Store) SetScore(uid int64, source string, score float64) error {
	source = strings.ToLower(source)
	return update(s, s.users, func(m *map[int64]*models.UserStatus) bool {
		u := s.status(*m, uid)
		if u.Score[source] == score {
			return false
		}
		u.Score[source] = score
		return true
	})
}

// ResetScore zeroes every score of a user.
func (s *Store) ResetScore(uid int64) error {
	return update(s, s.users, func(m *map[int64]*models.UserStatus) bool {
		u, ok := (*m)[uid]
		if !ok {
			return false
		}
		for k := range u.Score {
			u.Score[k] = 0
		}
		return true
	})
}

func (s *Store) Score(uid int64) float64 {
	var total float64
	view(s.users, func(m map[int64]*models.UserStatus) {
		if u, ok := m[uid]; ok {
			total = u.TotalScore()
		}
	})
	return total
}

func (s *Store) AddBadUser(uid int64) (bool, error) {
	added := false
	err := update(s, s.bad, func(b *models.BadIDs) bool {
		added = b.Users.Add(uid)
		return added
	})
	return added, err
}

func (s *Store) RemoveBadUser(uid int64) (bool, error) {
	removed := false
	err := update(s, s.bad, func(b *models.BadIDs) bool {
		removed = b.Users.Remove(uid)
		return removed
	})
	return removed, err
}

func (s *Store) IsBadUser(uid int64) bool {
	var ok bool
	view(s.bad, func(b models.BadIDs) { ok = b.Users.Has(uid) })
	return ok
}

func (s *Store) AddBadChannel(cid int64) (bool, error) {
	added := false
	err := update(s, s.bad, func(b *models.BadIDs) bool {
		added = b.Channels.Add(cid)
		return added
	})
	return added, err
}

func (s *Store) RemoveBadChannel(cid int64) (bool, error) {
	removed := false
	err := update(s, s.bad, func(b *models.BadIDs) bool {
		removed = b.Channels.Remove(cid)
		return removed
	})
	return removed, err
}

func (s *Store) IsBadChannel(cid int64) bool {
	var ok bool
	view(s.bad, func(b models.BadIDs) { ok = b.Channels.Has(cid) })
	return ok
}

func (s *Store) AddExceptChannel(cid int64) (bool, error) {
	added := false
	err := update(s, s.except, func(e *models.ExceptIDs) bool {
		added = e.Channels.Add(cid)
		return added
	})
	return added, err
}

func (s *Store) RemoveExceptChannel(cid int64) (bool, error) {
	removed := false
	err := update(s, s.except, func(e *models.ExceptIDs) bool {
		removed = e.Channels.Remove(cid)
		return removed
	})
	return removed, err
}

func (s *Store) IsExceptChannel(cid int64) bool {
	var ok bool
	view(s.except, func(e models.ExceptIDs) { ok = e.Channels.Has(cid) })
	return ok
}

// Forgive records that a group let the user back in and returns how many
// distinct groups have done so.
func (s *Store) Forgive(uid, gid int64) (int, error) {
	count := 0
	err := update(s, s.except, func(e *models.ExceptIDs) bool {
		set, ok := e.Temp[uid]
		if !ok {
			set = models.NewIDSet()
			e.Temp[uid] = set
		}
		added := set.Add(gid)
		count = len(set)
		return added
	})
	return count, err
}

func (s *Store) IsForgiven(uid, gid int64) bool {
	var ok bool
	view(s.except, func(e models.ExceptIDs) { ok = e.Temp[uid].Has(gid) })
	return ok
}

func (s *Store) ClearForgiven(uid int64) error {
	return update(s, s.except, func(e *models.ExceptIDs) bool {
		if _, ok := e.Temp[uid]; !ok {
			return false
		}
		delete(e.Temp, uid)
		return true
	})
}

func (s *Store) AddWatch(kind models.WatchKind, uid int64, until time.Time) error {
	return update(s, s.watch, func(w *models.WatchList) bool {
		w.Add(kind, uid, until)
		return true
	})
}

// RemoveWatch drops a user from one watch list, or from both when kind is
// empty.
func (s *Store) RemoveWatch(kind models.WatchKind, uid int64) error {
	return update(s, s.watch, func(w *models.WatchList) bool {
		return w.Remove(kind, uid)
	})
}

// IsWatched checks a watch entry, dropping it once expired.
func (s *Store) IsWatched(kind models.WatchKind, uid int64) bool {
	active := false
	_ = update(s, s.watch, func(w *models.WatchList) bool {
		var expired bool
		active, expired = w.Contains(kind, uid, s.now())
		return expired
	})
	return active
}

// ResetMonthly forgets bad users, temporary exceptions and user statuses,
// then records month as done. A month already recorded is skipped; the
// result reports whether the reset ran.
func (s *Store) ResetMonthly(month string) (bool, error) {
	if s.LastMonthlyReset() == month {
		return false, nil
	}
	err := multierr.Combine(
		update(s, s.bad, func(b *models.BadIDs) bool {
			b.Users = models.NewIDSet()
			return true
		}),
		update(s, s.except, func(e *models.ExceptIDs) bool {
			e.Temp = make(map[int64]models.IDSet)
			return true
		}),
		update(s, s.users, func(m *map[int64]*models.UserStatus) bool {
			*m = make(map[int64]*models.UserStatus)
			return true
		}),
	)
	if err != nil {
		return true, err
	}
	return true, update(s, s.reset, func(last *string) bool {
		*last = month
		return true
	})
}

// LastMonthlyReset returns the month of the last monthly reset, as
// "2006-01", or "" when none ran.
func (s *Store) LastMonthlyReset() string {
	var month string
	view(s.reset, func(m string) { month = m })
	return month
}

// IgnoredGroups lists managed groups whose subscription policy is off.
func (s *Store) IgnoredGroups() []int64 {
	set := models.NewIDSet()
	view(s.configs, func(m map[int64]*models.Config) {
		for gid, c := range m {
			if c.SubscribeAction() == models.ActionNone {
				set.Add(gid)
			}
		}
	})
	return set.Slice()
}
