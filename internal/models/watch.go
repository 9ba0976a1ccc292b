package models

import "time"

// WatchKind selects one of the two watch lists.
type WatchKind string

const (
	WatchBan    WatchKind = "ban"
	WatchDelete WatchKind = "delete"
)

// WatchList maps users to the unix time their watch ends. Expired entries are
// dropped lazily when looked up.
type WatchList struct {
	Ban    map[int64]int64 `json:"ban"`
	Delete map[int64]int64 `json:"delete"`
}

func NewWatchList() WatchList {
	return WatchList{
		Ban:    make(map[int64]int64),
		Delete: make(map[int64]int64),
	}
}

func (w *WatchList) list(kind WatchKind) map[int64]int64 {
	if kind == WatchBan {
		return w.Ban
	}
	return w.Delete
}

// Add records a watch until the given time.
func (w *WatchList) Add(kind WatchKind, userID int64, until time.Time) {
	w.list(kind)[userID] = until.Unix()
}

// Remove drops the user from one list, or both when kind is empty.
func (w *WatchList) Remove(kind WatchKind, userID int64) bool {
	if kind == "" {
		_, b := w.Ban[userID]
		_, d := w.Delete[userID]
		delete(w.Ban, userID)
		delete(w.Delete, userID)
		return b || d
	}
	l := w.list(kind)
	if _, ok := l[userID]; !ok {
		return false
	}
	delete(l, userID)
	return true
}

// Contains reports whether the watch is active at now. The second result is
// true when an expired entry was removed.
func (w *WatchList) Contains(kind WatchKind, userID int64, now time.Time) (bool, bool) {
	l := w.list(kind)
	until, ok := l[userID]
	if !ok {
		return false, false
	}
	if now.Unix() >= until {
		delete(l, userID)
		return false, true
	}
	return true, false
}

func (w *WatchList) Normalize() {
	if w.Ban == nil {
		w.Ban = make(map[int64]int64)
	}
	if w.Delete == nil {
		w.Delete = make(map[int64]int64)
	}
}
