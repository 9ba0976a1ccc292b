package platform

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// The Bot API refuses to delete messages older than this.
const deletableFor = 48 * time.Hour

type memberKey struct {
	ChatID int64
	UserID int64
}

// MessageIndex remembers recent message ids per chat member so their history
// can be purged later.
type MessageIndex struct {
	mu    sync.Mutex
	cache *expirable.LRU[memberKey, []int]
	limit int
}

func NewMessageIndex(size, perMember int) *MessageIndex {
	return &MessageIndex{
		cache: expirable.NewLRU[memberKey, []int](size, nil, deletableFor),
		limit: perMember,
	}
}

func (x *MessageIndex) Record(chatID, userID int64, messageID int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	key := memberKey{chatID, userID}
	ids, _ := x.cache.Get(key)
	ids = append(ids, messageID)
	if len(ids) > x.limit {
		ids = ids[len(ids)-x.limit:]
	}
	x.cache.Add(key, ids)
}

// Peek returns the recorded ids of a member and keeps them.
func (x *MessageIndex) Peek(chatID, userID int64) []int {
	x.mu.Lock()
	defer x.mu.Unlock()
	ids, _ := x.cache.Peek(memberKey{chatID, userID})
	return append([]int(nil), ids...)
}

// Forget drops ids that are gone. Ids recorded since the Peek stay.
func (x *MessageIndex) Forget(chatID, userID int64, gone []int) {
	if len(gone) == 0 {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	key := memberKey{chatID, userID}
	ids, ok := x.cache.Peek(key)
	if !ok {
		return
	}
	drop := make(map[int]struct{}, len(gone))
	for _, id := range gone {
		drop[id] = struct{}{}
	}
	kept := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		x.cache.Remove(key)
		return
	}
	x.cache.Add(key, kept)
}
