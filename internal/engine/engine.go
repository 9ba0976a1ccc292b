// Package engine turns one moderation decision into the matching action in
// every group shared with the offending user.
package engine

import (
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"tg-exchange/internal/ledger"
	"tg-exchange/internal/locks"
	"tg-exchange/internal/models"
	"tg-exchange/internal/platform"
	"tg-exchange/internal/retry"
	"tg-exchange/internal/storage"
	"tg-exchange/internal/tasks"
)

var (
	ErrExcluded = errors.New("engine: user is excluded from enforcement")
	ErrDeclared = errors.New("engine: message already declared")
	ErrEvidence = errors.New("engine: evidence could not be recorded")
)

// Auditor keeps a durable trail of applied actions.
type Auditor interface {
	Record(record *models.EnforcementRecord) error
	MarkUnbanned(userID int64, unbannedBy string) error
}

type Options struct {
	ProjectName      string
	ProjectLink      string
	LoggingChannelID int64
	DebugChannelID   int64

	// ForgiveThreshold is how many distinct groups must let a banned user
	// back in before the user is unbanned everywhere.
	ForgiveThreshold int

	// BotIDs are the accounts of the other nodes; they are never enforced on.
	BotIDs []int64

	// ForgiveReceivers are told when a user is unbanned by forgiveness.
	ForgiveReceivers []string
}

type Deps struct {
	Store      *storage.Store
	Client     platform.Client
	Supervisor *retry.Supervisor
	Ledger     *ledger.Ledger
	Publisher  ledger.Publisher
	Pool       *tasks.Pool
	Locks      *locks.Set

	// Audit is optional.
	Audit Auditor
}

type Engine struct {
	opts   Options
	store  *storage.Store
	client platform.Client
	sup    *retry.Supervisor
	ledger *ledger.Ledger
	pub    ledger.Publisher
	pool   *tasks.Pool
	locks  *locks.Set
	audit  Auditor

	bots   models.IDSet
	helped *expirable.LRU[int64, struct{}]
}

func New(opts Options, deps Deps) *Engine {
	if opts.ForgiveThreshold < 1 {
		opts.ForgiveThreshold = 3
	}
	return &Engine{
		opts:   opts,
		store:  deps.Store,
		client: deps.Client,
		sup:    deps.Supervisor,
		ledger: deps.Ledger,
		pub:    deps.Publisher,
		pool:   deps.Pool,
		locks:  deps.Locks,
		audit:  deps.Audit,
		bots:   models.NewIDSet(opts.BotIDs...),
		helped: expirable.NewLRU[int64, struct{}](4096, nil, 24*time.Hour),
	}
}

// Excluded reports whether uid must never be acted upon in gid: this bot,
// the other nodes, and the group's admins and trusted users.
func (e *Engine) Excluded(gid, uid int64) bool {
	return uid == e.client.SelfID() ||
		e.bots.Has(uid) ||
		e.store.IsAdmin(gid, uid) ||
		e.store.IsTrusted(gid, uid)
}

// Suspect reports whether a user is a known offender: shared as bad, watched
// for bans, or above the score threshold.
func (e *Engine) Suspect(uid int64) bool {
	return e.store.IsBadUser(uid) ||
		e.store.IsWatched(models.WatchBan, uid) ||
		e.store.Score(uid) >= models.HighScore
}
