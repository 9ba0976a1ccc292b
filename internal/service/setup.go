// Package service holds what this node does besides enforcement itself:
// handling envelopes from other nodes, managing groups, periodic jobs and the
// short-lived reports posted in groups.
package service

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"tg-exchange/internal/config"
	"tg-exchange/internal/engine"
	"tg-exchange/internal/ledger"
	"tg-exchange/internal/locks"
	"tg-exchange/internal/logger"
	"tg-exchange/internal/platform"
	"tg-exchange/internal/retry"
	"tg-exchange/internal/storage"
	"tg-exchange/internal/tasks"
)

// Transport publishes envelopes, fetches received attachments and owns the
// hidden mode flag.
type Transport interface {
	ledger.Publisher
	Fetch(ctx context.Context, fileID string, decrypt bool) (string, error)
	Hidden() bool
	SetHidden(v bool)
}

// Counter answers how many actions were applied recently.
type Counter interface {
	CountSince(t time.Time) (int64, error)
}

type Deps struct {
	Store      *storage.Store
	Engine     *engine.Engine
	Ledger     *ledger.Ledger
	Transport  Transport
	Client     platform.Client
	Supervisor *retry.Supervisor
	Pool       *tasks.Pool
	Locks      *locks.Set
	Reports    *Reports

	// Counter is optional.
	Counter Counter
}

type Service struct {
	cfg       *config.Config
	store     *storage.Store
	engine    *engine.Engine
	ledger    *ledger.Ledger
	transport Transport
	client    platform.Client
	sup       *retry.Supervisor
	pool      *tasks.Pool
	locks     *locks.Set
	reports   *Reports
	counter   Counter

	started time.Time
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	shared  *expirable.LRU[string, struct{}]
	jobs    *scheduler
}

func New(cfg *config.Config, deps Deps) *Service {
	return &Service{
		cfg:       cfg,
		store:     deps.Store,
		engine:    deps.Engine,
		ledger:    deps.Ledger,
		transport: deps.Transport,
		client:    deps.Client,
		sup:       deps.Supervisor,
		pool:      deps.Pool,
		locks:     deps.Locks,
		reports:   deps.Reports,
		counter:   deps.Counter,
		started:   time.Now(),
		now:       time.Now,
		sleep:     sleepCtx,
		shared:    expirable.NewLRU[string, struct{}](4096, nil, 24*time.Hour),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// InitRepositories migrates the audit tables when the database is enabled
// and returns the repositories, or nils without a database.
func InitRepositories() (*storage.EnforcementRepository, *storage.PendingMsgRepository) {
	if storage.DB == nil {
		return nil, nil
	}
	enforcement := storage.NewEnforcementRepository(storage.DB)
	if err := enforcement.MigrateTable(); err != nil {
		logger.Warningf("Error migrating EnforcementRecord table: %v", err)
	}
	pending := storage.NewPendingMsgRepository(storage.DB)
	if err := pending.MigrateTable(); err != nil {
		logger.Warningf("Error migrating PendingMessage table: %v", err)
	}
	return enforcement, pending
}

// debug posts text on the debug channel from a worker.
func (s *Service) debug(name, text string) {
	if s.cfg.Exchange.DebugChannelID == 0 {
		return
	}
	s.pool.Submit(name, func(ctx context.Context) {
		res := platform.Call(ctx, s.sup, "service.debug", func(ctx context.Context) (int, error) {
			return s.client.SendMessage(ctx, s.cfg.Exchange.DebugChannelID, text, platform.SendOptions{HTML: true, Silent: true})
		})
		if !res.OK() {
			logger.Warningf("Send debug message failed: %v", res.Err)
		}
	})
}

// groupText starts a debug message about a group.
func (s *Service) groupText(ctx context.Context, gid int64) *textBuilder {
	info, err := s.client.ChatInfo(ctx, gid)
	if err != nil {
		logger.Debugf("Get info of group %d: %v", gid, err)
	}
	b := s.projectText()
	b.field("group_name", info.GetLinkedGroupName())
	b.field("group_id", code(gid))
	return b
}

func (s *Service) projectText() *textBuilder {
	b := &textBuilder{}
	name := escape(s.cfg.Exchange.ProjectName)
	if link := s.cfg.Exchange.ProjectLink; link != "" {
		name = linkTo(link, s.cfg.Exchange.ProjectName)
	}
	b.field("project", name)
	return b
}
