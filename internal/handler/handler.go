// Package handler turns Telegram updates into calls on the engine, the
// service and the exchange routers.
package handler

import (
	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-exchange/internal/config"
	"tg-exchange/internal/engine"
	"tg-exchange/internal/exchange"
	"tg-exchange/internal/ledger"
	"tg-exchange/internal/platform"
	"tg-exchange/internal/retry"
	"tg-exchange/internal/service"
	"tg-exchange/internal/storage"
	"tg-exchange/internal/tasks"
)

// Recorder remembers recent message ids per user for history purges.
type Recorder interface {
	Record(chatID, userID int64, messageID int)
}

type Deps struct {
	Store      *storage.Store
	Engine     *engine.Engine
	Service    *service.Service
	Ledger     *ledger.Ledger
	Reports    *service.Reports
	Client     platform.Client
	Supervisor *retry.Supervisor
	Pool       *tasks.Pool
	Recorder   Recorder

	// Exchange handles posts on the exchange channel, Emergency those on
	// the hide channel.
	Exchange  *exchange.Router
	Emergency *exchange.Router
}

type Handler struct {
	cfg     *config.Config
	version string

	store    *storage.Store
	engine   *engine.Engine
	svc      *service.Service
	ledger   *ledger.Ledger
	reports  *service.Reports
	client   platform.Client
	sup      *retry.Supervisor
	pool     *tasks.Pool
	recorder Recorder

	exchange  *exchange.Router
	emergency *exchange.Router
}

func New(cfg *config.Config, version string, deps Deps) *Handler {
	return &Handler{
		cfg:       cfg,
		version:   version,
		store:     deps.Store,
		engine:    deps.Engine,
		svc:       deps.Service,
		ledger:    deps.Ledger,
		reports:   deps.Reports,
		client:    deps.Client,
		sup:       deps.Supervisor,
		pool:      deps.Pool,
		recorder:  deps.Recorder,
		exchange:  deps.Exchange,
		emergency: deps.Emergency,
	}
}

// Setup configures all bot message and update handlers
func (h *Handler) Setup(bh *th.BotHandler) {
	bh.HandleChannelPost(func(ctx *th.Context, message telego.Message) error {
		incrementCounter(totalChannelPosts)
		return h.handleChannelPost(ctx, message)
	})

	bh.HandleMessage(func(ctx *th.Context, message telego.Message) error {
		incrementCounter(totalMessagesProcessed)
		if ok, err := h.handleCommand(ctx, message); ok {
			return err
		}
		return h.handleIncomingMessage(ctx, message)
	})

	bh.Handle(func(ctx *th.Context, update telego.Update) error {
		incrementCounter(totalChatMemberUpdates)
		return h.handleMyChatMemberUpdate(ctx, update)
	}, th.AnyMyChatMember())
}
