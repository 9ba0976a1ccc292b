package handler

import (
	"context"
	"errors"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-exchange/internal/engine"
	"tg-exchange/internal/exchange"
	"tg-exchange/internal/logger"
	"tg-exchange/internal/models"
	"tg-exchange/internal/platform"
	"tg-exchange/internal/service"
)

type verdictKind int

const (
	pass verdictKind = iota
	enforce
	remove
)

// verdict is what the local checks decided about one group message. rule is
// a translation key.
type verdict struct {
	kind verdictKind
	rule string
}

// handleChannelPost feeds exchange and hide channel posts to their routers.
func (h *Handler) handleChannelPost(ctx *th.Context, message telego.Message) error {
	var router *exchange.Router
	switch message.Chat.ID {
	case h.cfg.Exchange.ExchangeChannelID:
		router = h.exchange
	case h.cfg.Exchange.HideChannelID:
		router = h.emergency
	default:
		return nil
	}
	var fileID string
	if message.Document != nil {
		fileID = message.Document.FileID
	}
	if status := router.DispatchPost(ctx, messageText(message), fileID); status == exchange.HandlerFailed {
		incrementCounter(totalErrors)
	}
	return nil
}

// handleIncomingMessage processes new messages in groups
func (h *Handler) handleIncomingMessage(ctx *th.Context, message telego.Message) error {
	if !isGroup(message.Chat) {
		return nil
	}
	gid := message.Chat.ID

	if gid == h.cfg.Exchange.TestGroupID {
		h.svc.TestEcho(ctx, gid, message.MessageID, messageText(message))
		return nil
	}
	if len(message.NewChatMembers) > 0 {
		return h.handleNewMembers(ctx, message)
	}
	if !h.store.IsManaged(gid) {
		return nil
	}
	if message.From != nil && !message.From.IsBot && h.recorder != nil {
		h.recorder.Record(gid, message.From.ID, message.MessageID)
	}

	v := h.inspect(message)
	switch v.kind {
	case enforce:
		h.enforce(ctx, message, v.rule)
	case remove:
		h.remove(ctx, message, v.rule)
	default:
		h.sharePreview(message)
	}
	return nil
}

// inspect runs the local checks on a group message.
func (h *Handler) inspect(m telego.Message) verdict {
	gid, mid := m.Chat.ID, m.MessageID
	if h.store.IsDeclared(gid, mid) {
		return verdict{}
	}

	// posted on behalf of a channel
	if m.SenderChat != nil && m.SenderChat.ID != gid {
		cid := m.SenderChat.ID
		if h.store.IsBadChannel(cid) && !h.store.IsExceptChannel(cid) {
			return verdict{kind: remove, rule: "rule_bad_channel"}
		}
		return verdict{}
	}

	if m.From == nil || m.From.IsBot {
		return verdict{}
	}
	uid := m.From.ID
	if h.engine.Excluded(gid, uid) || h.store.IsForgiven(uid, gid) {
		return verdict{}
	}
	cfg, ok := h.store.Config(gid)
	if !ok {
		return verdict{}
	}

	fuid, fcid := forwardSource(m)
	rule := ""
	switch {
	case h.store.IsBadUser(uid):
		rule = "rule_bad_user"
	case fuid != 0 && h.store.IsBadUser(fuid):
		rule = "rule_bad_forward"
	case fcid != 0 && h.store.IsBadChannel(fcid) && !h.store.IsExceptChannel(fcid):
		rule = "rule_bad_channel"
	case h.store.IsWatched(models.WatchBan, uid) && h.store.Score(uid) >= models.HighScore:
		rule = "rule_watch_ban"
	}
	if rule != "" {
		if cfg.SubscribeAction() == models.ActionNone {
			return verdict{}
		}
		return verdict{kind: enforce, rule: rule}
	}

	if cfg.Delete && h.store.IsWatched(models.WatchDelete, uid) && (fuid != 0 || fcid != 0 || len(messageURLs(m)) > 0) {
		return verdict{kind: remove, rule: "rule_watch_delete"}
	}
	return verdict{}
}

func (h *Handler) enforce(ctx context.Context, m telego.Message, rule string) {
	ev := engine.Evidence{
		GroupID:   m.Chat.ID,
		UserID:    m.From.ID,
		MessageID: m.MessageID,
		Level:     "level_subscribe",
		Rule:      models.T(rule),
	}
	rep, err := h.engine.EnforceGlobally(ctx, ev)
	switch {
	case errors.Is(err, engine.ErrExcluded), errors.Is(err, engine.ErrDeclared):
		logger.Debugf("Skip enforcing user %d in group %d: %v", ev.UserID, ev.GroupID, err)
	case err != nil:
		incrementCounter(totalErrors)
		logger.Warningf("Enforce user %d in group %d: %v", ev.UserID, ev.GroupID, err)
	default:
		incrementCounter(totalEnforcements)
		logger.Infof("User %d enforced from group %d (%s): %d groups, %d failed",
			ev.UserID, ev.GroupID, rule, len(rep.Results), rep.Failed())
	}
}

// remove deletes a single message and declares it.
func (h *Handler) remove(ctx context.Context, m telego.Message, rule string) {
	gid, mid := m.Chat.ID, m.MessageID
	res := platform.Exec(ctx, h.sup, "handler.delete", func(ctx context.Context) error {
		return h.client.DeleteMessages(ctx, gid, []int{mid})
	})
	if !res.OK() {
		incrementCounter(totalErrors)
		logger.Warningf("Delete message %d in group %d: %v", mid, gid, res.Err)
		return
	}
	incrementCounter(totalEnforcements)
	logger.Infof("Deleted message %d in group %d (%s)", mid, gid, rule)
	if err := h.ledger.Declare(ctx, gid, mid); err != nil {
		logger.Warningf("Declare message %d in group %d: %v", mid, gid, err)
	}
}

func (h *Handler) sharePreview(m telego.Message) {
	if m.From == nil || m.From.IsBot || h.engine.Excluded(m.Chat.ID, m.From.ID) {
		return
	}
	urls := messageURLs(m)
	if len(urls) == 0 {
		return
	}
	p := service.Preview{
		GroupID:   m.Chat.ID,
		UserID:    m.From.ID,
		MessageID: m.MessageID,
		Text:      messageText(m),
		URLs:      urls,
	}
	h.pool.Submit("preview", func(ctx context.Context) {
		if _, err := h.svc.SharePreview(ctx, p); err != nil {
			logger.Warningf("Share preview of message %d in group %d: %v", p.MessageID, p.GroupID, err)
		}
	})
}
