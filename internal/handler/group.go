package handler

import (
	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-exchange/internal/engine"
	"tg-exchange/internal/logger"
	"tg-exchange/internal/models"
)

// handleNewMembers starts managing groups the bot was added to and checks
// every other newcomer.
func (h *Handler) handleNewMembers(ctx *th.Context, message telego.Message) error {
	gid := message.Chat.ID
	selfID := h.client.SelfID()
	for _, u := range message.NewChatMembers {
		if u.ID == selfID {
			return h.svc.JoinGroup(ctx, gid)
		}
	}

	if !h.store.IsManaged(gid) || h.store.IsDeclared(gid, message.MessageID) {
		return nil
	}
	cfg, ok := h.store.Config(gid)
	if !ok || cfg.SubscribeAction() == models.ActionNone {
		return nil
	}

	// the join message is the evidence only when it names a single user
	mid := 0
	if len(message.NewChatMembers) == 1 {
		mid = message.MessageID
	}
	for _, u := range message.NewChatMembers {
		if u.IsBot {
			continue
		}
		out, err := h.engine.HandleJoin(ctx, engine.Evidence{
			GroupID:   gid,
			UserID:    u.ID,
			MessageID: mid,
			Level:     "level_subscribe",
			Rule:      models.T("rule_join"),
		})
		if err != nil {
			incrementCounter(totalErrors)
			logger.Warningf("Check join of user %d in group %d: %v", u.ID, gid, err)
			continue
		}
		if out == engine.JoinEnforced {
			incrementCounter(totalEnforcements)
		}
		logger.Debugf("Join of user %d in group %d: %v", u.ID, gid, out)
	}
	return nil
}

// handleMyChatMemberUpdate follows the bot's own membership in groups
func (h *Handler) handleMyChatMemberUpdate(ctx *th.Context, update telego.Update) error {
	u := update.MyChatMember
	if u == nil || !isGroup(u.Chat) {
		return nil
	}
	gid := u.Chat.ID
	status := u.NewChatMember.MemberStatus()
	logger.Infof("Bot status in chat %d changed to %s by %d", gid, status, u.From.ID)

	switch status {
	case telego.MemberStatusLeft, telego.MemberStatusBanned:
		h.svc.ForgetGroup(ctx, gid)
	case telego.MemberStatusMember, telego.MemberStatusAdministrator:
		if gid != h.cfg.Exchange.TestGroupID && !h.store.IsManaged(gid) {
			return h.svc.JoinGroup(ctx, gid)
		}
	}
	return nil
}
