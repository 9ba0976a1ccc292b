package handler

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-exchange/internal/logger"
	"tg-exchange/internal/models"
	"tg-exchange/internal/service"
)

// admin commands are removed after this delay, everyone else's at once
const commandDelete = 3 * time.Second

// handleCommand runs group commands. It reports whether the message was a
// command of this bot.
func (h *Handler) handleCommand(ctx *th.Context, message telego.Message) (bool, error) {
	if !isGroup(message.Chat) || message.From == nil {
		return false, nil
	}
	cmd, args, ok := parseCommand(message.Text)
	if !ok {
		return false, nil
	}

	gid := message.Chat.ID
	switch {
	case cmd == "version" && gid == h.cfg.Exchange.TestGroupID:
		return true, h.commandVersion(ctx, message)
	case gid == h.cfg.Exchange.TestGroupID || !h.store.IsManaged(gid):
		return false, nil
	case cmd == "config":
		h.commandConfig(ctx, message, args)
		return true, nil
	case cmd == "config_"+strings.ToLower(h.cfg.Exchange.Sender):
		return true, h.commandConfigDirect(ctx, message, args)
	}
	return false, nil
}

// commandConfig asks CONFIG for a settings session: /config <sender>
func (h *Handler) commandConfig(ctx *th.Context, message telego.Message, args []string) {
	gid, aid := message.Chat.ID, message.From.ID
	admin := h.store.IsAdmin(gid, aid)
	if admin {
		h.reports.DeleteLater(gid, message.MessageID, "command", commandDelete)
	} else {
		h.reports.DeleteLater(gid, message.MessageID, "command", 0)
		return
	}

	if len(args) != 1 || !strings.EqualFold(args[0], h.cfg.Exchange.Sender) {
		return
	}
	err := h.svc.RequestConfig(ctx, gid, aid)
	switch {
	case errors.Is(err, service.ErrConfigLocked):
		logger.Debugf("Config session of group %d is locked", gid)
	case err != nil:
		incrementCounter(totalErrors)
		logger.Warningf("Request config of group %d: %v", gid, err)
	}
}

// commandConfigDirect changes the config from the group:
// /config_<sender> show|default|<flag> on|off
func (h *Handler) commandConfigDirect(ctx *th.Context, message telego.Message, args []string) error {
	gid, aid := message.Chat.ID, message.From.ID
	h.reports.DeleteLater(gid, message.MessageID, "command", 0)
	if !h.store.IsAdmin(gid, aid) {
		return nil
	}

	text, ok := h.svc.ChangeConfig(ctx, gid, aid, args)
	if text == "" {
		return nil
	}
	ttl := h.cfg.Engine.ReportDelete
	if !ok {
		ttl /= 2
	}
	_, err := h.reports.Send(ctx, gid, text, 0, ttl)
	return err
}

// commandVersion answers in the test group
func (h *Handler) commandVersion(ctx *th.Context, message telego.Message) error {
	text := fmt.Sprintf("%s: <code>%s</code>\n%s: <code>%s</code>\n%s: <code>%s</code>\n<pre>%s</pre>",
		models.T("project"), html.EscapeString(h.cfg.Exchange.ProjectName),
		models.T("version"), html.EscapeString(h.version),
		models.T("uptime"), time.Since(startTime).Truncate(time.Second),
		html.EscapeString(strings.TrimSpace(GetDetailedStatus())))
	_, err := h.reports.Send(ctx, message.Chat.ID, text, message.MessageID, h.cfg.Engine.ReportDelete)
	return err
}
