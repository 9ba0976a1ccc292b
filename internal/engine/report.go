package engine

import (
	"context"
	"fmt"
	"html"
	"strings"

	"tg-exchange/internal/logger"
	"tg-exchange/internal/models"
	"tg-exchange/internal/platform"
)

func code(v any) string {
	return "<code>" + html.EscapeString(fmt.Sprint(v)) + "</code>"
}

func field(b *strings.Builder, key, value string) {
	b.WriteString(models.T(key))
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}

func (e *Engine) header(b *strings.Builder) {
	name := html.EscapeString(e.opts.ProjectName)
	if e.opts.ProjectLink != "" {
		name = fmt.Sprintf("<a href=\"%s\">%s</a>", e.opts.ProjectLink, name)
	}
	field(b, "project", name)
}

func actionName(a models.Action) string {
	return models.T("action_" + string(a))
}

func (e *Engine) evidenceText(ev Evidence) string {
	var b strings.Builder
	e.header(&b)
	field(&b, "group_id", code(ev.GroupID))
	field(&b, "user_id", code(ev.UserID))
	field(&b, "level", code(models.T(ev.Level)))
	field(&b, "rule", code(ev.Rule))
	if ev.MessageID != 0 {
		field(&b, "message_id", code(ev.MessageID))
	}
	return b.String()
}

// reportText lists the outcome in every group in one message.
func (e *Engine) reportText(uid int64, rule string, evidenceID int, results []ChatResult) string {
	var b strings.Builder
	e.header(&b)
	field(&b, "user_id", code(uid))
	field(&b, "rule", code(rule))
	if evidenceID != 0 && e.opts.LoggingChannelID != 0 {
		link := models.NewGroupInfo(e.opts.LoggingChannelID, "", "").MessageLink(evidenceID)
		field(&b, "evidence", fmt.Sprintf("<a href=\"%s\">%d</a>", link, evidenceID))
	}
	for _, r := range results {
		status := models.T("succeeded")
		if r.Err != nil {
			status = models.T("failed")
		}
		fmt.Fprintf(&b, "%s · %s · %s\n", code(r.GroupID), actionName(r.Action), status)
	}
	return b.String()
}

// debug posts text on the debug channel without blocking the caller.
func (e *Engine) debug(name, text string) {
	if e.opts.DebugChannelID == 0 {
		return
	}
	e.pool.Submit(name, func(ctx context.Context) {
		res := platform.Call(ctx, e.sup, "engine.debug", func(ctx context.Context) (int, error) {
			return e.client.SendMessage(ctx, e.opts.DebugChannelID, text, platform.SendOptions{HTML: true, Silent: true})
		})
		if !res.OK() {
			logger.Warningf("Send debug report failed: %v", res.Err)
		}
	})
}

// record writes one audit row per attempted group.
func (e *Engine) record(origin, uid int64, rule string, evidenceID int, results []ChatResult) {
	if e.audit == nil {
		return
	}
	for _, r := range results {
		rec := &models.EnforcementRecord{
			GroupID:       r.GroupID,
			UserID:        uid,
			OriginGroupID: origin,
			Action:        string(r.Action),
			Rule:          rule,
			EvidenceID:    evidenceID,
			Succeeded:     r.Err == nil,
		}
		if r.Err != nil {
			rec.Error = r.Err.Error()
		}
		if err := e.audit.Record(rec); err != nil {
			logger.Warningf("Error creating enforcement record: %v", err)
		}
	}
}
