package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"tg-exchange/internal/exchange"
	"tg-exchange/internal/locks"
	"tg-exchange/internal/logger"
	"tg-exchange/internal/models"
)

// Preview is a message with links, as seen in a managed group.
type Preview struct {
	GroupID   int64    `json:"group_id"`
	UserID    int64    `json:"user_id"`
	MessageID int      `json:"message_id"`
	Text      string   `json:"text"`
	URLs      []string `json:"urls"`
}

// SharePreview sends the links of a message to the analyzers. A set of links
// is shared at most once a day.
func (s *Service) SharePreview(ctx context.Context, p Preview) (bool, error) {
	if len(p.URLs) == 0 || len(s.cfg.Exchange.Receivers.Preview) == 0 {
		return false, nil
	}
	urls := append([]string(nil), p.URLs...)
	sort.Strings(urls)
	key := strings.Join(urls, "\n")

	fresh := false
	s.locks.With(locks.Preview, func() {
		if s.shared.Contains(key) {
			return
		}
		s.shared.Add(key, struct{}{})
		fresh = true
	})
	if !fresh {
		return false, nil
	}

	path, err := s.writeJSON("preview-*.json", p)
	if err != nil {
		return false, err
	}
	defer removeFile(path)

	err = s.transport.Publish(ctx, s.cfg.Exchange.Receivers.Preview, exchange.ActionUpdate, exchange.TypePreview,
		exchange.PreviewPayload{GroupID: p.GroupID, UserID: p.UserID, MessageID: p.MessageID},
		&exchange.Attachment{Path: path})
	if err != nil {
		s.locks.With(locks.Preview, func() { s.shared.Remove(key) })
		return false, err
	}
	return true, nil
}

// TestEcho answers envelopes posted in the test group with what this node
// makes of them.
func (s *Service) TestEcho(ctx context.Context, gid int64, mid int, text string) bool {
	if gid == 0 || gid != s.cfg.Exchange.TestGroupID {
		return false
	}
	env, ok := exchange.Decode(text)
	if !ok {
		return false
	}

	var reply string
	s.locks.With(locks.Test, func() {
		data, err := sonic.ConfigStd.MarshalIndent(env.Data, "", "  ")
		if err != nil {
			data = []byte(fmt.Sprint(env.Data))
		}
		b := s.projectText().
			field("action", code(models.T("action_test"))).
			field("more", code(fmt.Sprintf("%s -> %s %s/%s", env.From, strings.Join(env.To, ","), env.Action, env.Type))).
			field("result", code(env.For(s.cfg.Exchange.Sender)))
		b.WriteString("<pre>" + escape(string(data)) + "</pre>")
		reply = b.String()
	})

	if _, err := s.reports.Send(ctx, gid, reply, mid, 5*time.Minute); err != nil {
		logger.Warningf("Echo in test group: %v", err)
	}
	return true
}
