package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tg-exchange/internal/exchange"
	"tg-exchange/internal/logger"
	"tg-exchange/internal/models"
	"tg-exchange/internal/storage"
)

var ErrConfigLocked = errors.New("config session in progress")

// RequestConfig asks CONFIG to open a settings session for the group. Only
// one session may be requested per lock window.
func (s *Service) RequestConfig(ctx context.Context, gid, aid int64) error {
	now := s.now()
	var snapshot models.Config
	err := s.store.UpdateConfig(gid, func(c *models.Config) error {
		if c.Locked(now, s.cfg.Engine.ConfigLock) {
			return ErrConfigLocked
		}
		c.Lock = now.Unix()
		snapshot = *c
		return nil
	})
	if err != nil {
		return err
	}

	info, _ := s.client.ChatInfo(ctx, gid)
	err = s.transport.Publish(ctx, []string{exchange.Config}, exchange.ActionConfig, exchange.TypeAsk, exchange.ConfigAskPayload{
		ProjectName: s.cfg.Exchange.ProjectName,
		ProjectLink: s.cfg.Exchange.ProjectLink,
		GroupID:     gid,
		GroupName:   info.GroupName,
		GroupLink:   info.GroupLink,
		UserID:      aid,
		Config:      snapshot,
		Default:     models.DefaultConfig(),
	}, nil)
	if err != nil {
		return err
	}

	text := s.groupText(ctx, gid).
		field("admin_id", code(aid)).
		field("action", code(models.T("config_create")))
	s.debug("config-ask", text.String())
	return nil
}

// ChangeConfig applies a /config_user command: "show", "default" or
// "<flag> on|off". It returns the reply for the group and whether the
// command succeeded.
func (s *Service) ChangeConfig(ctx context.Context, gid, aid int64, args []string) (string, bool) {
	text := &textBuilder{}
	text.field("admin_id", code(aid))

	current, ok := s.store.Config(gid)
	if !ok {
		return "", false
	}
	if len(args) == 0 {
		text.field("status", code(models.T("config_invalid")))
		return text.String(), false
	}

	if strings.ToLower(args[0]) == "show" {
		text.field("action", code(models.T("config_show")))
		writeFlags(text, current)
		return text.String(), true
	}

	text.field("action", code(models.T("action_config")))
	if current.Locked(s.now(), s.cfg.Engine.ConfigLock) {
		text.field("status", code(models.T("config_locked")))
		return text.String(), false
	}

	var apply func(c *models.Config) error
	reason := "config_changed"
	switch cmd := strings.ToLower(args[0]); {
	case cmd == "default":
		apply = func(c *models.Config) error {
			*c = models.DefaultConfig()
			return nil
		}
		reason = "config_default"
	case len(args) == 2 && (args[1] == "on" || args[1] == "off"):
		apply = func(c *models.Config) error {
			return c.Set(models.Flag(cmd), args[1] == "on")
		}
	default:
		text.field("status", code(models.T("config_invalid")))
		return text.String(), false
	}

	changed := false
	err := s.store.UpdateConfig(gid, func(c *models.Config) error {
		before := *c
		if err := apply(c); err != nil {
			return err
		}
		changed = *c != before
		return nil
	})
	if err != nil {
		if !errors.Is(err, storage.ErrUnknownGroup) {
			logger.Warningf("Change config of group %d: %v", gid, err)
		}
		text.field("status", code(models.T("config_invalid")))
		return text.String(), false
	}

	if changed {
		debug := s.groupText(ctx, gid).
			field("admin_id", code(aid)).
			field("action", code(models.T("action_config"))).
			field("more", code(strings.Join(args, " ")))
		s.debug("config-change", debug.String())
	}
	text.field("status", code(models.T(reason)))
	return text.String(), true
}

func writeFlags(b *textBuilder, c models.Config) {
	for _, f := range c.Flags() {
		state := "disabled"
		if f.Value {
			state = "enabled"
		}
		b.field(fmt.Sprintf("flag_%s", f.Flag), models.T(state))
	}
}
