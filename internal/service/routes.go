package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/multierr"

	"tg-exchange/internal/exchange"
	"tg-exchange/internal/locks"
	"tg-exchange/internal/logger"
	"tg-exchange/internal/models"
	"tg-exchange/internal/storage"
)

func routes(senders []string, action, typ string) []exchange.Route {
	out := make([]exchange.Route, 0, len(senders))
	for _, from := range senders {
		out = append(out, exchange.Route{From: from, Action: action, Type: typ})
	}
	return out
}

func route(from, action, typ string) exchange.Route {
	return exchange.Route{From: from, Action: action, Type: typ}
}

// scoreSenders are the nodes whose scores are kept.
func scoreSenders() []string {
	out := make([]string, 0, len(models.ScoreSources))
	for _, s := range models.ScoreSources {
		out = append(out, strings.ToUpper(s))
	}
	return out
}

// Routers builds the exchange channel router, which takes envelopes addressed
// to this node, and the hide channel router, which takes those addressed to
// EMERGENCY.
func (s *Service) Routers() (exchangeRouter, emergencyRouter *exchange.Router, err error) {
	exchangeRouter = exchange.NewRouter(s.cfg.Exchange.Sender)
	if err = s.RegisterRoutes(exchangeRouter); err != nil {
		return nil, nil, fmt.Errorf("exchange routes: %w", err)
	}
	emergencyRouter = exchange.NewRouter(exchange.Emergency)
	if err = s.RegisterEmergency(emergencyRouter); err != nil {
		return nil, nil, fmt.Errorf("emergency routes: %w", err)
	}
	return exchangeRouter, emergencyRouter, nil
}

// RegisterRoutes binds every envelope this node understands on the exchange
// channel. Which sender may trigger which change is fixed here.
func (s *Service) RegisterRoutes(r *exchange.Router) error {
	manage := []string{exchange.Manage}
	return multierr.Combine(
		exchange.On(r, s.receiveAddBad,
			append(routes(exchange.Helpers, exchange.ActionAdd, exchange.TypeBad), route(exchange.Manage, exchange.ActionAdd, exchange.TypeBad))...),
		exchange.On(r, s.receiveHelpBan, routes(exchange.Helpers, exchange.ActionHelp, exchange.TypeBan)...),
		exchange.On(r, s.receiveHelpDelete,
			append(routes(exchange.Helpers, exchange.ActionHelp, exchange.TypeDelete), route(exchange.Warn, exchange.ActionHelp, exchange.TypeDelete))...),
		exchange.On(r, s.receiveDeclared, route(exchange.AnySender, exchange.ActionUpdate, exchange.TypeDeclare)),
		exchange.On(r, s.receiveScore, routes(scoreSenders(), exchange.ActionUpdate, exchange.TypeScore)...),

		exchange.On(r, s.receiveConfigCommit, route(exchange.Config, exchange.ActionConfig, exchange.TypeCommit)),
		exchange.On(r, s.receiveConfigReply, route(exchange.Config, exchange.ActionConfig, exchange.TypeReply)),

		exchange.On(r, s.receiveAddExcept, routes(manage, exchange.ActionAdd, exchange.TypeExcept)...),
		exchange.On(r, s.receiveRemoveBad, routes(manage, exchange.ActionRemove, exchange.TypeBad)...),
		exchange.On(r, s.receiveRemoveExcept, routes(manage, exchange.ActionRemove, exchange.TypeExcept)...),
		exchange.On(r, s.receiveRemoveScore, routes(manage, exchange.ActionRemove, exchange.TypeScore)...),
		exchange.On(r, s.receiveRemoveWatch, routes(manage, exchange.ActionRemove, exchange.TypeWatch)...),
		exchange.On(r, s.receiveLeaveApprove, routes(manage, exchange.ActionLeave, exchange.TypeApprove)...),
		r.Handle(route(exchange.Manage, exchange.ActionUpdate, exchange.TypeRefresh), s.receiveRefresh),
		exchange.On(r, s.receiveStatusAsk, routes(manage, exchange.ActionStatus, exchange.TypeAsk)...),

		exchange.On(r, s.receiveAddWatch, route(exchange.Watch, exchange.ActionAdd, exchange.TypeWatch)),

		r.Handle(route(exchange.Backup, exchange.ActionBackup, exchange.TypeData), s.receiveBackupData),
	)
}

// RegisterEmergency binds the hide notice on the hide channel. Anyone may
// switch to hidden mode; only MANAGE may switch back.
func (s *Service) RegisterEmergency(r *exchange.Router) error {
	return r.Handle(route(exchange.AnySender, exchange.ActionBackup, exchange.TypeHide), s.receiveHide)
}

func (s *Service) receiveHide(ctx context.Context, env exchange.Envelope) error {
	// only a JSON boolean counts
	hide, ok := env.Data.(bool)
	if !ok {
		return fmt.Errorf("hide flag: not a boolean: %v", env.Data)
	}
	if hide || env.From == exchange.Manage {
		s.transport.SetHidden(hide)
	}
	return nil
}

func (s *Service) receiveAddBad(ctx context.Context, env exchange.Envelope, p exchange.IDPayload) error {
	switch {
	case p.Type == exchange.KindUser:
		_, err := s.store.AddBadUser(p.ID)
		return err
	case p.Type == exchange.KindChannel && env.From == exchange.Manage:
		_, err := s.store.AddBadChannel(p.ID)
		return err
	}
	return nil
}

func (s *Service) receiveHelpBan(ctx context.Context, env exchange.Envelope, p exchange.HelpPayload) error {
	if !s.store.IsManaged(p.GroupID) {
		return nil
	}
	_, err := s.engine.HelpBan(ctx, p.GroupID, p.UserID)
	if err != nil {
		logger.Debugf("Help ban of user %d from %s: %v", p.UserID, env.From, err)
	}
	return nil
}

func (s *Service) receiveHelpDelete(ctx context.Context, env exchange.Envelope, p exchange.HelpPayload) error {
	_, err := s.engine.HelpDelete(ctx, env.From, p.GroupID, p.UserID, p.Type)
	return err
}

func (s *Service) receiveDeclared(ctx context.Context, env exchange.Envelope, p exchange.DeclarePayload) error {
	s.ledger.Accept(p.GroupID, p.MessageID)
	return nil
}

func (s *Service) receiveScore(ctx context.Context, env exchange.Envelope, p exchange.ScorePayload) error {
	return s.store.SetScore(p.ID, env.From, p.Score)
}

func (s *Service) receiveConfigCommit(ctx context.Context, env exchange.Envelope, p exchange.ConfigCommitPayload) error {
	cfg := p.Config
	cfg.Normalize()
	err := s.store.UpdateConfig(p.GroupID, func(c *models.Config) error {
		*c = cfg
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit config of group %d: %w", p.GroupID, err)
	}
	logger.Infof("Config of group %d committed by %s", p.GroupID, env.From)
	return nil
}

func (s *Service) receiveConfigReply(ctx context.Context, env exchange.Envelope, p exchange.ConfigReplyPayload) error {
	if !s.store.IsManaged(p.GroupID) {
		return nil
	}
	var b textBuilder
	b.field("admin_id", code(p.UserID)).
		field("action", code(models.T("action_config"))).
		field("config_link", linkTo(p.ConfigLink, models.T("config_description")))
	_, err := s.reports.Send(ctx, p.GroupID, b.String(), 0, s.cfg.Engine.ReportDelete)
	return err
}

func (s *Service) receiveAddExcept(ctx context.Context, env exchange.Envelope, p exchange.IDPayload) error {
	if p.Type != exchange.KindChannel {
		return nil
	}
	_, err := s.store.AddExceptChannel(p.ID)
	return err
}

func (s *Service) receiveRemoveBad(ctx context.Context, env exchange.Envelope, p exchange.IDPayload) error {
	switch p.Type {
	case exchange.KindChannel:
		_, err := s.store.RemoveBadChannel(p.ID)
		return err
	case exchange.KindUser:
		if _, err := s.store.RemoveBadUser(p.ID); err != nil {
			return err
		}
		s.engine.UnbanGlobally(ctx, p.ID, env.From)
	}
	return nil
}

func (s *Service) receiveRemoveExcept(ctx context.Context, env exchange.Envelope, p exchange.IDPayload) error {
	if p.Type != exchange.KindChannel {
		return nil
	}
	_, err := s.store.RemoveExceptChannel(p.ID)
	return err
}

func (s *Service) receiveRemoveScore(ctx context.Context, env exchange.Envelope, p exchange.IDPayload) error {
	return s.store.ResetScore(p.ID)
}

func (s *Service) receiveRemoveWatch(ctx context.Context, env exchange.Envelope, p exchange.IDPayload) error {
	var kind models.WatchKind
	switch p.Type {
	case string(models.WatchBan), string(models.WatchDelete):
		kind = models.WatchKind(p.Type)
	}
	return s.store.RemoveWatch(kind, p.ID)
}

func (s *Service) receiveAddWatch(ctx context.Context, env exchange.Envelope, p exchange.WatchPayload) error {
	kind := models.WatchKind(p.Type)
	if kind != models.WatchBan && kind != models.WatchDelete {
		return fmt.Errorf("unknown watch type %q", p.Type)
	}
	return s.store.AddWatch(kind, p.ID, time.Unix(p.Until, 0))
}

func (s *Service) receiveLeaveApprove(ctx context.Context, env exchange.Envelope, p exchange.LeavePayload) error {
	if !s.store.IsManaged(p.GroupID) {
		return nil
	}
	text := s.groupText(ctx, p.GroupID).
		field("admin_id", mention(p.AdminID)).
		field("status", code(models.T("status_approved")))
	if p.Reason != "" {
		text.field("reason", code(models.T("reason_"+p.Reason)))
	}
	s.LeaveGroup(ctx, p.GroupID)
	s.debug("leave-approve", text.String())
	return nil
}

func (s *Service) receiveRefresh(ctx context.Context, env exchange.Envelope) error {
	aid, err := cast.ToInt64E(env.Data)
	if err != nil {
		return fmt.Errorf("refresh admin id: %w", err)
	}
	s.RefreshAdmins(ctx)
	text := s.projectText().
		field("admin_id", mention(aid)).
		field("action", code(models.T("action_refresh")))
	s.debug("refresh", text.String())
	return nil
}

func (s *Service) receiveStatusAsk(ctx context.Context, env exchange.Envelope, p exchange.StatusAskPayload) error {
	path, err := s.writeStatus()
	if err != nil {
		return err
	}
	defer removeFile(path)
	return s.transport.Publish(ctx, []string{exchange.Manage}, exchange.ActionStatus, exchange.TypeReply,
		exchange.StatusReplyPayload{AdminID: p.AdminID, MessageID: p.MessageID},
		&exchange.Attachment{Path: path, Encrypt: s.cfg.Exchange.EncryptAttachments})
}

// receiveBackupData restores one table from a file sent by BACKUP.
func (s *Service) receiveBackupData(ctx context.Context, env exchange.Envelope) error {
	name, err := cast.ToStringE(env.Data)
	if err != nil {
		return fmt.Errorf("backup table name: %w", err)
	}
	table := storage.Table(name)
	known := false
	for _, t := range storage.Tables {
		known = known || t == table
	}
	if !known {
		return fmt.Errorf("unknown backup table %q", name)
	}

	path, err := s.transport.Fetch(ctx, env.FileID, s.cfg.Exchange.EncryptAttachments)
	if err != nil {
		return err
	}
	defer removeFile(path)

	s.locks.With(locks.Receive, func() { err = s.store.Restore(table, path) })
	if err != nil {
		return err
	}
	text := s.projectText().
		field("action", code(models.T("action_restore"))).
		field("table", code(name))
	s.debug("restore", text.String())
	return nil
}
