package service

import (
	"context"
	"fmt"

	"tg-exchange/internal/exchange"
	"tg-exchange/internal/locks"
	"tg-exchange/internal/logger"
	"tg-exchange/internal/models"
	"tg-exchange/internal/platform"
	"tg-exchange/internal/retry"
)

func humans(members []platform.Member) []int64 {
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		if !m.IsBot {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

func (s *Service) self(members []platform.Member) (platform.Member, bool) {
	selfID := s.client.SelfID()
	for _, m := range members {
		if m.UserID == selfID {
			return m, true
		}
	}
	return platform.Member{}, false
}

// JoinGroup starts managing a group the bot was added to. When the admin
// list cannot be read the bot leaves again.
func (s *Service) JoinGroup(ctx context.Context, gid int64) error {
	added, err := s.store.InitGroup(gid)
	if err != nil {
		return fmt.Errorf("init group %d: %w", gid, err)
	}
	if !added {
		return nil
	}

	text := s.groupText(ctx, gid)
	res := platform.Call(ctx, s.sup, "service.admins", func(ctx context.Context) ([]platform.Member, error) {
		return s.client.ChatAdmins(ctx, gid)
	})
	if !res.OK() {
		s.LeaveGroup(ctx, gid)
		text.field("status", code(models.T("status_left"))).
			field("reason", code(models.T("reason_admins")))
		s.debug("join-group", text.String())
		return nil
	}

	if err := s.store.SetAdmins(gid, humans(res.Value)); err != nil {
		return err
	}
	text.field("status", code(models.T("status_joined")))
	s.debug("join-group", text.String())
	logger.Infof("Joined group %d", gid)
	return nil
}

// LeaveGroup leaves the chat and forgets every record of it.
func (s *Service) LeaveGroup(ctx context.Context, gid int64) {
	res := platform.Exec(ctx, s.sup, "service.leave", func(ctx context.Context) error {
		return s.client.LeaveChat(ctx, gid)
	})
	if !res.OK() {
		logger.Warningf("Leave group %d: %v", gid, res.Err)
	}
	if err := s.store.PurgeGroup(gid); err != nil {
		logger.Errorf("Purge group %d: %v", gid, err)
	}
	logger.Infof("Left group %d", gid)
}

// ForgetGroup drops a group the bot was removed from by someone else.
func (s *Service) ForgetGroup(ctx context.Context, gid int64) {
	if !s.store.IsManaged(gid) {
		return
	}
	text := s.groupText(ctx, gid).
		field("status", code(models.T("status_left"))).
		field("reason", code(models.T("reason_left")))
	if err := s.store.PurgeGroup(gid); err != nil {
		logger.Errorf("Purge group %d: %v", gid, err)
	}
	s.debug("forget-group", text.String())
	logger.Infof("Removed from group %d", gid)
}

// RefreshAdmins reloads the admin list of every managed group. Groups the
// bot was removed from are left; groups where it lacks the rights to delete
// and restrict are reported to MANAGE once.
func (s *Service) RefreshAdmins(ctx context.Context) {
	s.locks.Lock(locks.Admin)
	defer s.locks.Unlock(locks.Admin)

	for _, gid := range s.store.GroupIDs() {
		info, _ := s.client.ChatInfo(ctx, gid)
		res := platform.Call(ctx, s.sup, "service.admins", func(ctx context.Context) ([]platform.Member, error) {
			return s.client.ChatAdmins(ctx, gid)
		})
		if !res.OK() && res.Kind != retry.Terminal {
			logger.Warningf("Refresh admins of group %d: %v", gid, res.Err)
			continue
		}

		me, found := s.self(res.Value)
		if !found {
			s.LeaveGroup(ctx, gid)
			s.publish(ctx, []string{exchange.Manage}, exchange.ActionLeave, exchange.TypeInfo, exchange.LeaveInfoPayload{
				GroupID:   gid,
				GroupName: info.GroupName,
				GroupLink: info.GroupLink,
				Reason:    "left",
			})
			text := s.groupText(ctx, gid).
				field("status", code(models.T("status_left"))).
				field("reason", code(models.T("reason_left")))
			s.debug("refresh-admins", text.String())
			continue
		}

		if err := s.store.SetAdmins(gid, humans(res.Value)); err != nil {
			logger.Warningf("Save admins of group %d: %v", gid, err)
		}

		lacking := !me.IsOwner && !(me.CanDelete && me.CanRestrict)
		changed, err := s.store.SetLack(gid, lacking)
		if err != nil || !changed || !lacking {
			continue
		}
		s.publish(ctx, []string{exchange.Manage}, exchange.ActionLeave, exchange.TypeRequest, exchange.LeaveInfoPayload{
			GroupID:   gid,
			GroupName: info.GroupName,
			GroupLink: info.GroupLink,
			Reason:    "permissions",
		})
		text := s.groupText(ctx, gid).field("status", code(models.T("reason_permissions")))
		s.debug("refresh-admins", text.String())
	}
	logger.Infof("Admin lists refreshed")
}

func (s *Service) publish(ctx context.Context, receivers []string, action, typ string, data any) {
	if err := s.transport.Publish(ctx, receivers, action, typ, data, nil); err != nil {
		logger.Warningf("Publish %s/%s: %v", action, typ, err)
	}
}
