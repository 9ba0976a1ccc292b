package engine

import (
	"context"

	"tg-exchange/internal/exchange"
	"tg-exchange/internal/locks"
	"tg-exchange/internal/logger"
	"tg-exchange/internal/models"
	"tg-exchange/internal/platform"
)

// JoinOutcome is what HandleJoin did.
type JoinOutcome int

const (
	JoinIgnored JoinOutcome = iota
	// JoinForgiven means the group let a banned user back in.
	JoinForgiven
	// JoinUnbanned means enough groups forgave the user to lift every ban.
	JoinUnbanned
	// JoinEnforced means a known offender joined and was acted upon.
	JoinEnforced
)

// HandleJoin reacts to a user joining a managed group. A user banned here who
// is back in the group was let in by the group's admins: that counts as
// forgiveness, and once enough distinct groups forgave, the user is unbanned
// everywhere. A known offender joining a group that has not forgiven them is
// enforced on.
func (e *Engine) HandleJoin(ctx context.Context, ev Evidence) (JoinOutcome, error) {
	gid, uid := ev.GroupID, ev.UserID
	if e.Excluded(gid, uid) {
		return JoinIgnored, nil
	}

	// one section from the ban check to the clearing, so only one join can
	// cross the threshold
	var (
		outcome            = JoinIgnored
		count              int
		banned, restricted []int64
		err                error
	)
	e.locks.With(locks.Ban, func() {
		if !e.store.IsBanned(gid, uid) {
			return
		}
		if count, err = e.store.Forgive(uid, gid); err != nil {
			return
		}
		if count < e.opts.ForgiveThreshold {
			outcome = JoinForgiven
			return
		}
		outcome = JoinUnbanned
		banned, restricted = e.clearSanctions(uid)
	})
	if err != nil {
		return JoinIgnored, err
	}

	switch outcome {
	case JoinForgiven:
		logger.Infof("User %d forgiven in group %d (%d/%d)", uid, gid, count, e.opts.ForgiveThreshold)
		forgiveCount.WithLabelValues("forgiven").Inc()
		return JoinForgiven, nil
	case JoinUnbanned:
		logger.Infof("User %d forgiven in group %d (%d/%d)", uid, gid, count, e.opts.ForgiveThreshold)
		forgiveCount.WithLabelValues("unbanned").Inc()
		e.liftSanctions(ctx, uid, models.T("rule_forgive"), banned, restricted)
		if len(e.opts.ForgiveReceivers) > 0 {
			err := e.pub.Publish(ctx, e.opts.ForgiveReceivers, exchange.ActionUpdate, exchange.TypeForgive,
				exchange.ForgivePayload{UserID: uid}, nil)
			if err != nil {
				logger.Warningf("Share forgiveness of user %d: %v", uid, err)
			}
		}
		return JoinUnbanned, nil
	}

	if e.store.IsForgiven(uid, gid) || !e.Suspect(uid) {
		return JoinIgnored, nil
	}
	if _, err := e.EnforceGlobally(ctx, ev); err != nil {
		return JoinIgnored, err
	}
	return JoinEnforced, nil
}

// UnbanGlobally lifts every ban and restriction of the user, forgets the
// user as a bad user, and reports the result on the debug channel.
func (e *Engine) UnbanGlobally(ctx context.Context, uid int64, by string) []ChatResult {
	var banned, restricted []int64
	e.locks.With(locks.Ban, func() {
		banned, restricted = e.clearSanctions(uid)
	})
	return e.liftSanctions(ctx, uid, by, banned, restricted)
}

// clearSanctions empties the user's ban and restrict sets, bad user entry and
// forgiveness. Caller holds the ban lock.
func (e *Engine) clearSanctions(uid int64) (banned, restricted []int64) {
	banned, restricted, err := e.store.ClearSanctions(uid)
	if err != nil {
		logger.Warningf("Clear sanctions of user %d: %v", uid, err)
	}
	if _, err := e.store.RemoveBadUser(uid); err != nil {
		logger.Warningf("Remove bad user %d: %v", uid, err)
	}
	if err := e.store.ClearForgiven(uid); err != nil {
		logger.Warningf("Clear forgiveness of user %d: %v", uid, err)
	}
	return banned, restricted
}

// liftSanctions undoes cleared bans and restrictions on the platform.
func (e *Engine) liftSanctions(ctx context.Context, uid int64, by string, banned, restricted []int64) []ChatResult {
	var results []ChatResult
	lift := func(gid int64, action models.Action, fn func(ctx context.Context, chatID, userID int64) error) {
		res := platform.Exec(ctx, e.sup, "engine."+string(action), func(ctx context.Context) error {
			return fn(ctx, gid, uid)
		})
		r := ChatResult{GroupID: gid, Action: action}
		if !res.OK() {
			r.Err = res.Err
			actionCount.WithLabelValues(string(action), "failed").Inc()
			logger.Warningf("Lift %s of user %d in group %d: %v", action, uid, gid, res.Err)
		} else {
			actionCount.WithLabelValues(string(action), "ok").Inc()
		}
		results = append(results, r)
	}
	for _, gid := range banned {
		lift(gid, models.ActionUnban, e.client.UnbanMember)
	}
	for _, gid := range restricted {
		lift(gid, models.ActionUnrestrict, e.client.UnrestrictMember)
	}

	if e.audit != nil {
		if err := e.audit.MarkUnbanned(uid, by); err != nil {
			logger.Warningf("Error marking enforcement records lifted: %v", err)
		}
	}
	if len(results) > 0 {
		e.debug("unban-report", e.reportText(uid, by, 0, results))
	}
	logger.Infof("User %d unbanned globally (%s): %d groups", uid, by, len(results))
	return results
}
