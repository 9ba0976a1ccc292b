package engine

import (
	"context"
	"fmt"
	"time"

	"tg-exchange/internal/exchange"
	"tg-exchange/internal/locks"
	"tg-exchange/internal/logger"
	"tg-exchange/internal/models"
	"tg-exchange/internal/platform"
	"tg-exchange/internal/retry"
)

// Evidence describes what triggered an enforcement.
type Evidence struct {
	GroupID int64
	UserID  int64
	// MessageID is the offending message, or 0 when there is none, e.g. a
	// known offender joining.
	MessageID int
	// Level is a translation key, level_global or level_subscribe.
	Level string
	Rule  string
}

// ChatResult is the outcome in one group. Groups where the policy was
// already satisfied are not listed.
type ChatResult struct {
	GroupID int64
	Action  models.Action
	Err     error
}

type Report struct {
	EvidenceID int
	Results    []ChatResult
}

// Failed counts the groups where the action could not be applied.
func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// EnforceGlobally acts on the user in every shared group according to each
// group's policy. The origin group uses its subscription policy and the
// others their global policy. Nothing changes when the message was already
// declared or when the evidence cannot be kept.
func (e *Engine) EnforceGlobally(ctx context.Context, ev Evidence) (Report, error) {
	start := time.Now()
	defer func() { enforceDuration.Observe(time.Since(start).Seconds()) }()

	if e.Excluded(ev.GroupID, ev.UserID) {
		enforceCount.WithLabelValues("excluded").Inc()
		return Report{}, ErrExcluded
	}
	if ev.MessageID != 0 && e.ledger.IsDeclared(ev.GroupID, ev.MessageID) {
		enforceCount.WithLabelValues("declared").Inc()
		return Report{}, ErrDeclared
	}

	eid, err := e.recordEvidence(ctx, ev)
	if err != nil {
		enforceCount.WithLabelValues("no_evidence").Inc()
		return Report{}, fmt.Errorf("%w: %v", ErrEvidence, err)
	}

	rep := Report{EvidenceID: eid, Results: e.propagate(ctx, ev.GroupID, ev.UserID)}
	e.record(ev.GroupID, ev.UserID, ev.Rule, eid, rep.Results)
	if len(rep.Results) > 0 {
		e.debug("enforce-report", e.reportText(ev.UserID, ev.Rule, eid, rep.Results))
	}

	if ev.MessageID != 0 {
		if err := e.ledger.Declare(ctx, ev.GroupID, ev.MessageID); err != nil {
			logger.Warningf("Declare message %d in group %d: %v", ev.MessageID, ev.GroupID, err)
		}
	}
	enforceCount.WithLabelValues("done").Inc()
	logger.Infof("Enforced on user %d from group %d: %d groups, %d failed",
		ev.UserID, ev.GroupID, len(rep.Results), rep.Failed())
	return rep, nil
}

// recordEvidence forwards the offending message to the logging channel, or
// posts a description when there is no message, and returns the id of the
// post.
func (e *Engine) recordEvidence(ctx context.Context, ev Evidence) (int, error) {
	text := e.evidenceText(ev)
	if ev.MessageID == 0 {
		res := platform.Call(ctx, e.sup, "engine.evidence", func(ctx context.Context) (int, error) {
			return e.client.SendMessage(ctx, e.opts.LoggingChannelID, text, platform.SendOptions{HTML: true, Silent: true})
		})
		return res.Value, res.Err
	}

	res := platform.Call(ctx, e.sup, "engine.forward", func(ctx context.Context) (int, error) {
		return e.client.ForwardMessage(ctx, e.opts.LoggingChannelID, ev.GroupID, ev.MessageID)
	})
	if !res.OK() {
		return 0, res.Err
	}
	note := platform.Call(ctx, e.sup, "engine.evidence", func(ctx context.Context) (int, error) {
		return e.client.SendMessage(ctx, e.opts.LoggingChannelID, text,
			platform.SendOptions{HTML: true, Silent: true, ReplyTo: res.Value})
	})
	if !note.OK() {
		logger.Warningf("Annotate evidence %d: %v", res.Value, note.Err)
	}
	return res.Value, nil
}

// sharedChats returns the groups the user is in, plus origin.
func (e *Engine) sharedChats(ctx context.Context, origin, uid int64) []int64 {
	chats := models.NewIDSet()
	if origin != 0 {
		chats.Add(origin)
	}
	res := platform.Call(ctx, e.sup, "engine.common", func(ctx context.Context) ([]int64, error) {
		return e.client.CommonChats(ctx, uid)
	})
	if !res.OK() {
		logger.Warningf("Get common chats of user %d: %v", uid, res.Err)
	}
	for _, gid := range res.Value {
		chats.Add(gid)
	}
	return chats.Slice()
}

func (e *Engine) propagate(ctx context.Context, origin, uid int64) []ChatResult {
	var results []ChatResult
	for _, gid := range e.sharedChats(ctx, origin, uid) {
		cfg, ok := e.store.Config(gid)
		if !ok {
			continue
		}
		action := cfg.GlobalAction()
		if gid == origin {
			action = cfg.SubscribeAction()
		} else if e.Excluded(gid, uid) {
			continue
		}
		if action == models.ActionNone {
			continue
		}

		r, applied := e.apply(ctx, gid, uid, action)
		if !applied {
			continue
		}
		if r.Err == nil && cfg.Delete && action != models.ActionDelete {
			e.purge(ctx, gid, uid)
		}
		results = append(results, r)
	}
	return results
}

// apply claims the action for (gid, uid) and then performs it. The claim is
// rolled back when the platform call fails. applied is false when the policy
// was already satisfied.
func (e *Engine) apply(ctx context.Context, gid, uid int64, action models.Action) (r ChatResult, applied bool) {
	r = ChatResult{GroupID: gid, Action: action}
	if !e.claim(gid, uid, action) {
		actionCount.WithLabelValues(string(action), "satisfied").Inc()
		return r, false
	}

	var res retry.Result[struct{}]
	switch action {
	case models.ActionBan:
		res = platform.Exec(ctx, e.sup, "engine.kick", func(ctx context.Context) error {
			return e.client.KickMember(ctx, gid, uid)
		})
	case models.ActionRestrict:
		res = platform.Exec(ctx, e.sup, "engine.restrict", func(ctx context.Context) error {
			return e.client.RestrictMember(ctx, gid, uid)
		})
	case models.ActionDelete:
		res = platform.Exec(ctx, e.sup, "engine.purge", func(ctx context.Context) error {
			return e.client.DeleteHistory(ctx, gid, uid)
		})
	}

	if !res.OK() {
		e.release(gid, uid, action)
		r.Err = res.Err
		actionCount.WithLabelValues(string(action), "failed").Inc()
		logger.Warningf("Apply %s to user %d in group %d: %v", action, uid, gid, res.Err)
		return r, true
	}
	actionCount.WithLabelValues(string(action), "ok").Inc()
	return r, true
}

// claim marks the action as done unless it already is. A ban satisfies a
// restrict; a delete-only is satisfied once per rate window.
func (e *Engine) claim(gid, uid int64, action models.Action) bool {
	claimed := false
	e.locks.With(locks.Ban, func() {
		switch action {
		case models.ActionBan:
			claimed, _ = e.store.MarkBanned(gid, uid)
		case models.ActionRestrict:
			if e.store.IsBanned(gid, uid) {
				return
			}
			claimed, _ = e.store.MarkRestricted(gid, uid)
		case models.ActionDelete:
			claimed = e.store.Record(gid, uid)
		}
	})
	return claimed
}

func (e *Engine) release(gid, uid int64, action models.Action) {
	e.locks.With(locks.Ban, func() {
		switch action {
		case models.ActionBan:
			_ = e.store.UnmarkBanned(gid, uid)
		case models.ActionRestrict:
			_ = e.store.UnmarkRestricted(gid, uid)
		case models.ActionDelete:
			e.store.Unrecord(gid, uid)
		}
	})
}

func (e *Engine) purge(ctx context.Context, gid, uid int64) bool {
	res := platform.Exec(ctx, e.sup, "engine.purge", func(ctx context.Context) error {
		return e.client.DeleteHistory(ctx, gid, uid)
	})
	if !res.OK() {
		actionCount.WithLabelValues("purge", "failed").Inc()
		logger.Warningf("Delete history of user %d in group %d: %v", uid, gid, res.Err)
		return false
	}
	actionCount.WithLabelValues("purge", "ok").Inc()
	return true
}

// HelpBan propagates a ban another node applied in gid. Each user is helped
// at most once a day.
func (e *Engine) HelpBan(ctx context.Context, gid, uid int64) (Report, error) {
	if e.Excluded(gid, uid) {
		return Report{}, ErrExcluded
	}
	seen := false
	e.locks.With(locks.Message, func() {
		if seen = e.helped.Contains(uid); !seen {
			e.helped.Add(uid, struct{}{})
		}
	})
	if seen {
		return Report{}, nil
	}

	rule := models.T("rule_help")
	rep := Report{Results: e.propagate(ctx, gid, uid)}
	e.record(gid, uid, rule, 0, rep.Results)
	if len(rep.Results) > 0 {
		e.debug("help-ban-report", e.reportText(uid, rule, 0, rep.Results))
	}
	return rep, nil
}

// HelpDelete deletes the user's recent messages on request of sender. The
// global scope covers every shared group taking part in global moderation;
// the single scope honours the group's delete flag except for CLEAN and WARN.
// It returns the number of groups purged.
func (e *Engine) HelpDelete(ctx context.Context, sender string, gid, uid int64, scope string) (int, error) {
	if gid != 0 && !e.store.IsManaged(gid) {
		return 0, nil
	}

	switch scope {
	case exchange.ScopeGlobal:
		n := 0
		for _, g := range e.sharedChats(ctx, 0, uid) {
			cfg, ok := e.store.Config(g)
			if !ok || cfg.GlobalAction() == models.ActionNone || e.Excluded(g, uid) {
				continue
			}
			if e.purge(ctx, g, uid) {
				n++
			}
		}
		return n, nil
	case exchange.ScopeSingle:
		cfg, ok := e.store.Config(gid)
		if !ok || e.Excluded(gid, uid) {
			return 0, nil
		}
		if !cfg.Delete && sender != exchange.Clean && sender != exchange.Warn {
			return 0, nil
		}
		if e.purge(ctx, gid, uid) {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("unknown help/delete scope %q", scope)
}
