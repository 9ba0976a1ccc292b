package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tg-exchange/internal/config"
	"tg-exchange/internal/engine"
	"tg-exchange/internal/exchange"
	"tg-exchange/internal/ledger"
	"tg-exchange/internal/locks"
	"tg-exchange/internal/models"
	"tg-exchange/internal/platform"
	"tg-exchange/internal/retry"
	"tg-exchange/internal/storage"
	"tg-exchange/internal/tasks"
)

const (
	selfID    = 1
	testGroup = -999
	groupA    = -100
	groupB    = -200
	groupC    = -300
	offender  = 42
	adminID   = 7
)

type sent struct {
	receivers []string
	action    string
	typ       string
	data      any
	content   []byte
}

type fakeTransport struct {
	mu     sync.Mutex
	sent   []sent
	hidden bool

	dir   string
	files map[string][]byte
}

func (t *fakeTransport) Fetch(ctx context.Context, fileID string, decrypt bool) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	raw, ok := t.files[fileID]
	if !ok {
		return "", fmt.Errorf("no file %q", fileID)
	}
	path := filepath.Join(t.dir, fileID)
	return path, os.WriteFile(path, raw, 0o600)
}

func (t *fakeTransport) Publish(ctx context.Context, receivers []string, action, typ string, data any, att *exchange.Attachment) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := sent{receivers: receivers, action: action, typ: typ, data: data}
	if att != nil {
		raw, err := os.ReadFile(att.Path)
		if err != nil {
			return err
		}
		s.content = raw
	}
	t.sent = append(t.sent, s)
	return nil
}

func (t *fakeTransport) Hidden() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hidden
}

func (t *fakeTransport) SetHidden(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hidden = v
}

func (t *fakeTransport) of(action, typ string) []sent {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []sent
	for _, s := range t.sent {
		if s.action == action && s.typ == typ {
			out = append(out, s)
		}
	}
	return out
}

type fixture struct {
	svc       *Service
	store     *storage.Store
	client    *platform.FakeClient
	transport *fakeTransport
	reports   *Reports
	router    *exchange.Router
	emergency *exchange.Router
}

func newFixture(t *testing.T, groups ...int64) *fixture {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	for _, gid := range groups {
		_, err := store.InitGroup(gid)
		require.NoError(t, err)
	}

	cfg := &config.Config{}
	cfg.Exchange.Sender = exchange.User
	cfg.Exchange.ProjectName = "USER"
	cfg.Exchange.TestGroupID = testGroup
	cfg.Exchange.Receivers.Ignore = []string{exchange.Captcha}
	cfg.Exchange.Receivers.Preview = []string{exchange.NoSpam}
	cfg.Store.TmpDir = t.TempDir()
	cfg.Engine.ConfigLock = 5 * time.Minute
	cfg.Engine.ReportDelete = time.Minute
	cfg.Jobs.MonthlyResetDay = 1

	client := platform.NewFakeClient(selfID)
	sup := retry.New(3, time.Millisecond)
	sup.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	pool := tasks.NewPool(1, 64)
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)
	transport := &fakeTransport{dir: t.TempDir(), files: make(map[string][]byte)}
	set := &locks.Set{}
	led := ledger.New(store, transport, []string{exchange.Clean})

	eng := engine.New(engine.Options{ProjectName: "USER"}, engine.Deps{
		Store:      store,
		Client:     client,
		Supervisor: sup,
		Ledger:     led,
		Publisher:  transport,
		Pool:       pool,
		Locks:      set,
	})
	reports := NewReports(client, sup, pool, nil)
	svc := New(cfg, Deps{
		Store:      store,
		Engine:     eng,
		Ledger:     led,
		Transport:  transport,
		Client:     client,
		Supervisor: sup,
		Pool:       pool,
		Locks:      set,
		Reports:    reports,
	})
	svc.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	router, emergency, err := svc.Routers()
	require.NoError(t, err)

	return &fixture{svc: svc, store: store, client: client, transport: transport, reports: reports, router: router, emergency: emergency}
}

func (f *fixture) post(t *testing.T, r *exchange.Router, from, action, typ string, data any) exchange.Status {
	t.Helper()
	to := exchange.User
	if r == f.emergency {
		to = exchange.Emergency
	}
	text, err := exchange.Encode(from, []string{to}, action, typ, data)
	require.NoError(t, err)
	return r.Dispatch(context.Background(), text)
}

func TestRoutesCapabilities(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, groupA)

	channel := exchange.IDPayload{ID: -1001, Type: exchange.KindChannel}
	assert.Equal(exchange.Handled, f.post(t, f.router, exchange.Clean, exchange.ActionAdd, exchange.TypeBad, channel))
	assert.False(f.store.IsBadChannel(-1001))

	assert.Equal(exchange.Handled, f.post(t, f.router, exchange.Manage, exchange.ActionAdd, exchange.TypeBad, channel))
	assert.True(f.store.IsBadChannel(-1001))

	user := exchange.IDPayload{ID: offender, Type: exchange.KindUser}
	assert.Equal(exchange.Handled, f.post(t, f.router, exchange.NoSpam, exchange.ActionAdd, exchange.TypeBad, user))
	assert.True(f.store.IsBadUser(offender))

	// only MANAGE may remove
	assert.Equal(exchange.NoRoute, f.post(t, f.router, exchange.Clean, exchange.ActionRemove, exchange.TypeBad, user))
	assert.True(f.store.IsBadUser(offender))

	// CONFIG is not a helper
	assert.Equal(exchange.NoRoute, f.post(t, f.router, exchange.Config, exchange.ActionHelp, exchange.TypeBan,
		exchange.HelpPayload{GroupID: groupA, UserID: offender}))
}

func TestDeclareAndScore(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, groupA)

	assert.Equal(exchange.Handled, f.post(t, f.router, exchange.NoSpam, exchange.ActionUpdate, exchange.TypeDeclare,
		map[string]any{"group_id": "-100", "message_id": 12}))
	assert.True(f.store.IsDeclared(groupA, 12))

	assert.Equal(exchange.Handled, f.post(t, f.router, exchange.Lang, exchange.ActionUpdate, exchange.TypeScore,
		exchange.ScorePayload{ID: offender, Score: 1.5}))
	assert.Equal(exchange.Handled, f.post(t, f.router, exchange.Captcha, exchange.ActionUpdate, exchange.TypeScore,
		exchange.ScorePayload{ID: offender, Score: 2}))
	assert.InDelta(3.5, f.store.Score(offender), 0.001)

	assert.Equal(exchange.Handled, f.post(t, f.router, exchange.Manage, exchange.ActionRemove, exchange.TypeScore,
		exchange.IDPayload{ID: offender, Type: exchange.KindUser}))
	assert.Zero(f.store.Score(offender))
}

func TestConfigCommitNormalizes(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, groupA)

	status := f.post(t, f.router, exchange.Config, exchange.ActionConfig, exchange.TypeCommit, exchange.ConfigCommitPayload{
		GroupID: groupA,
		Config:  models.Config{GlobalBan: true, GlobalRestrict: true, SubscribeRestrict: true, SubscribeDelete: true},
	})
	assert.Equal(exchange.Handled, status)

	c, ok := f.store.Config(groupA)
	assert.True(ok)
	assert.Equal(models.ActionBan, c.GlobalAction())
	assert.False(c.GlobalRestrict)
	assert.Equal(models.ActionRestrict, c.SubscribeAction())
	assert.False(c.SubscribeDelete)

	// unmanaged groups are refused
	status = f.post(t, f.router, exchange.Config, exchange.ActionConfig, exchange.TypeCommit,
		exchange.ConfigCommitPayload{GroupID: groupB, Config: models.DefaultConfig()})
	assert.Equal(exchange.HandlerFailed, status)
}

func TestHideRules(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)

	f.post(t, f.emergency, exchange.Clean, exchange.ActionBackup, exchange.TypeHide, true)
	assert.True(f.transport.Hidden())

	f.post(t, f.emergency, exchange.Clean, exchange.ActionBackup, exchange.TypeHide, false)
	assert.True(f.transport.Hidden())

	assert.Equal(exchange.HandlerFailed, f.post(t, f.emergency, exchange.Manage, exchange.ActionBackup, exchange.TypeHide, "false"))
	assert.Equal(exchange.HandlerFailed, f.post(t, f.emergency, exchange.Manage, exchange.ActionBackup, exchange.TypeHide, 0))
	assert.True(f.transport.Hidden())

	f.post(t, f.emergency, exchange.Manage, exchange.ActionBackup, exchange.TypeHide, false)
	assert.False(f.transport.Hidden())

	assert.Equal(exchange.HandlerFailed, f.post(t, f.emergency, exchange.Manage, exchange.ActionBackup, exchange.TypeHide, "maybe"))
}

func TestRouterAddressing(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, groupA)
	ctx := context.Background()

	encode := func(to string, action, typ string, data any) string {
		text, err := exchange.Encode(exchange.Clean, []string{to}, action, typ, data)
		require.NoError(t, err)
		return text
	}
	declare := exchange.DeclarePayload{GroupID: groupA, MessageID: 7}

	assert.Equal(exchange.Handled, f.router.Dispatch(ctx, encode(exchange.User, exchange.ActionUpdate, exchange.TypeDeclare, declare)))
	assert.True(f.store.IsDeclared(groupA, 7))
	assert.Equal(exchange.NotForUs, f.router.Dispatch(ctx, encode(exchange.Emergency, exchange.ActionUpdate, exchange.TypeDeclare, declare)))

	assert.Equal(exchange.NotForUs, f.emergency.Dispatch(ctx, encode(exchange.User, exchange.ActionBackup, exchange.TypeHide, true)))
	assert.False(f.transport.Hidden())
	assert.Equal(exchange.Handled, f.emergency.Dispatch(ctx, encode(exchange.Emergency, exchange.ActionBackup, exchange.TypeHide, true)))
	assert.True(f.transport.Hidden())
}

func TestHideNoticeFromSibling(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)

	const exchangeChannel, hideChannel = int64(-1001), int64(-1002)
	client := platform.NewFakeClient(7)
	client.Fail("SendMessage", exchangeChannel, fmt.Errorf("%w: chat not found", platform.ErrInvalidDestination), -1)
	sup := retry.New(3, time.Millisecond)
	sup.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	sibling := exchange.NewTransport(exchange.TransportConfig{
		Self:              exchange.Clean,
		ExchangeChannelID: exchangeChannel,
		HideChannelID:     hideChannel,
		TmpDir:            t.TempDir(),
	}, client, sup, nil)

	require.NoError(t, sibling.Publish(context.Background(), []string{exchange.User}, exchange.ActionUpdate, exchange.TypeDeclare,
		exchange.DeclarePayload{GroupID: groupA, MessageID: 3}, nil))
	posts := client.MessagesTo(hideChannel)
	require.Len(t, posts, 2)

	assert.Equal(exchange.Handled, f.emergency.Dispatch(context.Background(), posts[0].Text))
	assert.True(f.transport.Hidden())
	assert.Equal(exchange.NotForUs, f.router.Dispatch(context.Background(), posts[0].Text))
}

func TestRemoveBadUnbansEverywhere(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, groupA, groupB)

	_, err := f.store.AddBadUser(offender)
	require.NoError(t, err)
	_, err = f.store.MarkBanned(groupA, offender)
	require.NoError(t, err)
	_, err = f.store.MarkRestricted(groupB, offender)
	require.NoError(t, err)

	status := f.post(t, f.router, exchange.Manage, exchange.ActionRemove, exchange.TypeBad,
		exchange.IDPayload{ID: offender, Type: exchange.KindUser})
	assert.Equal(exchange.Handled, status)

	assert.False(f.store.IsBadUser(offender))
	assert.False(f.store.IsBanned(groupA, offender))
	assert.False(f.store.IsRestricted(groupB, offender))
	assert.Equal([]platform.Membership{{ChatID: groupA, UserID: offender}}, f.client.Unbanned)
	assert.Equal([]platform.Membership{{ChatID: groupB, UserID: offender}}, f.client.Unrestricted)
}

func TestWatchRoutes(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)

	until := time.Now().Add(time.Hour).Unix()
	f.post(t, f.router, exchange.Watch, exchange.ActionAdd, exchange.TypeWatch,
		exchange.WatchPayload{ID: offender, Type: string(models.WatchBan), Until: until})
	f.post(t, f.router, exchange.Watch, exchange.ActionAdd, exchange.TypeWatch,
		exchange.WatchPayload{ID: offender, Type: string(models.WatchDelete), Until: until})
	assert.True(f.store.IsWatched(models.WatchBan, offender))
	assert.True(f.store.IsWatched(models.WatchDelete, offender))

	assert.Equal(exchange.HandlerFailed, f.post(t, f.router, exchange.Watch, exchange.ActionAdd, exchange.TypeWatch,
		exchange.WatchPayload{ID: offender, Type: "forever", Until: until}))

	f.post(t, f.router, exchange.Manage, exchange.ActionRemove, exchange.TypeWatch,
		exchange.IDPayload{ID: offender, Type: "all"})
	assert.False(f.store.IsWatched(models.WatchBan, offender))
	assert.False(f.store.IsWatched(models.WatchDelete, offender))
}

func TestStatusAsk(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, groupA, groupB)

	status := f.post(t, f.router, exchange.Manage, exchange.ActionStatus, exchange.TypeAsk,
		exchange.StatusAskPayload{AdminID: adminID, MessageID: 3})
	assert.Equal(exchange.Handled, status)

	replies := f.transport.of(exchange.ActionStatus, exchange.TypeReply)
	require.Len(t, replies, 1)
	assert.Equal([]string{exchange.Manage}, replies[0].receivers)

	var st Status
	require.NoError(t, sonic.Unmarshal(replies[0].content, &st))
	assert.Equal(2, st.Groups)

	entries, err := os.ReadDir(f.svc.cfg.Store.TmpDir)
	require.NoError(t, err)
	assert.Empty(entries)
}

func TestRefreshAdmins(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, groupA, groupB, groupC)

	f.client.Admins[groupA] = []platform.Member{
		{UserID: selfID, IsBot: true, CanDelete: true, CanRestrict: true},
		{UserID: adminID, IsOwner: true},
		{UserID: 8, IsBot: true},
	}
	f.client.Admins[groupC] = []platform.Member{
		{UserID: selfID, IsBot: true, CanDelete: true},
		{UserID: adminID},
	}

	f.svc.RefreshAdmins(context.Background())

	assert.Equal([]int64{adminID}, f.store.Admins(groupA).Slice())
	assert.False(f.store.IsManaged(groupB))
	assert.True(f.store.HasLeft(groupB))
	assert.Equal([]int64{groupB}, f.client.Left)

	info := f.transport.of(exchange.ActionLeave, exchange.TypeInfo)
	require.Len(t, info, 1)
	assert.Equal(int64(groupB), info[0].data.(exchange.LeaveInfoPayload).GroupID)

	requests := f.transport.of(exchange.ActionLeave, exchange.TypeRequest)
	require.Len(t, requests, 1)
	assert.Equal("permissions", requests[0].data.(exchange.LeaveInfoPayload).Reason)
	assert.True(f.store.IsLacking(groupC))

	// a lacking group is reported once
	f.svc.RefreshAdmins(context.Background())
	assert.Len(f.transport.of(exchange.ActionLeave, exchange.TypeRequest), 1)
}

func TestJoinGroup(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)

	f.client.Admins[groupA] = []platform.Member{{UserID: adminID, IsOwner: true}}
	require.NoError(t, f.svc.JoinGroup(context.Background(), groupA))
	assert.True(f.store.IsManaged(groupA))
	assert.True(f.store.IsAdmin(groupA, adminID))

	f.client.Fail("ChatAdmins", groupB, platform.ErrForbidden, -1)
	require.NoError(t, f.svc.JoinGroup(context.Background(), groupB))
	assert.False(f.store.IsManaged(groupB))
	assert.Contains(f.client.Left, int64(groupB))
}

func TestLeaveApprove(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, groupA)

	status := f.post(t, f.router, exchange.Manage, exchange.ActionLeave, exchange.TypeApprove,
		exchange.LeavePayload{AdminID: adminID, GroupID: groupA, Reason: "permissions"})
	assert.Equal(exchange.Handled, status)
	assert.False(f.store.IsManaged(groupA))
	assert.Equal([]int64{groupA}, f.client.Left)
}

func TestConfigSession(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, groupA)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestConfig(ctx, groupA, adminID))
	asks := f.transport.of(exchange.ActionConfig, exchange.TypeAsk)
	require.Len(t, asks, 1)
	assert.Equal([]string{exchange.Config}, asks[0].receivers)
	assert.Equal(int64(adminID), asks[0].data.(exchange.ConfigAskPayload).UserID)

	assert.ErrorIs(f.svc.RequestConfig(ctx, groupA, adminID), ErrConfigLocked)

	_, ok := f.svc.ChangeConfig(ctx, groupA, adminID, []string{"gr", "on"})
	assert.False(ok)

	f.svc.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	require.NoError(t, f.svc.RequestConfig(ctx, groupA, adminID))

	status := f.post(t, f.router, exchange.Config, exchange.ActionConfig, exchange.TypeReply,
		exchange.ConfigReplyPayload{GroupID: groupA, UserID: adminID, ConfigLink: "https://t.me/config_bot?start=abc"})
	assert.Equal(exchange.Handled, status)
	require.Len(t, f.client.MessagesTo(groupA), 1)
	assert.Len(f.reports.Pending(), 1)
}

func TestChangeConfig(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, groupA)
	ctx := context.Background()

	text, ok := f.svc.ChangeConfig(ctx, groupA, adminID, []string{"gr", "on"})
	assert.True(ok)
	assert.Contains(text, models.T("config_changed"))
	c, _ := f.store.Config(groupA)
	assert.True(c.GlobalRestrict)
	assert.False(c.GlobalBan)
	assert.False(c.Default)

	text, ok = f.svc.ChangeConfig(ctx, groupA, adminID, []string{"show"})
	assert.True(ok)
	assert.Contains(text, models.T("flag_gr"))

	_, ok = f.svc.ChangeConfig(ctx, groupA, adminID, []string{"xx", "on"})
	assert.False(ok)
	_, ok = f.svc.ChangeConfig(ctx, groupA, adminID, []string{"gr"})
	assert.False(ok)

	_, ok = f.svc.ChangeConfig(ctx, groupA, adminID, []string{"default"})
	assert.True(ok)
	c, _ = f.store.Config(groupA)
	assert.Equal(models.DefaultConfig(), c)

	_, ok = f.svc.ChangeConfig(ctx, groupB, adminID, []string{"show"})
	assert.False(ok)
}

func TestReports(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, groupA)
	ctx := context.Background()

	mid, err := f.reports.Send(ctx, groupA, "hello", 0, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Eventually(func() bool {
		return len(f.reports.Pending()) == 0
	}, time.Second, 5*time.Millisecond)
	assert.Contains(f.client.Deleted[groupA], mid)

	f.reports.DeleteLater(groupA, 77, "report", time.Hour)
	assert.Len(f.reports.Pending(), 1)
	f.reports.Flush(ctx)
	assert.Empty(f.reports.Pending())
	assert.Contains(f.client.Deleted[groupA], 77)
}

func TestMonthlyReset(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)

	day := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return day }

	_, err := f.store.AddBadUser(offender)
	require.NoError(t, err)
	f.svc.MonthlyReset()
	assert.False(f.store.IsBadUser(offender))
	assert.Equal("2026-03", f.store.LastMonthlyReset())

	// once per month
	_, err = f.store.AddBadUser(offender)
	require.NoError(t, err)
	f.svc.MonthlyReset()
	assert.True(f.store.IsBadUser(offender))

	day = day.AddDate(0, 0, 1)
	f.svc.MonthlyReset()
	assert.True(f.store.IsBadUser(offender))

	day = time.Date(2026, 4, 1, 0, 30, 0, 0, time.UTC)
	f.svc.MonthlyReset()
	assert.False(f.store.IsBadUser(offender))
}

func TestShareIgnoreListAndBackup(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, groupA, groupB)
	ctx := context.Background()

	require.NoError(t, f.store.UpdateConfig(groupB, func(c *models.Config) error {
		return c.Set(models.FlagSubscribeBan, false)
	}))
	require.NoError(t, f.svc.ShareIgnoreList(ctx))
	ignores := f.transport.of(exchange.ActionUpdate, exchange.TypeIgnore)
	require.Len(t, ignores, 1)
	var ids []int64
	require.NoError(t, sonic.Unmarshal(ignores[0].content, &ids))
	assert.Equal([]int64{groupB}, ids)

	require.NoError(t, f.store.SaveAll())
	require.NoError(t, f.svc.BackupTables(ctx))
	assert.Len(f.transport.of(exchange.ActionBackup, exchange.TypeData), len(storage.Tables))
}

func TestSharePreviewOnce(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, groupA)
	ctx := context.Background()

	p := Preview{GroupID: groupA, UserID: offender, MessageID: 5, Text: "see", URLs: []string{"https://b.example", "https://a.example"}}
	ok, err := f.svc.SharePreview(ctx, p)
	require.NoError(t, err)
	assert.True(ok)

	p.MessageID = 6
	p.URLs = []string{"https://a.example", "https://b.example"}
	ok, err = f.svc.SharePreview(ctx, p)
	require.NoError(t, err)
	assert.False(ok)

	previews := f.transport.of(exchange.ActionUpdate, exchange.TypePreview)
	require.Len(t, previews, 1)
	assert.Equal([]string{exchange.NoSpam}, previews[0].receivers)
	assert.Contains(string(previews[0].content), "https://a.example")
}

func TestTestEcho(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)
	ctx := context.Background()

	text, err := exchange.Encode(exchange.Clean, []string{exchange.User}, exchange.ActionHelp, exchange.TypeBan,
		exchange.HelpPayload{GroupID: groupA, UserID: offender})
	require.NoError(t, err)

	assert.False(f.svc.TestEcho(ctx, groupA, 1, text))
	assert.False(f.svc.TestEcho(ctx, testGroup, 1, "plain text"))
	assert.True(f.svc.TestEcho(ctx, testGroup, 1, text))

	msgs := f.client.MessagesTo(testGroup)
	require.Len(t, msgs, 1)
	assert.Contains(msgs[0].Text, "CLEAN -&gt; USER help/ban")
}

func TestRestoreFromBackup(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, groupA)

	_, err := f.store.AddBadUser(offender)
	require.NoError(t, err)
	raw, err := os.ReadFile(f.store.Path(storage.TableBad))
	require.NoError(t, err)
	_, err = f.store.RemoveBadUser(offender)
	require.NoError(t, err)
	f.transport.files["file-1"] = raw
	f.transport.files["file-2"] = []byte("not json")

	post := func(data any, fileID string) exchange.Status {
		text, err := exchange.Encode(exchange.Backup, []string{exchange.User}, exchange.ActionBackup, exchange.TypeData, data)
		require.NoError(t, err)
		return f.router.DispatchPost(context.Background(), text, fileID)
	}

	assert.Equal(exchange.Handled, post(string(storage.TableBad), "file-1"))
	assert.True(f.store.IsBadUser(offender))

	assert.Equal(exchange.HandlerFailed, post(string(storage.TableBad), "file-2"))
	assert.True(f.store.IsBadUser(offender), "bad data leaves the table alone")

	assert.Equal(exchange.HandlerFailed, post("passwords", "file-1"))
	assert.Equal(exchange.NoRoute, f.post(t, f.router, exchange.Manage, exchange.ActionBackup, exchange.TypeData, string(storage.TableBad)))
}
