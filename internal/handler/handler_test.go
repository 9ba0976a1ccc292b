package handler

import (
	"context"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tg-exchange/internal/engine"
	"tg-exchange/internal/exchange"
	"tg-exchange/internal/ledger"
	"tg-exchange/internal/locks"
	"tg-exchange/internal/models"
	"tg-exchange/internal/platform"
	"tg-exchange/internal/retry"
	"tg-exchange/internal/storage"
)

const (
	groupID   = -100
	adminID   = 10
	memberID  = 20
	badID     = 30
	channelID = -1005
)

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, receivers []string, action, typ string, data any, att *exchange.Attachment) error {
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *platform.FakeClient) {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	_, err = store.InitGroup(groupID)
	require.NoError(t, err)
	require.NoError(t, store.SetAdmins(groupID, []int64{adminID}))

	client := platform.NewFakeClient(1)
	sup := retry.New(2, time.Millisecond)
	sup.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	led := ledger.New(store, nopPublisher{}, []string{exchange.Clean})
	eng := engine.New(engine.Options{ProjectName: "USER"}, engine.Deps{
		Store:      store,
		Client:     client,
		Supervisor: sup,
		Ledger:     led,
		Publisher:  nopPublisher{},
		Locks:      &locks.Set{},
	})

	return New(nil, "test", Deps{
		Store:      store,
		Engine:     eng,
		Ledger:     led,
		Client:     client,
		Supervisor: sup,
	}), client
}

func groupMessage(mid int, from int64, text string) telego.Message {
	return telego.Message{
		MessageID: mid,
		Chat:      telego.Chat{ID: groupID, Type: telego.ChatTypeSupergroup},
		From:      &telego.User{ID: from},
		Text:      text,
	}
}

func TestInspect(t *testing.T) {
	assert := assert.New(t)
	h, _ := newTestHandler(t)
	store := h.store

	_, err := store.AddBadUser(badID)
	require.NoError(t, err)
	_, err = store.AddBadChannel(channelID)
	require.NoError(t, err)

	assert.Equal(verdict{}, h.inspect(groupMessage(1, memberID, "hello")))
	assert.Equal(verdict{kind: enforce, rule: "rule_bad_user"}, h.inspect(groupMessage(2, badID, "hello")))

	// admins are never acted upon
	require.NoError(t, store.SetAdmins(groupID, []int64{adminID, badID}))
	assert.Equal(verdict{}, h.inspect(groupMessage(3, badID, "hello")))
	require.NoError(t, store.SetAdmins(groupID, []int64{adminID}))

	fwd := groupMessage(4, memberID, "look")
	fwd.ForwardOrigin = &telego.MessageOriginUser{SenderUser: telego.User{ID: badID}}
	assert.Equal(verdict{kind: enforce, rule: "rule_bad_forward"}, h.inspect(fwd))

	fwd.ForwardOrigin = &telego.MessageOriginChannel{Chat: telego.Chat{ID: channelID}}
	assert.Equal(verdict{kind: enforce, rule: "rule_bad_channel"}, h.inspect(fwd))

	_, err = store.AddExceptChannel(channelID)
	require.NoError(t, err)
	assert.Equal(verdict{}, h.inspect(fwd))

	anon := groupMessage(5, 777000, "from a channel")
	anon.SenderChat = &telego.Chat{ID: -1006, Type: telego.ChatTypeChannel}
	assert.Equal(verdict{}, h.inspect(anon))
	_, err = store.AddBadChannel(-1006)
	require.NoError(t, err)
	assert.Equal(verdict{kind: remove, rule: "rule_bad_channel"}, h.inspect(anon))

	// declared messages were handled by another node
	require.True(t, store.Declare(groupID, 2))
	assert.Equal(verdict{}, h.inspect(groupMessage(2, badID, "hello")))
}

func TestInspectWatchedUsers(t *testing.T) {
	assert := assert.New(t)
	h, _ := newTestHandler(t)
	store := h.store
	until := time.Now().Add(time.Hour)

	require.NoError(t, store.AddWatch(models.WatchDelete, memberID, until))
	assert.Equal(verdict{}, h.inspect(groupMessage(1, memberID, "plain text")))

	link := groupMessage(2, memberID, "see example.com")
	link.Entities = []telego.MessageEntity{{Type: telego.EntityTypeURL, Offset: 4, Length: 11}}
	assert.Equal(verdict{kind: remove, rule: "rule_watch_delete"}, h.inspect(link))

	require.NoError(t, store.UpdateConfig(groupID, func(c *models.Config) error {
		return c.Set(models.FlagDelete, false)
	}))
	assert.Equal(verdict{}, h.inspect(link))

	_, err := store.AddBadUser(badID)
	require.NoError(t, err)
	require.NoError(t, store.UpdateConfig(groupID, func(c *models.Config) error {
		return c.Set(models.FlagSubscribeBan, false)
	}))
	assert.Equal(verdict{}, h.inspect(groupMessage(3, badID, "hello")), "subscription turned off")
}

func TestRemoveDeclares(t *testing.T) {
	assert := assert.New(t)
	h, client := newTestHandler(t)

	h.remove(context.Background(), groupMessage(9, memberID, "x"), "rule_watch_delete")
	assert.Equal([]int{9}, client.Deleted[groupID])
	assert.True(h.store.IsDeclared(groupID, 9))

	client.Fail("DeleteMessages", groupID, platform.ErrForbidden, -1)
	h.remove(context.Background(), groupMessage(10, memberID, "x"), "rule_watch_delete")
	assert.False(h.store.IsDeclared(groupID, 10))
}

func TestMessageURLs(t *testing.T) {
	assert := assert.New(t)

	m := telego.Message{
		Text: "🙂 visit a.io and b",
		Entities: []telego.MessageEntity{
			{Type: telego.EntityTypeURL, Offset: 9, Length: 4},
			{Type: telego.EntityTypeTextLink, Offset: 18, Length: 1, URL: "https://b.example"},
			{Type: telego.EntityTypeBold, Offset: 0, Length: 2},
		},
		LinkPreviewOptions: &telego.LinkPreviewOptions{URL: "a.io"},
	}
	assert.Equal([]string{"a.io", "https://b.example"}, messageURLs(m))
	assert.Empty(messageURLs(telego.Message{Text: "no links"}))

	bad := telego.Message{Text: "short", Entities: []telego.MessageEntity{{Type: telego.EntityTypeURL, Offset: 3, Length: 10}}}
	assert.Empty(messageURLs(bad))
}

func TestForwardSource(t *testing.T) {
	assert := assert.New(t)

	uid, cid := forwardSource(telego.Message{ForwardOrigin: &telego.MessageOriginUser{SenderUser: telego.User{ID: 5}}})
	assert.Equal(int64(5), uid)
	assert.Zero(cid)

	uid, cid = forwardSource(telego.Message{ForwardOrigin: &telego.MessageOriginChat{SenderChat: telego.Chat{ID: -6}}})
	assert.Zero(uid)
	assert.Equal(int64(-6), cid)

	uid, cid = forwardSource(telego.Message{})
	assert.Zero(uid)
	assert.Zero(cid)
}

func TestParseCommand(t *testing.T) {
	assert := assert.New(t)

	cmd, args, ok := parseCommand("/Config@tg_bot USER")
	assert.True(ok)
	assert.Equal("config", cmd)
	assert.Equal([]string{"USER"}, args)

	cmd, args, ok = parseCommand("/config_user gb on")
	assert.True(ok)
	assert.Equal("config_user", cmd)
	assert.Equal([]string{"gb", "on"}, args)

	for _, text := range []string{"", "hello", "/", "/@bot"} {
		_, _, ok := parseCommand(text)
		assert.False(ok, text)
	}
}
