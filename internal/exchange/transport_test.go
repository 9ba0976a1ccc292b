package exchange

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tg-exchange/internal/crypt"
	"tg-exchange/internal/platform"
	"tg-exchange/internal/retry"
)

const (
	exchangeChannel = int64(-1001)
	hideChannel     = int64(-1002)
)

func newTestTransport(t *testing.T, client platform.Client, cipher *crypt.Cipher) (*Transport, string) {
	t.Helper()
	sup := retry.New(5, time.Millisecond)
	sup.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	tmp := t.TempDir()
	return NewTransport(TransportConfig{
		Self:              User,
		ExchangeChannelID: exchangeChannel,
		HideChannelID:     hideChannel,
		TmpDir:            tmp,
	}, client, sup, cipher), tmp
}

func TestPublishPlain(t *testing.T) {
	assert := assert.New(t)
	client := platform.NewFakeClient(1)
	tr, _ := newTestTransport(t, client, nil)

	err := tr.Publish(context.Background(), []string{Clean, User}, ActionUpdate, TypeDeclare,
		DeclarePayload{GroupID: -100, MessageID: 5}, nil)
	assert.NoError(err)

	msgs := client.MessagesTo(exchangeChannel)
	require.Len(t, msgs, 1)
	assert.True(msgs[0].Opts.Silent)

	env, ok := Decode(msgs[0].Text)
	assert.True(ok)
	assert.Equal([]string{Clean}, env.To)
	var p DeclarePayload
	assert.NoError(DecodeData(env.Data, &p))
	assert.Equal(DeclarePayload{GroupID: -100, MessageID: 5}, p)
}

func TestPublishToNobody(t *testing.T) {
	client := platform.NewFakeClient(1)
	tr, _ := newTestTransport(t, client, nil)

	assert.NoError(t, tr.Publish(context.Background(), []string{User}, ActionUpdate, TypeDeclare, nil, nil))
	assert.NoError(t, tr.Publish(context.Background(), nil, ActionUpdate, TypeDeclare, nil, nil))
	assert.Empty(t, client.Messages)
}

func TestPublishHiddenMode(t *testing.T) {
	client := platform.NewFakeClient(1)
	tr, _ := newTestTransport(t, client, nil)
	tr.SetHidden(true)

	assert.NoError(t, tr.Publish(context.Background(), []string{Manage}, ActionLeave, TypeInfo, nil, nil))
	assert.Empty(t, client.MessagesTo(exchangeChannel))
	assert.Len(t, client.MessagesTo(hideChannel), 1)
}

func TestPublishFailover(t *testing.T) {
	assert := assert.New(t)
	client := platform.NewFakeClient(1)
	client.Fail("SendMessage", exchangeChannel, fmt.Errorf("%w: chat not found", platform.ErrInvalidDestination), -1)
	tr, _ := newTestTransport(t, client, nil)

	err := tr.Publish(context.Background(), []string{Clean}, ActionUpdate, TypeDeclare,
		DeclarePayload{GroupID: -100, MessageID: 9}, nil)
	assert.NoError(err)
	assert.True(tr.Hidden())

	msgs := client.MessagesTo(hideChannel)
	require.Len(t, msgs, 2)

	notice, ok := Decode(msgs[0].Text)
	assert.True(ok)
	assert.Equal(Envelope{From: User, To: []string{Emergency}, Action: ActionBackup, Type: TypeHide, Data: true}, notice)
	assert.False(msgs[0].Opts.Silent)

	payload, ok := Decode(msgs[1].Text)
	assert.True(ok)
	assert.Equal(TypeDeclare, payload.Type)

	// later publishes go straight to the hide channel
	assert.NoError(tr.Publish(context.Background(), []string{Clean}, ActionUpdate, TypeDeclare, nil, nil))
	assert.Len(client.MessagesTo(hideChannel), 3)
}

func TestPublishRateLimitDoesNotFailover(t *testing.T) {
	assert := assert.New(t)
	client := platform.NewFakeClient(1)
	client.Fail("SendMessage", exchangeChannel, &platform.RateLimitError{RetryAfter: time.Second}, 2)
	tr, _ := newTestTransport(t, client, nil)

	assert.NoError(tr.Publish(context.Background(), []string{Clean}, ActionUpdate, TypeDeclare, nil, nil))
	assert.False(tr.Hidden())
	assert.Len(client.MessagesTo(exchangeChannel), 1)
	assert.Empty(client.MessagesTo(hideChannel))
}

func TestPublishEncryptedAttachment(t *testing.T) {
	assert := assert.New(t)
	client := platform.NewFakeClient(1)
	cipher, err := crypt.New("secret")
	require.NoError(t, err)
	tr, tmp := newTestTransport(t, client, cipher)

	src := filepath.Join(t.TempDir(), "user_ids")
	require.NoError(t, os.WriteFile(src, []byte(`{"1": {}}`), 0o600))

	err = tr.Publish(context.Background(), []string{Backup}, ActionBackup, TypeData, "user_ids",
		&Attachment{Path: src, Encrypt: true})
	assert.NoError(err)

	require.Len(t, client.Documents, 1)
	doc := client.Documents[0]
	assert.NotEqual([]byte(`{"1": {}}`), doc.Content)
	assert.NoFileExists(doc.Path)

	entries, err := os.ReadDir(tmp)
	assert.NoError(err)
	assert.Empty(entries)

	env, ok := Decode(doc.Caption)
	assert.True(ok)
	assert.Equal("user_ids", env.Data)
}

func TestPublishEncryptedWithoutCipher(t *testing.T) {
	client := platform.NewFakeClient(1)
	tr, _ := newTestTransport(t, client, nil)

	err := tr.Publish(context.Background(), []string{Backup}, ActionBackup, TypeData, nil,
		&Attachment{Path: "/nonexistent", Encrypt: true})
	assert.ErrorIs(t, err, ErrNoCipher)
	assert.Empty(t, client.Documents)
}

func TestFetch(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	client := platform.NewFakeClient(1)
	cipher, err := crypt.New("secret")
	require.NoError(t, err)
	tr, tmp := newTestTransport(t, client, cipher)

	path, err := tr.Fetch(ctx, `{"1": {}}`, false)
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	assert.NoError(err)
	assert.Equal(`{"1": {}}`, string(raw))
	require.NoError(t, os.Remove(path))

	// the fake client writes the file id as the file content
	dir := t.TempDir()
	plain, sealed := filepath.Join(dir, "plain"), filepath.Join(dir, "sealed")
	require.NoError(t, os.WriteFile(plain, []byte("user_ids content"), 0o600))
	require.NoError(t, cipher.Encrypt(plain, sealed))
	sealedRaw, err := os.ReadFile(sealed)
	require.NoError(t, err)

	path, err = tr.Fetch(ctx, string(sealedRaw), true)
	require.NoError(t, err)
	raw, err = os.ReadFile(path)
	assert.NoError(err)
	assert.Equal("user_ids content", string(raw))
	require.NoError(t, os.Remove(path))

	_, err = tr.Fetch(ctx, "not sealed", true)
	assert.Error(err)

	_, err = tr.Fetch(ctx, "", false)
	assert.Error(err)

	client.Fail("DownloadFile", 0, fmt.Errorf("%w: file gone", platform.ErrInvalidDestination), -1)
	_, err = tr.Fetch(ctx, "x", false)
	assert.Error(err)

	entries, err := os.ReadDir(tmp)
	assert.NoError(err)
	assert.Empty(entries)
}

func TestFetchWithoutCipher(t *testing.T) {
	tr, _ := newTestTransport(t, platform.NewFakeClient(1), nil)
	_, err := tr.Fetch(context.Background(), "x", true)
	assert.ErrorIs(t, err, ErrNoCipher)
}
