package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tg-exchange/internal/config"
	"tg-exchange/internal/models"
)

func openTestDB(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Logger.Level = "ERROR"
	cfg.Database.Enabled = true
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "audit.db")
	return cfg
}

func TestEnforcementRepository(t *testing.T) {
	assert := assert.New(t)
	db, err := OpenDB(openTestDB(t))
	require.NoError(t, err)

	repo := NewEnforcementRepository(db)
	require.NoError(t, repo.MigrateTable())

	since := time.Now().Add(-time.Minute)
	for _, r := range []*models.EnforcementRecord{
		{GroupID: -100, UserID: 42, Action: "ban", Succeeded: true},
		{GroupID: -200, UserID: 42, Action: "restrict", Succeeded: true},
		{GroupID: -300, UserID: 42, Action: "ban", Error: "forbidden"},
		{GroupID: -100, UserID: 43, Action: "delete", Succeeded: true},
	} {
		require.NoError(t, repo.Record(r))
	}

	active, err := repo.ActiveByUser(42, 0)
	require.NoError(t, err)
	assert.Len(active, 2)

	active, err = repo.ActiveByUser(42, -200)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal("restrict", active[0].Action)

	n, err := repo.CountSince(since)
	require.NoError(t, err)
	assert.Equal(int64(3), n)

	require.NoError(t, repo.MarkUnbanned(42, "forgive"))
	active, err = repo.ActiveByUser(42, 0)
	require.NoError(t, err)
	assert.Empty(active)

	active, err = repo.ActiveByUser(43, 0)
	require.NoError(t, err)
	assert.Len(active, 1)
}

func TestPendingMsgRepository(t *testing.T) {
	assert := assert.New(t)
	db, err := OpenDB(openTestDB(t))
	require.NoError(t, err)

	repo := NewPendingMsgRepository(db)
	require.NoError(t, repo.MigrateTable())

	now := time.Now()
	require.NoError(t, repo.AddPendingMsg(&models.PendingMessage{ChatID: -100, MessageID: 1, Purpose: "report", DeleteAt: now.Add(-time.Minute)}))
	require.NoError(t, repo.AddPendingMsg(&models.PendingMessage{ChatID: -100, MessageID: 2, Purpose: "report", DeleteAt: now.Add(time.Hour)}))

	all, err := repo.GetAllPendingMsgs()
	require.NoError(t, err)
	assert.Len(all, 2)

	due, err := repo.GetDueMsgs(now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(1, due[0].MessageID)

	require.NoError(t, repo.RemovePendingMsg(-100, 1))
	all, err = repo.GetAllPendingMsgs()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(2, all[0].MessageID)
}

func TestOpenDBRejectsUnknownDriver(t *testing.T) {
	cfg := openTestDB(t)
	cfg.Database.Driver = "oracle"
	_, err := OpenDB(cfg)
	assert.Error(t, err)
}
