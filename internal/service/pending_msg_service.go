package service

import (
	"context"
	"sync"
	"time"

	"tg-exchange/internal/logger"
	"tg-exchange/internal/models"
	"tg-exchange/internal/platform"
	"tg-exchange/internal/retry"
	"tg-exchange/internal/tasks"
)

// PendingStore persists messages waiting for deletion.
type PendingStore interface {
	AddPendingMsg(pm *models.PendingMessage) error
	RemovePendingMsg(chatID int64, messageID int) error
	GetAllPendingMsgs() ([]models.PendingMessage, error)
}

// Reports posts messages in groups that delete themselves after a while.
// Without a database the pending deletions only live in memory and are
// flushed on shutdown.
type Reports struct {
	client platform.Client
	sup    *retry.Supervisor
	pool   *tasks.Pool
	repo   PendingStore

	mu     sync.Mutex
	memory []models.PendingMessage
	now    func() time.Time
}

// NewReports creates a Reports. repo may be nil.
func NewReports(client platform.Client, sup *retry.Supervisor, pool *tasks.Pool, repo PendingStore) *Reports {
	return &Reports{client: client, sup: sup, pool: pool, repo: repo, now: time.Now}
}

// Send posts text in chatID and deletes it after ttl.
func (r *Reports) Send(ctx context.Context, chatID int64, text string, replyTo int, ttl time.Duration) (int, error) {
	res := platform.Call(ctx, r.sup, "report.send", func(ctx context.Context) (int, error) {
		return r.client.SendMessage(ctx, chatID, text, platform.SendOptions{HTML: true, ReplyTo: replyTo})
	})
	if !res.OK() {
		return 0, res.Err
	}
	r.DeleteLater(chatID, res.Value, "report", ttl)
	return res.Value, nil
}

// DeleteLater schedules the deletion of an existing message.
func (r *Reports) DeleteLater(chatID int64, messageID int, purpose string, ttl time.Duration) {
	pm := models.PendingMessage{
		ChatID:    chatID,
		MessageID: messageID,
		Purpose:   purpose,
		DeleteAt:  r.now().Add(ttl),
	}
	r.add(pm)
	r.pool.After(ttl, "report-delete", func(ctx context.Context) { r.delete(ctx, pm) })
}

func (r *Reports) add(pm models.PendingMessage) {
	if r.repo != nil {
		if err := r.repo.AddPendingMsg(&pm); err != nil {
			logger.Warningf("Error adding pending message: %v", err)
		}
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memory = append(r.memory, pm)
	logger.Debugf("Added message %d in chat %d to in-memory deletion list.", pm.MessageID, pm.ChatID)
}

func (r *Reports) remove(chatID int64, messageID int) {
	if r.repo != nil {
		if err := r.repo.RemovePendingMsg(chatID, messageID); err != nil {
			logger.Warningf("Error removing pending message: %v", err)
		}
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, item := range r.memory {
		if item.ChatID == chatID && item.MessageID == messageID {
			r.memory = append(r.memory[:i], r.memory[i+1:]...)
			return
		}
	}
}

func (r *Reports) delete(ctx context.Context, pm models.PendingMessage) {
	res := platform.Exec(ctx, r.sup, "report.delete", func(ctx context.Context) error {
		return r.client.DeleteMessages(ctx, pm.ChatID, []int{pm.MessageID})
	})
	if !res.OK() {
		logger.Debugf("Delete message %d in chat %d: %v", pm.MessageID, pm.ChatID, res.Err)
	}
	r.remove(pm.ChatID, pm.MessageID)
}

// Pending lists the messages still waiting for deletion.
func (r *Reports) Pending() []models.PendingMessage {
	if r.repo != nil {
		msgs, err := r.repo.GetAllPendingMsgs()
		if err != nil {
			logger.Warningf("Error loading pending messages: %v", err)
		}
		return msgs
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.PendingMessage(nil), r.memory...)
}

// Resume deletes the messages left over from a previous run and schedules
// the ones not yet due.
func (r *Reports) Resume(ctx context.Context) {
	now := r.now()
	for _, pm := range r.Pending() {
		if pm.Due(now) {
			r.delete(ctx, pm)
			continue
		}
		r.pool.After(pm.DeleteAt.Sub(now), "report-delete", func(ctx context.Context) { r.delete(ctx, pm) })
	}
}

// Flush deletes every pending message now. It is called on shutdown when
// the pending list only lives in memory.
func (r *Reports) Flush(ctx context.Context) {
	if r.repo != nil {
		return
	}
	r.mu.Lock()
	items := r.memory
	r.memory = nil
	r.mu.Unlock()

	for _, item := range items {
		logger.Infof("Shutdown: Deleting message %d in chat %d", item.MessageID, item.ChatID)
		_ = r.client.DeleteMessages(ctx, item.ChatID, []int{item.MessageID})
	}
	if len(items) > 0 {
		logger.Infof("Finished attempting to delete in-memory pending messages during shutdown: %d", len(items))
	}
}
