package storage

import (
	"time"

	"tg-exchange/internal/models"

	"gorm.io/gorm"
)

// PendingMsgRepository handles database operations for PendingMessage
type PendingMsgRepository struct {
	db *gorm.DB
}

// NewPendingMsgRepository creates a new PendingMsgRepository
func NewPendingMsgRepository(db *gorm.DB) *PendingMsgRepository {
	return &PendingMsgRepository{db: db}
}

// MigrateTable ensures the PendingMessage table exists
func (r *PendingMsgRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.PendingMessage{})
}

// AddPendingMsg adds a new pending message record
func (r *PendingMsgRepository) AddPendingMsg(pm *models.PendingMessage) error {
	return r.db.Create(pm).Error
}

// RemovePendingMsg removes a pending message record by ChatID and MessageID
func (r *PendingMsgRepository) RemovePendingMsg(chatID int64, messageID int) error {
	return r.db.Where("chat_id = ? AND message_id = ?", chatID, messageID).Delete(&models.PendingMessage{}).Error
}

// GetAllPendingMsgs retrieves all pending message records
func (r *PendingMsgRepository) GetAllPendingMsgs() ([]models.PendingMessage, error) {
	var msgs []models.PendingMessage
	result := r.db.Order("delete_at").Find(&msgs)
	return msgs, result.Error
}

// GetDueMsgs returns the records whose deletion time has passed
func (r *PendingMsgRepository) GetDueMsgs(now time.Time) ([]models.PendingMessage, error) {
	var msgs []models.PendingMessage
	result := r.db.Where("delete_at <= ?", now).Order("delete_at").Find(&msgs)
	return msgs, result.Error
}
