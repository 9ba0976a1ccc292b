package storage

import (
	"time"

	"tg-exchange/internal/models"

	"gorm.io/gorm"
)

// EnforcementRepository handles database operations for EnforcementRecord
type EnforcementRepository struct {
	db *gorm.DB
}

// NewEnforcementRepository creates a new EnforcementRepository
func NewEnforcementRepository(db *gorm.DB) *EnforcementRepository {
	return &EnforcementRepository{db: db}
}

// MigrateTable ensures the EnforcementRecord table exists
func (r *EnforcementRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.EnforcementRecord{})
}

// Record inserts a new EnforcementRecord
func (r *EnforcementRepository) Record(record *models.EnforcementRecord) error {
	return r.db.Create(record).Error
}

// ActiveByUser returns the applied, not yet lifted records of a user. A
// groupID of 0 matches every group.
func (r *EnforcementRepository) ActiveByUser(userID int64, groupID int64) ([]*models.EnforcementRecord, error) {
	var records []*models.EnforcementRecord
	q := r.db.Where("user_id = ? AND succeeded = ? AND is_unbanned = ?", userID, true, false)
	if groupID != 0 {
		q = q.Where("group_id = ?", groupID)
	}
	result := q.Order("id").Find(&records)
	return records, result.Error
}

// MarkUnbanned lifts every active record of a user, in all groups.
func (r *EnforcementRepository) MarkUnbanned(userID int64, unbannedBy string) error {
	result := r.db.Model(&models.EnforcementRecord{}).
		Where("user_id = ? AND is_unbanned = ?", userID, false).
		Updates(map[string]interface{}{"is_unbanned": true, "updated_at": time.Now(), "unbanned_by": unbannedBy})
	return result.Error
}

// CountSince counts successful actions since t, for status replies.
func (r *EnforcementRepository) CountSince(t time.Time) (int64, error) {
	var n int64
	err := r.db.Model(&models.EnforcementRecord{}).
		Where("succeeded = ? AND created_at >= ?", true, t).
		Count(&n).Error
	return n, err
}
