package models

import "time"

// EnforcementRecord is one action applied to a user in one group, kept for
// auditing when the database is enabled.
type EnforcementRecord struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	GroupID       int64  `gorm:"index;not null"`
	UserID        int64  `gorm:"index;not null"`
	OriginGroupID int64  `gorm:"index"`
	Action        string `gorm:"size:16;not null"`
	Rule          string `gorm:"size:64"`
	EvidenceID    int    `gorm:"default:0"`
	Succeeded     bool   `gorm:"default:false"`
	Error         string `gorm:"type:text"`
	IsUnbanned    bool   `gorm:"default:false"`
	UnbannedBy    string `gorm:"default:''"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
