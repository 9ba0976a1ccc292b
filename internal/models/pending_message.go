package models

import "time"

// PendingMessage is a bot reply in a group that must be deleted at DeleteAt.
type PendingMessage struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	ChatID    int64     `gorm:"index:idx_chat_message,unique"`
	MessageID int       `gorm:"index:idx_chat_message,unique"`
	Purpose   string    `gorm:"size:32"`
	DeleteAt  time.Time `gorm:"index"`
}

// Due reports whether the message should already be gone.
func (p PendingMessage) Due(now time.Time) bool {
	return !now.Before(p.DeleteAt)
}
