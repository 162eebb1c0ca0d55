package models

import "time"

type HistoryEntry struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID string    `gorm:"not null;index:idx_history_entries_session"`
	Payload   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (HistoryEntry) TableName() string {
	return "history_entries"
}
