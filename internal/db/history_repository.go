package db

import (
	"fmt"

	"github.com/terraincognita07/csvdash/internal/models"
	"gorm.io/gorm"
)

type HistoryRepository struct {
	database *gorm.DB
}

func NewHistoryRepository(database *gorm.DB) *HistoryRepository {
	return &HistoryRepository{database: database}
}

// ListRecords returns the session history most-recent-first.
func (repo *HistoryRepository) ListRecords(sessionID string) ([]models.SummaryRecord, error) {
	entries := make([]models.HistoryEntry, 0)
	if err := repo.database.
		Where("session_id = ?", sessionID).
		Order("id DESC").
		Find(&entries).Error; err != nil {
		return nil, err
	}

	records := make([]models.SummaryRecord, 0, len(entries))
	for _, entry := range entries {
		records = append(records, models.DecodeSummaryRecord([]byte(entry.Payload)))
	}
	return records, nil
}

func (repo *HistoryRepository) PrependRecord(sessionID string, record models.SummaryRecord) error {
	entry, err := newHistoryEntry(sessionID, record)
	if err != nil {
		return err
	}
	return repo.database.Create(&entry).Error
}

// ReplaceRecords swaps the whole session history for records, which are given
// most-recent-first.
func (repo *HistoryRepository) ReplaceRecords(sessionID string, records []models.SummaryRecord) error {
	entries := make([]models.HistoryEntry, 0, len(records))
	for index := len(records) - 1; index >= 0; index-- {
		entry, err := newHistoryEntry(sessionID, records[index])
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}

	return repo.database.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.HistoryEntry{}).Error; err != nil {
			return err
		}
		for index := range entries {
			if err := tx.Create(&entries[index]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (repo *HistoryRepository) ClearRecords(sessionID string) error {
	return repo.database.Where("session_id = ?", sessionID).Delete(&models.HistoryEntry{}).Error
}

func newHistoryEntry(sessionID string, record models.SummaryRecord) (models.HistoryEntry, error) {
	payload, err := record.Payload()
	if err != nil {
		return models.HistoryEntry{}, fmt.Errorf("encode summary record: %w", err)
	}
	return models.HistoryEntry{SessionID: sessionID, Payload: string(payload)}, nil
}
