package db

import "gorm.io/gorm"

type Repositories struct {
	History *HistoryRepository
}

func NewRepositories(database *gorm.DB) *Repositories {
	return &Repositories{
		History: NewHistoryRepository(database),
	}
}
