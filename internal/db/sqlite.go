package db

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultMemoryPath keeps session history in a process-local SQLite database
// that disappears when the server stops.
const DefaultMemoryPath = "file:csvdash_history?mode=memory&cache=shared"

func OpenSQLite(dbPath string) (*gorm.DB, error) {
	if strings.TrimSpace(dbPath) == "" || dbPath == ":memory:" {
		dbPath = DefaultMemoryPath
	}
	memory := isMemoryPath(dbPath)
	if !memory {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	database, err := gorm.Open(sqlite.Open(buildDSN(dbPath)), &gorm.Config{
		Logger: gormlogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormlogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  true,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if memory {
		// An in-memory database lives only as long as one of its connections.
		sqlDB, err := database.DB()
		if err != nil {
			return nil, fmt.Errorf("open sql db: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	}

	if err := applyEmbeddedMigrations(database); err != nil {
		return nil, fmt.Errorf("apply embedded migrations: %w", err)
	}

	return database, nil
}

func isMemoryPath(dbPath string) bool {
	return strings.Contains(dbPath, "mode=memory")
}

func buildDSN(dbPath string) string {
	separator := "?"
	if strings.Contains(dbPath, "?") {
		separator = "&"
	}
	return dbPath + separator + "_pragma=busy_timeout(5000)"
}
