// Package database provides database utilities including migrations
package database

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

//go:embed migrations/postgres/*.sql migrations/mysql/*.sql
var migrationsFS embed.FS

// MigrationRecord tracks which migrations have been applied
type MigrationRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;size:255"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for migrations
func (MigrationRecord) TableName() string {
	return "_glow_migrations"
}

// MigrationFiles lists a dialect's migration files in apply order.
func MigrationFiles(dialect string) ([]string, error) {
	dir := "migrations/" + dialect
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("no migrations for dialect %q: %w", dialect, err)
	}

	// Sort files by name (001_, 002_, etc.)
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// RunMigrations executes all pending SQL migrations for the connection's
// dialect and returns the names it applied.
func RunMigrations(db *gorm.DB, logger zerolog.Logger) ([]string, error) {
	dialect := db.Dialector.Name()

	// Ensure migrations table exists
	if err := db.AutoMigrate(&MigrationRecord{}); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	files, err := MigrationFiles(dialect)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, file := range files {
		// Check if already applied
		var count int64
		if err := db.Model(&MigrationRecord{}).Where("name = ?", file).Count(&count).Error; err != nil {
			return applied, fmt.Errorf("failed to check migration %s: %w", file, err)
		}
		if count > 0 {
			logger.Debug().Str("migration", file).Msg("migration already applied")
			continue
		}

		content, err := fs.ReadFile(migrationsFS, "migrations/"+dialect+"/"+file)
		if err != nil {
			return applied, fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		logger.Info().Str("migration", file).Str("dialect", dialect).Msg("applying migration")
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(string(content)).Error; err != nil {
				return fmt.Errorf("failed to apply migration %s: %w", file, err)
			}
			if err := tx.Create(&MigrationRecord{Name: file}).Error; err != nil {
				return fmt.Errorf("failed to record migration %s: %w", file, err)
			}
			return nil
		})
		if err != nil {
			return applied, err
		}
		applied = append(applied, file)
	}

	return applied, nil
}
