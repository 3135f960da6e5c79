package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aethra/glow/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ModuleRow is one stored row of a module. Data keeps the whole row as JSON.
type ModuleRow struct {
	ModuleID  string     `gorm:"primaryKey;size:63"`
	RowID     int64      `gorm:"primaryKey;column:row_id"`
	Position  int        `gorm:"not null;default:0"`
	Data      models.Row `gorm:"not null"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
}

// TableName returns the table name for ModuleRow
func (ModuleRow) TableName() string {
	return "module_rows"
}

// Store persists module rows. It is a row source for the data engine.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewStore creates a store over db.
func NewStore(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger.With().Str("component", "store").Logger()}
}

// Rows returns a module's rows in their stored order. An unseeded module has
// no rows.
func (s *Store) Rows(ctx context.Context, moduleID string) ([]models.Row, error) {
	var records []ModuleRow
	if err := s.rowsQuery(ctx, moduleID).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load rows of %s: %w", moduleID, err)
	}
	rows := make([]models.Row, len(records))
	for i, rec := range records {
		rows[i] = rec.Data
	}
	return rows, nil
}

func (s *Store) rowsQuery(ctx context.Context, moduleID string) *gorm.DB {
	return s.db.WithContext(ctx).Where("module_id = ?", moduleID).Order("position")
}

// ReplaceModule swaps a module's rows for rows in one transaction.
func (s *Store) ReplaceModule(ctx context.Context, moduleID string, rows []models.Row) error {
	records := make([]ModuleRow, 0, len(rows))
	for i, r := range rows {
		id, ok := models.AsFloat(r["id"])
		if !ok {
			return fmt.Errorf("row %d of %s has no numeric id", i, moduleID)
		}
		records = append(records, ModuleRow{ModuleID: moduleID, RowID: int64(id), Position: i, Data: r})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("module_id = ?", moduleID).Delete(&ModuleRow{}).Error; err != nil {
			return fmt.Errorf("clear %s: %w", moduleID, err)
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(records, 200).Error; err != nil {
			return fmt.Errorf("insert %s: %w", moduleID, err)
		}
		return nil
	})
}

// Seed stores every module of built, replacing what was there.
func (s *Store) Seed(ctx context.Context, built map[string][]models.Row) error {
	ids := make([]string, 0, len(built))
	for id := range built {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := s.ReplaceModule(ctx, id, built[id]); err != nil {
			return err
		}
		s.logger.Info().Str("module", id).Int("rows", len(built[id])).Msg("module seeded")
	}
	return nil
}

// Counts returns the number of stored rows per module.
func (s *Store) Counts(ctx context.Context) (map[string]int64, error) {
	var out []struct {
		ModuleID string
		N        int64
	}
	err := s.db.WithContext(ctx).Model(&ModuleRow{}).
		Select("module_id, COUNT(*) AS n").Group("module_id").Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}
	counts := make(map[string]int64, len(out))
	for _, c := range out {
		counts[c.ModuleID] = c.N
	}
	return counts, nil
}
