package blobstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BlobRow is the table layout used by the SQL backing.
type BlobRow struct {
	Key       string    `gorm:"column:blob_key;type:varchar(255);primaryKey"`
	Value     []byte    `gorm:"column:blob_value;type:blob"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName overrides the GORM default.
func (BlobRow) TableName() string {
	return "entitlement_blobs"
}

// SQL stores blobs as rows through GORM.
type SQL struct {
	db *gorm.DB
}

// NewSQL creates a table-backed store. Call Migrate once before use.
func NewSQL(db *gorm.DB) *SQL {
	return &SQL{db: db}
}

// Migrate creates or updates the entitlement_blobs table.
func (s *SQL) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&BlobRow{})
}

// Get returns the value stored under key.
func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	var row BlobRow
	err := s.db.WithContext(ctx).Where("blob_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", key, err)
	}
	return row.Value, nil
}

// Put upserts the row for key.
func (s *SQL) Put(ctx context.Context, key string, value []byte) error {
	row := BlobRow{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "blob_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"blob_value", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to write blob %s: %w", key, err)
	}
	return nil
}
