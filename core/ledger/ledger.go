package ledger

import (
	"context"
	"fmt"
	"time"

	"entitlement-manager/core/reconcile"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AttemptRow is one journaled finalization attempt.
type AttemptRow struct {
	ID         string    `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	UserID     string    `gorm:"column:user_id;type:varchar(128);index:idx_attempt_user" json:"user_id"`
	ProductID  string    `gorm:"column:product_id;type:varchar(128)" json:"product_id"`
	Token      string    `gorm:"column:purchase_token;type:varchar(255);index" json:"purchase_token"`
	Effect     string    `gorm:"column:effect;type:varchar(16)" json:"effect"`
	Number     int       `gorm:"column:attempt;type:int" json:"attempt"`
	Outcome    string    `gorm:"column:outcome;type:varchar(32)" json:"outcome"`
	Error      string    `gorm:"column:error;type:text" json:"error,omitempty"`
	DurationMS int64     `gorm:"column:duration_ms;type:bigint" json:"duration_ms"`
	CreatedAt  time.Time `gorm:"column:created_at;index:idx_attempt_user" json:"created_at"`
}

// TableName implements the gorm tabler interface.
func (AttemptRow) TableName() string {
	return "entitlement_attempts"
}

// Ledger stores AttemptRows.
type Ledger struct {
	db *gorm.DB
}

// New creates a Ledger over db.
func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Migrate creates or updates the attempts table.
func (l *Ledger) Migrate(ctx context.Context) error {
	if err := l.db.WithContext(ctx).AutoMigrate(&AttemptRow{}); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", AttemptRow{}.TableName(), err)
	}
	return nil
}

// Record inserts one attempt.
func (l *Ledger) Record(ctx context.Context, a reconcile.Attempt) error {
	row := AttemptRow{
		ID:         uuid.NewString(),
		UserID:     a.UserID,
		ProductID:  a.ProductID,
		Token:      a.Token,
		Effect:     string(a.Effect),
		Number:     a.Number,
		Outcome:    string(a.Outcome),
		Error:      a.Error,
		DurationMS: a.Duration.Milliseconds(),
		CreatedAt:  a.At,
	}
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record attempt for %s: %w", a.Token, err)
	}
	return nil
}

// List returns the most recent attempts of userID, newest first.
func (l *Ledger) List(ctx context.Context, userID string, limit int) ([]AttemptRow, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []AttemptRow
	err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("attempt DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return rows, nil
}
