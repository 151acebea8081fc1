package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ryft/core/types"
)

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 100

// MaxListLimit bounds a single List call.
const MaxListLimit = 1000

// Entry is one committed ledger event.
type Entry struct {
	Seq        uint64            `gorm:"primaryKey;autoIncrement" json:"seq"`
	ID         uuid.UUID         `gorm:"type:uuid;uniqueIndex" json:"id"`
	UnitID     uuid.UUID         `gorm:"type:uuid;index" json:"unitId"`
	Type       string            `gorm:"size:64;index" json:"type"`
	Caller     string            `gorm:"size:64;index" json:"caller,omitempty"`
	Payload    string            `gorm:"type:text" json:"-"`
	Attributes map[string]string `gorm:"-" json:"attributes"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// TableName pins the table name.
func (Entry) TableName() string { return "ledger_events" }

// Journal archives committed ledger events in SQLite.
type Journal struct {
	db    *gorm.DB
	nowFn func() time.Time
}

// Open opens the SQLite database at dsn and migrates the schema.
func Open(dsn string) (*Journal, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm handle and migrates the schema.
func New(db *gorm.DB) (*Journal, error) {
	if db == nil {
		return nil, errors.New("journal: database required")
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &Journal{db: db, nowFn: time.Now}, nil
}

// Append stores the events of one committed unit in emission order.
func (j *Journal) Append(ctx context.Context, unitID uuid.UUID, caller string, events []*types.Event) error {
	if j == nil || len(events) == 0 {
		return nil
	}
	now := j.nowFn().UTC()
	entries := make([]Entry, 0, len(events))
	for _, evt := range events {
		if evt == nil {
			continue
		}
		payload, err := json.Marshal(evt.Attributes)
		if err != nil {
			return fmt.Errorf("journal: encode %s: %w", evt.Type, err)
		}
		entries = append(entries, Entry{
			ID:        uuid.New(),
			UnitID:    unitID,
			Type:      evt.Type,
			Caller:    caller,
			Payload:   string(payload),
			CreatedAt: now,
		})
	}
	if len(entries) == 0 {
		return nil
	}
	return j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entries).Error; err != nil {
			return fmt.Errorf("journal: append: %w", err)
		}
		return nil
	})
}

// List returns the newest entries first, optionally filtered by event type.
func (j *Journal) List(ctx context.Context, eventType string, limit int) ([]Entry, error) {
	if j == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	query := j.db.WithContext(ctx).Order("seq DESC").Limit(limit)
	if eventType != "" {
		query = query.Where("type = ?", eventType)
	}
	var entries []Entry
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	for i := range entries {
		if entries[i].Payload == "" {
			continue
		}
		if err := json.Unmarshal([]byte(entries[i].Payload), &entries[i].Attributes); err != nil {
			return nil, fmt.Errorf("journal: decode entry %s: %w", entries[i].ID, err)
		}
	}
	return entries, nil
}

// Close releases the underlying connection pool.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
