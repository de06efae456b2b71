package store

import (
	"context"
	"fmt"

	"gradebook_go/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBackend persists the collections in a SQL database.
type GormBackend struct {
	db *gorm.DB
}

// NewGormBackend wraps an open gorm connection.
func NewGormBackend(db *gorm.DB) *GormBackend {
	return &GormBackend{db: db}
}

func (b *GormBackend) SelectAll(ctx context.Context, c models.Collection, dest interface{}) error {
	model := c.Model()
	if model == nil {
		return fmt.Errorf("unknown collection %q", c)
	}
	return b.db.WithContext(ctx).Model(model).Find(dest).Error
}

func (b *GormBackend) Upsert(ctx context.Context, c models.Collection, rows interface{}, conflictKeys ...string) error {
	if rowCount(rows) == 0 {
		return nil
	}
	if len(conflictKeys) == 0 {
		conflictKeys = []string{"id"}
	}
	columns := make([]clause.Column, 0, len(conflictKeys))
	for _, key := range conflictKeys {
		columns = append(columns, clause.Column{Name: key})
	}
	return b.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: columns, UpdateAll: true}).
		Create(rows).Error
}

func (b *GormBackend) Insert(ctx context.Context, c models.Collection, rows interface{}) error {
	if rowCount(rows) == 0 {
		return nil
	}
	return b.db.WithContext(ctx).Create(rows).Error
}

func (b *GormBackend) Delete(ctx context.Context, c models.Collection, match Filter) error {
	model := c.Model()
	if model == nil {
		return fmt.Errorf("unknown collection %q", c)
	}
	tx := b.db.WithContext(ctx)
	if len(match) == 0 {
		tx = tx.Session(&gorm.Session{AllowGlobalUpdate: true})
	} else {
		tx = tx.Where(map[string]interface{}(match))
	}
	return tx.Delete(model).Error
}

// Transaction runs fn inside a database transaction.
func (b *GormBackend) Transaction(ctx context.Context, fn func(tx Backend) error) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormBackend{db: tx})
	})
}
