package db

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"chatbot-api/internal/model"
)

type schemaMigration struct {
	Version   int       `gorm:"primaryKey"`
	Name      string    `gorm:"size:128;not null"`
	AppliedAt time.Time `gorm:"not null"`
}

func (schemaMigration) TableName() string {
	return "schema_migrations"
}

type migration struct {
	version int
	name    string
	run     func(tx *gorm.DB) error
}

var migrations = []migration{
	{
		version: 1,
		name:    "create_chat_sessions",
		run: func(tx *gorm.DB) error {
			return tx.Migrator().AutoMigrate(&model.Session{})
		},
	},
	{
		version: 2,
		name:    "create_messages",
		run: func(tx *gorm.DB) error {
			return tx.Migrator().AutoMigrate(&model.Message{})
		},
	},
}

// Migrate applies pending schema migrations in order. It runs before the
// server accepts traffic; each step commits together with its version record.
func Migrate(db *gorm.DB) error {
	if err := db.Migrator().AutoMigrate(&schemaMigration{}); err != nil {
		return fmt.Errorf("create schema_migrations table failed: %w", err)
	}

	var applied []schemaMigration
	if err := db.Order("version ASC").Find(&applied).Error; err != nil {
		return fmt.Errorf("read applied migrations failed: %w", err)
	}
	appliedSet := make(map[int]bool, len(applied))
	for _, m := range applied {
		appliedSet[m.Version] = true
	}

	for _, m := range migrations {
		if appliedSet[m.version] {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.run(tx); err != nil {
				return err
			}
			return tx.Create(&schemaMigration{
				Version:   m.version,
				Name:      m.name,
				AppliedAt: time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("apply migration %d (%s) failed: %w", m.version, m.name, err)
		}
	}
	return nil
}
