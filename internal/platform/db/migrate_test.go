package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"chatbot-api/internal/config"
	"chatbot-api/internal/model"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := Open(context.Background(), config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	}, "")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"}, "")
	assert.Error(t, err)
}

func TestMigrate_CreatesTables(t *testing.T) {
	gdb := openTestDB(t)
	require.NoError(t, Migrate(gdb))

	assert.True(t, gdb.Migrator().HasTable(&model.Session{}))
	assert.True(t, gdb.Migrator().HasTable(&model.Message{}))
	assert.True(t, gdb.Migrator().HasTable(&schemaMigration{}))
}

func TestMigrate_Idempotent(t *testing.T) {
	gdb := openTestDB(t)
	require.NoError(t, Migrate(gdb))
	require.NoError(t, Migrate(gdb))

	var count int64
	require.NoError(t, gdb.Model(&schemaMigration{}).Count(&count).Error)
	assert.EqualValues(t, len(migrations), count, "reruns must not reapply versions")
}

func TestMigrate_RecordsVersionsInOrder(t *testing.T) {
	gdb := openTestDB(t)
	require.NoError(t, Migrate(gdb))

	var applied []schemaMigration
	require.NoError(t, gdb.Order("version ASC").Find(&applied).Error)
	require.Len(t, applied, len(migrations))
	for i, m := range applied {
		assert.Equal(t, migrations[i].version, m.Version)
		assert.Equal(t, migrations[i].name, m.Name)
	}
}
