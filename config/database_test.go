package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probe struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestOpenDatabaseSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "probe.db")
	db, err := OpenDatabase(DatabaseConfig{Driver: "sqlite", SQLitePath: path}, "silent", &probe{})
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasTable(&probe{}))
	require.NoError(t, db.Create(&probe{Name: "a"}).Error)

	// A second migration of an existing table is a no-op.
	require.NoError(t, Migrate(db, &probe{}))
	var n int64
	require.NoError(t, db.Model(&probe{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestOpenDatabaseUnknownDriver(t *testing.T) {
	_, err := OpenDatabase(DatabaseConfig{Driver: "oracle"}, "silent")
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", SQLiteDSN("a.db"))
}
