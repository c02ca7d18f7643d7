package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/tap-game/internal/config"
	gormlogger "gorm.io/gorm/logger"
)

func testConfig(dsn string) *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Driver:          "sqlite",
		DSN:             dsn,
		MaxIdleConns:    2,
		MaxOpenConns:    4,
		ConnMaxLifetime: time.Hour,
		LogLevel:        "silent",
	}
}

func TestOpenMemoryAndMigrate(t *testing.T) {
	db, err := Open(testConfig(":memory:"))
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	for _, table := range []string{"players", "upgrade_ownerships", "achievement_records"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	// 重复迁移是幂等的
	require.NoError(t, Migrate(db))
	assert.NoError(t, Ping(context.Background(), db))
	assert.Equal(t, "", getDBPath(db))
}

func TestOpenFileCreatesDirectory(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "tap-game.db")

	db, err := Open(testConfig(dsn))
	require.NoError(t, err)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	require.NoError(t, Migrate(db))
	_, err = os.Stat(dsn)
	assert.NoError(t, err)

	// 迁移结束后锁文件已释放
	_, err = os.Stat(getDBPath(db) + ".migration.lock")
	assert.True(t, os.IsNotExist(err))
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestMigrationLockExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.db")

	lock, err := acquireMigrationLock(path)
	require.NoError(t, err)
	_, err = os.Stat(path + ".migration.lock")
	assert.NoError(t, err)

	releaseMigrationLock(lock)
	_, err = os.Stat(path + ".migration.lock")
	assert.True(t, os.IsNotExist(err))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, parseLogLevel("silent"))
	assert.Equal(t, gormlogger.Warn, parseLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, parseLogLevel(""))
}

func TestIsSQLiteMemory(t *testing.T) {
	assert.True(t, isSQLiteMemory(":memory:"))
	assert.True(t, isSQLiteMemory("file:test?mode=memory&cache=shared"))
	assert.False(t, isSQLiteMemory("./data/tap-game.db"))
}
