package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wfunc/tap-game/internal/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	lockRetries  = 30
	lockStaleAge = 5 * time.Minute
)

// acquireMigrationLock 以独占创建文件的方式获取迁移锁
func acquireMigrationLock(dbPath string) (*os.File, error) {
	lockPath := dbPath + ".migration.lock"

	for i := 0; i < lockRetries; i++ {
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
		if err == nil {
			logger.Debug("获取迁移锁成功", zap.String("lock", lockPath))
			return lockFile, nil
		}

		// 锁文件过旧视为上次进程异常退出
		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > lockStaleAge {
			logger.Warn("迁移锁文件过期，尝试删除", zap.String("lock", lockPath))
			os.Remove(lockPath)
			continue
		}

		logger.Debug("等待迁移锁...", zap.Int("attempt", i+1))
		time.Sleep(time.Second)
	}

	return nil, fmt.Errorf("无法获取迁移锁，可能有其他进程正在执行迁移")
}

// releaseMigrationLock 释放迁移锁
func releaseMigrationLock(lockFile *os.File) {
	if lockFile == nil {
		return
	}

	lockPath := lockFile.Name()
	lockFile.Close()
	os.Remove(lockPath)
	logger.Debug("释放迁移锁", zap.String("lock", lockPath))
}

// getDBPath 返回SQLite数据库文件路径，其他驱动或内存库返回空
func getDBPath(db *gorm.DB) string {
	if db == nil || db.Dialector.Name() != "sqlite" {
		return ""
	}

	sqlDB, err := db.DB()
	if err != nil {
		return ""
	}

	row := sqlDB.QueryRow("PRAGMA database_list")
	var seq int
	var name, file string
	if err := row.Scan(&seq, &name, &file); err != nil {
		return ""
	}
	return file
}

// CleanupStaleLocks 清理过期的锁文件
func CleanupStaleLocks() {
	matches, _ := filepath.Glob("./data/*.migration.lock")
	for _, lockFile := range matches {
		if info, err := os.Stat(lockFile); err == nil && time.Since(info.ModTime()) > 2*lockStaleAge {
			logger.Info("清理过期锁文件", zap.String("file", lockFile))
			os.Remove(lockFile)
		}
	}
}
