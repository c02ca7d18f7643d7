package database

import (
	"fmt"

	"github.com/wfunc/tap-game/internal/logger"
	"github.com/wfunc/tap-game/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate 迁移表结构并创建索引
func Migrate(db *gorm.DB) error {
	// 清理过期锁文件
	CleanupStaleLocks()

	// 获取迁移锁，避免多个进程同时迁移同一个SQLite文件
	if dbPath := getDBPath(db); dbPath != "" {
		lockFile, err := acquireMigrationLock(dbPath)
		if err != nil {
			logger.Error("无法获取迁移锁", zap.Error(err))
			return fmt.Errorf("获取迁移锁失败: %w", err)
		}
		defer releaseMigrationLock(lockFile)
	}

	logger.Info("开始数据库迁移...")

	for _, model := range models.AllModels() {
		if err := db.AutoMigrate(model); err != nil {
			logger.Error("迁移失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return err
		}
		logger.Debug("迁移成功", zap.String("model", fmt.Sprintf("%T", model)))
	}

	createIndexes(db)

	logger.Info("数据库迁移完成")
	return nil
}

// createIndexes 创建查询索引，失败只告警
func createIndexes(db *gorm.DB) {
	indexes := map[string]string{
		"idx_players_last_update_at":   "CREATE INDEX IF NOT EXISTS idx_players_last_update_at ON players(last_update_at)",
		"idx_upgrade_ownerships_player": "CREATE INDEX IF NOT EXISTS idx_upgrade_ownerships_player ON upgrade_ownerships(player_id)",
		"idx_achievement_records_player": "CREATE INDEX IF NOT EXISTS idx_achievement_records_player ON achievement_records(player_id)",
	}

	for name, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			logger.Warn("创建索引失败", zap.String("index", name), zap.Error(err))
		}
	}
}
