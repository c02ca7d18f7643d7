package adapter

import (
	"context"
	"fmt"

	"github.com/wfunc/tap-game/internal/config"
	"github.com/wfunc/tap-game/internal/database"
	"github.com/wfunc/tap-game/internal/game"
)

// StoreType 存储类型
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"   // 进程内存，重启丢失
	StoreTypeDatabase StoreType = "database" // GORM关系库：sqlite / mysql / postgres
)

// GameStore 带生命周期管理的游戏存储
type GameStore interface {
	game.Store
	Type() StoreType
	Ping(ctx context.Context) error
	Close() error
	Stats(ctx context.Context, achievementIDs []string) (*game.Stats, error)
}

// NewStore 按数据库配置创建存储
func NewStore(cfg *config.DatabaseConfig) (GameStore, error) {
	if cfg.IsMemory() {
		return NewMemoryStore(), nil
	}

	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				sqlDB.Close()
			}
			return nil, fmt.Errorf("数据库迁移失败: %w", err)
		}
	}

	return NewDatabaseStore(db), nil
}
