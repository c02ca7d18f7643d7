package repository

import (
	"context"
	"sync"

	apperrors "github.com/wfunc/tap-game/internal/errors"
	"gorm.io/gorm"
)

// Manager 仓储管理器，提供所有仓储的统一访问接口
type Manager struct {
	db *gorm.DB

	// 仓储实例（使用懒加载）
	playerOnce sync.Once
	player     PlayerRepository

	upgradeOnce sync.Once
	upgrade     UpgradeOwnershipRepository

	achievementOnce sync.Once
	achievement     AchievementRepository
}

// NewManager 创建仓储管理器
func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// GetDB 获取数据库实例
func (m *Manager) GetDB() *gorm.DB {
	return m.db
}

// Player 获取玩家状态仓储
func (m *Manager) Player() PlayerRepository {
	m.playerOnce.Do(func() {
		m.player = NewPlayerRepository(m.db)
	})
	return m.player
}

// UpgradeOwnership 获取升级拥有数量仓储
func (m *Manager) UpgradeOwnership() UpgradeOwnershipRepository {
	m.upgradeOnce.Do(func() {
		m.upgrade = NewUpgradeOwnershipRepository(m.db)
	})
	return m.upgrade
}

// Achievement 获取成就状态仓储
func (m *Manager) Achievement() AchievementRepository {
	m.achievementOnce.Do(func() {
		m.achievement = NewAchievementRepository(m.db)
	})
	return m.achievement
}

// WithTransaction 在事务中执行fn，fn中的仓储共享同一个事务
func (m *Manager) WithTransaction(ctx context.Context, fn func(tx *Manager) error) error {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewManager(tx))
	})
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return err
		}
		return apperrors.Wrap(err, apperrors.ErrTransaction)
	}
	return nil
}
