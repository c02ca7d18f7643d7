package repository

import (
	"context"
	"time"

	apperrors "github.com/wfunc/tap-game/internal/errors"
	"github.com/wfunc/tap-game/internal/logger"
	"github.com/wfunc/tap-game/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpgradeOwnershipRepository 升级拥有数量仓储接口
type UpgradeOwnershipRepository interface {
	BaseRepository
	ListByPlayer(ctx context.Context, playerID string) ([]*models.UpgradeOwnership, error)
	Upsert(ctx context.Context, playerID, upgradeID string, count int) error
}

// upgradeOwnershipRepo 升级拥有数量仓储实现
type upgradeOwnershipRepo struct {
	*BaseRepo
}

// NewUpgradeOwnershipRepository 创建升级拥有数量仓储
func NewUpgradeOwnershipRepository(db *gorm.DB) UpgradeOwnershipRepository {
	return &upgradeOwnershipRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// ListByPlayer 查询玩家的全部升级
func (r *upgradeOwnershipRepo) ListByPlayer(ctx context.Context, playerID string) ([]*models.UpgradeOwnership, error) {
	var list []*models.UpgradeOwnership
	err := r.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("upgrade_id asc").
		Find(&list).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, playerID)
	}
	return list, nil
}

// Upsert 写入拥有数量，已存在则更新
func (r *upgradeOwnershipRepo) Upsert(ctx context.Context, playerID, upgradeID string, count int) error {
	start := time.Now()
	record := &models.UpgradeOwnership{
		PlayerID:  playerID,
		UpgradeID: upgradeID,
		Count:     count,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "player_id"}, {Name: "upgrade_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"count", "updated_at"}),
		}).
		Create(record).Error
	logger.LogDatabaseOperation("upsert", "upgrade_ownerships", time.Since(start), err)

	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, playerID, upgradeID)
	}
	return nil
}

// WithTx 使用事务
func (r *upgradeOwnershipRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &upgradeOwnershipRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
