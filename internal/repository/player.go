package repository

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/wfunc/tap-game/internal/errors"
	"github.com/wfunc/tap-game/internal/logger"
	"github.com/wfunc/tap-game/internal/models"
	"gorm.io/gorm"
)

// PlayerRepository 玩家状态仓储接口
type PlayerRepository interface {
	BaseRepository
	Create(ctx context.Context, player *models.Player) error
	FindByPlayerID(ctx context.Context, playerID string) (*models.Player, error)
	Exists(ctx context.Context, playerID string) (bool, error)
	UpdateState(ctx context.Context, player *models.Player) error
	Count(ctx context.Context) (int64, error)
}

// playerRepo 玩家状态仓储实现
type playerRepo struct {
	*BaseRepo
}

// NewPlayerRepository 创建玩家状态仓储
func NewPlayerRepository(db *gorm.DB) PlayerRepository {
	return &playerRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建玩家
func (r *playerRepo) Create(ctx context.Context, player *models.Player) error {
	start := time.Now()
	err := r.db.WithContext(ctx).Create(player).Error
	logger.LogDatabaseOperation("create", "players", time.Since(start), err)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseInsert, player.PlayerID)
	}
	return nil
}

// FindByPlayerID 根据玩家ID查找
func (r *playerRepo) FindByPlayerID(ctx context.Context, playerID string) (*models.Player, error) {
	var player models.Player
	err := r.db.WithContext(ctx).Where("player_id = ?", playerID).First(&player).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrPlayerNotFound, playerID)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, playerID)
	}
	return &player, nil
}

// Exists 玩家是否存在
func (r *playerRepo) Exists(ctx context.Context, playerID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Player{}).
		Where("player_id = ?", playerID).
		Count(&count).Error
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, playerID)
	}
	return count > 0, nil
}

// UpdateState 更新玩家数值
func (r *playerRepo) UpdateState(ctx context.Context, player *models.Player) error {
	start := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.Player{}).
		Where("player_id = ?", player.PlayerID).
		Updates(map[string]interface{}{
			"score":          player.Score,
			"per_second":     player.PerSecond,
			"level":          player.Level,
			"click_value":    player.ClickValue,
			"click_count":    player.ClickCount,
			"last_update_at": player.LastUpdateAt,
			"updated_at":     time.Now(),
		})
	logger.LogDatabaseOperation("update", "players", time.Since(start), result.Error)

	if result.Error != nil {
		return apperrors.Wrap(result.Error, apperrors.ErrDatabaseUpdate, player.PlayerID)
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.ErrPlayerNotFound, player.PlayerID)
	}
	return nil
}

// Count 玩家总数
func (r *playerRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Player{}).Count(&count).Error
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return count, nil
}

// WithTx 使用事务
func (r *playerRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &playerRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
