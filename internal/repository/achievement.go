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

// AchievementRepository 成就状态仓储接口
type AchievementRepository interface {
	BaseRepository
	ListByPlayer(ctx context.Context, playerID string) ([]*models.AchievementRecord, error)
	Upsert(ctx context.Context, record *models.AchievementRecord) error
	CountUnlocked(ctx context.Context, achievementID string) (int64, error)
}

// achievementRepo 成就状态仓储实现
type achievementRepo struct {
	*BaseRepo
}

// NewAchievementRepository 创建成就状态仓储
func NewAchievementRepository(db *gorm.DB) AchievementRepository {
	return &achievementRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// ListByPlayer 查询玩家的成就状态
func (r *achievementRepo) ListByPlayer(ctx context.Context, playerID string) ([]*models.AchievementRecord, error) {
	var list []*models.AchievementRecord
	err := r.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("achievement_id asc").
		Find(&list).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, playerID)
	}
	return list, nil
}

// Upsert 写入成就状态。已解锁的记录不会被改回未解锁
func (r *achievementRepo) Upsert(ctx context.Context, record *models.AchievementRecord) error {
	start := time.Now()
	err := r.db.WithContext(ctx).
		Clauses(achievementUpsertClause(r.db.Dialector.Name())).
		Create(record).Error
	logger.LogDatabaseOperation("upsert", "achievement_records", time.Since(start), err)

	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, record.PlayerID, record.AchievementID)
	}
	return nil
}

// achievementUpsertClause 冲突时只更新未解锁的记录。
// MySQL 的 ON DUPLICATE KEY UPDATE 不支持 WHERE，改用条件赋值，unlocked 必须最后赋值
func achievementUpsertClause(dialect string) clause.OnConflict {
	columns := []clause.Column{{Name: "player_id"}, {Name: "achievement_id"}}
	if dialect == "mysql" {
		return clause.OnConflict{
			Columns: columns,
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "unlocked_at"}, Value: gorm.Expr("IF(unlocked, unlocked_at, VALUES(unlocked_at))")},
				{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("VALUES(updated_at)")},
				{Column: clause.Column{Name: "unlocked"}, Value: gorm.Expr("unlocked OR VALUES(unlocked)")},
			},
		}
	}
	return clause.OnConflict{
		Columns: columns,
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: "achievement_records", Name: "unlocked"}, Value: false},
		}},
		DoUpdates: clause.AssignmentColumns([]string{"unlocked", "unlocked_at", "updated_at"}),
	}
}

// CountUnlocked 统计解锁某成就的玩家数
func (r *achievementRepo) CountUnlocked(ctx context.Context, achievementID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AchievementRecord{}).
		Where("achievement_id = ? AND unlocked = ?", achievementID, true).
		Count(&count).Error
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, achievementID)
	}
	return count, nil
}

// WithTx 使用事务
func (r *achievementRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &achievementRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
