package adapter

import (
	"context"

	"github.com/wfunc/tap-game/internal/database"
	apperrors "github.com/wfunc/tap-game/internal/errors"
	"github.com/wfunc/tap-game/internal/game"
	"github.com/wfunc/tap-game/internal/models"
	"github.com/wfunc/tap-game/internal/repository"
	"gorm.io/gorm"
)

// DatabaseStore 基于GORM仓储的存储
type DatabaseStore struct {
	db    *gorm.DB
	repos *repository.Manager
}

// NewDatabaseStore 创建数据库存储，db需已完成迁移
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{
		db:    db,
		repos: repository.NewManager(db),
	}
}

// Type 存储类型
func (s *DatabaseStore) Type() StoreType { return StoreTypeDatabase }

// Ping 检查数据库连接
func (s *DatabaseStore) Ping(ctx context.Context) error {
	if err := database.Ping(ctx, s.db); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseConnect)
	}
	return nil
}

// Close 关闭数据库连接
func (s *DatabaseStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Stats 统计玩家数和指定成就的解锁人数
func (s *DatabaseStore) Stats(ctx context.Context, achievementIDs []string) (*game.Stats, error) {
	players, err := s.repos.Player().Count(ctx)
	if err != nil {
		return nil, err
	}

	stats := &game.Stats{
		Players:      players,
		Achievements: make(map[string]int64, len(achievementIDs)),
	}
	for _, id := range achievementIDs {
		n, err := s.repos.Achievement().CountUnlocked(ctx, id)
		if err != nil {
			return nil, err
		}
		stats.Achievements[id] = n
	}
	return stats, nil
}

// CreatePlayer 在一个事务中写入玩家的三部分数据
func (s *DatabaseStore) CreatePlayer(ctx context.Context, p *game.Player) error {
	return s.Atomic(ctx, func(tx game.Store) error {
		repos := tx.(*DatabaseStore).repos

		exists, err := repos.Player().Exists(ctx, p.ID)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.New(apperrors.ErrAlreadyExists, p.ID)
		}

		if err := repos.Player().Create(ctx, toPlayerModel(p.ID, game.StateRecord{
			State:      p.State,
			ClickCount: p.ClickCount,
			LastUpdate: p.LastUpdate,
		})); err != nil {
			return err
		}
		if err := tx.SaveOwnership(ctx, p.ID, p.Upgrades); err != nil {
			return err
		}
		return tx.SaveAchievementStatus(ctx, p.ID, p.Achievements)
	})
}

// LoadState 读取玩家数值
func (s *DatabaseStore) LoadState(ctx context.Context, playerID string) (game.StateRecord, error) {
	m, err := s.repos.Player().FindByPlayerID(ctx, playerID)
	if err != nil {
		return game.StateRecord{}, err
	}
	return fromPlayerModel(m), nil
}

// SaveState 保存玩家数值
func (s *DatabaseStore) SaveState(ctx context.Context, playerID string, rec game.StateRecord) error {
	return s.repos.Player().UpdateState(ctx, toPlayerModel(playerID, rec))
}

// LoadOwnership 读取升级数量
func (s *DatabaseStore) LoadOwnership(ctx context.Context, playerID string) (map[string]int, error) {
	list, err := s.repos.UpgradeOwnership().ListByPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		if err := s.mustExist(ctx, playerID); err != nil {
			return nil, err
		}
	}

	owned := make(map[string]int, len(list))
	for _, item := range list {
		owned[item.UpgradeID] = item.Count
	}
	return owned, nil
}

// SaveOwnership 保存升级数量
func (s *DatabaseStore) SaveOwnership(ctx context.Context, playerID string, owned map[string]int) error {
	for upgradeID, count := range owned {
		if err := s.repos.UpgradeOwnership().Upsert(ctx, playerID, upgradeID, count); err != nil {
			return err
		}
	}
	return nil
}

// LoadAchievementStatus 读取成就状态
func (s *DatabaseStore) LoadAchievementStatus(ctx context.Context, playerID string) (map[string]game.AchievementStatus, error) {
	list, err := s.repos.Achievement().ListByPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		if err := s.mustExist(ctx, playerID); err != nil {
			return nil, err
		}
	}

	status := make(map[string]game.AchievementStatus, len(list))
	for _, item := range list {
		st := game.AchievementStatus{Unlocked: item.Unlocked}
		if item.UnlockedAt != nil {
			at := *item.UnlockedAt
			st.UnlockedAt = &at
		}
		status[item.AchievementID] = st
	}
	return status, nil
}

// SaveAchievementStatus 保存成就状态
func (s *DatabaseStore) SaveAchievementStatus(ctx context.Context, playerID string, status map[string]game.AchievementStatus) error {
	for achievementID, st := range status {
		record := &models.AchievementRecord{
			PlayerID:      playerID,
			AchievementID: achievementID,
			Unlocked:      st.Unlocked,
			UnlockedAt:    st.UnlockedAt,
		}
		if err := s.repos.Achievement().Upsert(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// Atomic 在数据库事务中执行fn
func (s *DatabaseStore) Atomic(ctx context.Context, fn func(game.Store) error) error {
	return s.repos.WithTransaction(ctx, func(tx *repository.Manager) error {
		return fn(&DatabaseStore{db: s.db, repos: tx})
	})
}

// mustExist 玩家不存在时返回 ErrPlayerNotFound
func (s *DatabaseStore) mustExist(ctx context.Context, playerID string) error {
	exists, err := s.repos.Player().Exists(ctx, playerID)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.New(apperrors.ErrPlayerNotFound, playerID)
	}
	return nil
}

func toPlayerModel(playerID string, rec game.StateRecord) *models.Player {
	return &models.Player{
		PlayerID:     playerID,
		Score:        rec.State.Score,
		PerSecond:    rec.State.PerSecond,
		Level:        rec.State.Level,
		ClickValue:   rec.State.ClickValue,
		ClickCount:   rec.ClickCount,
		LastUpdateAt: rec.LastUpdate,
	}
}

func fromPlayerModel(m *models.Player) game.StateRecord {
	return game.StateRecord{
		State: game.GameState{
			Score:      m.Score,
			PerSecond:  m.PerSecond,
			Level:      m.Level,
			ClickValue: m.ClickValue,
		},
		ClickCount: m.ClickCount,
		LastUpdate: m.LastUpdateAt,
	}
}
