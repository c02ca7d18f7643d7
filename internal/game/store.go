package game

import (
	"context"
	"time"
)

// Stats 全局统计
type Stats struct {
	Players      int64            `json:"players"`
	Achievements map[string]int64 `json:"achievements"` // 成就ID -> 解锁人数
}

// StateRecord 持久化的玩家数值
type StateRecord struct {
	State      GameState
	ClickCount int64
	LastUpdate time.Time
}

// Store 玩家数据存储。引擎本身不做I/O，由服务层通过Store加载和保存
//
// 玩家不存在时Load*返回 ErrPlayerNotFound
type Store interface {
	// CreatePlayer 创建玩家，已存在时返回 ErrAlreadyExists
	CreatePlayer(ctx context.Context, p *Player) error
	LoadState(ctx context.Context, playerID string) (StateRecord, error)
	SaveState(ctx context.Context, playerID string, rec StateRecord) error
	LoadOwnership(ctx context.Context, playerID string) (map[string]int, error)
	SaveOwnership(ctx context.Context, playerID string, owned map[string]int) error
	LoadAchievementStatus(ctx context.Context, playerID string) (map[string]AchievementStatus, error)
	SaveAchievementStatus(ctx context.Context, playerID string, status map[string]AchievementStatus) error
	// Atomic 在同一个事务中执行fn，fn返回错误时全部回滚
	Atomic(ctx context.Context, fn func(Store) error) error
}

// LoadPlayer 组装玩家聚合
func LoadPlayer(ctx context.Context, s Store, playerID string) (*Player, error) {
	rec, err := s.LoadState(ctx, playerID)
	if err != nil {
		return nil, err
	}
	owned, err := s.LoadOwnership(ctx, playerID)
	if err != nil {
		return nil, err
	}
	status, err := s.LoadAchievementStatus(ctx, playerID)
	if err != nil {
		return nil, err
	}

	if owned == nil {
		owned = make(map[string]int)
	}
	if status == nil {
		status = make(map[string]AchievementStatus)
	}

	return &Player{
		ID:           playerID,
		State:        rec.State,
		ClickCount:   rec.ClickCount,
		Upgrades:     owned,
		Achievements: status,
		LastUpdate:   rec.LastUpdate,
	}, nil
}

// SavePlayer 在一个原子操作中保存玩家的三部分数据
func SavePlayer(ctx context.Context, s Store, p *Player) error {
	return s.Atomic(ctx, func(tx Store) error {
		rec := StateRecord{State: p.State, ClickCount: p.ClickCount, LastUpdate: p.LastUpdate}
		if err := tx.SaveState(ctx, p.ID, rec); err != nil {
			return err
		}
		if err := tx.SaveOwnership(ctx, p.ID, p.Upgrades); err != nil {
			return err
		}
		return tx.SaveAchievementStatus(ctx, p.ID, p.Achievements)
	})
}
