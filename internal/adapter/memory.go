package adapter

import (
	"context"
	"sync"

	apperrors "github.com/wfunc/tap-game/internal/errors"
	"github.com/wfunc/tap-game/internal/game"
)

// memoryRecord 单个玩家的数据
type memoryRecord struct {
	state        game.StateRecord
	upgrades     map[string]int
	achievements map[string]game.AchievementStatus
}

func (r *memoryRecord) clone() *memoryRecord {
	return &memoryRecord{
		state:        r.state,
		upgrades:     copyUpgrades(r.upgrades),
		achievements: copyAchievements(r.achievements),
	}
}

// MemoryStore 进程内存储，读写都做深拷贝
type MemoryStore struct {
	mu      sync.RWMutex
	players map[string]*memoryRecord
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players: make(map[string]*memoryRecord),
	}
}

// Type 存储类型
func (s *MemoryStore) Type() StoreType { return StoreTypeMemory }

// Ping 内存存储始终可用
func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

// Close 内存存储无需释放
func (s *MemoryStore) Close() error { return nil }

// Stats 统计玩家数和指定成就的解锁人数
func (s *MemoryStore) Stats(ctx context.Context, achievementIDs []string) (*game.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &game.Stats{
		Players:      int64(len(s.players)),
		Achievements: make(map[string]int64, len(achievementIDs)),
	}
	for _, id := range achievementIDs {
		stats.Achievements[id] = 0
		for _, rec := range s.players {
			if rec.achievements[id].Unlocked {
				stats.Achievements[id]++
			}
		}
	}
	return stats, nil
}

// CreatePlayer 创建玩家
func (s *MemoryStore) CreatePlayer(ctx context.Context, p *game.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createMemoryPlayer(s.players, p)
}

// LoadState 读取玩家数值
func (s *MemoryStore) LoadState(ctx context.Context, playerID string) (game.StateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadMemoryState(s.players, playerID)
}

// SaveState 保存玩家数值
func (s *MemoryStore) SaveState(ctx context.Context, playerID string, rec game.StateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveMemoryState(s.players, playerID, rec)
}

// LoadOwnership 读取升级数量
func (s *MemoryStore) LoadOwnership(ctx context.Context, playerID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadMemoryOwnership(s.players, playerID)
}

// SaveOwnership 保存升级数量
func (s *MemoryStore) SaveOwnership(ctx context.Context, playerID string, owned map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveMemoryOwnership(s.players, playerID, owned)
}

// LoadAchievementStatus 读取成就状态
func (s *MemoryStore) LoadAchievementStatus(ctx context.Context, playerID string) (map[string]game.AchievementStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadMemoryAchievements(s.players, playerID)
}

// SaveAchievementStatus 保存成就状态
func (s *MemoryStore) SaveAchievementStatus(ctx context.Context, playerID string, status map[string]game.AchievementStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveMemoryAchievements(s.players, playerID, status)
}

// Atomic 持有写锁执行fn，fn的写入先暂存，成功后一次性提交
func (s *MemoryStore) Atomic(ctx context.Context, fn func(game.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{base: s.players, staged: make(map[string]*memoryRecord)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrTransaction)
	}

	for id, rec := range tx.staged {
		s.players[id] = rec
	}
	return nil
}

// memoryTx 事务视图，读取时优先使用暂存数据
type memoryTx struct {
	base   map[string]*memoryRecord
	staged map[string]*memoryRecord
}

// view 返回读写用的合并视图
func (t *memoryTx) view(playerID string) map[string]*memoryRecord {
	if rec, ok := t.staged[playerID]; ok {
		return map[string]*memoryRecord{playerID: rec}
	}
	if rec, ok := t.base[playerID]; ok {
		// 写时复制
		t.staged[playerID] = rec.clone()
		return map[string]*memoryRecord{playerID: t.staged[playerID]}
	}
	return t.staged
}

func (t *memoryTx) CreatePlayer(ctx context.Context, p *game.Player) error {
	if _, ok := t.base[p.ID]; ok {
		return apperrors.New(apperrors.ErrAlreadyExists, p.ID)
	}
	return createMemoryPlayer(t.staged, p)
}

func (t *memoryTx) LoadState(ctx context.Context, playerID string) (game.StateRecord, error) {
	return loadMemoryState(t.view(playerID), playerID)
}

func (t *memoryTx) SaveState(ctx context.Context, playerID string, rec game.StateRecord) error {
	return saveMemoryState(t.view(playerID), playerID, rec)
}

func (t *memoryTx) LoadOwnership(ctx context.Context, playerID string) (map[string]int, error) {
	return loadMemoryOwnership(t.view(playerID), playerID)
}

func (t *memoryTx) SaveOwnership(ctx context.Context, playerID string, owned map[string]int) error {
	return saveMemoryOwnership(t.view(playerID), playerID, owned)
}

func (t *memoryTx) LoadAchievementStatus(ctx context.Context, playerID string) (map[string]game.AchievementStatus, error) {
	return loadMemoryAchievements(t.view(playerID), playerID)
}

func (t *memoryTx) SaveAchievementStatus(ctx context.Context, playerID string, status map[string]game.AchievementStatus) error {
	return saveMemoryAchievements(t.view(playerID), playerID, status)
}

// Atomic 已在事务中，直接执行
func (t *memoryTx) Atomic(ctx context.Context, fn func(game.Store) error) error {
	return fn(t)
}

func createMemoryPlayer(players map[string]*memoryRecord, p *game.Player) error {
	if _, ok := players[p.ID]; ok {
		return apperrors.New(apperrors.ErrAlreadyExists, p.ID)
	}
	players[p.ID] = &memoryRecord{
		state:        game.StateRecord{State: p.State, ClickCount: p.ClickCount, LastUpdate: p.LastUpdate},
		upgrades:     copyUpgrades(p.Upgrades),
		achievements: copyAchievements(p.Achievements),
	}
	return nil
}

func lookup(players map[string]*memoryRecord, playerID string) (*memoryRecord, error) {
	rec, ok := players[playerID]
	if !ok {
		return nil, apperrors.New(apperrors.ErrPlayerNotFound, playerID)
	}
	return rec, nil
}

func loadMemoryState(players map[string]*memoryRecord, playerID string) (game.StateRecord, error) {
	rec, err := lookup(players, playerID)
	if err != nil {
		return game.StateRecord{}, err
	}
	return rec.state, nil
}

func saveMemoryState(players map[string]*memoryRecord, playerID string, state game.StateRecord) error {
	rec, err := lookup(players, playerID)
	if err != nil {
		return err
	}
	rec.state = state
	return nil
}

func loadMemoryOwnership(players map[string]*memoryRecord, playerID string) (map[string]int, error) {
	rec, err := lookup(players, playerID)
	if err != nil {
		return nil, err
	}
	return copyUpgrades(rec.upgrades), nil
}

func saveMemoryOwnership(players map[string]*memoryRecord, playerID string, owned map[string]int) error {
	rec, err := lookup(players, playerID)
	if err != nil {
		return err
	}
	rec.upgrades = copyUpgrades(owned)
	return nil
}

func loadMemoryAchievements(players map[string]*memoryRecord, playerID string) (map[string]game.AchievementStatus, error) {
	rec, err := lookup(players, playerID)
	if err != nil {
		return nil, err
	}
	return copyAchievements(rec.achievements), nil
}

func saveMemoryAchievements(players map[string]*memoryRecord, playerID string, status map[string]game.AchievementStatus) error {
	rec, err := lookup(players, playerID)
	if err != nil {
		return err
	}
	merged := copyAchievements(rec.achievements)
	for id, st := range copyAchievements(status) {
		// 已解锁的不会回退
		if merged[id].Unlocked {
			continue
		}
		merged[id] = st
	}
	rec.achievements = merged
	return nil
}

func copyUpgrades(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for id, n := range src {
		dst[id] = n
	}
	return dst
}

func copyAchievements(src map[string]game.AchievementStatus) map[string]game.AchievementStatus {
	dst := make(map[string]game.AchievementStatus, len(src))
	for id, st := range src {
		if st.UnlockedAt != nil {
			at := *st.UnlockedAt
			st.UnlockedAt = &at
		}
		dst[id] = st
	}
	return dst
}
