package service

import (
	"context"
	"time"

	apperrors "github.com/wfunc/tap-game/internal/errors"
	"github.com/wfunc/tap-game/internal/game"
	"github.com/wfunc/tap-game/internal/logger"
	"go.uber.org/zap"
)

// GameServiceConfig 游戏服务配置
type GameServiceConfig struct {
	Engine            *game.Engine
	Store             game.Store
	Notifier          Notifier
	Logger            *zap.Logger
	GuestPlayer       string
	MaxElapsedSeconds float64       // 单次结算的秒数上限，0为不限制
	RequestTimeout    time.Duration // 存储操作超时，0为不限制
}

// GameService 游戏服务，按玩家串行执行 加载 -> 计算 -> 保存
type GameService struct {
	engine     *game.Engine
	store      game.Store
	notifier   Notifier
	locks      *playerLocks
	logger     *zap.Logger
	guest      string
	maxElapsed float64
	timeout    time.Duration
}

// NewGameService 创建游戏服务
func NewGameService(config *GameServiceConfig) *GameService {
	s := &GameService{
		engine:     config.Engine,
		store:      config.Store,
		notifier:   config.Notifier,
		locks:      newPlayerLocks(),
		logger:     config.Logger,
		guest:      config.GuestPlayer,
		maxElapsed: config.MaxElapsedSeconds,
		timeout:    config.RequestTimeout,
	}
	if s.engine == nil {
		s.engine = game.NewEngine()
	}
	if s.notifier == nil {
		s.notifier = noopNotifier{}
	}
	if s.logger == nil {
		s.logger = logger.GetModuleLogger("game")
	}
	return s
}

// SetNotifier 设置推送通道
func (s *GameService) SetNotifier(n Notifier) {
	if n == nil {
		n = noopNotifier{}
	}
	s.notifier = n
}

// GuestPlayer 默认玩家ID
func (s *GameService) GuestPlayer() string {
	return s.guest
}

// Engine 规则引擎
func (s *GameService) Engine() *game.Engine {
	return s.engine
}

// Ping 检查存储是否可用
func (s *GameService) Ping(ctx context.Context) error {
	type pinger interface {
		Ping(ctx context.Context) error
	}
	if p, ok := s.store.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Stats 玩家总数和各成就解锁人数
func (s *GameService) Stats(ctx context.Context) (*game.Stats, error) {
	type statser interface {
		Stats(ctx context.Context, achievementIDs []string) (*game.Stats, error)
	}
	st, ok := s.store.(statser)
	if !ok {
		return nil, apperrors.New(apperrors.ErrNotImplemented, "存储不支持统计")
	}

	defs := s.engine.Achievements()
	ids := make([]string, 0, len(defs))
	for _, def := range defs {
		ids = append(ids, def.ID)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return st.Stats(ctx, ids)
}

// EnsurePlayer 玩家不存在时创建，返回是否新建
func (s *GameService) EnsurePlayer(ctx context.Context, playerID string) (bool, error) {
	if playerID == "" {
		return false, apperrors.New(apperrors.ErrInvalidParam, "玩家ID不能为空")
	}

	unlock := s.locks.Lock(playerID)
	defer unlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.store.LoadState(ctx, playerID)
	if err == nil {
		return false, nil
	}
	if !apperrors.Is(err, apperrors.ErrPlayerNotFound) {
		return false, err
	}

	err = s.store.CreatePlayer(ctx, game.NewPlayer(playerID, s.engine.Now()))
	if apperrors.Is(err, apperrors.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.logger.Info("创建玩家", zap.String("player_id", playerID))
	logger.LogGameEvent("player_created", playerID, nil)
	return true, nil
}

// GetGame 读取玩家的完整游戏数据
func (s *GameService) GetGame(ctx context.Context, playerID string) (*GameView, error) {
	unlock := s.locks.Lock(playerID)
	defer unlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := game.LoadPlayer(ctx, s.store, playerID)
	if err != nil {
		return nil, err
	}

	return &GameView{
		PlayerID:       p.ID,
		GameState:      p.State,
		LevelProgress:  game.LevelProgress(p.State),
		NextLevelScore: game.LevelThreshold(p.State.Level),
		ClickCount:     p.ClickCount,
		Upgrades:       s.engine.UpgradeViews(p),
		Achievements:   s.engine.AchievementViews(p),
		LastUpdate:     p.LastUpdate.UnixMilli(),
	}, nil
}

// Click 点击一次
func (s *GameService) Click(ctx context.Context, playerID string) (*ActionResult, error) {
	p, unlocked, err := s.mutate(ctx, playerID, func(p *game.Player) (*game.Player, []game.UnlockedAchievement, error) {
		next, unlocked := s.engine.Click(p)
		return next, unlocked, nil
	})
	if err != nil {
		return nil, err
	}

	logger.LogGameEvent("click", playerID, map[string]interface{}{
		"score":       p.State.Score,
		"click_count": p.ClickCount,
		"level":       p.State.Level,
	})
	return s.finish(p, unlocked, false), nil
}

// Purchase 购买升级
func (s *GameService) Purchase(ctx context.Context, playerID, upgradeID string) (*ActionResult, error) {
	if upgradeID == "" {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "upgradeId不能为空")
	}

	p, unlocked, err := s.mutate(ctx, playerID, func(p *game.Player) (*game.Player, []game.UnlockedAchievement, error) {
		return s.engine.Purchase(p, upgradeID)
	})
	if err != nil {
		if apperrors.Is(err, apperrors.ErrInsufficientFunds) || apperrors.Is(err, apperrors.ErrUnknownUpgrade) {
			s.logger.Debug("购买失败",
				zap.String("player_id", playerID),
				zap.String("upgrade_id", upgradeID),
				zap.Error(err))
		}
		return nil, err
	}

	logger.LogGameEvent("purchase", playerID, map[string]interface{}{
		"upgrade_id": upgradeID,
		"count":      p.Upgrades[upgradeID],
		"score":      p.State.Score,
	})
	return s.finish(p, unlocked, true), nil
}

// Tick 结算elapsedSeconds秒的被动收益
func (s *GameService) Tick(ctx context.Context, playerID string, elapsedSeconds float64) (*ActionResult, error) {
	elapsedSeconds = s.capElapsed(elapsedSeconds)

	p, unlocked, err := s.mutate(ctx, playerID, func(p *game.Player) (*game.Player, []game.UnlockedAchievement, error) {
		next, unlocked, err := s.engine.Tick(p, elapsedSeconds)
		if err != nil {
			return nil, nil, err
		}
		next.LastUpdate = s.engine.Now()
		return next, unlocked, nil
	})
	if err != nil {
		return nil, err
	}

	logger.LogGameEvent("tick", playerID, map[string]interface{}{
		"elapsed_seconds": elapsedSeconds,
		"score":           p.State.Score,
	})
	return s.finish(p, unlocked, false), nil
}

// Update 按客户端上次更新时间(毫秒)结算被动收益
//
// lastUpdateMs为0时使用服务端记录的时间；客户端时间晚于服务端时按0秒处理
func (s *GameService) Update(ctx context.Context, playerID string, lastUpdateMs int64) (*ActionResult, error) {
	if lastUpdateMs < 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "lastUpdate不能为负数: %d", lastUpdateMs)
	}

	var elapsed float64
	p, unlocked, err := s.mutate(ctx, playerID, func(p *game.Player) (*game.Player, []game.UnlockedAchievement, error) {
		now := s.engine.Now()
		since := p.LastUpdate
		if lastUpdateMs > 0 {
			since = time.UnixMilli(lastUpdateMs)
		}
		elapsed = s.capElapsed(ElapsedSeconds(since, now))

		next, unlocked, err := s.engine.Tick(p, elapsed)
		if err != nil {
			return nil, nil, err
		}
		next.LastUpdate = now
		return next, unlocked, nil
	})
	if err != nil {
		return nil, err
	}

	logger.LogGameEvent("update", playerID, map[string]interface{}{
		"elapsed_seconds": elapsed,
		"score":           p.State.Score,
	})
	return s.finish(p, unlocked, false), nil
}

// ElapsedSeconds 两个时间之间的秒数，时钟偏差导致的负值按0处理
func ElapsedSeconds(since, now time.Time) float64 {
	d := now.Sub(since)
	if d < 0 {
		return 0
	}
	return d.Seconds()
}

// mutate 持有玩家锁执行一次读改写
func (s *GameService) mutate(
	ctx context.Context,
	playerID string,
	fn func(p *game.Player) (*game.Player, []game.UnlockedAchievement, error),
) (*game.Player, []game.UnlockedAchievement, error) {
	if playerID == "" {
		return nil, nil, apperrors.New(apperrors.ErrInvalidParam, "玩家ID不能为空")
	}

	unlock := s.locks.Lock(playerID)
	defer unlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := game.LoadPlayer(ctx, s.store, playerID)
	if err != nil {
		return nil, nil, err
	}

	next, unlocked, err := fn(p)
	if err != nil {
		return nil, nil, err
	}

	if err := game.SavePlayer(ctx, s.store, next); err != nil {
		s.logger.Error("保存玩家失败", zap.String("player_id", playerID), zap.Error(err))
		return nil, nil, err
	}
	return next, unlocked, nil
}

// finish 组装结果并推送
func (s *GameService) finish(p *game.Player, unlocked []game.UnlockedAchievement, withUpgrades bool) *ActionResult {
	if unlocked == nil {
		unlocked = []game.UnlockedAchievement{}
	}

	result := &ActionResult{
		GameState:       p.State,
		LevelProgress:   game.LevelProgress(p.State),
		ClickCount:      p.ClickCount,
		LastUpdate:      p.LastUpdate.UnixMilli(),
		NewAchievements: unlocked,
	}
	if withUpgrades {
		result.Upgrades = s.engine.UpgradeViews(p)
	}

	for _, a := range unlocked {
		s.logger.Info("解锁成就",
			zap.String("player_id", p.ID),
			zap.String("achievement_id", a.ID))
	}

	s.notifier.PushGameState(p.ID, result)
	if len(unlocked) > 0 {
		s.notifier.PushAchievements(p.ID, unlocked)
	}
	return result
}

func (s *GameService) capElapsed(elapsed float64) float64 {
	if s.maxElapsed > 0 && elapsed > s.maxElapsed {
		return s.maxElapsed
	}
	return elapsed
}

func (s *GameService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}
