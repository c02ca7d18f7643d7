package service

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/wfunc/tap-game/internal/adapter"
	apperrors "github.com/wfunc/tap-game/internal/errors"
	"github.com/wfunc/tap-game/internal/game"
	"github.com/wfunc/tap-game/internal/utils"
	"go.uber.org/zap"
)

// recordingNotifier 记录推送内容
type recordingNotifier struct {
	mu           sync.Mutex
	states       []string
	achievements map[string][]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{achievements: make(map[string][]string)}
}

func (n *recordingNotifier) PushGameState(playerID string, result *ActionResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, playerID)
}

func (n *recordingNotifier) PushAchievements(playerID string, unlocked []game.UnlockedAchievement) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, a := range unlocked {
		n.achievements[playerID] = append(n.achievements[playerID], a.ID)
	}
}

// GameServiceTestSuite 游戏服务测试套件
type GameServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	store    *adapter.MemoryStore
	notifier *recordingNotifier
	service  *GameService
	sessions *SessionService
}

func (s *GameServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.store = adapter.NewMemoryStore()
	s.notifier = newRecordingNotifier()
	s.service = s.newService(0)
	s.sessions = NewSessionService(s.service, utils.NewTokenManager("test-secret", time.Hour), zap.NewNop())
}

func (s *GameServiceTestSuite) newService(maxElapsed float64) *GameService {
	return NewGameService(&GameServiceConfig{
		Engine:            game.NewEngine(game.WithClock(func() time.Time { return s.now })),
		Store:             s.store,
		Notifier:          s.notifier,
		Logger:            zap.NewNop(),
		GuestPlayer:       "guest",
		MaxElapsedSeconds: maxElapsed,
		RequestTimeout:    time.Second,
	})
}

func (s *GameServiceTestSuite) ensure(playerID string) {
	_, err := s.service.EnsurePlayer(s.ctx, playerID)
	s.Require().NoError(err)
}

func (s *GameServiceTestSuite) setState(playerID string, state game.GameState, lastUpdate time.Time) {
	s.Require().NoError(s.store.SaveState(s.ctx, playerID, game.StateRecord{
		State:      state,
		LastUpdate: lastUpdate,
	}))
}

func achievementIDs(list []game.UnlockedAchievement) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}

// 测试创建玩家
func (s *GameServiceTestSuite) TestEnsurePlayer() {
	created, err := s.service.EnsurePlayer(s.ctx, "guest")
	s.Require().NoError(err)
	s.True(created)

	created, err = s.service.EnsurePlayer(s.ctx, "guest")
	s.Require().NoError(err)
	s.False(created)

	_, err = s.service.EnsurePlayer(s.ctx, "")
	s.True(apperrors.Is(err, apperrors.ErrInvalidParam))
}

// 测试读取游戏数据
func (s *GameServiceTestSuite) TestGetGame() {
	s.ensure("guest")

	view, err := s.service.GetGame(s.ctx, "guest")
	s.Require().NoError(err)
	s.Equal("guest", view.PlayerID)
	s.Equal(game.NewGameState(), view.GameState)
	s.Equal(float64(100), view.NextLevelScore)
	s.Len(view.Upgrades, len(game.DefaultUpgrades()))
	s.Len(view.Achievements, len(game.DefaultAchievements()))
	s.Equal(s.now.UnixMilli(), view.LastUpdate)
	for _, u := range view.Upgrades {
		s.Equal(0, u.Count)
		s.Equal(u.BaseCost, u.Cost)
	}
}

// 测试玩家不存在
func (s *GameServiceTestSuite) TestPlayerNotFound() {
	_, err := s.service.GetGame(s.ctx, "ghost")
	s.True(apperrors.Is(err, apperrors.ErrPlayerNotFound))

	_, err = s.service.Click(s.ctx, "ghost")
	s.True(apperrors.Is(err, apperrors.ErrPlayerNotFound))

	_, err = s.service.Purchase(s.ctx, "ghost", "basicTapper")
	s.True(apperrors.Is(err, apperrors.ErrPlayerNotFound))

	_, err = s.service.Tick(s.ctx, "ghost", 1)
	s.True(apperrors.Is(err, apperrors.ErrPlayerNotFound))

	_, err = s.service.Click(s.ctx, "")
	s.True(apperrors.Is(err, apperrors.ErrInvalidParam))
}

// 测试点击
func (s *GameServiceTestSuite) TestClick() {
	s.ensure("guest")

	result, err := s.service.Click(s.ctx, "guest")
	s.Require().NoError(err)
	s.Equal(float64(1), result.GameState.Score)
	s.Equal(int64(1), result.ClickCount)
	s.Equal([]string{"first-click"}, achievementIDs(result.NewAchievements))
	s.Nil(result.Upgrades)

	result, err = s.service.Click(s.ctx, "guest")
	s.Require().NoError(err)
	s.Equal(float64(2), result.GameState.Score)
	s.NotNil(result.NewAchievements)
	s.Empty(result.NewAchievements)

	// 已保存
	view, err := s.service.GetGame(s.ctx, "guest")
	s.Require().NoError(err)
	s.Equal(int64(2), view.ClickCount)

	s.Equal([]string{"guest", "guest"}, s.notifier.states)
	s.Equal([]string{"first-click"}, s.notifier.achievements["guest"])
}

// 测试购买升级
func (s *GameServiceTestSuite) TestPurchase() {
	s.ensure("guest")
	s.setState("guest", game.GameState{Score: 1000, Level: 1, ClickValue: 1}, s.now)

	result, err := s.service.Purchase(s.ctx, "guest", "basicTapper")
	s.Require().NoError(err)
	s.Equal(float64(990), result.GameState.Score)
	s.InDelta(0.1, result.GameState.PerSecond, 1e-9)
	s.Contains(achievementIDs(result.NewAchievements), "first-upgrade")

	s.Require().NotEmpty(result.Upgrades)
	for _, u := range result.Upgrades {
		if u.ID == "basicTapper" {
			s.Equal(1, u.Count)
			s.Equal(float64(11), u.Cost)
		}
	}

	owned, err := s.store.LoadOwnership(s.ctx, "guest")
	s.Require().NoError(err)
	s.Equal(1, owned["basicTapper"])
}

// 测试点数不足
func (s *GameServiceTestSuite) TestPurchaseInsufficientFunds() {
	s.ensure("guest")
	s.setState("guest", game.GameState{Score: 9, Level: 1, ClickValue: 1}, s.now)

	_, err := s.service.Purchase(s.ctx, "guest", "basicTapper")
	s.Require().True(apperrors.Is(err, apperrors.ErrInsufficientFunds))
	appErr, ok := apperrors.As(err)
	s.Require().True(ok)
	s.Equal(float64(1), appErr.Meta["shortfall"])

	rec, err := s.store.LoadState(s.ctx, "guest")
	s.Require().NoError(err)
	s.Equal(float64(9), rec.State.Score)

	owned, err := s.store.LoadOwnership(s.ctx, "guest")
	s.Require().NoError(err)
	s.Zero(owned["basicTapper"])
}

// 测试购买参数错误
func (s *GameServiceTestSuite) TestPurchaseInvalid() {
	s.ensure("guest")

	_, err := s.service.Purchase(s.ctx, "guest", "")
	s.True(apperrors.Is(err, apperrors.ErrInvalidParam))

	_, err = s.service.Purchase(s.ctx, "guest", "nope")
	s.True(apperrors.Is(err, apperrors.ErrUnknownUpgrade))
}

// 测试被动收益结算
func (s *GameServiceTestSuite) TestTick() {
	s.ensure("guest")
	s.setState("guest", game.GameState{PerSecond: 10, Level: 1, ClickValue: 1}, s.now.Add(-time.Minute))

	result, err := s.service.Tick(s.ctx, "guest", 5)
	s.Require().NoError(err)
	s.Equal(float64(50), result.GameState.Score)
	s.Equal([]string{"ten-cps"}, achievementIDs(result.NewAchievements))
	s.Equal(s.now.UnixMilli(), result.LastUpdate)
}

// 测试无效的秒数
func (s *GameServiceTestSuite) TestTickInvalid() {
	s.ensure("guest")
	s.setState("guest", game.GameState{Score: 3, PerSecond: 10, Level: 1, ClickValue: 1}, s.now)

	_, err := s.service.Tick(s.ctx, "guest", -1)
	s.True(apperrors.Is(err, apperrors.ErrInvalidParam))

	rec, err := s.store.LoadState(s.ctx, "guest")
	s.Require().NoError(err)
	s.Equal(float64(3), rec.State.Score)
}

// 测试分数溢出的结算被拒绝且不阻塞后续请求
func (s *GameServiceTestSuite) TestTickOverflow() {
	s.ensure("guest")
	s.setState("guest", game.GameState{Score: 3, PerSecond: 10, Level: 1, ClickValue: 1}, s.now)

	_, err := s.service.Tick(s.ctx, "guest", math.MaxFloat64)
	s.True(apperrors.Is(err, apperrors.ErrInvalidParam))

	result, err := s.service.Tick(s.ctx, "guest", 1e30)
	s.Require().NoError(err)
	s.Equal(game.MaxLevel, result.GameState.Level)

	result, err = s.service.Click(s.ctx, "guest")
	s.Require().NoError(err)
	s.Equal(int64(1), result.ClickCount)
}

// 测试按客户端时间结算
func (s *GameServiceTestSuite) TestUpdate() {
	s.ensure("guest")
	s.setState("guest", game.GameState{PerSecond: 2, Level: 1, ClickValue: 1}, s.now.Add(-time.Hour))

	result, err := s.service.Update(s.ctx, "guest", s.now.Add(-3*time.Second).UnixMilli())
	s.Require().NoError(err)
	s.Equal(float64(6), result.GameState.Score)
	s.Equal(s.now.UnixMilli(), result.LastUpdate)
}

// 测试客户端时间超前
func (s *GameServiceTestSuite) TestUpdateClockSkew() {
	s.ensure("guest")
	s.setState("guest", game.GameState{Score: 4, PerSecond: 2, Level: 1, ClickValue: 1}, s.now)

	result, err := s.service.Update(s.ctx, "guest", s.now.Add(time.Minute).UnixMilli())
	s.Require().NoError(err)
	s.Equal(float64(4), result.GameState.Score)
	s.Equal(s.now.UnixMilli(), result.LastUpdate)
}

// 测试使用服务端记录的时间
func (s *GameServiceTestSuite) TestUpdateFromStoredTime() {
	s.ensure("guest")
	s.setState("guest", game.GameState{PerSecond: 2, Level: 1, ClickValue: 1}, s.now.Add(-10*time.Second))

	result, err := s.service.Update(s.ctx, "guest", 0)
	s.Require().NoError(err)
	s.Equal(float64(20), result.GameState.Score)

	// 第二次没有经过时间
	result, err = s.service.Update(s.ctx, "guest", 0)
	s.Require().NoError(err)
	s.Equal(float64(20), result.GameState.Score)

	_, err = s.service.Update(s.ctx, "guest", -5)
	s.True(apperrors.Is(err, apperrors.ErrInvalidParam))
}

// 测试离线收益上限
func (s *GameServiceTestSuite) TestMaxElapsed() {
	svc := s.newService(4)
	_, err := svc.EnsurePlayer(s.ctx, "guest")
	s.Require().NoError(err)
	s.setState("guest", game.GameState{PerSecond: 2, Level: 1, ClickValue: 1}, s.now)

	result, err := svc.Update(s.ctx, "guest", s.now.Add(-100*time.Second).UnixMilli())
	s.Require().NoError(err)
	s.Equal(float64(8), result.GameState.Score)

	result, err = svc.Tick(s.ctx, "guest", 50)
	s.Require().NoError(err)
	s.Equal(float64(16), result.GameState.Score)
}

// 测试同一玩家的并发点击
func (s *GameServiceTestSuite) TestConcurrentClicks() {
	s.ensure("guest")

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.service.Click(s.ctx, "guest"); err != nil {
				s.Fail(err.Error())
			}
		}()
	}
	wg.Wait()

	view, err := s.service.GetGame(s.ctx, "guest")
	s.Require().NoError(err)
	s.Equal(int64(n), view.ClickCount)
	s.Equal(0, s.service.locks.size())
}

// 测试新会话
func (s *GameServiceTestSuite) TestNewSession() {
	session, err := s.sessions.NewSession(s.ctx)
	s.Require().NoError(err)
	s.NotEmpty(session.PlayerID)
	s.NotEmpty(session.Token)
	s.Equal(s.now.Add(time.Hour).UnixMilli(), session.ExpiresAt)

	playerID, err := s.sessions.Resolve(session.Token)
	s.Require().NoError(err)
	s.Equal(session.PlayerID, playerID)

	_, err = s.service.GetGame(s.ctx, playerID)
	s.NoError(err)
}

// 测试为已有玩家签发令牌
func (s *GameServiceTestSuite) TestIssueToken() {
	s.ensure("guest")

	session, err := s.sessions.IssueToken(s.ctx, "guest")
	s.Require().NoError(err)
	s.Equal("guest", session.PlayerID)

	_, err = s.sessions.IssueToken(s.ctx, "ghost")
	s.True(apperrors.Is(err, apperrors.ErrPlayerNotFound))
}

// 测试全局统计
func (s *GameServiceTestSuite) TestStats() {
	s.ensure("guest")
	s.ensure("alice")
	_, err := s.service.Click(s.ctx, "alice")
	s.Require().NoError(err)

	stats, err := s.service.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), stats.Players)
	s.Equal(int64(1), stats.Achievements["first-click"])
	s.Equal(int64(0), stats.Achievements["level-five"])
}

// 测试无效令牌
func (s *GameServiceTestSuite) TestResolveInvalid() {
	_, err := s.sessions.Resolve("not-a-token")
	s.True(apperrors.Is(err, apperrors.ErrTokenInvalid))
}

func TestGameServiceSuite(t *testing.T) {
	suite.Run(t, new(GameServiceTestSuite))
}

func TestElapsedSeconds(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if got := ElapsedSeconds(now.Add(-1500*time.Millisecond), now); got != 1.5 {
		t.Fatalf("expected 1.5, got %v", got)
	}
	if got := ElapsedSeconds(now.Add(time.Second), now); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}
