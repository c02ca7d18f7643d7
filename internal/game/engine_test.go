package game

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	apperrors "github.com/wfunc/tap-game/internal/errors"
)

// EngineTestSuite 引擎测试套件
type EngineTestSuite struct {
	suite.Suite
	now    time.Time
	engine *Engine
}

func (s *EngineTestSuite) SetupTest() {
	s.now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.engine = NewEngine(WithClock(func() time.Time { return s.now }))
}

func (s *EngineTestSuite) newPlayer() *Player {
	return NewPlayer("player-1", s.now)
}

func ids(list []UnlockedAchievement) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}

// 测试首次点击
func (s *EngineTestSuite) TestFirstClick() {
	p := s.newPlayer()

	next, unlocked := s.engine.Click(p)

	s.Equal(float64(1), next.State.Score)
	s.Equal(int64(1), next.ClickCount)
	s.Equal(1, next.State.Level)
	s.Equal([]string{"first-click"}, ids(unlocked))
	s.True(next.Achievements["first-click"].Unlocked)
	s.Equal(s.now, *next.Achievements["first-click"].UnlockedAt)
	s.False(next.Achievements["hundred-clicks"].Unlocked)

	// 原玩家不变
	s.Equal(float64(0), p.State.Score)
	s.Equal(int64(0), p.ClickCount)
	s.Empty(p.Achievements)
}

// 测试成就只解锁一次
func (s *EngineTestSuite) TestAchievementsUnlockOnce() {
	p := s.newPlayer()
	p, first := s.engine.Click(p)
	s.Len(first, 1)

	unlockedAt := *p.Achievements["first-click"].UnlockedAt
	s.now = s.now.Add(time.Minute)

	p, second := s.engine.Click(p)
	s.Empty(second)
	s.Equal(unlockedAt, *p.Achievements["first-click"].UnlockedAt)
}

// 测试一百次点击
func (s *EngineTestSuite) TestHundredClicks() {
	p := s.newPlayer()
	var all []string
	for i := 0; i < 100; i++ {
		var unlocked []UnlockedAchievement
		p, unlocked = s.engine.Click(p)
		all = append(all, ids(unlocked)...)
	}

	s.Equal(int64(100), p.ClickCount)
	s.Contains(all, "hundred-clicks")
	s.Contains(all, "score-100")
	s.Equal(2, p.State.Level)

	// 成就单调
	for _, st := range p.Achievements {
		s.True(st.Unlocked)
	}
}

// 测试升级阈值
func (s *EngineTestSuite) TestLevelThresholds() {
	s.Equal(float64(100), LevelThreshold(1))
	s.InDelta(282.84, LevelThreshold(2), 0.01)
	s.InDelta(519.62, LevelThreshold(3), 0.01)
	s.Equal(float64(800), LevelThreshold(4))
}

// 测试1级到2级再到3级
func (s *EngineTestSuite) TestLevelUpThroughClicks() {
	p := s.newPlayer()
	p.State.Score = 99

	p, _ = s.engine.Click(p)
	s.Equal(2, p.State.Level)
	s.Equal(float64(1), p.State.ClickValue)

	p.State.Score = 281
	p, _ = s.engine.Click(p)
	s.Equal(2, p.State.Level, "282 < 282.84 不应升级")

	p.State.Score = 282.5
	p, _ = s.engine.Click(p)
	s.Equal(3, p.State.Level)
}

// 测试连续升级
func (s *EngineTestSuite) TestLevelUpLoops() {
	state := GameState{Score: 1000, Level: 1, ClickValue: 5}

	state = s.engine.LevelUp(state)

	s.Equal(5, state.Level)
	s.Equal(float64(9), state.ClickValue) // 5 -> 6 -> 7 -> 8 -> 9
}

// 测试单步升级
func (s *EngineTestSuite) TestSingleStepLevelUp() {
	engine := NewEngine(WithSingleStepLevelUp(true))
	state := GameState{Score: 1000, Level: 1, ClickValue: 5}

	state = engine.LevelUp(state)
	s.Equal(2, state.Level)
	s.Equal(float64(6), state.ClickValue)

	state = engine.LevelUp(state)
	s.Equal(3, state.Level)
}

// 测试点击收益不低于1
func (s *EngineTestSuite) TestClickValueFloor() {
	state := s.engine.LevelUp(GameState{Score: 150, Level: 1, ClickValue: 1})
	s.Equal(2, state.Level)
	s.Equal(float64(1), state.ClickValue)
}

// 测试超大时间差的结算在有限时间内完成
func (s *EngineTestSuite) TestPassiveTickHugeElapsed() {
	type result struct {
		state GameState
		err   error
	}
	done := make(chan result, 1)
	go func() {
		state, err := s.engine.ApplyPassiveTick(GameState{PerSecond: 10, Level: 1, ClickValue: 1}, 1e30)
		done <- result{state, err}
	}()

	select {
	case r := <-done:
		s.Require().NoError(r.err)
		s.InEpsilon(1e31, r.state.Score, 1e-9)
		s.Equal(MaxLevel, r.state.Level)
		s.False(math.IsInf(r.state.ClickValue, 0))
	case <-time.After(2 * time.Second):
		s.FailNow("结算未在2秒内完成")
	}
}

// 测试分数溢出时拒绝结算
func (s *EngineTestSuite) TestPassiveTickOverflow() {
	start := GameState{Score: 5, PerSecond: 10, Level: 1, ClickValue: 1}

	state, err := s.engine.ApplyPassiveTick(start, math.MaxFloat64)
	s.Require().Error(err)
	s.True(apperrors.Is(err, apperrors.ErrInvalidParam))
	s.Equal(start, state)
}

// 测试按分数直接计算目标等级
func (s *EngineTestSuite) TestLevelForScore() {
	s.Equal(1, levelForScore(0))
	s.Equal(1, levelForScore(99.9))
	s.Equal(2, levelForScore(100))
	s.Equal(3, levelForScore(LevelThreshold(2)))
	s.Equal(5, levelForScore(1000))
	s.Equal(MaxLevel, levelForScore(math.Inf(1)))
}

// 测试小数点击收益升级时不会降低
func (s *EngineTestSuite) TestFractionalClickValueNeverDrops() {
	state := s.engine.LevelUp(GameState{Score: 150, Level: 1, ClickValue: 1.5})
	s.Equal(2, state.Level)
	s.Equal(1.5, state.ClickValue)

	state = s.engine.LevelUp(GameState{Score: 150, Level: 1, ClickValue: 4.5})
	s.Equal(float64(5), state.ClickValue)
}

// 测试被动收益
func (s *EngineTestSuite) TestPassiveTick() {
	p := s.newPlayer()
	p.State.PerSecond = 10

	next, unlocked, err := s.engine.Tick(p, 5)
	s.Require().NoError(err)
	s.Equal(float64(50), next.State.Score)
	s.Contains(ids(unlocked), "ten-cps")

	// 已解锁后不再返回
	next, unlocked, err = s.engine.Tick(next, 5)
	s.Require().NoError(err)
	s.Equal(float64(100), next.State.Score)
	s.NotContains(ids(unlocked), "ten-cps")
	s.Contains(ids(unlocked), "score-100")
}

// 测试被动收益无收入时不变
func (s *EngineTestSuite) TestPassiveTickWithoutIncome() {
	p := s.newPlayer()
	p.State.Score = 42

	next, unlocked, err := s.engine.Tick(p, 3600)
	s.Require().NoError(err)
	s.Equal(float64(42), next.State.Score)
	s.Empty(unlocked)
}

// 测试被动收益参数校验
func (s *EngineTestSuite) TestPassiveTickInvalidElapsed() {
	p := s.newPlayer()
	p.State.PerSecond = 1

	for _, elapsed := range []float64{-1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		next, unlocked, err := s.engine.Tick(p, elapsed)
		s.True(apperrors.Is(err, apperrors.ErrInvalidParam), "elapsed=%v", elapsed)
		s.Same(p, next)
		s.Nil(unlocked)
	}
}

// 测试被动收益不减少分数
func (s *EngineTestSuite) TestPassiveTickNeverDecreasesScore() {
	for _, perSecond := range []float64{0, 0.1, 2.5, 10} {
		for _, elapsed := range []float64{0, 0.5, 1, 60, 86400} {
			state := GameState{Score: 17, PerSecond: perSecond, Level: 1, ClickValue: 1}
			next, err := s.engine.ApplyPassiveTick(state, elapsed)
			s.Require().NoError(err)
			s.GreaterOrEqual(next.Score, state.Score)
		}
	}
}

// 测试价格公式
func (s *EngineTestSuite) TestUpgradeCost() {
	def := UpgradeDefinition{ID: "x", Type: UpgradeAutoTapper, BaseCost: 10}

	expected := []float64{10, 11, 13, 15, 17, 20}
	for n, want := range expected {
		s.Equal(want, UpgradeCost(def, n), "owned=%d", n)
	}

	big := UpgradeDefinition{ID: "y", Type: UpgradeAutoTapper, BaseCost: 1000}
	for n := 0; n < 30; n++ {
		s.Equal(math.Floor(1000*math.Pow(1.15, float64(n))), UpgradeCost(big, n))
	}
}

// 测试购买升级
func (s *EngineTestSuite) TestPurchase() {
	p := s.newPlayer()
	p.State.Score = 1000

	next, unlocked, err := s.engine.Purchase(p, "basicTapper")
	s.Require().NoError(err)
	s.Equal(float64(990), next.State.Score)
	s.Equal(1, next.Upgrades["basicTapper"])
	s.InDelta(0.1, next.State.PerSecond, 1e-9)
	s.Contains(ids(unlocked), "first-upgrade")

	// 原玩家不变
	s.Equal(float64(1000), p.State.Score)
	s.Equal(0, p.Upgrades["basicTapper"])
}

// 测试倍率升级
func (s *EngineTestSuite) TestPurchaseMultiplier() {
	p := s.newPlayer()
	p.State.Score = 30

	next, _, err := s.engine.Purchase(p, "doubleClick")
	s.Require().NoError(err)
	s.Equal(float64(5), next.State.Score)
	s.Equal(float64(2), next.State.ClickValue)

	next, _ = s.engine.Click(next)
	s.Equal(float64(7), next.State.Score)
}

// 测试点数不足
func (s *EngineTestSuite) TestPurchaseInsufficientFunds() {
	p := s.newPlayer()
	p.State.Score = 9

	next, unlocked, err := s.engine.Purchase(p, "basicTapper")
	s.True(apperrors.Is(err, apperrors.ErrInsufficientFunds))
	appErr, ok := apperrors.As(err)
	s.Require().True(ok)
	s.Equal(float64(1), appErr.Meta["shortfall"])
	s.Contains(appErr.Details, "还差 1.00")
	s.Same(p, next)
	s.Nil(unlocked)
	s.Equal(float64(9), p.State.Score)
	s.Equal(0, p.Upgrades["basicTapper"])

	// 恰好足够时可以购买
	p.State.Score = 10
	next, _, err = s.engine.Purchase(p, "basicTapper")
	s.Require().NoError(err)
	s.Equal(float64(0), next.State.Score)
}

// 测试未知升级
func (s *EngineTestSuite) TestPurchaseUnknownUpgrade() {
	p := s.newPlayer()
	p.State.Score = 1e9

	_, _, err := s.engine.Purchase(p, "nope")
	s.True(apperrors.Is(err, apperrors.ErrUnknownUpgrade))
}

// 测试购买序列确定性
func (s *EngineTestSuite) TestPurchaseDeterministic() {
	run := func() *Player {
		p := s.newPlayer()
		p.State.Score = 5000
		for _, id := range []string{"basicTapper", "basicTapper", "doubleClick", "autoClicker", "basicTapper", "tapFarm"} {
			var err error
			p, _, err = s.engine.Purchase(p, id)
			s.Require().NoError(err)
		}
		return p
	}

	a, b := run(), run()
	s.Equal(a.State, b.State)
	s.Equal(a.Upgrades, b.Upgrades)
	s.Equal(3, a.Upgrades["basicTapper"])
	// 10 + 11 + 13 + 25 + 200 + 1000
	s.Equal(float64(5000-1259), a.State.Score)
}

// 测试special升级
func (s *EngineTestSuite) TestSpecialUpgrade() {
	p := s.newPlayer()
	p.State.Score = 100

	next, _, err := s.engine.Purchase(p, "bonusX2")
	s.Require().NoError(err)
	s.Equal(float64(0), next.State.Score)
	s.Equal(float64(1), next.State.ClickValue)
	s.Equal(1, next.Upgrades["bonusX2"])

	doubled := NewEngine(WithSpecialEffect("bonusX2", func(st GameState, def UpgradeDefinition) GameState {
		st.ClickValue *= def.BaseValue
		return st
	}))
	next, _, err = doubled.Purchase(p, "bonusX2")
	s.Require().NoError(err)
	s.Equal(float64(2), next.State.ClickValue)
}

// 测试ten-cps通过购买解锁
func (s *EngineTestSuite) TestTenCPSFromPurchase() {
	p := s.newPlayer()
	p.State.Score = 1000

	next, unlocked, err := s.engine.Purchase(p, "tapFarm")
	s.Require().NoError(err)
	s.Equal(float64(10), next.State.PerSecond)
	s.Equal([]string{"first-upgrade", "ten-cps"}, ids(unlocked))
}

// 测试等级进度
func (s *EngineTestSuite) TestLevelProgress() {
	s.Equal(float64(0), LevelProgress(GameState{Score: 0, Level: 1}))
	s.Equal(float64(50), LevelProgress(GameState{Score: 50, Level: 1}))
	s.Equal(float64(100), LevelProgress(GameState{Score: 5000, Level: 1}))
}

// 测试视图
func (s *EngineTestSuite) TestViews() {
	p := s.newPlayer()
	p.Upgrades["basicTapper"] = 2

	upgrades := s.engine.UpgradeViews(p)
	s.Len(upgrades, len(DefaultUpgrades()))
	s.Equal("basicTapper", upgrades[0].ID)
	s.Equal(2, upgrades[0].Count)
	s.Equal(float64(13), upgrades[0].Cost)

	p, _ = s.engine.Click(p)
	achievements := s.engine.AchievementViews(p)
	s.Len(achievements, 6)
	s.Equal("first-click", achievements[0].ID)
	s.True(achievements[0].Unlocked)
	s.False(achievements[1].Unlocked)
}

// 测试自定义目录校验
func (s *EngineTestSuite) TestCatalogValidation() {
	_, err := NewEngineWithUpgrades([]UpgradeDefinition{
		{ID: "a", Type: UpgradeAutoTapper, BaseCost: 1},
		{ID: "a", Type: UpgradeAutoTapper, BaseCost: 1},
	})
	s.Error(err)

	_, err = NewEngineWithUpgrades([]UpgradeDefinition{{ID: "b", Type: "weird", BaseCost: 1}})
	s.Error(err)

	_, err = NewEngineWithUpgrades([]UpgradeDefinition{{ID: "", Type: UpgradeSpecial}})
	s.Error(err)
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}
