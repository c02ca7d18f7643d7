package game

import (
	"fmt"
	"time"
)

// Engine 无状态的游戏规则引擎，可并发使用
type Engine struct {
	upgrades          *UpgradeCatalog
	achievements      []AchievementDefinition
	specials          map[string]SpecialEffect
	now               func() time.Time
	singleStepLevelUp bool
}

// Option 引擎选项
type Option func(*Engine)

// WithClock 设置成就解锁时间的时钟
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithSingleStepLevelUp 每次操作最多升一级
func WithSingleStepLevelUp(enabled bool) Option {
	return func(e *Engine) {
		e.singleStepLevelUp = enabled
	}
}

// WithSpecialEffect 为special类型升级注册效果
func WithSpecialEffect(upgradeID string, effect SpecialEffect) Option {
	return func(e *Engine) {
		e.specials[upgradeID] = effect
	}
}

// WithAchievements 替换成就表
func WithAchievements(defs []AchievementDefinition) Option {
	return func(e *Engine) {
		e.achievements = append([]AchievementDefinition(nil), defs...)
	}
}

// NewEngine 使用默认目录创建引擎
func NewEngine(opts ...Option) *Engine {
	e, err := NewEngineWithUpgrades(DefaultUpgrades(), opts...)
	if err != nil {
		// 默认目录是静态数据
		panic(fmt.Sprintf("默认升级目录无效: %v", err))
	}
	return e
}

// NewEngineWithUpgrades 使用自定义升级目录创建引擎
func NewEngineWithUpgrades(defs []UpgradeDefinition, opts ...Option) (*Engine, error) {
	catalog, err := NewUpgradeCatalog(defs)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		upgrades:     catalog,
		achievements: DefaultAchievements(),
		specials:     make(map[string]SpecialEffect),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Now 引擎时钟
func (e *Engine) Now() time.Time {
	return e.now()
}

// Upgrades 升级目录
func (e *Engine) Upgrades() []UpgradeDefinition {
	return e.upgrades.All()
}

// Achievements 成就目录
func (e *Engine) Achievements() []AchievementDefinition {
	return append([]AchievementDefinition(nil), e.achievements...)
}

// Click 点击一次，返回新的玩家副本和新解锁的成就
func (e *Engine) Click(p *Player) (*Player, []UnlockedAchievement) {
	next := p.Clone()
	next.State, next.ClickCount = e.ApplyClick(next.State, next.ClickCount)
	return next, e.EvaluateAchievements(next)
}

// Tick 累积elapsedSeconds秒的被动收益。参数无效时原玩家不变
func (e *Engine) Tick(p *Player, elapsedSeconds float64) (*Player, []UnlockedAchievement, error) {
	state, err := e.ApplyPassiveTick(p.State, elapsedSeconds)
	if err != nil {
		return p, nil, err
	}
	next := p.Clone()
	next.State = state
	return next, e.EvaluateAchievements(next), nil
}

// Purchase 购买升级。失败时原玩家不变
func (e *Engine) Purchase(p *Player, upgradeID string) (*Player, []UnlockedAchievement, error) {
	state, owned, err := e.PurchaseUpgrade(p.State, p.Upgrades[upgradeID], upgradeID)
	if err != nil {
		return p, nil, err
	}
	next := p.Clone()
	next.State = state
	next.Upgrades[upgradeID] = owned
	return next, e.EvaluateAchievements(next), nil
}

// UpgradeViews 带当前价格和数量的升级列表
func (e *Engine) UpgradeViews(p *Player) []UpgradeView {
	defs := e.upgrades.All()
	views := make([]UpgradeView, 0, len(defs))
	for _, def := range defs {
		owned := p.Upgrades[def.ID]
		views = append(views, UpgradeView{
			UpgradeDefinition: def,
			Cost:              UpgradeCost(def, owned),
			Count:             owned,
		})
	}
	return views
}

// AchievementViews 带解锁状态的成就列表
func (e *Engine) AchievementViews(p *Player) []AchievementView {
	views := make([]AchievementView, 0, len(e.achievements))
	for _, def := range e.achievements {
		st := p.Achievements[def.ID]
		views = append(views, AchievementView{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			Icon:        def.Icon,
			Unlocked:    st.Unlocked,
			UnlockedAt:  st.UnlockedAt,
		})
	}
	return views
}
