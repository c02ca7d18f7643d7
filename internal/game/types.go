package game

import "time"

// GameState 玩家核心数值
type GameState struct {
	Score      float64 `json:"score"`
	PerSecond  float64 `json:"perSecond"`
	Level      int     `json:"level"`
	ClickValue float64 `json:"clickValue"`
}

// NewGameState 新玩家的初始数值
func NewGameState() GameState {
	return GameState{
		Score:      0,
		PerSecond:  0,
		Level:      1,
		ClickValue: 1,
	}
}

// UpgradeType 升级类型
type UpgradeType string

const (
	UpgradeAutoTapper UpgradeType = "autoTapper" // 增加每秒收益
	UpgradeMultiplier UpgradeType = "multiplier" // 增加点击收益
	UpgradeSpecial    UpgradeType = "special"    // 由注册的特殊效果决定
)

// UpgradeDefinition 升级项定义
type UpgradeDefinition struct {
	ID          string      `json:"id"`
	Type        UpgradeType `json:"type"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Icon        string      `json:"icon"`
	BaseCost    float64     `json:"baseCost"`
	BaseValue   float64     `json:"baseValue"`
}

// Snapshot 成就判定时的只读视图
type Snapshot struct {
	State      GameState
	ClickCount int64
	Upgrades   map[string]int
}

// TotalUpgrades 已拥有的升级总数
func (s Snapshot) TotalUpgrades() int {
	total := 0
	for _, n := range s.Upgrades {
		total += n
	}
	return total
}

// AchievementDefinition 成就定义
type AchievementDefinition struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Icon        string              `json:"icon"`
	Predicate   func(Snapshot) bool `json:"-"`
}

// AchievementStatus 玩家的成就状态，只会从未解锁变为解锁
type AchievementStatus struct {
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlockedAt,omitempty"`
}

// UnlockedAchievement 本次操作新解锁的成就
type UnlockedAchievement struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	UnlockedAt  time.Time `json:"unlockedAt"`
}

// Player 玩家聚合
type Player struct {
	ID           string                       `json:"playerId"`
	State        GameState                    `json:"gameState"`
	ClickCount   int64                        `json:"clickCount"`
	Upgrades     map[string]int               `json:"upgrades"`
	Achievements map[string]AchievementStatus `json:"achievements"`
	LastUpdate   time.Time                    `json:"lastUpdate"`
}

// NewPlayer 创建初始玩家
func NewPlayer(id string, now time.Time) *Player {
	return &Player{
		ID:           id,
		State:        NewGameState(),
		Upgrades:     make(map[string]int),
		Achievements: make(map[string]AchievementStatus),
		LastUpdate:   now,
	}
}

// Clone 深拷贝
func (p *Player) Clone() *Player {
	c := *p
	c.Upgrades = make(map[string]int, len(p.Upgrades))
	for id, n := range p.Upgrades {
		c.Upgrades[id] = n
	}
	c.Achievements = make(map[string]AchievementStatus, len(p.Achievements))
	for id, st := range p.Achievements {
		if st.UnlockedAt != nil {
			at := *st.UnlockedAt
			st.UnlockedAt = &at
		}
		c.Achievements[id] = st
	}
	return &c
}

// Snapshot 返回成就判定视图
func (p *Player) Snapshot() Snapshot {
	return Snapshot{
		State:      p.State,
		ClickCount: p.ClickCount,
		Upgrades:   p.Upgrades,
	}
}

// UpgradeView 前端展示的升级项
type UpgradeView struct {
	UpgradeDefinition
	Cost  float64 `json:"cost"`
	Count int     `json:"count"`
}

// AchievementView 前端展示的成就
type AchievementView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Unlocked    bool       `json:"unlocked"`
	UnlockedAt  *time.Time `json:"unlockedAt,omitempty"`
}
