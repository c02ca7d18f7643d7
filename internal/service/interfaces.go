package service

import (
	"github.com/wfunc/tap-game/internal/game"
)

// Notifier 向玩家的在线客户端推送消息，推送失败不影响请求
type Notifier interface {
	PushGameState(playerID string, result *ActionResult)
	PushAchievements(playerID string, unlocked []game.UnlockedAchievement)
}

type noopNotifier struct{}

func (noopNotifier) PushGameState(string, *ActionResult) {}

func (noopNotifier) PushAchievements(string, []game.UnlockedAchievement) {}

// GameView 完整的游戏界面数据
type GameView struct {
	PlayerID       string                 `json:"playerId"`
	GameState      game.GameState         `json:"gameState"`
	LevelProgress  float64                `json:"levelProgress"`
	NextLevelScore float64                `json:"nextLevelScore"`
	ClickCount     int64                  `json:"clickCount"`
	Upgrades       []game.UpgradeView     `json:"upgrades"`
	Achievements   []game.AchievementView `json:"achievements"`
	LastUpdate     int64                  `json:"lastUpdate"` // 毫秒时间戳
}

// ActionResult 点击、购买、结算等操作的结果
type ActionResult struct {
	GameState       game.GameState             `json:"gameState"`
	LevelProgress   float64                    `json:"levelProgress"`
	ClickCount      int64                      `json:"clickCount"`
	Upgrades        []game.UpgradeView         `json:"upgrades,omitempty"`
	LastUpdate      int64                      `json:"lastUpdate"`
	NewAchievements []game.UnlockedAchievement `json:"newAchievements"`
}

// SessionResult 新会话
type SessionResult struct {
	PlayerID  string `json:"playerId"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt,omitempty"` // 毫秒时间戳，0为不过期
}
