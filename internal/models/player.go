package models

import (
	"time"
)

// BaseModel 公共字段
type BaseModel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Player 玩家游戏状态表
type Player struct {
	BaseModel
	PlayerID     string    `gorm:"uniqueIndex;size:64;not null" json:"player_id"`
	Score        float64   `gorm:"not null" json:"score"`
	PerSecond    float64   `gorm:"not null" json:"per_second"`
	Level        int       `gorm:"not null" json:"level"`
	ClickValue   float64   `gorm:"not null" json:"click_value"`
	ClickCount   int64     `gorm:"not null" json:"click_count"`
	LastUpdateAt time.Time `json:"last_update_at"`
}

// TableName 表名
func (Player) TableName() string {
	return "players"
}

// UpgradeOwnership 玩家拥有的升级数量
type UpgradeOwnership struct {
	BaseModel
	PlayerID  string `gorm:"uniqueIndex:idx_player_upgrade;size:64;not null" json:"player_id"`
	UpgradeID string `gorm:"uniqueIndex:idx_player_upgrade;size:64;not null" json:"upgrade_id"`
	Count     int    `gorm:"not null" json:"count"`
}

// TableName 表名
func (UpgradeOwnership) TableName() string {
	return "upgrade_ownerships"
}

// AchievementRecord 玩家成就状态
type AchievementRecord struct {
	BaseModel
	PlayerID      string     `gorm:"uniqueIndex:idx_player_achievement;size:64;not null" json:"player_id"`
	AchievementID string     `gorm:"uniqueIndex:idx_player_achievement;size:64;not null" json:"achievement_id"`
	Unlocked      bool       `gorm:"not null" json:"unlocked"`
	UnlockedAt    *time.Time `json:"unlocked_at,omitempty"`
}

// TableName 表名
func (AchievementRecord) TableName() string {
	return "achievement_records"
}

// AllModels 需要迁移的全部模型
func AllModels() []interface{} {
	return []interface{}{
		&Player{},
		&UpgradeOwnership{},
		&AchievementRecord{},
	}
}
