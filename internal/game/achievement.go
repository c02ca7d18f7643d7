package game

import "time"

// DefaultAchievements 默认成就表，按顺序判定
func DefaultAchievements() []AchievementDefinition {
	return []AchievementDefinition{
		{
			ID: "first-click", Name: "First Tap", Description: "Click for the first time", Icon: "ri-trophy-line",
			Predicate: func(s Snapshot) bool { return s.ClickCount >= 1 },
		},
		{
			ID: "hundred-clicks", Name: "Tap Master", Description: "Click 100 times", Icon: "ri-medal-line",
			Predicate: func(s Snapshot) bool { return s.ClickCount >= 100 },
		},
		{
			ID: "first-upgrade", Name: "Upgraded", Description: "Buy your first upgrade", Icon: "ri-rocket-line",
			Predicate: func(s Snapshot) bool { return s.TotalUpgrades() >= 1 },
		},
		{
			ID: "level-five", Name: "Rising Star", Description: "Reach level 5", Icon: "ri-vip-crown-line",
			Predicate: func(s Snapshot) bool { return s.State.Level >= 5 },
		},
		{
			ID: "ten-cps", Name: "Automation", Description: "Earn 10 points per second", Icon: "ri-light-bulb-line",
			Predicate: func(s Snapshot) bool { return s.State.PerSecond >= 10 },
		},
		{
			ID: "score-100", Name: "Century", Description: "Reach 100 points", Icon: "ri-star-line",
			Predicate: func(s Snapshot) bool { return s.State.Score >= 100 },
		},
	}
}

// EvaluateAchievements 对未解锁的成就判定一轮，命中则解锁并按目录顺序返回
func (e *Engine) EvaluateAchievements(p *Player) []UnlockedAchievement {
	if p.Achievements == nil {
		p.Achievements = make(map[string]AchievementStatus)
	}

	snapshot := p.Snapshot()
	var now time.Time
	var unlocked []UnlockedAchievement

	for _, def := range e.achievements {
		if p.Achievements[def.ID].Unlocked || def.Predicate == nil {
			continue
		}
		if !def.Predicate(snapshot) {
			continue
		}
		if now.IsZero() {
			now = e.now()
		}
		at := now
		p.Achievements[def.ID] = AchievementStatus{Unlocked: true, UnlockedAt: &at}
		unlocked = append(unlocked, UnlockedAchievement{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			Icon:        def.Icon,
			UnlockedAt:  now,
		})
	}

	return unlocked
}
