package game

import (
	"math"

	apperrors "github.com/wfunc/tap-game/internal/errors"
)

const (
	levelBase     = 100.0 // 1级升2级所需分数
	levelExponent = 1.5
	levelClickMul = 1.2 // 升级时点击收益倍率

	// MaxLevel 等级上限
	MaxLevel = 1 << 30
)

// LevelThreshold 从level升到level+1所需的分数
func LevelThreshold(level int) float64 {
	return math.Pow(float64(level), levelExponent) * levelBase
}

// LevelProgress 当前等级进度百分比，范围[0,100]
func LevelProgress(state GameState) float64 {
	threshold := LevelThreshold(state.Level)
	if threshold <= 0 {
		return 100
	}
	progress := state.Score / threshold * 100
	return math.Max(0, math.Min(progress, 100))
}

// ApplyClick 手动点击：计数加一，分数增加点击收益，然后检查升级
func (e *Engine) ApplyClick(state GameState, clickCount int64) (GameState, int64) {
	clickCount++
	state.Score += state.ClickValue
	return e.LevelUp(state), clickCount
}

// ApplyPassiveTick 按经过的秒数累积被动收益
func (e *Engine) ApplyPassiveTick(state GameState, elapsedSeconds float64) (GameState, error) {
	if math.IsNaN(elapsedSeconds) || math.IsInf(elapsedSeconds, 0) || elapsedSeconds < 0 {
		return state, apperrors.Newf(apperrors.ErrInvalidParam, "elapsedSeconds无效: %v", elapsedSeconds)
	}
	if state.PerSecond <= 0 || elapsedSeconds == 0 {
		return state, nil
	}

	score := state.Score + state.PerSecond*elapsedSeconds
	if math.IsInf(score, 0) || math.IsNaN(score) {
		return state, apperrors.Newf(apperrors.ErrInvalidParam, "elapsedSeconds过大: %v", elapsedSeconds)
	}
	state.Score = score
	return e.LevelUp(state), nil
}

// LevelUp 分数达到阈值时升级。默认直接升到分数对应的等级，单步模式每次最多升一级
func (e *Engine) LevelUp(state GameState) GameState {
	if state.Level < 1 {
		state.Level = 1
	}
	if state.Level >= MaxLevel || !(state.Score >= LevelThreshold(state.Level)) {
		return state
	}

	target := state.Level + 1
	if !e.singleStepLevelUp {
		if l := levelForScore(state.Score); l > target {
			target = l
		}
	}

	state.ClickValue = raiseClickValue(state.ClickValue, target-state.Level)
	state.Level = target
	return state
}

// levelForScore 分数低于其阈值的最小等级
func levelForScore(score float64) int {
	if !(score >= levelBase) {
		return 1
	}
	est := math.Pow(score/levelBase, 1/levelExponent)
	if est >= MaxLevel {
		return MaxLevel
	}
	l := int(est) + 1
	for l > 1 && score < LevelThreshold(l-1) {
		l--
	}
	for l < MaxLevel && score >= LevelThreshold(l) {
		l++
	}
	return l
}

// raiseClickValue 每升一级点击收益乘1.2向下取整，不会降低，不再增长或溢出时停止
func raiseClickValue(cv float64, levels int) float64 {
	for i := 0; i < levels; i++ {
		next := math.Floor(cv * levelClickMul)
		if next <= cv || math.IsInf(next, 0) {
			break
		}
		cv = next
	}
	return math.Max(cv, 1)
}
