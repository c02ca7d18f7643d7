package game

import (
	"fmt"
	"math"

	apperrors "github.com/wfunc/tap-game/internal/errors"
)

// CostGrowth 每多拥有一个，价格乘以该系数
const CostGrowth = 1.15

// SpecialEffect special类型升级的效果
type SpecialEffect func(state GameState, def UpgradeDefinition) GameState

// DefaultUpgrades 默认升级目录
func DefaultUpgrades() []UpgradeDefinition {
	return []UpgradeDefinition{
		{ID: "basicTapper", Type: UpgradeAutoTapper, Name: "Basic Tapper", Description: "+0.1 points per second", Icon: "ri-mouse-line", BaseCost: 10, BaseValue: 0.1},
		{ID: "fastTapper", Type: UpgradeAutoTapper, Name: "Fast Tapper", Description: "+0.5 points per second", Icon: "ri-speed-up-line", BaseCost: 50, BaseValue: 0.5},
		{ID: "autoClicker", Type: UpgradeAutoTapper, Name: "Auto Clicker", Description: "+2 points per second", Icon: "ri-robot-line", BaseCost: 200, BaseValue: 2},
		{ID: "tapFarm", Type: UpgradeAutoTapper, Name: "Tap Farm", Description: "+10 points per second", Icon: "ri-server-line", BaseCost: 1000, BaseValue: 10},
		{ID: "doubleClick", Type: UpgradeMultiplier, Name: "Double Click", Description: "+1 point per click", Icon: "ri-add-circle-line", BaseCost: 25, BaseValue: 1},
		{ID: "superClick", Type: UpgradeMultiplier, Name: "Super Click", Description: "+3 points per click", Icon: "ri-add-circle-fill", BaseCost: 150, BaseValue: 3},
		{ID: "bonusX2", Type: UpgradeSpecial, Name: "Bonus x2", Description: "x2 clicks for 30 seconds", Icon: "ri-flashlight-line", BaseCost: 100, BaseValue: 2},
	}
}

// UpgradeCost 已拥有owned个时再买一个的价格
func UpgradeCost(def UpgradeDefinition, owned int) float64 {
	if owned < 0 {
		owned = 0
	}
	return math.Floor(def.BaseCost * math.Pow(CostGrowth, float64(owned)))
}

// UpgradeCatalog 有序的升级目录，创建后只读
type UpgradeCatalog struct {
	order []UpgradeDefinition
	byID  map[string]UpgradeDefinition
}

// NewUpgradeCatalog 创建升级目录
func NewUpgradeCatalog(defs []UpgradeDefinition) (*UpgradeCatalog, error) {
	c := &UpgradeCatalog{
		order: make([]UpgradeDefinition, 0, len(defs)),
		byID:  make(map[string]UpgradeDefinition, len(defs)),
	}
	for _, def := range defs {
		if def.ID == "" {
			return nil, fmt.Errorf("升级项ID不能为空")
		}
		if _, dup := c.byID[def.ID]; dup {
			return nil, fmt.Errorf("升级项ID重复: %s", def.ID)
		}
		if def.BaseCost < 0 || def.BaseValue < 0 {
			return nil, fmt.Errorf("升级项数值无效: %s", def.ID)
		}
		switch def.Type {
		case UpgradeAutoTapper, UpgradeMultiplier, UpgradeSpecial:
		default:
			return nil, fmt.Errorf("未知的升级类型: %s", def.Type)
		}
		c.order = append(c.order, def)
		c.byID[def.ID] = def
	}
	return c, nil
}

// Get 按ID查找
func (c *UpgradeCatalog) Get(id string) (UpgradeDefinition, bool) {
	def, ok := c.byID[id]
	return def, ok
}

// All 按目录顺序返回全部定义
func (c *UpgradeCatalog) All() []UpgradeDefinition {
	out := make([]UpgradeDefinition, len(c.order))
	copy(out, c.order)
	return out
}

// PurchaseUpgrade 购买一个升级。失败时返回原状态和原数量
func (e *Engine) PurchaseUpgrade(state GameState, owned int, upgradeID string) (GameState, int, error) {
	def, ok := e.upgrades.Get(upgradeID)
	if !ok {
		return state, owned, apperrors.New(apperrors.ErrUnknownUpgrade, upgradeID)
	}

	cost := UpgradeCost(def, owned)
	if state.Score < cost {
		shortfall := cost - state.Score
		return state, owned, apperrors.Newf(apperrors.ErrInsufficientFunds,
			"%s 需要 %.0f，当前 %.2f，还差 %.2f", upgradeID, cost, state.Score, shortfall).
			WithMeta("cost", cost).
			WithMeta("shortfall", shortfall)
	}

	state.Score -= cost
	switch def.Type {
	case UpgradeAutoTapper:
		state.PerSecond += def.BaseValue
	case UpgradeMultiplier:
		state.ClickValue += def.BaseValue
	case UpgradeSpecial:
		if effect, ok := e.specials[def.ID]; ok {
			state = effect(state, def)
		}
	}

	return state, owned + 1, nil
}
