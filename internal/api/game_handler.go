package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/tap-game/internal/errors"
	"github.com/wfunc/tap-game/internal/middleware"
	"github.com/wfunc/tap-game/internal/service"
)

// PurchaseRequest 购买升级请求
type PurchaseRequest struct {
	UpgradeID string `json:"upgradeId" binding:"required"`
}

// UpdateRequest 被动收益结算请求
type UpdateRequest struct {
	LastUpdate int64 `json:"lastUpdate" binding:"gte=0"` // 客户端上次更新时间，毫秒
}

// TickRequest 按秒数结算请求
type TickRequest struct {
	ElapsedSeconds *float64 `json:"elapsedSeconds" binding:"required"`
}

// GameHandler 游戏处理器
type GameHandler struct {
	games    *service.GameService
	sessions *service.SessionService
}

// NewGameHandler 创建游戏处理器
func NewGameHandler(games *service.GameService, sessions *service.SessionService) *GameHandler {
	return &GameHandler{
		games:    games,
		sessions: sessions,
	}
}

// NewSession 创建新玩家
// @Summary 创建新玩家并返回令牌
// @Tags Session
// @Produce json
// @Success 201 {object} service.SessionResult
// @Router /api/v1/session [post]
func (h *GameHandler) NewSession(c *gin.Context) {
	session, err := h.sessions.NewSession(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	setTokenCookie(c, session)
	c.JSON(http.StatusCreated, session)
}

// IssueToken 为当前玩家签发令牌
// @Summary 为当前玩家（默认为访客）签发令牌
// @Tags Session
// @Produce json
// @Success 200 {object} service.SessionResult
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/v1/session/token [post]
func (h *GameHandler) IssueToken(c *gin.Context) {
	playerID, ok := middleware.MustPlayerID(c)
	if !ok {
		return
	}

	session, err := h.sessions.IssueToken(c.Request.Context(), playerID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	setTokenCookie(c, session)
	c.JSON(http.StatusOK, session)
}

// Stats 全局统计
// @Summary 玩家总数和各成就解锁人数
// @Tags Game
// @Produce json
// @Success 200 {object} game.Stats
// @Router /api/v1/stats [get]
func (h *GameHandler) Stats(c *gin.Context) {
	stats, err := h.games.Stats(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func setTokenCookie(c *gin.Context, session *service.SessionResult) {
	maxAge := 0
	if session.ExpiresAt > 0 {
		maxAge = int(time.Until(time.UnixMilli(session.ExpiresAt)).Seconds())
	}
	c.SetCookie(middleware.PlayerTokenCookie, session.Token, maxAge, "/", "", false, true)
}

// GetGame 获取游戏数据
// @Summary 获取玩家的完整游戏数据
// @Tags Game
// @Produce json
// @Success 200 {object} service.GameView
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/v1/game [get]
func (h *GameHandler) GetGame(c *gin.Context) {
	playerID, ok := middleware.MustPlayerID(c)
	if !ok {
		return
	}

	view, err := h.games.GetGame(c.Request.Context(), playerID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Click 点击
// @Summary 点击一次
// @Tags Game
// @Produce json
// @Success 200 {object} service.ActionResult
// @Router /api/v1/game/click [post]
func (h *GameHandler) Click(c *gin.Context) {
	playerID, ok := middleware.MustPlayerID(c)
	if !ok {
		return
	}

	result, err := h.games.Click(c.Request.Context(), playerID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Purchase 购买升级
// @Summary 购买升级
// @Tags Game
// @Accept json
// @Produce json
// @Param request body PurchaseRequest true "升级ID"
// @Success 200 {object} service.ActionResult
// @Failure 400 {object} errors.ErrorResponse
// @Router /api/v1/game/upgrades [post]
func (h *GameHandler) Purchase(c *gin.Context) {
	playerID, ok := middleware.MustPlayerID(c)
	if !ok {
		return
	}

	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrInvalidParam))
		return
	}

	result, err := h.games.Purchase(c.Request.Context(), playerID, req.UpgradeID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Update 按客户端时间结算被动收益
// @Summary 结算离线收益
// @Tags Game
// @Accept json
// @Produce json
// @Param request body UpdateRequest false "客户端上次更新时间"
// @Success 200 {object} service.ActionResult
// @Router /api/v1/game/update [post]
func (h *GameHandler) Update(c *gin.Context) {
	playerID, ok := middleware.MustPlayerID(c)
	if !ok {
		return
	}

	var req UpdateRequest
	// 空请求体使用服务端记录的时间
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrInvalidParam))
		return
	}

	result, err := h.games.Update(c.Request.Context(), playerID, req.LastUpdate)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Tick 按秒数结算被动收益
// @Summary 结算指定秒数的被动收益
// @Tags Game
// @Accept json
// @Produce json
// @Param request body TickRequest true "秒数"
// @Success 200 {object} service.ActionResult
// @Router /api/v1/game/tick [post]
func (h *GameHandler) Tick(c *gin.Context) {
	playerID, ok := middleware.MustPlayerID(c)
	if !ok {
		return
	}

	var req TickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrInvalidParam))
		return
	}

	result, err := h.games.Tick(c.Request.Context(), playerID, *req.ElapsedSeconds)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
