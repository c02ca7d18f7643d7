package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/tap-game/internal/errors"
	"github.com/wfunc/tap-game/internal/logger"
	"github.com/wfunc/tap-game/internal/middleware"
	"github.com/wfunc/tap-game/internal/service"
	"github.com/wfunc/tap-game/internal/websocket"
	"go.uber.org/zap"
)

// RouterConfig 路由配置
type RouterConfig struct {
	Services      *service.Services
	Hub           *websocket.Hub // 为nil时不注册WebSocket路由
	WebSocketPath string
	OpenAPIPath   string
	Logger        *zap.Logger
}

// Router API路由器
type Router struct {
	engine      *gin.Engine
	services    *service.Services
	hub         *websocket.Hub
	gameHandler *GameHandler
	players     *middleware.PlayerMiddleware
	wsPath      string
	openAPIPath string
	log         *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(config *RouterConfig) *Router {
	engine := gin.New()

	// 全局中间件
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Recovery())
	engine.Use(middleware.RequestLogger())

	log := config.Logger
	if log == nil {
		log = logger.GetModuleLogger("http")
	}

	router := &Router{
		engine:      engine,
		services:    config.Services,
		hub:         config.Hub,
		gameHandler: NewGameHandler(config.Services.Game, config.Services.Session),
		players:     middleware.NewPlayerMiddleware(config.Services.Session, config.Services.Game.GuestPlayer()),
		wsPath:      config.WebSocketPath,
		openAPIPath: config.OpenAPIPath,
		log:         log,
	}
	if router.wsPath == "" {
		router.wsPath = "/ws"
	}
	if router.openAPIPath == "" {
		router.openAPIPath = "docs/api/openapi.yaml"
	}

	router.setupRoutes()

	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	// 文档
	r.registerOpenAPIRoutes()
	registerSwaggerRoutes(r.engine)

	players := r.players.ResolvePlayer()
	h := r.gameHandler

	// 兼容旧版前端的路由
	legacy := r.engine.Group("/api")
	legacy.Use(players)
	{
		legacy.GET("/game", h.GetGame)
		legacy.POST("/click", h.Click)
		legacy.POST("/upgrade", h.Purchase)
		legacy.POST("/update", h.Update)
	}

	v1 := r.engine.Group("/api/v1")
	{
		v1.POST("/session", h.NewSession)
		v1.POST("/session/token", players, h.IssueToken)
		v1.GET("/stats", h.Stats)

		g := v1.Group("/game")
		g.Use(players)
		{
			g.GET("", h.GetGame)
			g.POST("/click", h.Click)
			g.POST("/upgrades", h.Purchase)
			g.POST("/update", h.Update)
			g.POST("/tick", h.Tick)
		}
	}

	if r.hub != nil {
		r.engine.GET(r.wsPath, players, r.serveWebSocket)
	}

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		middleware.AbortWithError(c, apperrors.New(apperrors.ErrNotFound, "接口不存在"))
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := r.services.Game.Ping(ctx); err != nil {
		r.log.Warn("健康检查失败", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"message": "存储不可用",
		})
		return
	}

	resp := gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
	}
	if r.hub != nil {
		resp["online"] = r.hub.GetOnlineCount()
	}
	c.JSON(http.StatusOK, resp)
}

// serveWebSocket 建立推送连接
func (r *Router) serveWebSocket(c *gin.Context) {
	playerID, ok := middleware.MustPlayerID(c)
	if !ok {
		return
	}

	if err := r.hub.ServeWS(c.Writer, c.Request, playerID); err != nil {
		r.log.Warn("WebSocket连接失败",
			zap.String("player_id", playerID),
			zap.Error(err))
	}
}

// Handler 返回http.Handler
func (r *Router) Handler() http.Handler {
	return r.engine
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
