package service

import (
	"time"

	"github.com/wfunc/tap-game/internal/config"
	"github.com/wfunc/tap-game/internal/game"
	"github.com/wfunc/tap-game/internal/utils"
	"go.uber.org/zap"
)

// Services 服务集合
type Services struct {
	Game    *GameService
	Session *SessionService
}

// NewServices 按配置创建服务集合
func NewServices(cfg *config.Config, store game.Store, log *zap.Logger) *Services {
	engine := game.NewEngine(game.WithSingleStepLevelUp(cfg.Game.SingleStepLevelUp))

	gameService := NewGameService(&GameServiceConfig{
		Engine:            engine,
		Store:             store,
		Logger:            log,
		GuestPlayer:       cfg.Game.GuestPlayer,
		MaxElapsedSeconds: cfg.Game.MaxElapsedSeconds,
		RequestTimeout:    cfg.Server.RequestTimeout,
	})

	tokens := utils.NewTokenManager(
		cfg.Security.JWT.Secret,
		time.Duration(cfg.Security.JWT.ExpireHours)*time.Hour,
	)

	return &Services{
		Game:    gameService,
		Session: NewSessionService(gameService, tokens, log),
	}
}
