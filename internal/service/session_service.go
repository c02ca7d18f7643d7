package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	apperrors "github.com/wfunc/tap-game/internal/errors"
	"github.com/wfunc/tap-game/internal/utils"
	"go.uber.org/zap"
)

// SessionService 发放和解析玩家令牌，没有账号和密码
type SessionService struct {
	games  *GameService
	tokens *utils.TokenManager
	logger *zap.Logger
}

// NewSessionService 创建会话服务
func NewSessionService(games *GameService, tokens *utils.TokenManager, log *zap.Logger) *SessionService {
	return &SessionService{
		games:  games,
		tokens: tokens,
		logger: log,
	}
}

// NewSession 创建新玩家并签发令牌
func (s *SessionService) NewSession(ctx context.Context) (*SessionResult, error) {
	playerID := uuid.NewString()

	if _, err := s.games.EnsurePlayer(ctx, playerID); err != nil {
		return nil, err
	}

	return s.issue(playerID)
}

// IssueToken 为已存在的玩家签发令牌
func (s *SessionService) IssueToken(ctx context.Context, playerID string) (*SessionResult, error) {
	if _, err := s.games.GetGame(ctx, playerID); err != nil {
		return nil, err
	}
	return s.issue(playerID)
}

// Resolve 解析令牌得到玩家ID
func (s *SessionService) Resolve(token string) (string, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		if errors.Is(err, utils.ErrExpiredToken) {
			return "", apperrors.Wrap(err, apperrors.ErrTokenExpired)
		}
		return "", apperrors.Wrap(err, apperrors.ErrTokenInvalid)
	}
	return claims.PlayerID, nil
}

func (s *SessionService) issue(playerID string) (*SessionResult, error) {
	token, err := s.tokens.Generate(playerID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknown, "签发令牌失败")
	}

	result := &SessionResult{PlayerID: playerID, Token: token}
	if expiry := s.tokens.Expiry(); expiry > 0 {
		result.ExpiresAt = s.games.Engine().Now().Add(expiry).UnixMilli()
	}

	s.logger.Info("签发玩家令牌", zap.String("player_id", playerID))
	return result, nil
}
