package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/tap-game/internal/errors"
)

const (
	// PlayerTokenHeader 玩家令牌请求头
	PlayerTokenHeader = "X-Player-Token"
	// PlayerTokenCookie 玩家令牌Cookie
	PlayerTokenCookie = "player_token"

	contextPlayerID = "playerID"
	contextToken    = "token"
	contextGuest    = "guest"
)

// TokenResolver 将令牌解析为玩家ID
type TokenResolver interface {
	Resolve(token string) (string, error)
}

// PlayerMiddleware 玩家识别中间件，没有令牌时使用默认玩家
type PlayerMiddleware struct {
	resolver TokenResolver
	guest    string
}

// NewPlayerMiddleware 创建玩家识别中间件
func NewPlayerMiddleware(resolver TokenResolver, guestPlayer string) *PlayerMiddleware {
	return &PlayerMiddleware{
		resolver: resolver,
		guest:    guestPlayer,
	}
}

// ResolvePlayer 识别玩家。令牌无效时返回401，不会回落到默认玩家
func (m *PlayerMiddleware) ResolvePlayer() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			c.Set(contextPlayerID, m.guest)
			c.Set(contextGuest, true)
			c.Next()
			return
		}

		playerID, err := m.resolver.Resolve(token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextPlayerID, playerID)
		c.Set(contextToken, token)
		c.Set(contextGuest, false)
		c.Next()
	}
}

// ExtractToken 从请求中提取令牌
func ExtractToken(c *gin.Context) string {
	// 1. Authorization: Bearer
	bearerToken := c.GetHeader("Authorization")
	if bearerToken != "" {
		parts := strings.Split(bearerToken, " ")
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
	}

	// 2. X-Player-Token
	if token := c.GetHeader(PlayerTokenHeader); token != "" {
		return token
	}

	// 3. Cookie
	if token, err := c.Cookie(PlayerTokenCookie); err == nil && token != "" {
		return token
	}

	// 4. Query参数，WebSocket握手无法带请求头
	if token := c.Query("token"); token != "" {
		return token
	}

	return ""
}

// GetPlayerID 从上下文获取玩家ID
func GetPlayerID(c *gin.Context) (string, bool) {
	if playerID, exists := c.Get(contextPlayerID); exists {
		if id, ok := playerID.(string); ok && id != "" {
			return id, true
		}
	}
	return "", false
}

// MustPlayerID 获取玩家ID，缺失时中止请求
func MustPlayerID(c *gin.Context) (string, bool) {
	playerID, ok := GetPlayerID(c)
	if !ok {
		AbortWithError(c, apperrors.New(apperrors.ErrAuthentication, "无法识别玩家"))
	}
	return playerID, ok
}

// IsGuest 是否为默认玩家
func IsGuest(c *gin.Context) bool {
	return c.GetBool(contextGuest)
}
