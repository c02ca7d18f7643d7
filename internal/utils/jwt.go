package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// TokenIssuer 令牌签发方
const TokenIssuer = "tap-game"

// PlayerClaims 玩家令牌，只绑定玩家ID
type PlayerClaims struct {
	PlayerID string `json:"player_id"`
	jwt.RegisteredClaims
}

// TokenManager 玩家令牌管理器
type TokenManager struct {
	secretKey string
	expiry    time.Duration
	now       func() time.Time
}

// NewTokenManager 创建令牌管理器，expiry<=0 表示永不过期
func NewTokenManager(secretKey string, expiry time.Duration) *TokenManager {
	return &TokenManager{
		secretKey: secretKey,
		expiry:    expiry,
		now:       time.Now,
	}
}

// Generate 为玩家签发令牌
func (m *TokenManager) Generate(playerID string) (string, error) {
	if playerID == "" {
		return "", ErrInvalidToken
	}
	now := m.now()

	claims := &PlayerClaims{
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    TokenIssuer,
			Subject:   playerID,
		},
	}
	if m.expiry > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.expiry))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.secretKey))
}

// Validate 验证令牌并返回其中的玩家ID
func (m *TokenManager) Validate(tokenString string) (*PlayerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &PlayerClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(m.secretKey), nil
	}, jwt.WithIssuer(TokenIssuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*PlayerClaims)
	if !ok || !token.Valid || claims.PlayerID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Expiry 令牌有效期
func (m *TokenManager) Expiry() time.Duration {
	return m.expiry
}
