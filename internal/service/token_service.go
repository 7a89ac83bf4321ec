package service

import (
	"errors"
	"time"

	"github.com/inkstone/internal/config"
	"github.com/inkstone/internal/constants"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService 访问令牌与刷新令牌的签发和校验。
// 纯计算，不访问数据库和网络。
type TokenService struct {
	cfg *config.Config
}

// NewTokenService 创建令牌服务
func NewTokenService(cfg *config.Config) *TokenService {
	return &TokenService{cfg: cfg}
}

// AccessClaims 访问令牌声明
type AccessClaims struct {
	UserID      uint     `json:"user_id"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	SessionID   string   `json:"session_id"`
	Fingerprint string   `json:"fingerprint"`
	TokenType   string   `json:"type"`
	jwt.RegisteredClaims
}

// RefreshClaims 刷新令牌声明
type RefreshClaims struct {
	UserID      uint   `json:"user_id"`
	SessionID   string `json:"session_id"`
	Fingerprint string `json:"fingerprint"`
	TokenType   string `json:"type"`
	jwt.RegisteredClaims
}

// TokenPayload 签发令牌所需的载荷
type TokenPayload struct {
	UserID      uint
	Email       string
	Roles       []string
	SessionID   string
	Fingerprint string
}

// AccessTTL 访问令牌有效期
func (s *TokenService) AccessTTL() time.Duration {
	minutes := s.cfg.JWT.AccessExpireMinutes
	if minutes <= 0 {
		minutes = 15
	}
	return time.Duration(minutes) * time.Minute
}

// RefreshTTL 刷新令牌有效期
func (s *TokenService) RefreshTTL() time.Duration {
	hours := s.cfg.JWT.RefreshExpireHours
	if hours <= 0 {
		hours = 168
	}
	return time.Duration(hours) * time.Hour
}

// IssueAccess 签发访问令牌
func (s *TokenService) IssueAccess(payload TokenPayload) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.AccessTTL())
	claims := AccessClaims{
		UserID:      payload.UserID,
		Email:       payload.Email,
		Roles:       payload.Roles,
		SessionID:   payload.SessionID,
		Fingerprint: payload.Fingerprint,
		TokenType:   constants.TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWT.AccessSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// IssueRefresh 签发刷新令牌（使用独立密钥）
func (s *TokenService) IssueRefresh(payload TokenPayload) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.RefreshTTL())
	claims := RefreshClaims{
		UserID:      payload.UserID,
		SessionID:   payload.SessionID,
		Fingerprint: payload.Fingerprint,
		TokenType:   constants.TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWT.RefreshSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyAccess 校验访问令牌。
// 校验失败返回结构化拒绝而非错误：过期返回 TokenExpired，
// 签名无效或令牌类型不符返回 TokenDenied。
func (s *TokenService) VerifyAccess(tokenString string) (*AccessClaims, *Denial) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &AccessClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.AccessSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, Deny(constants.DenyReasonTokenExpired)
		}
		return nil, Deny(constants.DenyReasonTokenDenied)
	}
	if !token.Valid || claims.TokenType != constants.TokenTypeAccess {
		return nil, Deny(constants.DenyReasonTokenDenied)
	}
	return claims, nil
}

// VerifyRefresh 校验刷新令牌，失败返回 nil，由调用方判空处理。
func (s *TokenService) VerifyRefresh(tokenString string) *RefreshClaims {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &RefreshClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.RefreshSecret), nil
	})
	if err != nil || !token.Valid {
		return nil
	}
	if claims.TokenType != constants.TokenTypeRefresh {
		return nil
	}
	return claims
}
