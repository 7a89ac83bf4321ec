package service

import (
	"testing"
	"time"

	"github.com/inkstone/internal/config"
	"github.com/inkstone/internal/constants"

	"github.com/golang-jwt/jwt/v5"
)

func testTokenConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			AccessSecret:        "test-access-secret-0123456789abcdef",
			RefreshSecret:       "test-refresh-secret-0123456789abcdef",
			AccessExpireMinutes: 15,
			RefreshExpireHours:  168,
		},
	}
}

func testTokenPayload() TokenPayload {
	return TokenPayload{
		UserID:      42,
		Email:       "user@example.com",
		Roles:       []string{constants.RoleUser},
		SessionID:   "session-0001",
		Fingerprint: "fp-0001",
	}
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	svc := NewTokenService(testTokenConfig())
	payload := testTokenPayload()

	token, expiresAt, err := svc.IssueAccess(payload)
	if err != nil {
		t.Fatalf("issue access failed: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}

	claims, denial := svc.VerifyAccess(token)
	if denial != nil {
		t.Fatalf("verify access denied: %s", denial.Reason)
	}
	if claims.UserID != payload.UserID || claims.Email != payload.Email {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.SessionID != payload.SessionID || claims.Fingerprint != payload.Fingerprint {
		t.Fatalf("session binding lost: %+v", claims)
	}
	if claims.TokenType != constants.TokenTypeAccess {
		t.Fatalf("unexpected token type: %s", claims.TokenType)
	}
}

func TestVerifyAccessExpiredToken(t *testing.T) {
	cfg := testTokenConfig()
	svc := NewTokenService(cfg)

	now := time.Now()
	claims := AccessClaims{
		UserID:      42,
		SessionID:   "session-0001",
		Fingerprint: "fp-0001",
		TokenType:   constants.TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWT.AccessSecret))
	if err != nil {
		t.Fatalf("sign expired token failed: %v", err)
	}

	_, denial := svc.VerifyAccess(token)
	if denial == nil {
		t.Fatal("expected denial for expired token")
	}
	if denial.Reason != constants.DenyReasonTokenExpired {
		t.Fatalf("expected TokenExpired, got %s", denial.Reason)
	}
	if denial.Status != 401 {
		t.Fatalf("expected status 401, got %d", denial.Status)
	}
}

func TestVerifyAccessWrongSecret(t *testing.T) {
	issuer := NewTokenService(testTokenConfig())
	token, _, err := issuer.IssueAccess(testTokenPayload())
	if err != nil {
		t.Fatalf("issue access failed: %v", err)
	}

	otherCfg := testTokenConfig()
	otherCfg.JWT.AccessSecret = "another-access-secret-0123456789ab"
	verifier := NewTokenService(otherCfg)

	_, denial := verifier.VerifyAccess(token)
	if denial == nil {
		t.Fatal("expected denial for wrong secret")
	}
	if denial.Reason != constants.DenyReasonTokenDenied {
		t.Fatalf("expected TokenDenied, got %s", denial.Reason)
	}
}

func TestVerifyAccessRejectsRefreshTypedToken(t *testing.T) {
	cfg := testTokenConfig()
	svc := NewTokenService(cfg)

	// 用访问密钥签出 refresh 类型的令牌，验证类型检查兜底
	now := time.Now()
	claims := AccessClaims{
		UserID:    42,
		TokenType: constants.TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWT.AccessSecret))
	if err != nil {
		t.Fatalf("sign token failed: %v", err)
	}

	_, denial := svc.VerifyAccess(token)
	if denial == nil {
		t.Fatal("expected denial for wrong token type")
	}
	if denial.Reason != constants.DenyReasonTokenDenied {
		t.Fatalf("expected TokenDenied, got %s", denial.Reason)
	}
}

func TestVerifyRefreshRoundTrip(t *testing.T) {
	svc := NewTokenService(testTokenConfig())
	payload := testTokenPayload()

	token, _, err := svc.IssueRefresh(payload)
	if err != nil {
		t.Fatalf("issue refresh failed: %v", err)
	}

	claims := svc.VerifyRefresh(token)
	if claims == nil {
		t.Fatal("expected valid refresh claims")
	}
	if claims.UserID != payload.UserID || claims.SessionID != payload.SessionID {
		t.Fatalf("unexpected refresh claims: %+v", claims)
	}

	// 访问令牌不能当刷新令牌使用（密钥不同）
	accessToken, _, err := svc.IssueAccess(payload)
	if err != nil {
		t.Fatalf("issue access failed: %v", err)
	}
	if svc.VerifyRefresh(accessToken) != nil {
		t.Fatal("access token must not verify as refresh token")
	}
}
