package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inkstone/internal/config"
	"github.com/inkstone/internal/constants"
	"github.com/inkstone/internal/models"
	"github.com/inkstone/internal/repository"
	"github.com/inkstone/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestRequestIDMiddlewareGeneratesAndEchoes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	// 未携带请求 ID 时生成新的
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get("X-Request-ID")
	if generated == "" {
		t.Fatal("expected generated request id header")
	}
	if w.Body.String() != generated {
		t.Fatalf("context request id %q != header %q", w.Body.String(), generated)
	}

	// 已携带时原样透传
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-fixed-001")
	r.ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") != "req-fixed-001" {
		t.Fatalf("expected request id passthrough, got %q", w.Header().Get("X-Request-ID"))
	}
}

func setupAuthMiddlewareTest(t *testing.T) (*gin.Engine, *service.TokenService, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:middleware_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	cfg := &config.Config{
		JWT: config.JWTConfig{
			AccessSecret:        "middleware-access-secret-0123456789",
			RefreshSecret:       "middleware-refresh-secret-012345678",
			AccessExpireMinutes: 15,
			RefreshExpireHours:  168,
		},
	}
	tokens := service.NewTokenService(cfg)
	guard := service.NewGuardService(tokens, repository.NewUserRepository(db))

	r := gin.New()
	r.GET("/protected", AuthMiddleware(guard), func(c *gin.Context) {
		grant := GetGrant(c)
		c.JSON(http.StatusOK, gin.H{"user_id": grant.UserID})
	})
	return r, tokens, db
}

type deniedEnvelope struct {
	StatusCode int    `json:"status_code"`
	Msg        string `json:"msg"`
}

func TestAuthMiddlewareDenialsCarryRealStatus(t *testing.T) {
	r, _, _ := setupAuthMiddlewareTest(t)

	// Cookie 缺失
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for missing cookies, got %d", w.Code)
	}
	var body deniedEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body failed: %v", err)
	}
	if body.Msg != constants.DenyReasonTokenVerification {
		t.Fatalf("expected TokenVerification reason, got %q", body.Msg)
	}

	// Cookie 在位但缺少 Bearer
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: constants.CookieRefreshToken, Value: "x"})
	req.AddCookie(&http.Cookie{Name: constants.CookieFingerprint, Value: "fp"})
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for missing bearer, got %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body failed: %v", err)
	}
	if body.Msg != constants.DenyReasonTokenDenied {
		t.Fatalf("expected TokenDenied reason, got %q", body.Msg)
	}
}

func TestAuthMiddlewareGrantsWithValidTokens(t *testing.T) {
	r, tokens, db := setupAuthMiddlewareTest(t)

	user := models.User{
		Email:        "mw@example.com",
		PasswordHash: "x",
		Roles:        constants.RoleUser,
		Status:       constants.UserStatusActive,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	payload := service.TokenPayload{
		UserID:      user.ID,
		Email:       user.Email,
		Roles:       []string{constants.RoleUser},
		SessionID:   "mw-session",
		Fingerprint: "mw-fp",
	}
	access, _, err := tokens.IssueAccess(payload)
	if err != nil {
		t.Fatalf("issue access failed: %v", err)
	}
	refresh, _, err := tokens.IssueRefresh(payload)
	if err != nil {
		t.Fatalf("issue refresh failed: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	req.AddCookie(&http.Cookie{Name: constants.CookieRefreshToken, Value: refresh})
	req.AddCookie(&http.Cookie{Name: constants.CookieFingerprint, Value: "mw-fp"})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	var body struct {
		UserID uint `json:"user_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body failed: %v", err)
	}
	if body.UserID != user.ID {
		t.Fatalf("expected user %d in grant, got %d", user.ID, body.UserID)
	}
}
