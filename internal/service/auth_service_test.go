package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/inkstone/internal/cache"
	"github.com/inkstone/internal/config"
	"github.com/inkstone/internal/constants"
	"github.com/inkstone/internal/models"
	"github.com/inkstone/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthServiceTest(t *testing.T) (*AuthService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:auth_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Session{}, &models.UserLoginLog{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	cfg := testTokenConfig()
	cfg.Security = config.SecurityConfig{
		PasswordPolicy: config.PasswordPolicyConfig{MinLength: 8},
	}
	svc := NewAuthService(cfg,
		NewTokenService(cfg),
		repository.NewUserRepository(db),
		repository.NewSessionRepository(db),
		repository.NewUserLoginLogRepository(db))
	return svc, db
}

func TestRegisterAndLoginFlow(t *testing.T) {
	svc, db := setupAuthServiceTest(t)
	meta := ClientMeta{IP: "10.0.0.1", UserAgent: "test-agent"}

	user, err := svc.Register("New.User@Example.com", "Sup3rSecret!", "New User")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.Email != "new.user@example.com" {
		t.Fatalf("email not normalized: %s", user.Email)
	}
	// Redis 未启用时注册即视为已验证
	if user.EmailVerifiedAt == nil {
		t.Fatal("expected email auto-verified without redis")
	}

	if _, err := svc.Register("new.user@example.com", "Sup3rSecret!", ""); err != ErrEmailExists {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}

	loggedIn, pair, err := svc.Login("new.user@example.com", "Sup3rSecret!", meta)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Fatalf("unexpected user: %d", loggedIn.ID)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" || pair.Fingerprint == "" {
		t.Fatalf("incomplete token pair: %+v", pair)
	}

	var session models.Session
	if err := db.Where("session_id = ?", pair.SessionID).First(&session).Error; err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if session.UserID != user.ID || !session.Active {
		t.Fatalf("unexpected session: %+v", session)
	}

	var successLogs int64
	if err := db.Model(&models.UserLoginLog{}).
		Where("user_id = ? AND status = ?", user.ID, constants.LoginLogStatusSuccess).
		Count(&successLogs).Error; err != nil {
		t.Fatalf("count login logs failed: %v", err)
	}
	if successLogs != 1 {
		t.Fatalf("expected 1 success login log, got %d", successLogs)
	}
}

func TestLoginFailuresAreAudited(t *testing.T) {
	svc, db := setupAuthServiceTest(t)
	meta := ClientMeta{IP: "10.0.0.1"}

	if _, err := svc.Register("audit@example.com", "Sup3rSecret!", ""); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if _, _, err := svc.Login("missing@example.com", "whatever1", meta); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
	if _, _, err := svc.Login("audit@example.com", "wrong-password", meta); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for bad password, got %v", err)
	}

	var reasons []string
	if err := db.Model(&models.UserLoginLog{}).
		Where("status = ?", constants.LoginLogStatusFailed).
		Order("id asc").
		Pluck("fail_reason", &reasons).Error; err != nil {
		t.Fatalf("load fail reasons failed: %v", err)
	}
	if len(reasons) != 2 || reasons[0] != "user_not_found" || reasons[1] != "invalid_password" {
		t.Fatalf("unexpected fail reasons: %v", reasons)
	}
}

func TestLoginDisabledUserRejected(t *testing.T) {
	svc, db := setupAuthServiceTest(t)

	if _, err := svc.Register("disabled@example.com", "Sup3rSecret!", ""); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := db.Model(&models.User{}).
		Where("email = ?", "disabled@example.com").
		Update("status", constants.UserStatusDisabled).Error; err != nil {
		t.Fatalf("disable user failed: %v", err)
	}

	if _, _, err := svc.Login("disabled@example.com", "Sup3rSecret!", ClientMeta{}); err != ErrUserDisabled {
		t.Fatalf("expected ErrUserDisabled, got %v", err)
	}
}

func TestRefreshRotatesTokensAndExtendsSession(t *testing.T) {
	svc, db := setupAuthServiceTest(t)
	meta := ClientMeta{IP: "10.0.0.1"}

	if _, err := svc.Register("refresh@example.com", "Sup3rSecret!", ""); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	_, pair, err := svc.Login("refresh@example.com", "Sup3rSecret!", meta)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	user, refreshed, err := svc.Refresh(pair.RefreshToken, pair.Fingerprint, meta)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if user == nil || refreshed.SessionID != pair.SessionID {
		t.Fatalf("session identity must survive refresh: %+v", refreshed)
	}
	if refreshed.Fingerprint != pair.Fingerprint {
		t.Fatal("fingerprint must survive refresh")
	}
	if refreshed.AccessToken == "" || refreshed.RefreshToken == "" {
		t.Fatal("expected new token pair")
	}

	var session models.Session
	if err := db.Where("session_id = ?", pair.SessionID).First(&session).Error; err != nil {
		t.Fatalf("load session failed: %v", err)
	}
	if !session.ExpiresAt.After(time.Now().Add(167 * time.Hour)) {
		t.Fatalf("expected session expiry extended, got %v", session.ExpiresAt)
	}
}

func TestRefreshRejectsFingerprintMismatch(t *testing.T) {
	svc, _ := setupAuthServiceTest(t)
	meta := ClientMeta{}

	if _, err := svc.Register("fpmm@example.com", "Sup3rSecret!", ""); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	_, pair, err := svc.Login("fpmm@example.com", "Sup3rSecret!", meta)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, _, err := svc.Refresh(pair.RefreshToken, "stolen-fp", meta); err != ErrRefreshInvalid {
		t.Fatalf("expected ErrRefreshInvalid, got %v", err)
	}
	if _, _, err := svc.Refresh("garbage-token", pair.Fingerprint, meta); err != ErrRefreshInvalid {
		t.Fatalf("expected ErrRefreshInvalid for garbage token, got %v", err)
	}
}

func TestLogoutDeactivatesSessionAndBlocksRefresh(t *testing.T) {
	svc, db := setupAuthServiceTest(t)
	meta := ClientMeta{}

	if _, err := svc.Register("logout@example.com", "Sup3rSecret!", ""); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	_, pair, err := svc.Login("logout@example.com", "Sup3rSecret!", meta)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if err := svc.Logout(pair.RefreshToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	var session models.Session
	if err := db.Where("session_id = ?", pair.SessionID).First(&session).Error; err != nil {
		t.Fatalf("load session failed: %v", err)
	}
	if session.Active {
		t.Fatal("session must be deactivated after logout")
	}

	if _, _, err := svc.Refresh(pair.RefreshToken, pair.Fingerprint, meta); err != ErrRefreshInvalid {
		t.Fatalf("expected ErrRefreshInvalid after logout, got %v", err)
	}

	// 无效令牌登出视为幂等成功
	if err := svc.Logout("not-a-token"); err != nil {
		t.Fatalf("logout with invalid token must be a no-op, got %v", err)
	}
}

func TestDefaultAdminBootstrapCanLogin(t *testing.T) {
	svc, db := setupAuthServiceTest(t)

	prevDB := models.DB
	models.DB = db
	defer func() { models.DB = prevDB }()

	if err := models.InitDefaultAdmin("", ""); err != nil {
		t.Fatalf("init default admin failed: %v", err)
	}

	admin, pair, err := svc.Login("admin@inkstone.local", "admin123", ClientMeta{IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("default admin login failed: %v", err)
	}
	if admin.EmailVerifiedAt == nil {
		t.Fatal("default admin must be created verified")
	}
	hasAdminRole := false
	for _, role := range admin.RoleList() {
		if role == constants.RoleAdmin {
			hasAdminRole = true
		}
	}
	if !hasAdminRole {
		t.Fatalf("expected admin role, got %v", admin.RoleList())
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("incomplete token pair: %+v", pair)
	}
}

func setupTestRedis(t *testing.T) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("parse redis port failed: %v", err)
	}
	if err := cache.InitRedis(&config.RedisConfig{
		Enabled: true,
		Host:    mr.Host(),
		Port:    port,
		Prefix:  fmt.Sprintf("test_%d", time.Now().UnixNano()),
	}); err != nil {
		t.Fatalf("init redis failed: %v", err)
	}
	t.Cleanup(func() {
		_ = cache.InitRedis(&config.RedisConfig{Enabled: false})
	})
}

func TestVerifyEmailFlowWithCache(t *testing.T) {
	svc, _ := setupAuthServiceTest(t)
	setupTestRedis(t)

	user, err := svc.Register("pending@example.com", "Sup3rSecret!", "")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.EmailVerifiedAt != nil {
		t.Fatal("expected pending verification with cache enabled")
	}

	if _, _, err := svc.Login("pending@example.com", "Sup3rSecret!", ClientMeta{}); err != ErrEmailNotVerified {
		t.Fatalf("expected ErrEmailNotVerified before verify, got %v", err)
	}

	// 注册发码 60 秒内拒绝重发
	if _, err := svc.ResendVerifyCode("pending@example.com"); err != ErrVerifyCodeTooFrequent {
		t.Fatalf("expected ErrVerifyCodeTooFrequent, got %v", err)
	}

	code, hit, err := cache.GetVerifyCode(context.Background(), "pending@example.com")
	if err != nil || !hit {
		t.Fatalf("verify code must be stored: hit=%v err=%v", hit, err)
	}

	wrong := "000000"
	if wrong == code {
		wrong = "111111"
	}
	if _, err := svc.VerifyEmail("pending@example.com", wrong); err != ErrVerifyCodeInvalid {
		t.Fatalf("expected ErrVerifyCodeInvalid, got %v", err)
	}

	verified, err := svc.VerifyEmail("pending@example.com", code)
	if err != nil {
		t.Fatalf("verify email failed: %v", err)
	}
	if verified.EmailVerifiedAt == nil {
		t.Fatal("expected email verified")
	}

	// 验证后验证码作废，登录放行
	if _, hit, _ := cache.GetVerifyCode(context.Background(), "pending@example.com"); hit {
		t.Fatal("verify code must be deleted after use")
	}
	if _, pair, err := svc.Login("pending@example.com", "Sup3rSecret!", ClientMeta{}); err != nil || pair.AccessToken == "" {
		t.Fatalf("login after verify failed: pair=%+v err=%v", pair, err)
	}
}

func TestRegisterRejectsWeakInput(t *testing.T) {
	svc, _ := setupAuthServiceTest(t)

	if _, err := svc.Register("not-an-email", "Sup3rSecret!", ""); err != ErrInvalidEmail {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := svc.Register("weak@example.com", "short", ""); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected weak password error, got %v", err)
	}
}
