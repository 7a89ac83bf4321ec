package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/inkstone/internal/cache"
	"github.com/inkstone/internal/config"
	"github.com/inkstone/internal/constants"
	"github.com/inkstone/internal/logger"
	"github.com/inkstone/internal/models"
	"github.com/inkstone/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AuthService 认证服务：注册、登录、令牌刷新与会话生命周期。
type AuthService struct {
	cfg          *config.Config
	tokens       *TokenService
	userRepo     repository.UserRepository
	sessionRepo  repository.SessionRepository
	loginLogRepo repository.UserLoginLogRepository
}

// NewAuthService 创建认证服务
func NewAuthService(cfg *config.Config, tokens *TokenService, userRepo repository.UserRepository, sessionRepo repository.SessionRepository, loginLogRepo repository.UserLoginLogRepository) *AuthService {
	return &AuthService{
		cfg:          cfg,
		tokens:       tokens,
		userRepo:     userRepo,
		sessionRepo:  sessionRepo,
		loginLogRepo: loginLogRepo,
	}
}

// ClientMeta 请求端信息，用于会话记录与登录日志
type ClientMeta struct {
	IP         string
	UserAgent  string
	DeviceInfo string
	RequestID  string
}

// TokenPair 一次签发的令牌组合。
// 访问令牌经 Authorization 头下发，刷新令牌与指纹经 httpOnly Cookie 下发。
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Fingerprint      string
	SessionID        string
}

// Register 用户注册。
// Redis 可用时发放邮箱验证码（记入日志，等待 verify 接口确认）；
// 未配置验证渠道时直接标记邮箱已验证。
func (s *AuthService) Register(email, password, displayName string) (*models.User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(s.cfg.Security.PasswordPolicy, password); err != nil {
		return nil, err
	}

	exist, err := s.userRepo.GetByEmail(normalized)
	if err != nil {
		return nil, err
	}
	if exist != nil {
		return nil, ErrEmailExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &models.User{
		Email:        normalized,
		PasswordHash: string(hashed),
		DisplayName:  resolveDisplayName(displayName, normalized),
		Roles:        constants.RoleUser,
		Status:       constants.UserStatusActive,
		LoginType:    constants.LoginTypeLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !cache.Enabled() {
		user.EmailVerifiedAt = &now
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	if cache.Enabled() {
		if _, err := s.sendVerifyCode(context.Background(), normalized); err != nil {
			logger.Warnw("verify_code_send_failed", "email", normalized, "error", err)
		}
	}
	return user, nil
}

// ResendVerifyCode 重新发送邮箱验证码，返回本次发放的验证码。
// 邮箱已验证时不再发放，返回空验证码。
func (s *AuthService) ResendVerifyCode(email string) (string, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}
	user, err := s.userRepo.GetByEmail(normalized)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrNotFound
	}
	if user.EmailVerifiedAt != nil {
		return "", nil
	}
	return s.sendVerifyCode(context.Background(), normalized)
}

// VerifyEmail 校验邮箱验证码并标记邮箱已验证
func (s *AuthService) VerifyEmail(email, code string) (*models.User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByEmail(normalized)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	if user.EmailVerifiedAt != nil {
		return user, nil
	}

	ctx := context.Background()
	stored, hit, err := cache.GetVerifyCode(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if !hit {
		return nil, ErrVerifyCodeExpired
	}
	if strings.TrimSpace(stored) != strings.TrimSpace(code) {
		return nil, ErrVerifyCodeInvalid
	}

	now := time.Now()
	user.EmailVerifiedAt = &now
	user.UpdatedAt = now
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	_ = cache.DelVerifyCode(ctx, normalized)
	return user, nil
}

// Login 本地账号登录，成功后创建会话并签发令牌
func (s *AuthService) Login(email, password string, meta ClientMeta) (*models.User, *TokenPair, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.userRepo.GetByEmail(normalized)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		s.recordLogin(0, normalized, constants.LoginTypeLocal, meta, "user_not_found")
		return nil, nil, ErrInvalidCredentials
	}
	if user.Status != constants.UserStatusActive {
		s.recordLogin(user.ID, normalized, constants.LoginTypeLocal, meta, "user_disabled")
		return nil, nil, ErrUserDisabled
	}
	if user.EmailVerifiedAt == nil {
		s.recordLogin(user.ID, normalized, constants.LoginTypeLocal, meta, "email_not_verified")
		return nil, nil, ErrEmailNotVerified
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.recordLogin(user.ID, normalized, constants.LoginTypeLocal, meta, "invalid_password")
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issueSession(user, constants.LoginTypeLocal, meta)
	if err != nil {
		return nil, nil, err
	}
	s.recordLogin(user.ID, normalized, constants.LoginTypeLocal, meta, "")
	return user, pair, nil
}

// SocialLogin 社交账号登录，账号不存在时按外部资料创建
func (s *AuthService) SocialLogin(loginType string, profile *SocialProfile, meta ClientMeta) (*models.User, *TokenPair, error) {
	if profile == nil || profile.SocialID == "" {
		return nil, nil, ErrOAuthExchangeFailed
	}

	user, err := s.userRepo.GetBySocialID(loginType, profile.SocialID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil && profile.Email != "" {
		// 同邮箱的本地账号视为同一用户，绑定社交身份
		if normalized, emailErr := normalizeEmail(profile.Email); emailErr == nil {
			user, err = s.userRepo.GetByEmail(normalized)
			if err != nil {
				return nil, nil, err
			}
			if user != nil && user.SocialID == "" {
				user.SocialID = profile.SocialID
			}
		}
	}

	now := time.Now()
	if user == nil {
		email := strings.ToLower(strings.TrimSpace(profile.Email))
		if email == "" {
			email = fmt.Sprintf("%s_%s@social.invalid", loginType, profile.SocialID)
		}
		user = &models.User{
			Email:           email,
			DisplayName:     resolveDisplayName(profile.DisplayName, email),
			Roles:           constants.RoleUser,
			Status:          constants.UserStatusActive,
			LoginType:       loginType,
			SocialID:        profile.SocialID,
			EmailVerifiedAt: &now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.userRepo.Create(user); err != nil {
			return nil, nil, err
		}
	}
	if user.Status != constants.UserStatusActive {
		s.recordLogin(user.ID, user.Email, loginType, meta, "user_disabled")
		return nil, nil, ErrUserDisabled
	}

	pair, err := s.issueSession(user, loginType, meta)
	if err != nil {
		return nil, nil, err
	}
	s.recordLogin(user.ID, user.Email, loginType, meta, "")
	return user, pair, nil
}

// Refresh 刷新令牌并顺延会话。
// 指纹 Cookie 必须与刷新令牌内的指纹一致，会话必须处于活跃且未过期状态。
// 任一条件不满足时返回 ErrNotFound 级别之外的刷新失败，HTTP 层清除 Cookie 并返回 401。
func (s *AuthService) Refresh(refreshToken, fingerprint string, meta ClientMeta) (*models.User, *TokenPair, error) {
	claims := s.tokens.VerifyRefresh(refreshToken)
	if claims == nil {
		return nil, nil, ErrRefreshInvalid
	}
	if fingerprint == "" || fingerprint != claims.Fingerprint {
		return nil, nil, ErrRefreshInvalid
	}

	session, err := s.sessionRepo.GetBySessionID(claims.SessionID)
	if err != nil {
		return nil, nil, err
	}
	now := time.Now()
	if session == nil || !session.Active || session.Expired(now) {
		return nil, nil, ErrRefreshInvalid
	}
	if session.Fingerprint != claims.Fingerprint || session.UserID != claims.UserID {
		return nil, nil, ErrRefreshInvalid
	}

	user, err := s.userRepo.GetByID(claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil || user.Status != constants.UserStatusActive {
		return nil, nil, ErrRefreshInvalid
	}

	payload := TokenPayload{
		UserID:      user.ID,
		Email:       user.Email,
		Roles:       user.RoleList(),
		SessionID:   claims.SessionID,
		Fingerprint: claims.Fingerprint,
	}
	accessToken, accessExp, err := s.tokens.IssueAccess(payload)
	if err != nil {
		return nil, nil, err
	}
	newRefresh, refreshExp, err := s.tokens.IssueRefresh(payload)
	if err != nil {
		return nil, nil, err
	}

	if err := s.sessionRepo.Touch(claims.SessionID, now, refreshExp); err != nil {
		return nil, nil, err
	}

	return user, &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     newRefresh,
		RefreshExpiresAt: refreshExp,
		Fingerprint:      claims.Fingerprint,
		SessionID:        claims.SessionID,
	}, nil
}

// Logout 登出：停用会话并清除鉴权快照。刷新令牌无效时视为已登出。
func (s *AuthService) Logout(refreshToken string) error {
	claims := s.tokens.VerifyRefresh(refreshToken)
	if claims == nil {
		return nil
	}
	if err := s.sessionRepo.Deactivate(claims.SessionID); err != nil {
		return err
	}
	return cache.DelUserAuthState(context.Background(), claims.UserID)
}

// Me 获取当前用户信息
func (s *AuthService) Me(userID uint) (*models.User, error) {
	if userID == 0 {
		return nil, ErrNotFound
	}
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// issueSession 创建会话并签发令牌组合
func (s *AuthService) issueSession(user *models.User, loginType string, meta ClientMeta) (*TokenPair, error) {
	now := time.Now()
	sessionID := uuid.NewString()
	fingerprint := uuid.NewString()

	payload := TokenPayload{
		UserID:      user.ID,
		Email:       user.Email,
		Roles:       user.RoleList(),
		SessionID:   sessionID,
		Fingerprint: fingerprint,
	}
	accessToken, accessExp, err := s.tokens.IssueAccess(payload)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshExp, err := s.tokens.IssueRefresh(payload)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		SessionID:      sessionID,
		UserID:         user.ID,
		Fingerprint:    fingerprint,
		DeviceInfo:     meta.DeviceInfo,
		IPAddress:      meta.IP,
		UserAgent:      meta.UserAgent,
		LoginType:      loginType,
		Active:         true,
		LastActivityAt: now,
		ExpiresAt:      refreshExp,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}

	user.LastLoginAt = &now
	user.UpdatedAt = now
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	_ = cache.SetUserAuthState(context.Background(), cache.BuildUserAuthState(user))

	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
		Fingerprint:      fingerprint,
		SessionID:        sessionID,
	}, nil
}

// recordLogin 写入登录日志，failReason 为空表示成功
func (s *AuthService) recordLogin(userID uint, email, loginType string, meta ClientMeta, failReason string) {
	if s.loginLogRepo == nil {
		return
	}
	status := constants.LoginLogStatusSuccess
	if failReason != "" {
		status = constants.LoginLogStatusFailed
	}
	entry := &models.UserLoginLog{
		UserID:      userID,
		Email:       email,
		Status:      status,
		FailReason:  failReason,
		ClientIP:    meta.IP,
		UserAgent:   meta.UserAgent,
		LoginSource: loginType,
		RequestID:   meta.RequestID,
		CreatedAt:   time.Now(),
	}
	if err := s.loginLogRepo.Create(entry); err != nil {
		logger.Warnw("login_log_write_failed", "email", email, "error", err)
	}
}

// sendVerifyCode 生成并暂存邮箱验证码，返回验证码本身。
// 验证码明文只在 debug 日志中出现，release 模式不落日志。
func (s *AuthService) sendVerifyCode(ctx context.Context, email string) (string, error) {
	code, err := randomNumericCode(6)
	if err != nil {
		return "", err
	}
	allowed, err := cache.SetVerifyCode(ctx, email, code)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", ErrVerifyCodeTooFrequent
	}
	logger.Infow("verify_code_issued", "email", email)
	logger.Debugw("verify_code_value", "email", email, "code", code)
	return code, nil
}

func normalizeEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return "", ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(normalized); err != nil {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}

func resolveDisplayName(name, email string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	parts := strings.SplitN(email, "@", 2)
	if len(parts) == 2 && strings.TrimSpace(parts[0]) != "" {
		return strings.TrimSpace(parts[0])
	}
	return email
}

func randomNumericCode(length int) (string, error) {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteString(fmt.Sprintf("%d", n.Int64()))
	}
	return b.String(), nil
}
