package public

import (
	"net/http"
	"strings"

	"github.com/inkstone/internal/constants"
	"github.com/inkstone/internal/http/handlers/shared"
	"github.com/inkstone/internal/http/response"
	"github.com/inkstone/internal/models"
	"github.com/inkstone/internal/service"

	"github.com/gin-gonic/gin"
)

// socialProviders /auth/:type 中可以直接作为类型使用的社交渠道
var socialProviders = map[string]struct{}{
	constants.LoginTypeKakao:  {},
	constants.LoginTypeGoogle: {},
	constants.LoginTypeNaver:  {},
	constants.LoginTypeApple:  {},
}

// AuthDispatch 统一认证入口 /api/v1/auth/:type。
// type 取值 login/register/verify/logout/me/refresh/resend/social，
// 或直接使用社交渠道名（kakao/google/naver/apple）。未知类型返回 400。
func (h *Handler) AuthDispatch(c *gin.Context) {
	authType := strings.ToLower(strings.TrimSpace(c.Param("type")))

	if _, ok := socialProviders[authType]; ok {
		h.handleSocialLogin(c, authType)
		return
	}

	switch authType {
	case constants.AuthTypeLogin:
		h.handleLogin(c)
	case constants.AuthTypeRegister:
		h.handleRegister(c)
	case constants.AuthTypeVerify:
		h.handleVerifyEmail(c)
	case constants.AuthTypeResend:
		h.handleResendVerifyCode(c)
	case constants.AuthTypeRefresh:
		h.handleRefresh(c)
	case constants.AuthTypeLogout:
		h.handleLogout(c)
	case constants.AuthTypeMe:
		h.handleMe(c)
	case constants.AuthTypeSocial:
		h.handleSocialLogin(c, "")
	default:
		shared.RespondError(c, response.CodeBadRequest, "InvalidType", nil)
	}
}

type loginRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	CaptchaID   string `json:"captcha_id"`
	CaptchaCode string `json:"captcha_code"`
}

func (h *Handler) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondError(c, response.CodeBadRequest, "参数不合法", nil)
		return
	}

	if err := h.CaptchaService.Verify(req.CaptchaID, req.CaptchaCode); err != nil {
		respondAuthError(c, err)
		return
	}

	user, pair, err := h.AuthService.Login(req.Email, req.Password, h.clientMeta(c))
	if err != nil {
		respondAuthError(c, err)
		return
	}

	h.setAuthCookies(c, pair)
	response.Success(c, gin.H{
		"user":         userView(user),
		"access_token": pair.AccessToken,
		"expires_at":   pair.AccessExpiresAt.Unix(),
	})
}

type registerRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

func (h *Handler) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondError(c, response.CodeBadRequest, "参数不合法", nil)
		return
	}

	user, err := h.AuthService.Register(req.Email, req.Password, req.DisplayName)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	response.Success(c, gin.H{
		"user":              userView(user),
		"verification_sent": user.EmailVerifiedAt == nil,
	})
}

type verifyEmailRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

func (h *Handler) handleVerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondError(c, response.CodeBadRequest, "参数不合法", nil)
		return
	}

	user, err := h.AuthService.VerifyEmail(req.Email, req.Code)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	response.Success(c, gin.H{"user": userView(user)})
}

type resendRequest struct {
	Email string `json:"email" binding:"required"`
}

// handleResendVerifyCode 重发邮箱验证码。
// 没有接入邮件投递渠道，非 release 模式下验证码直接随响应返回。
func (h *Handler) handleResendVerifyCode(c *gin.Context) {
	var req resendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondError(c, response.CodeBadRequest, "参数不合法", nil)
		return
	}

	code, err := h.AuthService.ResendVerifyCode(req.Email)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	data := gin.H{"sent": code != ""}
	if code != "" && h.Config.Server.Mode != "release" {
		data["verify_code"] = code
	}
	response.Success(c, data)
}

// handleRefresh 刷新令牌。刷新失败时清除认证 Cookie 并返回 401。
func (h *Handler) handleRefresh(c *gin.Context) {
	refreshToken := readCookie(c, constants.CookieRefreshToken)
	fingerprint := readCookie(c, constants.CookieFingerprint)

	user, pair, err := h.AuthService.Refresh(refreshToken, fingerprint, h.clientMeta(c))
	if err != nil {
		h.clearAuthCookies(c)
		response.Denied(c, 401, constants.DenyReasonTokenExpired)
		return
	}

	h.setAuthCookies(c, pair)
	response.Success(c, gin.H{
		"user":         userView(user),
		"access_token": pair.AccessToken,
		"expires_at":   pair.AccessExpiresAt.Unix(),
	})
}

func (h *Handler) handleLogout(c *gin.Context) {
	refreshToken := readCookie(c, constants.CookieRefreshToken)
	if err := h.AuthService.Logout(refreshToken); err != nil {
		shared.RequestLog(c).Warnw("logout_failed", "error", err)
	}
	h.clearAuthCookies(c)
	response.Success(c, nil)
}

// handleMe 查询当前登录用户，直接走鉴权状态机。
func (h *Handler) handleMe(c *gin.Context) {
	grant, denial := h.GuardService.Authorize(c.Request.Context(), h.guardInput(c), nil)
	if denial != nil {
		response.Denied(c, denial.Status, denial.Reason)
		return
	}

	user, err := h.AuthService.Me(grant.UserID)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	response.Success(c, gin.H{"user": userView(user)})
}

type socialLoginRequest struct {
	Provider string `json:"provider"`
	Code     string `json:"code" binding:"required"`
}

func (h *Handler) handleSocialLogin(c *gin.Context, provider string) {
	var req socialLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondError(c, response.CodeBadRequest, "参数不合法", nil)
		return
	}
	if provider == "" {
		provider = strings.ToLower(strings.TrimSpace(req.Provider))
	}
	if _, ok := socialProviders[provider]; !ok {
		shared.RespondError(c, response.CodeBadRequest, "InvalidType", nil)
		return
	}

	profile, err := h.OAuthService.Exchange(c.Request.Context(), provider, req.Code)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	user, pair, err := h.AuthService.SocialLogin(provider, profile, h.clientMeta(c))
	if err != nil {
		respondAuthError(c, err)
		return
	}

	h.setAuthCookies(c, pair)
	response.Success(c, gin.H{
		"user":         userView(user),
		"access_token": pair.AccessToken,
		"expires_at":   pair.AccessExpiresAt.Unix(),
	})
}

// setAuthCookies 下发认证 Cookie 并在响应头携带访问令牌。
// token 与 fp 为 httpOnly，auth 为前端可读的登录标记。
func (h *Handler) setAuthCookies(c *gin.Context, pair *service.TokenPair) {
	maxAge := int(h.TokenService.RefreshTTL().Seconds())
	secure := h.Config.Server.Mode == "release"

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(constants.CookieRefreshToken, pair.RefreshToken, maxAge, "/", "", secure, true)
	c.SetCookie(constants.CookieFingerprint, pair.Fingerprint, maxAge, "/", "", secure, true)
	c.SetCookie(constants.CookieAuthMarker, constants.CookieAuthMarkerValue, maxAge, "/", "", secure, false)
	c.Header("Authorization", "Bearer "+pair.AccessToken)
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	secure := h.Config.Server.Mode == "release"
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(constants.CookieRefreshToken, "", -1, "/", "", secure, true)
	c.SetCookie(constants.CookieFingerprint, "", -1, "/", "", secure, true)
	c.SetCookie(constants.CookieAuthMarker, "", -1, "/", "", secure, false)
}

func (h *Handler) clientMeta(c *gin.Context) service.ClientMeta {
	return service.ClientMeta{
		IP:         c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
		DeviceInfo: c.Request.UserAgent(),
		RequestID:  shared.GetRequestID(c),
	}
}

func (h *Handler) guardInput(c *gin.Context) service.GuardInput {
	return service.GuardInput{
		Bearer:            extractBearer(c),
		RefreshCookie:     readCookie(c, constants.CookieRefreshToken),
		FingerprintCookie: readCookie(c, constants.CookieFingerprint),
		ClientIP:          c.ClientIP(),
		UserAgent:         c.Request.UserAgent(),
	}
}

func userView(user *models.User) gin.H {
	if user == nil {
		return nil
	}
	return gin.H{
		"id":             user.ID,
		"email":          user.Email,
		"display_name":   user.DisplayName,
		"roles":          user.RoleList(),
		"status":         user.Status,
		"login_type":     user.LoginType,
		"email_verified": user.EmailVerifiedAt != nil,
		"last_login_at":  user.LastLoginAt,
		"created_at":     user.CreatedAt,
	}
}

func extractBearer(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func readCookie(c *gin.Context, name string) string {
	value, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return value
}
