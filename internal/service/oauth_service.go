package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/inkstone/internal/config"
	"github.com/inkstone/internal/constants"
	"github.com/inkstone/internal/logger"

	"github.com/golang-jwt/jwt/v5"
)

// SocialProfile 社交账号外部资料
type SocialProfile struct {
	SocialID    string
	Email       string
	DisplayName string
}

// OAuthService 社交登录授权码换取用户资料。
// 内部使用两套 HTTP 客户端：令牌交换走短超时，资料拉取走长超时。
type OAuthService struct {
	cfg      *config.Config
	internal *http.Client
	external *http.Client
}

// NewOAuthService 创建社交登录服务
func NewOAuthService(cfg *config.Config) *OAuthService {
	internalTimeout := time.Duration(cfg.OAuth.InternalTimeoutMS) * time.Millisecond
	if internalTimeout <= 0 {
		internalTimeout = 5 * time.Second
	}
	externalTimeout := time.Duration(cfg.OAuth.ExternalTimeoutMS) * time.Millisecond
	if externalTimeout <= 0 {
		externalTimeout = 10 * time.Second
	}
	return &OAuthService{
		cfg:      cfg,
		internal: &http.Client{Timeout: internalTimeout},
		external: &http.Client{Timeout: externalTimeout},
	}
}

// Exchange 用授权码换取社交账号资料
func (s *OAuthService) Exchange(ctx context.Context, provider, code string) (*SocialProfile, error) {
	providers := s.cfg.OAuth.Providers()
	pcfg, ok := providers[provider]
	if !ok || !pcfg.Enabled {
		return nil, ErrOAuthProviderDisabled
	}
	if strings.TrimSpace(code) == "" {
		return nil, ErrOAuthExchangeFailed
	}

	switch provider {
	case constants.LoginTypeKakao:
		return s.exchangeKakao(ctx, pcfg, code)
	case constants.LoginTypeGoogle:
		return s.exchangeGoogle(ctx, pcfg, code)
	case constants.LoginTypeNaver:
		return s.exchangeNaver(ctx, pcfg, code)
	case constants.LoginTypeApple:
		return s.exchangeApple(ctx, pcfg, code)
	default:
		return nil, ErrOAuthProviderDisabled
	}
}

func (s *OAuthService) exchangeKakao(ctx context.Context, cfg config.OAuthProviderConfig, code string) (*SocialProfile, error) {
	accessToken, err := s.fetchAccessToken(ctx, "https://kauth.kakao.com/oauth/token", cfg, code)
	if err != nil {
		return nil, err
	}

	var body struct {
		ID           int64 `json:"id"`
		KakaoAccount struct {
			Email   string `json:"email"`
			Profile struct {
				Nickname string `json:"nickname"`
			} `json:"profile"`
		} `json:"kakao_account"`
	}
	if err := s.fetchProfile(ctx, "https://kapi.kakao.com/v2/user/me", accessToken, &body); err != nil {
		return nil, err
	}
	if body.ID == 0 {
		return nil, ErrOAuthExchangeFailed
	}
	return &SocialProfile{
		SocialID:    fmt.Sprintf("%d", body.ID),
		Email:       body.KakaoAccount.Email,
		DisplayName: body.KakaoAccount.Profile.Nickname,
	}, nil
}

func (s *OAuthService) exchangeGoogle(ctx context.Context, cfg config.OAuthProviderConfig, code string) (*SocialProfile, error) {
	accessToken, err := s.fetchAccessToken(ctx, "https://oauth2.googleapis.com/token", cfg, code)
	if err != nil {
		return nil, err
	}

	var body struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := s.fetchProfile(ctx, "https://openidconnect.googleapis.com/v1/userinfo", accessToken, &body); err != nil {
		return nil, err
	}
	if body.Sub == "" {
		return nil, ErrOAuthExchangeFailed
	}
	return &SocialProfile{SocialID: body.Sub, Email: body.Email, DisplayName: body.Name}, nil
}

func (s *OAuthService) exchangeNaver(ctx context.Context, cfg config.OAuthProviderConfig, code string) (*SocialProfile, error) {
	accessToken, err := s.fetchAccessToken(ctx, "https://nid.naver.com/oauth2.0/token", cfg, code)
	if err != nil {
		return nil, err
	}

	var body struct {
		Response struct {
			ID       string `json:"id"`
			Email    string `json:"email"`
			Nickname string `json:"nickname"`
		} `json:"response"`
	}
	if err := s.fetchProfile(ctx, "https://openapi.naver.com/v1/nid/me", accessToken, &body); err != nil {
		return nil, err
	}
	if body.Response.ID == "" {
		return nil, ErrOAuthExchangeFailed
	}
	return &SocialProfile{
		SocialID:    body.Response.ID,
		Email:       body.Response.Email,
		DisplayName: body.Response.Nickname,
	}, nil
}

// exchangeApple Apple 不提供资料接口，身份信息取自令牌响应中的 id_token。
// id_token 由服务端直连 Apple 获得，此处只解析不验签。
func (s *OAuthService) exchangeApple(ctx context.Context, cfg config.OAuthProviderConfig, code string) (*SocialProfile, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", cfg.ClientID)
	form.Set("client_secret", cfg.ClientSecret)
	form.Set("redirect_uri", cfg.RedirectURI)
	form.Set("code", code)

	var body struct {
		IDToken string `json:"id_token"`
	}
	if err := s.postForm(ctx, "https://appleid.apple.com/auth/token", form, &body); err != nil {
		return nil, err
	}
	if body.IDToken == "" {
		return nil, ErrOAuthExchangeFailed
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(body.IDToken, claims); err != nil {
		return nil, ErrOAuthExchangeFailed
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrOAuthExchangeFailed
	}
	email, _ := claims["email"].(string)
	return &SocialProfile{SocialID: sub, Email: email}, nil
}

// fetchAccessToken 授权码换取访问令牌（各家令牌接口同为 OAuth2 表单协议）
func (s *OAuthService) fetchAccessToken(ctx context.Context, endpoint string, cfg config.OAuthProviderConfig, code string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", cfg.ClientID)
	form.Set("client_secret", cfg.ClientSecret)
	form.Set("redirect_uri", cfg.RedirectURI)
	form.Set("code", code)

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := s.postForm(ctx, endpoint, form, &body); err != nil {
		return "", err
	}
	if body.AccessToken == "" {
		return "", ErrOAuthExchangeFailed
	}
	return body.AccessToken, nil
}

func (s *OAuthService) postForm(ctx context.Context, endpoint string, form url.Values, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.internal.Do(req)
	if err != nil {
		logger.Warnw("oauth_token_request_failed", "endpoint", endpoint, "error", err)
		return ErrOAuthExchangeFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warnw("oauth_token_request_rejected", "endpoint", endpoint, "status", resp.StatusCode)
		return ErrOAuthExchangeFailed
	}
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ErrOAuthExchangeFailed
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return ErrOAuthExchangeFailed
	}
	return nil
}

func (s *OAuthService) fetchProfile(ctx context.Context, endpoint, accessToken string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.external.Do(req)
	if err != nil {
		logger.Warnw("oauth_profile_request_failed", "endpoint", endpoint, "error", err)
		return ErrOAuthExchangeFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warnw("oauth_profile_request_rejected", "endpoint", endpoint, "status", resp.StatusCode)
		return ErrOAuthExchangeFailed
	}
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ErrOAuthExchangeFailed
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return ErrOAuthExchangeFailed
	}
	return nil
}
