package service

import (
	"strings"
	"time"

	"github.com/inkstone/internal/config"

	"github.com/mojocn/base64Captcha"
)

// CaptchaImageChallenge 图片验证码挑战
type CaptchaImageChallenge struct {
	CaptchaID   string `json:"captcha_id"`
	ImageBase64 string `json:"image_base64"`
}

// CaptchaService 后台登录图片验证码
type CaptchaService struct {
	cfg   config.CaptchaConfig
	store base64Captcha.Store
}

// NewCaptchaService 创建验证码服务
func NewCaptchaService(cfg config.CaptchaConfig) *CaptchaService {
	expire := time.Duration(cfg.ExpireSeconds) * time.Second
	if expire <= 0 {
		expire = 5 * time.Minute
	}
	return &CaptchaService{
		cfg:   cfg,
		store: base64Captcha.NewMemoryStore(10240, expire),
	}
}

// Enabled 验证码是否启用
func (s *CaptchaService) Enabled() bool {
	return s != nil && s.cfg.Enabled
}

// GenerateImageChallenge 生成图片验证码
func (s *CaptchaService) GenerateImageChallenge() (*CaptchaImageChallenge, error) {
	length := s.cfg.Length
	if length < 4 || length > 8 {
		length = 4
	}
	width := s.cfg.Width
	if width <= 0 {
		width = 240
	}
	height := s.cfg.Height
	if height <= 0 {
		height = 80
	}
	noiseCount := s.cfg.NoiseCount
	if noiseCount < 0 {
		noiseCount = 0
	}

	driver := base64Captcha.NewDriverString(
		height,
		width,
		noiseCount,
		base64Captcha.OptionShowHollowLine,
		length,
		"0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ",
		nil,
		base64Captcha.DefaultEmbeddedFonts,
		nil,
	)
	captcha := base64Captcha.NewCaptcha(driver, s.store)
	id, b64s, _, err := captcha.Generate()
	if err != nil {
		return nil, err
	}
	return &CaptchaImageChallenge{
		CaptchaID:   strings.TrimSpace(id),
		ImageBase64: strings.TrimSpace(b64s),
	}, nil
}

// Verify 校验验证码。未启用时直接放行。
func (s *CaptchaService) Verify(captchaID, captchaCode string) error {
	if !s.Enabled() {
		return nil
	}
	captchaID = strings.TrimSpace(captchaID)
	captchaCode = strings.TrimSpace(captchaCode)
	if captchaID == "" || captchaCode == "" {
		return ErrCaptchaRequired
	}
	if !s.store.Verify(captchaID, captchaCode, true) {
		return ErrCaptchaInvalid
	}
	return nil
}
