package service

import "errors"

// 服务层统一哨兵错误，HTTP 层据此映射状态码。
var (
	ErrNotFound           = errors.New("资源不存在")
	ErrInvalidEmail       = errors.New("邮箱格式不正确")
	ErrEmailExists        = errors.New("邮箱已被注册")
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrUserDisabled       = errors.New("账号已被禁用")
	ErrEmailNotVerified   = errors.New("邮箱未验证")
	ErrInvalidPassword    = errors.New("原密码错误")

	ErrVerifyCodeInvalid     = errors.New("验证码不正确")
	ErrVerifyCodeExpired     = errors.New("验证码已过期")
	ErrVerifyCodeTooFrequent = errors.New("验证码发送过于频繁")

	ErrInvalidAuthType    = errors.New("不支持的认证类型")
	ErrRefreshInvalid     = errors.New("刷新令牌无效")
	ErrInvalidCleanupType = errors.New("不支持的清理类型")
	ErrSessionNotFound    = errors.New("会话不存在")

	ErrSlugExists      = errors.New("slug 已被占用")
	ErrInvalidPostType = errors.New("不支持的文章类型")
	ErrPostNotFound    = errors.New("文章不存在")
	ErrAlreadyLiked    = errors.New("已点赞")
	ErrNotLiked        = errors.New("尚未点赞")

	ErrCaptchaRequired = errors.New("需要验证码")
	ErrCaptchaInvalid  = errors.New("验证码错误")

	ErrOAuthProviderDisabled = errors.New("社交登录渠道未启用")
	ErrOAuthExchangeFailed   = errors.New("社交登录授权失败")
)
