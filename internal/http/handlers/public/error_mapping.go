package public

import (
	"errors"

	"github.com/inkstone/internal/http/handlers/shared"
	"github.com/inkstone/internal/http/response"
	"github.com/inkstone/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			shared.RespondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	shared.RespondError(c, fallbackCode, fallbackMsg, err)
}

var authErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidEmail, code: response.CodeBadRequest, msg: "邮箱格式不正确"},
	{target: service.ErrEmailExists, code: response.CodeBadRequest, msg: "邮箱已被注册"},
	{target: service.ErrWeakPassword, code: response.CodeBadRequest, msg: "密码强度不足"},
	{target: service.ErrInvalidCredentials, code: response.CodeUnauthorized, msg: "邮箱或密码错误"},
	{target: service.ErrUserDisabled, code: response.CodeForbidden, msg: "账户已被禁用"},
	{target: service.ErrEmailNotVerified, code: response.CodeForbidden, msg: "邮箱未验证"},
	{target: service.ErrVerifyCodeInvalid, code: response.CodeBadRequest, msg: "验证码错误"},
	{target: service.ErrVerifyCodeExpired, code: response.CodeBadRequest, msg: "验证码已过期"},
	{target: service.ErrVerifyCodeTooFrequent, code: response.CodeTooManyRequests, msg: "验证码发送过于频繁"},
	{target: service.ErrCaptchaRequired, code: response.CodeBadRequest, msg: "请先完成图形验证码"},
	{target: service.ErrCaptchaInvalid, code: response.CodeBadRequest, msg: "图形验证码错误"},
	{target: service.ErrOAuthProviderDisabled, code: response.CodeBadRequest, msg: "社交登录渠道未启用"},
	{target: service.ErrOAuthExchangeFailed, code: response.CodeBadRequest, msg: "社交登录校验失败"},
	{target: service.ErrRefreshInvalid, code: response.CodeUnauthorized, msg: "登录状态已失效"},
	{target: service.ErrNotFound, code: response.CodeNotFound, msg: "用户不存在"},
}

var postErrorRules = []mappedHandlerError{
	{target: service.ErrPostNotFound, code: response.CodeNotFound, msg: "文章不存在"},
	{target: service.ErrAlreadyLiked, code: response.CodeConflict, msg: "已经点过赞"},
	{target: service.ErrNotLiked, code: response.CodeConflict, msg: "尚未点赞"},
	{target: service.ErrNotFound, code: response.CodeNotFound, msg: "文章不存在"},
}

var notificationErrorRules = []mappedHandlerError{
	{target: service.ErrNotFound, code: response.CodeNotFound, msg: "通知不存在"},
}

func respondAuthError(c *gin.Context, err error) {
	respondWithMappedError(c, err, authErrorRules, response.CodeInternal, "认证处理失败")
}

func respondPostError(c *gin.Context, err error) {
	respondWithMappedError(c, err, postErrorRules, response.CodeInternal, "文章处理失败")
}

func respondNotificationError(c *gin.Context, err error) {
	respondWithMappedError(c, err, notificationErrorRules, response.CodeInternal, "通知处理失败")
}
