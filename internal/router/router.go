package router

import (
	"fmt"
	"strings"

	"github.com/inkstone/internal/cache"
	"github.com/inkstone/internal/config"
	"github.com/inkstone/internal/constants"
	adminhandlers "github.com/inkstone/internal/http/handlers/admin"
	publichandlers "github.com/inkstone/internal/http/handlers/public"
	"github.com/inkstone/internal/logger"
	"github.com/inkstone/internal/provider"

	"github.com/gin-gonic/gin"
)

// authTypesRateLimited 需要走登录限流的认证类型
var authTypesRateLimited = map[string]struct{}{
	constants.AuthTypeLogin:    {},
	constants.AuthTypeRegister: {},
	constants.AuthTypeResend:   {},
	constants.AuthTypeSocial:   {},
	constants.LoginTypeKakao:   {},
	constants.LoginTypeGoogle:  {},
	constants.LoginTypeNaver:   {},
	constants.LoginTypeApple:   {},
}

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "ink"
	}
	redisClient := cache.Client()
	apiRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:api", redisPrefix),
		WindowSeconds: cfg.Security.APIRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.APIRateLimit.MaxRequests,
	}
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxRequests,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组（整体接口限流按 IP）
	apiV1 := r.Group("/api/v1")
	apiV1.Use(RateLimitMiddleware(redisClient, apiRule, KeyByIP))
	{
		// 公开接口
		apiV1.GET("/posts", publicHandler.GetPosts)
		apiV1.GET("/posts/:slug", publicHandler.GetPostBySlug)
		apiV1.GET("/captcha/image", publicHandler.GetImageCaptcha)

		// 统一认证入口，登录类请求附加 IP+邮箱限流
		authLimiter := RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("email"))
		authDispatch := func(ctx *gin.Context) {
			authType := strings.ToLower(strings.TrimSpace(ctx.Param("type")))
			if _, limited := authTypesRateLimited[authType]; limited {
				authLimiter(ctx)
				if ctx.IsAborted() {
					return
				}
			}
			publicHandler.AuthDispatch(ctx)
		}
		apiV1.POST("/auth/:type", authDispatch)
		apiV1.GET("/auth/:type", authDispatch)

		// 登录用户接口
		authed := apiV1.Group("")
		authed.Use(AuthMiddleware(c.GuardService))
		{
			authed.POST("/posts/like", publicHandler.LikePost)
			authed.GET("/posts/like", publicHandler.GetLikeState)
			authed.GET("/me/notifications", publicHandler.GetMyNotifications)
			authed.POST("/me/notifications/:id/read", publicHandler.MarkNotificationRead)
			authed.POST("/me/notifications/read-all", publicHandler.MarkAllNotificationsRead)
			authed.GET("/me/login-logs", publicHandler.GetMyLoginLogs)
		}

		// 后台接口：角色闸门 + Casbin 路由级校验
		admin := apiV1.Group("/admin")
		admin.Use(AuthMiddleware(c.GuardService, constants.RoleAdmin, constants.RoleEditor))
		admin.Use(AdminRBACMiddleware(c.AuthzService))
		{
			admin.GET("/sessions", adminHandler.GetSessions)
			admin.GET("/sessions/stats", adminHandler.GetSessionStats)
			admin.GET("/sessions/:id", adminHandler.GetSession)
			admin.PATCH("/sessions/:id", adminHandler.TerminateSession)
			admin.DELETE("/sessions/:id", adminHandler.DeleteSession)
			admin.DELETE("/sessions/user/:user_id", adminHandler.DeleteUserSessions)
			admin.POST("/sessions/cleanup", adminHandler.CleanupSessions)

			admin.GET("/posts", adminHandler.GetAdminPosts)
			admin.POST("/posts", adminHandler.CreateAdminPost)
			admin.GET("/posts/:id", adminHandler.GetAdminPost)
			admin.PUT("/posts/:id", adminHandler.UpdateAdminPost)
			admin.DELETE("/posts/:id", adminHandler.DeleteAdminPost)

			admin.GET("/login-logs", adminHandler.GetLoginLogs)
		}
	}

	return r
}
