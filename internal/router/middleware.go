package router

import (
	"strconv"
	"strings"
	"time"

	"github.com/inkstone/internal/authz"
	"github.com/inkstone/internal/config"
	"github.com/inkstone/internal/constants"
	"github.com/inkstone/internal/http/response"
	"github.com/inkstone/internal/logger"
	"github.com/inkstone/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDKey = "request_id"
const requestIDHeader = "X-Request-ID"
const grantContextKey = "auth_grant"

// CORSMiddleware 跨域中间件
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowedMethods := cfg.AllowedMethods
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	allowedHeaders := cfg.AllowedHeaders
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{
			"Content-Type",
			"Content-Length",
			"Accept-Encoding",
			"Authorization",
			"Cache-Control",
			"X-Requested-With",
			"X-CSRF-Token",
		}
	}
	methodsHeader := strings.Join(allowedMethods, ", ")
	headersHeader := strings.Join(allowedHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowedOrigin := resolveAllowedOrigin(origin, allowedOrigins, cfg.AllowCredentials)
		if allowedOrigin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			if allowedOrigin != "*" {
				c.Writer.Header().Add("Vary", "Origin")
			}
		}
		if cfg.AllowCredentials {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", headersHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", methodsHeader)
		if cfg.MaxAge > 0 {
			c.Writer.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func resolveAllowedOrigin(origin string, allowedOrigins []string, allowCredentials bool) string {
	if len(allowedOrigins) == 0 {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			if allowCredentials && origin != "" {
				return origin
			}
			return "*"
		}
	}
	if origin == "" {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.L()
	}
	sugar := logger.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := sugar.With(
			"request_id", GetRequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
		if len(c.Errors) > 0 {
			log.Errorw("request", "errors", c.Errors.String())
			return
		}
		log.Infow("request")
	}
}

// GetRequestID 从上下文取请求 ID
func GetRequestID(c *gin.Context) string {
	value, ok := c.Get(requestIDKey)
	if !ok {
		return ""
	}
	if requestID, ok := value.(string); ok {
		return requestID
	}
	return ""
}

// AuthMiddleware 鉴权中间件。
// 从请求提取 Bearer 令牌与 token/fp Cookie 交给鉴权状态机，
// 拒绝时按拒绝原因返回真实 HTTP 状态码，放行时把 Grant 写入上下文。
func AuthMiddleware(guard *service.GuardService, requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if guard == nil {
			response.Denied(c, 401, constants.DenyReasonUnauthorized)
			c.Abort()
			return
		}

		input := service.GuardInput{
			Bearer:            extractBearer(c),
			RefreshCookie:     readCookie(c, constants.CookieRefreshToken),
			FingerprintCookie: readCookie(c, constants.CookieFingerprint),
			ClientIP:          c.ClientIP(),
			UserAgent:         c.Request.UserAgent(),
		}

		grant, denial := guard.Authorize(c.Request.Context(), input, requiredRoles)
		if denial != nil {
			response.Denied(c, denial.Status, denial.Reason)
			c.Abort()
			return
		}

		c.Set(grantContextKey, grant)
		c.Set("user_id", grant.UserID)
		c.Set("user_email", grant.Email)
		c.Next()
	}
}

// GetGrant 从上下文取鉴权放行结果
func GetGrant(c *gin.Context) *service.Grant {
	value, ok := c.Get(grantContextKey)
	if !ok {
		return nil
	}
	grant, ok := value.(*service.Grant)
	if !ok {
		return nil
	}
	return grant
}

// AdminRBACMiddleware 管理端 RBAC 鉴权中间件。
// 在角色检查之后叠加按路由的 casbin 策略判定。
func AdminRBACMiddleware(authzService *authz.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authzService == nil {
			logger.Errorw("admin_rbac_service_unavailable")
			response.Denied(c, 401, constants.DenyReasonUnauthorized)
			c.Abort()
			return
		}

		grant := GetGrant(c)
		if grant == nil {
			response.Denied(c, 401, constants.DenyReasonUnauthorized)
			c.Abort()
			return
		}

		resource := c.FullPath()
		if strings.TrimSpace(resource) == "" {
			resource = c.Request.URL.Path
		}

		allowed, err := authzService.EnforceRoles(grant.Roles, resource, c.Request.Method)
		if err != nil {
			logger.Errorw("admin_rbac_enforce_failed",
				"user_id", grant.UserID,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error", err,
			)
			response.Denied(c, 401, constants.DenyReasonUnauthorized)
			c.Abort()
			return
		}
		if !allowed {
			logger.Warnw("admin_rbac_permission_denied",
				"user_id", grant.UserID,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"resource", authz.NormalizeObject(resource),
			)
			response.Denied(c, 403, constants.DenyReasonUnauthorized)
			c.Abort()
			return
		}

		c.Next()
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
