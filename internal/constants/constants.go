package constants

// 用户状态
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 用户角色
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleUser   = "user"
)

// 登录方式
const (
	LoginTypeLocal  = "local"
	LoginTypeKakao  = "kakao"
	LoginTypeGoogle = "google"
	LoginTypeNaver  = "naver"
	LoginTypeApple  = "apple"
)

// Cookie 名称
const (
	CookieRefreshToken = "token"
	CookieFingerprint  = "fp"
	CookieAuthMarker   = "auth"
)

// CookieAuthMarkerValue 登录标记 Cookie 的固定值（非 httpOnly，供前端判断登录态）
const CookieAuthMarkerValue = "login"

// 令牌类型
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// 鉴权拒绝原因（可枚举，HTTP 层据此选择状态码）
const (
	DenyReasonAPILimit          = "APILimit"
	DenyReasonTokenVerification = "TokenVerification"
	DenyReasonTokenDenied       = "TokenDenied"
	DenyReasonTokenExpired      = "TokenExpired"
	DenyReasonTokenMismatch     = "TokenMismatch"
	DenyReasonUnauthorized      = "Unauthorized"
)

// 认证接口类型（/api/v1/auth/:type）
const (
	AuthTypeLogin    = "login"
	AuthTypeRegister = "register"
	AuthTypeVerify   = "verify"
	AuthTypeLogout   = "logout"
	AuthTypeMe       = "me"
	AuthTypeRefresh  = "refresh"
	AuthTypeResend   = "resend"
	AuthTypeSocial   = "social"
)

// 会话清理类型
const (
	SessionCleanupExpired    = "expired"
	SessionCleanupDuplicate  = "duplicate"
	SessionCleanupSuspicious = "suspicious"
	SessionCleanupAll        = "all"
)

// 文章类型
const (
	PostTypeBlog   = "blog"
	PostTypeNotice = "notice"
)

// 通知类型
const (
	NotificationTypeNotice  = "notice"
	NotificationTypeComment = "comment"
	NotificationTypeSystem  = "system"
)

// 登录日志状态
const (
	LoginLogStatusSuccess = "success"
	LoginLogStatusFailed  = "failed"
)

// 队列名称
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 队列任务类型
const (
	TaskSessionCleanup = "session:cleanup"
	TaskNoticeFanout   = "notification:notice_fanout"
)
