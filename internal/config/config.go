package config

import (
	"fmt"
	"strings"

	"github.com/inkstone/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Security SecurityConfig `mapstructure:"security"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	Captcha  CaptchaConfig  `mapstructure:"captcha"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig 双令牌配置
// 访问令牌与刷新令牌使用相互独立的密钥。
type JWTConfig struct {
	AccessSecret        string `mapstructure:"access_secret"`
	RefreshSecret       string `mapstructure:"refresh_secret"`
	AccessExpireMinutes int    `mapstructure:"access_expire_minutes"`
	RefreshExpireHours  int    `mapstructure:"refresh_expire_hours"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	APIRateLimit   RateLimitConfig      `mapstructure:"api_rate_limit"`
	LoginRateLimit RateLimitConfig      `mapstructure:"login_rate_limit"`
	Session        SessionPolicyConfig  `mapstructure:"session"`
	PasswordPolicy PasswordPolicyConfig `mapstructure:"password_policy"`
}

// RateLimitConfig 固定窗口限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// SessionPolicyConfig 会话策略配置
// 去重窗口与会话上限作为部署级常量暴露，不做运行期推断。
type SessionPolicyConfig struct {
	MaxPerUser            int `mapstructure:"max_per_user"`
	SuspiciousIPThreshold int `mapstructure:"suspicious_ip_threshold"`
	SuspiciousKeep        int `mapstructure:"suspicious_keep"`
	ViewDedupHours        int `mapstructure:"view_dedup_hours"`
}

// PasswordPolicyConfig 密码策略配置
type PasswordPolicyConfig struct {
	MinLength     int  `mapstructure:"min_length"`
	RequireUpper  bool `mapstructure:"require_upper"`
	RequireLower  bool `mapstructure:"require_lower"`
	RequireNumber bool `mapstructure:"require_number"`
}

// OAuthProviderConfig 社交登录提供方配置
type OAuthProviderConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

// OAuthConfig 社交登录配置
type OAuthConfig struct {
	InternalTimeoutMS int                 `mapstructure:"internal_timeout_ms"`
	ExternalTimeoutMS int                 `mapstructure:"external_timeout_ms"`
	Kakao             OAuthProviderConfig `mapstructure:"kakao"`
	Google            OAuthProviderConfig `mapstructure:"google"`
	Naver             OAuthProviderConfig `mapstructure:"naver"`
	Apple             OAuthProviderConfig `mapstructure:"apple"`
}

// Providers 返回已启用的提供方映射
func (c OAuthConfig) Providers() map[string]OAuthProviderConfig {
	return map[string]OAuthProviderConfig{
		"kakao":  c.Kakao,
		"google": c.Google,
		"naver":  c.Naver,
		"apple":  c.Apple,
	}
}

// CaptchaConfig 管理端登录验证码配置
type CaptchaConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	Length        int  `mapstructure:"length"`
	Width         int  `mapstructure:"width"`
	Height        int  `mapstructure:"height"`
	NoiseCount    int  `mapstructure:"noise_count"`
	ExpireSeconds int  `mapstructure:"expire_seconds"`
}

// Load 从 config.yml 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("./etc")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("log.dir", "")
	viper.SetDefault("log.filename", "inkstone.log")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 7)
	viper.SetDefault("log.max_age_days", 30)
	viper.SetDefault("log.compress", true)
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "./db/inkstone.db")
	viper.SetDefault("database.pool.max_open_conns", 1)
	viper.SetDefault("database.pool.max_idle_conns", 1)
	viper.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	viper.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	viper.SetDefault("jwt.access_secret", "change-me-in-production")
	viper.SetDefault("jwt.refresh_secret", "refresh-change-me-in-production")
	viper.SetDefault("jwt.access_expire_minutes", 15)
	viper.SetDefault("jwt.refresh_expire_hours", 168)
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "127.0.0.1")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefix", "ink")
	viper.SetDefault("queue.enabled", true)
	viper.SetDefault("queue.host", "127.0.0.1")
	viper.SetDefault("queue.port", 6379)
	viper.SetDefault("queue.password", "")
	viper.SetDefault("queue.db", 1)
	viper.SetDefault("queue.concurrency", 10)
	viper.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	viper.SetDefault("cors.allowed_origins", []string{"*"})
	viper.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	viper.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
	})
	viper.SetDefault("cors.allow_credentials", true)
	viper.SetDefault("cors.max_age", 600)
	viper.SetDefault("security.api_rate_limit.window_seconds", 60)
	viper.SetDefault("security.api_rate_limit.max_requests", 30)
	viper.SetDefault("security.login_rate_limit.window_seconds", 300)
	viper.SetDefault("security.login_rate_limit.max_requests", 5)
	viper.SetDefault("security.session.max_per_user", 5)
	viper.SetDefault("security.session.suspicious_ip_threshold", 10)
	viper.SetDefault("security.session.suspicious_keep", 3)
	viper.SetDefault("security.session.view_dedup_hours", 24)
	viper.SetDefault("security.password_policy.min_length", 8)
	viper.SetDefault("security.password_policy.require_upper", false)
	viper.SetDefault("security.password_policy.require_lower", true)
	viper.SetDefault("security.password_policy.require_number", true)
	viper.SetDefault("oauth.internal_timeout_ms", 5000)
	viper.SetDefault("oauth.external_timeout_ms", 10000)
	for _, provider := range []string{"kakao", "google", "naver", "apple"} {
		viper.SetDefault("oauth."+provider+".enabled", false)
		viper.SetDefault("oauth."+provider+".client_id", "")
		viper.SetDefault("oauth."+provider+".client_secret", "")
		viper.SetDefault("oauth."+provider+".redirect_uri", "")
	}
	viper.SetDefault("captcha.enabled", false)
	viper.SetDefault("captcha.length", 5)
	viper.SetDefault("captcha.width", 240)
	viper.SetDefault("captcha.height", 80)
	viper.SetDefault("captcha.noise_count", 2)
	viper.SetDefault("captcha.expire_seconds", 300)

	// 环境变量支持（jwt.access_secret -> JWT_ACCESS_SECRET）
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}

	return &cfg
}

// Validate 校验必填密钥
// release 模式下缺失或过弱的密钥直接失败，避免带病启动。
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(c.JWT.AccessSecret) == "" {
		return fmt.Errorf("jwt.access_secret is required")
	}
	if strings.TrimSpace(c.JWT.RefreshSecret) == "" {
		return fmt.Errorf("jwt.refresh_secret is required")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return fmt.Errorf("jwt.access_secret and jwt.refresh_secret must differ")
	}
	for name, provider := range c.OAuth.Providers() {
		if !provider.Enabled {
			continue
		}
		if strings.TrimSpace(provider.ClientID) == "" || strings.TrimSpace(provider.ClientSecret) == "" {
			return fmt.Errorf("oauth.%s enabled but client_id/client_secret missing", name)
		}
	}
	if c.Server.Mode == "release" {
		if IsWeakSecret(c.JWT.AccessSecret) {
			return fmt.Errorf("jwt.access_secret too weak for release mode")
		}
		if IsWeakSecret(c.JWT.RefreshSecret) {
			return fmt.Errorf("jwt.refresh_secret too weak for release mode")
		}
	}
	return nil
}

// IsWeakSecret 判断密钥是否过弱或仍为默认值
func IsWeakSecret(secret string) bool {
	if len(secret) < 32 {
		return true
	}
	normalized := strings.ToLower(secret)
	return strings.Contains(normalized, "change-me") ||
		strings.Contains(normalized, "change-in-production") ||
		strings.Contains(normalized, "your-secret-key")
}
