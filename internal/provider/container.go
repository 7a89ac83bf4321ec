package provider

import (
	"github.com/inkstone/internal/authz"
	"github.com/inkstone/internal/cache"
	"github.com/inkstone/internal/config"
	"github.com/inkstone/internal/logger"
	"github.com/inkstone/internal/models"
	"github.com/inkstone/internal/queue"
	"github.com/inkstone/internal/repository"
	"github.com/inkstone/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	UserRepo         repository.UserRepository
	SessionRepo      repository.SessionRepository
	PostRepo         repository.PostRepository
	PostViewRepo     repository.PostViewRepository
	LikeRepo         repository.LikeRepository
	NotificationRepo repository.NotificationRepository
	UserLoginLogRepo repository.UserLoginLogRepository

	// Services
	AuthzService        *authz.Service
	TokenService        *service.TokenService
	GuardService        *service.GuardService
	AuthService         *service.AuthService
	OAuthService        *service.OAuthService
	CaptchaService      *service.CaptchaService
	SessionService      *service.SessionService
	PostService         *service.PostService
	NotificationService *service.NotificationService
	UserLoginLogService *service.UserLoginLogService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	c.initRepositories()
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.SessionRepo = repository.NewSessionRepository(db)
	c.PostRepo = repository.NewPostRepository(db)
	c.PostViewRepo = repository.NewPostViewRepository(db)
	c.LikeRepo = repository.NewLikeRepository(db)
	c.NotificationRepo = repository.NewNotificationRepository(db)
	c.UserLoginLogRepo = repository.NewUserLoginLogRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	c.TokenService = service.NewTokenService(c.Config)
	c.GuardService = service.NewGuardService(c.TokenService, c.UserRepo)
	c.AuthService = service.NewAuthService(c.Config, c.TokenService, c.UserRepo, c.SessionRepo, c.UserLoginLogRepo)
	c.OAuthService = service.NewOAuthService(c.Config)
	c.CaptchaService = service.NewCaptchaService(c.Config.Captcha)
	c.SessionService = service.NewSessionService(c.Config, c.SessionRepo)
	c.PostService = service.NewPostService(c.Config, c.PostRepo, c.PostViewRepo, c.LikeRepo, c.QueueClient)
	c.NotificationService = service.NewNotificationService(c.NotificationRepo, c.UserRepo, c.PostRepo)
	c.UserLoginLogService = service.NewUserLoginLogService(c.UserLoginLogRepo)
}
