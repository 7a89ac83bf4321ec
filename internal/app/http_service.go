package app

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HTTPService 博客前台与后台共用的 HTTP 入口服务，由 Runner 托管生命周期。
type HTTPService struct {
	name   string
	server *http.Server
}

// NewHTTPService 包装 gin 引擎为可托管服务
func NewHTTPService(addr string, handler http.Handler) *HTTPService {
	return &HTTPService{
		name: "http",
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Name 服务名称
func (s *HTTPService) Name() string {
	if s == nil || s.name == "" {
		return "http"
	}
	return s.name
}

// Start 启动监听。优雅关闭触发的 ErrServerClosed 不视为错误。
func (s *HTTPService) Start(ctx context.Context) error {
	if s == nil || s.server == nil {
		return errors.New("http server not initialized")
	}
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 优雅关闭，等待在途请求完成或 ctx 超时
func (s *HTTPService) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
