package service

import (
	"github.com/inkstone/internal/models"
	"github.com/inkstone/internal/repository"
)

// UserLoginLogService 登录日志查询服务
type UserLoginLogService struct {
	repo repository.UserLoginLogRepository
}

// NewUserLoginLogService 创建登录日志服务
func NewUserLoginLogService(repo repository.UserLoginLogRepository) *UserLoginLogService {
	return &UserLoginLogService{repo: repo}
}

// ListAdmin 管理端分页查询登录日志
func (s *UserLoginLogService) ListAdmin(filter repository.UserLoginLogListFilter) ([]models.UserLoginLog, int64, error) {
	return s.repo.ListAdmin(filter)
}

// ListByUser 用户查询自己的登录日志
func (s *UserLoginLogService) ListByUser(userID uint, page, pageSize int) ([]models.UserLoginLog, int64, error) {
	if userID == 0 {
		return nil, 0, ErrNotFound
	}
	return s.repo.ListByUser(userID, page, pageSize)
}
