package repository

import (
	"errors"

	"github.com/inkstone/internal/models"

	"gorm.io/gorm"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetBySocialID(loginType, socialID string) (*models.User, error)
	Create(user *models.User) error
	Update(user *models.User) error
	ListActiveIDs() ([]uint, error)
}

// GormUserRepository GORM 实现
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓库
func NewUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// GetByID 根据 ID 获取用户
func (r *GormUserRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByEmail 根据邮箱获取用户
func (r *GormUserRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetBySocialID 根据社交账号外部 ID 获取用户
func (r *GormUserRepository) GetBySocialID(loginType, socialID string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("login_type = ? AND social_id = ?", loginType, socialID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Create 创建用户
func (r *GormUserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// Update 更新用户
func (r *GormUserRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// ListActiveIDs 查询全部活跃用户 ID
func (r *GormUserRepository) ListActiveIDs() ([]uint, error) {
	var ids []uint
	if err := r.db.Model(&models.User{}).
		Where("status = ?", "active").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
