package repository

import (
	"time"

	"github.com/inkstone/internal/models"

	"gorm.io/gorm"
)

// NotificationRepository 通知数据访问接口
type NotificationRepository interface {
	Create(notification *models.Notification) error
	CreateBatch(notifications []models.Notification) error
	ListByUser(userID uint, limit int) ([]models.Notification, error)
	List(filter NotificationListFilter) ([]models.Notification, int64, error)
	CountUnread(userID uint) (int64, error)
	MarkRead(userID uint, id uint) (int64, error)
	MarkAllRead(userID uint) (int64, error)
	DeleteBefore(cutoff time.Time) (int64, error)
}

// GormNotificationRepository GORM 实现
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建通知仓库
func NewNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// Create 创建通知
func (r *GormNotificationRepository) Create(notification *models.Notification) error {
	return r.db.Create(notification).Error
}

// CreateBatch 批量创建通知
func (r *GormNotificationRepository) CreateBatch(notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.db.CreateInBatches(notifications, 200).Error
}

// ListByUser 查询用户最近通知（按创建时间倒序）
func (r *GormNotificationRepository) ListByUser(userID uint, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	var notifications []models.Notification
	if err := r.db.Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

// List 分页查询通知
func (r *GormNotificationRepository) List(filter NotificationListFilter) ([]models.Notification, int64, error) {
	query := r.db.Model(&models.Notification{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var notifications []models.Notification
	if err := query.Order("created_at desc").Find(&notifications).Error; err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

// CountUnread 统计未读通知数
func (r *GormNotificationRepository) CountUnread(userID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// MarkRead 标记单条通知为已读
func (r *GormNotificationRepository) MarkRead(userID uint, id uint) (int64, error) {
	result := r.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", id, userID).
		Update("read_at", time.Now())
	return result.RowsAffected, result.Error
}

// MarkAllRead 标记用户全部通知为已读
func (r *GormNotificationRepository) MarkAllRead(userID uint) (int64, error) {
	result := r.db.Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", time.Now())
	return result.RowsAffected, result.Error
}

// DeleteBefore 清理历史通知
func (r *GormNotificationRepository) DeleteBefore(cutoff time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", cutoff).Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}
