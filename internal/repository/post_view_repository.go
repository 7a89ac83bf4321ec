package repository

import (
	"time"

	"github.com/inkstone/internal/models"

	"gorm.io/gorm"
)

// PostViewRepository 浏览记录数据访问接口
type PostViewRepository interface {
	TrackView(postID, userID uint, ip, userAgent string, window time.Duration) (bool, error)
	DeleteBefore(cutoff time.Time) (int64, error)
}

// GormPostViewRepository GORM 实现
type GormPostViewRepository struct {
	db *gorm.DB
}

// NewPostViewRepository 创建浏览记录仓库
func NewPostViewRepository(db *gorm.DB) *GormPostViewRepository {
	return &GormPostViewRepository{db: db}
}

// TrackView 在去重窗口内记录一次浏览。
// 登录用户按 (post_id, user_id) 去重，匿名用户按 (post_id, ip, user_agent) 去重。
// 窗口内已有记录时不重复计数，返回 false。
// 查重、写入与计数自增在同一事务内完成。
func (r *GormPostViewRepository) TrackView(postID, userID uint, ip, userAgent string, window time.Duration) (bool, error) {
	counted := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		since := now.Add(-window)

		query := tx.Model(&models.PostView{}).
			Where("post_id = ? AND viewed_at >= ?", postID, since)
		if userID != 0 {
			query = query.Where("user_id = ?", userID)
		} else {
			query = query.Where("user_id = 0 AND ip = ? AND user_agent = ?", ip, userAgent)
		}

		var existing int64
		if err := query.Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		view := models.PostView{
			PostID:    postID,
			UserID:    userID,
			IP:        ip,
			UserAgent: userAgent,
			ViewedAt:  now,
		}
		if err := tx.Create(&view).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Post{}).
			Where("id = ?", postID).
			UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error; err != nil {
			return err
		}
		counted = true
		return nil
	})
	return counted, err
}

// DeleteBefore 清理窗口外的历史浏览记录
func (r *GormPostViewRepository) DeleteBefore(cutoff time.Time) (int64, error) {
	result := r.db.Where("viewed_at < ?", cutoff).Delete(&models.PostView{})
	return result.RowsAffected, result.Error
}
