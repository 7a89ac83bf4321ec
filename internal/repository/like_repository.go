package repository

import (
	"errors"

	"github.com/inkstone/internal/models"

	"gorm.io/gorm"
)

// ErrAlreadyLiked 重复点赞
var ErrAlreadyLiked = errors.New("already liked")

// ErrNotLiked 未点赞状态下取消点赞
var ErrNotLiked = errors.New("not liked")

// LikeRepository 点赞数据访问接口
type LikeRepository interface {
	Like(userID, postID uint) (int64, error)
	Unlike(userID, postID uint) (int64, error)
	Liked(userID, postID uint) (bool, error)
}

// GormLikeRepository GORM 实现
type GormLikeRepository struct {
	db *gorm.DB
}

// NewLikeRepository 创建点赞仓库
func NewLikeRepository(db *gorm.DB) *GormLikeRepository {
	return &GormLikeRepository{db: db}
}

// Like 点赞并返回最新点赞数。重复点赞返回 ErrAlreadyLiked。
// 点赞记录写入与计数更新在同一事务内完成。
func (r *GormLikeRepository) Like(userID, postID uint) (int64, error) {
	var likeCount int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Like{}).
			Where("user_id = ? AND post_id = ?", userID, postID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyLiked
		}

		like := models.Like{UserID: userID, PostID: postID}
		if err := tx.Create(&like).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Post{}).
			Where("id = ?", postID).
			UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error; err != nil {
			return err
		}

		var post models.Post
		if err := tx.Select("like_count").First(&post, postID).Error; err != nil {
			return err
		}
		likeCount = post.LikeCount
		return nil
	})
	return likeCount, err
}

// Unlike 取消点赞并返回最新点赞数。未点赞时返回 ErrNotLiked。
// 计数下限为 0，避免历史数据不一致导致负数。
func (r *GormLikeRepository) Unlike(userID, postID uint) (int64, error) {
	var likeCount int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotLiked
		}
		if err := tx.Model(&models.Post{}).
			Where("id = ? AND like_count > 0", postID).
			UpdateColumn("like_count", gorm.Expr("like_count - 1")).Error; err != nil {
			return err
		}

		var post models.Post
		if err := tx.Select("like_count").First(&post, postID).Error; err != nil {
			return err
		}
		likeCount = post.LikeCount
		return nil
	})
	return likeCount, err
}

// Liked 查询用户是否已点赞
func (r *GormLikeRepository) Liked(userID, postID uint) (bool, error) {
	var count int64
	if err := r.db.Model(&models.Like{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
