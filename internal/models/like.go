package models

import "time"

// Like 点赞表
// (user_id, post_id) 唯一；posts.like_count 与行的存在性在同一事务内维护。
type Like struct {
	UID       uint      `gorm:"primarykey;column:uid" json:"uid"`                            // 主键
	UserID    uint      `gorm:"uniqueIndex:idx_likes_user_post;not null" json:"user_id"`     // 用户ID
	PostID    uint      `gorm:"uniqueIndex:idx_likes_user_post;not null" json:"post_id"`     // 文章ID
	CreatedAt time.Time `gorm:"index" json:"created_at"`                                     // 点赞时间
}

// TableName 指定表名
func (Like) TableName() string {
	return "likes"
}
