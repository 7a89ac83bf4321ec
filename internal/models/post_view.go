package models

import "time"

// PostView 文章浏览记录（仅追加）
// 去重窗口内的唯一性由业务逻辑在事务中保证，未加数据库唯一约束。
type PostView struct {
	ID        uint      `gorm:"primarykey" json:"id"`                             // 主键
	PostID    uint      `gorm:"index:idx_post_views_post_user;not null" json:"post_id"` // 文章ID
	UserID    uint      `gorm:"index:idx_post_views_post_user" json:"user_id"`    // 用户ID（匿名为0）
	IP        string    `gorm:"type:varchar(64);index" json:"ip"`                 // 客户端IP
	UserAgent string    `gorm:"type:text" json:"user_agent"`                      // 客户端UA
	ViewedAt  time.Time `gorm:"index;not null" json:"viewed_at"`                  // 浏览时间
}

// TableName 指定表名
func (PostView) TableName() string {
	return "post_views"
}
