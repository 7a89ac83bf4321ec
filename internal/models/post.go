package models

import (
	"time"

	"gorm.io/gorm"
)

// Post 文章/公告表
type Post struct {
	ID          uint           `gorm:"primarykey" json:"id"`                    // 主键
	Slug        string         `gorm:"uniqueIndex;not null" json:"slug"`        // 唯一标识
	Type        string         `gorm:"not null;index" json:"type"`              // 类型（blog/notice）
	Title       string         `gorm:"not null" json:"title"`                   // 标题
	Summary     string         `gorm:"type:text" json:"summary"`                // 摘要
	Content     string         `gorm:"type:text" json:"content"`                // 正文
	Thumbnail   string         `json:"thumbnail"`                               // 缩略图
	AuthorID    uint           `gorm:"index" json:"author_id"`                  // 作者ID
	ViewCount   int64          `gorm:"not null;default:0" json:"view_count"`    // 浏览计数（冗余）
	LikeCount   int64          `gorm:"not null;default:0" json:"like_count"`    // 点赞计数（冗余）
	IsPublished bool           `gorm:"default:false;index" json:"is_published"` // 是否发布
	PublishedAt *time.Time     `gorm:"index" json:"published_at"`               // 发布时间
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                 // 创建时间
	UpdatedAt   time.Time      `json:"updated_at"`                              // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                          // 软删除时间
}

// TableName 指定表名
func (Post) TableName() string {
	return "posts"
}
