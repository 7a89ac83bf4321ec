package models

import "time"

// Notification 用户通知表
type Notification struct {
	ID        uint       `gorm:"primarykey" json:"id"`                     // 主键
	UserID    uint       `gorm:"index;not null" json:"user_id"`            // 接收用户ID
	Type      string     `gorm:"type:varchar(32);index" json:"type"`       // 通知类型（notice/comment/system）
	Title     string     `gorm:"not null" json:"title"`                    // 标题
	Content   string     `gorm:"type:text" json:"content"`                 // 内容
	Link      string     `gorm:"type:varchar(255)" json:"link"`            // 跳转链接
	ReadAt    *time.Time `gorm:"index" json:"read_at"`                     // 已读时间（nil 为未读）
	CreatedAt time.Time  `gorm:"index" json:"created_at"`                  // 创建时间
}

// TableName 指定表名
func (Notification) TableName() string {
	return "notifications"
}
