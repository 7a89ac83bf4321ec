package models

import "time"

// Session 登录会话表
// 每次登录产生一条记录；刷新令牌轮换时更新活跃时间。
type Session struct {
	ID             uint      `gorm:"primarykey" json:"id"`                      // 主键
	SessionID      string    `gorm:"uniqueIndex;not null" json:"session_id"`    // 会话唯一标识（UUID）
	UserID         uint      `gorm:"index;not null" json:"user_id"`             // 用户ID
	Fingerprint    string    `gorm:"type:varchar(128);index" json:"-"`          // 设备指纹哈希
	DeviceInfo     string    `gorm:"type:varchar(255)" json:"device_info"`      // 设备描述
	IPAddress      string    `gorm:"type:varchar(64);index" json:"ip_address"`  // 登录IP
	UserAgent      string    `gorm:"type:text" json:"user_agent"`               // 客户端UA
	LoginType      string    `gorm:"type:varchar(32);index" json:"login_type"`  // 登录方式
	Active         bool      `gorm:"default:true;index" json:"active"`          // 是否活跃
	LastActivityAt time.Time `gorm:"index" json:"last_activity_at"`             // 最后活跃时间
	ExpiresAt      time.Time `gorm:"index" json:"expires_at"`                   // 过期时间
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                   // 创建时间
	UpdatedAt      time.Time `gorm:"index" json:"updated_at"`                   // 更新时间
}

// TableName 指定表名
func (Session) TableName() string {
	return "sessions"
}

// Expired 判断会话是否已过期
func (s *Session) Expired(now time.Time) bool {
	return s != nil && !s.ExpiresAt.After(now)
}
