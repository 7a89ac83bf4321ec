package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User 用户表
type User struct {
	ID                 uint           `gorm:"primarykey" json:"id"`                // 主键
	Email              string         `gorm:"uniqueIndex;not null" json:"email"`   // 邮箱
	PasswordHash       string         `gorm:"not null" json:"-"`                   // 密码哈希（不返回给前端）
	DisplayName        string         `gorm:"default:''" json:"display_name"`      // 昵称
	Roles              string         `gorm:"default:'user'" json:"roles"`         // 角色列表（逗号分隔）
	Status             string         `gorm:"default:'active'" json:"status"`      // 账号状态
	LoginType          string         `gorm:"default:'local'" json:"login_type"`   // 注册来源（local/社交）
	SocialID           string         `gorm:"index;default:''" json:"-"`           // 社交账号外部 ID
	TokenVersion       uint64         `gorm:"not null;default:0" json:"-"`         // Token 版本（用于全量失效）
	TokenInvalidBefore *time.Time     `gorm:"index" json:"-"`                      // 该时间点前签发的 Token 失效
	EmailVerifiedAt    *time.Time     `json:"email_verified_at"`                   // 邮箱验证时间
	LastLoginAt        *time.Time     `json:"last_login_at"`                       // 最后登录时间
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`             // 创建时间
	UpdatedAt          time.Time      `gorm:"index" json:"updated_at"`             // 更新时间
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`                      // 软删除时间
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// RoleList 解析角色列表
func (u *User) RoleList() []string {
	if u == nil {
		return nil
	}
	parts := strings.Split(u.Roles, ",")
	roles := make([]string, 0, len(parts))
	for _, part := range parts {
		role := strings.ToLower(strings.TrimSpace(part))
		if role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}

// HasRole 判断用户是否拥有指定角色
func (u *User) HasRole(role string) bool {
	target := strings.ToLower(strings.TrimSpace(role))
	for _, r := range u.RoleList() {
		if r == target {
			return true
		}
	}
	return false
}
