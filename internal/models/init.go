package models

import (
	"strings"
	"time"

	"github.com/inkstone/internal/constants"
	"github.com/inkstone/internal/logger"

	"golang.org/x/crypto/bcrypt"
)

// InitDefaultAdmin 初始化默认管理员账号
// 仅在用户表为空时创建；已有用户时确保默认管理员保留 admin 角色。
func InitDefaultAdmin(email, password string) error {
	var count int64
	DB.Model(&User{}).Count(&count)

	if count > 0 {
		if err := DB.Model(&User{}).
			Where("email = ? AND roles NOT LIKE ?", defaultAdminEmail(email), "%admin%").
			Update("roles", constants.RoleAdmin).Error; err != nil {
			logger.Warnw("ensure_default_admin_role_failed", "error", err)
		}
		return nil
	}

	if email == "" {
		email = "admin@inkstone.local"
	}
	if password == "" {
		password = "admin123"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	// 默认管理员没有邮箱验证渠道，创建时直接视为已验证
	now := time.Now()
	admin := User{
		Email:           strings.ToLower(strings.TrimSpace(email)),
		PasswordHash:    string(hash),
		DisplayName:     "admin",
		Roles:           constants.RoleAdmin,
		Status:          constants.UserStatusActive,
		LoginType:       constants.LoginTypeLocal,
		EmailVerifiedAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := DB.Create(&admin).Error; err != nil {
		return err
	}

	if password == "admin123" {
		logger.Warnw("default_admin_created_with_default_password", "email", admin.Email)
		logger.Warnw("default_admin_password_change_required", "email", admin.Email)
	} else {
		logger.Warnw("default_admin_created", "email", admin.Email, "password_hidden", true)
	}
	return nil
}

func defaultAdminEmail(email string) string {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "admin@inkstone.local"
	}
	return trimmed
}
