package main

import (
	"fmt"
	"time"

	"github.com/inkstone/internal/config"
	"github.com/inkstone/internal/constants"
	"github.com/inkstone/internal/logger"
	"github.com/inkstone/internal/models"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	now := time.Now()

	// 添加演示用户
	users := []struct {
		Email       string
		Password    string
		DisplayName string
		Roles       string
	}{
		{Email: "editor@example.com", Password: "Editor123!", DisplayName: "Demo Editor", Roles: constants.RoleEditor},
		{Email: "reader@example.com", Password: "Reader123!", DisplayName: "Demo Reader", Roles: constants.RoleUser},
	}

	userIDs := map[string]uint{}
	for _, u := range users {
		var existing models.User
		if err := models.DB.Where("email = ?", u.Email).First(&existing).Error; err == nil {
			stdLog.Printf("User already exists: %s", u.Email)
			userIDs[u.Email] = existing.ID
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			stdLog.Fatalf("Failed to hash password: %v", err)
		}
		user := models.User{
			Email:           u.Email,
			PasswordHash:    string(hash),
			DisplayName:     u.DisplayName,
			Roles:           u.Roles,
			Status:          constants.UserStatusActive,
			LoginType:       constants.LoginTypeLocal,
			EmailVerifiedAt: &now,
		}
		if err := models.DB.Create(&user).Error; err != nil {
			stdLog.Printf("Failed to create user %s: %v", u.Email, err)
			continue
		}
		stdLog.Printf("Created user: %s", u.Email)
		userIDs[u.Email] = user.ID
	}

	// 添加演示文章
	authorID := userIDs["editor@example.com"]
	posts := []models.Post{
		{
			Slug:        "hello-world",
			Type:        constants.PostTypeBlog,
			Title:       "Hello World",
			Summary:     "第一篇演示博客",
			Content:     "欢迎使用 Inkstone，这是一篇演示文章。",
			AuthorID:    authorID,
			IsPublished: true,
			PublishedAt: &now,
		},
		{
			Slug:        "getting-started",
			Type:        constants.PostTypeBlog,
			Title:       "Getting Started",
			Summary:     "快速上手指南",
			Content:     "本文介绍如何配置并启动服务。",
			AuthorID:    authorID,
			IsPublished: true,
			PublishedAt: &now,
		},
		{
			Slug:        "maintenance-notice",
			Type:        constants.PostTypeNotice,
			Title:       "系统维护公告",
			Summary:     "演示公告",
			Content:     fmt.Sprintf("计划维护时间：%s", now.Add(72*time.Hour).Format("2006-01-02 15:04")),
			AuthorID:    authorID,
			IsPublished: false,
		},
	}

	for _, post := range posts {
		var existing models.Post
		if err := models.DB.Where("slug = ?", post.Slug).First(&existing).Error; err == nil {
			stdLog.Printf("Post already exists: %s", post.Slug)
			continue
		}
		if err := models.DB.Create(&post).Error; err != nil {
			stdLog.Printf("Failed to create post %s: %v", post.Slug, err)
			continue
		}
		stdLog.Printf("Created post: %s", post.Slug)
	}

	stdLog.Printf("Seed completed")
}
