package service

import (
	"context"
	"time"

	"github.com/inkstone/internal/cache"
	"github.com/inkstone/internal/constants"
	"github.com/inkstone/internal/logger"
	"github.com/inkstone/internal/models"
	"github.com/inkstone/internal/repository"
)

// NotificationService 通知服务。
// 读路径经 Redis 缓存加速，写路径删除缓存回源，数据库始终是事实来源。
type NotificationService struct {
	repo     repository.NotificationRepository
	userRepo repository.UserRepository
	postRepo repository.PostRepository
}

// NewNotificationService 创建通知服务
func NewNotificationService(repo repository.NotificationRepository, userRepo repository.UserRepository, postRepo repository.PostRepository) *NotificationService {
	return &NotificationService{repo: repo, userRepo: userRepo, postRepo: postRepo}
}

// ListForUser 获取用户最近通知，优先读缓存
func (s *NotificationService) ListForUser(ctx context.Context, userID uint, limit int) ([]models.Notification, error) {
	if userID == 0 {
		return nil, ErrNotFound
	}

	cached, hit, err := cache.GetNotifications(ctx, userID)
	if err != nil {
		logger.Warnw("notification_cache_read_failed", "user_id", userID, "error", err)
	}
	if hit {
		return cached, nil
	}

	list, err := s.repo.ListByUser(userID, limit)
	if err != nil {
		return nil, err
	}
	if err := cache.SetNotifications(ctx, userID, list); err != nil {
		logger.Warnw("notification_cache_write_failed", "user_id", userID, "error", err)
	}
	return list, nil
}

// CountUnread 未读通知数
func (s *NotificationService) CountUnread(userID uint) (int64, error) {
	return s.repo.CountUnread(userID)
}

// MarkRead 标记单条通知已读并失效缓存
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	affected, err := s.repo.MarkRead(userID, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return cache.DelNotifications(ctx, userID)
}

// MarkAllRead 标记全部通知已读并失效缓存
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	affected, err := s.repo.MarkAllRead(userID)
	if err != nil {
		return 0, err
	}
	return affected, cache.DelNotifications(ctx, userID)
}

// Create 创建单条通知并失效缓存
func (s *NotificationService) Create(ctx context.Context, notification *models.Notification) error {
	if notification == nil || notification.UserID == 0 {
		return ErrNotFound
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	if err := s.repo.Create(notification); err != nil {
		return err
	}
	return cache.DelNotifications(ctx, notification.UserID)
}

// FanoutNoticePublished 公告发布后向全部活跃用户投递通知。
// 由队列 worker 调用，批量写库后逐个失效缓存。
func (s *NotificationService) FanoutNoticePublished(ctx context.Context, postID uint) (int, error) {
	post, err := s.postRepo.GetByID(postID)
	if err != nil {
		return 0, err
	}
	if post == nil || !post.IsPublished || post.Type != constants.PostTypeNotice {
		return 0, nil
	}

	userIDs, err := s.userRepo.ListActiveIDs()
	if err != nil {
		return 0, err
	}
	if len(userIDs) == 0 {
		return 0, nil
	}

	now := time.Now()
	notifications := make([]models.Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		notifications = append(notifications, models.Notification{
			UserID:    userID,
			Type:      constants.NotificationTypeNotice,
			Title:     post.Title,
			Content:   post.Summary,
			Link:      "/posts/" + post.Slug,
			CreatedAt: now,
		})
	}
	if err := s.repo.CreateBatch(notifications); err != nil {
		return 0, err
	}
	for _, userID := range userIDs {
		if err := cache.DelNotifications(ctx, userID); err != nil {
			logger.Warnw("notification_cache_invalidate_failed", "user_id", userID, "error", err)
		}
	}
	logger.Infow("notice_fanout_completed", "post_id", postID, "recipients", len(userIDs))
	return len(userIDs), nil
}
