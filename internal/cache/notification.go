package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/inkstone/internal/models"
)

// notificationCacheTTL 未读通知列表缓存时长
const notificationCacheTTL = time.Hour

func notificationKey(userID uint) string {
	return fmt.Sprintf("notification:%d", userID)
}

// GetNotifications 读取用户未读通知列表缓存
func GetNotifications(ctx context.Context, userID uint) ([]models.Notification, bool, error) {
	if userID == 0 {
		return nil, false, nil
	}
	var list []models.Notification
	hit, err := GetJSON(ctx, notificationKey(userID), &list)
	if err != nil || !hit {
		return nil, hit, err
	}
	return list, true, nil
}

// SetNotifications 写入用户未读通知列表缓存
func SetNotifications(ctx context.Context, userID uint, list []models.Notification) error {
	if userID == 0 {
		return nil
	}
	return SetJSON(ctx, notificationKey(userID), list, notificationCacheTTL)
}

// DelNotifications 删除用户通知缓存
// 写路径统一走删除而非就地更新，下一次读取回源数据库。
func DelNotifications(ctx context.Context, userID uint) error {
	if userID == 0 {
		return nil
	}
	return Del(ctx, notificationKey(userID))
}
