package public

import (
	"strconv"

	"github.com/inkstone/internal/http/handlers/shared"
	"github.com/inkstone/internal/http/response"
	"github.com/inkstone/internal/models"

	"github.com/gin-gonic/gin"
)

// GetMyNotifications 查询当前用户的通知列表（缓存优先）。
func (h *Handler) GetMyNotifications(c *gin.Context) {
	userID, ok := shared.GetContextUint(c, "user_id")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	notifications, err := h.NotificationService.ListForUser(c.Request.Context(), userID, limit)
	if err != nil {
		respondNotificationError(c, err)
		return
	}

	unread, err := h.NotificationService.CountUnread(userID)
	if err != nil {
		respondNotificationError(c, err)
		return
	}

	items := make([]gin.H, 0, len(notifications))
	for i := range notifications {
		items = append(items, notificationView(&notifications[i]))
	}
	response.Success(c, gin.H{
		"notifications": items,
		"unread_count":  unread,
	})
}

// MarkNotificationRead 标记单条通知为已读。
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	userID, ok := shared.GetContextUint(c, "user_id")
	if !ok {
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		shared.RespondError(c, response.CodeBadRequest, "参数不合法", nil)
		return
	}

	if err := h.NotificationService.MarkRead(c.Request.Context(), userID, uint(id)); err != nil {
		respondNotificationError(c, err)
		return
	}
	response.Success(c, nil)
}

// MarkAllNotificationsRead 标记当前用户全部通知为已读。
func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	userID, ok := shared.GetContextUint(c, "user_id")
	if !ok {
		return
	}

	affected, err := h.NotificationService.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		respondNotificationError(c, err)
		return
	}
	response.Success(c, gin.H{"marked": affected})
}

func notificationView(n *models.Notification) gin.H {
	return gin.H{
		"id":         n.ID,
		"type":       n.Type,
		"title":      n.Title,
		"content":    n.Content,
		"link":       n.Link,
		"read_at":    n.ReadAt,
		"created_at": n.CreatedAt,
	}
}
