package admin

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/inkstone/internal/http/handlers/shared"
	"github.com/inkstone/internal/http/response"
	"github.com/inkstone/internal/repository"
	"github.com/inkstone/internal/service"

	"github.com/gin-gonic/gin"
)

// GetSessions 管理端会话列表
func (h *Handler) GetSessions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = shared.NormalizePagination(page, pageSize)

	filter := repository.SessionListFilter{
		Page:       page,
		PageSize:   pageSize,
		IPAddress:  strings.TrimSpace(c.Query("ip")),
		LoginType:  strings.TrimSpace(c.Query("login_type")),
		ActiveOnly: c.Query("active") == "true",
	}
	if userID, err := strconv.ParseUint(c.Query("user_id"), 10, 64); err == nil {
		filter.UserID = uint(userID)
	}
	if from := parseTimeQuery(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTimeQuery(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}

	sessions, total, err := h.SessionService.List(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "会话查询失败", err)
		return
	}

	response.SuccessWithPage(c, sessions, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetSessionStats 会话统计
func (h *Handler) GetSessionStats(c *gin.Context) {
	stats, err := h.SessionService.Stats()
	if err != nil {
		respondError(c, response.CodeInternal, "会话统计失败", err)
		return
	}
	response.Success(c, stats)
}

// GetSession 单个会话详情
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.SessionService.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			respondError(c, response.CodeNotFound, "会话不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "会话查询失败", err)
		return
	}
	response.Success(c, session)
}

// TerminateSession 使会话下线（PATCH，置为非活跃）
func (h *Handler) TerminateSession(c *gin.Context) {
	if err := h.SessionService.Terminate(c.Param("id")); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			respondError(c, response.CodeNotFound, "会话不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "会话下线失败", err)
		return
	}
	response.Success(c, nil)
}

// DeleteSession 删除会话记录
func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.SessionService.Delete(c.Param("id")); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			respondError(c, response.CodeNotFound, "会话不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "会话删除失败", err)
		return
	}
	response.Success(c, nil)
}

// DeleteUserSessions 删除指定用户的全部会话
func (h *Handler) DeleteUserSessions(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil || userID == 0 {
		respondError(c, response.CodeBadRequest, "参数不合法", nil)
		return
	}

	deleted, err := h.SessionService.DeleteByUser(uint(userID))
	if err != nil {
		respondError(c, response.CodeInternal, "会话删除失败", err)
		return
	}
	response.Success(c, gin.H{"deleted": deleted})
}

type sessionCleanupRequest struct {
	Type        string `json:"type" binding:"required"`
	UserID      uint   `json:"user_id"`
	MaxSessions int    `json:"max_sessions"`
}

// CleanupSessions 触发会话清理（expired/duplicate/suspicious/all）
func (h *Handler) CleanupSessions(c *gin.Context) {
	var req sessionCleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "参数不合法", nil)
		return
	}

	results, err := h.SessionService.Cleanup(req.Type, service.CleanupOptions{
		UserID:      req.UserID,
		MaxSessions: req.MaxSessions,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidCleanupType) {
			respondError(c, response.CodeBadRequest, "不支持的清理类型", nil)
			return
		}
		requestLog(c).Errorw("session_cleanup_failed", "type", req.Type, "error", err)
		respondError(c, response.CodeInternal, "会话清理失败", err)
		return
	}

	response.Success(c, gin.H{"results": results})
}

func parseTimeQuery(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &t
}
