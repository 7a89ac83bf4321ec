package admin

import (
	"strconv"
	"strings"

	"github.com/inkstone/internal/http/handlers/shared"
	"github.com/inkstone/internal/http/response"
	"github.com/inkstone/internal/repository"

	"github.com/gin-gonic/gin"
)

// GetLoginLogs 管理端登录日志列表
func (h *Handler) GetLoginLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = shared.NormalizePagination(page, pageSize)

	filter := repository.UserLoginLogListFilter{
		Page:       page,
		PageSize:   pageSize,
		Email:      strings.TrimSpace(c.Query("email")),
		Status:     strings.TrimSpace(c.Query("status")),
		FailReason: strings.TrimSpace(c.Query("fail_reason")),
		ClientIP:   strings.TrimSpace(c.Query("client_ip")),
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

	logs, total, err := h.UserLoginLogService.ListAdmin(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "登录日志查询失败", err)
		return
	}

	response.SuccessWithPage(c, logs, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}
