package public

import (
	"strconv"

	"github.com/inkstone/internal/http/handlers/shared"
	"github.com/inkstone/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetMyLoginLogs 获取当前用户登录日志
func (h *Handler) GetMyLoginLogs(c *gin.Context) {
	userID, ok := shared.GetContextUint(c, "user_id")
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = shared.NormalizePagination(page, pageSize)

	logs, total, err := h.UserLoginLogService.ListByUser(userID, page, pageSize)
	if err != nil {
		shared.RespondError(c, response.CodeInternal, "登录日志查询失败", err)
		return
	}

	response.SuccessWithPage(c, logs, buildPagination(page, pageSize, total))
}
