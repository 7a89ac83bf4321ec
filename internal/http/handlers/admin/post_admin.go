package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/inkstone/internal/http/handlers/shared"
	"github.com/inkstone/internal/http/response"
	"github.com/inkstone/internal/service"

	"github.com/gin-gonic/gin"
)

// GetAdminPosts 管理端文章列表（含未发布）
func (h *Handler) GetAdminPosts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = shared.NormalizePagination(page, pageSize)

	postType := strings.TrimSpace(c.Query("type"))
	search := strings.TrimSpace(c.Query("search"))

	posts, total, err := h.PostService.ListAdmin(postType, search, page, pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "文章查询失败", err)
		return
	}

	response.SuccessWithPage(c, posts, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetAdminPost 管理端文章详情
func (h *Handler) GetAdminPost(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "参数不合法", nil)
		return
	}

	post, err := h.PostService.GetByID(uint(id))
	if err != nil {
		respondAdminPostError(c, err)
		return
	}
	response.Success(c, post)
}

type postRequest struct {
	Slug        string `json:"slug" binding:"required"`
	Type        string `json:"type" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Summary     string `json:"summary"`
	Content     string `json:"content"`
	Thumbnail   string `json:"thumbnail"`
	IsPublished *bool  `json:"is_published"`
}

func (r *postRequest) toInput() service.PostInput {
	return service.PostInput{
		Slug:        strings.TrimSpace(r.Slug),
		Type:        strings.TrimSpace(r.Type),
		Title:       strings.TrimSpace(r.Title),
		Summary:     r.Summary,
		Content:     r.Content,
		Thumbnail:   r.Thumbnail,
		IsPublished: r.IsPublished,
	}
}

// CreateAdminPost 创建文章，发布公告时触发通知分发。
func (h *Handler) CreateAdminPost(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "参数不合法", nil)
		return
	}

	authorID, ok := shared.GetContextUint(c, "user_id")
	if !ok {
		return
	}

	post, err := h.PostService.Create(authorID, req.toInput())
	if err != nil {
		respondAdminPostError(c, err)
		return
	}
	response.Success(c, post)
}

// UpdateAdminPost 更新文章
func (h *Handler) UpdateAdminPost(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "参数不合法", nil)
		return
	}

	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "参数不合法", nil)
		return
	}

	post, err := h.PostService.Update(uint(id), req.toInput())
	if err != nil {
		respondAdminPostError(c, err)
		return
	}
	response.Success(c, post)
}

// DeleteAdminPost 删除文章（软删除）
func (h *Handler) DeleteAdminPost(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "参数不合法", nil)
		return
	}

	if err := h.PostService.Delete(uint(id)); err != nil {
		respondAdminPostError(c, err)
		return
	}
	response.Success(c, nil)
}

func respondAdminPostError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPostNotFound), errors.Is(err, service.ErrNotFound):
		respondError(c, response.CodeNotFound, "文章不存在", nil)
	case errors.Is(err, service.ErrSlugExists):
		respondError(c, response.CodeConflict, "Slug 已存在", nil)
	case errors.Is(err, service.ErrInvalidPostType):
		respondError(c, response.CodeBadRequest, "不支持的文章类型", nil)
	default:
		respondError(c, response.CodeInternal, "文章处理失败", err)
	}
}
