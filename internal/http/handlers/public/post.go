package public

import (
	"strconv"
	"strings"

	"github.com/inkstone/internal/http/handlers/shared"
	"github.com/inkstone/internal/http/response"
	"github.com/inkstone/internal/models"

	"github.com/gin-gonic/gin"
)

// GetPosts 公开文章列表，仅返回已发布内容。
func (h *Handler) GetPosts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = shared.NormalizePagination(page, pageSize)

	postType := strings.TrimSpace(c.Query("type"))
	search := strings.TrimSpace(c.Query("search"))

	posts, total, err := h.PostService.ListPublic(postType, search, page, pageSize)
	if err != nil {
		respondPostError(c, err)
		return
	}

	items := make([]gin.H, 0, len(posts))
	for i := range posts {
		items = append(items, postListView(&posts[i]))
	}
	response.SuccessWithPage(c, items, buildPagination(page, pageSize, total))
}

// GetPostBySlug 公开文章详情，访问时记录去重后的浏览。
func (h *Handler) GetPostBySlug(c *gin.Context) {
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		shared.RespondError(c, response.CodeBadRequest, "参数不合法", nil)
		return
	}

	post, err := h.PostService.GetPublicBySlug(slug)
	if err != nil {
		respondPostError(c, err)
		return
	}

	// 浏览统计失败不影响文章返回
	viewerID := h.viewerUserID(c)
	counted, err := h.PostService.TrackView(post.ID, viewerID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		shared.RequestLog(c).Warnw("track_view_failed", "post_id", post.ID, "error", err)
	} else if counted {
		post.ViewCount++
	}

	liked := false
	if viewerID != 0 {
		if ok, likedErr := h.PostService.Liked(viewerID, post.ID); likedErr == nil {
			liked = ok
		}
	}

	data := postDetailView(post)
	data["liked"] = liked
	response.Success(c, data)
}

type likeRequest struct {
	PostID uint   `json:"post_id" binding:"required"`
	Action string `json:"action" binding:"required"`
}

// LikePost 点赞或取消点赞，重复操作返回冲突。
func (h *Handler) LikePost(c *gin.Context) {
	var req likeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondError(c, response.CodeBadRequest, "参数不合法", nil)
		return
	}

	userID, ok := shared.GetContextUint(c, "user_id")
	if !ok {
		return
	}

	var (
		likeCount int64
		err       error
	)
	switch strings.ToLower(req.Action) {
	case "like":
		likeCount, err = h.PostService.Like(userID, req.PostID)
	case "unlike":
		likeCount, err = h.PostService.Unlike(userID, req.PostID)
	default:
		shared.RespondError(c, response.CodeBadRequest, "参数不合法", nil)
		return
	}
	if err != nil {
		respondPostError(c, err)
		return
	}

	liked := strings.ToLower(req.Action) == "like"
	response.Success(c, gin.H{
		"post_id":    req.PostID,
		"liked":      liked,
		"like_count": likeCount,
	})
}

// GetLikeState 查询当前用户对文章的点赞状态。
func (h *Handler) GetLikeState(c *gin.Context) {
	postID, err := strconv.ParseUint(c.Query("post_id"), 10, 64)
	if err != nil || postID == 0 {
		shared.RespondError(c, response.CodeBadRequest, "参数不合法", nil)
		return
	}

	userID, ok := shared.GetContextUint(c, "user_id")
	if !ok {
		return
	}

	liked, err := h.PostService.Liked(userID, uint(postID))
	if err != nil {
		respondPostError(c, err)
		return
	}
	response.Success(c, gin.H{"post_id": uint(postID), "liked": liked})
}

// viewerUserID 尽力识别访问者，未登录按匿名处理。
func (h *Handler) viewerUserID(c *gin.Context) uint {
	grant, denial := h.GuardService.Authorize(c.Request.Context(), h.guardInput(c), nil)
	if denial != nil || grant == nil {
		return 0
	}
	return grant.UserID
}

func postListView(post *models.Post) gin.H {
	return gin.H{
		"id":           post.ID,
		"slug":         post.Slug,
		"type":         post.Type,
		"title":        post.Title,
		"summary":      post.Summary,
		"thumbnail":    post.Thumbnail,
		"view_count":   post.ViewCount,
		"like_count":   post.LikeCount,
		"published_at": post.PublishedAt,
	}
}

func postDetailView(post *models.Post) gin.H {
	view := postListView(post)
	view["content"] = post.Content
	view["author_id"] = post.AuthorID
	return view
}

func buildPagination(page, pageSize int, total int64) response.Pagination {
	return response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
}
