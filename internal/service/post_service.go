package service

import (
	"time"

	"github.com/inkstone/internal/config"
	"github.com/inkstone/internal/constants"
	"github.com/inkstone/internal/logger"
	"github.com/inkstone/internal/models"
	"github.com/inkstone/internal/repository"
)

// NoticeDispatcher 公告发布后的通知派发入口，由队列客户端实现
type NoticeDispatcher interface {
	DispatchNoticePublished(postID uint) error
}

// PostService 文章业务服务：公开读取、浏览计数、点赞与后台管理。
type PostService struct {
	cfg        *config.Config
	repo       repository.PostRepository
	viewRepo   repository.PostViewRepository
	likeRepo   repository.LikeRepository
	dispatcher NoticeDispatcher
}

// NewPostService 创建文章服务
func NewPostService(cfg *config.Config, repo repository.PostRepository, viewRepo repository.PostViewRepository, likeRepo repository.LikeRepository, dispatcher NoticeDispatcher) *PostService {
	return &PostService{
		cfg:        cfg,
		repo:       repo,
		viewRepo:   viewRepo,
		likeRepo:   likeRepo,
		dispatcher: dispatcher,
	}
}

// PostInput 创建/更新文章输入
type PostInput struct {
	Slug        string
	Type        string
	Title       string
	Summary     string
	Content     string
	Thumbnail   string
	IsPublished *bool
}

var allowedPostTypes = map[string]struct{}{
	constants.PostTypeBlog:   {},
	constants.PostTypeNotice: {},
}

// ListPublic 获取公开文章列表
func (s *PostService) ListPublic(postType, search string, page, pageSize int) ([]models.Post, int64, error) {
	filter := repository.PostListFilter{
		Page:          page,
		PageSize:      pageSize,
		Type:          postType,
		Search:        search,
		OnlyPublished: true,
		OrderBy:       "published_at DESC, created_at DESC",
	}
	return s.repo.List(filter)
}

// GetPublicBySlug 获取公开文章详情
func (s *PostService) GetPublicBySlug(slug string) (*models.Post, error) {
	post, err := s.repo.GetBySlug(slug)
	if err != nil {
		return nil, err
	}
	if post == nil || !post.IsPublished {
		return nil, ErrPostNotFound
	}
	return post, nil
}

// TrackView 记录一次文章浏览，返回本次是否计入浏览数。
// 去重窗口内的重复浏览不计数也不报错。
func (s *PostService) TrackView(postID, userID uint, ip, userAgent string) (bool, error) {
	window := time.Duration(s.cfg.Security.Session.ViewDedupHours) * time.Hour
	if window <= 0 {
		window = 24 * time.Hour
	}
	return s.viewRepo.TrackView(postID, userID, ip, userAgent, window)
}

// Like 点赞，返回最新点赞数。重复点赞返回 ErrAlreadyLiked。
func (s *PostService) Like(userID, postID uint) (int64, error) {
	if err := s.requirePublished(postID); err != nil {
		return 0, err
	}
	count, err := s.likeRepo.Like(userID, postID)
	if err == repository.ErrAlreadyLiked {
		return 0, ErrAlreadyLiked
	}
	return count, err
}

// Unlike 取消点赞，返回最新点赞数。未点赞时返回 ErrNotLiked。
func (s *PostService) Unlike(userID, postID uint) (int64, error) {
	if err := s.requirePublished(postID); err != nil {
		return 0, err
	}
	count, err := s.likeRepo.Unlike(userID, postID)
	if err == repository.ErrNotLiked {
		return 0, ErrNotLiked
	}
	return count, err
}

// Liked 查询用户是否已点赞
func (s *PostService) Liked(userID, postID uint) (bool, error) {
	return s.likeRepo.Liked(userID, postID)
}

// ListAdmin 获取后台文章列表
func (s *PostService) ListAdmin(postType, search string, page, pageSize int) ([]models.Post, int64, error) {
	filter := repository.PostListFilter{
		Page:     page,
		PageSize: pageSize,
		Type:     postType,
		Search:   search,
		OrderBy:  "created_at DESC",
	}
	return s.repo.List(filter)
}

// GetByID 获取文章（后台）
func (s *PostService) GetByID(id uint) (*models.Post, error) {
	post, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	return post, nil
}

// Create 创建文章。公告类型发布时触发通知派发。
func (s *PostService) Create(authorID uint, input PostInput) (*models.Post, error) {
	if !isAllowedPostType(input.Type) {
		return nil, ErrInvalidPostType
	}

	count, err := s.repo.CountBySlug(input.Slug, 0)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrSlugExists
	}

	now := time.Now()
	post := models.Post{
		Slug:      input.Slug,
		Type:      input.Type,
		Title:     input.Title,
		Summary:   input.Summary,
		Content:   input.Content,
		Thumbnail: input.Thumbnail,
		AuthorID:  authorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.IsPublished != nil && *input.IsPublished {
		post.IsPublished = true
		post.PublishedAt = &now
	}

	if err := s.repo.Create(&post); err != nil {
		return nil, err
	}
	if post.IsPublished && post.Type == constants.PostTypeNotice {
		s.dispatchNotice(post.ID)
	}
	return &post, nil
}

// Update 更新文章。从未发布到发布的公告触发通知派发。
func (s *PostService) Update(id uint, input PostInput) (*models.Post, error) {
	if !isAllowedPostType(input.Type) {
		return nil, ErrInvalidPostType
	}

	post, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}

	count, err := s.repo.CountBySlug(input.Slug, id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrSlugExists
	}

	wasPublished := post.IsPublished
	now := time.Now()
	post.Slug = input.Slug
	post.Type = input.Type
	post.Title = input.Title
	post.Summary = input.Summary
	post.Content = input.Content
	post.Thumbnail = input.Thumbnail
	post.UpdatedAt = now
	if input.IsPublished != nil {
		post.IsPublished = *input.IsPublished
		if post.IsPublished && post.PublishedAt == nil {
			post.PublishedAt = &now
		}
	}

	if err := s.repo.Update(post); err != nil {
		return nil, err
	}
	if !wasPublished && post.IsPublished && post.Type == constants.PostTypeNotice {
		s.dispatchNotice(post.ID)
	}
	return post, nil
}

// Delete 删除文章
func (s *PostService) Delete(id uint) error {
	post, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if post == nil {
		return ErrPostNotFound
	}
	return s.repo.Delete(id)
}

func (s *PostService) requirePublished(postID uint) error {
	post, err := s.repo.GetByID(postID)
	if err != nil {
		return err
	}
	if post == nil || !post.IsPublished {
		return ErrPostNotFound
	}
	return nil
}

func (s *PostService) dispatchNotice(postID uint) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.DispatchNoticePublished(postID); err != nil {
		logger.Warnw("notice_dispatch_failed", "post_id", postID, "error", err)
	}
}

func isAllowedPostType(postType string) bool {
	_, ok := allowedPostTypes[postType]
	return ok
}
