package repository

import (
	"errors"

	"github.com/inkstone/internal/models"

	"gorm.io/gorm"
)

// PostRepository 文章数据访问接口
type PostRepository interface {
	List(filter PostListFilter) ([]models.Post, int64, error)
	GetByID(id uint) (*models.Post, error)
	GetBySlug(slug string) (*models.Post, error)
	Create(post *models.Post) error
	Update(post *models.Post) error
	Delete(id uint) error
	CountBySlug(slug string, excludeID uint) (int64, error)
	IncrementViewCount(tx *gorm.DB, id uint) error
}

// GormPostRepository GORM 实现
type GormPostRepository struct {
	db *gorm.DB
}

// NewPostRepository 创建文章仓库
func NewPostRepository(db *gorm.DB) *GormPostRepository {
	return &GormPostRepository{db: db}
}

// List 查询文章列表
func (r *GormPostRepository) List(filter PostListFilter) ([]models.Post, int64, error) {
	query := r.db.Model(&models.Post{})
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("title LIKE ? OR summary LIKE ?", like, like)
	}
	if filter.OnlyPublished {
		query = query.Where("is_published = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "created_at desc"
	}
	var posts []models.Post
	if err := query.Order(orderBy).Find(&posts).Error; err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// GetByID 根据 ID 获取文章
func (r *GormPostRepository) GetByID(id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// GetBySlug 根据 slug 获取文章
func (r *GormPostRepository) GetBySlug(slug string) (*models.Post, error) {
	var post models.Post
	if err := r.db.Where("slug = ?", slug).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// Create 创建文章
func (r *GormPostRepository) Create(post *models.Post) error {
	return r.db.Create(post).Error
}

// Update 更新文章
func (r *GormPostRepository) Update(post *models.Post) error {
	return r.db.Save(post).Error
}

// Delete 删除文章（软删除）
func (r *GormPostRepository) Delete(id uint) error {
	return r.db.Delete(&models.Post{}, id).Error
}

// CountBySlug 统计 slug 占用数，excludeID 用于更新时排除自身
func (r *GormPostRepository) CountBySlug(slug string, excludeID uint) (int64, error) {
	query := r.db.Model(&models.Post{}).Where("slug = ?", slug)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// IncrementViewCount 浏览计数加一，tx 为空时使用默认连接
func (r *GormPostRepository) IncrementViewCount(tx *gorm.DB, id uint) error {
	db := tx
	if db == nil {
		db = r.db
	}
	return db.Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}
