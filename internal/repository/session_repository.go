package repository

import (
	"errors"
	"time"

	"github.com/inkstone/internal/models"

	"gorm.io/gorm"
)

// SessionStats 会话统计
type SessionStats struct {
	Total       int64            `json:"total"`
	Active      int64            `json:"active"`
	Inactive    int64            `json:"inactive"`
	ByLoginType map[string]int64 `json:"by_login_type"`
}

// SessionRepository 会话数据访问接口
type SessionRepository interface {
	Create(session *models.Session) error
	GetBySessionID(sessionID string) (*models.Session, error)
	Update(session *models.Session) error
	Touch(sessionID string, at time.Time, expiresAt time.Time) error
	Deactivate(sessionID string) error
	DeleteBySessionID(sessionID string) error
	DeleteByUser(userID uint) (int64, error)
	List(filter SessionListFilter) ([]models.Session, int64, error)
	ListByUser(userID uint, activeOnly bool) ([]models.Session, error)
	Stats() (*SessionStats, error)
	DeleteExpired(now time.Time, inactiveBefore time.Time) (int64, error)
	UserIDsExceeding(max int) ([]uint, error)
	DeleteIDs(ids []uint) (int64, error)
	DeactivateIDs(ids []uint) (int64, error)
	IPsExceeding(since time.Time, now time.Time, threshold int) ([]string, error)
	ListRecentByIP(ip string, since time.Time, now time.Time) ([]models.Session, error)
}

// GormSessionRepository GORM 实现
type GormSessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建会话仓库
func NewSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

// Create 创建会话
func (r *GormSessionRepository) Create(session *models.Session) error {
	return r.db.Create(session).Error
}

// GetBySessionID 根据会话标识获取会话
func (r *GormSessionRepository) GetBySessionID(sessionID string) (*models.Session, error) {
	var session models.Session
	if err := r.db.Where("session_id = ?", sessionID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// Update 更新会话
func (r *GormSessionRepository) Update(session *models.Session) error {
	return r.db.Save(session).Error
}

// Touch 刷新会话活跃时间并顺延过期时间
func (r *GormSessionRepository) Touch(sessionID string, at time.Time, expiresAt time.Time) error {
	return r.db.Model(&models.Session{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"last_activity_at": at,
			"expires_at":       expiresAt,
			"updated_at":       at,
		}).Error
}

// Deactivate 将会话标记为不活跃
func (r *GormSessionRepository) Deactivate(sessionID string) error {
	return r.db.Model(&models.Session{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"active":     false,
			"updated_at": time.Now(),
		}).Error
}

// DeleteBySessionID 根据会话标识删除会话
func (r *GormSessionRepository) DeleteBySessionID(sessionID string) error {
	return r.db.Where("session_id = ?", sessionID).Delete(&models.Session{}).Error
}

// DeleteByUser 删除用户的全部会话
func (r *GormSessionRepository) DeleteByUser(userID uint) (int64, error) {
	result := r.db.Where("user_id = ?", userID).Delete(&models.Session{})
	return result.RowsAffected, result.Error
}

// List 管理端会话列表
func (r *GormSessionRepository) List(filter SessionListFilter) ([]models.Session, int64, error) {
	query := r.db.Model(&models.Session{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.IPAddress != "" {
		query = query.Where("ip_address = ?", filter.IPAddress)
	}
	if filter.LoginType != "" {
		query = query.Where("login_type = ?", filter.LoginType)
	}
	if filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var sessions []models.Session
	if err := query.Order("updated_at desc").Find(&sessions).Error; err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// ListByUser 查询用户会话（按活跃时间倒序）
func (r *GormSessionRepository) ListByUser(userID uint, activeOnly bool) ([]models.Session, error) {
	query := r.db.Where("user_id = ?", userID)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var sessions []models.Session
	if err := query.Order("updated_at desc").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// Stats 会话统计
func (r *GormSessionRepository) Stats() (*SessionStats, error) {
	stats := &SessionStats{ByLoginType: map[string]int64{}}
	if err := r.db.Model(&models.Session{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&models.Session{}).Where("active = ?", true).Count(&stats.Active).Error; err != nil {
		return nil, err
	}
	stats.Inactive = stats.Total - stats.Active

	type loginTypeCount struct {
		LoginType string
		Count     int64
	}
	var rows []loginTypeCount
	if err := r.db.Model(&models.Session{}).
		Select("login_type, count(*) as count").
		Group("login_type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.ByLoginType[row.LoginType] = row.Count
	}
	return stats, nil
}

// DeleteExpired 删除过期会话
// 过期的定义：expires_at 已到期，或已停用且 updated_at 早于 inactiveBefore。
func (r *GormSessionRepository) DeleteExpired(now time.Time, inactiveBefore time.Time) (int64, error) {
	result := r.db.
		Where("expires_at <= ?", now).
		Or("active = ? AND updated_at < ?", false, inactiveBefore).
		Delete(&models.Session{})
	return result.RowsAffected, result.Error
}

// UserIDsExceeding 查询活跃会话数超过上限的用户
func (r *GormSessionRepository) UserIDsExceeding(max int) ([]uint, error) {
	var userIDs []uint
	if err := r.db.Model(&models.Session{}).
		Where("active = ?", true).
		Group("user_id").
		Having("count(*) > ?", max).
		Pluck("user_id", &userIDs).Error; err != nil {
		return nil, err
	}
	return userIDs, nil
}

// DeleteIDs 按主键批量删除会话
func (r *GormSessionRepository) DeleteIDs(ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Delete(&models.Session{}, ids)
	return result.RowsAffected, result.Error
}

// DeactivateIDs 按主键批量停用会话
func (r *GormSessionRepository) DeactivateIDs(ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.Session{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"active":     false,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// IPsExceeding 查询窗口内活跃会话数超过阈值的 IP
func (r *GormSessionRepository) IPsExceeding(since time.Time, now time.Time, threshold int) ([]string, error) {
	var ips []string
	if err := r.db.Model(&models.Session{}).
		Where("active = ? AND expires_at > ? AND created_at >= ?", true, now, since).
		Group("ip_address").
		Having("count(*) > ?", threshold).
		Pluck("ip_address", &ips).Error; err != nil {
		return nil, err
	}
	return ips, nil
}

// ListRecentByIP 查询某 IP 窗口内的活跃会话（按创建时间倒序）
func (r *GormSessionRepository) ListRecentByIP(ip string, since time.Time, now time.Time) ([]models.Session, error) {
	var sessions []models.Session
	if err := r.db.
		Where("ip_address = ? AND active = ? AND expires_at > ? AND created_at >= ?", ip, true, now, since).
		Order("created_at desc").
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}
