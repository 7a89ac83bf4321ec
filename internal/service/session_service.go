package service

import (
	"sync"
	"time"

	"github.com/inkstone/internal/config"
	"github.com/inkstone/internal/constants"
	"github.com/inkstone/internal/logger"
	"github.com/inkstone/internal/models"
	"github.com/inkstone/internal/repository"
)

// 过期清理中，已停用会话的保留时长。超过后视为陈旧直接删除。
const inactiveSessionRetention = 24 * time.Hour

// 可疑会话检测的观察窗口
const suspiciousWindow = 24 * time.Hour

// SessionService 会话管理与清理服务
type SessionService struct {
	cfg         *config.Config
	sessionRepo repository.SessionRepository
}

// NewSessionService 创建会话服务
func NewSessionService(cfg *config.Config, sessionRepo repository.SessionRepository) *SessionService {
	return &SessionService{cfg: cfg, sessionRepo: sessionRepo}
}

// CleanupOptions 清理参数
type CleanupOptions struct {
	UserID      uint // 仅清理指定用户（duplicate 类型有效）
	MaxSessions int  // 每用户保留会话数上限，0 取配置默认
}

// CleanupResult 单类清理的执行结果
type CleanupResult struct {
	Type        string `json:"type"`
	Deleted     int64  `json:"deleted"`
	Deactivated int64  `json:"deactivated"`
}

// List 管理端分页查询会话
func (s *SessionService) List(filter repository.SessionListFilter) ([]models.Session, int64, error) {
	return s.sessionRepo.List(filter)
}

// Get 查询单个会话
func (s *SessionService) Get(sessionID string) (*models.Session, error) {
	session, err := s.sessionRepo.GetBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Terminate 停用会话（保留记录）
func (s *SessionService) Terminate(sessionID string) error {
	session, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	return s.sessionRepo.Deactivate(session.SessionID)
}

// Delete 删除会话
func (s *SessionService) Delete(sessionID string) error {
	session, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	return s.sessionRepo.DeleteBySessionID(session.SessionID)
}

// DeleteByUser 删除用户的全部会话
func (s *SessionService) DeleteByUser(userID uint) (int64, error) {
	if userID == 0 {
		return 0, ErrNotFound
	}
	return s.sessionRepo.DeleteByUser(userID)
}

// Stats 会话统计
func (s *SessionService) Stats() (*repository.SessionStats, error) {
	return s.sessionRepo.Stats()
}

// Cleanup 执行一类清理并返回各自的结果。
// all 类型并发执行 expired 与 suspicious，互不回滚：
// 先完成的清理保留其效果，首个失败作为整体错误返回。
func (s *SessionService) Cleanup(cleanupType string, opts CleanupOptions) ([]CleanupResult, error) {
	switch cleanupType {
	case constants.SessionCleanupExpired:
		result, err := s.cleanupExpired()
		if err != nil {
			return nil, err
		}
		return []CleanupResult{result}, nil
	case constants.SessionCleanupDuplicate:
		result, err := s.cleanupDuplicate(opts)
		if err != nil {
			return nil, err
		}
		return []CleanupResult{result}, nil
	case constants.SessionCleanupSuspicious:
		result, err := s.cleanupSuspicious()
		if err != nil {
			return nil, err
		}
		return []CleanupResult{result}, nil
	case constants.SessionCleanupAll:
		return s.cleanupAll()
	default:
		return nil, ErrInvalidCleanupType
	}
}

func (s *SessionService) cleanupExpired() (CleanupResult, error) {
	now := time.Now()
	deleted, err := s.sessionRepo.DeleteExpired(now, now.Add(-inactiveSessionRetention))
	if err != nil {
		return CleanupResult{}, err
	}
	logger.Infow("session_cleanup_expired", "deleted", deleted)
	return CleanupResult{Type: constants.SessionCleanupExpired, Deleted: deleted}, nil
}

// cleanupDuplicate 每用户仅保留最近活跃的 N 个会话，其余删除。
func (s *SessionService) cleanupDuplicate(opts CleanupOptions) (CleanupResult, error) {
	max := opts.MaxSessions
	if max <= 0 {
		max = s.cfg.Security.Session.MaxPerUser
	}
	if max <= 0 {
		max = 5
	}

	var userIDs []uint
	if opts.UserID != 0 {
		userIDs = []uint{opts.UserID}
	} else {
		ids, err := s.sessionRepo.UserIDsExceeding(max)
		if err != nil {
			return CleanupResult{}, err
		}
		userIDs = ids
	}

	var deleted int64
	for _, userID := range userIDs {
		sessions, err := s.sessionRepo.ListByUser(userID, true)
		if err != nil {
			return CleanupResult{Type: constants.SessionCleanupDuplicate, Deleted: deleted}, err
		}
		if len(sessions) <= max {
			continue
		}
		surplus := make([]uint, 0, len(sessions)-max)
		for _, session := range sessions[max:] {
			surplus = append(surplus, session.ID)
		}
		n, err := s.sessionRepo.DeleteIDs(surplus)
		deleted += n
		if err != nil {
			return CleanupResult{Type: constants.SessionCleanupDuplicate, Deleted: deleted}, err
		}
	}
	logger.Infow("session_cleanup_duplicate", "users", len(userIDs), "deleted", deleted)
	return CleanupResult{Type: constants.SessionCleanupDuplicate, Deleted: deleted}, nil
}

// cleanupSuspicious 窗口内同 IP 活跃会话超过阈值时，保留最新的几个，其余停用。
// 停用而非删除，保留记录供后台排查。
func (s *SessionService) cleanupSuspicious() (CleanupResult, error) {
	threshold := s.cfg.Security.Session.SuspiciousIPThreshold
	if threshold <= 0 {
		threshold = 10
	}
	keep := s.cfg.Security.Session.SuspiciousKeep
	if keep <= 0 {
		keep = 3
	}

	now := time.Now()
	since := now.Add(-suspiciousWindow)
	ips, err := s.sessionRepo.IPsExceeding(since, now, threshold)
	if err != nil {
		return CleanupResult{}, err
	}

	var deactivated int64
	for _, ip := range ips {
		sessions, err := s.sessionRepo.ListRecentByIP(ip, since, now)
		if err != nil {
			return CleanupResult{Type: constants.SessionCleanupSuspicious, Deactivated: deactivated}, err
		}
		if len(sessions) <= keep {
			continue
		}
		surplus := make([]uint, 0, len(sessions)-keep)
		for _, session := range sessions[keep:] {
			surplus = append(surplus, session.ID)
		}
		n, err := s.sessionRepo.DeactivateIDs(surplus)
		deactivated += n
		if err != nil {
			return CleanupResult{Type: constants.SessionCleanupSuspicious, Deactivated: deactivated}, err
		}
		logger.Warnw("session_cleanup_suspicious_ip", "ip", ip, "deactivated", n)
	}
	return CleanupResult{Type: constants.SessionCleanupSuspicious, Deactivated: deactivated}, nil
}

func (s *SessionService) cleanupAll() ([]CleanupResult, error) {
	results := make([]CleanupResult, 2)
	errs := make([]error, 2)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0], errs[0] = s.cleanupExpired()
	}()
	go func() {
		defer wg.Done()
		results[1], errs[1] = s.cleanupSuspicious()
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
