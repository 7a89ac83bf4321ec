package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/inkstone/internal/config"
	"github.com/inkstone/internal/constants"
	"github.com/inkstone/internal/models"
	"github.com/inkstone/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupSessionServiceTest(t *testing.T) (*SessionService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:session_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Session{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	cfg := &config.Config{
		Security: config.SecurityConfig{
			Session: config.SessionPolicyConfig{
				MaxPerUser:            5,
				SuspiciousIPThreshold: 10,
				SuspiciousKeep:        3,
			},
		},
	}
	return NewSessionService(cfg, repository.NewSessionRepository(db)), db
}

func createCleanupTestSession(t *testing.T, db *gorm.DB, userID uint, ip string, active bool, updatedAt, expiresAt time.Time) models.Session {
	t.Helper()
	session := models.Session{
		SessionID:      fmt.Sprintf("sess-%d-%d", userID, updatedAt.UnixNano()),
		UserID:         userID,
		Fingerprint:    "fp",
		IPAddress:      ip,
		LoginType:      constants.LoginTypeLocal,
		Active:         active,
		LastActivityAt: updatedAt,
		ExpiresAt:      expiresAt,
		CreatedAt:      updatedAt,
		UpdatedAt:      updatedAt,
	}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	return session
}

func TestCleanupExpiredSessions(t *testing.T) {
	svc, db := setupSessionServiceTest(t)
	now := time.Now()

	// 已过期、停用且陈旧、仍然有效 各一
	createCleanupTestSession(t, db, 1, "1.1.1.1", true, now.Add(-time.Hour), now.Add(-time.Minute))
	createCleanupTestSession(t, db, 1, "1.1.1.1", false, now.Add(-48*time.Hour), now.Add(time.Hour))
	keep := createCleanupTestSession(t, db, 1, "1.1.1.1", true, now, now.Add(time.Hour))

	results, err := svc.Cleanup(constants.SessionCleanupExpired, CleanupOptions{})
	if err != nil {
		t.Fatalf("cleanup expired failed: %v", err)
	}
	if len(results) != 1 || results[0].Deleted != 2 {
		t.Fatalf("expected 2 deleted, got %+v", results)
	}

	var remaining []models.Session
	if err := db.Find(&remaining).Error; err != nil {
		t.Fatalf("load sessions failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != keep.ID {
		t.Fatalf("expected only the valid session to survive, got %d rows", len(remaining))
	}
}

func TestCleanupDuplicateKeepsNewestFive(t *testing.T) {
	svc, db := setupSessionServiceTest(t)
	now := time.Now()

	// 同一用户 8 个活跃会话，活跃时间依次递增
	var ids []uint
	for i := 0; i < 8; i++ {
		s := createCleanupTestSession(t, db, 7, "2.2.2.2", true,
			now.Add(time.Duration(i-8)*time.Minute), now.Add(time.Hour))
		ids = append(ids, s.ID)
	}

	results, err := svc.Cleanup(constants.SessionCleanupDuplicate, CleanupOptions{})
	if err != nil {
		t.Fatalf("cleanup duplicate failed: %v", err)
	}
	if len(results) != 1 || results[0].Deleted != 3 {
		t.Fatalf("expected 3 deleted, got %+v", results)
	}

	var remaining []models.Session
	if err := db.Order("updated_at asc").Find(&remaining).Error; err != nil {
		t.Fatalf("load sessions failed: %v", err)
	}
	if len(remaining) != 5 {
		t.Fatalf("expected 5 sessions to survive, got %d", len(remaining))
	}
	// 保留的应是活跃时间最新的 5 个（即创建序列的后 5 个）
	for i, session := range remaining {
		if session.ID != ids[3+i] {
			t.Fatalf("expected newest sessions kept, got id %d at position %d", session.ID, i)
		}
	}
}

func TestCleanupSuspiciousDeactivatesExcess(t *testing.T) {
	svc, db := setupSessionServiceTest(t)
	now := time.Now()

	// 同一 IP 12 个活跃会话落在观察窗口内
	for i := 0; i < 12; i++ {
		createCleanupTestSession(t, db, uint(100+i), "3.3.3.3", true,
			now.Add(time.Duration(i-12)*time.Minute), now.Add(time.Hour))
	}
	// 其他 IP 不受影响
	other := createCleanupTestSession(t, db, 200, "4.4.4.4", true, now, now.Add(time.Hour))

	results, err := svc.Cleanup(constants.SessionCleanupSuspicious, CleanupOptions{})
	if err != nil {
		t.Fatalf("cleanup suspicious failed: %v", err)
	}
	if len(results) != 1 || results[0].Deactivated != 9 {
		t.Fatalf("expected 9 deactivated, got %+v", results)
	}

	var activeCount int64
	if err := db.Model(&models.Session{}).
		Where("ip_address = ? AND active = ?", "3.3.3.3", true).
		Count(&activeCount).Error; err != nil {
		t.Fatalf("count active failed: %v", err)
	}
	if activeCount != 3 {
		t.Fatalf("expected 3 active sessions kept, got %d", activeCount)
	}

	var otherSession models.Session
	if err := db.First(&otherSession, other.ID).Error; err != nil {
		t.Fatalf("load other session failed: %v", err)
	}
	if !otherSession.Active {
		t.Fatal("session from another ip must stay active")
	}
}

func TestCleanupAllRunsBothSweeps(t *testing.T) {
	svc, db := setupSessionServiceTest(t)
	now := time.Now()

	createCleanupTestSession(t, db, 1, "5.5.5.5", true, now.Add(-time.Hour), now.Add(-time.Minute))
	for i := 0; i < 11; i++ {
		createCleanupTestSession(t, db, uint(300+i), "6.6.6.6", true,
			now.Add(time.Duration(i-11)*time.Minute), now.Add(time.Hour))
	}

	results, err := svc.Cleanup(constants.SessionCleanupAll, CleanupOptions{})
	if err != nil {
		t.Fatalf("cleanup all failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	byType := map[string]CleanupResult{}
	for _, result := range results {
		byType[result.Type] = result
	}
	if byType[constants.SessionCleanupExpired].Deleted != 1 {
		t.Fatalf("expected 1 expired deleted, got %+v", byType)
	}
	if byType[constants.SessionCleanupSuspicious].Deactivated != 8 {
		t.Fatalf("expected 8 deactivated, got %+v", byType)
	}
}

func TestCleanupRejectsUnknownType(t *testing.T) {
	svc, _ := setupSessionServiceTest(t)
	if _, err := svc.Cleanup("bogus", CleanupOptions{}); err != ErrInvalidCleanupType {
		t.Fatalf("expected ErrInvalidCleanupType, got %v", err)
	}
}
