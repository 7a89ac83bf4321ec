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

func setupPostServiceTest(t *testing.T) (*PostService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:post_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Post{}, &models.PostView{}, &models.Like{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	cfg := &config.Config{
		Security: config.SecurityConfig{
			Session: config.SessionPolicyConfig{ViewDedupHours: 24},
		},
	}
	svc := NewPostService(cfg,
		repository.NewPostRepository(db),
		repository.NewPostViewRepository(db),
		repository.NewLikeRepository(db),
		nil)
	return svc, db
}

func createPublishedTestPost(t *testing.T, db *gorm.DB, slug string) models.Post {
	t.Helper()
	now := time.Now()
	post := models.Post{
		Slug:        slug,
		Type:        constants.PostTypeBlog,
		Title:       "title " + slug,
		AuthorID:    1,
		IsPublished: true,
		PublishedAt: &now,
	}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("create post failed: %v", err)
	}
	return post
}

func TestTrackViewDedupWithinWindow(t *testing.T) {
	svc, db := setupPostServiceTest(t)
	post := createPublishedTestPost(t, db, "view-dedup")

	counted, err := svc.TrackView(post.ID, 9, "1.1.1.1", "agent")
	if err != nil {
		t.Fatalf("first view failed: %v", err)
	}
	if !counted {
		t.Fatal("first view must count")
	}

	counted, err = svc.TrackView(post.ID, 9, "1.1.1.1", "agent")
	if err != nil {
		t.Fatalf("second view failed: %v", err)
	}
	if counted {
		t.Fatal("view within dedup window must not count")
	}

	var reloaded models.Post
	if err := db.First(&reloaded, post.ID).Error; err != nil {
		t.Fatalf("reload post failed: %v", err)
	}
	if reloaded.ViewCount != 1 {
		t.Fatalf("expected view_count 1, got %d", reloaded.ViewCount)
	}
}

func TestTrackViewCountsAfterWindow(t *testing.T) {
	svc, db := setupPostServiceTest(t)
	post := createPublishedTestPost(t, db, "view-window")

	// 窗口外的历史浏览记录不参与去重
	old := models.PostView{
		PostID:   post.ID,
		UserID:   9,
		ViewedAt: time.Now().Add(-25 * time.Hour),
	}
	if err := db.Create(&old).Error; err != nil {
		t.Fatalf("create old view failed: %v", err)
	}

	counted, err := svc.TrackView(post.ID, 9, "1.1.1.1", "agent")
	if err != nil {
		t.Fatalf("track view failed: %v", err)
	}
	if !counted {
		t.Fatal("view after window must count again")
	}
}

func TestTrackViewAnonymousIdentity(t *testing.T) {
	svc, db := setupPostServiceTest(t)
	post := createPublishedTestPost(t, db, "view-anon")

	counted, err := svc.TrackView(post.ID, 0, "1.1.1.1", "agent-a")
	if err != nil || !counted {
		t.Fatalf("first anonymous view: counted=%v err=%v", counted, err)
	}
	counted, err = svc.TrackView(post.ID, 0, "1.1.1.1", "agent-a")
	if err != nil || counted {
		t.Fatalf("duplicate anonymous view: counted=%v err=%v", counted, err)
	}
	// 不同 UA 视为不同访客
	counted, err = svc.TrackView(post.ID, 0, "1.1.1.1", "agent-b")
	if err != nil || !counted {
		t.Fatalf("different agent view: counted=%v err=%v", counted, err)
	}
}

func TestLikeAndUnlikeLifecycle(t *testing.T) {
	svc, db := setupPostServiceTest(t)
	post := createPublishedTestPost(t, db, "like-flow")

	count, err := svc.Like(9, post.ID)
	if err != nil {
		t.Fatalf("like failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected like_count 1, got %d", count)
	}

	if _, err := svc.Like(9, post.ID); err != ErrAlreadyLiked {
		t.Fatalf("expected ErrAlreadyLiked, got %v", err)
	}

	liked, err := svc.Liked(9, post.ID)
	if err != nil || !liked {
		t.Fatalf("expected liked state, got liked=%v err=%v", liked, err)
	}

	count, err = svc.Unlike(9, post.ID)
	if err != nil {
		t.Fatalf("unlike failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected like_count 0, got %d", count)
	}

	if _, err := svc.Unlike(9, post.ID); err != ErrNotLiked {
		t.Fatalf("expected ErrNotLiked, got %v", err)
	}
}

func TestUnlikeCounterFlooredAtZero(t *testing.T) {
	svc, db := setupPostServiceTest(t)
	post := createPublishedTestPost(t, db, "like-floor")

	// 计数被外部改坏为 0，但点赞记录存在
	if err := db.Create(&models.Like{UserID: 9, PostID: post.ID}).Error; err != nil {
		t.Fatalf("create like failed: %v", err)
	}

	count, err := svc.Unlike(9, post.ID)
	if err != nil {
		t.Fatalf("unlike failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected counter floored at 0, got %d", count)
	}
}

func TestLikeUnpublishedPostRejected(t *testing.T) {
	svc, db := setupPostServiceTest(t)
	post := models.Post{Slug: "draft", Type: constants.PostTypeBlog, Title: "draft", AuthorID: 1}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("create draft failed: %v", err)
	}

	if _, err := svc.Like(9, post.ID); err != ErrPostNotFound {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestGetPublicBySlugHidesDrafts(t *testing.T) {
	svc, db := setupPostServiceTest(t)
	post := models.Post{Slug: "hidden-draft", Type: constants.PostTypeBlog, Title: "draft", AuthorID: 1}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("create draft failed: %v", err)
	}

	if _, err := svc.GetPublicBySlug("hidden-draft"); err != ErrPostNotFound {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
	if _, err := svc.GetPublicBySlug("missing"); err != ErrPostNotFound {
		t.Fatalf("expected ErrPostNotFound for missing slug, got %v", err)
	}
}

func TestCreatePostSlugUniqueness(t *testing.T) {
	svc, db := setupPostServiceTest(t)
	createPublishedTestPost(t, db, "taken")

	published := true
	_, err := svc.Create(1, PostInput{
		Slug:        "taken",
		Type:        constants.PostTypeBlog,
		Title:       "dup",
		IsPublished: &published,
	})
	if err != ErrSlugExists {
		t.Fatalf("expected ErrSlugExists, got %v", err)
	}

	post, err := svc.Create(1, PostInput{
		Slug:        "fresh",
		Type:        constants.PostTypeBlog,
		Title:       "fresh",
		IsPublished: &published,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if post.PublishedAt == nil {
		t.Fatal("published post must have published_at")
	}
}
