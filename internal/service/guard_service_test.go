package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/inkstone/internal/constants"
	"github.com/inkstone/internal/models"
	"github.com/inkstone/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupGuardTest(t *testing.T) (*GuardService, *TokenService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:guard_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	tokens := NewTokenService(testTokenConfig())
	guard := NewGuardService(tokens, repository.NewUserRepository(db))
	return guard, tokens, db
}

func createGuardTestUser(t *testing.T, db *gorm.DB, email, roles, status string) models.User {
	t.Helper()
	user := models.User{
		Email:        email,
		PasswordHash: "x",
		Roles:        roles,
		Status:       status,
		LoginType:    constants.LoginTypeLocal,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return user
}

func issueGuardTestTokens(t *testing.T, tokens *TokenService, payload TokenPayload) (string, string) {
	t.Helper()
	access, _, err := tokens.IssueAccess(payload)
	if err != nil {
		t.Fatalf("issue access failed: %v", err)
	}
	refresh, _, err := tokens.IssueRefresh(payload)
	if err != nil {
		t.Fatalf("issue refresh failed: %v", err)
	}
	return access, refresh
}

func TestAuthorizeMatchingTriple(t *testing.T) {
	guard, tokens, db := setupGuardTest(t)
	user := createGuardTestUser(t, db, "guard-ok@example.com", constants.RoleUser, constants.UserStatusActive)

	payload := TokenPayload{
		UserID:      user.ID,
		Email:       user.Email,
		Roles:       []string{constants.RoleUser},
		SessionID:   "session-match",
		Fingerprint: "fp-match",
	}
	access, refresh := issueGuardTestTokens(t, tokens, payload)

	grant, denial := guard.Authorize(context.Background(), GuardInput{
		Bearer:            access,
		RefreshCookie:     refresh,
		FingerprintCookie: payload.Fingerprint,
		ClientIP:          "10.0.0.1",
		UserAgent:         "test-agent",
	}, nil)
	if denial != nil {
		t.Fatalf("expected grant, got denial %s", denial.Reason)
	}
	if grant.UserID != user.ID || grant.SessionID != payload.SessionID {
		t.Fatalf("unexpected grant: %+v", grant)
	}
	if !grant.HasRole(constants.RoleUser) {
		t.Fatalf("expected user role in grant, got %v", grant.Roles)
	}
}

func TestAuthorizeMissingCookies(t *testing.T) {
	guard, tokens, db := setupGuardTest(t)
	user := createGuardTestUser(t, db, "guard-cookie@example.com", constants.RoleUser, constants.UserStatusActive)

	payload := TokenPayload{UserID: user.ID, SessionID: "s1", Fingerprint: "fp1"}
	access, refresh := issueGuardTestTokens(t, tokens, payload)

	cases := []struct {
		name  string
		input GuardInput
	}{
		{name: "no fingerprint cookie", input: GuardInput{Bearer: access, RefreshCookie: refresh}},
		{name: "no refresh cookie", input: GuardInput{Bearer: access, FingerprintCookie: "fp1"}},
		{name: "no cookies at all", input: GuardInput{Bearer: access}},
	}
	for _, tc := range cases {
		_, denial := guard.Authorize(context.Background(), tc.input, nil)
		if denial == nil {
			t.Fatalf("%s: expected denial", tc.name)
		}
		if denial.Reason != constants.DenyReasonTokenVerification {
			t.Fatalf("%s: expected TokenVerification, got %s", tc.name, denial.Reason)
		}
	}
}

func TestAuthorizeMissingBearer(t *testing.T) {
	guard, tokens, db := setupGuardTest(t)
	user := createGuardTestUser(t, db, "guard-bearer@example.com", constants.RoleUser, constants.UserStatusActive)

	payload := TokenPayload{UserID: user.ID, SessionID: "s1", Fingerprint: "fp1"}
	_, refresh := issueGuardTestTokens(t, tokens, payload)

	_, denial := guard.Authorize(context.Background(), GuardInput{
		RefreshCookie:     refresh,
		FingerprintCookie: "fp1",
	}, nil)
	if denial == nil || denial.Reason != constants.DenyReasonTokenDenied {
		t.Fatalf("expected TokenDenied, got %+v", denial)
	}
}

func TestAuthorizeFingerprintCookieMismatch(t *testing.T) {
	guard, tokens, db := setupGuardTest(t)
	user := createGuardTestUser(t, db, "guard-fp@example.com", constants.RoleUser, constants.UserStatusActive)

	payload := TokenPayload{UserID: user.ID, SessionID: "s1", Fingerprint: "fp1"}
	access, refresh := issueGuardTestTokens(t, tokens, payload)

	_, denial := guard.Authorize(context.Background(), GuardInput{
		Bearer:            access,
		RefreshCookie:     refresh,
		FingerprintCookie: "fp-other",
	}, nil)
	if denial == nil || denial.Reason != constants.DenyReasonTokenVerification {
		t.Fatalf("expected TokenVerification, got %+v", denial)
	}
}

func TestAuthorizeCrossTokenMismatch(t *testing.T) {
	guard, tokens, db := setupGuardTest(t)
	user := createGuardTestUser(t, db, "guard-mismatch@example.com", constants.RoleUser, constants.UserStatusActive)

	base := TokenPayload{
		UserID:      user.ID,
		Email:       user.Email,
		SessionID:   "session-base",
		Fingerprint: "fp-base",
	}

	cases := []struct {
		name   string
		mutate func(p TokenPayload) TokenPayload
	}{
		{name: "session differs", mutate: func(p TokenPayload) TokenPayload {
			p.SessionID = "session-other"
			return p
		}},
		{name: "user differs", mutate: func(p TokenPayload) TokenPayload {
			p.UserID = p.UserID + 1
			return p
		}},
		{name: "fingerprint differs", mutate: func(p TokenPayload) TokenPayload {
			p.Fingerprint = "fp-other"
			return p
		}},
	}
	for _, tc := range cases {
		access, _, err := tokens.IssueAccess(base)
		if err != nil {
			t.Fatalf("%s: issue access failed: %v", tc.name, err)
		}
		refresh, _, err := tokens.IssueRefresh(tc.mutate(base))
		if err != nil {
			t.Fatalf("%s: issue refresh failed: %v", tc.name, err)
		}

		_, denial := guard.Authorize(context.Background(), GuardInput{
			Bearer:            access,
			RefreshCookie:     refresh,
			FingerprintCookie: base.Fingerprint,
		}, nil)
		if denial == nil {
			t.Fatalf("%s: expected denial", tc.name)
		}
		if denial.Reason != constants.DenyReasonTokenMismatch {
			t.Fatalf("%s: expected TokenMismatch, got %s", tc.name, denial.Reason)
		}
		if denial.Status != 403 {
			t.Fatalf("%s: expected status 403, got %d", tc.name, denial.Status)
		}
	}
}

func TestAuthorizeDisabledUserRevoked(t *testing.T) {
	guard, tokens, db := setupGuardTest(t)
	user := createGuardTestUser(t, db, "guard-disabled@example.com", constants.RoleUser, constants.UserStatusDisabled)

	payload := TokenPayload{UserID: user.ID, SessionID: "s1", Fingerprint: "fp1"}
	access, refresh := issueGuardTestTokens(t, tokens, payload)

	_, denial := guard.Authorize(context.Background(), GuardInput{
		Bearer:            access,
		RefreshCookie:     refresh,
		FingerprintCookie: "fp1",
	}, nil)
	if denial == nil || denial.Reason != constants.DenyReasonTokenDenied {
		t.Fatalf("expected TokenDenied for disabled user, got %+v", denial)
	}
}

func TestAuthorizeTokenInvalidBefore(t *testing.T) {
	guard, tokens, db := setupGuardTest(t)
	user := createGuardTestUser(t, db, "guard-invalidated@example.com", constants.RoleUser, constants.UserStatusActive)

	payload := TokenPayload{UserID: user.ID, SessionID: "s1", Fingerprint: "fp1"}
	access, refresh := issueGuardTestTokens(t, tokens, payload)

	// 签发后将失效线推到未来，令牌应被视为已吊销
	invalidBefore := time.Now().Add(time.Minute)
	if err := db.Model(&models.User{}).Where("id = ?", user.ID).
		Update("token_invalid_before", invalidBefore).Error; err != nil {
		t.Fatalf("update token_invalid_before failed: %v", err)
	}

	_, denial := guard.Authorize(context.Background(), GuardInput{
		Bearer:            access,
		RefreshCookie:     refresh,
		FingerprintCookie: "fp1",
	}, nil)
	if denial == nil || denial.Reason != constants.DenyReasonTokenDenied {
		t.Fatalf("expected TokenDenied for invalidated token, got %+v", denial)
	}
}

func TestAuthorizeRoleGate(t *testing.T) {
	guard, tokens, db := setupGuardTest(t)
	user := createGuardTestUser(t, db, "guard-role@example.com", constants.RoleUser, constants.UserStatusActive)

	payload := TokenPayload{
		UserID:      user.ID,
		Roles:       []string{constants.RoleUser},
		SessionID:   "s1",
		Fingerprint: "fp1",
	}
	access, refresh := issueGuardTestTokens(t, tokens, payload)
	input := GuardInput{Bearer: access, RefreshCookie: refresh, FingerprintCookie: "fp1"}

	_, denial := guard.Authorize(context.Background(), input, []string{constants.RoleAdmin, constants.RoleEditor})
	if denial == nil || denial.Reason != constants.DenyReasonUnauthorized {
		t.Fatalf("expected Unauthorized, got %+v", denial)
	}
	if denial.Status != 401 {
		t.Fatalf("expected status 401, got %d", denial.Status)
	}

	// 提升角色后放行，快照中的角色覆盖令牌声明
	if err := db.Model(&models.User{}).Where("id = ?", user.ID).
		Update("roles", constants.RoleAdmin).Error; err != nil {
		t.Fatalf("update roles failed: %v", err)
	}
	grant, denial := guard.Authorize(context.Background(), input, []string{constants.RoleAdmin})
	if denial != nil {
		t.Fatalf("expected grant after role change, got %s", denial.Reason)
	}
	if !grant.HasRole(constants.RoleAdmin) {
		t.Fatalf("expected admin role from snapshot, got %v", grant.Roles)
	}
}
