package service

import (
	"context"
	"strings"

	"github.com/inkstone/internal/cache"
	"github.com/inkstone/internal/constants"
	"github.com/inkstone/internal/repository"
)

// GuardService 请求鉴权状态机。
// 每个请求按固定顺序走完检查链，终态只有两种：放行（Grant）或拒绝（Denial）。
// 限流检查由路由层中间件在进入状态机之前完成。
type GuardService struct {
	tokens   *TokenService
	userRepo repository.UserRepository
}

// NewGuardService 创建鉴权服务
func NewGuardService(tokens *TokenService, userRepo repository.UserRepository) *GuardService {
	return &GuardService{tokens: tokens, userRepo: userRepo}
}

// GuardInput 状态机输入，由中间件从请求中提取
type GuardInput struct {
	Bearer            string // Authorization 头中的访问令牌
	RefreshCookie     string // token cookie
	FingerprintCookie string // fp cookie
	ClientIP          string
	UserAgent         string
}

// Grant 放行结果
type Grant struct {
	UserID      uint     `json:"user_id"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	SessionID   string   `json:"session_id"`
	Fingerprint string   `json:"fingerprint"`
	ClientIP    string   `json:"client_ip"`
	UserAgent   string   `json:"user_agent"`
}

// HasRole 判断放行结果是否具备某角色
func (g *Grant) HasRole(role string) bool {
	for _, r := range g.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize 执行鉴权状态机。
// 检查顺序：Cookie 在位 → Bearer 在位 → 访问令牌校验 → 刷新令牌校验 →
// 指纹绑定 → 双令牌一致性 → 服务端吊销快照 → 角色检查。
// requiredRoles 为空表示仅要求登录态。
func (s *GuardService) Authorize(ctx context.Context, in GuardInput, requiredRoles []string) (*Grant, *Denial) {
	if in.FingerprintCookie == "" || in.RefreshCookie == "" {
		return nil, Deny(constants.DenyReasonTokenVerification)
	}
	if in.Bearer == "" {
		return nil, Deny(constants.DenyReasonTokenDenied)
	}

	access, denial := s.tokens.VerifyAccess(in.Bearer)
	if denial != nil {
		return nil, denial
	}

	refresh := s.tokens.VerifyRefresh(in.RefreshCookie)
	if refresh == nil {
		return nil, Deny(constants.DenyReasonTokenExpired)
	}

	if in.FingerprintCookie != access.Fingerprint {
		return nil, Deny(constants.DenyReasonTokenVerification)
	}

	if access.UserID != refresh.UserID ||
		access.SessionID != refresh.SessionID ||
		access.Fingerprint != refresh.Fingerprint {
		return nil, Deny(constants.DenyReasonTokenMismatch)
	}

	roles := access.Roles
	if denial := s.checkRevocation(ctx, access, &roles); denial != nil {
		return nil, denial
	}

	if len(requiredRoles) > 0 && !rolesIntersect(roles, requiredRoles) {
		return nil, Deny(constants.DenyReasonUnauthorized)
	}

	return &Grant{
		UserID:      access.UserID,
		Email:       access.Email,
		Roles:       roles,
		SessionID:   access.SessionID,
		Fingerprint: access.Fingerprint,
		ClientIP:    in.ClientIP,
		UserAgent:   in.UserAgent,
	}, nil
}

// checkRevocation 对照服务端快照检查令牌是否已被吊销。
// 优先读缓存快照，未命中回源数据库并回填。
// 用户被禁用或令牌签发时间早于失效线时拒绝。
// 快照命中时以快照中的角色为准，覆盖令牌内的角色声明。
func (s *GuardService) checkRevocation(ctx context.Context, access *AccessClaims, roles *[]string) *Denial {
	state, hit, err := cache.GetUserAuthState(ctx, access.UserID)
	if err != nil || !hit {
		user, dbErr := s.userRepo.GetByID(access.UserID)
		if dbErr != nil {
			return Deny(constants.DenyReasonTokenDenied)
		}
		if user == nil {
			return Deny(constants.DenyReasonTokenDenied)
		}
		state = cache.BuildUserAuthState(user)
		_ = cache.SetUserAuthState(ctx, state)
	}

	if state.Status != constants.UserStatusActive {
		return Deny(constants.DenyReasonTokenDenied)
	}
	if state.TokenInvalidBefore > 0 && access.IssuedAt != nil &&
		access.IssuedAt.Unix() < state.TokenInvalidBefore {
		return Deny(constants.DenyReasonTokenDenied)
	}
	if snapshot := splitRoles(state.Roles); len(snapshot) > 0 {
		*roles = snapshot
	}
	return nil
}

func rolesIntersect(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func splitRoles(roles string) []string {
	parts := strings.Split(roles, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
