package authz

import (
	"fmt"

	"github.com/inkstone/internal/constants"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Policies []Policy
}

// BuiltinRoleSeeds 系统预置角色矩阵。
// admin 拥有全部后台路由；editor 仅能管理文章并只读查看其余后台数据。
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: constants.RoleAdmin,
			Policies: []Policy{
				{Object: "/admin/*", Action: "*"},
			},
		},
		{
			Role: constants.RoleEditor,
			Policies: []Policy{
				{Object: "/admin/*", Action: "GET"},
				{Object: "/admin/posts", Action: "*"},
				{Object: "/admin/posts/:id", Action: "*"},
			},
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("authz service unavailable")
	}

	for _, seed := range BuiltinRoleSeeds() {
		role, err := NormalizeRole(seed.Role)
		if err != nil {
			return err
		}
		for _, policy := range seed.Policies {
			action := NormalizeAction(policy.Action)
			if action == "" {
				return fmt.Errorf("builtin policy action is required")
			}
			if _, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}
