package user

import (
	"context"
	"strings"

	"github.com/xiebiao/ebookstore/internal/domain/user"
)

// GrantAdminUseCase 把已注册用户提升为管理员
// HTTP接口不开放角色修改，首个管理员由cmd/grant-admin在运维侧执行
type GrantAdminUseCase struct {
	repo user.Repository
}

func NewGrantAdminUseCase(repo user.Repository) *GrantAdminUseCase {
	return &GrantAdminUseCase{repo: repo}
}

// Execute 重复授予是幂等的
func (uc *GrantAdminUseCase) Execute(ctx context.Context, email string) (*UserInfo, error) {
	u, err := uc.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if u.Role != user.RoleAdmin {
		if err := uc.repo.UpdateRole(ctx, u.ID, user.RoleAdmin); err != nil {
			return nil, err
		}
		u.Role = user.RoleAdmin
	}
	return toUserInfo(u), nil
}
