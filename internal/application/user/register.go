package user

import (
	"context"

	"github.com/xiebiao/ebookstore/internal/domain/user"
)

// RegisterUseCase 用户注册
type RegisterUseCase struct {
	userService user.Service
}

func NewRegisterUseCase(userService user.Service) *RegisterUseCase {
	return &RegisterUseCase{userService: userService}
}

// Execute 注册成功返回用户信息，不含密码
func (uc *RegisterUseCase) Execute(ctx context.Context, req RegisterRequest) (*UserInfo, error) {
	u, err := uc.userService.Register(ctx, req.Email, req.Password, req.Nickname)
	if err != nil {
		return nil, err
	}
	return toUserInfo(u), nil
}

type RegisterRequest struct {
	Email    string
	Password string
	Nickname string
}

// UserInfo 用户信息
type UserInfo struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
}

func toUserInfo(u *user.User) *UserInfo {
	return &UserInfo{ID: u.ID, Email: u.Email, Nickname: u.Nickname, Role: string(u.Role)}
}
