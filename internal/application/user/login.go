package user

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	appcart "github.com/xiebiao/ebookstore/internal/application/cart"
	"github.com/xiebiao/ebookstore/internal/domain/user"
	"github.com/xiebiao/ebookstore/pkg/jwt"
)

// SessionStore 登录会话与Token黑名单
type SessionStore interface {
	SaveSession(ctx context.Context, userID uint, sessionData map[string]interface{}, ttl time.Duration) error
	DeleteSession(ctx context.Context, userID uint) error
	AddToBlacklist(ctx context.Context, token string, ttl time.Duration) error
}

// GuestCartMerger 登录时合并游客购物车
type GuestCartMerger interface {
	Execute(ctx context.Context, req appcart.MergeRequest) (*appcart.MergeResult, error)
}

// LoginUseCase 用户登录
//  1. 校验邮箱密码
//  2. 签发Token对并保存会话
//  3. 携带guest_id时合并游客购物车，合并失败不影响登录
type LoginUseCase struct {
	userService  user.Service
	jwtManager   *jwt.Manager
	sessionStore SessionStore
	merger       GuestCartMerger
	logger       zerolog.Logger
}

func NewLoginUseCase(
	userService user.Service,
	jwtManager *jwt.Manager,
	sessionStore SessionStore,
	merger GuestCartMerger,
	logger zerolog.Logger,
) *LoginUseCase {
	return &LoginUseCase{
		userService:  userService,
		jwtManager:   jwtManager,
		sessionStore: sessionStore,
		merger:       merger,
		logger:       logger.With().Str("component", "login").Logger(),
	}
}

type LoginRequest struct {
	Email    string
	Password string
	GuestID  string
	ClientIP string
}

type LoginResponse struct {
	User         *UserInfo `json:"user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	// CartMerge 未携带guest_id时为空
	CartMerge string `json:"cart_merge,omitempty"`
}

func (uc *LoginUseCase) Execute(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	u, err := uc.userService.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	tokens, err := uc.jwtManager.GenerateToken(jwt.Identity{
		UserID:   u.ID,
		Email:    u.Email,
		Nickname: u.Nickname,
		Role:     string(u.Role),
	})
	if err != nil {
		return nil, err
	}

	session := map[string]interface{}{
		"email":    u.Email,
		"role":     string(u.Role),
		"login_at": time.Now().Unix(),
		"ip":       req.ClientIP,
	}
	if err := uc.sessionStore.SaveSession(ctx, u.ID, session, uc.jwtManager.RefreshTokenExpire()); err != nil {
		uc.logger.Warn().Err(err).Uint("user_id", u.ID).Msg("保存会话失败")
	}

	resp := &LoginResponse{
		User:         toUserInfo(u),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	}
	if req.GuestID != "" {
		resp.CartMerge = uc.mergeGuestCart(ctx, u.ID, req.GuestID)
	}
	return resp, nil
}

func (uc *LoginUseCase) mergeGuestCart(ctx context.Context, userID uint, guestID string) string {
	result, err := uc.merger.Execute(ctx, appcart.MergeRequest{UserID: userID, GuestID: guestID})
	if err != nil {
		uc.logger.Error().Err(err).Uint("user_id", userID).Str("guest_id", guestID).Msg("登录时合并游客购物车失败")
		return appcart.MergeOutcomeFailed
	}
	return result.Outcome
}

// LogoutUseCase 用户登出
type LogoutUseCase struct {
	sessionStore SessionStore
	tokenTTL     time.Duration
}

// NewLogoutUseCase tokenTTL取Access Token有效期，保证黑名单覆盖Token剩余寿命
func NewLogoutUseCase(sessionStore SessionStore, tokenTTL time.Duration) *LogoutUseCase {
	return &LogoutUseCase{sessionStore: sessionStore, tokenTTL: tokenTTL}
}

func (uc *LogoutUseCase) Execute(ctx context.Context, userID uint, accessToken string) error {
	if err := uc.sessionStore.DeleteSession(ctx, userID); err != nil {
		return err
	}
	return uc.sessionStore.AddToBlacklist(ctx, accessToken, uc.tokenTTL)
}
