package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xiebiao/ebookstore/internal/application"
	"github.com/xiebiao/ebookstore/internal/domain/user"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
	"github.com/xiebiao/ebookstore/pkg/jwt"
	"github.com/xiebiao/ebookstore/pkg/response"
)

// Context中的键
const (
	ctxUserID      = "user_id"
	ctxEmail       = "email"
	ctxNickname    = "nickname"
	ctxRole        = "role"
	ctxAccessToken = "access_token"
)

// TokenBlacklist 已登出的Token
type TokenBlacklist interface {
	IsInBlacklist(ctx context.Context, token string) (bool, error)
}

// AuthMiddleware JWT认证
type AuthMiddleware struct {
	jwtManager *jwt.Manager
	blacklist  TokenBlacklist
}

func NewAuthMiddleware(jwtManager *jwt.Manager, blacklist TokenBlacklist) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		blacklist:  blacklist,
	}
}

// RequireAuth 要求登录
//
//	authorized := r.Group("/api/v1")
//	authorized.Use(authMiddleware.RequireAuth())
//	authorized.GET("/orders", handler.ListOrders)
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Authorization: Bearer <token>
		tokenString, ok := bearerToken(c)
		if !ok {
			abort(c, apperrors.ErrUnauthorized)
			return
		}

		blocked, err := m.blacklist.IsInBlacklist(c.Request.Context(), tokenString)
		if err != nil {
			abort(c, err)
			return
		}
		if blocked {
			abort(c, apperrors.ErrTokenExpired.WithMessage("Token已失效，请重新登录"))
			return
		}

		claims, err := m.jwtManager.ParseToken(tokenString)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxEmail, claims.Email)
		c.Set(ctxNickname, claims.Nickname)
		c.Set(ctxRole, user.Role(claims.Role))
		c.Set(ctxAccessToken, tokenString)
		c.Next()
	}
}

// RequireAdmin 必须挂在RequireAuth之后
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetRequester(c).IsAdmin() {
			abort(c, apperrors.ErrForbidden.WithMessage("需要管理员权限"))
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func abort(c *gin.Context, err error) {
	response.Error(c, err)
	c.Abort()
}

// GetUserID 未登录返回0
func GetUserID(c *gin.Context) uint {
	return c.GetUint(ctxUserID)
}

func GetEmail(c *gin.Context) string {
	return c.GetString(ctxEmail)
}

// GetAccessToken 登出时加入黑名单
func GetAccessToken(c *gin.Context) string {
	return c.GetString(ctxAccessToken)
}

// GetRequester 当前请求的身份
func GetRequester(c *gin.Context) application.Requester {
	role, _ := c.Get(ctxRole)
	r, _ := role.(user.Role)
	return application.Requester{UserID: GetUserID(c), Role: r}
}

// MustGetUserID 只用于RequireAuth之后的Handler
func MustGetUserID(c *gin.Context) uint {
	userID := GetUserID(c)
	if userID == 0 {
		panic("user_id not found in context")
	}
	return userID
}
