package dto

// RegisterRequest HTTP层注册请求
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=20"`
	Nickname string `json:"nickname" binding:"required,min=2,max=50"`
}

// LoginRequest 携带guest_id时登录后合并游客购物车
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	GuestID  string `json:"guest_id" binding:"omitempty,max=64"`
}
