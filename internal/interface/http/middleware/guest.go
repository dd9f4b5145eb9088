package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderGuestID 游客购物车标识
const HeaderGuestID = "X-Guest-ID"

const ctxGuestID = "guest_id"

// GuestID 请求未携带或格式不对时签发新的uuid，通过响应头返回给客户端保存
func GuestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		guestID := c.GetHeader(HeaderGuestID)
		if _, err := uuid.Parse(guestID); err != nil {
			guestID = uuid.NewString()
		}
		c.Header(HeaderGuestID, guestID)
		c.Set(ctxGuestID, guestID)
		c.Next()
	}
}

func GetGuestID(c *gin.Context) string {
	return c.GetString(ctxGuestID)
}
