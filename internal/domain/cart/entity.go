package cart

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Item 购物车条目
type Item struct {
	BookID   uint
	Quantity int
}

// Cart 登录用户的持久化购物车
// Version每次整体替换后递增，用于乐观并发校验
type Cart struct {
	ID        uint
	UserID    uint
	Items     []Item
	Version   int64
	UpdatedAt time.Time
}

// IsEmpty 是否为空
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Quantities 转换为 bookID → 数量
func (c *Cart) Quantities() map[uint]int {
	return ToQuantities(c.Items)
}

// Replace 整体替换条目并递增版本
func (c *Cart) Replace(items []Item) {
	c.Items = Normalize(items)
	c.Version++
	c.UpdatedAt = time.Now()
}

// Merge 合并游客购物车G与账户购物车D
// 对G∪D中每本书，数量 = G[k] + D[k]（缺席按0计）
// 纯函数：不修改入参，满足交换律，空G合并得到D本身
func Merge(guest, durable map[uint]int) map[uint]int {
	merged := make(map[uint]int, len(guest)+len(durable))
	for id, qty := range durable {
		merged[id] += qty
	}
	for id, qty := range guest {
		merged[id] += qty
	}
	return merged
}

// ToQuantities 条目列表转map，重复的bookID数量累加
func ToQuantities(items []Item) map[uint]int {
	out := make(map[uint]int, len(items))
	for _, item := range items {
		out[item.BookID] += item.Quantity
	}
	return out
}

// FromQuantities map转条目列表，按bookID升序保证输出稳定，数量<=0的丢弃
func FromQuantities(quantities map[uint]int) []Item {
	items := make([]Item, 0, len(quantities))
	for id, qty := range quantities {
		if qty > 0 {
			items = append(items, Item{BookID: id, Quantity: qty})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].BookID < items[j].BookID })
	return items
}

// Normalize 排序并丢弃非法数量
func Normalize(items []Item) []Item {
	return FromQuantities(ToQuantities(items))
}

// ValidateItems 整体替换前的校验：数量>=1，bookID不重复
func ValidateItems(items []Item) error {
	for _, item := range items {
		if item.BookID == 0 {
			return ErrInvalidItem
		}
		if item.Quantity < 1 {
			return ErrInvalidQuantity
		}
	}
	ids := lo.Map(items, func(item Item, _ int) uint { return item.BookID })
	if len(lo.Uniq(ids)) != len(ids) {
		return ErrDuplicateItem
	}
	return nil
}

// BookIDs 条目中的图书ID
func BookIDs(items []Item) []uint {
	return lo.Map(items, func(item Item, _ int) uint { return item.BookID })
}

// Fingerprint 购物车内容指纹，与条目顺序无关，非法数量不计入
func Fingerprint(quantities map[uint]int) string {
	items := FromQuantities(quantities)
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = fmt.Sprintf("%d:%d", item.BookID, item.Quantity)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])
}
