package cart

// LineKind 购物车行的解析结果
type LineKind string

const (
	// LineResolved 目录中能找到该书
	LineResolved LineKind = "resolved"
	// LineRef 目录已无法解析，只保留bookID
	LineRef LineKind = "ref"
)

// BookView 购物车行里展示的图书信息
type BookView struct {
	Title    string
	Author   string
	Price    int64
	CoverURL string
}

// Line 购物车行
// Kind为LineResolved时Book非空
type Line struct {
	Kind     LineKind
	BookID   uint
	Quantity int
	Book     *BookView
}

// Subtotal 未解析的行按0计
func (l Line) Subtotal() int64 {
	if l.Kind != LineResolved || l.Book == nil {
		return 0
	}
	return l.Book.Price * int64(l.Quantity)
}

// View 带解析结果的购物车
type View struct {
	UserID  uint
	GuestID string
	Lines   []Line
	Version int64
}

// Total 已解析行的合计
func (v *View) Total() int64 {
	var total int64
	for _, l := range v.Lines {
		total += l.Subtotal()
	}
	return total
}

// Items 还原为条目
func (v *View) Items() []Item {
	items := make([]Item, 0, len(v.Lines))
	for _, l := range v.Lines {
		items = append(items, Item{BookID: l.BookID, Quantity: l.Quantity})
	}
	return items
}
