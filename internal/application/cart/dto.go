package cart

import (
	"context"

	"github.com/xiebiao/ebookstore/internal/domain/book"
	"github.com/xiebiao/ebookstore/internal/domain/cart"
)

// CartDTO 购物车输出
type CartDTO struct {
	GuestID string    `json:"guest_id,omitempty"`
	Lines   []LineDTO `json:"items"`
	Total   int64     `json:"total"`
	Version int64     `json:"version"`
}

// LineDTO 购物车行
// kind=resolved时附带图书信息，kind=ref表示目录已无法解析该书
type LineDTO struct {
	Kind     string   `json:"kind"`
	BookID   uint     `json:"book_id"`
	Quantity int      `json:"quantity"`
	Book     *BookDTO `json:"book,omitempty"`
}

type BookDTO struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Price    int64  `json:"price"`
	CoverURL string `json:"cover_url"`
}

// ItemInput 替换购物车的条目输入
type ItemInput struct {
	BookID   uint
	Quantity int
}

func toItems(inputs []ItemInput) []cart.Item {
	items := make([]cart.Item, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, cart.Item{BookID: in.BookID, Quantity: in.Quantity})
	}
	return items
}

// resolve 把条目解析成带图书信息的行，解析不到的保留为ref
func resolve(ctx context.Context, catalog book.Catalog, items []cart.Item) (*cart.View, error) {
	books, err := catalog.Resolve(ctx, cart.BookIDs(items))
	if err != nil {
		return nil, err
	}

	view := &cart.View{Lines: make([]cart.Line, 0, len(items))}
	for _, item := range items {
		line := cart.Line{Kind: cart.LineRef, BookID: item.BookID, Quantity: item.Quantity}
		if b, ok := books[item.BookID]; ok {
			line.Kind = cart.LineResolved
			line.Book = &cart.BookView{Title: b.Title, Author: b.Author, Price: b.Price, CoverURL: b.CoverURL}
		}
		view.Lines = append(view.Lines, line)
	}
	return view, nil
}

func toDTO(view *cart.View) *CartDTO {
	dto := &CartDTO{
		GuestID: view.GuestID,
		Lines:   make([]LineDTO, 0, len(view.Lines)),
		Total:   view.Total(),
		Version: view.Version,
	}
	for _, l := range view.Lines {
		line := LineDTO{Kind: string(l.Kind), BookID: l.BookID, Quantity: l.Quantity}
		if l.Book != nil {
			line.Book = &BookDTO{Title: l.Book.Title, Author: l.Book.Author, Price: l.Book.Price, CoverURL: l.Book.CoverURL}
		}
		dto.Lines = append(dto.Lines, line)
	}
	return dto
}
