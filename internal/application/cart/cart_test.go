package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/ebookstore/internal/application/apptest"
	"github.com/xiebiao/ebookstore/internal/domain/book"
	"github.com/xiebiao/ebookstore/internal/domain/cart"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
)

type fixture struct {
	books   *apptest.Books
	carts   *apptest.Carts
	guests  *apptest.GuestCarts
	locker  *apptest.Locker
	get     *GetCartUseCase
	replace *ReplaceCartUseCase
	guest   *GuestCartUseCase
	merge   *MergeGuestCartUseCase
}

func newFixture() *fixture {
	f := &fixture{
		books: apptest.NewBooks(
			&book.Book{ID: 1, Title: "Go语言圣经", Author: "Donovan", Price: 1000},
			&book.Book{ID: 2, Title: "SICP", Author: "Abelson", Price: 2500},
			&book.Book{ID: 3, Title: "TAOCP", Author: "Knuth", Price: 9900},
		),
		carts:  apptest.NewCarts(),
		guests: apptest.NewGuestCarts(),
		locker: apptest.NewLocker(),
	}
	catalog := book.NewCatalog(f.books)
	tx := &apptest.TxManager{}
	f.get = NewGetCartUseCase(f.carts, catalog)
	f.replace = NewReplaceCartUseCase(f.carts, catalog, tx)
	f.guest = NewGuestCartUseCase(f.guests, catalog, time.Hour)
	f.merge = NewMergeGuestCartUseCase(f.carts, f.guests, f.locker, tx, 10*time.Second, zerolog.Nop())
	return f
}

func int64Ptr(v int64) *int64 { return &v }

func TestGetCart_TagsUnresolvedLines(t *testing.T) {
	f := newFixture()
	f.carts.Set(7, []cart.Item{{BookID: 1, Quantity: 2}, {BookID: 99, Quantity: 1}}, 4)

	dto, err := f.get.Execute(context.Background(), 7)
	require.NoError(t, err)

	require.Len(t, dto.Lines, 2)
	assert.Equal(t, "resolved", dto.Lines[0].Kind)
	assert.Equal(t, "Go语言圣经", dto.Lines[0].Book.Title)
	assert.Equal(t, "ref", dto.Lines[1].Kind)
	assert.Nil(t, dto.Lines[1].Book, "已下架的书不带图书信息")
	assert.Equal(t, int64(2000), dto.Total)
	assert.Equal(t, int64(4), dto.Version)
}

func TestGetCart_Empty(t *testing.T) {
	f := newFixture()

	dto, err := f.get.Execute(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, dto.Lines)
	assert.Equal(t, int64(0), dto.Version)
}

func TestReplaceCart(t *testing.T) {
	f := newFixture()
	f.carts.Set(7, []cart.Item{{BookID: 1, Quantity: 1}}, 2)

	dto, err := f.replace.Execute(context.Background(), ReplaceCartRequest{
		UserID:          7,
		Items:           []ItemInput{{BookID: 2, Quantity: 1}, {BookID: 3, Quantity: 2}},
		ExpectedVersion: int64Ptr(2),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), dto.Version)
	assert.Equal(t, int64(2500+2*9900), dto.Total)
	require.Len(t, dto.Lines, 2)
	assert.Equal(t, uint(2), dto.Lines[0].BookID)
}

func TestReplaceCart_VersionConflictReturnsCurrent(t *testing.T) {
	f := newFixture()
	f.carts.Set(7, []cart.Item{{BookID: 1, Quantity: 1}}, 5)

	dto, err := f.replace.Execute(context.Background(), ReplaceCartRequest{
		UserID:          7,
		Items:           []ItemInput{{BookID: 2, Quantity: 1}},
		ExpectedVersion: int64Ptr(4),
	})
	assert.ErrorIs(t, err, cart.ErrVersionConflict)
	require.NotNil(t, dto, "冲突时应返回服务端当前购物车")
	assert.Equal(t, int64(5), dto.Version)
	require.Len(t, dto.Lines, 1)
	assert.Equal(t, uint(1), dto.Lines[0].BookID)

	stored, _ := f.carts.Get(context.Background(), 7)
	assert.Equal(t, []cart.Item{{BookID: 1, Quantity: 1}}, stored.Items, "冲突时不应修改购物车")
}

func TestReplaceCart_WithoutVersionOverwrites(t *testing.T) {
	f := newFixture()
	f.carts.Set(7, []cart.Item{{BookID: 1, Quantity: 1}}, 5)

	dto, err := f.replace.Execute(context.Background(), ReplaceCartRequest{UserID: 7, Items: nil})
	require.NoError(t, err)
	assert.Empty(t, dto.Lines)
	assert.Equal(t, int64(6), dto.Version)
}

func TestReplaceCart_Validation(t *testing.T) {
	f := newFixture()

	cases := []struct {
		name  string
		items []ItemInput
		want  error
	}{
		{"数量为0", []ItemInput{{BookID: 1, Quantity: 0}}, cart.ErrInvalidQuantity},
		{"重复条目", []ItemInput{{BookID: 1, Quantity: 1}, {BookID: 1, Quantity: 1}}, cart.ErrDuplicateItem},
		{"图书不存在", []ItemInput{{BookID: 404, Quantity: 1}}, book.ErrBookNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.replace.Execute(context.Background(), ReplaceCartRequest{UserID: 7, Items: tc.items})
			if !errors.Is(err, tc.want) {
				t.Errorf("期望错误%v，实际%v", tc.want, err)
			}
		})
	}
}

func TestGuestCart_ReplaceAndGet(t *testing.T) {
	f := newFixture()

	dto, err := f.guest.Replace(context.Background(), "g-1", []ItemInput{{BookID: 2, Quantity: 1}, {BookID: 1, Quantity: 3}})
	require.NoError(t, err)
	assert.Equal(t, "g-1", dto.GuestID)
	assert.Equal(t, int64(3*1000+2500), dto.Total)

	got, err := f.guest.Get(context.Background(), "g-1")
	require.NoError(t, err)
	assert.Equal(t, dto, got)

	_, err = f.guest.Get(context.Background(), "")
	assert.ErrorIs(t, err, cart.ErrMissingGuestID)
}

func TestMergeGuestCart_SumsQuantities(t *testing.T) {
	f := newFixture()
	f.carts.Set(7, []cart.Item{{BookID: 1, Quantity: 1}, {BookID: 2, Quantity: 1}}, 3)
	f.guests.Carts["g-1"] = map[uint]int{1: 2, 3: 1}

	result, err := f.merge.Execute(context.Background(), MergeRequest{UserID: 7, GuestID: "g-1"})
	require.NoError(t, err)
	assert.Equal(t, MergeOutcomeMerged, result.Outcome)
	assert.Equal(t, int64(4), result.Version)

	stored, _ := f.carts.Get(context.Background(), 7)
	assert.Equal(t, []cart.Item{{BookID: 1, Quantity: 3}, {BookID: 2, Quantity: 1}, {BookID: 3, Quantity: 1}}, stored.Items)
	assert.NotContains(t, f.guests.Carts, "g-1", "合并成功后应删除游客购物车")
}

func TestMergeGuestCart_SecondCallIsNoop(t *testing.T) {
	f := newFixture()
	f.guests.Carts["g-1"] = map[uint]int{1: 2}

	_, err := f.merge.Execute(context.Background(), MergeRequest{UserID: 7, GuestID: "g-1"})
	require.NoError(t, err)

	result, err := f.merge.Execute(context.Background(), MergeRequest{UserID: 7, GuestID: "g-1"})
	require.NoError(t, err)
	assert.Equal(t, MergeOutcomeNoop, result.Outcome)

	stored, _ := f.carts.Get(context.Background(), 7)
	assert.Equal(t, []cart.Item{{BookID: 1, Quantity: 2}}, stored.Items, "重复合并不应叠加数量")
}

func TestMergeGuestCart_SaveFailureKeepsGuestCart(t *testing.T) {
	f := newFixture()
	f.guests.Carts["g-1"] = map[uint]int{1: 2}
	f.carts.SaveErr = apperrors.ErrDatabaseError

	_, err := f.merge.Execute(context.Background(), MergeRequest{UserID: 7, GuestID: "g-1"})
	assert.ErrorIs(t, err, apperrors.ErrDatabaseError)
	assert.Equal(t, map[uint]int{1: 2}, f.guests.Carts["g-1"], "持久化失败时游客购物车应保持原样")
}

func TestMergeGuestCart_GuestDeleteFailureDoesNotDoubleCount(t *testing.T) {
	f := newFixture()
	f.carts.Set(7, []cart.Item{{BookID: 1, Quantity: 1}}, 1)
	f.guests.Carts["g-1"] = map[uint]int{1: 2, 3: 1}
	f.guests.DeleteErr = errors.New("redis: connection refused")

	first, err := f.merge.Execute(context.Background(), MergeRequest{UserID: 7, GuestID: "g-1"})
	require.NoError(t, err)
	assert.Equal(t, MergeOutcomeMerged, first.Outcome)
	require.Contains(t, f.guests.Carts, "g-1", "删除失败时游客购物车仍残留")

	second, err := f.merge.Execute(context.Background(), MergeRequest{UserID: 7, GuestID: "g-1"})
	require.NoError(t, err)
	assert.Equal(t, MergeOutcomeNoop, second.Outcome)
	assert.Equal(t, first.Version, second.Version)

	stored, _ := f.carts.Get(context.Background(), 7)
	assert.Equal(t, []cart.Item{{BookID: 1, Quantity: 3}, {BookID: 3, Quantity: 1}}, stored.Items, "残留的游客购物车不应再次叠加")
}

func TestMergeGuestCart_ChangedGuestCartMergesAgain(t *testing.T) {
	f := newFixture()
	f.guests.Carts["g-1"] = map[uint]int{1: 1}

	_, err := f.merge.Execute(context.Background(), MergeRequest{UserID: 7, GuestID: "g-1"})
	require.NoError(t, err)

	f.guests.Carts["g-1"] = map[uint]int{2: 1}
	result, err := f.merge.Execute(context.Background(), MergeRequest{UserID: 7, GuestID: "g-1"})
	require.NoError(t, err)
	assert.Equal(t, MergeOutcomeMerged, result.Outcome, "同一游客的新内容应继续合并")

	stored, _ := f.carts.Get(context.Background(), 7)
	assert.Equal(t, []cart.Item{{BookID: 1, Quantity: 1}, {BookID: 2, Quantity: 1}}, stored.Items)
}

func TestMergeGuestCart_LockHeld(t *testing.T) {
	f := newFixture()
	f.guests.Carts["g-1"] = map[uint]int{1: 2}
	f.locker.Hold("cart:merge:g-1")

	_, err := f.merge.Execute(context.Background(), MergeRequest{UserID: 7, GuestID: "g-1"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Contains(t, f.guests.Carts, "g-1")
}

func TestMergeGuestCart_ConcurrentMergesApplyOnce(t *testing.T) {
	f := newFixture()
	f.guests.Carts["g-1"] = map[uint]int{1: 2}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.merge.Execute(context.Background(), MergeRequest{UserID: 7, GuestID: "g-1"})
		}()
	}
	wg.Wait()

	stored, _ := f.carts.Get(context.Background(), 7)
	assert.Equal(t, []cart.Item{{BookID: 1, Quantity: 2}}, stored.Items, "并发合并只应生效一次")
}
