// Package apptest 用例层测试替身
// 内存实现，语义与MySQL/Redis实现保持一致（不存在、重复、版本号等）
package apptest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xiebiao/ebookstore/internal/application"
	"github.com/xiebiao/ebookstore/internal/domain/book"
	"github.com/xiebiao/ebookstore/internal/domain/cart"
	"github.com/xiebiao/ebookstore/internal/domain/order"
	"github.com/xiebiao/ebookstore/internal/domain/payment"
	"github.com/xiebiao/ebookstore/internal/domain/payout"
)

// TxManager 串行执行fn，模拟行锁；不支持嵌套调用
type TxManager struct {
	mu     sync.Mutex
	serial sync.Mutex
	Calls  int
}

func (m *TxManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()

	m.serial.Lock()
	defer m.serial.Unlock()
	return fn(ctx)
}

// PublishedEvent 已发布的事件
type PublishedEvent struct {
	RoutingKey string
	Payload    interface{}
}

// Publisher 记录所有发布的事件
type Publisher struct {
	mu     sync.Mutex
	Events []PublishedEvent
	Err    error
}

func (p *Publisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, PublishedEvent{RoutingKey: routingKey, Payload: payload})
	return p.Err
}

// Count 指定RoutingKey的事件数
func (p *Publisher) Count(routingKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.Events {
		if e.RoutingKey == routingKey {
			n++
		}
	}
	return n
}

// Books 内存图书目录
type Books struct {
	Items map[uint]*book.Book
}

func NewBooks(books ...*book.Book) *Books {
	b := &Books{Items: make(map[uint]*book.Book)}
	for _, item := range books {
		b.Items[item.ID] = item
	}
	return b
}

func (b *Books) FindByID(ctx context.Context, id uint) (*book.Book, error) {
	if item, ok := b.Items[id]; ok {
		return item, nil
	}
	return nil, book.ErrBookNotFound
}

func (b *Books) FindByIDs(ctx context.Context, ids []uint) ([]*book.Book, error) {
	out := make([]*book.Book, 0, len(ids))
	for _, id := range ids {
		if item, ok := b.Items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (b *Books) List(ctx context.Context, params book.ListParams) ([]*book.Book, int64, error) {
	out := make([]*book.Book, 0, len(b.Items))
	for _, item := range b.Items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

// Orders 内存订单仓储
type Orders struct {
	mu       sync.Mutex
	byID     map[uint]*order.Order
	nextID   uint
	nextItem uint
	// DuplicateTimes 前N次Create返回订单号冲突
	DuplicateTimes int
	Updates        int
}

func NewOrders() *Orders {
	return &Orders{byID: make(map[uint]*order.Order)}
}

func cloneOrder(o *order.Order) *order.Order {
	c := *o
	c.Items = append([]order.OrderItem(nil), o.Items...)
	return &c
}

func (r *Orders) Create(ctx context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.DuplicateTimes > 0 {
		r.DuplicateTimes--
		return order.ErrDuplicateOrderNo
	}
	for _, existing := range r.byID {
		if existing.CustomID == o.CustomID {
			return order.ErrDuplicateOrderNo
		}
	}
	r.nextID++
	o.ID = r.nextID
	for i := range o.Items {
		r.nextItem++
		o.Items[i].ID = r.nextItem
		o.Items[i].OrderID = o.ID
	}
	r.byID[o.ID] = cloneOrder(o)
	return nil
}

func (r *Orders) FindByID(ctx context.Context, id uint) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.byID[id]; ok {
		return cloneOrder(o), nil
	}
	return nil, order.ErrOrderNotFound
}

func (r *Orders) FindByCustomID(ctx context.Context, customID string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.byID {
		if o.CustomID == customID {
			return cloneOrder(o), nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (r *Orders) LockByID(ctx context.Context, id uint) (*order.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *Orders) LockByCustomID(ctx context.Context, customID string) (*order.Order, error) {
	return r.FindByCustomID(ctx, customID)
}

func (r *Orders) UpdateStatus(ctx context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[o.ID]
	if !ok {
		return order.ErrOrderNotFound
	}
	stored.Status = o.Status
	stored.UpdatedAt = o.UpdatedAt
	r.Updates++
	return nil
}

func (r *Orders) List(ctx context.Context, filter order.ListFilter) ([]*order.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*order.Order, 0)
	for _, o := range r.byID {
		if filter.UserID != 0 && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != 0 && o.Status != filter.Status {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := int64(len(out))

	start := (filter.Page - 1) * filter.PageSize
	if start >= len(out) {
		return []*order.Order{}, total, nil
	}
	end := start + filter.PageSize
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

// Put 直接写入订单（测试准备数据）
func (r *Orders) Put(o *order.Order) *order.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o.ID == 0 {
		r.nextID++
		o.ID = r.nextID
	}
	r.byID[o.ID] = cloneOrder(o)
	return o
}

// Sequencer 内存序号发生器
type Sequencer struct {
	mu         sync.Mutex
	values     map[string]int64
	Reconciles int
}

func NewSequencer() *Sequencer {
	return &Sequencer{values: make(map[string]int64)}
}

func (s *Sequencer) Next(ctx context.Context, monthKey string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[monthKey]++
	return s.values[monthKey], nil
}

func (s *Sequencer) Reconcile(ctx context.Context, monthKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reconciles++
	return nil
}

// Carts 内存购物车仓储
type Carts struct {
	mu     sync.Mutex
	byUser map[uint]*cart.Cart
	merged map[string]string
	Clears int
	// SaveErr 非空时Save与MarkMerged返回该错误
	SaveErr error
}

func NewCarts() *Carts {
	return &Carts{byUser: make(map[uint]*cart.Cart), merged: make(map[string]string)}
}

func cloneCart(c *cart.Cart) *cart.Cart {
	out := *c
	out.Items = append([]cart.Item(nil), c.Items...)
	return &out
}

func (r *Carts) Get(ctx context.Context, userID uint) (*cart.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byUser[userID]; ok {
		return cloneCart(c), nil
	}
	return &cart.Cart{UserID: userID}, nil
}

func (r *Carts) Lock(ctx context.Context, userID uint) (*cart.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byUser[userID]
	if !ok {
		c = &cart.Cart{ID: userID, UserID: userID}
		r.byUser[userID] = c
	}
	return cloneCart(c), nil
}

func (r *Carts) Save(ctx context.Context, c *cart.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SaveErr != nil {
		return r.SaveErr
	}
	r.byUser[c.UserID] = cloneCart(c)
	return nil
}

func (r *Carts) Clear(ctx context.Context, userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Clears++
	if c, ok := r.byUser[userID]; ok {
		c.Items = nil
		c.Version++
	}
	return nil
}

func (r *Carts) MarkMerged(ctx context.Context, guestID string, userID uint, fingerprint string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SaveErr != nil {
		return false, r.SaveErr
	}
	if r.merged[guestID] == fingerprint {
		return false, nil
	}
	r.merged[guestID] = fingerprint
	return true, nil
}

// Set 直接写入购物车
func (r *Carts) Set(userID uint, items []cart.Item, version int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[userID] = &cart.Cart{ID: userID, UserID: userID, Items: cart.Normalize(items), Version: version}
}

// GuestCarts 内存游客购物车
type GuestCarts struct {
	mu    sync.Mutex
	Carts map[string]map[uint]int
	// DeleteErr 非空时Delete返回该错误且不删除
	DeleteErr error
}

func NewGuestCarts() *GuestCarts {
	return &GuestCarts{Carts: make(map[string]map[uint]int)}
}

func (s *GuestCarts) Get(ctx context.Context, guestID string) (map[uint]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint]int)
	for k, v := range s.Carts[guestID] {
		out[k] = v
	}
	return out, nil
}

func (s *GuestCarts) Replace(ctx context.Context, guestID string, items []cart.Item, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(items) == 0 {
		delete(s.Carts, guestID)
		return nil
	}
	s.Carts[guestID] = cart.ToQuantities(items)
	return nil
}

func (s *GuestCarts) Delete(ctx context.Context, guestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	delete(s.Carts, guestID)
	return nil
}

// Locker 进程内互斥锁
type Locker struct {
	mu   sync.Mutex
	held map[string]string
}

func NewLocker() *Locker {
	return &Locker{held: make(map[string]string)}
}

func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, application.ErrLockHeld
	}
	token := uuid.NewString()
	l.held[key] = token
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key] == token {
			delete(l.held, key)
		}
		return nil
	}, nil
}

// Hold 模拟其他执行者持有锁
func (l *Locker) Hold(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[key] = "other"
}

// PaymentEvents 内存回调去重表
type PaymentEvents struct {
	mu      sync.Mutex
	Records map[string]*payment.EventRecord
}

func NewPaymentEvents() *PaymentEvents {
	return &PaymentEvents{Records: make(map[string]*payment.EventRecord)}
}

func (r *PaymentEvents) Record(ctx context.Context, rec *payment.EventRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Records[rec.EventID]; ok {
		return false, nil
	}
	r.Records[rec.EventID] = rec
	return true, nil
}

// Gateway 可编排的支付服务商
type Gateway struct {
	mu              sync.Mutex
	InitErr         error
	VerifyResult    map[string]*payment.Verification
	VerifyErr       error
	InitCalls       int
	VerifyCalls     int
	LastInitRequest payment.InitRequest
}

func (g *Gateway) InitializeTransaction(ctx context.Context, req payment.InitRequest) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.InitCalls++
	g.LastInitRequest = req
	if g.InitErr != nil {
		return nil, g.InitErr
	}
	return &payment.Session{
		AuthorizationURL: "https://checkout.paygate.example/" + req.Reference,
		AccessCode:       "ac_" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (g *Gateway) VerifyTransaction(ctx context.Context, reference string) (*payment.Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.VerifyCalls++
	if g.VerifyErr != nil {
		return nil, g.VerifyErr
	}
	if v, ok := g.VerifyResult[reference]; ok {
		return v, nil
	}
	return &payment.Verification{Reference: reference, Status: payment.StatusPending}, nil
}

// PayoutConfigs 内存分账配置仓储
type PayoutConfigs struct {
	mu         sync.Mutex
	byID       map[uint]*payout.Config
	nextID     uint
	GuardLocks int
}

func NewPayoutConfigs() *PayoutConfigs {
	return &PayoutConfigs{byID: make(map[uint]*payout.Config)}
}

func clonePayoutConfig(c *payout.Config) *payout.Config {
	out := *c
	if c.LastPayoutDate != nil {
		t := *c.LastPayoutDate
		out.LastPayoutDate = &t
	}
	return &out
}

func (r *PayoutConfigs) Create(ctx context.Context, cfg *payout.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	cfg.ID = r.nextID
	r.byID[cfg.ID] = clonePayoutConfig(cfg)
	return nil
}

func (r *PayoutConfigs) Update(ctx context.Context, cfg *payout.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[cfg.ID]; !ok {
		return payout.ErrConfigNotFound
	}
	r.byID[cfg.ID] = clonePayoutConfig(cfg)
	return nil
}

func (r *PayoutConfigs) FindByID(ctx context.Context, id uint) (*payout.Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byID[id]; ok {
		return clonePayoutConfig(c), nil
	}
	return nil, payout.ErrConfigNotFound
}

func (r *PayoutConfigs) List(ctx context.Context, activeOnly bool) ([]*payout.Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*payout.Config, 0, len(r.byID))
	for _, c := range r.byID {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, clonePayoutConfig(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *PayoutConfigs) SumActivePercentage(ctx context.Context, excludeID uint) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := decimal.Zero
	for id, c := range r.byID {
		if c.IsActive && id != excludeID {
			sum = sum.Add(c.Percentage)
		}
	}
	return sum, nil
}

func (r *PayoutConfigs) LockGuard(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.GuardLocks++
	return nil
}

func (r *PayoutConfigs) MarkPaid(ctx context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return payout.ErrConfigNotFound
	}
	c.LastPayoutDate = &at
	return nil
}

// PayoutRecords 内存分账记录
type PayoutRecords struct {
	mu      sync.Mutex
	Records []*payout.Record
}

func (r *PayoutRecords) Create(ctx context.Context, rec *payout.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.ID = uint(len(r.Records) + 1)
	c := *rec
	r.Records = append(r.Records, &c)
	return nil
}

func (r *PayoutRecords) Update(ctx context.Context, rec *payout.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.Records {
		if existing.ID == rec.ID {
			c := *rec
			r.Records[i] = &c
			return nil
		}
	}
	return payout.ErrConfigNotFound
}

func (r *PayoutRecords) ListByConfig(ctx context.Context, configID uint, limit int) ([]*payout.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*payout.Record, 0)
	for i := len(r.Records) - 1; i >= 0 && len(out) < limit; i-- {
		if r.Records[i].ConfigID == configID {
			c := *r.Records[i]
			out = append(out, &c)
		}
	}
	return out, nil
}

// Wallet 可编排的结算钱包
// Balances按调用顺序返回，用尽后重复最后一个值
type Wallet struct {
	mu           sync.Mutex
	WalletID     string
	Balances     []int64
	BalanceCalls int
	TransferErrs []error
	Transfers    []payout.TransferRequest
}

func (w *Wallet) ID() string {
	if w.WalletID == "" {
		return "test-wallet"
	}
	return w.WalletID
}

func (w *Wallet) Balance(ctx context.Context) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.BalanceCalls
	w.BalanceCalls++
	if len(w.Balances) == 0 {
		return 0, nil
	}
	if i >= len(w.Balances) {
		i = len(w.Balances) - 1
	}
	return w.Balances[i], nil
}

func (w *Wallet) Transfer(ctx context.Context, req payout.TransferRequest) (*payout.TransferResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Transfers = append(w.Transfers, req)
	if n := len(w.Transfers); n <= len(w.TransferErrs) && w.TransferErrs[n-1] != nil {
		return nil, w.TransferErrs[n-1]
	}
	return &payout.TransferResult{TransferCode: "TRF_" + req.Reference, Status: "success"}, nil
}
