package mysql

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/xiebiao/ebookstore/internal/infrastructure/config"
)

var (
	sharedOnce sync.Once
	sharedDB   *gorm.DB
	sharedErr  error
)

// Shared 进程内共享的数据库句柄，首次调用时建立连接，之后所有仓储复用同一个连接池
func Shared(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	sharedOnce.Do(func() {
		sharedDB, sharedErr = NewDB(cfg, log)
	})
	return sharedDB, sharedErr
}

// NewDB 建立连接并配置连接池，database.auto_migrate为true时同步表结构
func NewDB(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.Server.Mode == "debug" {
		logLevel = logger.Info
	}

	db, err := Open(cfg.Database.DSN(), logLevel)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取SQL DB失败: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}
	log.Info().Str("host", cfg.Database.Host).Str("db", cfg.Database.DBName).Msg("数据库连接成功")

	if cfg.Database.AutoMigrate {
		if err := AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("数据库迁移失败: %w", err)
		}
	}
	return db, nil
}

// Open 仅建立连接，测试中直接使用容器的DSN
func Open(dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	return db, nil
}

// AutoMigrate 同步表结构并写入分账守护行
// 生产环境应使用版本化迁移脚本
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&UserModel{},
		&BookModel{},
		&OrderModel{},
		&OrderItemModel{},
		&OrderSequenceModel{},
		&CartModel{},
		&CartItemModel{},
		&GuestCartMergeModel{},
		&PaymentEventModel{},
		&PayoutConfigModel{},
		&PayoutConfigLockModel{},
		&PayoutRecordModel{},
	)
	if err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&PayoutConfigLockModel{ID: payoutGuardID}).Error
}

// UserModel 用户
type UserModel struct {
	ID        uint           `gorm:"primaryKey"`
	Email     string         `gorm:"uniqueIndex;size:100;not null;comment:邮箱"`
	Password  string         `gorm:"size:255;not null;comment:密码（bcrypt加密）"`
	Nickname  string         `gorm:"size:50;not null;comment:昵称"`
	Role      string         `gorm:"size:16;not null;default:customer;comment:角色"`
	CreatedAt time.Time      `gorm:"comment:创建时间"`
	UpdatedAt time.Time      `gorm:"comment:更新时间"`
	DeletedAt gorm.DeletedAt `gorm:"index;comment:删除时间（软删除）"`
}

func (UserModel) TableName() string {
	return "users"
}

// BookModel 图书目录的只读视图，由CMS写入
type BookModel struct {
	ID          uint           `gorm:"primaryKey"`
	Title       string         `gorm:"index:idx_search;size:200;not null;comment:书名"`
	Author      string         `gorm:"index:idx_search;size:100;not null;comment:作者"`
	Price       int64          `gorm:"index:idx_list;not null;comment:价格(分)"`
	CoverURL    string         `gorm:"size:500;comment:封面图片URL"`
	Description string         `gorm:"type:text;comment:图书描述"`
	AssetKey    string         `gorm:"size:500;comment:电子书文件对象键"`
	CreatedAt   time.Time      `gorm:"index:idx_list;comment:创建时间"`
	UpdatedAt   time.Time      `gorm:"comment:更新时间"`
	DeletedAt   gorm.DeletedAt `gorm:"index;comment:删除时间(软删除)"`
}

func (BookModel) TableName() string {
	return "books"
}

// OrderModel 订单
// custom_id唯一索引是订单号唯一性的最后一道防线
type OrderModel struct {
	ID        uint             `gorm:"primaryKey"`
	CustomID  string           `gorm:"uniqueIndex;size:32;not null;comment:订单号 ORD-YYYYMM-NNNN"`
	UserID    uint             `gorm:"index;not null;comment:买家用户ID"`
	Total     int64            `gorm:"not null;comment:订单总金额(分)"`
	Status    int              `gorm:"index;type:tinyint;default:1;comment:订单状态(1待支付2已完成3已取消)"`
	Items     []OrderItemModel `gorm:"foreignKey:OrderID"`
	CreatedAt time.Time        `gorm:"index;comment:创建时间"`
	UpdatedAt time.Time        `gorm:"comment:更新时间"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 下单时的图书快照
type OrderItemModel struct {
	ID          uint   `gorm:"primaryKey"`
	OrderID     uint   `gorm:"index;not null;comment:订单ID"`
	BookID      uint   `gorm:"index;not null;comment:图书ID"`
	Title       string `gorm:"size:200;not null;comment:书名快照"`
	Author      string `gorm:"size:100;comment:作者快照"`
	CoverURL    string `gorm:"size:500;comment:封面快照"`
	Quantity    int    `gorm:"not null;comment:购买数量"`
	Price       int64  `gorm:"not null;comment:下单时单价(分)"`
	DownloadURL string `gorm:"size:500;comment:下载地址"`
}

func (OrderItemModel) TableName() string {
	return "order_items"
}

// OrderSequenceModel 按月递增的订单序号
type OrderSequenceModel struct {
	MonthKey string `gorm:"primaryKey;size:6;comment:YYYYMM"`
	Value    int64  `gorm:"not null;default:0;comment:当月已分配的最大序号"`
}

func (OrderSequenceModel) TableName() string {
	return "order_sequences"
}

// CartModel 登录用户购物车
type CartModel struct {
	ID        uint            `gorm:"primaryKey"`
	UserID    uint            `gorm:"uniqueIndex;not null;comment:用户ID"`
	Version   int64           `gorm:"not null;default:0;comment:乐观并发版本号"`
	Items     []CartItemModel `gorm:"foreignKey:CartID"`
	UpdatedAt time.Time
}

func (CartModel) TableName() string {
	return "carts"
}

type CartItemModel struct {
	ID       uint `gorm:"primaryKey"`
	CartID   uint `gorm:"uniqueIndex:idx_cart_book;not null"`
	BookID   uint `gorm:"uniqueIndex:idx_cart_book;not null"`
	Quantity int  `gorm:"not null"`
}

func (CartItemModel) TableName() string {
	return "cart_items"
}

// GuestCartMergeModel 已并入账户的游客购物车，guest_id唯一
type GuestCartMergeModel struct {
	ID          uint      `gorm:"primaryKey"`
	GuestID     string    `gorm:"uniqueIndex;size:64;not null;comment:游客ID"`
	UserID      uint      `gorm:"index;not null"`
	Fingerprint string    `gorm:"size:64;not null;comment:合并时的内容指纹"`
	MergedAt    time.Time `gorm:"not null"`
}

func (GuestCartMergeModel) TableName() string {
	return "guest_cart_merges"
}

// PaymentEventModel 已处理的支付回调，event_id唯一
type PaymentEventModel struct {
	ID          uint      `gorm:"primaryKey"`
	EventID     string    `gorm:"uniqueIndex;size:128;not null;comment:服务商事件ID"`
	Reference   string    `gorm:"index;size:32;not null;comment:订单号"`
	Type        string    `gorm:"size:64;not null"`
	Success     bool      `gorm:"not null"`
	ProcessedAt time.Time `gorm:"not null"`
}

func (PaymentEventModel) TableName() string {
	return "payment_events"
}
