package mysql

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// TxManager 事务管理器
// 事务DB通过context向下传递，仓储用getDB取出
type TxManager struct {
	db *gorm.DB
}

func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

// Transaction fn返回error时回滚，否则提交
//
//	err := txManager.Transaction(ctx, func(ctx context.Context) error {
//	    o, err := orderRepo.LockByCustomID(ctx, ref)
//	    if err != nil {
//	        return err
//	    }
//	    return orderRepo.UpdateStatus(ctx, o)
//	})
//
// 嵌套调用时复用外层事务（GORM使用SavePoint）
func (m *TxManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return getDB(ctx, m.db).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// getDB 优先取context中的事务DB
func getDB(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}
