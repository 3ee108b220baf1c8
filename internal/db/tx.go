package db

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// InTx runs fn inside one ledger transaction bounded by timeout. The transaction is retried
// as a whole when MySQL aborts it on a lock conflict. fn must only use the tx it is given.
func InTx(ctx context.Context, gdb *gorm.DB, timeout time.Duration, fn func(tx *gorm.DB) error) error {
	return Try(func() error {
		tctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return gdb.WithContext(tctx).Transaction(fn)
	})
}

// Run executes fn on a session bounded by timeout, outside any transaction.
func Run(ctx context.Context, gdb *gorm.DB, timeout time.Duration, fn func(q *gorm.DB) error) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(gdb.WithContext(tctx))
}
