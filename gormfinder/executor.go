package gormfinder

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/theplant/finder"
)

type ctxKeyTx struct{}

// WithTx returns a context carrying tx as the ambient transaction.
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, ctxKeyTx{}, tx)
}

func TxFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(ctxKeyTx{}).(*gorm.DB)
	return tx, ok && tx != nil
}

// Executor runs read operations inside a transaction with a fixed isolation level.
type Executor struct {
	db *gorm.DB
}

func NewExecutor(db *gorm.DB) *Executor {
	return &Executor{db: db}
}

func isolationLevel(readUncommitted bool) sql.IsolationLevel {
	if readUncommitted {
		return sql.LevelReadUncommitted
	}
	return sql.LevelReadCommitted
}

// Execute runs fn inside the ambient transaction if there is one, otherwise
// inside a new transaction that is committed when fn returns nil and rolled
// back when fn fails or panics.
func (e *Executor) Execute(ctx context.Context, readUncommitted bool, fn func(ctx context.Context, tx *gorm.DB) error) error {
	if tx, ok := e.ambient(ctx); ok {
		return fn(ctx, tx.WithContext(ctx))
	}

	db := e.db.WithContext(ctx)
	level := isolationLevel(readUncommitted)
	db.Logger.Info(ctx, "begin transaction with isolation %s", level)

	err := db.Transaction(func(tx *gorm.DB) error {
		return fn(WithTx(ctx, tx), tx)
	}, &sql.TxOptions{Isolation: level})
	if err != nil {
		db.Logger.Warn(ctx, "transaction rolled back: %v", err)
		return storeError("transaction", err)
	}
	return nil
}

func (e *Executor) ambient(ctx context.Context) (*gorm.DB, bool) {
	if tx, ok := TxFromContext(ctx); ok {
		return tx, true
	}
	if _, ok := e.db.Statement.ConnPool.(gorm.TxCommitter); ok {
		return e.db, true
	}
	return nil, false
}

// storeError wraps err as a *finder.StoreError unless it already belongs to the finder error types.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		storeErr    *finder.StoreError
		notFoundErr *finder.NotFoundError
		fieldErr    *finder.InvalidFieldError
		joinErr     *finder.InvalidJoinError
		coercionErr *finder.TypeCoercionError
	)
	switch {
	case errors.As(err, &storeErr),
		errors.As(err, &notFoundErr),
		errors.As(err, &fieldErr),
		errors.As(err, &joinErr),
		errors.As(err, &coercionErr):
		return err
	}
	return &finder.StoreError{Op: op, Err: err}
}
