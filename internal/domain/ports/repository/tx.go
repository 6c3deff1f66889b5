package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an infra-defined transaction handle (pgx.Tx for Postgres). Repositories accept
// NoTX and fall back to the pool.
type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside a transaction and hands the handle to repositories.
// It commits when fn returns nil and rolls back otherwise.
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//		p, err := plans.FindByID(ctx, tx, id) // row locked
//		...
//		return plans.Save(ctx, tx, p)
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
