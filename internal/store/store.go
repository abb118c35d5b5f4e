package store

import (
	"context"
	"database/sql"
)

// Queryable abstrai *sql.DB e *sql.Tx para que as operações do core
// possam ser compostas dentro de uma única transação
type Queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx executa fn dentro de uma transação: commit se fn retornar nil,
// rollback integral caso contrário (nenhum efeito parcial sobrevive)
func WithTx(ctx context.Context, db *sql.DB, fn func(q Queryable) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
