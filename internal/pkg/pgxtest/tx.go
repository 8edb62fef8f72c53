// internal/pkg/pgxtest/tx.go
//
// Package pgxtest provides a no-op pgx.Tx for service tests. The
// services pass the transaction through to their stores, so tests that
// fake the stores only need something satisfying the interface and
// recording whether the transaction ended in a commit.
package pgxtest

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Tx struct {
	Committed  bool
	RolledBack bool
}

var _ pgx.Tx = (*Tx)(nil)

func (t *Tx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }

func (t *Tx) Commit(ctx context.Context) error {
	t.Committed = true
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if !t.Committed {
		t.RolledBack = true
	}
	return nil
}

func (t *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (t *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }

func (t *Tx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (t *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return &pgconn.StatementDescription{}, nil
}

func (t *Tx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return emptyRow{} }

func (t *Tx) Conn() *pgx.Conn { return nil }

type emptyRow struct{}

func (emptyRow) Scan(dest ...any) error { return pgx.ErrNoRows }

// DB hands out a fresh Tx per BeginTx; Last keeps the most recent one
// so assertions can check how it ended.
type DB struct {
	Last *Tx
}

func (d *DB) BeginTx(ctx context.Context) (pgx.Tx, error) {
	d.Last = &Tx{}
	return d.Last, nil
}
